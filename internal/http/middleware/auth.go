// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the calling principal. Every handler receives the
// principal explicitly from the Gin context; nothing downstream reads an
// ambient wallet.
//
// Two modes are supported:
//   - "jwt":    Authorization: Bearer <session token> issued by /auth/verify
//   - "header": X-User-ID: <address>, trusted as-is (development and tests);
//     a bearer token is still honored when a session parser is configured
//
// Requests without credentials continue anonymously so public routes keep
// working; RequirePrincipal guards the routes that need a caller.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/libchain-registry/internal/identity"
)

// Authentication modes.
const (
	AuthModeHeader = "header"
	AuthModeJWT    = "jwt"
)

// HeaderUserID carries the principal in header mode.
const HeaderUserID = "X-User-ID"

// ctxKeyPrincipal holds the normalized address of the caller.
const ctxKeyPrincipal = "principal"

// SessionParser validates a session token and returns its principal.
type SessionParser interface {
	Parse(token string) (string, error)
}

// AuthOptions configures Authenticate.
type AuthOptions struct {
	// Mode is AuthModeHeader or AuthModeJWT. Anything else means jwt.
	Mode string
	// Sessions validates bearer tokens. Required in jwt mode.
	Sessions SessionParser
}

// Authenticate resolves the caller and stores the checksummed address under
// the principal key. Malformed credentials are rejected with 401; missing
// credentials are not.
func Authenticate(opts AuthOptions) gin.HandlerFunc {
	headerMode := opts.Mode == AuthModeHeader

	return func(c *gin.Context) {
		if tok, ok := bearer(c.GetHeader("Authorization")); ok && opts.Sessions != nil {
			p, err := opts.Sessions.Parse(tok)
			if err != nil {
				unauthorized(c, "invalid or expired session")
				return
			}
			c.Set(ctxKeyPrincipal, p)
			c.Next()
			return
		}

		if headerMode {
			if raw := strings.TrimSpace(c.GetHeader(HeaderUserID)); raw != "" {
				p, err := identity.Normalize(raw)
				if err != nil {
					unauthorized(c, "invalid "+HeaderUserID)
					return
				}
				c.Set(ctxKeyPrincipal, p)
			}
		} else if c.GetHeader("Authorization") != "" {
			unauthorized(c, "invalid Authorization header")
			return
		}
		c.Next()
	}
}

// RequirePrincipal aborts with 401 unless Authenticate resolved a caller.
func RequirePrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := Principal(c); !ok {
			unauthorized(c, "authentication required")
			return
		}
		c.Next()
	}
}

// Principal returns the authenticated caller, if any.
func Principal(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyPrincipal)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// SetPrincipal stores p as the caller. Used by tests and by handlers that
// authenticate through other means.
func SetPrincipal(c *gin.Context, p string) {
	c.Set(ctxKeyPrincipal, p)
}

func bearer(h string) (string, bool) {
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="registry"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    msg,
	})
}
