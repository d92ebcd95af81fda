// Package accessurl mints and verifies the short-lived signed tokens that
// make up stream URLs. A token binds one principal to one content id for a
// few minutes; the stream endpoint still re-checks access on every request,
// so revocation takes effect before the token expires.
package accessurl

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidGrant covers every rejection: tampering, expiry, wrong audience.
var ErrInvalidGrant = errors.New("invalid or expired stream grant")

const audience = "stream"

// Grant is a verified stream token.
type Grant struct {
	ID        string
	Principal string
	ContentID uint64
	ExpiresAt time.Time
}

type claims struct {
	ContentID string `json:"cid"`
	jwt.RegisteredClaims
}

// Signer issues and verifies stream tokens with HS256.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner returns a Signer. ttl <= 0 falls back to five minutes.
func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("stream signing secret is empty")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL is the lifetime of tokens minted by Sign.
func (s *Signer) TTL() time.Duration { return s.ttl }

// Sign mints a token granting principal a stream of contentID.
func (s *Signer) Sign(principal string, contentID uint64) (string, Grant, error) {
	now := s.now().UTC()
	g := Grant{
		ID:        uuid.NewString(),
		Principal: principal,
		ContentID: contentID,
		ExpiresAt: now.Add(s.ttl),
	}
	c := claims{
		ContentID: strconv.FormatUint(contentID, 10),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        g.ID,
			Subject:   principal,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(g.ExpiresAt),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", Grant{}, err
	}
	return tok, g, nil
}

// Verify checks token and returns the grant it carries.
func (s *Signer) Verify(token string) (Grant, error) {
	c := &claims{}
	_, err := jwt.ParseWithClaims(token, c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: %v", ErrInvalidGrant, err)
	}
	id, err := strconv.ParseUint(c.ContentID, 10, 64)
	if err != nil || id == 0 || c.Subject == "" {
		return Grant{}, ErrInvalidGrant
	}
	return Grant{
		ID:        c.ID,
		Principal: c.Subject,
		ContentID: id,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
