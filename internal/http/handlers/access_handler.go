// Access HTTP handlers.
//
//   - GET /contents/{id}/access-check  (may a principal view the content?)
//   - GET /contents/{id}/hash          (gated handle disclosure)
//   - GET /contents/{id}/access        (short-lived signed stream URL)
//   - GET /stream/{token}              (gated Range proxy to the gateway)
//
// The stream endpoint authenticates by token alone but re-evaluates access
// on every request, so a revoked entitlement stops working before the token
// expires.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/libchain-registry/internal/accessurl"
	"github.com/tbourn/libchain-registry/internal/http/middleware"
	"github.com/tbourn/libchain-registry/internal/identity"
)

// AccessCheckResponse answers an access query.
type AccessCheckResponse struct {
	ContentID uint64 `json:"content_id" example:"7"`
	Principal string `json:"principal"  example:"0x1111111111111111111111111111111111111111"`
	HasAccess bool   `json:"has_access" example:"true"`
}

// ContentHashResponse discloses a gated handle.
type ContentHashResponse struct {
	ContentID   uint64 `json:"content_id"   example:"7"`
	ContentHash string `json:"content_hash" example:"QmT78zSuBmuS4z925WZfrqQ1qHaJ56DQaTfyMUF7F8ff5o"`
}

// AccessGrantResponse carries a signed stream URL.
type AccessGrantResponse struct {
	ContentID   uint64    `json:"content_id"   example:"7"`
	ContentHash string    `json:"content_hash" example:"QmT78zSuBmuS4z925WZfrqQ1qHaJ56DQaTfyMUF7F8ff5o"`
	GatewayURL  string    `json:"gateway_url"  example:"https://gateway.pinata.cloud/ipfs/QmT78zSuBmuS4z925WZfrqQ1qHaJ56DQaTfyMUF7F8ff5o"`
	StreamURL   string    `json:"stream_url"   example:"/api/v1/stream/eyJhbGciOi..."`
	ExpiresAt   time.Time `json:"expires_at"`
}

// CheckAccess godoc
// @ID          checkAccess
// @Summary     Check access
// @Description Reports whether a principal (the principal query param, or the caller) may view the content. Never discloses the handle.
// @Tags        Access
// @Produce     json
//
// @Param       id         path   int     true   "Content ID"  minimum(1)
// @Param       principal  query  string  false  "Address to check; defaults to the caller"
//
// @Success     200  {object} handlers.AccessCheckResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /contents/{id}/access-check [get]
func (h *Handlers) CheckAccess(c *gin.Context) {
	id, okid := contentID(c)
	if !okid {
		return
	}
	who := strings.TrimSpace(c.Query("principal"))
	if who == "" {
		p, okp := caller(c)
		if !okp {
			return
		}
		who = p
	}
	p, err := identity.Normalize(who)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "principal: "+err.Error())
		return
	}

	allowed, err := h.opt.Registry.CheckAccess(c.Request.Context(), id, p)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, AccessCheckResponse{ContentID: id, Principal: p, HasAccess: allowed})
}

// GetContentHash godoc
// @ID          getContentHash
// @Summary     Get content hash
// @Description Discloses the gated IPFS handle to the creator (while not deleted) or to a purchaser.
// @Tags        Access
// @Produce     json
// @Security    BearerAuth
//
// @Param       X-User-ID  header  string  false "Caller address (header auth mode)"
// @Param       id         path    int     true  "Content ID"  minimum(1)
//
// @Success     200  {object} handlers.ContentHashResponse
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     403  {object} handlers.ErrorResponse "Access denied"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /contents/{id}/hash [get]
func (h *Handlers) GetContentHash(c *gin.Context) {
	p, okp := caller(c)
	if !okp {
		return
	}
	id, okid := contentID(c)
	if !okid {
		return
	}
	hash, err := h.opt.Registry.GetContentHash(c.Request.Context(), p, id)
	if err != nil {
		failErr(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, ContentHashResponse{ContentID: id, ContentHash: hash})
}

// GrantAccess godoc
// @ID          grantAccess
// @Summary     Get a signed stream URL
// @Description Returns the gated handle plus a short-lived stream URL bound to the caller and the content.
// @Tags        Access
// @Produce     json
// @Security    BearerAuth
//
// @Param       X-User-ID  header  string  false "Caller address (header auth mode)"
// @Param       id         path    int     true  "Content ID"  minimum(1)
//
// @Success     200  {object} handlers.AccessGrantResponse
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     403  {object} handlers.ErrorResponse "Access denied"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Failure     503  {object} handlers.ErrorResponse "Streaming not configured"
// @Router      /contents/{id}/access [get]
func (h *Handlers) GrantAccess(c *gin.Context) {
	p, okp := caller(c)
	if !okp {
		return
	}
	id, okid := contentID(c)
	if !okid {
		return
	}
	if h.opt.Grants == nil || h.opt.Gateway == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "streaming is not configured")
		return
	}
	hash, err := h.opt.Registry.GetContentHash(c.Request.Context(), p, id)
	if err != nil {
		failErr(c, err)
		return
	}
	tok, grant, err := h.opt.Grants.Sign(p, id)
	if err != nil {
		failErr(c, err)
		return
	}
	middleware.LoggerFrom(c).Debug().
		Uint64("content_id", id).
		Str("grant_id", grant.ID).
		Time("expires_at", grant.ExpiresAt).
		Msg("stream grant issued")

	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, AccessGrantResponse{
		ContentID:   id,
		ContentHash: hash,
		GatewayURL:  h.opt.Gateway.URL(hash),
		StreamURL:   h.opt.BasePath + "/stream/" + tok,
		ExpiresAt:   grant.ExpiresAt,
	})
}

// streamHeaders are copied from the gateway response.
var streamHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"Last-Modified",
}

// Stream godoc
// @ID          streamContent
// @Summary     Stream gated content
// @Description Proxies the gated object from the IPFS gateway. The token comes from the access endpoint. Range requests are forwarded; without one the first chunk is served.
// @Tags        Access
// @Produce     octet-stream
//
// @Param       token  path    string  true   "Signed stream token"
// @Param       Range  header  string  false  "Byte range"  example(bytes=0-1048575)
//
// @Success     200  {file}   binary
// @Success     206  {file}   binary
// @Failure     401  {object} handlers.ErrorResponse "Invalid or expired token"
// @Failure     403  {object} handlers.ErrorResponse "Access revoked"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Failure     502  {object} handlers.ErrorResponse "Gateway error"
// @Router      /stream/{token} [get]
func (h *Handlers) Stream(c *gin.Context) {
	if h.opt.Grants == nil || h.opt.Gateway == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "streaming is not configured")
		return
	}
	grant, err := h.opt.Grants.Verify(c.Param("token"))
	if err != nil {
		fail(c, http.StatusUnauthorized, ErrCodeInvalidGrant, accessurl.ErrInvalidGrant.Error())
		return
	}

	ctx := c.Request.Context()
	hash, err := h.opt.Registry.GetContentHash(ctx, grant.Principal, grant.ContentID)
	if err != nil {
		failErr(c, err)
		return
	}

	rng := c.GetHeader("Range")
	if rng == "" {
		rng = "bytes=0-" + strconv.FormatInt(h.opt.StreamChunkBytes-1, 10)
	}
	resp, err := h.opt.Gateway.Fetch(ctx, hash, rng)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Uint64("content_id", grant.ContentID).Msg("gateway fetch failed")
		fail(c, http.StatusBadGateway, ErrCodeBadGateway, "content gateway unavailable")
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		if cr := resp.Header.Get("Content-Range"); cr != "" {
			c.Header("Content-Range", cr)
		}
		fail(c, http.StatusRequestedRangeNotSatisfiable, ErrCodeBadRequest, "range not satisfiable")
		return
	case resp.StatusCode == http.StatusNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "content not available on gateway")
		return
	default:
		middleware.LoggerFrom(c).Warn().Int("upstream_status", resp.StatusCode).Msg("gateway returned error")
		fail(c, http.StatusBadGateway, ErrCodeBadGateway, "content gateway error")
		return
	}

	hdr := c.Writer.Header()
	for _, k := range streamHeaders {
		if v := resp.Header.Get(k); v != "" {
			hdr.Set(k, v)
		}
	}
	hdr.Set("Cache-Control", "no-store")
	hdr.Set("Content-Disposition", "inline")
	c.Status(resp.StatusCode)

	if _, err := io.Copy(c.Writer, resp.Body); err != nil && !errors.Is(err, io.EOF) {
		// Headers are out; all we can do is log.
		middleware.LoggerFrom(c).Debug().Err(err).Msg("stream copy interrupted")
	}
}
