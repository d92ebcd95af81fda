// Wallet login HTTP handlers.
//
//   - POST /auth/challenge  (issue a nonce message for an address)
//   - POST /auth/verify     (check the personal_sign signature, issue a session)
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/libchain-registry/internal/identity"
)

// ChallengeRequest asks for a login challenge.
type ChallengeRequest struct {
	Address string `json:"address" binding:"required" example:"0x1111111111111111111111111111111111111111"`
}

// VerifyRequest submits a signed challenge.
type VerifyRequest struct {
	Address   string `json:"address"   binding:"required" example:"0x1111111111111111111111111111111111111111"`
	Signature string `json:"signature" binding:"required" example:"0x5f1c...1b"`
}

// SessionResponse carries a session token.
type SessionResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type" example:"Bearer"`
	Principal string    `json:"principal"  example:"0x1111111111111111111111111111111111111111"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueChallenge godoc
// @ID          issueChallenge
// @Summary     Start wallet login
// @Description Returns a single-use message the wallet must personal_sign.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ChallengeRequest  true  "Wallet address"
//
// @Success     200  {object} identity.Challenge
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     503  {object} handlers.ErrorResponse "Login not configured"
// @Router      /auth/challenge [post]
func (h *Handlers) IssueChallenge(c *gin.Context) {
	if h.opt.Challenges == nil || h.opt.Sessions == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "wallet login is not configured")
		return
	}
	var req ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "address required")
		return
	}
	ch, err := h.opt.Challenges.Issue(req.Address)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidAddress) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		failErr(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, ch)
}

// VerifyChallenge godoc
// @ID          verifyChallenge
// @Summary     Finish wallet login
// @Description Verifies the signature over the pending challenge and returns a session token.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.VerifyRequest  true  "Signed challenge"
//
// @Success     200  {object} handlers.SessionResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Signature rejected"
// @Failure     503  {object} handlers.ErrorResponse "Login not configured"
// @Router      /auth/verify [post]
func (h *Handlers) VerifyChallenge(c *gin.Context) {
	if h.opt.Challenges == nil || h.opt.Sessions == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "wallet login is not configured")
		return
	}
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "address and signature required")
		return
	}

	p, err := h.opt.Challenges.Verify(req.Address, req.Signature)
	switch {
	case errors.Is(err, identity.ErrInvalidAddress):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	case errors.Is(err, identity.ErrNoChallenge), errors.Is(err, identity.ErrBadSignature):
		fail(c, http.StatusUnauthorized, ErrCodeLoginFailed, err.Error())
		return
	case err != nil:
		failErr(c, err)
		return
	}

	tok, exp, err := h.opt.Sessions.Issue(p)
	if err != nil {
		failErr(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, SessionResponse{Token: tok, TokenType: "Bearer", Principal: p, ExpiresAt: exp})
}
