package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ModerationRequest sets or clears the moderation flag.
type ModerationRequest struct {
	Flagged *bool `json:"flagged" example:"true"`
	// Reason is required when flagging.
	Reason string `json:"reason" example:"reported as infringing"`
}

// SetModeration godoc
// @ID          setModeration
// @Summary     Flag or unflag content
// @Description Moderators only. A flagged record leaves discovery and cannot be bought; existing purchasers keep access.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       X-User-ID  header  string  false "Caller address (header auth mode)"
// @Param       id         path    int     true  "Content ID"  minimum(1)
// @Param       body       body    handlers.ModerationRequest  true  "Flag state"
//
// @Success     200  {object} domain.Content
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     403  {object} handlers.ErrorResponse "Not a moderator"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /admin/contents/{id}/moderation [put]
func (h *Handlers) SetModeration(c *gin.Context) {
	p, okp := caller(c)
	if !okp {
		return
	}
	id, okid := contentID(c)
	if !okid {
		return
	}
	var req ModerationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Flagged == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "flagged (bool) required")
		return
	}
	rec, err := h.opt.Registry.SetModeration(c.Request.Context(), p, id, *req.Flagged, req.Reason)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, rec)
}
