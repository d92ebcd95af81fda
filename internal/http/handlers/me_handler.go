// Per-principal HTTP handlers.
//
//   - GET /me/uploads    (own records, active and inactive)
//   - GET /me/library    (purchased records)
//   - GET /me/dashboard  (summary statistics)
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/libchain-registry/internal/domain"
)

// ListUploads godoc
// @ID          listUploads
// @Summary     My uploads
// @Description Returns the caller's own records (active and inactive, never deleted), newest first.
// @Tags        Me
// @Produce     json
// @Security    BearerAuth
//
// @Param       X-User-ID  header  string  false "Caller address (header auth mode)"
// @Param       page       query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListContentsResponse
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Router      /me/uploads [get]
func (h *Handlers) ListUploads(c *gin.Context) {
	h.listMine(c, h.opt.Dashboard.Uploads)
}

// ListLibrary godoc
// @ID          listLibrary
// @Summary     My library
// @Description Returns the records the caller purchased, newest first.
// @Tags        Me
// @Produce     json
// @Security    BearerAuth
//
// @Param       X-User-ID  header  string  false "Caller address (header auth mode)"
// @Param       page       query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListContentsResponse
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Router      /me/library [get]
func (h *Handlers) ListLibrary(c *gin.Context) {
	h.listMine(c, h.opt.Dashboard.Library)
}

type pageFunc func(ctx context.Context, principal string, page, pageSize int) ([]domain.Content, int64, error)

func (h *Handlers) listMine(c *gin.Context, list pageFunc) {
	p, okp := caller(c)
	if !okp {
		return
	}
	page, pageSize := clampPagination(c)
	items, total, err := list(c.Request.Context(), p, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListContentsResponse{
		Contents:   items,
		Pagination: paginate(page, pageSize, total),
	})
}

// GetDashboard godoc
// @ID          getDashboard
// @Summary     My dashboard
// @Description Returns upload, purchase and earnings totals for the caller. Amounts are in base units with whole-token renderings alongside.
// @Tags        Me
// @Produce     json
// @Security    BearerAuth
//
// @Param       X-User-ID  header  string  false "Caller address (header auth mode)"
//
// @Success     200  {object} services.Stats
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Router      /me/dashboard [get]
func (h *Handlers) GetDashboard(c *gin.Context) {
	p, okp := caller(c)
	if !okp {
		return
	}
	st, err := h.opt.Dashboard.Stats(c.Request.Context(), p)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}
