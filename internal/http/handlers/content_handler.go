// Content HTTP handlers.
//
// This file exposes REST endpoints for content records:
//   - POST   /contents              (register)
//   - GET    /contents              (discover, paginated, search, ETag support)
//   - GET    /contents/{id}         (public view)
//   - PATCH  /contents/{id}/status  (toggle active)
//   - DELETE /contents/{id}         (tombstone)
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/libchain-registry/internal/http/middleware"
	"github.com/tbourn/libchain-registry/internal/services"
)

// WeiAmount is an integer amount in base units. It decodes from a JSON
// string ("1000000000000000000") or a JSON integer; strings are preferred
// since most clients cannot hold 18-decimal amounts in a float.
type WeiAmount string

// UnmarshalJSON implements json.Unmarshaler.
func (w *WeiAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*w = WeiAmount(s)
		return nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return errors.New("amount must be a string or an integer")
	}
	*w = WeiAmount(n.String())
	return nil
}

// RegisterContentRequest is the JSON payload for registering content.
type RegisterContentRequest struct {
	Title       string `json:"title"        example:"Field recordings vol. 1"`
	Description string `json:"description"  example:"Forty minutes of rain on a tin roof."`
	// PreviewURL is an http(s) URL or an ipfs:// handle.
	PreviewURL string `json:"preview_url" example:"ipfs://QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"`
	// ContentHash is the gated IPFS handle (bare CID or ipfs:// URL).
	ContentHash string    `json:"content_hash" example:"QmT78zSuBmuS4z925WZfrqQ1qHaJ56DQaTfyMUF7F8ff5o"`
	Price       WeiAmount `json:"price"        swaggertype:"string" example:"1000000000000000000"`
	// RoyaltyPercentage is the creator's share, 0..100.
	RoyaltyPercentage *int `json:"royalty_percentage" example:"80"`
}

// RegisterContent godoc
// @ID          registerContent
// @Summary     Register content
// @Description Lists a new, active content record owned by the caller. The content hash is stored but never returned by listing endpoints.
// @Tags        Contents
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       X-User-ID  header  string  false "Caller address (header auth mode)"  example(0x1111111111111111111111111111111111111111)
// @Param       body       body    handlers.RegisterContentRequest  true  "Content payload"
//
// @Success     201  {object}  domain.Content
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /contents [post]
func (h *Handlers) RegisterContent(c *gin.Context) {
	p, okp := caller(c)
	if !okp {
		return
	}
	var req RegisterContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.RoyaltyPercentage == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "royalty_percentage is required")
		return
	}

	rec, err := h.opt.Registry.Register(c.Request.Context(), p, services.RegisterInput{
		Title:             req.Title,
		Description:       req.Description,
		PreviewURL:        req.PreviewURL,
		ContentHash:       req.ContentHash,
		Price:             string(req.Price),
		RoyaltyPercentage: *req.RoyaltyPercentage,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	c.Header("Location", fmt.Sprintf("%s/contents/%d", h.opt.BasePath, rec.ID))
	ok(c, http.StatusCreated, rec)
}

// ListContents godoc
// @ID          listContents
// @Summary     Discover content (paginated)
// @Description Returns active, non-deleted, unflagged content, newest first or by relevance when q is set. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Contents
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       q              query   string  false "Full-text search over title and description"
// @Param       creator        query   string  false "Restrict to one creator address"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListContentsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /contents [get]
func (h *Handlers) ListContents(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)
	q := services.DiscoverQuery{
		Query:    strings.TrimSpace(c.Query("q")),
		Creator:  strings.TrimSpace(c.Query("creator")),
		Page:     page,
		PageSize: pageSize,
	}

	// ETag pre-check (best effort).
	if stamp, err := h.opt.Catalog.Stamp(ctx); err == nil {
		etag := listETag(stamp, q)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	res, err := h.opt.Catalog.Discover(ctx, q)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListContentsResponse{
		Contents:   res.Items,
		Pagination: paginate(page, pageSize, res.Total),
	})
}

// listETag combines the catalog stamp with a digest of the query.
func listETag(stamp string, q services.DiscoverQuery) string {
	f := fnv.New64a()
	fmt.Fprintf(f, "%s|%s|%d|%d", q.Creator, q.Query, q.Page, q.PageSize)
	return fmt.Sprintf(`W/"contents:%s:%x"`, stamp, f.Sum64())
}

// GetContent godoc
// @ID          getContent
// @Summary     View content
// @Description Returns one record. Deleted records are 404; inactive or flagged records are visible only to their creator and to moderators.
// @Tags        Contents
// @Produce     json
//
// @Param       id  path  int  true  "Content ID"  minimum(1)
//
// @Success     200  {object} domain.Content
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /contents/{id} [get]
func (h *Handlers) GetContent(c *gin.Context) {
	id, okid := contentID(c)
	if !okid {
		return
	}
	p, _ := middleware.Principal(c)

	rec, err := h.opt.Catalog.View(c.Request.Context(), p, id, p != "" && h.opt.Registry.IsAdmin(p))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, rec)
}

// ToggleContentStatus godoc
// @ID          toggleContentStatus
// @Summary     Toggle active status
// @Description Flips the active flag of a record owned by the caller and returns the updated record.
// @Tags        Contents
// @Produce     json
// @Security    BearerAuth
//
// @Param       X-User-ID  header  string  false "Caller address (header auth mode)"
// @Param       id         path    int     true  "Content ID"  minimum(1)
//
// @Success     200  {object} domain.Content
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     403  {object} handlers.ErrorResponse "Not the creator"
// @Failure     404  {object} handlers.ErrorResponse "Not found or deleted"
// @Router      /contents/{id}/status [patch]
func (h *Handlers) ToggleContentStatus(c *gin.Context) {
	p, okp := caller(c)
	if !okp {
		return
	}
	id, okid := contentID(c)
	if !okid {
		return
	}
	rec, err := h.opt.Registry.ToggleStatus(c.Request.Context(), p, id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, rec)
}

// DeleteContent godoc
// @ID          deleteContent
// @Summary     Delete content
// @Description Tombstones a record owned by the caller. Purchasers keep access. Deleting twice succeeds.
// @Tags        Contents
// @Security    BearerAuth
//
// @Param       X-User-ID  header  string  false "Caller address (header auth mode)"
// @Param       id         path    int     true  "Content ID"  minimum(1)
//
// @Success     204  {string} string "No Content"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     403  {object} handlers.ErrorResponse "Not the creator"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /contents/{id} [delete]
func (h *Handlers) DeleteContent(c *gin.Context) {
	p, okp := caller(c)
	if !okp {
		return
	}
	id, okid := contentID(c)
	if !okid {
		return
	}
	if err := h.opt.Registry.DeleteContent(c.Request.Context(), p, id); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
