// Purchase HTTP handler.
//
//   - POST /contents/{id}/purchase
//   - GET  /contents/{id}/sales
//
// Idempotency:
// When the client supplies an Idempotency-Key header, the key is stored in
// the purchase transaction. A retry with the same key (same caller, same
// content) within the TTL returns the original purchase with
// `Idempotency-Replayed: true` instead of failing with already_owned.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/libchain-registry/internal/domain"
	"github.com/tbourn/libchain-registry/internal/http/middleware"
	"github.com/tbourn/libchain-registry/internal/utils"
)

// PurchaseRequest is the JSON payload for buying content.
type PurchaseRequest struct {
	// Payment in base units; must be at least the price. Overpayment is
	// split like the price.
	Payment WeiAmount `json:"payment" swaggertype:"string" example:"1000000000000000000"`
}

// PurchaseResponse is a purchase receipt.
type PurchaseResponse struct {
	Purchase *domain.Purchase `json:"purchase"`
	Replayed bool             `json:"replayed"`
}

// PurchaseContent godoc
// @ID          purchaseContent
// @Summary     Purchase content
// @Description Records the caller's purchase and settles the royalty split atomically. Supports idempotency via the Idempotency-Key header.
// @Tags        Purchases
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       X-User-ID        header  string  false "Caller address (header auth mode)"
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    int     true  "Content ID"  minimum(1)
// @Param       body             body    handlers.PurchaseRequest  true  "Payment"
//
// @Success     201  {object} handlers.PurchaseResponse
// @Success     200  {object} handlers.PurchaseResponse "Idempotent replay"
// @Header      200  {string} Idempotency-Replayed "true when served from a previous request"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     402  {object} handlers.ErrorResponse "Payment below price"
// @Failure     404  {object} handlers.ErrorResponse "Not found or deleted"
// @Failure     409  {object} handlers.ErrorResponse "Inactive or already owned"
// @Failure     422  {object} handlers.ErrorResponse "Creator cannot buy own content"
// @Router      /contents/{id}/purchase [post]
func (h *Handlers) PurchaseContent(c *gin.Context) {
	p, okp := caller(c)
	if !okp {
		return
	}
	id, okid := contentID(c)
	if !okid {
		return
	}
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	payment, err := utils.ParseWei(string(req.Payment))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "payment: "+err.Error())
		return
	}

	key, _ := middleware.GetIdempotencyKey(c)
	rec, replayed, err := h.opt.Registry.PurchaseIdempotent(c.Request.Context(), p, id, payment, key, h.opt.IdempotencyTTL)
	if err != nil {
		failErr(c, err)
		return
	}
	if replayed {
		c.Header("Idempotency-Replayed", "true")
		ok(c, http.StatusOK, PurchaseResponse{Purchase: rec, Replayed: true})
		return
	}
	ok(c, http.StatusCreated, PurchaseResponse{Purchase: rec})
}

// SalesResponse lists the purchases of one record.
type SalesResponse struct {
	ContentID uint64            `json:"content_id" example:"42"`
	Sales     []domain.Purchase `json:"sales"`
}

// ListSales godoc
// @ID          listSales
// @Summary     Sales of my content
// @Description Creator only. Purchases of the record with their royalty split, oldest first.
// @Tags        Purchases
// @Produce     json
// @Security    BearerAuth
//
// @Param       X-User-ID  header  string  false "Caller address (header auth mode)"
// @Param       id         path    int     true  "Content ID"  minimum(1)
//
// @Success     200  {object} handlers.SalesResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     403  {object} handlers.ErrorResponse "Not the creator"
// @Failure     404  {object} handlers.ErrorResponse "Not found or deleted"
// @Router      /contents/{id}/sales [get]
func (h *Handlers) ListSales(c *gin.Context) {
	p, okp := caller(c)
	if !okp {
		return
	}
	id, okid := contentID(c)
	if !okid {
		return
	}
	sales, err := h.opt.Registry.Sales(c.Request.Context(), p, id)
	if err != nil {
		failErr(c, err)
		return
	}
	if sales == nil {
		sales = []domain.Purchase{}
	}
	ok(c, http.StatusOK, SalesResponse{ContentID: id, Sales: sales})
}
