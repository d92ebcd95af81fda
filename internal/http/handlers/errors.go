// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are stable, lowercase snake_case strings returned in every error
// envelope next to the HTTP status. Generic codes mirror HTTP semantics;
// domain codes name registry outcomes a client should branch on (already
// owned, insufficient payment, self purchase, ...).
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "insufficient_payment",
//	  "message": "payment below price"
//	}
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/libchain-registry/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeTooLarge         = "payload_too_large"
	ErrCodeTimeout          = "timeout"
	ErrCodeUnavailable      = "unavailable"
	ErrCodeBadGateway       = "bad_gateway"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeContentInactive     = "content_inactive"
	ErrCodeAlreadyOwned        = "already_owned"
	ErrCodeInsufficientPayment = "insufficient_payment"
	ErrCodeSelfPurchase        = "self_purchase"
	ErrCodeAccessDenied        = "access_denied"
	ErrCodeInvalidGrant        = "invalid_grant"
	ErrCodeLoginFailed         = "login_failed"
)

// errorMapping ties a service sentinel to its HTTP rendering.
type errorMapping struct {
	err    error
	status int
	code   string
}

// serviceErrors is checked in order; the first errors.Is match wins.
var serviceErrors = []errorMapping{
	{services.ErrValidation, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrUnauthorized, http.StatusForbidden, ErrCodeForbidden},
	{services.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrInactive, http.StatusConflict, ErrCodeContentInactive},
	{services.ErrAlreadyOwned, http.StatusConflict, ErrCodeAlreadyOwned},
	{services.ErrInsufficientPayment, http.StatusPaymentRequired, ErrCodeInsufficientPayment},
	{services.ErrSelfPurchase, http.StatusUnprocessableEntity, ErrCodeSelfPurchase},
	{services.ErrAccessDenied, http.StatusForbidden, ErrCodeAccessDenied},
}

// failErr renders err. Registry sentinels keep their message; anything
// else becomes an opaque 500 (or 504 on deadline) and is logged by fail.
func failErr(c *gin.Context, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			fail(c, m.status, m.code, err.Error())
			return
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		fail(c, http.StatusGatewayTimeout, ErrCodeTimeout, "request timed out")
		return
	}
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
}
