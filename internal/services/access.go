// Package services – AccessEvaluator
//
// The evaluator is the single source of truth for "may principal P retrieve
// the gated handle of content C". Rules, in order:
//
//   - the creator has access while the content is not deleted;
//   - a holder of a purchase record has access, including after deletion,
//     because the purchase was paid for and the tombstone keeps the handle;
//   - nobody else does.
//
// Moderation flags and the active toggle gate discovery and new purchases,
// not existing entitlements.
package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/libchain-registry/internal/domain"
	"github.com/tbourn/libchain-registry/internal/identity"
	"github.com/tbourn/libchain-registry/internal/repo"
)

// Access decision reasons.
const (
	GrantCreator  = "creator"
	GrantPurchase = "purchase"
	GrantNone     = "none"
)

// Decision is the evaluated access of one principal to one record.
type Decision struct {
	Content *domain.Content
	Allowed bool
	// Reason is GrantCreator, GrantPurchase or GrantNone.
	Reason string
}

// Grants applies the access rules to an already-loaded record.
func Grants(c *domain.Content, principal string, purchased bool) (bool, string) {
	if !c.IsDeleted && identity.Same(principal, c.Creator) {
		return true, GrantCreator
	}
	if purchased {
		return true, GrantPurchase
	}
	return false, GrantNone
}

// AccessEvaluator derives access decisions from ledger state.
type AccessEvaluator struct {
	DB *gorm.DB
}

// Decide loads contentID and evaluates principal against it. A missing id
// yields ErrNotFound.
func (a *AccessEvaluator) Decide(ctx context.Context, contentID uint64, principal string) (*Decision, error) {
	tr := otel.Tracer("services/AccessEvaluator")
	ctx, span := tr.Start(ctx, "Decide",
		trace.WithAttributes(
			attribute.Int64("content.id", int64(contentID)),
			attribute.String("principal", principal),
		),
	)
	defer span.End()

	c, err := repo.GetContent(ctx, a.DB, contentID)
	if err != nil {
		return nil, mapNotFound(err)
	}

	// The creator short-circuits the purchase lookup.
	purchased := false
	if c.IsDeleted || !identity.Same(principal, c.Creator) {
		if p, err := identity.Normalize(principal); err == nil {
			if purchased, err = repo.HasPurchase(ctx, a.DB, contentID, p); err != nil {
				return nil, err
			}
		}
	}
	d := &Decision{Content: c}
	d.Allowed, d.Reason = Grants(c, principal, purchased)

	span.SetAttributes(attribute.String("access.reason", d.Reason))
	accessDecisions.WithLabelValues(d.Reason).Inc()
	return d, nil
}

// HasAccess reports whether principal may view contentID.
func (a *AccessEvaluator) HasAccess(ctx context.Context, contentID uint64, principal string) (bool, error) {
	d, err := a.Decide(ctx, contentID, principal)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}
