package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tbourn/libchain-registry/internal/domain"
	"github.com/tbourn/libchain-registry/internal/repo"
)

// DefaultIdempotencyTTL bounds how long a purchase retry replays.
const DefaultIdempotencyTTL = 24 * time.Hour

// PurchaseIdempotent is Purchase keyed by a client Idempotency-Key. The
// first successful request stores the key in the purchase transaction;
// retries with the same (buyer, content, key) within ttl return the
// original purchase with replayed == true. An empty key behaves like
// Purchase.
func (r *Registry) PurchaseIdempotent(ctx context.Context, buyer string, contentID uint64, payment decimal.Decimal, key string, ttl time.Duration) (p *domain.Purchase, replayed bool, err error) {
	key = strings.TrimSpace(key)
	if key == "" {
		p, err = r.Purchase(ctx, buyer, contentID, payment)
		return p, false, err
	}
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	payer, err := principal(buyer)
	if err != nil {
		return nil, false, err
	}

	if prev, err := r.replay(ctx, payer, contentID, key); err != nil || prev != nil {
		return prev, prev != nil, err
	}

	p, err = r.purchase(ctx, payer, contentID, payment, func(tx *gorm.DB, rec *domain.Purchase) error {
		if err := repo.ReleaseExpiredKey(ctx, tx, payer, contentID, key, now()); err != nil {
			return err
		}
		_, err := repo.CreateIdempotency(ctx, tx, payer, contentID, key, rec.ID, http.StatusCreated, ttl)
		return err
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// The key is already bound to another purchase; replay it.
		if prev, rerr := r.replay(ctx, payer, contentID, key); rerr == nil && prev != nil {
			return prev, true, nil
		}
	}
	return p, false, err
}

// KnownIdempotencyKey reports whether key is live for (buyer, content).
func (r *Registry) KnownIdempotencyKey(ctx context.Context, buyer string, contentID uint64, key string) bool {
	payer, err := principal(buyer)
	if err != nil {
		return false
	}
	rec, err := repo.GetIdempotency(ctx, r.Ledger.DB, payer, contentID, key, now())
	return err == nil && rec != nil
}

// PurgeIdempotency drops expired keys.
func (r *Registry) PurgeIdempotency(ctx context.Context) (int64, error) {
	var n int64
	err := r.Ledger.Write(ctx, func(tx *gorm.DB) error {
		var err error
		n, err = repo.PurgeExpiredIdempotency(ctx, tx, now())
		return err
	})
	return n, err
}

func (r *Registry) replay(ctx context.Context, payer string, contentID uint64, key string) (*domain.Purchase, error) {
	rec, err := repo.GetIdempotency(ctx, r.Ledger.DB, payer, contentID, key, now())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p, err := repo.GetPurchaseByID(ctx, r.Ledger.DB, rec.PurchaseID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return p, nil
}
