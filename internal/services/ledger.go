// Package services – Ledger
//
// The Ledger owns persisted content and purchase records and gives every
// mutation an atomic read-modify-write: Write holds a single writer lock for
// the life of one database transaction, so the existence, ownership and
// state checks of an operation observe the same snapshot as its update.
// SQLite admits one writer at a time anyway; serializing in-process keeps
// transactions from failing with SQLITE_BUSY under load.
//
// Reads do not take the lock and run under WAL snapshot isolation.
package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/libchain-registry/internal/domain"
	"github.com/tbourn/libchain-registry/internal/identity"
	"github.com/tbourn/libchain-registry/internal/repo"
	"github.com/tbourn/libchain-registry/internal/utils"
)

// Ledger is the transactional store of content and purchase records.
type Ledger struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	mu  sync.Mutex
	now func() time.Time
}

// NewLedger returns a Ledger over db.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{DB: db, now: time.Now}
}

// Write runs fn inside a transaction while holding the writer lock. An
// error returned by fn rolls the transaction back.
func (l *Ledger) Write(ctx context.Context, fn func(tx *gorm.DB) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.DB.WithContext(ctx).Transaction(fn)
}

// CreateContent validates c and inserts it as active and not deleted. The
// store assigns c.ID.
func (l *Ledger) CreateContent(ctx context.Context, c *domain.Content) error {
	if c.RoyaltyPercentage < 0 || c.RoyaltyPercentage > 100 {
		return invalidf("royalty_percentage: must be between 0 and 100")
	}
	if err := utils.CheckWei(c.Price); err != nil {
		return invalid(fmt.Errorf("price: %w", err))
	}
	creator, err := identity.Normalize(c.Creator)
	if err != nil {
		return invalid(fmt.Errorf("creator: %w", err))
	}
	c.Creator = creator
	c.IsActive = true
	c.IsDeleted = false
	c.IsFlagged = false
	c.FlagReason = ""
	c.RemovedAt = nil

	return l.Write(ctx, func(tx *gorm.DB) error {
		return repo.CreateContent(ctx, tx, c)
	})
}

// GetContent returns the record with id, tombstones included, or
// ErrNotFound.
func (l *Ledger) GetContent(ctx context.Context, id uint64) (*domain.Content, error) {
	c, err := repo.GetContent(ctx, l.DB, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return c, nil
}

// ListContent lazily yields the records matching f in id order. The
// sequence is finite and each range over it restarts from f.AfterID.
func (l *Ledger) ListContent(ctx context.Context, f repo.ContentFilter) iter.Seq2[domain.Content, error] {
	return repo.IterContent(ctx, l.DB, f, repo.DefaultIterBatch)
}

// SetActive sets the active flag. Only the creator may call it and the
// record must not be deleted.
func (l *Ledger) SetActive(ctx context.Context, id uint64, actor string, value bool) (*domain.Content, error) {
	return l.setActive(ctx, id, actor, func(bool) bool { return value })
}

// ToggleActive flips the active flag under the same rules as SetActive.
func (l *Ledger) ToggleActive(ctx context.Context, id uint64, actor string) (*domain.Content, error) {
	return l.setActive(ctx, id, actor, func(cur bool) bool { return !cur })
}

func (l *Ledger) setActive(ctx context.Context, id uint64, actor string, next func(bool) bool) (*domain.Content, error) {
	var out *domain.Content
	err := l.Write(ctx, func(tx *gorm.DB) error {
		c, err := loadLive(ctx, tx, id)
		if err != nil {
			return err
		}
		if !identity.Same(actor, c.Creator) {
			return ErrUnauthorized
		}
		value := next(c.IsActive)
		if value == c.IsActive {
			out = c
			return nil
		}
		if err := repo.SetContentActive(ctx, tx, id, value); err != nil {
			return mapNotFound(err)
		}
		out, err = repo.GetContent(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkDeleted tombstones the record. Only the creator may delete; a second
// delete is a successful no-op and reports changed == false.
func (l *Ledger) MarkDeleted(ctx context.Context, id uint64, actor string) (c *domain.Content, changed bool, err error) {
	err = l.Write(ctx, func(tx *gorm.DB) error {
		cur, err := repo.GetContent(ctx, tx, id)
		if err != nil {
			return mapNotFound(err)
		}
		if !identity.Same(actor, cur.Creator) {
			return ErrUnauthorized
		}
		if cur.IsDeleted {
			c = cur
			return nil
		}
		if err := repo.MarkContentDeleted(ctx, tx, id, l.now()); err != nil {
			return mapNotFound(err)
		}
		changed = true
		c, err = repo.GetContent(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return c, changed, nil
}

// SetFlag sets or clears the moderation flag on a live record. Authorization
// is the caller's concern.
func (l *Ledger) SetFlag(ctx context.Context, id uint64, flagged bool, reason string) (*domain.Content, error) {
	var out *domain.Content
	err := l.Write(ctx, func(tx *gorm.DB) error {
		if _, err := loadLive(ctx, tx, id); err != nil {
			return err
		}
		if err := repo.SetContentFlag(ctx, tx, id, flagged, reason); err != nil {
			return mapNotFound(err)
		}
		var err error
		out, err = repo.GetContent(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecordPurchase inserts p for content c inside tx. It fails with
// ErrNotFound or ErrInactive when c cannot be bought and with
// ErrAlreadyOwned when the buyer already holds a purchase; the unique index
// backs the check against concurrent writers.
func (l *Ledger) RecordPurchase(ctx context.Context, tx *gorm.DB, c *domain.Content, p *domain.Purchase) error {
	if err := purchasable(c); err != nil {
		return err
	}
	owned, err := repo.HasPurchase(ctx, tx, c.ID, p.Buyer)
	if err != nil {
		return err
	}
	if owned {
		return ErrAlreadyOwned
	}
	p.ContentID = c.ID
	if err := repo.InsertPurchase(ctx, tx, p); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return ErrAlreadyOwned
		}
		return err
	}
	return nil
}

// purchasable maps the record state to the purchase error taxonomy.
func purchasable(c *domain.Content) error {
	switch {
	case c.IsDeleted:
		return ErrNotFound
	case !c.IsActive, c.IsFlagged:
		return ErrInactive
	default:
		return nil
	}
}

// loadLive fetches a record that exists and is not tombstoned.
func loadLive(ctx context.Context, db *gorm.DB, id uint64) (*domain.Content, error) {
	c, err := repo.GetContent(ctx, db, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if c.IsDeleted {
		return nil, ErrNotFound
	}
	return c, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
