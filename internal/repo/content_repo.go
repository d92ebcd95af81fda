// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Content
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no authorization and no
// business rules, only persistence and query composition. Creator checks,
// lifecycle transitions and purchasability live in the services package.
//
// Error semantics:
//   - When a content row is not found (or is already tombstoned for the
//     mutating helpers), functions return gorm.ErrRecordNotFound, exported
//     here as ErrNotFound.
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - CreateContent(ctx, db, c) -> error
//     Inserts a new row; the store assigns the next id into c.ID.
//
//   - GetContent(ctx, db, id) -> *domain.Content, error
//     Fetches a row by id, tombstones included.
//
//   - CountContent / ListContentPage(ctx, db, filter, ...)
//     Offset pagination for HTTP listings, newest (highest id) first.
//
//   - IterContent(ctx, db, filter, batch) -> iter.Seq2[domain.Content, error]
//     Lazy keyset iteration, restartable from any AfterID.
//
//   - SetContentActive / MarkContentDeleted / SetContentFlag
//     Single-row lifecycle updates guarded by is_deleted = false.
package repo

import (
	"context"
	"iter"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/libchain-registry/internal/domain"
)

// DefaultIterBatch is the keyset page size used by IterContent when the
// caller passes batch <= 0.
const DefaultIterBatch = 100

// ContentFilter is the listing predicate. The zero value selects every
// non-deleted row regardless of active or moderation state.
type ContentFilter struct {
	// Creator restricts to rows owned by this principal.
	Creator string
	// PurchasedBy restricts to rows this principal holds a purchase for.
	PurchasedBy string
	// IDs restricts to an explicit id set (search hits).
	IDs []uint64
	// ActiveOnly drops inactive rows.
	ActiveOnly bool
	// ExcludeFlagged drops rows under a moderation flag.
	ExcludeFlagged bool
	// IncludeDeleted keeps tombstones. No HTTP listing sets this.
	IncludeDeleted bool

	// AfterID is the exclusive keyset cursor for IterContent.
	AfterID uint64
	// Desc iterates and pages from the highest id down.
	Desc bool
	// Match is an optional in-memory predicate applied by IterContent after
	// the SQL filter. Count and page queries ignore it.
	Match func(domain.Content) bool
}

// Discovery is the filter for public listings: active, not deleted, not
// flagged, newest first.
func Discovery() ContentFilter {
	return ContentFilter{ActiveOnly: true, ExcludeFlagged: true, Desc: true}
}

func (f ContentFilter) apply(q *gorm.DB) *gorm.DB {
	if !f.IncludeDeleted {
		q = q.Where("contents.is_deleted = ?", false)
	}
	if f.ActiveOnly {
		q = q.Where("contents.is_active = ?", true)
	}
	if f.ExcludeFlagged {
		q = q.Where("contents.is_flagged = ?", false)
	}
	if f.Creator != "" {
		q = q.Where("contents.creator = ?", f.Creator)
	}
	if f.IDs != nil {
		q = q.Where("contents.id IN ?", f.IDs)
	}
	if f.PurchasedBy != "" {
		q = q.Where("EXISTS (SELECT 1 FROM purchases p WHERE p.content_id = contents.id AND p.buyer = ?)", f.PurchasedBy)
	}
	return q
}

func (f ContentFilter) order() string {
	if f.Desc {
		return "contents.id DESC"
	}
	return "contents.id ASC"
}

// CreateContent inserts c. The id is assigned by the store (monotonic,
// never reused) and written back into c.ID.
func CreateContent(ctx context.Context, db *gorm.DB, c *domain.Content) error {
	now := time.Now().UTC()
	c.ID = 0
	c.CreatedAt = now
	c.UpdatedAt = now
	return db.WithContext(ctx).Create(c).Error
}

// GetContent fetches a single row by id, including tombstoned rows. If the
// record does not exist it returns ErrNotFound.
func GetContent(ctx context.Context, db *gorm.DB, id uint64) (*domain.Content, error) {
	var c domain.Content
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CountContent returns the number of rows matching f.
func CountContent(ctx context.Context, db *gorm.DB, f ContentFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.Content{})).Count(&total).Error
	return total, err
}

// ListContentPage returns a page of rows matching f ordered by id.
// The caller computes offset and limit (e.g., (page-1)*pageSize).
func ListContentPage(ctx context.Context, db *gorm.DB, f ContentFilter, offset, limit int) ([]domain.Content, error) {
	var out []domain.Content
	err := f.apply(db.WithContext(ctx).Model(&domain.Content{})).
		Order(f.order()).
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// IterContent lazily walks every row matching f in id order, fetching
// batch rows per query. Each call of the returned sequence starts over
// from f.AfterID. Iteration stops at the first DB error, which is yielded
// with a zero Content.
func IterContent(ctx context.Context, db *gorm.DB, f ContentFilter, batch int) iter.Seq2[domain.Content, error] {
	if batch <= 0 {
		batch = DefaultIterBatch
	}
	return func(yield func(domain.Content, error) bool) {
		cursor := f.AfterID
		for {
			q := f.apply(db.WithContext(ctx).Model(&domain.Content{}))
			switch {
			case !f.Desc:
				q = q.Where("contents.id > ?", cursor)
			case cursor > 0:
				q = q.Where("contents.id < ?", cursor)
			}

			var page []domain.Content
			if err := q.Order(f.order()).Limit(batch).Find(&page).Error; err != nil {
				yield(domain.Content{}, err)
				return
			}
			for _, c := range page {
				cursor = c.ID
				if f.Match != nil && !f.Match(c) {
					continue
				}
				if !yield(c, nil) {
					return
				}
			}
			if len(page) < batch || (f.Desc && cursor <= 1) {
				return
			}
		}
	}
}

// SetContentActive sets is_active on a live row. Tombstoned or missing rows
// yield ErrNotFound.
func SetContentActive(ctx context.Context, db *gorm.DB, id uint64, active bool) error {
	return updateLive(ctx, db, id, map[string]any{"is_active": active})
}

// MarkContentDeleted tombstones a live row. A row already tombstoned yields
// ErrNotFound; callers that want idempotent deletes check state first.
func MarkContentDeleted(ctx context.Context, db *gorm.DB, id uint64, at time.Time) error {
	return updateLive(ctx, db, id, map[string]any{
		"is_deleted": true,
		"removed_at": at.UTC(),
	})
}

// SetContentFlag sets or clears the moderation flag on a live row.
func SetContentFlag(ctx context.Context, db *gorm.DB, id uint64, flagged bool, reason string) error {
	if !flagged {
		reason = ""
	}
	return updateLive(ctx, db, id, map[string]any{
		"is_flagged":  flagged,
		"flag_reason": reason,
	})
}

func updateLive(ctx context.Context, db *gorm.DB, id uint64, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Content{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
