// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/libchain-registry/internal/domain"
)

// ContentStats returns aggregate metadata for the rows matching f: the total
// number of rows and the maximum UpdatedAt timestamp among those rows.
//
// When nothing matches, the returned count is 0 and maxUpdatedAt is nil.
// Every mutation (toggle, delete, moderation) bumps updated_at, so the pair
// changes whenever any listed row changes state.
func ContentStats(ctx context.Context, db *gorm.DB, f ContentFilter) (count int64, maxUpdatedAt *time.Time, err error) {
	q := f.apply(db.WithContext(ctx).Model(&domain.Content{}))

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	q = f.apply(db.WithContext(ctx).Model(&domain.Content{}))
	if err = q.Select("contents.updated_at").Order("contents.updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
