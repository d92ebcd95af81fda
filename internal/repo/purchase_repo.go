// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Purchase
// model.
//
// Purchases are append-only. Uniqueness of (content_id, buyer) is enforced
// by the ux_purchases_content_buyer index; InsertPurchase turns a collision
// into ErrDuplicate so the service layer can report AlreadyOwned.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/libchain-registry/internal/domain"
)

// InsertPurchase inserts p as an insert-if-absent on (content_id, buyer).
// A missing ID is filled with a UUID and CreatedAt is stamped in UTC.
func InsertPurchase(ctx context.Context, db *gorm.DB, p *domain.Purchase) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(p).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetPurchaseByID fetches a purchase by primary key.
func GetPurchaseByID(ctx context.Context, db *gorm.DB, id string) (*domain.Purchase, error) {
	var p domain.Purchase
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// HasPurchase reports whether buyer holds a purchase for contentID. A miss
// is not an error.
func HasPurchase(ctx context.Context, db *gorm.DB, contentID uint64, buyer string) (bool, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.Purchase{}).
		Where("content_id = ? AND buyer = ?", contentID, buyer).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

// CountPurchasesByBuyer counts purchases held by buyer on content that is
// not tombstoned.
func CountPurchasesByBuyer(ctx context.Context, db *gorm.DB, buyer string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Purchase{}).
		Joins("JOIN contents c ON c.id = purchases.content_id").
		Where("purchases.buyer = ? AND c.is_deleted = ?", buyer, false).
		Count(&total).Error
	return total, err
}

// CountSalesByCreator counts purchases of creator's records, tombstoned ones
// included. Free and zero-royalty sales count too.
func CountSalesByCreator(ctx context.Context, db *gorm.DB, creator string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Purchase{}).
		Joins("JOIN contents c ON c.id = purchases.content_id").
		Where("c.creator = ?", creator).
		Count(&total).Error
	return total, err
}

// ListPurchasesForContent returns purchases of contentID ordered
// deterministically (CreatedAt ASC, ID ASC).
func ListPurchasesForContent(ctx context.Context, db *gorm.DB, contentID uint64) ([]domain.Purchase, error) {
	var out []domain.Purchase
	err := db.WithContext(ctx).
		Where("content_id = ?", contentID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}
