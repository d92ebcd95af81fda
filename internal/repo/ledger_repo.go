// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the royalty
// ledger: per-account balances and the append-only payout entries.
//
// Amounts are arbitrary-precision decimals stored as TEXT, so arithmetic
// happens in Go. CreditBalance is a read-modify-write and must run inside
// the purchase transaction, which the service layer serializes.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/libchain-registry/internal/domain"
)

// GetBalance returns the credited amount for account, zero if the account
// has never been credited.
func GetBalance(ctx context.Context, db *gorm.DB, account string) (decimal.Decimal, error) {
	var rows []domain.Balance
	err := db.WithContext(ctx).Where("account = ?", account).Limit(1).Find(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}
	if len(rows) == 0 {
		return decimal.Zero, nil
	}
	return rows[0].Amount, nil
}

// CreditBalance adds amount to account's balance, creating the row if
// needed, and returns the new balance.
func CreditBalance(ctx context.Context, db *gorm.DB, account string, amount decimal.Decimal) (decimal.Decimal, error) {
	cur, err := GetBalance(ctx, db, account)
	if err != nil {
		return decimal.Zero, err
	}
	next := cur.Add(amount)
	row := &domain.Balance{Account: account, Amount: next, UpdatedAt: time.Now().UTC()}
	err = db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return next, nil
}

// AppendPayoutEntry inserts one payout credit.
func AppendPayoutEntry(ctx context.Context, db *gorm.DB, e *domain.PayoutEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Omit(clause.Associations).Create(e).Error
}

// ListPayoutEntries returns the entries produced by one purchase, creator
// entry first.
func ListPayoutEntries(ctx context.Context, db *gorm.DB, purchaseID string) ([]domain.PayoutEntry, error) {
	var out []domain.PayoutEntry
	err := db.WithContext(ctx).
		Where("purchase_id = ?", purchaseID).
		Order("role ASC, id ASC").
		Find(&out).Error
	return out, err
}

// PayoutTotals returns how many entries account received in role and their
// sum.
func PayoutTotals(ctx context.Context, db *gorm.DB, account, role string) (int64, decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := db.WithContext(ctx).
		Model(&domain.PayoutEntry{}).
		Where("account = ? AND role = ?", account, role).
		Pluck("amount", &amounts).Error
	if err != nil {
		return 0, decimal.Zero, err
	}
	return int64(len(amounts)), decimal.Sum(decimal.Zero, amounts...), nil
}
