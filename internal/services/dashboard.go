// Package services – Dashboard
//
// Per-principal views: the creator's uploads, the buyer's library and the
// summary statistics shown on the dashboard. Deleted records appear in none
// of them; earnings and balances come from the payout ledger.
package services

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/libchain-registry/internal/domain"
	"github.com/tbourn/libchain-registry/internal/repo"
	"github.com/tbourn/libchain-registry/internal/utils"
)

// Stats summarizes one principal's activity.
type Stats struct {
	TotalUploads   int64           `json:"total_uploads"`
	ActiveCount    int64           `json:"active_count"`
	TotalPurchased int64           `json:"total_purchased"`
	SalesCount     int64           `json:"sales_count"`
	Earnings       decimal.Decimal `json:"earnings"       swaggertype:"string" example:"20"`
	EarningsTokens string          `json:"earnings_tokens" example:"0.00000000000000002"`
	Balance        decimal.Decimal `json:"balance"        swaggertype:"string" example:"20"`
	BalanceTokens  string          `json:"balance_tokens" example:"0.00000000000000002"`
}

// Dashboard reads per-principal views.
type Dashboard struct {
	DB *gorm.DB
}

// Stats computes the dashboard summary for p.
func (d *Dashboard) Stats(ctx context.Context, p string) (*Stats, error) {
	tr := otel.Tracer("services/Dashboard")
	ctx, span := tr.Start(ctx, "Stats", trace.WithAttributes(attribute.String("principal", p)))
	defer span.End()

	who, err := principal(p)
	if err != nil {
		return nil, err
	}

	var s Stats
	if s.TotalUploads, err = repo.CountContent(ctx, d.DB, repo.ContentFilter{Creator: who}); err != nil {
		return nil, err
	}
	if s.ActiveCount, err = repo.CountContent(ctx, d.DB, repo.ContentFilter{Creator: who, ActiveOnly: true}); err != nil {
		return nil, err
	}
	if s.TotalPurchased, err = repo.CountPurchasesByBuyer(ctx, d.DB, who); err != nil {
		return nil, err
	}
	if s.SalesCount, err = repo.CountSalesByCreator(ctx, d.DB, who); err != nil {
		return nil, err
	}
	if _, s.Earnings, err = repo.PayoutTotals(ctx, d.DB, who, domain.RoleCreator); err != nil {
		return nil, err
	}
	if s.Balance, err = repo.GetBalance(ctx, d.DB, who); err != nil {
		return nil, err
	}
	s.EarningsTokens = utils.FormatUnits(s.Earnings, utils.TokenDecimals)
	s.BalanceTokens = utils.FormatUnits(s.Balance, utils.TokenDecimals)
	return &s, nil
}

// Uploads pages p's own records, active and inactive, newest first.
func (d *Dashboard) Uploads(ctx context.Context, p string, page, pageSize int) ([]domain.Content, int64, error) {
	who, err := principal(p)
	if err != nil {
		return nil, 0, err
	}
	return d.page(ctx, repo.ContentFilter{Creator: who, Desc: true}, page, pageSize)
}

// Library pages the records p purchased, newest first.
func (d *Dashboard) Library(ctx context.Context, p string, page, pageSize int) ([]domain.Content, int64, error) {
	who, err := principal(p)
	if err != nil {
		return nil, 0, err
	}
	return d.page(ctx, repo.ContentFilter{PurchasedBy: who, Desc: true}, page, pageSize)
}

func (d *Dashboard) page(ctx context.Context, f repo.ContentFilter, page, pageSize int) ([]domain.Content, int64, error) {
	pg := utils.Page{Number: page, Size: pageSize}.Normalize()
	total, err := repo.CountContent(ctx, d.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Content{}, 0, nil
	}
	items, err := repo.ListContentPage(ctx, d.DB, f, pg.Offset(), pg.Size)
	return items, total, err
}
