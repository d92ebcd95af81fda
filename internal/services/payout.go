// Package services – PayoutEngine
//
// The engine splits each purchase payment into a creator share and a
// platform share and hands the credits to a Settlement inside the purchase
// transaction:
//
//	creator  = floor(amount * royalty / 100)
//	platform = amount - creator
//
// The platform share is credited to the configured platform account, so
// the credits always sum to the amount paid. Settlement is all or nothing:
// any error aborts the surrounding transaction and with it the purchase
// record.
package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tbourn/libchain-registry/internal/domain"
	"github.com/tbourn/libchain-registry/internal/identity"
	"github.com/tbourn/libchain-registry/internal/repo"
	"github.com/tbourn/libchain-registry/internal/utils"
)

var hundred = decimal.NewFromInt(100)

// Shares is the result of splitting one payment.
type Shares struct {
	Creator  decimal.Decimal `json:"creator"  swaggertype:"string"`
	Platform decimal.Decimal `json:"platform" swaggertype:"string"`
}

// Split computes the royalty split of amount. amount must be a
// non-negative whole number of base units and royalty within [0,100].
func Split(amount decimal.Decimal, royalty int) (Shares, error) {
	if err := utils.CheckWei(amount); err != nil {
		return Shares{}, invalid(fmt.Errorf("amount: %w", err))
	}
	if royalty < 0 || royalty > 100 {
		return Shares{}, invalidf("royalty_percentage: must be between 0 and 100")
	}
	creator, _ := amount.Mul(decimal.NewFromInt(int64(royalty))).QuoRem(hundred, 0)
	return Shares{Creator: creator, Platform: amount.Sub(creator)}, nil
}

// Credit is one payee line of a settlement.
type Credit struct {
	Account string
	Role    string
	Amount  decimal.Decimal
}

// SettlementRequest describes one payment to distribute.
type SettlementRequest struct {
	PurchaseID string
	Payer      string
	Amount     decimal.Decimal
	Credits    []Credit
}

// Settlement applies every credit of a request or none of them. tx is the
// purchase transaction; implementations must not perform network I/O.
type Settlement interface {
	Settle(ctx context.Context, tx *gorm.DB, req SettlementRequest) error
}

// LedgerSettlement credits balances and appends payout entries in the
// registry's own database.
type LedgerSettlement struct{}

// Settle checks that credits sum to the amount, then records each non-zero
// credit.
func (LedgerSettlement) Settle(ctx context.Context, tx *gorm.DB, req SettlementRequest) error {
	total := decimal.Zero
	for _, c := range req.Credits {
		if c.Amount.IsNegative() {
			return fmt.Errorf("settlement: negative credit for %s", c.Role)
		}
		total = total.Add(c.Amount)
	}
	if !total.Equal(req.Amount) {
		return fmt.Errorf("settlement: credits %s do not sum to amount %s", total, req.Amount)
	}

	for _, c := range req.Credits {
		if c.Amount.IsZero() {
			continue
		}
		if _, err := repo.CreditBalance(ctx, tx, c.Account, c.Amount); err != nil {
			return fmt.Errorf("settlement: credit %s: %w", c.Role, err)
		}
		entry := &domain.PayoutEntry{
			PurchaseID: req.PurchaseID,
			Account:    c.Account,
			Role:       c.Role,
			Amount:     c.Amount,
		}
		if err := repo.AppendPayoutEntry(ctx, tx, entry); err != nil {
			return fmt.Errorf("settlement: entry %s: %w", c.Role, err)
		}
	}
	return nil
}

// PayoutEngine computes splits and drives the Settlement.
type PayoutEngine struct {
	Settlement      Settlement
	PlatformAccount string
}

// NewPayoutEngine returns an engine crediting the platform share to
// platformAccount (the zero address when empty or invalid). A nil
// settlement selects LedgerSettlement.
func NewPayoutEngine(platformAccount string, s Settlement) *PayoutEngine {
	acct, err := identity.Normalize(platformAccount)
	if err != nil {
		acct = identity.ZeroAddress
	}
	if s == nil {
		s = LedgerSettlement{}
	}
	return &PayoutEngine{Settlement: s, PlatformAccount: acct}
}

// Quote splits a payment for content c.
func (e *PayoutEngine) Quote(c *domain.Content, amount decimal.Decimal) (Shares, error) {
	return Split(amount, c.RoyaltyPercentage)
}

// Settle distributes the shares recorded on p to c's creator and the
// platform inside tx.
func (e *PayoutEngine) Settle(ctx context.Context, tx *gorm.DB, c *domain.Content, p *domain.Purchase) error {
	req := SettlementRequest{
		PurchaseID: p.ID,
		Payer:      p.Buyer,
		Amount:     p.Amount,
		Credits: []Credit{
			{Account: c.Creator, Role: domain.RoleCreator, Amount: p.CreatorShare},
			{Account: e.PlatformAccount, Role: domain.RolePlatform, Amount: p.PlatformShare},
		},
	}
	if err := e.Settlement.Settle(ctx, tx, req); err != nil {
		return err
	}
	for _, cr := range req.Credits {
		if cr.Amount.IsPositive() {
			payoutCredits.WithLabelValues(cr.Role).Inc()
		}
	}
	return nil
}
