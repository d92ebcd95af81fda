package repo

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tbourn/libchain-registry/internal/domain"
)

func TestGetBalance_ZeroForUnknownAccount(t *testing.T) {
	db := newLedgerDB(t)
	b, err := GetBalance(context.Background(), db, creatorA)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if !b.IsZero() {
		t.Fatalf("expected zero, got %s", b)
	}
}

func TestCreditBalance_AccumulatesExactly(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()

	// 1.5 ETH in wei twice, well beyond int64 when summed many times.
	wei := decimal.RequireFromString("1500000000000000000")
	for i := 0; i < 8; i++ {
		if _, err := CreditBalance(ctx, db, creatorA, wei); err != nil {
			t.Fatalf("credit %d: %v", i, err)
		}
	}
	got, err := GetBalance(ctx, db, creatorA)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	want := decimal.RequireFromString("12000000000000000000")
	if !got.Equal(want) {
		t.Fatalf("balance = %s; want %s", got, want)
	}

	var rows int64
	db.Model(&domain.Balance{}).Count(&rows)
	if rows != 1 {
		t.Fatalf("expected a single balance row, got %d", rows)
	}
}

func TestPayoutEntries_AppendListTotals(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()
	c := seedContent(t, db, creatorA)

	p := newPurchase(c.ID, buyerC)
	if err := InsertPurchase(ctx, db, p); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	entries := []*domain.PayoutEntry{
		{PurchaseID: p.ID, Account: "0x0000000000000000000000000000000000000000", Role: domain.RolePlatform, Amount: p.PlatformShare},
		{PurchaseID: p.ID, Account: creatorA, Role: domain.RoleCreator, Amount: p.CreatorShare},
	}
	for _, e := range entries {
		if err := AppendPayoutEntry(ctx, db, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	list, err := ListPayoutEntries(ctx, db, p.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Role != domain.RoleCreator || list[1].Role != domain.RolePlatform {
		t.Fatalf("unexpected entries: %+v", list)
	}

	n, total, err := PayoutTotals(ctx, db, creatorA, domain.RoleCreator)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if n != 1 || !total.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected (1, 20), got (%d, %s)", n, total)
	}

	bad := &domain.PayoutEntry{PurchaseID: p.ID, Account: creatorA, Role: "tip", Amount: decimal.NewFromInt(1)}
	if err := AppendPayoutEntry(ctx, db, bad); err == nil {
		t.Fatalf("expected CHECK violation for unknown role")
	}
}
