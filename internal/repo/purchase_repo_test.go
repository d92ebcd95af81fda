package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tbourn/libchain-registry/internal/domain"
)

func newPurchase(contentID uint64, buyer string) *domain.Purchase {
	return &domain.Purchase{
		ContentID:     contentID,
		Buyer:         buyer,
		Amount:        decimal.NewFromInt(100),
		CreatorShare:  decimal.NewFromInt(20),
		PlatformShare: decimal.NewFromInt(80),
	}
}

func TestInsertPurchase_InsertIfAbsent(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()
	c := seedContent(t, db, creatorA)

	p := newPurchase(c.ID, buyerC)
	if err := InsertPurchase(ctx, db, p); err != nil {
		t.Fatalf("InsertPurchase: %v", err)
	}
	if p.ID == "" || p.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be set: %+v", p)
	}

	if err := InsertPurchase(ctx, db, newPurchase(c.ID, buyerC)); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// Another buyer is independent.
	if err := InsertPurchase(ctx, db, newPurchase(c.ID, creatorB)); err != nil {
		t.Fatalf("second buyer: %v", err)
	}

	list, err := ListPurchasesForContent(ctx, db, c.ID)
	if err != nil || len(list) != 2 {
		t.Fatalf("expected 2 purchases, got %d (%v)", len(list), err)
	}
	got := list[0]
	if got.Buyer != buyerC {
		got = list[1]
	}
	if got.ID != p.ID || !got.CreatorShare.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected purchase: %+v", got)
	}
	byID, err := GetPurchaseByID(ctx, db, p.ID)
	if err != nil || byID.Buyer != buyerC {
		t.Fatalf("GetPurchaseByID: %+v (%v)", byID, err)
	}
}

func TestInsertPurchase_UnknownContentViolatesFK(t *testing.T) {
	db := newLedgerDB(t)
	err := InsertPurchase(context.Background(), db, newPurchase(404, buyerC))
	if err == nil {
		t.Fatalf("expected FK violation for unknown content")
	}
	if errors.Is(err, ErrDuplicate) {
		t.Fatalf("FK violation must not map to ErrDuplicate")
	}
}

func TestHasPurchase(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()
	c := seedContent(t, db, creatorA)

	ok, err := HasPurchase(ctx, db, c.ID, buyerC)
	if err != nil || ok {
		t.Fatalf("expected (false, nil), got (%v, %v)", ok, err)
	}
	if err := InsertPurchase(ctx, db, newPurchase(c.ID, buyerC)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	ok, err = HasPurchase(ctx, db, c.ID, buyerC)
	if err != nil || !ok {
		t.Fatalf("expected (true, nil), got (%v, %v)", ok, err)
	}

	bare := newTestDB(t)
	if _, err := HasPurchase(ctx, bare, 1, buyerC); err == nil {
		t.Fatalf("expected error on missing table")
	}
}

func TestCountPurchasesByBuyer_SkipsTombstones(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()
	a := seedContent(t, db, creatorA)
	b := seedContent(t, db, creatorB)
	for _, id := range []uint64{a.ID, b.ID} {
		if err := InsertPurchase(ctx, db, newPurchase(id, buyerC)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := MarkContentDeleted(ctx, db, b.ID, time.Now()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	n, err := CountPurchasesByBuyer(ctx, db, buyerC)
	if err != nil || n != 1 {
		t.Fatalf("expected 1, got %d (%v)", n, err)
	}

	list, err := ListPurchasesForContent(ctx, db, b.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("purchase records must survive deletion, got %v (%v)", list, err)
	}
}

func TestCountSalesByCreator_IncludesTombstonesAndZeroShares(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()
	a1 := seedContent(t, db, creatorA)
	a2 := seedContent(t, db, creatorA)
	b := seedContent(t, db, creatorB)

	unpaid := newPurchase(a2.ID, buyerC)
	unpaid.CreatorShare = decimal.Zero
	unpaid.PlatformShare = decimal.NewFromInt(100)
	for _, p := range []*domain.Purchase{newPurchase(a1.ID, buyerC), unpaid, newPurchase(b.ID, buyerC)} {
		if err := InsertPurchase(ctx, db, p); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := MarkContentDeleted(ctx, db, a1.ID, time.Now()); err != nil {
		t.Fatalf("delete: %v", err)
	}

	n, err := CountSalesByCreator(ctx, db, creatorA)
	if err != nil || n != 2 {
		t.Fatalf("creator A sales = %d (%v); want 2", n, err)
	}
	if n, _ := CountSalesByCreator(ctx, db, buyerC); n != 0 {
		t.Fatalf("buyer has no sales, got %d", n)
	}
}

func TestCountPurchasesByBuyer_NoTable(t *testing.T) {
	db := newTestDB(t)
	if _, err := CountPurchasesByBuyer(context.Background(), db, buyerC); err == nil {
		t.Fatalf("expected error on missing table")
	}
}
