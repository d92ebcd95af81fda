package services

import (
	"context"
	"errors"
	"testing"
)

func TestDashboard_StatsUploadsLibrary(t *testing.T) {
	r := newTestRegistry(t)
	d := &Dashboard{DB: r.Ledger.DB}
	ctx := context.Background()

	lesson := register(t, r, alice, 1_000_000_000_000_000_000, 50)
	draft := register(t, r, alice, 100, 10)
	gone := register(t, r, alice, 100, 10)
	_, _ = r.ToggleStatus(ctx, alice, draft.ID)

	if _, err := r.Purchase(ctx, bob, lesson.ID, lesson.Price); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if _, err := r.Purchase(ctx, bob, gone.ID, gone.Price); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if _, err := r.Purchase(ctx, carol, lesson.ID, lesson.Price); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	_ = r.DeleteContent(ctx, alice, gone.ID)

	s, err := d.Stats(ctx, alice)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s.TotalUploads != 2 || s.ActiveCount != 1 {
		t.Fatalf("uploads=%d active=%d; want 2/1", s.TotalUploads, s.ActiveCount)
	}
	if s.SalesCount != 3 {
		t.Fatalf("sales=%d; want 3", s.SalesCount)
	}
	// 2 * 0.5 ether + 10 wei.
	if s.Earnings.String() != "1000000000000000010" || !s.Balance.Equal(s.Earnings) {
		t.Fatalf("earnings=%s balance=%s", s.Earnings, s.Balance)
	}
	if s.EarningsTokens != "1.00000000000000001" {
		t.Fatalf("earnings tokens = %s", s.EarningsTokens)
	}

	bs, err := d.Stats(ctx, bob)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if bs.TotalPurchased != 1 || bs.TotalUploads != 0 || bs.BalanceTokens != "0" {
		t.Fatalf("buyer stats: %+v", bs)
	}

	uploads, total, err := d.Uploads(ctx, alice, 1, 10)
	if err != nil || total != 2 || len(uploads) != 2 || uploads[0].ID != draft.ID {
		t.Fatalf("uploads: %v total=%d err=%v", uploads, total, err)
	}

	lib, total, err := d.Library(ctx, bob, 1, 10)
	if err != nil || total != 1 || len(lib) != 1 || lib[0].ID != lesson.ID {
		t.Fatalf("library excludes deleted: %v total=%d err=%v", lib, total, err)
	}

	empty, total, err := d.Library(ctx, admin, 0, 0)
	if err != nil || total != 0 || empty == nil || len(empty) != 0 {
		t.Fatalf("empty library: %v %d %v", empty, total, err)
	}

	if _, err := d.Stats(ctx, "nobody"); !errors.Is(err, ErrValidation) {
		t.Fatalf("invalid principal: %v", err)
	}
}

func TestDashboard_SalesCountIncludesUnpaidShares(t *testing.T) {
	r := newTestRegistry(t)
	d := &Dashboard{DB: r.Ledger.DB}
	ctx := context.Background()

	noRoyalty := register(t, r, alice, 100, 0)
	free := register(t, r, alice, 0, 50)
	for _, c := range []uint64{noRoyalty.ID, free.ID} {
		if _, err := r.Purchase(ctx, bob, c, wei(100)); err != nil {
			t.Fatalf("purchase %d: %v", c, err)
		}
	}

	s, err := d.Stats(ctx, alice)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s.SalesCount != 2 {
		t.Fatalf("sales=%d; want 2", s.SalesCount)
	}
	// Free content paid 100 at 50%; the zero-royalty sale credits nothing.
	if !s.Earnings.Equal(wei(50)) {
		t.Fatalf("earnings=%s; want 50", s.Earnings)
	}
}
