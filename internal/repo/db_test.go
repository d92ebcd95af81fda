package repo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tbourn/libchain-registry/internal/domain"
)

func TestOpenSQLite_ErrorOnBadPath(t *testing.T) {
	base := t.TempDir()
	bad := filepath.Join(base, "does-not-exist", "app.db")

	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("expected error opening %q, got db=%v err=%v", bad, db, err)
	}

	// Be tolerant across platforms/drivers:
	// - Windows: *os.PathError ("CreateFile â€¦ cannot find the file specified")
	// - SQLite:  "unable to open database file" / "out of memory (14)"
	// - Unix:    "no such file or directory"
	lower := strings.ToLower(err.Error())
	if !(os.IsNotExist(err) ||
		strings.Contains(lower, "unable to open database file") ||
		strings.Contains(lower, "no such file or directory") ||
		strings.Contains(lower, "out of memory")) {
		t.Fatalf("unexpected error opening %q: %v", bad, err)
	}
}

func TestOpenSQLite_SetsPragmas_Pool_AndAutoMigrate(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "app.db")

	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	// --- Verify PRAGMAs set by OpenSQLite ---
	var (
		journalMode string
		syncVal     int
		fkOn        int
		busyMS      int
	)

	if err := db.Raw("PRAGMA journal_mode;").Row().Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if strings.ToLower(journalMode) != "wal" {
		t.Fatalf("expected journal_mode=wal, got %q", journalMode)
	}

	if err := db.Raw("PRAGMA synchronous;").Row().Scan(&syncVal); err != nil {
		t.Fatalf("PRAGMA synchronous: %v", err)
	}
	// NORMAL == 1
	if syncVal != 1 {
		t.Fatalf("expected synchronous=1 (NORMAL), got %d", syncVal)
	}

	if err := db.Raw("PRAGMA foreign_keys;").Row().Scan(&fkOn); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fkOn != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", fkOn)
	}

	if err := db.Raw("PRAGMA busy_timeout;").Row().Scan(&busyMS); err != nil {
		t.Fatalf("PRAGMA busy_timeout: %v", err)
	}
	if busyMS != 5000 {
		t.Fatalf("expected busy_timeout=5000, got %d", busyMS)
	}

	// --- Verify pool tuning applied ---
	if stats := sqlDB.Stats(); stats.MaxOpenConnections != 10 {
		t.Fatalf("expected MaxOpenConnections=10, got %d", stats.MaxOpenConnections)
	}

	// --- AutoMigrate should create all tables ---
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range []any{&domain.Content{}, &domain.Purchase{}, &domain.Balance{}, &domain.PayoutEntry{}, &domain.Idempotency{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	// Foreign keys hold on every pooled connection, not just the one that
	// ran the PRAGMA.
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := InsertPurchase(ctx, db, &domain.Purchase{ContentID: 999, Buyer: "0xB",
			Amount: decimal.Zero, CreatorShare: decimal.Zero, PlatformShare: decimal.Zero}); err == nil {
			t.Fatalf("expected FK violation on attempt %d", i)
		}
	}

	// Quick insert round-trip to prove schema is usable.
	c := &domain.Content{Title: "t", ContentHash: "QmX", Price: decimal.NewFromInt(5), Creator: "0xA", IsActive: true}
	if err := CreateContent(ctx, db, c); err != nil {
		t.Fatalf("insert content: %v", err)
	}
	if err := InsertPurchase(ctx, db, &domain.Purchase{ContentID: c.ID, Buyer: "0xB",
		Amount: decimal.NewFromInt(5), CreatorShare: decimal.Zero, PlatformShare: decimal.NewFromInt(5)}); err != nil {
		t.Fatalf("insert purchase: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "0xB", c.ID, "k1", "p1", 201, time.Hour); err != nil {
		t.Fatalf("insert idempotency: %v", err)
	}

	var got domain.Content
	if err := db.First(&got, "id = ?", c.ID).Error; err != nil || got.Creator != "0xA" {
		t.Fatalf("readback content failed: err=%v got=%+v", err, got)
	}
}

func TestUseTracing_RegistersPlugin(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "trace.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := UseTracing(db); err != nil {
		t.Fatalf("UseTracing: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate with tracing: %v", err)
	}
}

// Compile-time guard to ensure signature stability.
var _ func(string) (*gorm.DB, error) = OpenSQLite

func TestOpenSQLite_MissesAreNotLogged(t *testing.T) {
	var buf strings.Builder
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "quiet.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	ctx := context.Background()
	if ok, err := HasPurchase(ctx, db, 1, "0xabc"); err != nil || ok {
		t.Fatalf("HasPurchase: %v %v", ok, err)
	}
	if b, err := GetBalance(ctx, db, "0xabc"); err != nil || !b.IsZero() {
		t.Fatalf("GetBalance: %s %v", b, err)
	}
	if _, err := GetContent(ctx, db, 404); err == nil {
		t.Fatalf("expected not found")
	}
	if strings.Contains(buf.String(), "record not found") {
		t.Fatalf("miss was logged: %s", buf.String())
	}
}
