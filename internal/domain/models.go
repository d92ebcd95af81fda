// Package domain defines the persistence models for content listings,
// purchases, and the royalty ledger. These types are mapped with GORM and
// form the core data layer of the licensing registry.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContentState is the lifecycle state derived from a Content row.
type ContentState string

const (
	StateActive   ContentState = "active"
	StateInactive ContentState = "inactive"
	StateDeleted  ContentState = "deleted"
)

// Content represents one piece of licensable material listed by a creator.
//
// Fields:
//   - ID: store-assigned, monotonically increasing primary key; never reused.
//   - Title / Description: display strings.
//   - PreviewURL: non-gated preview asset (https URL or ipfs:// handle).
//   - ContentHash: gated IPFS handle. Never serialized; disclosed only through
//     the access-checked hash endpoint.
//   - Price: smallest currency unit (wei), arbitrary precision, stored as TEXT.
//   - Creator: checksummed wallet address of the owner.
//   - RoyaltyPercentage: share of each payment routed to the creator, 0..100.
//   - IsActive: purchasable and discoverable when true; creator-toggleable.
//   - IsDeleted / RemovedAt: terminal tombstone. The row is kept so purchase
//     records stay referentially valid.
//   - IsFlagged / FlagReason: moderation flag set by administrators.
//
// Price, RoyaltyPercentage and Creator are immutable after creation.
type Content struct {
	ID                uint64          `json:"id"                  gorm:"primaryKey;autoIncrement"`
	Title             string          `json:"title"               gorm:"type:varchar(200);not null"`
	Description       string          `json:"description"         gorm:"type:text;not null;default:''"`
	PreviewURL        string          `json:"preview_url"         gorm:"type:text;not null;default:''"`
	ContentHash       string          `json:"-"                   gorm:"type:varchar(128);not null"`
	Price             decimal.Decimal `json:"price"               gorm:"type:text;not null" swaggertype:"string" example:"1000000000000000000"`
	Creator           string          `json:"creator"             gorm:"type:varchar(42);not null;index:idx_contents_creator"`
	RoyaltyPercentage int             `json:"royalty_percentage"  gorm:"not null;check:royalty_percentage BETWEEN 0 AND 100"`
	IsActive          bool            `json:"is_active"           gorm:"not null;index:idx_contents_listing,priority:1"`
	IsDeleted         bool            `json:"-"                   gorm:"not null;default:false;index:idx_contents_listing,priority:2"`
	IsFlagged         bool            `json:"is_flagged"          gorm:"not null;default:false"`
	FlagReason        string          `json:"flag_reason,omitempty" gorm:"type:varchar(255);not null;default:''"`
	RemovedAt         *time.Time      `json:"-"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// TableName returns the database table name for Content.
func (Content) TableName() string { return "contents" }

// State derives the lifecycle state. Deleted wins over the active flag.
func (c Content) State() ContentState {
	switch {
	case c.IsDeleted:
		return StateDeleted
	case c.IsActive:
		return StateActive
	default:
		return StateInactive
	}
}

// Discoverable reports whether the record may appear in public listings.
func (c Content) Discoverable() bool {
	return c.IsActive && !c.IsDeleted && !c.IsFlagged
}

// Purchase is proof that Buyer paid for access to a content record. The
// (content_id, buyer) pair is unique: one purchase per buyer per content.
// Purchases are never mutated or deleted.
type Purchase struct {
	ID            string          `json:"id"             gorm:"type:char(36);primaryKey"`
	ContentID     uint64          `json:"content_id"     gorm:"not null;uniqueIndex:ux_purchases_content_buyer,priority:1"`
	Buyer         string          `json:"buyer"          gorm:"type:varchar(42);not null;uniqueIndex:ux_purchases_content_buyer,priority:2;index:idx_purchases_buyer"`
	Amount        decimal.Decimal `json:"amount"         gorm:"type:text;not null" swaggertype:"string"`
	CreatorShare  decimal.Decimal `json:"creator_share"  gorm:"type:text;not null" swaggertype:"string"`
	PlatformShare decimal.Decimal `json:"platform_share" gorm:"type:text;not null" swaggertype:"string"`
	CreatedAt     time.Time       `json:"created_at"`

	// Content is the purchased listing. Deleting content is logical only, so
	// the restrict constraint never fires in normal operation.
	Content Content `json:"-" gorm:"foreignKey:ContentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Purchase.
func (Purchase) TableName() string { return "purchases" }

// Balance is the credited amount owed to an account (creator or platform).
type Balance struct {
	Account   string          `json:"account"    gorm:"type:varchar(42);primaryKey"`
	Amount    decimal.Decimal `json:"amount"     gorm:"type:text;not null" swaggertype:"string"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName returns the database table name for Balance.
func (Balance) TableName() string { return "balances" }

// Payout roles.
const (
	RoleCreator  = "creator"
	RolePlatform = "platform"
)

// PayoutEntry is one append-only credit produced by splitting a purchase.
type PayoutEntry struct {
	ID         string          `json:"id"          gorm:"type:char(36);primaryKey"`
	PurchaseID string          `json:"purchase_id" gorm:"type:char(36);not null;index"`
	Account    string          `json:"account"     gorm:"type:varchar(42);not null;index"`
	Role       string          `json:"role"        gorm:"type:varchar(16);not null;check:role IN ('creator','platform')"`
	Amount     decimal.Decimal `json:"amount"      gorm:"type:text;not null" swaggertype:"string"`
	CreatedAt  time.Time       `json:"created_at"`

	Purchase Purchase `json:"-" gorm:"foreignKey:PurchaseID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for PayoutEntry.
func (PayoutEntry) TableName() string { return "payout_entries" }
