// Package services – Registry
//
// The Registry is the only mutation surface of the licensing registry. It
// validates requests at the boundary, normalizes principals, delegates to
// the Ledger and triggers the PayoutEngine inside the purchase transaction.
// Every operation takes the acting principal as an explicit argument.
//
// After a successful mutation, registered ContentObservers are told about
// the new record state (catalog index and listing cache use this).
//
// Observability: public methods are OpenTelemetry-instrumented and counted
// in Prometheus.
package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/libchain-registry/internal/domain"
	"github.com/tbourn/libchain-registry/internal/identity"
	"github.com/tbourn/libchain-registry/internal/repo"
	"github.com/tbourn/libchain-registry/internal/storage"
	"github.com/tbourn/libchain-registry/internal/utils"
)

// Field limits.
const (
	TitleMaxRunes       = 200
	DescriptionMaxRunes = 5000
	FlagReasonMaxRunes  = 255
)

// ContentObserver is notified after a content record changes.
type ContentObserver interface {
	ContentChanged(ctx context.Context, c domain.Content)
}

// RegisterInput is the validated payload of Register.
type RegisterInput struct {
	Title             string
	Description       string
	PreviewURL        string
	ContentHash       string
	Price             string
	RoyaltyPercentage int
}

// normalize trims and NFC-normalizes display strings and reduces the
// content handle to a bare CID.
func (in *RegisterInput) normalize() {
	in.Title = collapseSpaces(norm.NFC.String(in.Title))
	in.Description = strings.TrimSpace(norm.NFC.String(in.Description))
	in.PreviewURL = strings.TrimSpace(in.PreviewURL)
	in.ContentHash = strings.TrimSpace(in.ContentHash)
	if cid, ok := storage.ParseHandle(in.ContentHash); ok {
		in.ContentHash = cid
	}
	in.Price = strings.TrimSpace(in.Price)
}

// Validate implements validation.Validatable.
func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.RuneLength(1, TitleMaxRunes)),
		validation.Field(&in.Description, validation.RuneLength(0, DescriptionMaxRunes)),
		validation.Field(&in.PreviewURL, validation.By(previewRule)),
		validation.Field(&in.ContentHash, validation.Required, validation.By(cidRule)),
		validation.Field(&in.Price, validation.Required, validation.By(weiRule)),
		validation.Field(&in.RoyaltyPercentage, validation.Min(0), validation.Max(100)),
	)
}

func previewRule(v any) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	if _, ok := storage.ParseHandle(s); ok {
		return nil
	}
	if err := is.URL.Validate(s); err != nil {
		return err
	}
	if !strings.HasPrefix(s, "https://") && !strings.HasPrefix(s, "http://") {
		return validation.NewError("validation_preview_scheme", "must be an http(s) URL or an ipfs handle")
	}
	return nil
}

func cidRule(v any) error {
	s, _ := v.(string)
	if !storage.ValidCID(s) {
		return validation.NewError("validation_cid", "must be an IPFS CID")
	}
	return nil
}

func weiRule(v any) error {
	s, _ := v.(string)
	if _, err := utils.ParseWei(s); err != nil {
		return validation.NewError("validation_wei", "must be a non-negative whole number of base units")
	}
	return nil
}

var spacesRE = regexp.MustCompile(`\s+`)

func collapseSpaces(s string) string {
	return spacesRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Registry implements register, purchase, toggle, delete, hash disclosure
// and moderation.
type Registry struct {
	Ledger *Ledger
	Access *AccessEvaluator
	Payout *PayoutEngine
	// Admins may set and clear moderation flags.
	Admins identity.AddressSet

	observers []ContentObserver
}

// NewRegistry wires a Registry over ledger.
func NewRegistry(ledger *Ledger, payout *PayoutEngine, admins identity.AddressSet) *Registry {
	if payout == nil {
		payout = NewPayoutEngine("", nil)
	}
	return &Registry{
		Ledger: ledger,
		Access: &AccessEvaluator{DB: ledger.DB},
		Payout: payout,
		Admins: admins,
	}
}

// Observe registers o for change notifications. Not safe to call once
// requests are being served.
func (r *Registry) Observe(o ContentObserver) {
	r.observers = append(r.observers, o)
}

func (r *Registry) notify(ctx context.Context, c *domain.Content) {
	if c == nil {
		return
	}
	for _, o := range r.observers {
		o.ContentChanged(ctx, *c)
	}
}

// IsAdmin reports whether p may moderate.
func (r *Registry) IsAdmin(p string) bool {
	return r.Admins.Has(p)
}

// Register creates an active record owned by creator.
func (r *Registry) Register(ctx context.Context, creator string, in RegisterInput) (*domain.Content, error) {
	tr := otel.Tracer("services/Registry")
	ctx, span := tr.Start(ctx, "Register", trace.WithAttributes(attribute.String("principal", creator)))
	defer span.End()

	owner, err := principal(creator)
	if err != nil {
		return nil, err
	}
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	price, _ := utils.ParseWei(in.Price)

	c := &domain.Content{
		Title:             in.Title,
		Description:       in.Description,
		PreviewURL:        in.PreviewURL,
		ContentHash:       in.ContentHash,
		Price:             price,
		Creator:           owner,
		RoyaltyPercentage: in.RoyaltyPercentage,
	}
	if err := r.Ledger.CreateContent(ctx, c); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("content.id", int64(c.ID)))
	contentRegistered.Inc()
	r.notify(ctx, c)
	return c, nil
}

// Purchase records buyer's purchase of contentID for payment and settles
// the royalty split in the same transaction. Either both the purchase and
// every payout credit are committed or neither is.
func (r *Registry) Purchase(ctx context.Context, buyer string, contentID uint64, payment decimal.Decimal) (*domain.Purchase, error) {
	return r.purchase(ctx, buyer, contentID, payment, nil)
}

// purchase runs the purchase; after, when set, runs inside the same
// transaction once the purchase is settled.
func (r *Registry) purchase(ctx context.Context, buyer string, contentID uint64, payment decimal.Decimal, after func(tx *gorm.DB, p *domain.Purchase) error) (p *domain.Purchase, err error) {
	tr := otel.Tracer("services/Registry")
	ctx, span := tr.Start(ctx, "Purchase",
		trace.WithAttributes(
			attribute.Int64("content.id", int64(contentID)),
			attribute.String("principal", buyer),
		),
	)
	defer span.End()
	defer func() { purchaseOutcomes.WithLabelValues(purchaseOutcome(err)).Inc() }()

	payer, err := principal(buyer)
	if err != nil {
		return nil, err
	}
	if err := utils.CheckWei(payment); err != nil {
		return nil, invalid(fmt.Errorf("payment: %w", err))
	}

	err = r.Ledger.Write(ctx, func(tx *gorm.DB) error {
		c, err := repo.GetContent(ctx, tx, contentID)
		if err != nil {
			return mapNotFound(err)
		}
		if err := purchasable(c); err != nil {
			return err
		}
		if identity.Same(payer, c.Creator) {
			return ErrSelfPurchase
		}
		if payment.LessThan(c.Price) {
			return ErrInsufficientPayment
		}

		shares, err := r.Payout.Quote(c, payment)
		if err != nil {
			return err
		}
		rec := &domain.Purchase{
			Buyer:         payer,
			Amount:        payment,
			CreatorShare:  shares.Creator,
			PlatformShare: shares.Platform,
		}
		if err := r.Ledger.RecordPurchase(ctx, tx, c, rec); err != nil {
			return err
		}
		if err := r.Payout.Settle(ctx, tx, c, rec); err != nil {
			return err
		}
		if after != nil {
			if err := after(tx, rec); err != nil {
				return err
			}
		}
		p = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("purchase.id", p.ID))
	return p, nil
}

// ToggleStatus flips the active flag of contentID. Only the creator may
// toggle; deleted records yield ErrNotFound.
func (r *Registry) ToggleStatus(ctx context.Context, actor string, contentID uint64) (*domain.Content, error) {
	tr := otel.Tracer("services/Registry")
	ctx, span := tr.Start(ctx, "ToggleStatus",
		trace.WithAttributes(
			attribute.Int64("content.id", int64(contentID)),
			attribute.String("principal", actor),
		),
	)
	defer span.End()

	c, err := r.Ledger.ToggleActive(ctx, contentID, actor)
	if err != nil {
		return nil, err
	}
	contentTransitions.WithLabelValues(string(c.State())).Inc()
	r.notify(ctx, c)
	return c, nil
}

// DeleteContent tombstones contentID. Only the creator may delete; deleting
// an already deleted record succeeds without change.
func (r *Registry) DeleteContent(ctx context.Context, actor string, contentID uint64) error {
	tr := otel.Tracer("services/Registry")
	ctx, span := tr.Start(ctx, "DeleteContent",
		trace.WithAttributes(
			attribute.Int64("content.id", int64(contentID)),
			attribute.String("principal", actor),
		),
	)
	defer span.End()

	c, changed, err := r.Ledger.MarkDeleted(ctx, contentID, actor)
	if err != nil {
		return err
	}
	if changed {
		contentTransitions.WithLabelValues(string(domain.StateDeleted)).Inc()
		r.notify(ctx, c)
	}
	return nil
}

// GetContentHash discloses the gated handle of contentID to requester. It
// is the only operation that returns the handle. Requesters without
// entitlement get ErrAccessDenied; for deleted records they get
// ErrNotFound so tombstones stay indistinguishable from missing ids.
func (r *Registry) GetContentHash(ctx context.Context, requester string, contentID uint64) (string, error) {
	tr := otel.Tracer("services/Registry")
	ctx, span := tr.Start(ctx, "GetContentHash",
		trace.WithAttributes(
			attribute.Int64("content.id", int64(contentID)),
			attribute.String("principal", requester),
		),
	)
	defer span.End()

	d, err := r.Access.Decide(ctx, contentID, requester)
	if err != nil {
		return "", err
	}
	if !d.Allowed {
		if d.Content.IsDeleted {
			return "", ErrNotFound
		}
		return "", ErrAccessDenied
	}
	return d.Content.ContentHash, nil
}

// CheckAccess answers whether principal may view contentID. Unknown ids
// yield ErrNotFound.
func (r *Registry) CheckAccess(ctx context.Context, contentID uint64, p string) (bool, error) {
	return r.Access.HasAccess(ctx, contentID, p)
}

// SetModeration sets or clears the moderation flag. Only admins may call
// it and a reason is required when flagging.
func (r *Registry) SetModeration(ctx context.Context, admin string, contentID uint64, flagged bool, reason string) (*domain.Content, error) {
	tr := otel.Tracer("services/Registry")
	ctx, span := tr.Start(ctx, "SetModeration",
		trace.WithAttributes(
			attribute.Int64("content.id", int64(contentID)),
			attribute.String("principal", admin),
			attribute.Bool("flagged", flagged),
		),
	)
	defer span.End()

	if !r.IsAdmin(admin) {
		return nil, ErrUnauthorized
	}
	reason = collapseSpaces(reason)
	if flagged {
		err := validation.Validate(reason, validation.Required, validation.RuneLength(1, FlagReasonMaxRunes))
		if err != nil {
			return nil, invalid(fmt.Errorf("reason: %w", err))
		}
	}

	c, err := r.Ledger.SetFlag(ctx, contentID, flagged, reason)
	if err != nil {
		return nil, err
	}
	to := "unflagged"
	if flagged {
		to = "flagged"
	}
	contentTransitions.WithLabelValues(to).Inc()
	r.notify(ctx, c)
	return c, nil
}

// Sales lists the purchases of contentID, oldest first. Only the creator
// may read them, and only while the record is not deleted.
func (r *Registry) Sales(ctx context.Context, actor string, contentID uint64) ([]domain.Purchase, error) {
	c, err := r.Ledger.GetContent(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if c.IsDeleted {
		return nil, ErrNotFound
	}
	if !identity.Same(c.Creator, actor) {
		return nil, ErrUnauthorized
	}
	return repo.ListPurchasesForContent(ctx, r.Ledger.DB, contentID)
}

// principal normalizes a caller-supplied address.
func principal(s string) (string, error) {
	p, err := identity.Normalize(s)
	if err != nil {
		return "", invalid(fmt.Errorf("principal: %w", err))
	}
	return p, nil
}

// now is overridable in tests.
var now = func() time.Time { return time.Now().UTC() }
