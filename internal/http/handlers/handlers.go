// Package handlers provides the HTTP endpoints of the licensing registry.
//
// Handlers are transport-thin: they read the principal resolved by the
// auth middleware, validate path and query input, call the services, and
// translate results (and service sentinels) into HTTP responses. The
// principal is always passed to the services explicitly.
package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tbourn/libchain-registry/internal/accessurl"
	"github.com/tbourn/libchain-registry/internal/domain"
	"github.com/tbourn/libchain-registry/internal/http/middleware"
	"github.com/tbourn/libchain-registry/internal/identity"
	"github.com/tbourn/libchain-registry/internal/services"
	"github.com/tbourn/libchain-registry/internal/utils"
)

//
// Service contracts (context-aware)
//

// RegistryService is the mutating surface of the registry.
type RegistryService interface {
	Register(ctx context.Context, creator string, in services.RegisterInput) (*domain.Content, error)
	PurchaseIdempotent(ctx context.Context, buyer string, contentID uint64, payment decimal.Decimal, key string, ttl time.Duration) (*domain.Purchase, bool, error)
	ToggleStatus(ctx context.Context, actor string, contentID uint64) (*domain.Content, error)
	DeleteContent(ctx context.Context, actor string, contentID uint64) error
	GetContentHash(ctx context.Context, requester string, contentID uint64) (string, error)
	CheckAccess(ctx context.Context, contentID uint64, principal string) (bool, error)
	SetModeration(ctx context.Context, admin string, contentID uint64, flagged bool, reason string) (*domain.Content, error)
	Sales(ctx context.Context, actor string, contentID uint64) ([]domain.Purchase, error)
	IsAdmin(principal string) bool
}

// CatalogService serves discovery and public views.
type CatalogService interface {
	Discover(ctx context.Context, q services.DiscoverQuery) (*services.ContentPage, error)
	Stamp(ctx context.Context) (string, error)
	View(ctx context.Context, viewer string, id uint64, admin bool) (*domain.Content, error)
}

// DashboardService serves the per-principal views.
type DashboardService interface {
	Stats(ctx context.Context, principal string) (*services.Stats, error)
	Uploads(ctx context.Context, principal string, page, pageSize int) ([]domain.Content, int64, error)
	Library(ctx context.Context, principal string, page, pageSize int) ([]domain.Content, int64, error)
}

// Pinner stores uploaded files and returns their CID.
type Pinner interface {
	Configured() bool
	Pin(ctx context.Context, filename string, r io.Reader) (string, error)
}

// Gateway resolves and fetches CIDs.
type Gateway interface {
	URL(cid string) string
	Fetch(ctx context.Context, cid, rangeHeader string) (*http.Response, error)
}

// GrantSigner mints and verifies stream tokens.
type GrantSigner interface {
	Sign(principal string, contentID uint64) (string, accessurl.Grant, error)
	Verify(token string) (accessurl.Grant, error)
}

// ChallengeService issues and verifies wallet login challenges.
type ChallengeService interface {
	Issue(address string) (identity.Challenge, error)
	Verify(address, signature string) (string, error)
}

// SessionIssuer mints session tokens after a successful login.
type SessionIssuer interface {
	Issue(principal string) (string, time.Time, error)
}

//
// Handler wiring
//

// Defaults for Options left at zero.
const (
	DefaultStreamChunkBytes int64 = 2 << 20
	DefaultMaxUploadBytes   int64 = 512 << 20
)

// Options carries the collaborators and limits of the HTTP layer. Pinner,
// Grants, Challenges and Sessions are optional; their endpoints answer 503
// when unset.
type Options struct {
	Registry   RegistryService
	Catalog    CatalogService
	Dashboard  DashboardService
	Pinner     Pinner
	Gateway    Gateway
	Grants     GrantSigner
	Challenges ChallengeService
	Sessions   SessionIssuer

	// IdempotencyTTL bounds purchase replays.
	IdempotencyTTL time.Duration
	// StreamChunkBytes is the range served when a client sends none.
	StreamChunkBytes int64
	// MaxUploadBytes caps POST /uploads bodies.
	MaxUploadBytes int64
	// BasePath prefixes the stream URLs handed out by the grant endpoint.
	BasePath string
}

// Handlers groups all registry endpoints.
type Handlers struct {
	opt Options
}

// New returns Handlers bound to opt, filling defaults.
func New(opt Options) *Handlers {
	if opt.IdempotencyTTL <= 0 {
		opt.IdempotencyTTL = services.DefaultIdempotencyTTL
	}
	if opt.StreamChunkBytes <= 0 {
		opt.StreamChunkBytes = DefaultStreamChunkBytes
	}
	if opt.MaxUploadBytes <= 0 {
		opt.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handlers{opt: opt}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListContentsResponse wraps a page of listings.
type ListContentsResponse struct {
	Contents   []domain.Content `json:"contents"`
	Pagination Pagination       `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	p := utils.ParsePage(c.Query("page"), c.Query("page_size"))
	return p.Number, p.Size
}

func paginate(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// contentID parses the :id path param, failing the request when malformed.
func contentID(c *gin.Context) (uint64, bool) {
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content id must be a positive integer")
	}
	return id, ok
}

// caller returns the authenticated principal, failing with 401 when absent.
// Routes behind RequirePrincipal never hit the failure branch.
func caller(c *gin.Context) (string, bool) {
	p, ok := middleware.Principal(c)
	if !ok {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
	}
	return p, ok
}
