// Package services – Catalog
//
// The Catalog serves discovery: public listings of active, non-deleted,
// non-flagged content, optional full-text search over title and
// description, and single-record views. Pages are cached between
// mutations; the Catalog observes the Registry and keeps both the search
// index and the cache in step with every change.
//
// Listing payloads are domain.Content values whose gated handle is never
// serialized.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/libchain-registry/internal/cache"
	"github.com/tbourn/libchain-registry/internal/domain"
	"github.com/tbourn/libchain-registry/internal/identity"
	"github.com/tbourn/libchain-registry/internal/repo"
	"github.com/tbourn/libchain-registry/internal/search"
	"github.com/tbourn/libchain-registry/internal/utils"
)

// maxSearchHits caps how many ranked ids one search considers.
const maxSearchHits = 1000

// DiscoverQuery selects a discovery page.
type DiscoverQuery struct {
	// Query is optional full-text search.
	Query string
	// Creator optionally restricts to one creator.
	Creator  string
	Page     int
	PageSize int
}

func (q DiscoverQuery) page() utils.Page { return utils.Page{Number: q.Page, Size: q.PageSize} }

// ContentPage is one page of listings.
type ContentPage struct {
	Items    []domain.Content `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// Catalog implements discovery over the ledger.
type Catalog struct {
	Ledger *Ledger
	Index  search.Index
	// Cache is optional; nil disables page caching.
	Cache cache.Cache
}

var _ ContentObserver = (*Catalog)(nil)

// Rebuild reindexes every discoverable record and drops cached pages. It
// returns the number of indexed records.
func (c *Catalog) Rebuild(ctx context.Context) (int, error) {
	n := 0
	for rec, err := range c.Ledger.ListContent(ctx, repo.ContentFilter{ActiveOnly: true, ExcludeFlagged: true}) {
		if err != nil {
			return n, err
		}
		c.Index.Upsert(rec.ID, indexText(rec))
		n++
	}
	c.invalidate(ctx)
	return n, nil
}

// ContentChanged keeps the index and cache consistent with c.
func (c *Catalog) ContentChanged(ctx context.Context, rec domain.Content) {
	if rec.Discoverable() {
		c.Index.Upsert(rec.ID, indexText(rec))
	} else {
		c.Index.Remove(rec.ID)
	}
	c.invalidate(ctx)
}

func (c *Catalog) invalidate(ctx context.Context) {
	if c.Cache == nil {
		return
	}
	if err := c.Cache.InvalidateAll(ctx); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("catalog cache invalidation failed")
	}
}

// Discover returns a page of discoverable content, newest first, or in
// relevance order when q.Query is set.
func (c *Catalog) Discover(ctx context.Context, q DiscoverQuery) (*ContentPage, error) {
	tr := otel.Tracer("services/Catalog")
	ctx, span := tr.Start(ctx, "Discover",
		trace.WithAttributes(
			attribute.String("query", q.Query),
			attribute.Int("page", q.Page),
			attribute.Int("page_size", q.PageSize),
		),
	)
	defer span.End()

	q.Query = strings.TrimSpace(q.Query)
	pg := utils.Page{Number: q.Page, Size: q.PageSize}.Normalize()
	q.Page, q.PageSize = pg.Number, pg.Size
	if q.Creator != "" {
		p, err := principal(q.Creator)
		if err != nil {
			return nil, err
		}
		q.Creator = p
	}

	key := fmt.Sprintf("discover|%s|%s|%d|%d", q.Creator, q.Query, q.Page, q.PageSize)
	if page, ok := c.cached(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return page, nil
	}

	var (
		page *ContentPage
		err  error
	)
	if q.Query != "" {
		page, err = c.searchPage(ctx, q)
	} else {
		page, err = c.listPage(ctx, q)
	}
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, page)
	return page, nil
}

func (c *Catalog) listPage(ctx context.Context, q DiscoverQuery) (*ContentPage, error) {
	f := repo.Discovery()
	f.Creator = q.Creator

	total, err := repo.CountContent(ctx, c.Ledger.DB, f)
	if err != nil {
		return nil, err
	}
	page := &ContentPage{Items: []domain.Content{}, Total: total, Page: q.Page, PageSize: q.PageSize}
	if total == 0 {
		return page, nil
	}
	items, err := repo.ListContentPage(ctx, c.Ledger.DB, f, q.page().Offset(), q.PageSize)
	if err != nil {
		return nil, err
	}
	page.Items = items
	return page, nil
}

func (c *Catalog) searchPage(ctx context.Context, q DiscoverQuery) (*ContentPage, error) {
	page := &ContentPage{Items: []domain.Content{}, Page: q.Page, PageSize: q.PageSize}

	hits := c.Index.TopK(q.Query, maxSearchHits)
	if len(hits) == 0 {
		return page, nil
	}
	ids := make([]uint64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}

	// The index can lag a concurrent mutation by one call; the SQL filter
	// is authoritative.
	f := repo.Discovery()
	f.Creator = q.Creator
	f.IDs = ids
	byID := make(map[uint64]domain.Content, len(ids))
	for rec, err := range c.Ledger.ListContent(ctx, f) {
		if err != nil {
			return nil, err
		}
		byID[rec.ID] = rec
	}

	ranked := make([]domain.Content, 0, len(byID))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			ranked = append(ranked, rec)
		}
	}
	page.Total = int64(len(ranked))
	start, end := q.page().Window(len(ranked))
	page.Items = ranked[start:end]
	return page, nil
}

func (c *Catalog) cached(ctx context.Context, key string) (*ContentPage, bool) {
	if c.Cache == nil {
		return nil, false
	}
	raw, ok, err := c.Cache.Get(ctx, key)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("catalog cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var page ContentPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, false
	}
	return &page, true
}

func (c *Catalog) store(ctx context.Context, key string, page *ContentPage) {
	if c.Cache == nil {
		return
	}
	raw, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := c.Cache.Set(ctx, key, raw); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("catalog cache write failed")
	}
}

// Stamp returns a weak validator that changes whenever any record changes.
// Every mutation bumps updated_at and tombstones are counted, so count plus
// latest update time covers toggles, deletes and moderation.
func (c *Catalog) Stamp(ctx context.Context) (string, error) {
	count, maxAt, err := repo.ContentStats(ctx, c.Ledger.DB, repo.ContentFilter{IncludeDeleted: true})
	if err != nil {
		return "", err
	}
	var ts int64
	if maxAt != nil {
		ts = maxAt.UnixNano()
	}
	return fmt.Sprintf("%d:%d", count, ts), nil
}

// View returns one record for viewer. Deleted records are never returned.
// Inactive or flagged records are visible to their creator and to admins
// only.
func (c *Catalog) View(ctx context.Context, viewer string, id uint64, admin bool) (*domain.Content, error) {
	rec, err := c.Ledger.GetContent(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.IsDeleted {
		return nil, ErrNotFound
	}
	if !rec.Discoverable() && !admin && !identity.Same(viewer, rec.Creator) {
		return nil, ErrNotFound
	}
	return rec, nil
}

// indexText is the searchable text of a record.
func indexText(c domain.Content) string {
	return c.Title + "\n" + search.PlainText(c.Description)
}
