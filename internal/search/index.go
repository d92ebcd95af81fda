// Package search provides a small, deterministic, concurrency-safe in-memory
// full-text index over catalog listings.
//
//   - No logging in the library (callers decide how/what to log)
//   - Functional options (Option pattern)
//   - Unicode-aware tokenization: NFKC normalization, full case folding,
//     optional stop-word removal
//   - Incremental: listings are upserted and removed as they change state
//   - Deterministic scoring and sorting (stable order for ties)
//
// Scoring uses Jaccard similarity between the query token set and each
// listing's token set: score = |Q ∩ D| / |Q ∪ D|.
package search

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Result is a ranked listing id with its similarity score.
type Result struct {
	ID    uint64
	Score float64
}

// Index is the interface implemented by catalog indices.
type Index interface {
	Upsert(id uint64, text string)
	Remove(id uint64)
	TopK(query string, k int) []Result
	Len() int
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	stopwords     map[string]struct{}
	minTokenRunes int
	maxDocs       int
}

func defaultConfig() config {
	return config{
		stopwords:     nil,
		minTokenRunes: 2,
		maxDocs:       0,
	}
}

// WithStopwords drops the given words from both listings and queries.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = fold(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMinTokenRunes ignores tokens shorter than n runes.
func WithMinTokenRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minTokenRunes = n
		}
	}
}

// WithMaxDocs caps the number of indexed listings. Upserts of new ids past
// the cap are ignored; existing ids can still be updated.
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// DefaultStopwords is a short English list suited to course titles.
var DefaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from", "how",
	"in", "into", "is", "it", "of", "on", "or", "the", "to", "with", "your",
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	tokens map[string]struct{}
}

// Catalog is the default Index.
type Catalog struct {
	cfg  config
	mu   sync.RWMutex
	docs map[uint64]doc
}

var _ Index = (*Catalog)(nil)

// New creates an empty Catalog index.
func New(opts ...Option) *Catalog {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Catalog{cfg: cfg, docs: make(map[uint64]doc)}
}

// Upsert indexes text under id, replacing any previous text. Text that
// yields no tokens removes the id.
func (i *Catalog) Upsert(id uint64, text string) {
	toks := tokenize(text, i.cfg)
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(toks) == 0 {
		delete(i.docs, id)
		return
	}
	if _, exists := i.docs[id]; !exists && i.cfg.maxDocs > 0 && len(i.docs) >= i.cfg.maxDocs {
		return
	}
	i.docs[id] = doc{tokens: toks}
}

// Remove drops id from the index. Unknown ids are ignored.
func (i *Catalog) Remove(id uint64) {
	i.mu.Lock()
	delete(i.docs, id)
	i.mu.Unlock()
}

// Len returns the number of indexed listings.
func (i *Catalog) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.docs)
}

// TopK returns up to k best-matching listings by Jaccard similarity, highest
// score first; ties go to the newer (higher) id. k <= 0 returns every match.
func (i *Catalog) TopK(q string, k int) []Result {
	qTokens := tokenize(q, i.cfg)
	if len(qTokens) == 0 {
		return nil
	}
	qLen := len(qTokens)

	i.mu.RLock()
	buf := make([]Result, 0, 16)
	for id, d := range i.docs {
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(qLen + len(d.tokens) - over)
		if union <= 0 {
			continue
		}
		buf = append(buf, Result{ID: id, Score: float64(over) / union})
	}
	i.mu.RUnlock()

	if len(buf) == 0 {
		return nil
	}
	sort.Slice(buf, func(a, b int) bool {
		if buf[a].Score != buf[b].Score {
			return buf[a].Score > buf[b].Score
		}
		return buf[a].ID > buf[b].ID
	})
	if k > 0 && k < len(buf) {
		buf = buf[:k]
	}
	return buf
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

// fold applies NFKC and full Unicode case folding. A Caser is stateful, so
// one is created per call.
func fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

func tokenize(s string, cfg config) map[string]struct{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	words := wordRE.FindAllString(fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len([]rune(w)) < cfg.minTokenRunes {
			continue
		}
		if cfg.stopwords != nil {
			if _, skip := cfg.stopwords[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
