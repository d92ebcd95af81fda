// Package utils provides small helpers shared by the HTTP and service
// layers: page windows, path ids and wei amounts.
package utils

import "strconv"

// Page size bounds for every listing (discovery, uploads, library).
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// ParsePage reads page and page_size query values. Missing or malformed
// values take the defaults; out-of-range values are clamped, so page_size=0
// means one item rather than the default.
func ParsePage(number, size string) Page {
	p := Page{Number: atoiOr(number, 1), Size: atoiOr(size, DefaultPageSize)}
	if p.Size < 1 {
		p.Size = 1
	}
	return p.Normalize()
}

// Normalize fills zero values with defaults and clamps to the bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset is the number of rows before the page.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// Window returns the [start, end) slice bounds of the page within n ranked
// items; start == end when the page is past the end.
func (p Page) Window(n int) (start, end int) {
	start = min(p.Offset(), n)
	return start, min(start+p.Size, n)
}

// TotalPages is the page count for total rows at size per page.
func TotalPages(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
