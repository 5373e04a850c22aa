// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts s with strconv.Atoi, returning def when s is empty
// or not an integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Page is a 1-based page window.
type Page struct {
	Number int
	Size   int
}

// ParsePage reads raw page/page_size query values. A missing or
// non-positive page becomes 1; a missing or non-positive size becomes
// defSize; sizes above maxSize are capped.
func ParsePage(rawPage, rawSize string, defSize, maxSize int) Page {
	p := Page{
		Number: AtoiDefault(rawPage, 1),
		Size:   AtoiDefault(rawSize, defSize),
	}
	if p.Number < 1 {
		p.Number = 1
	}
	switch {
	case p.Size < 1:
		p.Size = defSize
	case maxSize > 0 && p.Size > maxSize:
		p.Size = maxSize
	}
	return p
}

// Offset is the number of rows before this page.
func (p Page) Offset() int {
	if p.Number < 1 || p.Size < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// TotalPages is ceil(total/size); zero when there are no rows.
func (p Page) TotalPages(total int64) int {
	if total <= 0 || p.Size < 1 {
		return 0
	}
	return int((total + int64(p.Size) - 1) / int64(p.Size))
}

// HasNext reports whether rows exist past this page.
func (p Page) HasNext(total int64) bool {
	return p.Number < p.TotalPages(total)
}
