// Package paging converts page / per_page request parameters into the
// skip / limit pair used by both store lists and search queries.
//
// Missing or non-numeric values take the defaults; values below 1 are
// clamped to the defaults; per_page is capped at the policy maximum.
package paging

import (
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultPage is the first page.
	DefaultPage = 1
	// DefaultPerPage is the page size when none is requested.
	DefaultPerPage = 30
	// MaxPerPage caps requested page sizes.
	MaxPerPage = 200
)

// Page is a resolved pagination window.
type Page struct {
	Page    int
	PerPage int
	Skip    int
	Limit   int
}

// Policy holds the configurable page size bounds.
type Policy struct {
	DefaultPerPage int
	MaxPerPage     int
}

// DefaultPolicy is the 30/200 policy.
var DefaultPolicy = Policy{DefaultPerPage: DefaultPerPage, MaxPerPage: MaxPerPage}

// NewPolicy builds a policy, falling back to the defaults for zero values.
func NewPolicy(defaultPerPage, maxPerPage int) Policy {
	p := DefaultPolicy
	if maxPerPage > 0 {
		p.MaxPerPage = maxPerPage
	}
	if defaultPerPage > 0 {
		p.DefaultPerPage = min(defaultPerPage, p.MaxPerPage)
	}
	return p
}

// Paginate parses raw query values with the default policy.
func Paginate(page, perPage string) Page {
	return DefaultPolicy.Parse(page, perPage)
}

// FromInts resolves already-parsed values with the default policy; zero means "not given".
func FromInts(page, perPage int) Page {
	return DefaultPolicy.Resolve(page, perPage)
}

// Parse parses raw query values.
func (pol Policy) Parse(page, perPage string) Page {
	return pol.Resolve(atoi(page), atoi(perPage))
}

// Resolve clamps page and perPage and computes skip / limit.
func (pol Policy) Resolve(page, perPage int) Page {
	if page < 1 {
		page = DefaultPage
	}
	if perPage < 1 {
		perPage = pol.DefaultPerPage
	}
	if perPage > pol.MaxPerPage {
		perPage = pol.MaxPerPage
	}
	if page-1 > math.MaxInt/perPage {
		page = math.MaxInt/perPage + 1
	}
	return Page{
		Page:    page,
		PerPage: perPage,
		Skip:    (page - 1) * perPage,
		Limit:   perPage,
	}
}

// HasMore reports whether results beyond this page exist.
func (p Page) HasMore(total int) bool {
	return p.Skip < total-p.Limit
}

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool {
	return p.Page > 1
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
