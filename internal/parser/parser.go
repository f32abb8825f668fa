// Package parser converts fetched storefront pages into normalized items.
// One implementation exists per platform, plus a selector-configurable
// generic fallback. Parsers are pure: they never fetch.
package parser

import (
	"github.com/jonesrussell/storesync/internal/domain"
)

// ListResult is the outcome of parsing one list page. A page yielding zero
// items is not itself an error; termination is signaled solely through
// HasNextPage.
type ListResult struct {
	Items       []domain.ScrapedItem
	HasNextPage bool
	// NextPageURL is set when the page itself links the next page; when
	// empty the driver derives it from ListURL.
	NextPageURL string
	// Errors holds item-level parse problems that did not prevent the rest
	// of the page from parsing.
	Errors []domain.CrawlError
}

// Parser converts one fetched page into normalized items.
type Parser interface {
	// Platform identifies which platform kind this parser serves.
	Platform() domain.PlatformKind
	// CanHandle reports whether the parser recognizes the given URL.
	CanHandle(rawURL string) bool
	// ListURL builds the list-page URL for the given page number (1-based).
	ListURL(base string, page int) string
	// ParseList extracts items from a list page. Only a document that cannot
	// be parsed at all returns a non-nil error.
	ParseList(markup []byte, baseURL string) (*ListResult, error)
	// ParseDetail extracts one item from a detail page. A nil item with a
	// nil error means "skip, keep prior partial data".
	ParseDetail(markup []byte, pageURL string) (*domain.ScrapedItem, error)
}
