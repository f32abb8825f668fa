// Package fetcher provides the page-fetch capability consumed by the crawl
// driver. Fetching is pluggable so the driver stays testable against a stub
// and independent of any specific HTTP or automation library.
package fetcher

import (
	"context"
	"errors"
	"net/http"
)

// Page is one fetched page.
type Page struct {
	// URL is the final URL after redirects.
	URL string
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// Body is the raw response body (markup or JSON).
	Body []byte
}

// OK reports whether the fetch returned a 2xx status.
func (p *Page) OK() bool {
	return p.StatusCode >= http.StatusOK && p.StatusCode < http.StatusMultipleChoices
}

// Options tunes a single fetch.
type Options struct {
	// Headers are added to the request.
	Headers map[string]string
}

// PageFetcher fetches one page. Implementations must honor the context and
// carry a finite timeout so one unresponsive site cannot starve the pool.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, opts Options) (*Page, error)
}

// FormSubmitter is an optional capability for storefronts that require a
// login form POST before list pages are served.
type FormSubmitter interface {
	SubmitForm(ctx context.Context, url string, fields map[string]string) (*Page, error)
}

// ErrTimeout is returned when a fetch exceeds its deadline.
var ErrTimeout = errors.New("fetch timed out")
