package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gocolly/colly/v2"
)

// DefaultRequestTimeout bounds a single page fetch.
const DefaultRequestTimeout = 30 * time.Second

// Config configures the colly-backed fetcher.
type Config struct {
	UserAgent      string
	RequestTimeout time.Duration
	// IgnoreRobotsTxt disables robots.txt checks. Sellers crawl their own
	// storefronts, so this defaults to true in the scheduler command.
	IgnoreRobotsTxt bool
}

// CollyFetcher implements PageFetcher and FormSubmitter on top of colly.
// Construct one per job: the cookie jar is shared across fetches so a login
// session survives the whole crawl, and each fetch clones the collector so
// callbacks never accumulate.
type CollyFetcher struct {
	cfg       Config
	collector *colly.Collector
}

// NewCollyFetcher creates a colly-backed fetcher.
func NewCollyFetcher(cfg Config) *CollyFetcher {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	opts := []colly.CollectorOption{
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	}
	if cfg.IgnoreRobotsTxt {
		opts = append(opts, colly.IgnoreRobotsTxt())
	}

	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(cfg.RequestTimeout)

	return &CollyFetcher{cfg: cfg, collector: c}
}

// Fetch retrieves one page. Non-2xx responses are returned as pages, not
// errors; the driver classifies them.
func (f *CollyFetcher) Fetch(ctx context.Context, url string, opts Options) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page := &Page{URL: url}

	c := f.collector.Clone()
	c.Context = ctx

	c.OnResponse(func(r *colly.Response) {
		page.StatusCode = r.StatusCode
		page.Body = r.Body
		if r.Request.URL != nil {
			page.URL = r.Request.URL.String()
		}
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil && r.StatusCode != 0 {
			page.StatusCode = r.StatusCode
			page.Body = r.Body
		}
	})

	hdr := http.Header{}
	for k, v := range opts.Headers {
		hdr.Set(k, v)
	}

	err := c.Request(http.MethodGet, url, nil, colly.NewContext(), hdr)
	c.Wait()

	if err != nil {
		// colly surfaces HTTP error statuses through the request error. The
		// OnError callback has already captured the response, so a non-2xx
		// still comes back as a page for the driver to classify.
		if page.StatusCode != 0 {
			return page, nil
		}
		return nil, classifyFetchError(ctx, url, err)
	}
	if page.StatusCode == 0 {
		return nil, fmt.Errorf("fetch %s: no response", url)
	}

	return page, nil
}

// SubmitForm POSTs login credentials and returns the resulting page. The
// collector's cookie jar keeps the session for subsequent fetches.
func (f *CollyFetcher) SubmitForm(ctx context.Context, url string, fields map[string]string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page := &Page{URL: url}

	c := f.collector
	c.Context = ctx
	c.OnResponse(func(r *colly.Response) {
		page.StatusCode = r.StatusCode
		page.Body = r.Body
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil && r.StatusCode != 0 {
			page.StatusCode = r.StatusCode
			page.Body = r.Body
		}
	})

	err := c.Post(url, fields)
	c.Wait()

	if err != nil {
		// A rejected login is a page with a non-2xx status, not a transport
		// failure; the driver reports it as an auth error.
		if page.StatusCode != 0 {
			return page, nil
		}
		return nil, classifyFetchError(ctx, url, err)
	}

	return page, nil
}

// classifyFetchError maps transport failures onto the fetcher's error set.
func classifyFetchError(ctx context.Context, url string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("fetch %s: %w", url, ErrTimeout)
	}
	return fmt.Errorf("fetch %s: %w", url, err)
}
