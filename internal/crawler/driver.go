// Package crawler executes one crawl job for one source: pagination,
// optional login, inter-request delays, and detail-page enrichment.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/storesync/internal/domain"
	"github.com/jonesrussell/storesync/internal/fetcher"
	"github.com/jonesrussell/storesync/internal/logger"
	"github.com/jonesrussell/storesync/internal/parser"
)

// Options tunes one crawl run.
type Options struct {
	// DryRun skips enrichment; the sync engine also applies nothing.
	DryRun bool
	// Force crawls an inactive source. Without it an inactive source fails
	// immediately.
	Force bool
}

// Result is the outcome of one crawl run. Partial success is the default:
// page and item level errors accumulate here while the run stays completed.
type Result struct {
	Items        []domain.ScrapedItem
	Errors       []domain.CrawlError
	Status       domain.JobStatus
	PagesFetched int
}

// failed marks the result failed with one final error.
func (r *Result) fail(err domain.CrawlError) *Result {
	r.Errors = append(r.Errors, err)
	r.Status = domain.JobStatusFailed
	return r
}

// ErrSourceInactive is returned in the result when an inactive source is
// crawled without the force flag.
var ErrSourceInactive = errors.New("source is inactive")

// FetcherFactory builds one fetcher per job, so no client state is shared
// between concurrently crawling sources.
type FetcherFactory func() fetcher.PageFetcher

// Driver executes crawl jobs.
type Driver struct {
	registry   *parser.Registry
	newFetcher FetcherFactory
	log        logger.Interface
}

// NewDriver creates a crawl driver.
func NewDriver(registry *parser.Registry, newFetcher FetcherFactory, log logger.Interface) *Driver {
	return &Driver{
		registry:   registry,
		newFetcher: newFetcher,
		log:        log.WithComponent("crawler"),
	}
}

// Crawl runs one job for one source and returns the collected items.
func (d *Driver) Crawl(ctx context.Context, source *domain.Source, opts Options) *Result {
	result := &Result{Status: domain.JobStatusCompleted}
	log := d.log.WithSource(source.ID)

	if !source.Active && !opts.Force {
		return result.fail(domain.NewCrawlError(domain.CrawlErrorUnknown, source.URL, ErrSourceInactive))
	}

	srcOpts, err := source.Options()
	if err != nil {
		return result.fail(domain.NewCrawlError(domain.CrawlErrorUnknown, source.URL, err))
	}

	f := d.newFetcher()
	p := d.registry.ForSource(source, srcOpts)

	if srcOpts.Auth != nil {
		d.login(ctx, f, srcOpts.Auth, result, log)
	}

	d.crawlPages(ctx, f, p, source, srcOpts, result, log)

	// A structured feed that comes back empty or unusable silently falls
	// back to scraping markup; the fallback's own failure is not an error.
	if source.Platform == domain.PlatformShopify && len(result.Items) == 0 && result.Status != domain.JobStatusFailed {
		log.Info("product feed empty, falling back to markup scraping")
		fallbackParser := d.registry.MarkupFallback(srcOpts)
		fallback := &Result{Status: domain.JobStatusCompleted}
		d.crawlPages(ctx, f, fallbackParser, source, srcOpts, fallback, log)
		if len(fallback.Items) > 0 {
			result.Items = fallback.Items
			result.PagesFetched += fallback.PagesFetched
			// Detail pages must be parsed by the parser that produced the
			// items; the feed parser has no markup to work with.
			p = fallbackParser
		}
	}

	result.Items = filterItems(result.Items, srcOpts)

	if result.Status != domain.JobStatusFailed && !opts.DryRun {
		d.enrich(ctx, f, p, srcOpts, result, log)
	}

	log.Info("crawl finished",
		"status", result.Status,
		"pages", result.PagesFetched,
		"items", len(result.Items),
		"errors", len(result.Errors),
	)

	return result
}

// login performs the one-time form POST before page 1. Failure is recorded
// as an auth error; public pages may still be reachable, so the crawl
// proceeds.
func (d *Driver) login(ctx context.Context, f fetcher.PageFetcher, auth *domain.AuthConfig, result *Result, log logger.Interface) {
	submitter, ok := f.(fetcher.FormSubmitter)
	if !ok {
		result.Errors = append(result.Errors, domain.CrawlError{
			Type:    domain.CrawlErrorAuth,
			Message: "fetcher does not support form login",
			URL:     auth.AuthURL,
		})
		return
	}

	page, err := submitter.SubmitForm(ctx, auth.AuthURL, map[string]string{
		"username": auth.Username,
		"password": auth.Password,
	})
	if err != nil {
		result.Errors = append(result.Errors, domain.NewCrawlError(domain.CrawlErrorAuth, auth.AuthURL, err))
		return
	}
	if !page.OK() {
		result.Errors = append(result.Errors, domain.CrawlError{
			Type:    domain.CrawlErrorAuth,
			Message: fmt.Sprintf("login returned status %d", page.StatusCode),
			URL:     auth.AuthURL,
		})
		return
	}

	log.Info("storefront login succeeded", "auth_url", auth.AuthURL)
}

// crawlPages drives the pagination loop. Pages are fetched strictly in
// order: page N+1's URL is unknown until page N is parsed.
func (d *Driver) crawlPages(
	ctx context.Context,
	f fetcher.PageFetcher,
	p parser.Parser,
	source *domain.Source,
	srcOpts *domain.SourceOptions,
	result *Result,
	log logger.Interface,
) {
	pageCap := srcOpts.PageCap()
	nextURL := p.ListURL(source.URL, 1)

	for page := 1; page <= pageCap; page++ {
		if page > 1 {
			if sleepErr := sleep(ctx, srcOpts.Delay()); sleepErr != nil {
				result.Errors = append(result.Errors, domain.NewCrawlError(domain.CrawlErrorTimeout, nextURL, sleepErr))
				return
			}
		}

		fetched, err := f.Fetch(ctx, nextURL, fetcher.Options{})
		if err != nil {
			errType := domain.CrawlErrorNetwork
			if errors.Is(err, fetcher.ErrTimeout) {
				errType = domain.CrawlErrorTimeout
			}
			if page == 1 {
				result.fail(domain.NewCrawlError(errType, nextURL, err))
				return
			}
			// Later pages: halt early, keep what we have.
			result.Errors = append(result.Errors, domain.NewCrawlError(errType, nextURL, err))
			return
		}

		if !fetched.OK() {
			navErr := domain.CrawlError{
				Type:    domain.CrawlErrorNavigation,
				Message: fmt.Sprintf("unexpected status %d", fetched.StatusCode),
				URL:     nextURL,
				Page:    page,
			}
			if page == 1 {
				result.fail(navErr)
				return
			}
			result.Errors = append(result.Errors, navErr)
			return
		}

		result.PagesFetched++

		parsed, parseErr := p.ParseList(fetched.Body, nextURL)
		if parseErr != nil {
			// A page that fetched but did not parse leaves the job
			// completed with partial data.
			result.Errors = append(result.Errors, domain.CrawlError{
				Type:    domain.CrawlErrorParse,
				Message: parseErr.Error(),
				URL:     nextURL,
				Page:    page,
			})
			return
		}

		result.Items = append(result.Items, parsed.Items...)
		result.Errors = append(result.Errors, parsed.Errors...)

		log.Debug("page parsed", "page", page, "items", len(parsed.Items), "has_next", parsed.HasNextPage)

		if !parsed.HasNextPage {
			return
		}

		if parsed.NextPageURL != "" {
			nextURL = parsed.NextPageURL
		} else {
			nextURL = p.ListURL(source.URL, page+1)
		}
	}
}

// enrich visits detail pages for items missing description or images,
// merging only the missing fields. Enrichment failures are recorded but
// never fail the job.
func (d *Driver) enrich(
	ctx context.Context,
	f fetcher.PageFetcher,
	p parser.Parser,
	srcOpts *domain.SourceOptions,
	result *Result,
	log logger.Interface,
) {
	visited := 0
	detailCap := srcOpts.DetailCap()

	for i := range result.Items {
		if visited >= detailCap {
			return
		}
		item := &result.Items[i]
		if !item.NeedsEnrichment() {
			continue
		}

		if sleepErr := sleep(ctx, srcOpts.Delay()); sleepErr != nil {
			return
		}
		visited++

		page, err := f.Fetch(ctx, item.SourceURL, fetcher.Options{})
		if err != nil {
			result.Errors = append(result.Errors, domain.NewCrawlError(domain.CrawlErrorNetwork, item.SourceURL, err))
			continue
		}
		if !page.OK() {
			result.Errors = append(result.Errors, domain.CrawlError{
				Type:    domain.CrawlErrorNavigation,
				Message: fmt.Sprintf("detail fetch returned status %d", page.StatusCode),
				URL:     item.SourceURL,
			})
			continue
		}

		detail, parseErr := p.ParseDetail(page.Body, item.SourceURL)
		if parseErr != nil {
			result.Errors = append(result.Errors, domain.NewCrawlError(domain.CrawlErrorParse, item.SourceURL, parseErr))
			continue
		}
		if detail == nil {
			// Skip, keep prior partial data.
			continue
		}

		item.MergeMissing(detail)
		log.Debug("item enriched", "url", item.SourceURL)
	}
}

// filterItems applies the source's out-of-stock and price-band filters.
func filterItems(items []domain.ScrapedItem, srcOpts *domain.SourceOptions) []domain.ScrapedItem {
	filtered := items[:0]
	for _, item := range items {
		if item.Quantity == 0 && !srcOpts.IncludeOutOfStock {
			continue
		}
		if srcOpts.MinPrice != nil && (item.Price == nil || *item.Price < *srcOpts.MinPrice) {
			continue
		}
		if srcOpts.MaxPrice != nil && item.Price != nil && *item.Price > *srcOpts.MaxPrice {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered
}

// sleep waits for the mandatory inter-request delay or returns the context's
// error if it is cancelled first.
func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
