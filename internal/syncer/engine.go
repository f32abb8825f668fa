// Package syncer reconciles a crawl's items against the canonical catalog,
// classifying create/update/no-op and marking entries absent from the crawl
// as sold.
package syncer

import (
	"context"
	"fmt"

	"github.com/jonesrussell/storesync/internal/domain"
	"github.com/jonesrussell/storesync/internal/logger"
	"github.com/jonesrussell/storesync/internal/urlnorm"
)

// PriceHistoryReason tags price history rows written by the sync engine.
const PriceHistoryReason = "sync"

// CatalogStore is the persistence port the engine consumes. The postgres
// repository implements it; tests substitute a fake.
type CatalogStore interface {
	ListEligible(ctx context.Context, tenantID string) ([]*domain.CatalogEntry, error)
	Create(ctx context.Context, entry *domain.CatalogEntry) (string, error)
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	MarkSold(ctx context.Context, ids []string) error
	RecordPriceHistory(ctx context.Context, entryID string, price *float64, reason string) error
	NextItemNumber(ctx context.Context, tenantID string) (int, error)
}

// Options tunes one reconciliation pass.
type Options struct {
	// DryRun computes counts without applying any mutation.
	DryRun bool
	// AllowRemovals gates sold-marking. The scheduler disables it when the
	// crawl failed, so an early-aborted crawl cannot mass-sell the catalog.
	AllowRemovals bool
}

// Result summarizes one reconciliation pass.
type Result struct {
	Created   int
	Updated   int
	Removed   int
	Unchanged int
	Errors    []domain.SyncError
}

// Engine applies minimal catalog mutations for a crawl result.
// Reconciliation is idempotent: re-running against an already-synced,
// unchanged crawl yields zero further mutations.
type Engine struct {
	store CatalogStore
	log   logger.Interface
}

// NewEngine creates a sync engine.
func NewEngine(store CatalogStore, log logger.Interface) *Engine {
	return &Engine{
		store: store,
		log:   log.WithComponent("syncer"),
	}
}

// Reconcile diffs the crawl's items against the source tenant's catalog and
// applies creates, updates and sold-markings. Failures in one item are
// isolated and never abort the batch.
func (e *Engine) Reconcile(ctx context.Context, source *domain.Source, items []domain.ScrapedItem, opts Options) (*Result, error) {
	log := e.log.WithTenant(source.TenantID).WithSource(source.ID)
	result := &Result{}

	eligible, err := e.store.ListEligible(ctx, source.TenantID)
	if err != nil {
		result.Errors = append(result.Errors, domain.SyncError{
			Type:    domain.SyncErrorLookup,
			Message: err.Error(),
		})
		return result, fmt.Errorf("load eligible entries: %w", err)
	}

	// URLs are normalized at match time so tracking params or a trailing
	// slash never split one listing into two entries.
	byURL := make(map[string]*domain.CatalogEntry, len(eligible))
	bySKU := make(map[string]*domain.CatalogEntry, len(eligible))
	for _, entry := range eligible {
		if entry.SourceURL != nil {
			byURL[urlnorm.Key(*entry.SourceURL)] = entry
		}
		if entry.SKU != "" {
			bySKU[entry.SKU] = entry
		}
	}

	seen := make(map[string]bool, len(items))
	handled := make(map[string]bool, len(items))

	for i := range items {
		item := &items[i]
		key := urlnorm.Key(item.SourceURL)

		// Listings shifting between page fetches can surface the same URL
		// twice in one crawl. The first occurrence wins; processing the
		// second would create a duplicate entry.
		if key != "" {
			if handled[key] {
				log.Debug("duplicate listing url in crawl, skipping", "url", item.SourceURL)
				continue
			}
			handled[key] = true
		}
		seen[key] = true

		// Primary join key is the source URL; SKU is the fallback.
		entry := byURL[key]
		if entry == nil && item.SKU != "" {
			entry = bySKU[item.SKU]
		}

		if entry == nil {
			e.createEntry(ctx, source, item, opts, result, log)
			continue
		}

		seen[urlnorm.Key(deref(entry.SourceURL))] = true
		e.updateEntry(ctx, entry, item, opts, result, log)
	}

	missing := missingEntries(eligible, seen)
	e.removeEntries(ctx, missing, opts, result, log)

	log.Info("reconciliation finished",
		"created", result.Created,
		"updated", result.Updated,
		"removed", result.Removed,
		"unchanged", result.Unchanged,
		"errors", len(result.Errors),
		"dry_run", opts.DryRun,
	)

	return result, nil
}

// createEntry inserts a draft entry for an item absent from the catalog.
func (e *Engine) createEntry(
	ctx context.Context,
	source *domain.Source,
	item *domain.ScrapedItem,
	opts Options,
	result *Result,
	log logger.Interface,
) {
	if opts.DryRun {
		result.Created++
		return
	}

	sku, err := e.entrySKU(ctx, source, item)
	if err != nil {
		result.Errors = append(result.Errors, domain.SyncError{
			Type:    domain.SyncErrorCreate,
			Message: err.Error(),
			ItemURL: item.SourceURL,
		})
		return
	}

	sourceURL := item.SourceURL
	entry := &domain.CatalogEntry{
		TenantID:  source.TenantID,
		SKU:       sku,
		Title:     item.Title,
		Price:     item.Price,
		Quantity:  item.Quantity,
		Status:    domain.EntryStatusDraft,
		SourceURL: &sourceURL,
	}

	id, err := e.store.Create(ctx, entry)
	if err != nil {
		result.Errors = append(result.Errors, domain.SyncError{
			Type:    domain.SyncErrorCreate,
			Message: err.Error(),
			ItemURL: item.SourceURL,
		})
		return
	}

	result.Created++
	log.Debug("entry created", "entry_id", id, "sku", sku, "url", item.SourceURL)
}

// updateEntry writes only changed fields; the diff is restricted to price
// and title. A price change appends a price history record.
func (e *Engine) updateEntry(
	ctx context.Context,
	entry *domain.CatalogEntry,
	item *domain.ScrapedItem,
	opts Options,
	result *Result,
	log logger.Interface,
) {
	fields := make(map[string]any)
	priceChanged := priceDiffers(entry.Price, item.Price)
	if priceChanged {
		fields["price"] = item.Price
	}
	if titleDiffers(entry.Title, item.Title) {
		fields["title"] = item.Title
	}

	if len(fields) == 0 {
		result.Unchanged++
		return
	}

	if opts.DryRun {
		result.Updated++
		return
	}

	if err := e.store.UpdateFields(ctx, entry.ID, fields); err != nil {
		result.Errors = append(result.Errors, domain.SyncError{
			Type:    domain.SyncErrorUpdate,
			Message: err.Error(),
			EntryID: entry.ID,
		})
		return
	}

	if priceChanged {
		if err := e.store.RecordPriceHistory(ctx, entry.ID, item.Price, PriceHistoryReason); err != nil {
			result.Errors = append(result.Errors, domain.SyncError{
				Type:    domain.SyncErrorUpdate,
				Message: fmt.Sprintf("record price history: %v", err),
				EntryID: entry.ID,
			})
		}
	}

	result.Updated++
	log.Debug("entry updated", "entry_id", entry.ID, "fields", len(fields))
}

// removeEntries transitions the missing set to sold in one batch. A batch
// failure is reported once.
func (e *Engine) removeEntries(
	ctx context.Context,
	missing []*domain.CatalogEntry,
	opts Options,
	result *Result,
	log logger.Interface,
) {
	if len(missing) == 0 || !opts.AllowRemovals {
		return
	}

	if opts.DryRun {
		result.Removed = len(missing)
		return
	}

	ids := make([]string, 0, len(missing))
	for _, entry := range missing {
		ids = append(ids, entry.ID)
	}

	if err := e.store.MarkSold(ctx, ids); err != nil {
		result.Errors = append(result.Errors, domain.SyncError{
			Type:    domain.SyncErrorRemove,
			Message: fmt.Sprintf("mark %d entries sold: %v", len(ids), err),
		})
		return
	}

	result.Removed = len(ids)
	log.Debug("entries marked sold", "count", len(ids))
}

// entrySKU builds a deterministic SKU: the scraped SKU when present, else a
// platform-prefixed native id, else a title hash with a per-tenant counter
// suffix for uniqueness.
func (e *Engine) entrySKU(ctx context.Context, source *domain.Source, item *domain.ScrapedItem) (string, error) {
	if item.SKU != "" {
		return item.SKU, nil
	}
	if item.PlatformID != "" {
		return platformSKU(source.Platform, item.PlatformID), nil
	}

	seq, err := e.store.NextItemNumber(ctx, source.TenantID)
	if err != nil {
		return "", fmt.Errorf("next item number: %w", err)
	}

	return hashSKU(item.Title, seq), nil
}

// missingEntries returns eligible entries whose source URL never appeared
// in the crawl. Entries already sold are excluded so repeated syncs stay
// idempotent.
func missingEntries(eligible []*domain.CatalogEntry, seen map[string]bool) []*domain.CatalogEntry {
	var missing []*domain.CatalogEntry
	for _, entry := range eligible {
		if entry.Status == domain.EntryStatusSold {
			continue
		}
		if !seen[urlnorm.Key(deref(entry.SourceURL))] {
			missing = append(missing, entry)
		}
	}
	return missing
}

// deref unwraps a nullable string.
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
