package syncer_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/storesync/internal/domain"
	"github.com/jonesrussell/storesync/internal/logger"
	"github.com/jonesrussell/storesync/internal/syncer"
)

type priceRecord struct {
	entryID string
	price   *float64
	reason  string
}

// fakeCatalogStore implements syncer.CatalogStore in memory and records
// every mutation for assertions.
type fakeCatalogStore struct {
	entries   []*domain.CatalogEntry
	listErr   error
	createErr error

	created []*domain.CatalogEntry
	updates map[string]map[string]any
	sold    [][]string
	history []priceRecord
	nextSeq int
}

func newFakeCatalogStore(entries ...*domain.CatalogEntry) *fakeCatalogStore {
	return &fakeCatalogStore{
		entries: entries,
		updates: make(map[string]map[string]any),
		nextSeq: 1,
	}
}

func (f *fakeCatalogStore) ListEligible(_ context.Context, _ string) ([]*domain.CatalogEntry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.entries, nil
}

func (f *fakeCatalogStore) Create(_ context.Context, entry *domain.CatalogEntry) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, entry)
	return fmt.Sprintf("entry-%d", len(f.created)), nil
}

func (f *fakeCatalogStore) UpdateFields(_ context.Context, id string, fields map[string]any) error {
	f.updates[id] = fields
	return nil
}

func (f *fakeCatalogStore) MarkSold(_ context.Context, ids []string) error {
	f.sold = append(f.sold, ids)
	return nil
}

func (f *fakeCatalogStore) RecordPriceHistory(_ context.Context, entryID string, price *float64, reason string) error {
	f.history = append(f.history, priceRecord{entryID: entryID, price: price, reason: reason})
	return nil
}

func (f *fakeCatalogStore) NextItemNumber(_ context.Context, _ string) (int, error) {
	seq := f.nextSeq
	f.nextSeq++
	return seq, nil
}

func (f *fakeCatalogStore) mutated() bool {
	return len(f.created) > 0 || len(f.updates) > 0 || len(f.sold) > 0 || len(f.history) > 0
}

func testSource() *domain.Source {
	return &domain.Source{
		ID:       "src-1",
		TenantID: "tenant-1",
		Platform: domain.PlatformEBay,
		URL:      "https://www.ebay.com/sch/seller",
	}
}

func catalogEntry(id, sku, title, sourceURL string, price float64) *domain.CatalogEntry {
	url := sourceURL
	return &domain.CatalogEntry{
		ID:        id,
		TenantID:  "tenant-1",
		SKU:       sku,
		Title:     title,
		Price:     &price,
		Quantity:  1,
		Status:    domain.EntryStatusActive,
		SourceURL: &url,
	}
}

func scrapedItem(title, sourceURL string, price float64) domain.ScrapedItem {
	return domain.ScrapedItem{
		SourceURL: sourceURL,
		Title:     title,
		Price:     &price,
		Quantity:  1,
		ScrapedAt: time.Now(),
	}
}

func TestReconcileCreatesNewEntries(t *testing.T) {
	store := newFakeCatalogStore()
	engine := syncer.NewEngine(store, logger.NewNoOp())

	withSKU := scrapedItem("Vintage Film Camera 35mm", "https://www.ebay.com/itm/111", 129.99)
	withSKU.SKU = "CAM-35"
	withPlatformID := scrapedItem("Camera Lens 50mm", "https://www.ebay.com/itm/222", 45.00)
	withPlatformID.PlatformID = "222"

	result, err := engine.Reconcile(context.Background(), testSource(),
		[]domain.ScrapedItem{withSKU, withPlatformID}, syncer.Options{AllowRemovals: true})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Empty(t, result.Errors)
	require.Len(t, store.created, 2)

	assert.Equal(t, "CAM-35", store.created[0].SKU)
	// No scraped SKU falls back to the platform-native listing id.
	assert.Equal(t, "EB-222", store.created[1].SKU)
	assert.Equal(t, domain.EntryStatusDraft, store.created[0].Status)
	assert.Equal(t, "tenant-1", store.created[0].TenantID)
}

func TestReconcileDuplicateURLCreatesOnce(t *testing.T) {
	store := newFakeCatalogStore()
	engine := syncer.NewEngine(store, logger.NewNoOp())

	// Pagination overlap surfaces the same listing twice, once with a
	// tracking parameter the other fetch did not carry.
	first := scrapedItem("Brass Desk Lamp", "https://shop.example.com/p/1", 60.00)
	second := scrapedItem("Brass Desk Lamp", "https://shop.example.com/p/1?ref=shop_home", 60.00)

	result, err := engine.Reconcile(context.Background(), testSource(),
		[]domain.ScrapedItem{first, second}, syncer.Options{AllowRemovals: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Empty(t, result.Errors)
	require.Len(t, store.created, 1)
	assert.Equal(t, "https://shop.example.com/p/1", *store.created[0].SourceURL)
}

func TestReconcileDuplicateURLSingleUpdate(t *testing.T) {
	entry := catalogEntry("e1", "SKU-1", "Brass Desk Lamp", "https://shop.example.com/p/1", 60.00)
	store := newFakeCatalogStore(entry)
	engine := syncer.NewEngine(store, logger.NewNoOp())

	repriced := scrapedItem("Brass Desk Lamp", "https://shop.example.com/p/1", 55.00)
	duplicate := scrapedItem("Brass Desk Lamp", "https://shop.example.com/p/1?ref=shop_home", 50.00)

	result, err := engine.Reconcile(context.Background(), testSource(),
		[]domain.ScrapedItem{repriced, duplicate}, syncer.Options{AllowRemovals: true})
	require.NoError(t, err)

	// The first occurrence wins; the duplicate neither updates again nor
	// sweeps the entry into the missing set.
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Removed)
	require.Contains(t, store.updates, "e1")
	assert.Equal(t, 55.00, *store.updates["e1"]["price"].(*float64))
	require.Len(t, store.history, 1)
}

func TestReconcileGeneratedSKU(t *testing.T) {
	store := newFakeCatalogStore()
	store.nextSeq = 7
	engine := syncer.NewEngine(store, logger.NewNoOp())

	item := scrapedItem("Handmade Oak Shelf", "https://shop.example.com/p/1", 80.00)

	result, err := engine.Reconcile(context.Background(), testSource(),
		[]domain.ScrapedItem{item}, syncer.Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	require.Len(t, store.created, 1)
	assert.Regexp(t, `^GEN-[0-9A-F]{8}-7$`, store.created[0].SKU)
}

func TestReconcileUpdatesChangedPrice(t *testing.T) {
	entry := catalogEntry("e1", "CAM-35", "Vintage Film Camera 35mm",
		"https://www.ebay.com/itm/111", 129.99)
	store := newFakeCatalogStore(entry)
	engine := syncer.NewEngine(store, logger.NewNoOp())

	// Same listing, new price, URL carrying tracking params.
	item := scrapedItem("Vintage Film Camera 35mm",
		"https://www.ebay.com/itm/111?hash=item1&_trkparms=abc", 119.99)

	result, err := engine.Reconcile(context.Background(), testSource(),
		[]domain.ScrapedItem{item}, syncer.Options{AllowRemovals: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 0, result.Removed)

	fields, ok := store.updates["e1"]
	require.True(t, ok)
	assert.Contains(t, fields, "price")
	assert.NotContains(t, fields, "title")

	// A price change appends a history record.
	require.Len(t, store.history, 1)
	assert.Equal(t, "e1", store.history[0].entryID)
	assert.Equal(t, syncer.PriceHistoryReason, store.history[0].reason)
}

func TestReconcileUnchangedIsIdempotent(t *testing.T) {
	entry := catalogEntry("e1", "CAM-35", "Vintage Film Camera 35mm",
		"https://www.ebay.com/itm/111", 129.99)
	store := newFakeCatalogStore(entry)
	engine := syncer.NewEngine(store, logger.NewNoOp())

	item := scrapedItem("Vintage Film Camera 35mm", "https://www.ebay.com/itm/111", 129.99)

	for range 2 {
		result, err := engine.Reconcile(context.Background(), testSource(),
			[]domain.ScrapedItem{item}, syncer.Options{AllowRemovals: true})
		require.NoError(t, err)

		assert.Equal(t, 1, result.Unchanged)
		assert.False(t, store.mutated())
	}
}

func TestReconcileTitleSuffixUnchanged(t *testing.T) {
	entry := catalogEntry("e1", "CAM-35", "Vintage Film Camera 35mm - Pre-Owned",
		"https://www.ebay.com/itm/111", 129.99)
	store := newFakeCatalogStore(entry)
	engine := syncer.NewEngine(store, logger.NewNoOp())

	// The scraped title is a substring of the curated one; not a real change.
	item := scrapedItem("Vintage Film Camera 35mm", "https://www.ebay.com/itm/111", 129.99)

	result, err := engine.Reconcile(context.Background(), testSource(),
		[]domain.ScrapedItem{item}, syncer.Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Unchanged)
	assert.Equal(t, 0, result.Updated)
}

func TestReconcileSKUFallbackMatch(t *testing.T) {
	entry := catalogEntry("e1", "CAM-35", "Vintage Film Camera 35mm",
		"https://old-domain.example.com/itm/111", 129.99)
	store := newFakeCatalogStore(entry)
	engine := syncer.NewEngine(store, logger.NewNoOp())

	// The listing moved to a new URL; the SKU still joins it to the entry.
	item := scrapedItem("Vintage Film Camera 35mm", "https://www.ebay.com/itm/111", 129.99)
	item.SKU = "CAM-35"

	result, err := engine.Reconcile(context.Background(), testSource(),
		[]domain.ScrapedItem{item}, syncer.Options{AllowRemovals: true})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Unchanged)
	// The matched entry must not be swept into the missing set.
	assert.Equal(t, 0, result.Removed)
	assert.Empty(t, store.sold)
}

func TestReconcileMarksMissingSold(t *testing.T) {
	kept := catalogEntry("e1", "CAM-35", "Vintage Film Camera 35mm",
		"https://www.ebay.com/itm/111", 129.99)
	gone := catalogEntry("e2", "LENS-50", "Camera Lens 50mm",
		"https://www.ebay.com/itm/222", 45.00)
	alreadySold := catalogEntry("e3", "BAG-1", "Camera Bag",
		"https://www.ebay.com/itm/333", 20.00)
	alreadySold.Status = domain.EntryStatusSold

	store := newFakeCatalogStore(kept, gone, alreadySold)
	engine := syncer.NewEngine(store, logger.NewNoOp())

	item := scrapedItem("Vintage Film Camera 35mm", "https://www.ebay.com/itm/111", 129.99)

	result, err := engine.Reconcile(context.Background(), testSource(),
		[]domain.ScrapedItem{item}, syncer.Options{AllowRemovals: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Removed)
	require.Len(t, store.sold, 1)
	// Entries already sold stay out of the batch.
	assert.Equal(t, []string{"e2"}, store.sold[0])
}

func TestReconcileRemovalsGated(t *testing.T) {
	gone := catalogEntry("e1", "CAM-35", "Vintage Film Camera 35mm",
		"https://www.ebay.com/itm/111", 129.99)
	store := newFakeCatalogStore(gone)
	engine := syncer.NewEngine(store, logger.NewNoOp())

	result, err := engine.Reconcile(context.Background(), testSource(),
		nil, syncer.Options{AllowRemovals: false})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Removed)
	assert.Empty(t, store.sold)
}

func TestReconcileDryRun(t *testing.T) {
	existing := catalogEntry("e1", "CAM-35", "Vintage Film Camera 35mm",
		"https://www.ebay.com/itm/111", 129.99)
	gone := catalogEntry("e2", "LENS-50", "Camera Lens 50mm",
		"https://www.ebay.com/itm/222", 45.00)
	store := newFakeCatalogStore(existing, gone)
	engine := syncer.NewEngine(store, logger.NewNoOp())

	repriced := scrapedItem("Vintage Film Camera 35mm", "https://www.ebay.com/itm/111", 99.99)
	fresh := scrapedItem("Tripod Aluminum", "https://www.ebay.com/itm/444", 30.00)

	result, err := engine.Reconcile(context.Background(), testSource(),
		[]domain.ScrapedItem{repriced, fresh},
		syncer.Options{DryRun: true, AllowRemovals: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Removed)
	assert.False(t, store.mutated())
}

func TestReconcileListEligibleError(t *testing.T) {
	store := newFakeCatalogStore()
	store.listErr = errors.New("connection refused")
	engine := syncer.NewEngine(store, logger.NewNoOp())

	result, err := engine.Reconcile(context.Background(), testSource(),
		nil, syncer.Options{})
	require.Error(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, domain.SyncErrorLookup, result.Errors[0].Type)
}

func TestReconcileCreateErrorIsolated(t *testing.T) {
	store := newFakeCatalogStore()
	store.createErr = errors.New("constraint violation")
	engine := syncer.NewEngine(store, logger.NewNoOp())

	item := scrapedItem("Vintage Film Camera 35mm", "https://www.ebay.com/itm/111", 129.99)
	item.SKU = "CAM-35"

	result, err := engine.Reconcile(context.Background(), testSource(),
		[]domain.ScrapedItem{item}, syncer.Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, domain.SyncErrorCreate, result.Errors[0].Type)
	assert.Equal(t, item.SourceURL, result.Errors[0].ItemURL)
}
