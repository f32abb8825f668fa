package domain

import (
	"time"
)

// CatalogEntry is the persisted canonical product record in the operator's
// own catalog. Entries with a nil SourceURL are manually curated and
// invisible to the sync pipeline.
type CatalogEntry struct {
	ID       string      `db:"id" json:"id"`
	TenantID string      `db:"tenant_id" json:"tenant_id"`
	SKU      string      `db:"sku" json:"sku"`
	Title    string      `db:"title" json:"title"`
	Price    *float64    `db:"price" json:"price,omitempty"`
	Quantity int         `db:"quantity" json:"quantity"`
	Status   EntryStatus `db:"status" json:"status"`
	// SourceURL joins the entry to its external listing; the sync engine's
	// primary key, with SKU as the fallback.
	SourceURL *string   `db:"source_url" json:"source_url,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SyncEligible reports whether the entry participates in reconciliation.
func (e *CatalogEntry) SyncEligible() bool {
	return e.SourceURL != nil && *e.SourceURL != ""
}
