// Package domain provides domain models used across the application.
package domain

// PlatformKind identifies which parser handles a source.
type PlatformKind string

const (
	// PlatformWebsite is a generic storefront parsed with configurable selectors.
	PlatformWebsite PlatformKind = "website"
	// PlatformEBay is an eBay seller page.
	PlatformEBay PlatformKind = "ebay"
	// PlatformEtsy is an Etsy shop page.
	PlatformEtsy PlatformKind = "etsy"
	// PlatformShopify is a Shopify storefront with a JSON product feed.
	PlatformShopify PlatformKind = "shopify"
)

// JobStatus represents the lifecycle state of a job run.
type JobStatus string

const (
	// JobStatusPending means the job has been created but not started.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning means the job is currently executing.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted means the job finished, possibly with partial data.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed means the job aborted before producing a usable result.
	JobStatusFailed JobStatus = "failed"
)

// EntryStatus represents the lifecycle state of a catalog entry.
type EntryStatus string

const (
	// EntryStatusDraft is the status given to newly synced entries.
	EntryStatusDraft EntryStatus = "draft"
	// EntryStatusActive is a published entry.
	EntryStatusActive EntryStatus = "active"
	// EntryStatusSold marks an entry whose source listing disappeared.
	EntryStatusSold EntryStatus = "sold"
	// EntryStatusArchived is a retired entry.
	EntryStatusArchived EntryStatus = "archived"
)
