package domain

import "fmt"

// CrawlErrorType classifies errors encountered while crawling.
type CrawlErrorType string

const (
	// CrawlErrorNavigation is a failed page navigation (non-2xx, redirect loop).
	CrawlErrorNavigation CrawlErrorType = "navigation"
	// CrawlErrorTimeout is an exceeded fetch deadline.
	CrawlErrorTimeout CrawlErrorType = "timeout"
	// CrawlErrorAuth is a failed storefront login.
	CrawlErrorAuth CrawlErrorType = "auth"
	// CrawlErrorParse is a page that fetched but did not parse.
	CrawlErrorParse CrawlErrorType = "parse"
	// CrawlErrorNetwork is a transport-level failure.
	CrawlErrorNetwork CrawlErrorType = "network"
	// CrawlErrorUnknown is anything unclassified.
	CrawlErrorUnknown CrawlErrorType = "unknown"
)

// SyncErrorType classifies errors encountered while reconciling.
type SyncErrorType string

const (
	// SyncErrorCreate is a failed catalog entry insert.
	SyncErrorCreate SyncErrorType = "create"
	// SyncErrorUpdate is a failed catalog entry update.
	SyncErrorUpdate SyncErrorType = "update"
	// SyncErrorRemove is a failed mark-sold batch.
	SyncErrorRemove SyncErrorType = "remove"
	// SyncErrorLookup is a failed catalog read.
	SyncErrorLookup SyncErrorType = "lookup"
)

// CrawlError is one recorded crawl-side failure. Page and item level errors
// accumulate on the job run without aborting it.
type CrawlError struct {
	Type    CrawlErrorType `json:"type"`
	Message string         `json:"message"`
	URL     string         `json:"url,omitempty"`
	Page    int            `json:"page,omitempty"`
}

// Error implements the error interface.
func (e CrawlError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.URL)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewCrawlError builds a typed crawl error.
func NewCrawlError(errType CrawlErrorType, url string, err error) CrawlError {
	return CrawlError{
		Type:    errType,
		Message: err.Error(),
		URL:     url,
	}
}

// SyncError is one recorded sync-side failure, isolated to a single
// operation so the rest of the batch proceeds.
type SyncError struct {
	Type    SyncErrorType `json:"type"`
	Message string        `json:"message"`
	// ItemURL is the scraped item's source URL, when the failure maps to one item.
	ItemURL string `json:"item_url,omitempty"`
	// EntryID is the catalog entry id, when the failure maps to one entry.
	EntryID string `json:"entry_id,omitempty"`
}

// Job stages used in JobError records.
const (
	// JobStageCrawl marks errors raised while crawling.
	JobStageCrawl = "crawl"
	// JobStageSync marks errors raised while reconciling.
	JobStageSync = "sync"
)

// JobError is one structured error on a job run, unifying the crawl and
// sync taxonomies for history storage.
type JobError struct {
	Stage   string `json:"stage"`
	Type    string `json:"type"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
	Page    int    `json:"page,omitempty"`
	EntryID string `json:"entry_id,omitempty"`
}

// JobError converts a crawl error into its history record.
func (e CrawlError) JobError() JobError {
	return JobError{
		Stage:   JobStageCrawl,
		Type:    string(e.Type),
		Message: e.Message,
		URL:     e.URL,
		Page:    e.Page,
	}
}

// JobError converts a sync error into its history record.
func (e SyncError) JobError() JobError {
	return JobError{
		Stage:   JobStageSync,
		Type:    string(e.Type),
		Message: e.Message,
		URL:     e.ItemURL,
		EntryID: e.EntryID,
	}
}

// Error implements the error interface.
func (e SyncError) Error() string {
	switch {
	case e.ItemURL != "":
		return fmt.Sprintf("%s: %s (item %s)", e.Type, e.Message, e.ItemURL)
	case e.EntryID != "":
		return fmt.Sprintf("%s: %s (entry %s)", e.Type, e.Message, e.EntryID)
	default:
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
}
