package domain

import (
	"time"
)

// ScrapedItem is a normalized, transient record extracted from one page.
// Produced fresh per crawl and never mutated after creation; the sync
// engine consumes it immediately.
type ScrapedItem struct {
	// SourceURL is the canonical listing URL and the primary natural key.
	SourceURL string `json:"source_url"`
	// PlatformID is the platform-native listing id, when the platform exposes one.
	PlatformID  string            `json:"platform_id,omitempty"`
	Title       string            `json:"title"`
	Price       *float64          `json:"price,omitempty"`
	Description *string           `json:"description,omitempty"`
	// Images holds absolute image URLs in page order.
	Images     []string          `json:"images,omitempty"`
	SKU        string            `json:"sku,omitempty"`
	Condition  string            `json:"condition,omitempty"`
	Quantity   int               `json:"quantity"`
	Category   string            `json:"category,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	ScrapedAt  time.Time         `json:"scraped_at"`
}

// HasDescription reports whether the item carries a non-empty description.
func (i *ScrapedItem) HasDescription() bool {
	return i.Description != nil && *i.Description != ""
}

// NeedsEnrichment reports whether a detail-page visit could fill missing fields.
func (i *ScrapedItem) NeedsEnrichment() bool {
	return !i.HasDescription() || len(i.Images) == 0
}

// MergeMissing copies fields from detail into the item, filling only fields
// the item does not already have. Populated fields are never overwritten.
func (i *ScrapedItem) MergeMissing(detail *ScrapedItem) {
	if detail == nil {
		return
	}
	if !i.HasDescription() && detail.HasDescription() {
		i.Description = detail.Description
	}
	if len(i.Images) == 0 && len(detail.Images) > 0 {
		i.Images = detail.Images
	}
	if i.Price == nil && detail.Price != nil {
		i.Price = detail.Price
	}
	if i.SKU == "" && detail.SKU != "" {
		i.SKU = detail.SKU
	}
	if i.Condition == "" && detail.Condition != "" {
		i.Condition = detail.Condition
	}
	if i.Category == "" && detail.Category != "" {
		i.Category = detail.Category
	}
	for k, v := range detail.Attributes {
		if i.Attributes == nil {
			i.Attributes = make(map[string]string)
		}
		if _, ok := i.Attributes[k]; !ok {
			i.Attributes[k] = v
		}
	}
}
