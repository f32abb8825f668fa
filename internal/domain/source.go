package domain

import (
	"time"
)

// Default per-source crawl options.
const (
	// DefaultFrequencyMinutes is the default crawl cadence.
	DefaultFrequencyMinutes = 60
	// DefaultMaxPages caps pagination per job.
	DefaultMaxPages = 10
	// DefaultDelayMs is the mandatory delay between consecutive fetches.
	DefaultDelayMs = 1000
	// DefaultMaxDetailFetches caps detail-page enrichment per job.
	DefaultMaxDetailFetches = 20
)

// Source is a configured external storefront or feed crawled on a schedule.
type Source struct {
	ID               string       `db:"id" json:"id"`
	TenantID         string       `db:"tenant_id" json:"tenant_id"`
	Name             string       `db:"name" json:"name"`
	Platform         PlatformKind `db:"platform" json:"platform"`
	URL              string       `db:"url" json:"url"`
	Active           bool         `db:"active" json:"active"`
	FrequencyMinutes int          `db:"frequency_minutes" json:"frequency_minutes"`
	// Config holds per-source crawl options, selectors and auth as a JSONB blob.
	Config        JSONBMap   `db:"config" json:"config,omitempty"`
	LastCrawledAt *time.Time `db:"last_crawled_at" json:"last_crawled_at,omitempty"`
	LastItemCount int        `db:"last_item_count" json:"last_item_count"`
	LastError     *string    `db:"last_error" json:"last_error,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Due reports whether the source should be crawled at the given instant.
// A source that has never been crawled is always due.
func (s *Source) Due(now time.Time) bool {
	if !s.Active {
		return false
	}
	if s.LastCrawledAt == nil {
		return true
	}

	freq := s.FrequencyMinutes
	if freq <= 0 {
		freq = DefaultFrequencyMinutes
	}

	return now.Sub(*s.LastCrawledAt) >= time.Duration(freq)*time.Minute
}

// SourceOptions is the typed view of a source's config blob.
type SourceOptions struct {
	MaxPages          int             `mapstructure:"max_pages"`
	DelayMs           int             `mapstructure:"delay_ms"`
	MaxDetailFetches  int             `mapstructure:"max_detail_fetches"`
	IncludeOutOfStock bool            `mapstructure:"include_out_of_stock"`
	MinPrice          *float64        `mapstructure:"min_price"`
	MaxPrice          *float64        `mapstructure:"max_price"`
	Selectors         *SelectorConfig `mapstructure:"selectors"`
	Auth              *AuthConfig     `mapstructure:"auth"`
}

// Delay returns the configured inter-request delay.
func (o *SourceOptions) Delay() time.Duration {
	ms := o.DelayMs
	if ms <= 0 {
		ms = DefaultDelayMs
	}
	return time.Duration(ms) * time.Millisecond
}

// PageCap returns the configured max pages per job.
func (o *SourceOptions) PageCap() int {
	if o.MaxPages <= 0 {
		return DefaultMaxPages
	}
	return o.MaxPages
}

// DetailCap returns the configured max detail fetches per job.
func (o *SourceOptions) DetailCap() int {
	if o.MaxDetailFetches <= 0 {
		return DefaultMaxDetailFetches
	}
	return o.MaxDetailFetches
}

// SelectorConfig configures the generic parser's field extraction.
// All fields are CSS selectors; empty fields fall back to auto-detection.
type SelectorConfig struct {
	ProductList string `mapstructure:"product_list" json:"product_list,omitempty"`
	ProductLink string `mapstructure:"product_link" json:"product_link,omitempty"`
	Title       string `mapstructure:"title" json:"title,omitempty"`
	Price       string `mapstructure:"price" json:"price,omitempty"`
	Description string `mapstructure:"description" json:"description,omitempty"`
	Images      string `mapstructure:"images" json:"images,omitempty"`
	SKU         string `mapstructure:"sku" json:"sku,omitempty"`
	Condition   string `mapstructure:"condition" json:"condition,omitempty"`
	Quantity    string `mapstructure:"quantity" json:"quantity,omitempty"`
	Category    string `mapstructure:"category" json:"category,omitempty"`
	NextPage    string `mapstructure:"next_page" json:"next_page,omitempty"`
}

// AuthConfig configures a one-time storefront login before page 1.
type AuthConfig struct {
	AuthURL  string `mapstructure:"auth_url" json:"auth_url"`
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"password"`
}
