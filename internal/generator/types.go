// Package generator discovers CSS selector configurations for website
// sources by analyzing a storefront listing page.
package generator

import (
	"github.com/jonesrussell/storesync/internal/domain"
)

// SelectorCandidate is a discovered CSS selector with confidence scoring.
type SelectorCandidate struct {
	// Field names the selector target (e.g. "product_list", "price").
	Field string `json:"field"`
	// Selector is the best CSS selector found for the field.
	Selector string `json:"selector"`
	// Confidence scores how likely the selector identifies the field,
	// from 0.0 to 1.0.
	Confidence float64 `json:"confidence"`
	// Sample holds extracted text for manual verification.
	Sample string `json:"sample,omitempty"`
	// Matches is how many elements the selector matched.
	Matches int `json:"matches,omitempty"`
}

// Found reports whether a usable selector was discovered.
func (c SelectorCandidate) Found() bool {
	return c.Selector != ""
}

// DiscoveryResult holds the discovered selectors for one listing page.
type DiscoveryResult struct {
	ProductList SelectorCandidate `json:"product_list"`
	ProductLink SelectorCandidate `json:"product_link"`
	Title       SelectorCandidate `json:"title"`
	Price       SelectorCandidate `json:"price"`
	Images      SelectorCandidate `json:"images"`
	NextPage    SelectorCandidate `json:"next_page"`
}

// SelectorConfig renders the result as the selector block of a website
// source's config column. Fields without a discovered selector stay empty
// so the generic parser falls back to its own candidates.
func (r DiscoveryResult) SelectorConfig() *domain.SelectorConfig {
	return &domain.SelectorConfig{
		ProductList: r.ProductList.Selector,
		ProductLink: r.ProductLink.Selector,
		Title:       r.Title.Selector,
		Price:       r.Price.Selector,
		Images:      r.Images.Selector,
		NextPage:    r.NextPage.Selector,
	}
}
