package generator

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/storesync/internal/parser"
)

const (
	sampleTextLength = 100
	minCardMatches   = 2

	highConfidence       = 0.95
	mediumHighConfidence = 0.85
	mediumConfidence     = 0.75
	lowConfidence        = 0.60
)

// cardCandidates are repeating-container selectors tried in order when
// discovering the product list. Mirrors what the generic parser auto-detects
// at crawl time.
var cardCandidates = []string{
	".product-card",
	".product-item",
	"li.product",
	"article.product",
	"[class*='product-card']",
	"[class*='ProductCard']",
	".product",
	".item-card",
	"[data-product-id]",
}

// titleCandidates are within-card title selectors tried in order.
var titleCandidates = []string{
	"h1", "h2", "h3", "h4",
	".title",
	"[class*='title']",
	"[class*='name']",
	"a",
}

// priceCandidates are within-card price selectors tried in order.
var priceCandidates = []string{
	".price",
	"[class*='price']",
	"[data-price]",
	"span",
}

// nextPageCandidates are pagination selectors tried in order.
var nextPageCandidates = []string{
	"link[rel='next']",
	"a[rel='next']",
	".pagination a.next",
	"a.pagination__next",
	"a[aria-label='Next']",
}

// SelectorDiscovery analyzes a listing page to discover the CSS selectors a
// website source needs in its config.
type SelectorDiscovery struct {
	doc *goquery.Document
}

// NewSelectorDiscovery parses the markup of one listing page.
func NewSelectorDiscovery(markup []byte) (*SelectorDiscovery, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	return &SelectorDiscovery{doc: doc}, nil
}

// DiscoverAll runs every discovery step. Field discovery happens inside the
// discovered product card, so selectors compose the way the generic parser
// applies them at crawl time.
func (sd *SelectorDiscovery) DiscoverAll() DiscoveryResult {
	result := DiscoveryResult{
		ProductList: sd.DiscoverProductList(),
		ProductLink: SelectorCandidate{Field: "product_link"},
		Title:       SelectorCandidate{Field: "title"},
		Price:       SelectorCandidate{Field: "price"},
		Images:      SelectorCandidate{Field: "images"},
		NextPage:    sd.DiscoverNextPage(),
	}

	if !result.ProductList.Found() {
		return result
	}

	card := sd.doc.Find(result.ProductList.Selector).First()
	result.Title = discoverTitle(card)
	result.Price = discoverPrice(card)
	result.Images = discoverImages(card)
	result.ProductLink = discoverLink(card)

	return result
}

// DiscoverProductList finds the repeating product card container. A selector
// qualifies only when it matches at least two elements; cards containing a
// parseable price score higher.
func (sd *SelectorDiscovery) DiscoverProductList() SelectorCandidate {
	candidate := SelectorCandidate{Field: "product_list"}

	for _, sel := range cardCandidates {
		matches := sd.doc.Find(sel)
		count := matches.Length()
		if count < minCardMatches {
			continue
		}

		confidence := mediumConfidence
		if cardHasPrice(matches.First()) {
			confidence = highConfidence
		}

		if confidence > candidate.Confidence {
			candidate.Selector = sel
			candidate.Confidence = confidence
			candidate.Matches = count
			candidate.Sample = truncate(strings.TrimSpace(matches.First().Text()))
		}
	}

	return candidate
}

// DiscoverNextPage finds the pagination link.
func (sd *SelectorDiscovery) DiscoverNextPage() SelectorCandidate {
	candidate := SelectorCandidate{Field: "next_page"}

	for _, sel := range nextPageCandidates {
		link := sd.doc.Find(sel).First()
		if link.Length() == 0 {
			continue
		}
		href, ok := link.Attr("href")
		if !ok || href == "" {
			continue
		}

		candidate.Selector = sel
		candidate.Confidence = highConfidence
		candidate.Sample = truncate(href)
		return candidate
	}

	// Fall back to anchor text.
	sd.doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		if text != "next" && text != "›" && text != "»" {
			return true
		}
		href, _ := s.Attr("href")
		candidate.Selector = buildAnchorSelector(s)
		candidate.Confidence = lowConfidence
		candidate.Sample = truncate(href)
		return false
	})

	return candidate
}

// discoverTitle finds the within-card title selector.
func discoverTitle(card *goquery.Selection) SelectorCandidate {
	candidate := SelectorCandidate{Field: "title"}

	for _, sel := range titleCandidates {
		text := strings.TrimSpace(card.Find(sel).First().Text())
		if text == "" {
			continue
		}

		confidence := mediumHighConfidence
		if sel == "a" || sel == "span" {
			confidence = lowConfidence
		}

		candidate.Selector = sel
		candidate.Confidence = confidence
		candidate.Sample = truncate(text)
		return candidate
	}

	return candidate
}

// discoverPrice finds the within-card price selector. A candidate counts
// only when its text parses as a price.
func discoverPrice(card *goquery.Selection) SelectorCandidate {
	candidate := SelectorCandidate{Field: "price"}

	for _, sel := range priceCandidates {
		found := false
		card.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if parser.ParsePrice(text) == nil {
				return true
			}

			confidence := mediumHighConfidence
			if sel == "span" {
				confidence = lowConfidence
			}

			candidate.Selector = sel
			candidate.Confidence = confidence
			candidate.Sample = truncate(text)
			found = true
			return false
		})
		if found {
			return candidate
		}
	}

	return candidate
}

// discoverImages finds the within-card image selector.
func discoverImages(card *goquery.Selection) SelectorCandidate {
	candidate := SelectorCandidate{Field: "images"}

	img := card.Find("img").First()
	if img.Length() == 0 {
		return candidate
	}

	src := firstImageSource(img)
	if src == "" || isPlaceholderImage(src) {
		return candidate
	}

	candidate.Selector = "img"
	candidate.Confidence = mediumConfidence
	candidate.Sample = truncate(src)
	return candidate
}

// discoverLink finds the within-card product link selector.
func discoverLink(card *goquery.Selection) SelectorCandidate {
	candidate := SelectorCandidate{Field: "product_link"}

	link := card.Find("a[href]").First()
	if link.Length() == 0 {
		return candidate
	}

	href, _ := link.Attr("href")
	candidate.Selector = buildAnchorSelector(link)
	candidate.Confidence = mediumConfidence
	candidate.Sample = truncate(href)
	return candidate
}

// cardHasPrice reports whether a card contains any parseable price text.
func cardHasPrice(card *goquery.Selection) bool {
	has := false
	card.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 {
			return true
		}
		if parser.ParsePrice(strings.TrimSpace(s.Text())) != nil {
			has = true
			return false
		}
		return true
	})
	return has
}

// buildAnchorSelector builds a selector for an anchor from its class, or
// plain "a" when it has none.
func buildAnchorSelector(s *goquery.Selection) string {
	class, ok := s.Attr("class")
	if !ok || class == "" {
		return "a"
	}

	classes := strings.Fields(class)
	if len(classes) == 0 {
		return "a"
	}

	return "a." + classes[0]
}

// firstImageSource prefers lazy-load attributes over src.
func firstImageSource(img *goquery.Selection) string {
	for _, attr := range []string{"data-src", "data-lazy-src", "src"} {
		if v, ok := img.Attr(attr); ok && v != "" {
			return v
		}
	}
	return ""
}

// isPlaceholderImage checks if an image URL is a placeholder.
func isPlaceholderImage(src string) bool {
	return strings.Contains(src, "placeholder") ||
		strings.Contains(src, "spinner") ||
		strings.HasPrefix(src, "data:")
}

// truncate shortens sample text for display.
func truncate(text string) string {
	if len(text) <= sampleTextLength {
		return text
	}
	return text[:sampleTextLength] + "..."
}
