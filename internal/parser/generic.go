package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/storesync/internal/domain"
)

// minCardMatches is the repeat count a container selector must reach to be
// accepted as the page's "product card" pattern.
const minCardMatches = 2

// cardCandidates are tried in order when no product_list selector is
// configured; the first with at least minCardMatches matches wins.
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

// Field selector fallbacks used when the source configures none.
const (
	fallbackTitleSelector = "h2, h3, h4, .title, [class*='title'], [class*='name']"
	fallbackPriceSelector = ".price, [class*='price'], .amount"
	fallbackLinkSelector  = "a[href]"
	fallbackImageSelector = "img"
)

// GenericParser extracts items from arbitrary storefront markup, driven by
// per-source selector configuration with auto-detection of repeating
// product-card containers when no selectors are configured.
type GenericParser struct {
	selectors domain.SelectorConfig
}

// NewGenericParser creates a generic parser. selectors may be nil.
func NewGenericParser(selectors *domain.SelectorConfig) *GenericParser {
	p := &GenericParser{}
	if selectors != nil {
		p.selectors = *selectors
	}
	return p
}

// Platform identifies the parser's platform kind.
func (p *GenericParser) Platform() domain.PlatformKind {
	return domain.PlatformWebsite
}

// CanHandle accepts any parseable URL; the generic parser is the fallback.
func (p *GenericParser) CanHandle(rawURL string) bool {
	return strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://")
}

// ListURL appends a page query parameter. Page 1 is the base URL.
func (p *GenericParser) ListURL(base string, page int) string {
	if page <= 1 {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spage=%d", base, sep, page)
}

// ParseList extracts items using configured selectors, falling back to
// product-card auto-detection. Fewer than minCardMatches candidate matches
// yields zero items plus a diagnostic error, never a crash.
func (p *GenericParser) ParseList(markup []byte, baseURL string) (*ListResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	result := &ListResult{}

	cards := p.findCards(doc)
	if cards == nil {
		result.Errors = append(result.Errors, domain.CrawlError{
			Type:    domain.CrawlErrorParse,
			Message: "no repeating product card pattern detected; configure a product_list selector",
			URL:     baseURL,
		})
		return result, nil
	}

	cards.Each(func(_ int, card *goquery.Selection) {
		if item, ok := p.parseCard(card, baseURL); ok {
			result.Items = append(result.Items, item)
		}
	})

	result.HasNextPage, result.NextPageURL = p.nextPage(doc, baseURL)

	return result, nil
}

// findCards locates the repeating product containers. Returns nil when no
// pattern repeats often enough to look like a product grid.
func (p *GenericParser) findCards(doc *goquery.Document) *goquery.Selection {
	if p.selectors.ProductList != "" {
		cards := doc.Find(p.selectors.ProductList)
		if cards.Length() == 0 {
			return nil
		}
		return cards
	}

	for _, candidate := range cardCandidates {
		cards := doc.Find(candidate)
		if cards.Length() >= minCardMatches {
			return cards
		}
	}

	return nil
}

// parseCard extracts one item from a product card.
func (p *GenericParser) parseCard(card *goquery.Selection, baseURL string) (domain.ScrapedItem, bool) {
	title := CleanText(card.Find(selectorOr(p.selectors.Title, fallbackTitleSelector)).First().Text())
	if SkipTitle(title) {
		return domain.ScrapedItem{}, false
	}

	href, _ := card.Find(selectorOr(p.selectors.ProductLink, fallbackLinkSelector)).First().Attr("href")
	sourceURL := AbsoluteURL(baseURL, href)
	if sourceURL == "" {
		return domain.ScrapedItem{}, false
	}

	item := domain.ScrapedItem{
		SourceURL: sourceURL,
		Title:     title,
		Price:     ParsePrice(card.Find(selectorOr(p.selectors.Price, fallbackPriceSelector)).First().Text()),
		Quantity:  1,
		ScrapedAt: time.Now(),
	}

	if p.selectors.Description != "" {
		if desc := CleanText(card.Find(p.selectors.Description).First().Text()); desc != "" {
			item.Description = &desc
		}
	}
	if p.selectors.SKU != "" {
		item.SKU = CleanText(card.Find(p.selectors.SKU).First().Text())
	}
	if p.selectors.Condition != "" {
		item.Condition = CleanText(card.Find(p.selectors.Condition).First().Text())
	}
	if p.selectors.Category != "" {
		item.Category = CleanText(card.Find(p.selectors.Category).First().Text())
	}
	if p.selectors.Quantity != "" {
		item.Quantity = parseQuantity(card.Find(p.selectors.Quantity).First().Text())
	}

	card.Find(selectorOr(p.selectors.Images, fallbackImageSelector)).Each(func(_ int, img *goquery.Selection) {
		src := imageSource(img)
		if src == "" {
			return
		}
		item.Images = append(item.Images, AbsoluteURL(baseURL, src))
	})

	return item, true
}

// ParseDetail extracts one item from a product detail page using the same
// selector configuration, scoped to the whole document.
func (p *GenericParser) ParseDetail(markup []byte, pageURL string) (*domain.ScrapedItem, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := CleanText(doc.Find(selectorOr(p.selectors.Title, "h1, "+fallbackTitleSelector)).First().Text())
	if SkipTitle(title) {
		return nil, nil
	}

	item := &domain.ScrapedItem{
		SourceURL: pageURL,
		Title:     title,
		Price:     ParsePrice(doc.Find(selectorOr(p.selectors.Price, fallbackPriceSelector)).First().Text()),
		Quantity:  1,
		ScrapedAt: time.Now(),
	}

	descSelector := selectorOr(p.selectors.Description, "[class*='description'], #description")
	if desc := CleanText(doc.Find(descSelector).First().Text()); desc != "" {
		item.Description = &desc
	}

	doc.Find(selectorOr(p.selectors.Images, fallbackImageSelector)).Each(func(_ int, img *goquery.Selection) {
		src := imageSource(img)
		if src == "" {
			return
		}
		item.Images = append(item.Images, AbsoluteURL(pageURL, src))
	})

	return item, nil
}

// nextPage looks for a configured or conventional next-page link.
func (p *GenericParser) nextPage(doc *goquery.Document, baseURL string) (bool, string) {
	if p.selectors.NextPage != "" {
		next := doc.Find(p.selectors.NextPage).First()
		if next.Length() == 0 {
			return false, ""
		}
		href, _ := next.Attr("href")
		return true, AbsoluteURL(baseURL, href)
	}

	if href, ok := doc.Find("link[rel='next']").Attr("href"); ok {
		return true, AbsoluteURL(baseURL, href)
	}
	if href, ok := doc.Find("a[rel='next']").First().Attr("href"); ok {
		return true, AbsoluteURL(baseURL, href)
	}

	var found string
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		label := strings.ToLower(CleanText(a.Text()))
		if label == "next" || label == "next page" || label == "›" || label == "»" {
			found, _ = a.Attr("href")
			return false
		}
		return true
	})
	if found != "" {
		return true, AbsoluteURL(baseURL, found)
	}

	return false, ""
}

// imageSource picks the best image URL from an img tag, preferring lazy-load
// attributes because sites often put an inline placeholder in src.
func imageSource(img *goquery.Selection) string {
	src := firstAttr(img.Attr, "data-src", "data-lazy-src", "src")
	if strings.HasPrefix(src, "data:") {
		return ""
	}
	return src
}

// selectorOr returns the configured selector or its fallback.
func selectorOr(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}
