package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/storesync/internal/domain"
)

// etsyHighResSuffix is the full-resolution variant served by the Etsy CDN.
const etsyHighResSuffix = "il_fullxfull"

// etsyImageSizeRe matches the resolution suffix in etsystatic.com URLs.
var etsyImageSizeRe = regexp.MustCompile(`il_\d+x\d+`)

// etsyListingIDRe extracts the listing id from a listing URL.
var etsyListingIDRe = regexp.MustCompile(`/listing/(\d+)`)

// etsyStrategy is one selector set for a shop-page layout generation.
type etsyStrategy struct {
	container string
	title     string
	price     string
	link      string
	image     string
}

// etsyStrategies covers the current listing-card layout and the older
// data-attribute driven one.
var etsyStrategies = []etsyStrategy{
	{
		container: "div.v2-listing-card",
		title:     ".v2-listing-card__title, h3",
		price:     ".currency-value",
		link:      "a.listing-link",
		image:     ".v2-listing-card__img img, img",
	},
	{
		container: "[data-listing-id]",
		title:     "h3, .text-body",
		price:     ".currency-value, .lc-price",
		link:      "a[href*='/listing/']",
		image:     "img",
	},
}

// EtsyParser parses Etsy shop pages.
type EtsyParser struct{}

// NewEtsyParser creates an Etsy parser.
func NewEtsyParser() *EtsyParser {
	return &EtsyParser{}
}

// Platform identifies the parser's platform kind.
func (p *EtsyParser) Platform() domain.PlatformKind {
	return domain.PlatformEtsy
}

// CanHandle reports whether the URL points at Etsy.
func (p *EtsyParser) CanHandle(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.Contains(u.Hostname(), "etsy.com")
}

// ListURL appends the page parameter. Page 1 is the base URL.
func (p *EtsyParser) ListURL(base string, page int) string {
	if page <= 1 {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spage=%d", base, sep, page)
}

// ParseList extracts items from a shop page.
func (p *EtsyParser) ParseList(markup []byte, baseURL string) (*ListResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	result := &ListResult{}

	for _, strategy := range etsyStrategies {
		cards := doc.Find(strategy.container)
		if cards.Length() == 0 {
			continue
		}

		cards.Each(func(_ int, card *goquery.Selection) {
			if item, ok := p.parseCard(card, strategy, baseURL); ok {
				result.Items = append(result.Items, item)
			}
		})

		if len(result.Items) > 0 {
			break
		}
	}

	result.HasNextPage, result.NextPageURL = etsyNextPage(doc, baseURL)

	return result, nil
}

// parseCard extracts one item from a listing card.
func (p *EtsyParser) parseCard(card *goquery.Selection, strategy etsyStrategy, baseURL string) (domain.ScrapedItem, bool) {
	title := CleanText(card.Find(strategy.title).First().Text())
	if SkipTitle(title) {
		return domain.ScrapedItem{}, false
	}

	href, _ := card.Find(strategy.link).First().Attr("href")
	sourceURL := canonicalEtsyURL(AbsoluteURL(baseURL, href))
	if sourceURL == "" {
		return domain.ScrapedItem{}, false
	}

	platformID, _ := card.Attr("data-listing-id")
	if platformID == "" {
		platformID = etsyListingID(sourceURL)
	}

	item := domain.ScrapedItem{
		SourceURL:  sourceURL,
		PlatformID: platformID,
		Title:      title,
		Price:      ParsePrice(card.Find(strategy.price).First().Text()),
		Quantity:   1,
		ScrapedAt:  time.Now(),
	}

	if src := firstAttr(card.Find(strategy.image).First().Attr, "src", "data-src"); src != "" {
		item.Images = append(item.Images, UpgradeEtsyImage(AbsoluteURL(baseURL, src)))
	}

	return item, true
}

// ParseDetail extracts one item from a listing detail page.
func (p *EtsyParser) ParseDetail(markup []byte, pageURL string) (*domain.ScrapedItem, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := CleanText(doc.Find("h1[data-buy-box-listing-title], h1").First().Text())
	if SkipTitle(title) {
		return nil, nil
	}

	item := &domain.ScrapedItem{
		SourceURL:  canonicalEtsyURL(pageURL),
		PlatformID: etsyListingID(pageURL),
		Title:      title,
		Price:      ParsePrice(doc.Find("[data-buy-box-region='price'] .currency-value, .currency-value").First().Text()),
		Quantity:   1,
		ScrapedAt:  time.Now(),
	}

	if desc := CleanText(doc.Find("[data-product-details-description-text-content], #description-text").First().Text()); desc != "" {
		item.Description = &desc
	}

	doc.Find("ul.carousel-pane-list img, .listing-page-image-carousel-component img").Each(func(_ int, img *goquery.Selection) {
		src := firstAttr(img.Attr, "data-src-zoom-image", "src", "data-src")
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		item.Images = append(item.Images, UpgradeEtsyImage(AbsoluteURL(pageURL, src)))
	})

	return item, nil
}

// UpgradeEtsyImage rewrites an etsystatic.com URL to its full-resolution
// CDN variant.
func UpgradeEtsyImage(imageURL string) string {
	if !strings.Contains(imageURL, "etsystatic.com") {
		return imageURL
	}
	return etsyImageSizeRe.ReplaceAllString(imageURL, etsyHighResSuffix)
}

// etsyListingID pulls the numeric listing id out of a listing URL.
func etsyListingID(listingURL string) string {
	m := etsyListingIDRe.FindStringSubmatch(listingURL)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// canonicalEtsyURL strips tracking query parameters from a listing URL.
func canonicalEtsyURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if strings.Contains(u.Path, "/listing/") {
		u.RawQuery = ""
		u.Fragment = ""
	}
	return u.String()
}

// etsyNextPage reports whether the shop page links a further page.
func etsyNextPage(doc *goquery.Document, baseURL string) (bool, string) {
	if href, ok := doc.Find("link[rel='next']").Attr("href"); ok {
		return true, AbsoluteURL(baseURL, href)
	}

	next := doc.Find("nav a[aria-label*='Next'], a.wt-btn--icon[aria-label*='Next']").First()
	if next.Length() == 0 {
		return false, ""
	}
	if _, disabled := next.Attr("disabled"); disabled {
		return false, ""
	}

	href, _ := next.Attr("href")
	return true, AbsoluteURL(baseURL, href)
}
