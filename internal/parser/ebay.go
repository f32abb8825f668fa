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

// ebayHighResSuffix is the highest-resolution variant the eBay image CDN serves.
const ebayHighResSuffix = "s-l1600"

// ebayImageSizeRe matches the resolution suffix in ebayimg.com URLs.
var ebayImageSizeRe = regexp.MustCompile(`s-l\d+`)

// ebayItemIDRe extracts the platform-native listing id from an item URL.
var ebayItemIDRe = regexp.MustCompile(`/itm/(?:[^/]+/)?(\d+)`)

// ebayStrategy is one selector set for a list-page layout generation.
// Strategies are tried in order until one yields a non-empty result, which
// tolerates markup drift between layout rollouts.
type ebayStrategy struct {
	container string
	title     string
	price     string
	link      string
	image     string
	subtitle  string
}

// ebayStrategies covers the current search results layout, the card-based
// refresh, and the legacy listing table.
var ebayStrategies = []ebayStrategy{
	{
		container: "li.s-item",
		title:     ".s-item__title",
		price:     ".s-item__price",
		link:      "a.s-item__link",
		image:     ".s-item__image-wrapper img, .s-item__image img",
		subtitle:  ".s-item__subtitle",
	},
	{
		container: ".srp-results .s-card",
		title:     ".s-card__title",
		price:     ".s-card__price",
		link:      "a.su-link",
		image:     ".s-card__image img",
		subtitle:  ".s-card__subtitle",
	},
	{
		container: "table#ListViewInner tr.sresult, .sresult",
		title:     "h3.lvtitle",
		price:     "li.lvprice span.bold, .lvprice",
		link:      "h3.lvtitle a",
		image:     "img.img",
		subtitle:  ".lvsubtitle",
	},
}

// EBayParser parses eBay seller and search result pages.
type EBayParser struct{}

// NewEBayParser creates an eBay parser.
func NewEBayParser() *EBayParser {
	return &EBayParser{}
}

// Platform identifies the parser's platform kind.
func (p *EBayParser) Platform() domain.PlatformKind {
	return domain.PlatformEBay
}

// CanHandle reports whether the URL points at eBay.
func (p *EBayParser) CanHandle(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.Contains(u.Hostname(), "ebay.")
}

// ListURL appends the _pgn pagination parameter. Page 1 is the base URL.
func (p *EBayParser) ListURL(base string, page int) string {
	if page <= 1 {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pgn=%d", base, sep, page)
}

// ParseList extracts items from a search or seller results page.
func (p *EBayParser) ParseList(markup []byte, baseURL string) (*ListResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	result := &ListResult{}

	for _, strategy := range ebayStrategies {
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

	result.HasNextPage, result.NextPageURL = ebayNextPage(doc, baseURL)

	return result, nil
}

// parseCard extracts one item from a result card. Returns false for
// placeholder cards (ad slots, "Shop on eBay" fillers).
func (p *EBayParser) parseCard(card *goquery.Selection, strategy ebayStrategy, baseURL string) (domain.ScrapedItem, bool) {
	title := CleanText(card.Find(strategy.title).First().Text())
	if SkipTitle(title) {
		return domain.ScrapedItem{}, false
	}

	href, _ := card.Find(strategy.link).First().Attr("href")
	sourceURL := canonicalEBayURL(AbsoluteURL(baseURL, href))
	if sourceURL == "" {
		return domain.ScrapedItem{}, false
	}

	item := domain.ScrapedItem{
		SourceURL:  sourceURL,
		PlatformID: ebayItemID(sourceURL),
		Title:      title,
		Price:      ParsePrice(card.Find(strategy.price).First().Text()),
		Condition:  CleanText(card.Find(strategy.subtitle).First().Text()),
		Quantity:   1,
		ScrapedAt:  time.Now(),
	}

	card.Find(strategy.image).EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := firstAttr(img.Attr, "src", "data-src")
		if src == "" || strings.HasPrefix(src, "data:") {
			return true
		}
		item.Images = append(item.Images, UpgradeEBayImage(AbsoluteURL(baseURL, src)))
		return false
	})

	return item, true
}

// ParseDetail extracts one item from a listing detail page. Returns nil when
// the page carries no recognizable title, which tells the driver to keep the
// partial data it already has.
func (p *EBayParser) ParseDetail(markup []byte, pageURL string) (*domain.ScrapedItem, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := CleanText(doc.Find("h1.x-item-title__mainTitle, #itemTitle").First().Text())
	title = strings.TrimPrefix(title, "Details about")
	title = CleanText(title)
	if SkipTitle(title) {
		return nil, nil
	}

	item := &domain.ScrapedItem{
		SourceURL:  canonicalEBayURL(pageURL),
		PlatformID: ebayItemID(pageURL),
		Title:      title,
		Price:      ParsePrice(doc.Find(".x-price-primary .ux-textspans, #prcIsum").First().Text()),
		Condition:  CleanText(doc.Find(".x-item-condition-text .ux-textspans, #vi-itm-cond").First().Text()),
		Quantity:   1,
		ScrapedAt:  time.Now(),
	}

	if desc, ok := doc.Find("meta[name='description']").Attr("content"); ok {
		desc = CleanText(desc)
		if desc != "" {
			item.Description = &desc
		}
	}

	doc.Find(".ux-image-carousel-item img, #icImg").Each(func(_ int, img *goquery.Selection) {
		src := firstAttr(img.Attr, "data-zoom-src", "src", "data-src")
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		item.Images = append(item.Images, UpgradeEBayImage(AbsoluteURL(pageURL, src)))
	})

	return item, nil
}

// UpgradeEBayImage rewrites an ebayimg.com URL to its highest-resolution
// CDN variant.
func UpgradeEBayImage(imageURL string) string {
	if !strings.Contains(imageURL, "ebayimg.com") {
		return imageURL
	}
	return ebayImageSizeRe.ReplaceAllString(imageURL, ebayHighResSuffix)
}

// ebayItemID pulls the numeric listing id out of an item URL.
func ebayItemID(itemURL string) string {
	m := ebayItemIDRe.FindStringSubmatch(itemURL)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// canonicalEBayURL strips tracking query parameters from an item URL so the
// same listing always yields the same natural key.
func canonicalEBayURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if strings.Contains(u.Path, "/itm/") {
		u.RawQuery = ""
		u.Fragment = ""
	}
	return u.String()
}

// ebayNextPage reports whether the results page links a further page.
func ebayNextPage(doc *goquery.Document, baseURL string) (bool, string) {
	next := doc.Find("a.pagination__next").First()
	if next.Length() == 0 {
		next = doc.Find("td.pagn a.gspr.next").First()
	}
	if next.Length() == 0 {
		return false, ""
	}
	if disabled, ok := next.Attr("aria-disabled"); ok && disabled == "true" {
		return false, ""
	}

	href, _ := next.Attr("href")
	return true, AbsoluteURL(baseURL, href)
}
