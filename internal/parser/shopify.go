package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/storesync/internal/domain"
)

// shopifyFeedPageSize is the page size requested from the products feed;
// a full page implies more pages may follow.
const shopifyFeedPageSize = 250

// shopifyFeed is the shape of a /products.json response.
type shopifyFeed struct {
	Products []shopifyProduct `json:"products"`
}

type shopifyProduct struct {
	ID          int64            `json:"id"`
	Title       string           `json:"title"`
	Handle      string           `json:"handle"`
	BodyHTML    string           `json:"body_html"`
	ProductType string           `json:"product_type"`
	Variants    []shopifyVariant `json:"variants"`
	Images      []shopifyImage   `json:"images"`
}

type shopifyVariant struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	SKU       string `json:"sku"`
	Price     string `json:"price"`
	Available bool   `json:"available"`
}

type shopifyImage struct {
	Src string `json:"src"`
}

// ShopifyParser parses Shopify product feeds. The feed is complete and
// low-noise, so detail parsing is a no-op.
type ShopifyParser struct{}

// NewShopifyParser creates a Shopify parser.
func NewShopifyParser() *ShopifyParser {
	return &ShopifyParser{}
}

// Platform identifies the parser's platform kind.
func (p *ShopifyParser) Platform() domain.PlatformKind {
	return domain.PlatformShopify
}

// CanHandle reports whether the URL points at a Shopify storefront.
func (p *ShopifyParser) CanHandle(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.Contains(u.Hostname(), "myshopify.com") ||
		strings.HasSuffix(u.Path, "/products.json")
}

// ListURL builds the products feed URL for the given page.
func (p *ShopifyParser) ListURL(base string, page int) string {
	root := storeRoot(base)
	return fmt.Sprintf("%s/products.json?limit=%d&page=%d", root, shopifyFeedPageSize, page)
}

// ParseList decodes one feed page. A full page signals more may follow.
func (p *ShopifyParser) ParseList(markup []byte, baseURL string) (*ListResult, error) {
	var feed shopifyFeed
	if err := json.Unmarshal(markup, &feed); err != nil {
		return nil, fmt.Errorf("decode products feed: %w", err)
	}

	result := &ListResult{}
	root := storeRoot(baseURL)

	for i := range feed.Products {
		if item, ok := p.convertProduct(&feed.Products[i], root); ok {
			result.Items = append(result.Items, item)
		}
	}

	result.HasNextPage = len(feed.Products) == shopifyFeedPageSize

	return result, nil
}

// convertProduct maps one feed product to a normalized item.
func (p *ShopifyParser) convertProduct(product *shopifyProduct, root string) (domain.ScrapedItem, bool) {
	title := CleanText(product.Title)
	if SkipTitle(title) || product.Handle == "" {
		return domain.ScrapedItem{}, false
	}

	item := domain.ScrapedItem{
		SourceURL:  root + "/products/" + product.Handle,
		PlatformID: strconv.FormatInt(product.ID, 10),
		Title:      title,
		Category:   product.ProductType,
		ScrapedAt:  time.Now(),
	}

	if desc := stripHTML(product.BodyHTML); desc != "" {
		item.Description = &desc
	}

	for _, img := range product.Images {
		if img.Src != "" {
			item.Images = append(item.Images, img.Src)
		}
	}

	if len(product.Variants) > 0 {
		first := product.Variants[0]
		item.Price = ParsePrice(first.Price)
		item.SKU = first.SKU

		available := 0
		for _, v := range product.Variants {
			if v.Available {
				available++
			}
		}
		item.Quantity = available
	}

	return item, true
}

// ParseDetail is a no-op: the feed already carries every field.
func (p *ShopifyParser) ParseDetail(markup []byte, pageURL string) (*domain.ScrapedItem, error) {
	return nil, nil
}

// storeRoot reduces a storefront URL to scheme://host.
func storeRoot(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return strings.TrimRight(base, "/")
	}
	return u.Scheme + "://" + u.Host
}

// stripHTML reduces an HTML fragment to its collapsed text content.
func stripHTML(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(fragment)))
	if err != nil {
		return CleanText(fragment)
	}
	return CleanText(doc.Text())
}
