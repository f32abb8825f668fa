package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/storesync/internal/domain"
	"github.com/jonesrussell/storesync/internal/parser"
)

const genericGridMarkup = `
<html><body>
<div class="shop-grid">
  <div class="product-card">
    <a href="/products/leather-wallet"><h3 class="title">Leather Bifold Wallet</h3></a>
    <span class="price">$45.00</span>
    <img src="/images/wallet.jpg">
  </div>
  <div class="product-card">
    <a href="/products/canvas-tote"><h3 class="title">Canvas Tote Bag</h3></a>
    <span class="price">$28.00</span>
    <img data-src="/images/tote.jpg" src="data:image/gif;base64,R0lGOD">
  </div>
</div>
<a href="/shop?page=2">Next</a>
</body></html>`

func TestGenericParseListAutoDetect(t *testing.T) {
	p := parser.NewGenericParser(nil)

	result, err := p.ParseList([]byte(genericGridMarkup), "https://example.com/shop")
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Len(t, result.Items, 2)

	wallet := result.Items[0]
	assert.Equal(t, "Leather Bifold Wallet", wallet.Title)
	assert.Equal(t, "https://example.com/products/leather-wallet", wallet.SourceURL)
	require.NotNil(t, wallet.Price)
	assert.InDelta(t, 45.00, *wallet.Price, 0.001)
	assert.Equal(t, 1, wallet.Quantity)
	require.Len(t, wallet.Images, 1)
	assert.Equal(t, "https://example.com/images/wallet.jpg", wallet.Images[0])

	// data: placeholders are dropped in favor of the lazy-load source.
	tote := result.Items[1]
	require.Len(t, tote.Images, 1)
	assert.Equal(t, "https://example.com/images/tote.jpg", tote.Images[0])

	// The "Next" anchor is picked up without a configured selector.
	assert.True(t, result.HasNextPage)
	assert.Equal(t, "https://example.com/shop?page=2", result.NextPageURL)
}

func TestGenericParseListNoPattern(t *testing.T) {
	markup := `<html><body>
	<div class="product-card"><h3>Only One Item Here</h3></div>
	<p>About our shop</p>
	</body></html>`

	p := parser.NewGenericParser(nil)
	result, err := p.ParseList([]byte(markup), "https://example.com/shop")
	require.NoError(t, err)

	// A single card is not enough evidence of a product grid.
	assert.Empty(t, result.Items)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, domain.CrawlErrorParse, result.Errors[0].Type)
	assert.Contains(t, result.Errors[0].Message, "product_list")
}

func TestGenericParseListConfiguredSelectors(t *testing.T) {
	markup := `<html><body>
	<table><tr class="listing-row">
	  <td class="item-name"><a href="/item/9">Cast Iron Skillet 10in</a></td>
	  <td class="item-cost">34.99</td>
	  <td class="item-sku">SKU-CI10</td>
	  <td class="item-cond">Refurbished</td>
	  <td class="item-stock">3 available</td>
	</tr></table>
	<a class="older" href="/shop/page/2">Older items</a>
	</body></html>`

	p := parser.NewGenericParser(&domain.SelectorConfig{
		ProductList: "tr.listing-row",
		ProductLink: "td.item-name a",
		Title:       "td.item-name",
		Price:       "td.item-cost",
		SKU:         "td.item-sku",
		Condition:   "td.item-cond",
		Quantity:    "td.item-stock",
		NextPage:    "a.older",
	})

	result, err := p.ParseList([]byte(markup), "https://example.com/shop")
	require.NoError(t, err)
	// A configured product_list accepts a single match.
	require.Len(t, result.Items, 1)

	item := result.Items[0]
	assert.Equal(t, "Cast Iron Skillet 10in", item.Title)
	assert.Equal(t, "https://example.com/item/9", item.SourceURL)
	require.NotNil(t, item.Price)
	assert.InDelta(t, 34.99, *item.Price, 0.001)
	assert.Equal(t, "SKU-CI10", item.SKU)
	assert.Equal(t, "Refurbished", item.Condition)
	assert.Equal(t, 3, item.Quantity)

	assert.True(t, result.HasNextPage)
	assert.Equal(t, "https://example.com/shop/page/2", result.NextPageURL)
}

func TestGenericParseListConfiguredSelectorMisses(t *testing.T) {
	p := parser.NewGenericParser(&domain.SelectorConfig{ProductList: ".gone"})

	result, err := p.ParseList([]byte(genericGridMarkup), "https://example.com/shop")
	require.NoError(t, err)

	assert.Empty(t, result.Items)
	require.Len(t, result.Errors, 1)
}

func TestGenericNextPageRelLink(t *testing.T) {
	markup := `<html><head>
	<link rel="next" href="https://example.com/shop?page=4">
	</head><body>
	<div class="product-card"><a href="/p/1"><h3>First Widget</h3></a></div>
	<div class="product-card"><a href="/p/2"><h3>Second Widget</h3></a></div>
	</body></html>`

	p := parser.NewGenericParser(nil)
	result, err := p.ParseList([]byte(markup), "https://example.com/shop?page=3")
	require.NoError(t, err)

	assert.True(t, result.HasNextPage)
	assert.Equal(t, "https://example.com/shop?page=4", result.NextPageURL)
}

func TestGenericListURL(t *testing.T) {
	p := parser.NewGenericParser(nil)

	assert.Equal(t, "https://example.com/shop", p.ListURL("https://example.com/shop", 1))
	assert.Equal(t, "https://example.com/shop?page=2", p.ListURL("https://example.com/shop", 2))
	assert.Equal(t, "https://example.com/shop?sort=new&page=2", p.ListURL("https://example.com/shop?sort=new", 2))
}

func TestGenericCanHandle(t *testing.T) {
	p := parser.NewGenericParser(nil)

	assert.True(t, p.CanHandle("https://any-store.example.com"))
	assert.True(t, p.CanHandle("http://legacy.example.com"))
	assert.False(t, p.CanHandle("ftp://example.com"))
}

func TestGenericParseDetail(t *testing.T) {
	markup := `<html><body>
	<h1>Leather Bifold Wallet</h1>
	<div class="product-description">Full-grain leather, six card slots.</div>
	<span class="price">$45.00</span>
	<img src="/images/wallet-large.jpg">
	</body></html>`

	p := parser.NewGenericParser(nil)
	item, err := p.ParseDetail([]byte(markup), "https://example.com/products/leather-wallet")
	require.NoError(t, err)
	require.NotNil(t, item)

	assert.Equal(t, "Leather Bifold Wallet", item.Title)
	require.NotNil(t, item.Price)
	assert.InDelta(t, 45.00, *item.Price, 0.001)
	require.NotNil(t, item.Description)
	assert.Equal(t, "Full-grain leather, six card slots.", *item.Description)
	require.Len(t, item.Images, 1)
	assert.Equal(t, "https://example.com/images/wallet-large.jpg", item.Images[0])
}
