package parser

import (
	"net/url"
	"strconv"
	"strings"
)

// minTitleLength is the shortest title accepted for an item.
const minTitleLength = 3

// placeholderTitles are titles platforms emit for ad slots and empty cards.
// Items carrying one are skipped, not erred.
var placeholderTitles = map[string]bool{
	"shop on ebay": true,
	"shop on etsy": true,
	"new listing":  true,
	"sponsored":    true,
}

// CleanText collapses runs of whitespace into single spaces and trims.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SkipTitle reports whether a title marks a non-item (placeholder, empty,
// or too short to be a real listing).
func SkipTitle(title string) bool {
	title = CleanText(title)
	if len(title) < minTitleLength {
		return true
	}
	return placeholderTitles[strings.ToLower(title)]
}

// AbsoluteURL resolves href against base. Returns href unchanged when it is
// already absolute or base cannot be parsed.
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return href
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}

	return baseURL.ResolveReference(ref).String()
}

// parseQuantity extracts a non-negative integer from quantity text such as
// "3 available" or "Qty: 2". Defaults to 1 when no number is present.
func parseQuantity(text string) int {
	fields := strings.Fields(text)
	for _, f := range fields {
		f = strings.Trim(f, ":.,")
		if n, err := strconv.Atoi(f); err == nil {
			if n < 0 {
				return 0
			}
			return n
		}
	}
	return 1
}

// firstAttr returns the first non-empty attribute value among names.
func firstAttr(get func(string) (string, bool), names ...string) string {
	for _, name := range names {
		if v, ok := get(name); ok {
			v = strings.TrimSpace(v)
			if v != "" {
				return v
			}
		}
	}
	return ""
}
