package syncer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/jonesrussell/storesync/internal/domain"
)

// skuHashLength is the hex digit count taken from the title digest.
const skuHashLength = 8

// platformSKUPrefixes map platform kinds to SKU prefixes for entries keyed
// by a platform-native id.
var platformSKUPrefixes = map[domain.PlatformKind]string{
	domain.PlatformEBay:    "EB",
	domain.PlatformEtsy:    "ET",
	domain.PlatformShopify: "SH",
	domain.PlatformWebsite: "WS",
}

// priceDiffers reports whether two prices are numerically different.
// Null versus non-null counts as a difference.
func priceDiffers(a, b *float64) bool {
	if a == nil && b == nil {
		return false
	}
	if a == nil || b == nil {
		return true
	}
	return *a != *b
}

// titleDiffers reports whether two titles are materially different. A title
// differs only when neither string is a case-insensitive substring of the
// other, which guards against cosmetic reformatting such as appended
// condition suffixes.
func titleDiffers(existing, scraped string) bool {
	a := strings.ToLower(strings.TrimSpace(existing))
	b := strings.ToLower(strings.TrimSpace(scraped))
	if a == "" || b == "" {
		return a != b
	}
	return !strings.Contains(a, b) && !strings.Contains(b, a)
}

// platformSKU builds a SKU from a platform-native listing id.
func platformSKU(platform domain.PlatformKind, nativeID string) string {
	prefix, ok := platformSKUPrefixes[platform]
	if !ok {
		prefix = "XX"
	}
	return prefix + "-" + nativeID
}

// hashSKU builds a SKU from a content hash of the title plus a uniqueness
// suffix from the tenant item counter.
func hashSKU(title string, seq int) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(title))))
	return fmt.Sprintf("GEN-%s-%d", strings.ToUpper(hex.EncodeToString(sum[:])[:skuHashLength]), seq)
}
