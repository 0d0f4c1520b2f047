package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// MarketKey is the primary market data key for an item.
func MarketKey(itemID string, hasCustomImage bool) string {
	return fmt.Sprintf("market_%s_%t", itemID, hasCustomImage)
}

// QueryKey is the fallback market data key for a search query. Queries that
// differ only in case or whitespace share a key.
func QueryKey(query string, hasCustomImage bool) string {
	return fmt.Sprintf("query_%s_%t", hashInput(NormalizeInput(query)), hasCustomImage)
}

// TextKey is the key for generated text produced by tool from input.
func TextKey(tool, input string) string {
	return tool + "_" + hashInput(NormalizeInput(input))
}

// NormalizeInput folds input to a canonical form: NFKC, lower case, trimmed,
// and with whitespace runs replaced by a single underscore.
func NormalizeInput(s string) string {
	// Casers carry state and are not safe to share between goroutines.
	lower := cases.Lower(language.Und).String(norm.NFKC.String(s))
	return strings.Join(strings.Fields(lower), "_")
}

func hashInput(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:12])
}
