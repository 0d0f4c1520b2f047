// Package pricing turns heterogeneous marketplace price strings into USD
// amounts. Currency conversion uses a static multiplier table, not live
// exchange rates.
package pricing

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Currency is an ISO 4217 code detected from a price string.
type Currency string

// Supported currency codes.
const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	CHF Currency = "CHF"
)

// DefaultMultipliers holds the approximate USD conversion factor per currency.
var DefaultMultipliers = map[Currency]float64{
	USD: 1.0,
	EUR: 1.08,
	GBP: 1.25,
	CHF: 1.1,
}

var (
	noisePattern = regexp.MustCompile(`\*|CHF|€|£|\$`)
	// Comma-grouped numbers are tried before plain ones so "1,234.56" is
	// read whole instead of stopping at "1".
	amountPattern = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?`)

	displayPrinter = message.NewPrinter(language.AmericanEnglish)
)

// Result is a parsed price.
type Result struct {
	// Amount is the value in the source currency.
	Amount decimal.Decimal
	// USD is Amount converted with the currency multiplier.
	USD      decimal.Decimal
	Currency Currency
}

// Float returns the USD amount at full precision.
func (r Result) Float() float64 {
	f, _ := r.USD.Float64()
	return f
}

// Normalizer parses price strings. It is safe for concurrent use once built.
type Normalizer struct {
	multipliers map[Currency]decimal.Decimal
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithMultiplier overrides the conversion factor for one currency.
func WithMultiplier(c Currency, m float64) Option {
	return func(n *Normalizer) {
		n.multipliers[c] = decimal.NewFromFloat(m)
	}
}

// WithMultipliers overrides conversion factors keyed by currency code, as
// they appear in configuration. Codes are upper-cased.
func WithMultipliers(m map[string]float64) Option {
	return func(n *Normalizer) {
		for code, v := range m {
			n.multipliers[Currency(strings.ToUpper(code))] = decimal.NewFromFloat(v)
		}
	}
}

// NewNormalizer creates a Normalizer seeded with DefaultMultipliers.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{multipliers: make(map[Currency]decimal.Decimal, len(DefaultMultipliers))}
	for c, m := range DefaultMultipliers {
		n.multipliers[c] = decimal.NewFromFloat(m)
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize returns the USD amount for raw, or ok=false when raw carries no
// recognizable number. Only the first numeric token is used.
func (n *Normalizer) Normalize(raw string) (float64, bool) {
	r, ok := n.Parse(raw)
	if !ok {
		return 0, false
	}
	return r.Float(), true
}

// Parse is Normalize with the source amount and currency kept.
func (n *Normalizer) Parse(raw string) (Result, bool) {
	cleaned := strings.TrimSpace(noisePattern.ReplaceAllString(raw, ""))
	if cleaned == "" {
		return Result{}, false
	}

	token := amountPattern.FindString(cleaned)
	if token == "" {
		return Result{}, false
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(token, ",", ""))
	if err != nil {
		return Result{}, false
	}

	cur := DetectCurrency(raw)
	return Result{
		Amount:   amount,
		USD:      amount.Mul(n.multiplier(cur)),
		Currency: cur,
	}, true
}

func (n *Normalizer) multiplier(c Currency) decimal.Decimal {
	if m, ok := n.multipliers[c]; ok {
		return m
	}
	return decimal.NewFromInt(1)
}

// DetectCurrency inspects the original price string for a currency marker.
// Unmarked strings are USD.
func DetectCurrency(raw string) Currency {
	upper := strings.ToUpper(raw)
	switch {
	case strings.Contains(upper, "CHF"):
		return CHF
	case strings.Contains(raw, "€") || strings.Contains(upper, "EUR"):
		return EUR
	case strings.Contains(raw, "£") || strings.Contains(upper, "GBP"):
		return GBP
	default:
		return USD
	}
}

// Display formats a USD amount rounded to whole dollars with thousands
// grouping, e.g. "$1,235".
func Display(amountUSD float64) string {
	whole := decimal.NewFromFloat(amountUSD).Round(0).IntPart()
	return displayPrinter.Sprintf("$%d", whole)
}

// DisplayOptional is Display for an optional amount, rendering "N/A" when absent.
func DisplayOptional(amountUSD *float64) string {
	if amountUSD == nil {
		return "N/A"
	}
	return Display(*amountUSD)
}
