// Package availability infers whether a market comparable is still for sale
// from the free text a provider returns with it.
//
// The keyword heuristic is best effort. When no signal is found the listing
// is treated as available: hiding a sellable comp costs the user more than
// showing one that may have sold. This default is an assumption, not a
// verified property of provider data.
package availability

import (
	"strings"

	domain "github.com/donaldgifford/market-comps/pkg/types"
)

// Signals are the inputs a classifier may look at. Every field is optional.
type Signals struct {
	Title     *string
	Condition *string
	Source    *string
	// InStock is the provider's explicit flag. When set it wins.
	InStock *bool
}

// SignalsFor extracts classifier inputs from a listing.
func SignalsFor(l *domain.Listing) Signals {
	s := Signals{Condition: l.Condition, InStock: l.InStock}
	if l.Title != "" {
		s.Title = &l.Title
	}
	if l.Source != "" {
		s.Source = &l.Source
	}
	return s
}

// Classifier decides availability. It never returns AvailabilityUnknown.
type Classifier interface {
	Classify(s Signals) domain.Availability
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(s Signals) domain.Availability

// Classify calls f(s).
func (f ClassifierFunc) Classify(s Signals) domain.Availability {
	return f(s)
}

// DefaultSoldKeywords mark a listing as no longer purchasable.
var DefaultSoldKeywords = []string{
	"sold",
	"no longer available",
	"out of stock",
	"discontinued",
	"auction ended",
	"listing ended",
	"item removed",
	"sold out",
	"unavailable",
	"temporarily out of stock",
}

// DefaultAvailableKeywords mark a listing as purchasable.
var DefaultAvailableKeywords = []string{
	"buy now",
	"add to cart",
	"in stock",
	"available",
	"ships",
	"delivery",
	"free shipping",
	"purchase",
	"express shipping",
	"same day",
	"next day",
}

// KeywordClassifier matches lower-cased substrings. Sold keywords are
// checked first, so "unavailable" never reads as "available".
type KeywordClassifier struct {
	sold      []string
	available []string
}

// Option configures a KeywordClassifier.
type Option func(*KeywordClassifier)

// WithSoldKeywords replaces the sold keyword set.
func WithSoldKeywords(kw ...string) Option {
	return func(c *KeywordClassifier) {
		c.sold = lowerAll(kw)
	}
}

// WithAvailableKeywords replaces the available keyword set.
func WithAvailableKeywords(kw ...string) Option {
	return func(c *KeywordClassifier) {
		c.available = lowerAll(kw)
	}
}

// NewKeywordClassifier creates a classifier with the default keyword sets.
func NewKeywordClassifier(opts ...Option) *KeywordClassifier {
	c := &KeywordClassifier{
		sold:      DefaultSoldKeywords,
		available: DefaultAvailableKeywords,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify implements Classifier.
func (c *KeywordClassifier) Classify(s Signals) domain.Availability {
	if s.InStock != nil {
		if *s.InStock {
			return domain.AvailabilityAvailable
		}
		return domain.AvailabilitySold
	}

	text := joinLower(s.Title, s.Condition, s.Source)

	if containsAny(text, c.sold) {
		return domain.AvailabilitySold
	}
	if containsAny(text, c.available) {
		return domain.AvailabilityAvailable
	}
	return domain.AvailabilityAvailable
}

// Apply classifies every listing whose availability is still unknown.
// Listings that already carry a verdict are left untouched.
func Apply(c Classifier, listings []domain.Listing) {
	for i := range listings {
		if listings[i].Availability != "" && listings[i].Availability != domain.AvailabilityUnknown {
			continue
		}
		listings[i].Availability = c.Classify(SignalsFor(&listings[i]))
	}
}

func joinLower(fields ...*string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != nil && *f != "" {
			parts = append(parts, *f)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func lowerAll(kw []string) []string {
	out := make([]string, len(kw))
	for i, k := range kw {
		out[i] = strings.ToLower(k)
	}
	return out
}
