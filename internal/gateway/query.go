package gateway

import (
	"strings"
	"unicode"
)

// DefaultFallbackQuery is searched when an item has no meaningful title.
const DefaultFallbackQuery = "vintage thrift clothing"

// DefaultQualifiers are appended to titles of photographed items.
var DefaultQualifiers = []string{"vintage", "fashion", "clothing"}

// DefaultPlaceholderTitles are titles the capture flow sets before the
// user or the vision step supplies a real one. Matched case-insensitively.
var DefaultPlaceholderTitles = []string{"", "untitled", "analyzing…", "analyzing...", "unknown item"}

// QueryBuilder turns an item title into a text search query.
type QueryBuilder struct {
	qualifiers   []string
	fallback     string
	placeholders map[string]struct{}
}

// QueryOption configures a QueryBuilder.
type QueryOption func(*QueryBuilder)

// WithQualifiers replaces the qualifier terms.
func WithQualifiers(q ...string) QueryOption {
	return func(b *QueryBuilder) {
		b.qualifiers = q
	}
}

// WithFallbackQuery replaces the fallback query.
func WithFallbackQuery(q string) QueryOption {
	return func(b *QueryBuilder) {
		b.fallback = q
	}
}

// WithPlaceholderTitles replaces the placeholder title set.
func WithPlaceholderTitles(titles ...string) QueryOption {
	return func(b *QueryBuilder) {
		b.placeholders = placeholderSet(titles)
	}
}

// NewQueryBuilder creates a builder with the default terms.
func NewQueryBuilder(opts ...QueryOption) *QueryBuilder {
	b := &QueryBuilder{
		qualifiers:   DefaultQualifiers,
		fallback:     DefaultFallbackQuery,
		placeholders: placeholderSet(DefaultPlaceholderTitles),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var defaultBuilder = NewQueryBuilder()

// BuildQuery builds a query with the default terms.
func BuildQuery(title string, hasImage bool) string {
	return defaultBuilder.Build(title, hasImage)
}

// Build returns the query for title. A placeholder title yields the
// fallback query. Qualifiers are added only for photographed items, and
// only those the title does not already contain.
func (b *QueryBuilder) Build(title string, hasImage bool) string {
	title = strings.Join(strings.Fields(title), " ")
	if b.IsPlaceholder(title) {
		return b.fallback
	}
	if !hasImage {
		return title
	}

	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(title), isSeparator) {
		words[w] = struct{}{}
	}

	parts := []string{title}
	for _, q := range b.qualifiers {
		if _, ok := words[strings.ToLower(q)]; !ok {
			parts = append(parts, q)
		}
	}
	return strings.Join(parts, " ")
}

// IsPlaceholder reports whether title carries no real information.
func (b *QueryBuilder) IsPlaceholder(title string) bool {
	_, ok := b.placeholders[strings.ToLower(strings.TrimSpace(title))]
	return ok
}

func placeholderSet(titles []string) map[string]struct{} {
	set := make(map[string]struct{}, len(titles)+1)
	set[""] = struct{}{}
	for _, t := range titles {
		set[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return set
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
}
