package serpapi

import (
	"strconv"
	"time"

	"github.com/donaldgifford/market-comps/pkg/pricing"
	domain "github.com/donaldgifford/market-comps/pkg/types"
)

// ToSearchResponse converts a provider payload into domain listings with
// stable IDs and normalized prices. Secondary arrays stand in for a kind
// only when its primary array is empty, so positions stay unique.
func ToSearchResponse(resp *Response, engine string, n *pricing.Normalizer, now time.Time) domain.SearchResponse {
	out := domain.SearchResponse{Engine: engine, FetchedAt: now}
	if resp == nil {
		return out
	}
	out.ErrorMessage = resp.Error

	shopping := resp.ShoppingResults
	if len(shopping) == 0 {
		shopping = resp.OrganicResults
	}
	visual := resp.VisualMatches
	if len(visual) == 0 {
		visual = resp.ImageResults
	}

	out.SetListings(domain.KindShoppingResult, ToListings(domain.KindShoppingResult, shopping, n))
	out.SetListings(domain.KindVisualMatch, ToListings(domain.KindVisualMatch, visual, n))
	return out
}

// ToListings converts one result array, preserving provider order.
func ToListings(kind domain.ListingKind, results []Result, n *pricing.Normalizer) []domain.Listing {
	listings := make([]domain.Listing, 0, len(results))
	for i := range results {
		listings = append(listings, toListing(kind, i, &results[i], n))
	}
	return listings
}

func toListing(kind domain.ListingKind, index int, r *Result, n *pricing.Normalizer) domain.Listing {
	position := index + 1
	if r.Position != nil && *r.Position > 0 {
		position = *r.Position
	}

	title := deref(r.Title)
	source := deref(firstSet(r.Source, r.DisplayedLink))

	l := domain.Listing{
		ID:           domain.ListingID(kind, position, title, source),
		Kind:         kind,
		Position:     position,
		Title:        title,
		Source:       source,
		Link:         firstSet(r.Link, r.ProductLink),
		ThumbnailRef: r.Thumbnail,
		Condition:    firstSet(r.Condition, r.SecondHandCondition),
		InStock:      r.InStock,
		Availability: domain.AvailabilityUnknown,
	}

	if raw, ok := rawPrice(r); ok {
		l.RawPrice = &raw
		if parsed, ok := n.Parse(raw); ok {
			usd := parsed.Float()
			l.PriceUSD = &usd
			l.Currency = string(parsed.Currency)
		}
	}

	return l
}

func rawPrice(r *Result) (string, bool) {
	if r.Price != nil {
		if r.Price.Value != nil && *r.Price.Value != "" {
			return *r.Price.Value, true
		}
		if r.Price.Extracted != nil {
			return deref(r.Price.Currency) + formatAmount(*r.Price.Extracted), true
		}
	}
	if r.ExtractedPrice != nil {
		return formatAmount(*r.ExtractedPrice), true
	}
	return "", false
}

func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func firstSet(vals ...*string) *string {
	for _, v := range vals {
		if v != nil && *v != "" {
			return v
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
