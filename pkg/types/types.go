// Package domain defines the core business types for the market comps engine.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// ListingKind identifies which provider result shape a listing came from.
type ListingKind string

// Listing kind constants.
const (
	KindVisualMatch    ListingKind = "visual_match"
	KindShoppingResult ListingKind = "shopping_result"
)

// Kinds lists every listing kind in a stable order for iteration.
var Kinds = []ListingKind{KindVisualMatch, KindShoppingResult}

// Valid reports whether k is a known listing kind.
func (k ListingKind) Valid() bool {
	return k == KindVisualMatch || k == KindShoppingResult
}

// Availability represents whether a comparable can still be bought.
type Availability string

// Availability constants.
const (
	AvailabilityUnknown   Availability = "unknown"
	AvailabilityAvailable Availability = "available"
	AvailabilitySold      Availability = "sold"
)

// Item is the thing being priced: a scanned photo, a typed title, or both.
type Item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	// Image holds the raw photo bytes. It is never persisted.
	Image       []byte `json:"-"`
	CustomImage bool   `json:"custom_image"`
}

// HasImage reports whether the item carries photo bytes for a visual search.
func (i *Item) HasImage() bool {
	return len(i.Image) > 0
}

// HasCustomImage reports whether the item is keyed as a user-supplied photo.
func (i *Item) HasCustomImage() bool {
	return i.CustomImage || i.HasImage()
}

// Listing is one normalized market comparable.
type Listing struct {
	ID           string       `json:"id"`
	Kind         ListingKind  `json:"kind"`
	Position     int          `json:"position"`
	Title        string       `json:"title"`
	Source       string       `json:"source"`
	Link         *string      `json:"link,omitempty"`
	ThumbnailRef *string      `json:"thumbnail_ref,omitempty"`
	RawPrice     *string      `json:"raw_price,omitempty"`
	PriceUSD     *float64     `json:"price_usd,omitempty"`
	Currency     string       `json:"currency,omitempty"`
	Condition    *string      `json:"condition,omitempty"`
	InStock      *bool        `json:"in_stock,omitempty"`
	Availability Availability `json:"availability"`
}

// Priced reports whether the listing has a normalized USD price.
func (l *Listing) Priced() bool {
	return l.PriceUSD != nil
}

// ListingID derives the stable identifier for a provider result. The same
// provider row always maps to the same ID, so deletions survive re-fetches.
func ListingID(kind ListingKind, position int, title, source string) string {
	var b strings.Builder
	b.WriteString(string(kind))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(position))
	b.WriteByte('|')
	b.WriteString(title)
	b.WriteByte('|')
	b.WriteString(source)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

// SearchResponse is the raw, uncurated payload from a provider for one item.
type SearchResponse struct {
	Results      map[ListingKind][]Listing `json:"results"`
	Engine       string                    `json:"engine,omitempty"`
	Query        string                    `json:"query,omitempty"`
	ErrorMessage *string                   `json:"error_message,omitempty"`
	FetchedAt    time.Time                 `json:"fetched_at"`
}

// Listings returns the ordered listings for one kind.
func (r *SearchResponse) Listings(kind ListingKind) []Listing {
	if r == nil || r.Results == nil {
		return nil
	}
	return r.Results[kind]
}

// SetListings replaces the listings for one kind.
func (r *SearchResponse) SetListings(kind ListingKind, listings []Listing) {
	if r.Results == nil {
		r.Results = make(map[ListingKind][]Listing, len(Kinds))
	}
	r.Results[kind] = listings
}

// Empty reports whether the response carries no listings of any kind.
func (r *SearchResponse) Empty() bool {
	for _, k := range Kinds {
		if len(r.Listings(k)) > 0 {
			return false
		}
	}
	return true
}

// Find returns the listing with the given ID, if present.
func (r *SearchResponse) Find(listingID string) (Listing, bool) {
	for _, k := range Kinds {
		for _, l := range r.Listings(k) {
			if l.ID == listingID {
				return l, true
			}
		}
	}
	return Listing{}, false
}

// ListingGroups splits listings by kind.
type ListingGroups struct {
	Visual   []Listing `json:"visual"`
	Shopping []Listing `json:"shopping"`
}

// Add appends a listing to the group matching its kind.
func (g *ListingGroups) Add(l Listing) {
	switch l.Kind {
	case KindVisualMatch:
		g.Visual = append(g.Visual, l)
	case KindShoppingResult:
		g.Shopping = append(g.Shopping, l)
	}
}

// Len returns the number of listings across both kinds.
func (g *ListingGroups) Len() int {
	return len(g.Visual) + len(g.Shopping)
}

// AggregatedView is what callers render: the average price plus the
// in-stock and sold partitions of the curated listings.
type AggregatedView struct {
	ItemID              string        `json:"item_id"`
	AveragePriceUSD     *float64      `json:"average_price_usd,omitempty"`
	AveragePriceDisplay string        `json:"average_price_display"`
	PricedCount         int           `json:"priced_count"`
	Available           ListingGroups `json:"available"`
	Sold                ListingGroups `json:"sold"`
	Summary             *string       `json:"summary,omitempty"`
	ListingCopy         *string       `json:"listing_copy,omitempty"`
	FromCache           bool          `json:"from_cache"`
	FetchedAt           time.Time     `json:"fetched_at"`
}

// FetchStatus is the per-item lifecycle state of a market data lookup.
type FetchStatus string

// Fetch status constants.
const (
	StatusEmpty   FetchStatus = "empty"
	StatusLoading FetchStatus = "loading"
	StatusReady   FetchStatus = "ready"
	StatusErrored FetchStatus = "errored"
)

// FetchState reports where an item is in its lookup lifecycle. Message is
// set only when Status is StatusErrored.
type FetchState struct {
	Status    FetchStatus `json:"status"`
	Message   string      `json:"message,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Retryable reports whether the caller should offer a retry action.
func (s FetchState) Retryable() bool {
	return s.Status == StatusErrored
}
