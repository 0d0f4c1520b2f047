package serpapi

import (
	"bytes"
	"encoding/json"
)

// Response is the decoded provider payload. Every field is optional:
// providers omit fields inconsistently, so nothing is required.
type Response struct {
	SearchMetadata  *SearchMetadata `json:"search_metadata,omitempty"`
	ShoppingResults []Result        `json:"shopping_results,omitempty"`
	OrganicResults  []Result        `json:"organic_results,omitempty"`
	ImageResults    []Result        `json:"image_results,omitempty"`
	VisualMatches   []Result        `json:"visual_matches,omitempty"`
	Error           *string         `json:"error,omitempty"`
}

// SearchMetadata is the provider's bookkeeping for one search.
type SearchMetadata struct {
	ID        *string `json:"id,omitempty"`
	Status    *string `json:"status,omitempty"`
	CreatedAt *string `json:"created_at,omitempty"`
}

// Result is one row of any result array.
type Result struct {
	Position            *int     `json:"position,omitempty"`
	Title               *string  `json:"title,omitempty"`
	Link                *string  `json:"link,omitempty"`
	ProductLink         *string  `json:"product_link,omitempty"`
	Source              *string  `json:"source,omitempty"`
	DisplayedLink       *string  `json:"displayed_link,omitempty"`
	Thumbnail           *string  `json:"thumbnail,omitempty"`
	Price               *Price   `json:"price,omitempty"`
	ExtractedPrice      *float64 `json:"extracted_price,omitempty"`
	Condition           *string  `json:"condition,omitempty"`
	SecondHandCondition *string  `json:"second_hand_condition,omitempty"`
	InStock             *bool    `json:"in_stock,omitempty"`
	Delivery            *string  `json:"delivery,omitempty"`
}

// Price accepts a bare string ("$25.00"), a bare number (25), or an object
// {"value": "$25.00", "extracted_value": 25, "currency": "$"}.
type Price struct {
	Value     *string  `json:"value,omitempty"`
	Extracted *float64 `json:"extracted_value,omitempty"`
	Currency  *string  `json:"currency,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		p.Value = &s
		return nil
	case '{':
		type plain Price
		var v plain
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*p = Price(v)
		return nil
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		p.Extracted = &f
		return nil
	}
}
