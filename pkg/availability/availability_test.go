package availability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/donaldgifford/market-comps/pkg/availability"
	domain "github.com/donaldgifford/market-comps/pkg/types"
)

func ptr[T any](v T) *T { return &v }

func TestKeywordClassifier_Classify(t *testing.T) {
	t.Parallel()

	c := availability.NewKeywordClassifier()

	tests := []struct {
		name    string
		signals availability.Signals
		want    domain.Availability
	}{
		{
			name:    "explicit in stock wins over sold text",
			signals: availability.Signals{Title: ptr("Jacket SOLD"), InStock: ptr(true)},
			want:    domain.AvailabilityAvailable,
		},
		{
			name:    "explicit out of stock wins over available text",
			signals: availability.Signals{Title: ptr("Buy now"), InStock: ptr(false)},
			want:    domain.AvailabilitySold,
		},
		{
			name:    "sold keyword in title",
			signals: availability.Signals{Title: ptr("Levi's Jacket - Sold")},
			want:    domain.AvailabilitySold,
		},
		{
			name:    "sold keyword in condition",
			signals: availability.Signals{Title: ptr("Levi's Jacket"), Condition: ptr("Listing ended")},
			want:    domain.AvailabilitySold,
		},
		{
			name:    "unavailable is sold not available",
			signals: availability.Signals{Source: ptr("Currently unavailable")},
			want:    domain.AvailabilitySold,
		},
		{
			name:    "available keyword",
			signals: availability.Signals{Title: ptr("Jacket"), Condition: ptr("Free shipping")},
			want:    domain.AvailabilityAvailable,
		},
		{
			name:    "no signal defaults to available",
			signals: availability.Signals{Title: ptr("Denim trucker jacket"), Source: ptr("Etsy")},
			want:    domain.AvailabilityAvailable,
		},
		{
			name:    "empty signals default to available",
			signals: availability.Signals{},
			want:    domain.AvailabilityAvailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, c.Classify(tt.signals))
		})
	}
}

func TestKeywordClassifier_CustomKeywords(t *testing.T) {
	t.Parallel()

	c := availability.NewKeywordClassifier(
		availability.WithSoldKeywords("Vendu"),
		availability.WithAvailableKeywords("en stock"),
	)

	assert.Equal(t, domain.AvailabilitySold, c.Classify(availability.Signals{Title: ptr("Veste VENDU")}))
	// "sold" is no longer in the sold set, and the default still applies.
	assert.Equal(t, domain.AvailabilityAvailable, c.Classify(availability.Signals{Title: ptr("sold")}))
}

func TestClassifierFunc(t *testing.T) {
	t.Parallel()

	var c availability.Classifier = availability.ClassifierFunc(func(availability.Signals) domain.Availability {
		return domain.AvailabilitySold
	})
	assert.Equal(t, domain.AvailabilitySold, c.Classify(availability.Signals{}))
}

func TestApply(t *testing.T) {
	t.Parallel()

	listings := []domain.Listing{
		{ID: "a", Title: "Jacket sold out"},
		{ID: "b", Title: "Jacket", Availability: domain.AvailabilityUnknown},
		{ID: "c", Title: "Jacket sold", Availability: domain.AvailabilityAvailable},
	}

	availability.Apply(availability.NewKeywordClassifier(), listings)

	assert.Equal(t, domain.AvailabilitySold, listings[0].Availability)
	assert.Equal(t, domain.AvailabilityAvailable, listings[1].Availability)
	assert.Equal(t, domain.AvailabilityAvailable, listings[2].Availability, "existing verdicts are kept")
}
