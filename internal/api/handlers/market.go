package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	domain "github.com/donaldgifford/market-comps/pkg/types"
)

// MarketService is the engine surface the market handlers drive.
type MarketService interface {
	GetMarketData(ctx context.Context, item domain.Item) (domain.AggregatedView, error)
	DeleteListing(ctx context.Context, item domain.Item, listingID string) (domain.AggregatedView, error)
	Invalidate(ctx context.Context, item domain.Item) error
	DeleteItem(ctx context.Context, item domain.Item) error
	State(itemID string) domain.FetchState
}

// MarketHandler serves market data lookups and curation.
type MarketHandler struct {
	svc MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(svc MarketService) *MarketHandler {
	return &MarketHandler{svc: svc}
}

// MarketDataInput is the request body for a market data lookup.
type MarketDataInput struct {
	Body struct {
		ItemID      string `json:"item_id"                minLength:"1"         doc:"Stable identifier of the item being priced"`
		Title       string `json:"title,omitempty"        maxLength:"500"       doc:"Item title, used for the text query"`
		Image       []byte `json:"image,omitempty"        doc:"Item photo, base64 encoded. Enables the visual search"`
		CustomImage bool   `json:"custom_image,omitempty" doc:"Whether the photo was supplied by the user rather than captured"`
	}
}

// ItemRefInput identifies a cached item. Title and custom_image locate the
// shared query entries that belong to it.
type ItemRefInput struct {
	ItemID      string `path:"item_id"       minLength:"1"  doc:"Item identifier"`
	Title       string `query:"title"        doc:"Item title as sent with the lookup"`
	CustomImage bool   `query:"custom_image" doc:"Whether the lookup used a user-supplied photo"`
}

func (in *ItemRefInput) item() domain.Item {
	return domain.Item{ID: in.ItemID, Title: in.Title, CustomImage: in.CustomImage}
}

// DeleteListingInput identifies a listing to remove from an item's results.
type DeleteListingInput struct {
	ItemID      string `path:"item_id"       minLength:"1" doc:"Item identifier"`
	ListingID   string `path:"listing_id"    minLength:"1" doc:"Listing identifier from a previous lookup"`
	Title       string `query:"title"        doc:"Item title as sent with the lookup"`
	CustomImage bool   `query:"custom_image" doc:"Whether the lookup used a user-supplied photo"`
}

// ItemIDInput carries only the item path parameter.
type ItemIDInput struct {
	ItemID string `path:"item_id" minLength:"1" doc:"Item identifier"`
}

// MarketDataOutput is the aggregated view returned by lookups and curation.
type MarketDataOutput struct {
	Body domain.AggregatedView
}

// StateOutput reports an item's lookup lifecycle.
type StateOutput struct {
	Body struct {
		ItemID    string             `json:"item_id"              example:"item-1"`
		Status    domain.FetchStatus `json:"status"               example:"ready"    enum:"empty,loading,ready,errored"`
		Message   string             `json:"message,omitempty"    doc:"Failure description when status is errored"`
		Retryable bool               `json:"retryable"            doc:"Whether a retry should be offered"`
		UpdatedAt time.Time          `json:"updated_at,omitzero"`
	}
}

// GetMarketData returns the aggregated comparable listings for an item,
// fetching from the search provider on a cache miss.
func (h *MarketHandler) GetMarketData(ctx context.Context, in *MarketDataInput) (*MarketDataOutput, error) {
	item := domain.Item{
		ID:          in.Body.ItemID,
		Title:       in.Body.Title,
		Image:       in.Body.Image,
		CustomImage: in.Body.CustomImage,
	}
	view, err := h.svc.GetMarketData(ctx, item)
	if err != nil {
		return nil, statusError("market data lookup failed", err)
	}
	return &MarketDataOutput{Body: view}, nil
}

// DeleteListing hides a listing from an item's results and returns the
// recomputed view.
func (h *MarketHandler) DeleteListing(ctx context.Context, in *DeleteListingInput) (*MarketDataOutput, error) {
	item := domain.Item{ID: in.ItemID, Title: in.Title, CustomImage: in.CustomImage}
	view, err := h.svc.DeleteListing(ctx, item, in.ListingID)
	if err != nil {
		return nil, statusError("deleting listing failed", err)
	}
	return &MarketDataOutput{Body: view}, nil
}

// Invalidate drops cached results for an item so the next lookup refetches.
// Deleted listings stay deleted.
func (h *MarketHandler) Invalidate(ctx context.Context, in *ItemRefInput) (*struct{}, error) {
	if err := h.svc.Invalidate(ctx, in.item()); err != nil {
		return nil, statusError("invalidating item failed", err)
	}
	return nil, nil
}

// DeleteItem forgets everything stored for an item.
func (h *MarketHandler) DeleteItem(ctx context.Context, in *ItemRefInput) (*struct{}, error) {
	if err := h.svc.DeleteItem(ctx, in.item()); err != nil {
		return nil, statusError("deleting item failed", err)
	}
	return nil, nil
}

// GetState returns where an item is in its lookup lifecycle.
func (h *MarketHandler) GetState(_ context.Context, in *ItemIDInput) (*StateOutput, error) {
	state := h.svc.State(in.ItemID)

	resp := &StateOutput{}
	resp.Body.ItemID = in.ItemID
	resp.Body.Status = state.Status
	resp.Body.Message = state.Message
	resp.Body.Retryable = state.Retryable()
	resp.Body.UpdatedAt = state.UpdatedAt
	return resp, nil
}

// RegisterMarketRoutes registers the market data endpoints with the Huma API.
func RegisterMarketRoutes(api huma.API, h *MarketHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-market-data",
		Method:      http.MethodPost,
		Path:        "/api/v1/market-data",
		Summary:     "Get market data for an item",
		Description: "Returns the average price and the available and sold comparable listings for an item. " +
			"Results are cached per item until invalidated.",
		Tags:   []string{"market"},
		Errors: []int{http.StatusUnprocessableEntity, http.StatusBadGateway},
	}, h.GetMarketData)

	huma.Register(api, huma.Operation{
		OperationID: "delete-listing",
		Method:      http.MethodDelete,
		Path:        "/api/v1/items/{item_id}/listings/{listing_id}",
		Summary:     "Delete a listing",
		Description: "Hides a listing from the item's results permanently and returns the recomputed view.",
		Tags:        []string{"market"},
		Errors:      []int{http.StatusNotFound},
	}, h.DeleteListing)

	huma.Register(api, huma.Operation{
		OperationID:   "invalidate-item",
		Method:        http.MethodPost,
		Path:          "/api/v1/items/{item_id}/invalidate",
		Summary:       "Invalidate cached results",
		Description:   "Drops cached results for the item and supersedes any fetch in flight. Deleted listings are kept.",
		Tags:          []string{"market"},
		DefaultStatus: http.StatusNoContent,
	}, h.Invalidate)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-item",
		Method:        http.MethodDelete,
		Path:          "/api/v1/items/{item_id}",
		Summary:       "Delete an item",
		Description:   "Drops cached results and the deletion record for the item.",
		Tags:          []string{"market"},
		DefaultStatus: http.StatusNoContent,
	}, h.DeleteItem)

	huma.Register(api, huma.Operation{
		OperationID: "get-item-state",
		Method:      http.MethodGet,
		Path:        "/api/v1/items/{item_id}/state",
		Summary:     "Get lookup state",
		Description: "Returns whether the item's market data is empty, loading, ready or errored.",
		Tags:        []string{"market"},
	}, h.GetState)
}
