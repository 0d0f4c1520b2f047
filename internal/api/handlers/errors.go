package handlers

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	domain "github.com/donaldgifford/market-comps/pkg/types"
)

// statusError maps engine errors onto HTTP problem responses.
func statusError(msg string, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return huma.Error422UnprocessableEntity(msg, err)
	case errors.Is(err, domain.ErrNoMarketData), errors.Is(err, domain.ErrListingNotFound):
		return huma.Error404NotFound(msg, err)
	case errors.Is(err, domain.ErrSuperseded):
		return huma.Error409Conflict(msg, err)
	case errors.Is(err, domain.ErrAllProvidersFailed), domain.IsProviderFailure(err):
		return huma.Error502BadGateway(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}
