package serpapi

import (
	"fmt"

	domain "github.com/donaldgifford/market-comps/pkg/types"
)

// ProviderError describes a failed provider call. It unwraps to one of
// domain.ErrInvalidRequest, domain.ErrProviderUnavailable or domain.ErrDecode.
type ProviderError struct {
	Engine     string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("search provider %s error (status %d): %s", e.Engine, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("search provider %s: %s", e.Engine, e.Message)
}

// Unwrap returns the taxonomy sentinel.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

func unavailable(engine string, status int, msg string) *ProviderError {
	return &ProviderError{Engine: engine, StatusCode: status, Message: msg, Err: domain.ErrProviderUnavailable}
}

func invalid(engine, msg string) *ProviderError {
	return &ProviderError{Engine: engine, Message: msg, Err: domain.ErrInvalidRequest}
}

func decodeFailed(engine string, err error) *ProviderError {
	return &ProviderError{Engine: engine, Message: err.Error(), Err: domain.ErrDecode}
}
