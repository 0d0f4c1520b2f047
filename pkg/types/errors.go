package domain

import "errors"

// Sentinel errors shared across the engine.
var (
	// ErrInvalidRequest marks a malformed query or URL. It is never retried.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrProviderUnavailable marks a non-200 response, a network failure, or a timeout.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrDecode marks a provider response whose shape could not be decoded.
	// Callers treat it the same as ErrProviderUnavailable.
	ErrDecode = errors.New("provider response could not be decoded")

	// ErrCacheCorruption marks a stored blob that failed to deserialize. A
	// corrupt cache entry is logged and read as a miss. A corrupt curation
	// record is returned, since dropping it would undo user deletions.
	ErrCacheCorruption = errors.New("cache entry corrupt")

	// ErrAllProvidersFailed is returned when every search provider failed.
	ErrAllProvidersFailed = errors.New("all search providers failed")

	// ErrSuperseded is returned when an in-flight fetch was replaced or its
	// item deleted before the result arrived.
	ErrSuperseded = errors.New("fetch superseded")

	// ErrNoMarketData is returned when an operation needs cached market data
	// that does not exist yet.
	ErrNoMarketData = errors.New("no market data cached for item")

	// ErrListingNotFound is returned when a listing ID is not part of the
	// item's cached results.
	ErrListingNotFound = errors.New("listing not found")
)

// IsProviderFailure reports whether err is a recoverable provider error.
func IsProviderFailure(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrDecode)
}
