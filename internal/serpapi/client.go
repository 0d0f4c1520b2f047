// Package serpapi provides a search provider client for text (shopping) and
// visual (reverse image) searches, abstracted behind an interface for
// testability.
package serpapi

import (
	"context"
)

// Default engine names.
const (
	EngineShopping = "google_shopping"
	EngineLens     = "google_lens"
)

// Request defines the parameters for one provider search. Exactly one of
// Query or ImageURL is set.
type Request struct {
	Engine    string
	Query     string
	ImageURL  string
	Location  string
	Condition string
	Page      int
	Num       int
}

// Visual reports whether the request is an image search.
func (r *Request) Visual() bool {
	return r.ImageURL != ""
}

// Client searches a provider.
type Client interface {
	Search(ctx context.Context, req Request) (*Response, error)
}
