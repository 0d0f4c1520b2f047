// Package main implements a mock search provider and object store for local
// development. It answers SerpAPI-style search requests from a JSON fixture
// and accepts image uploads in memory, so the service can run end to end
// without provider credentials.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

type fixture struct {
	ShoppingResults []json.RawMessage `json:"shopping_results"`
	VisualMatches   []json.RawMessage `json:"visual_matches"`
}

type searchResponse struct {
	SearchMetadata  map[string]string `json:"search_metadata"`
	ShoppingResults []json.RawMessage `json:"shopping_results,omitempty"`
	VisualMatches   []json.RawMessage `json:"visual_matches,omitempty"`
}

type resultTitle struct {
	Title string `json:"title"`
}

func main() {
	port := flag.Int("port", 8089, "port to listen on")
	fixtureFile := flag.String("fixture", "tools/mock-server/testdata/serpapi_fixture.json", "path to search fixture")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	fx, err := loadFixture(*fixtureFile)
	if err != nil {
		logger.Error("failed to load fixture", "path", *fixtureFile, "error", err)
		os.Exit(1)
	}
	logger.Info("loaded fixture", "shopping", len(fx.ShoppingResults), "visual", len(fx.VisualMatches))

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("starting mock provider", "addr", addr,
		"search_url", "http://localhost"+addr+"/search.json",
		"upload_endpoint", "http://localhost"+addr+"/objects",
	)

	srv := &http.Server{
		Addr:         addr,
		Handler:      requestLogger(logger, newMux(logger, fx)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newMux(logger *slog.Logger, fx *fixture) *http.ServeMux {
	objects := newObjectStore()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search.json", searchHandler(logger, fx))
	mux.HandleFunc("PUT /objects/{name...}", objects.put)
	mux.HandleFunc("GET /objects/{name...}", objects.get)
	mux.HandleFunc("DELETE /objects/{name...}", objects.remove)
	return mux
}

func loadFixture(path string) (*fixture, error) {
	data, err := os.ReadFile(path) //nolint:gosec // fixture path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	var fx fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	return &fx, nil
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request", "method", r.Method, "path", r.URL.Path, "query", r.URL.RawQuery)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
	json.NewEncoder(w).Encode(v)
}

func searchHandler(logger *slog.Logger, fx *fixture) http.HandlerFunc {
	type indexed struct {
		raw   json.RawMessage
		title string
	}
	shopping := make([]indexed, 0, len(fx.ShoppingResults))
	for _, raw := range fx.ShoppingResults {
		var r resultTitle
		//nolint:errcheck,gosec // fixture data is trusted; title extraction is best-effort
		json.Unmarshal(raw, &r)
		shopping = append(shopping, indexed{raw: raw, title: strings.ToLower(r.Title)})
	}

	return func(w http.ResponseWriter, r *http.Request) {
		params := r.URL.Query()
		if params.Get("api_key") == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid API key. Your API key should be here: https://serpapi.com/manage-api-key"})
			return
		}

		resp := searchResponse{SearchMetadata: map[string]string{"status": "Success"}}

		switch engine := params.Get("engine"); engine {
		case "google_shopping":
			q := strings.Fields(strings.ToLower(params.Get("q")))
			if len(q) == 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing query `q` parameter."})
				return
			}
			resp.ShoppingResults = []json.RawMessage{}
			for _, item := range shopping {
				if matchesAny(item.title, q) {
					resp.ShoppingResults = append(resp.ShoppingResults, item.raw)
				}
			}
			logger.Info("shopping search", "query", params.Get("q"), "matched", len(resp.ShoppingResults))
		case "google_lens":
			if params.Get("url") == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing `url` parameter."})
				return
			}
			resp.VisualMatches = fx.VisualMatches
			logger.Info("lens search", "url", params.Get("url"), "matched", len(resp.VisualMatches))
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unsupported `" + engine + "` search engine."})
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// matchesAny reports whether title contains any query word. Real shopping
// search is fuzzy, so a partial match still returns the row.
func matchesAny(title string, words []string) bool {
	for _, w := range words {
		if strings.Contains(title, w) {
			return true
		}
	}
	return false
}

type objectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newObjectStore() *objectStore {
	return &objectStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *objectStore) put(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := r.PathValue("name")

	s.mu.Lock()
	s.objects[name] = data
	s.types[name] = r.Header.Get("Content-Type")
	s.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (s *objectStore) get(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	s.mu.Lock()
	data, ok := s.objects[name]
	ct := s.types[name]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	_, _ = w.Write(data)
}

func (s *objectStore) remove(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	s.mu.Lock()
	_, ok := s.objects[name]
	delete(s.objects, name)
	delete(s.types, name)
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
