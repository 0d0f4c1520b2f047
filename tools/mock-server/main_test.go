package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func loadTestFixture(t *testing.T) *fixture {
	t.Helper()
	fx, err := loadFixture(filepath.Join("testdata", "serpapi_fixture.json"))
	if err != nil {
		t.Fatalf("loading fixture: %v", err)
	}
	return fx
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func doRequest(t *testing.T, mux http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestLoadFixture(t *testing.T) {
	fx := loadTestFixture(t)
	if len(fx.ShoppingResults) == 0 {
		t.Fatal("expected shopping results in fixture")
	}
	if len(fx.VisualMatches) == 0 {
		t.Fatal("expected visual matches in fixture")
	}
}

func TestSearch_MissingAPIKey(t *testing.T) {
	mux := newMux(testLogger(), loadTestFixture(t))

	w := doRequest(t, mux, http.MethodGet, "/search.json?engine=google_shopping&q=jacket", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestSearch_Shopping(t *testing.T) {
	fx := loadTestFixture(t)
	mux := newMux(testLogger(), fx)

	tests := []struct {
		name      string
		query     string
		wantCount int
	}{
		{name: "matches any word", query: "levi's+jacket", wantCount: 5},
		{name: "single word", query: "cardigan", wantCount: 1},
		{name: "no results", query: "nonexistent_xyz_product", wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, mux, http.MethodGet, "/search.json?engine=google_shopping&api_key=k&q="+tt.query, "")
			if w.Code != http.StatusOK {
				t.Fatalf("status=%d, want %d", w.Code, http.StatusOK)
			}

			var resp searchResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			if len(resp.ShoppingResults) != tt.wantCount {
				t.Errorf("results=%d, want %d", len(resp.ShoppingResults), tt.wantCount)
			}
			if resp.SearchMetadata["status"] != "Success" {
				t.Errorf("status=%q, want Success", resp.SearchMetadata["status"])
			}
		})
	}
}

func TestSearch_Lens(t *testing.T) {
	fx := loadTestFixture(t)
	mux := newMux(testLogger(), fx)

	w := doRequest(t, mux, http.MethodGet, "/search.json?engine=google_lens&api_key=k", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing url: status=%d, want %d", w.Code, http.StatusBadRequest)
	}

	w = doRequest(t, mux, http.MethodGet, "/search.json?engine=google_lens&api_key=k&url=http%3A%2F%2Fx%2Fa.jpg", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want %d", w.Code, http.StatusOK)
	}
	var resp searchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.VisualMatches) != len(fx.VisualMatches) {
		t.Errorf("matches=%d, want %d", len(resp.VisualMatches), len(fx.VisualMatches))
	}
}

func TestSearch_UnknownEngine(t *testing.T) {
	mux := newMux(testLogger(), loadTestFixture(t))

	w := doRequest(t, mux, http.MethodGet, "/search.json?engine=bing&api_key=k&q=x", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestObjectStore_Lifecycle(t *testing.T) {
	mux := newMux(testLogger(), loadTestFixture(t))

	if w := doRequest(t, mux, http.MethodPut, "/objects/serp-api/a.jpg", "image-bytes"); w.Code != http.StatusOK {
		t.Fatalf("put: status=%d", w.Code)
	}

	w := doRequest(t, mux, http.MethodGet, "/objects/serp-api/a.jpg", "")
	if w.Code != http.StatusOK || w.Body.String() != "image-bytes" {
		t.Fatalf("get: status=%d body=%q", w.Code, w.Body.String())
	}

	if w := doRequest(t, mux, http.MethodDelete, "/objects/serp-api/a.jpg", ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete: status=%d", w.Code)
	}
	if w := doRequest(t, mux, http.MethodDelete, "/objects/serp-api/a.jpg", ""); w.Code != http.StatusNotFound {
		t.Fatalf("second delete: status=%d, want 404", w.Code)
	}
}
