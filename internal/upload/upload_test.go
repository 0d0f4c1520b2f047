package upload_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/market-comps/internal/upload"
	domain "github.com/donaldgifford/market-comps/pkg/types"
)

// jpegHeader is enough for content sniffing.
var jpegHeader = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

type objectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	auth    []string
}

func newObjectStore() *objectStore {
	return &objectStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *objectStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auth = append(s.auth, r.Header.Get("Authorization"))
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		s.objects[r.URL.Path] = body
		s.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		if _, ok := s.objects[r.URL.Path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(s.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestHTTPUploader_UploadAndDelete(t *testing.T) {
	t.Parallel()

	store := newObjectStore()
	srv := httptest.NewServer(store)
	t.Cleanup(srv.Close)

	u := upload.NewHTTPUploader(srv.URL+"/bucket",
		upload.WithPublicBaseURL("https://cdn.example.com/"),
		upload.WithToken("secret"),
		upload.WithNameFunc(func() string { return "fixed" }),
	)

	url, err := u.Upload(context.Background(), jpegHeader)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/serp-api/fixed.jpg", url)

	store.mu.Lock()
	assert.Equal(t, jpegHeader, store.objects["/bucket/serp-api/fixed.jpg"])
	assert.Equal(t, "image/jpeg", store.types["/bucket/serp-api/fixed.jpg"])
	assert.Equal(t, "Bearer secret", store.auth[0])
	store.mu.Unlock()

	require.NoError(t, u.Delete(context.Background(), url))
	require.NoError(t, u.Delete(context.Background(), url), "deleting a missing object succeeds")

	store.mu.Lock()
	assert.Empty(t, store.objects)
	store.mu.Unlock()
}

func TestHTTPUploader_DefaultsPublicURLToEndpoint(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newObjectStore())
	t.Cleanup(srv.Close)

	u := upload.NewHTTPUploader(srv.URL, upload.WithPrefix("/scans/"))
	url, err := u.Upload(context.Background(), []byte("raw bytes"))
	require.NoError(t, err)
	assert.Regexp(t, `^`+srv.URL+`/scans/[0-9a-f-]{36}\.jpg$`, url)
}

func TestHTTPUploader_ExtensionFollowsContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		image    []byte
		wantExt  string
		wantType string
	}{
		{name: "jpeg", image: jpegHeader, wantExt: ".jpg", wantType: "image/jpeg"},
		{name: "png", image: []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), wantExt: ".png", wantType: "image/png"},
		{name: "webp", image: []byte("RIFF\x24\x00\x00\x00WEBPVP8 "), wantExt: ".webp", wantType: "image/webp"},
		{name: "gif", image: []byte("GIF89a\x01\x00\x01\x00"), wantExt: ".gif", wantType: "image/gif"},
		{name: "unknown bytes", image: []byte("raw bytes"), wantExt: ".jpg", wantType: "image/jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newObjectStore()
			srv := httptest.NewServer(store)
			t.Cleanup(srv.Close)

			u := upload.NewHTTPUploader(srv.URL,
				upload.WithPrefix(""),
				upload.WithNameFunc(func() string { return "scan" }),
			)
			url, err := u.Upload(context.Background(), tt.image)
			require.NoError(t, err)
			assert.Equal(t, srv.URL+"/scan"+tt.wantExt, url)

			store.mu.Lock()
			defer store.mu.Unlock()
			assert.Equal(t, tt.wantType, store.types["/scan"+tt.wantExt])
		})
	}
}

func TestHTTPUploader_Errors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	u := upload.NewHTTPUploader(srv.URL)

	_, err := u.Upload(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = u.Upload(context.Background(), jpegHeader)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Contains(t, err.Error(), "status 403")

	err = u.Delete(context.Background(), "https://elsewhere.example.com/x.jpg")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
