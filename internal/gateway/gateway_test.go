package gateway_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/market-comps/internal/gateway"
	"github.com/donaldgifford/market-comps/internal/serpapi"
	serpmocks "github.com/donaldgifford/market-comps/internal/serpapi/mocks"
	uploadmocks "github.com/donaldgifford/market-comps/internal/upload/mocks"
	domain "github.com/donaldgifford/market-comps/pkg/types"
)

const imageURL = "https://cdn.example.com/serp-api/a.jpg"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

func shoppingResponse(titles ...string) *serpapi.Response {
	resp := &serpapi.Response{}
	for i, title := range titles {
		resp.ShoppingResults = append(resp.ShoppingResults, serpapi.Result{
			Position: ptr(i + 1), Title: ptr(title), Source: ptr("eBay"), Price: &serpapi.Price{Value: ptr("$10")},
		})
	}
	return resp
}

func visualResponse(titles ...string) *serpapi.Response {
	resp := &serpapi.Response{}
	for i, title := range titles {
		resp.VisualMatches = append(resp.VisualMatches, serpapi.Result{
			Position: ptr(i + 1), Title: ptr(title), Source: ptr("Etsy"),
		})
	}
	return resp
}

func isVisual(req serpapi.Request) bool { return req.Engine == serpapi.EngineLens }
func isText(req serpapi.Request) bool   { return req.Engine == serpapi.EngineShopping }

func TestGateway_Search(t *testing.T) {
	t.Parallel()

	photo := domain.Item{ID: "item-1", Title: "Levi's Jacket", Image: []byte{0xff, 0xd8, 0xff}}
	noPhoto := domain.Item{ID: "item-2", Title: "Vintage Levi's Jacket"}

	tests := []struct {
		name         string
		item         domain.Item
		setupMocks   func(c *serpmocks.MockClient, u *uploadmocks.MockUploader)
		wantErr      error
		wantVisual   int
		wantShopping int
		wantQuery    string
	}{
		{
			name: "visual path succeeds without text search",
			item: photo,
			setupMocks: func(c *serpmocks.MockClient, u *uploadmocks.MockUploader) {
				u.EXPECT().Upload(mock.Anything, photo.Image).Return(imageURL, nil).Once()
				c.EXPECT().Search(mock.Anything, mock.MatchedBy(func(r serpapi.Request) bool {
					return isVisual(r) && r.ImageURL == imageURL && r.Query == ""
				})).Return(visualResponse("a", "b"), nil).Once()
				u.EXPECT().Delete(mock.Anything, imageURL).Return(nil).Once()
			},
			wantVisual: 2,
		},
		{
			name: "visual failure falls back to text with qualifiers",
			item: photo,
			setupMocks: func(c *serpmocks.MockClient, u *uploadmocks.MockUploader) {
				u.EXPECT().Upload(mock.Anything, mock.Anything).Return(imageURL, nil).Once()
				c.EXPECT().Search(mock.Anything, mock.MatchedBy(isVisual)).
					Return(nil, &serpapi.ProviderError{Engine: "google_lens", StatusCode: 503, Err: domain.ErrProviderUnavailable}).Once()
				u.EXPECT().Delete(mock.Anything, imageURL).Return(errors.New("cleanup failed")).Once()
				c.EXPECT().Search(mock.Anything, mock.MatchedBy(func(r serpapi.Request) bool {
					return isText(r) && r.Query == "Levi's Jacket vintage fashion clothing"
				})).Return(shoppingResponse("x"), nil).Once()
			},
			wantShopping: 1,
			wantQuery:    "Levi's Jacket vintage fashion clothing",
		},
		{
			name: "upload failure falls back to text",
			item: photo,
			setupMocks: func(c *serpmocks.MockClient, u *uploadmocks.MockUploader) {
				u.EXPECT().Upload(mock.Anything, mock.Anything).Return("", domain.ErrProviderUnavailable).Once()
				c.EXPECT().Search(mock.Anything, mock.MatchedBy(isText)).Return(shoppingResponse("x", "y"), nil).Once()
			},
			wantShopping: 2,
			wantQuery:    "Levi's Jacket vintage fashion clothing",
		},
		{
			name: "empty visual result falls back to text",
			item: photo,
			setupMocks: func(c *serpmocks.MockClient, u *uploadmocks.MockUploader) {
				u.EXPECT().Upload(mock.Anything, mock.Anything).Return(imageURL, nil).Once()
				c.EXPECT().Search(mock.Anything, mock.MatchedBy(isVisual)).Return(&serpapi.Response{}, nil).Once()
				u.EXPECT().Delete(mock.Anything, imageURL).Return(nil).Once()
				c.EXPECT().Search(mock.Anything, mock.MatchedBy(isText)).Return(shoppingResponse("x"), nil).Once()
			},
			wantShopping: 1,
			wantQuery:    "Levi's Jacket vintage fashion clothing",
		},
		{
			name: "empty visual result stands when text fails",
			item: photo,
			setupMocks: func(c *serpmocks.MockClient, u *uploadmocks.MockUploader) {
				u.EXPECT().Upload(mock.Anything, mock.Anything).Return(imageURL, nil).Once()
				c.EXPECT().Search(mock.Anything, mock.MatchedBy(isVisual)).Return(&serpapi.Response{}, nil).Once()
				u.EXPECT().Delete(mock.Anything, imageURL).Return(nil).Once()
				c.EXPECT().Search(mock.Anything, mock.MatchedBy(isText)).Return(nil, domain.ErrProviderUnavailable).Once()
			},
		},
		{
			name: "no image goes straight to text with raw title",
			item: noPhoto,
			setupMocks: func(c *serpmocks.MockClient, _ *uploadmocks.MockUploader) {
				c.EXPECT().Search(mock.Anything, mock.MatchedBy(func(r serpapi.Request) bool {
					return isText(r) && r.Query == "Vintage Levi's Jacket" && r.Location == "United States"
				})).Return(shoppingResponse("x"), nil).Once()
			},
			wantShopping: 1,
			wantQuery:    "Vintage Levi's Jacket",
		},
		{
			name: "every provider failing is an error",
			item: photo,
			setupMocks: func(c *serpmocks.MockClient, u *uploadmocks.MockUploader) {
				u.EXPECT().Upload(mock.Anything, mock.Anything).Return(imageURL, nil).Once()
				c.EXPECT().Search(mock.Anything, mock.MatchedBy(isVisual)).Return(nil, domain.ErrDecode).Once()
				u.EXPECT().Delete(mock.Anything, imageURL).Return(nil).Once()
				c.EXPECT().Search(mock.Anything, mock.MatchedBy(isText)).Return(nil, domain.ErrProviderUnavailable).Once()
			},
			wantErr: domain.ErrAllProvidersFailed,
		},
		{
			name: "text only failure is an error",
			item: noPhoto,
			setupMocks: func(c *serpmocks.MockClient, _ *uploadmocks.MockUploader) {
				c.EXPECT().Search(mock.Anything, mock.Anything).Return(nil, domain.ErrProviderUnavailable).Once()
			},
			wantErr: domain.ErrAllProvidersFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := serpmocks.NewMockClient(t)
			u := uploadmocks.NewMockUploader(t)
			tt.setupMocks(c, u)

			g := gateway.New(c,
				gateway.WithUploader(u),
				gateway.WithLocation("United States"),
				gateway.WithLogger(quietLogger()),
			)

			resp, err := g.Search(context.Background(), tt.item)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Len(t, resp.Listings(domain.KindVisualMatch), tt.wantVisual)
			assert.Len(t, resp.Listings(domain.KindShoppingResult), tt.wantShopping)
			assert.Equal(t, tt.wantQuery, resp.Query)
		})
	}
}

func TestGateway_WithoutUploaderSkipsVisual(t *testing.T) {
	t.Parallel()

	c := serpmocks.NewMockClient(t)
	c.EXPECT().Search(mock.Anything, mock.MatchedBy(isText)).Return(shoppingResponse("x"), nil).Once()

	g := gateway.New(c, gateway.WithLogger(quietLogger()))
	_, err := g.Search(context.Background(), domain.Item{ID: "i", Title: "Lamp", Image: []byte{1}})
	require.NoError(t, err)
}

func TestGateway_Timeout(t *testing.T) {
	t.Parallel()

	c := serpmocks.NewMockClient(t)
	c.EXPECT().Search(mock.Anything, mock.Anything).
		RunAndReturn(func(ctx context.Context, _ serpapi.Request) (*serpapi.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).Once()

	g := gateway.New(c, gateway.WithTimeout(20*time.Millisecond), gateway.WithLogger(quietLogger()))
	_, err := g.Search(context.Background(), domain.Item{ID: "i", Title: "Lamp"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAllProvidersFailed)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestGateway_CustomEngines(t *testing.T) {
	t.Parallel()

	c := serpmocks.NewMockClient(t)
	c.EXPECT().Search(mock.Anything, mock.MatchedBy(func(r serpapi.Request) bool {
		return r.Engine == "ebay"
	})).Return(shoppingResponse("x"), nil).Once()

	g := gateway.New(c, gateway.WithEngines("ebay", ""), gateway.WithLogger(quietLogger()))
	resp, err := g.Search(context.Background(), domain.Item{ID: "i", Title: "Lamp"})
	require.NoError(t, err)
	assert.Equal(t, "ebay", resp.Engine)
}
