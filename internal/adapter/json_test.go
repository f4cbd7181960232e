package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealradar/dealradar/internal/config"
	"github.com/dealradar/dealradar/internal/logger"
	"github.com/dealradar/dealradar/internal/ratelimit"
)

func jsonSource(baseURL string) config.Source {
	return config.Source{
		Name:      "megamart",
		Adapter:   config.AdapterJSON,
		BaseURL:   baseURL,
		Query:     "tools",
		Currency:  "EUR",
		RateLimit: config.RateLimitProfile{Requests: 100, Interval: time.Second, Burst: 100},
		Credentials: config.Credentials{
			APIKey: "sekrit",
		},
		Enabled: true,
	}
}

func newJSONAdapter(t *testing.T, src config.Source) *JSONAdapter {
	t.Helper()

	gate := ratelimit.NewLimiter(src.Name, src.RateLimit, logger.NewNoOp())
	a, err := NewJSONAdapter(src, gate, logger.NewNoOp())
	require.NoError(t, err)
	return a
}

func TestJSONAdapter_FetchPagesUntilExhausted(t *testing.T) {
	var sawAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer sekrit" {
			sawAuth = true
		}
		assert.Equal(t, "tools", r.URL.Query().Get("q"))

		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `{"products":[{"id":1,"title":"Drill","price":79.99},{"id":2,"title":"Grinder","price":"45.00"}],"has_more":true}`)
		case "2":
			fmt.Fprint(w, `{"products":[{"id":3,"title":"Workbench","price":120}],"has_more":false}`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))
	defer srv.Close()

	a := newJSONAdapter(t, jsonSource(srv.URL))

	raws, errs := collect(t, a.Fetch(context.Background(), FetchSpec{}))
	assert.Empty(t, errs)
	assert.Len(t, raws, 3)
	assert.True(t, sawAuth, "expected the API key to be sent")
}

func TestJSONAdapter_FetchBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `[{"id":9,"title":"Sander","price":30}]`)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	a := newJSONAdapter(t, jsonSource(srv.URL))

	raws, errs := collect(t, a.Fetch(context.Background(), FetchSpec{}))
	assert.Empty(t, errs)
	assert.Len(t, raws, 1)
}

func TestJSONAdapter_FetchThrottled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := newJSONAdapter(t, jsonSource(srv.URL))

	raws, errs := collect(t, a.Fetch(context.Background(), FetchSpec{}))
	assert.Empty(t, raws)
	require.Len(t, errs, 1)

	var rl *RateLimitedError
	require.ErrorAs(t, errs[0], &rl)
	assert.Equal(t, 30*time.Second, rl.RetryAfter)
}

func TestJSONAdapter_Parse(t *testing.T) {
	a := newJSONAdapter(t, jsonSource("https://megamart.example"))

	tests := []struct {
		name    string
		payload string
		want    Listing
		wantErr bool
	}{
		{
			name:    "numeric id and price",
			payload: `{"id":42,"title":"Drill","brand":"ToolCo","price":79.99,"original_price":99.99,"image_url":"https://cdn.example/42.jpg","url":"https://megamart.example/p/42"}`,
			want: Listing{
				ExternalID:    "42",
				Title:         "Drill",
				Brand:         "ToolCo",
				Currency:      "EUR",
				Price:         "79.99",
				OriginalPrice: "99.99",
				ImageURL:      "https://cdn.example/42.jpg",
				ProductURL:    "https://megamart.example/p/42",
			},
		},
		{
			name:    "string fields and explicit external id",
			payload: `{"external_id":"SKU-9","name":"Sander","currency":"GBP","price":"30.00"}`,
			want: Listing{
				ExternalID: "SKU-9",
				Title:      "Sander",
				Currency:   "GBP",
				Price:      "30.00",
			},
		},
		{
			name:    "missing id",
			payload: `{"title":"Ghost","price":1}`,
			wantErr: true,
		},
		{
			name:    "missing price",
			payload: `{"id":7,"title":"Ghost"}`,
			wantErr: true,
		},
		{
			name:    "malformed json",
			payload: `{"id":7,`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listing, err := a.Parse(RawListing{Payload: []byte(tt.payload)})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, listing)
		})
	}
}

func TestJSONAdapter_ParseDeterministic(t *testing.T) {
	a := newJSONAdapter(t, jsonSource("https://megamart.example"))
	payload := []byte(`{"id":42,"title":"Drill","price":79.99}`)

	first, err := a.Parse(RawListing{Payload: payload})
	require.NoError(t, err)
	second, err := a.Parse(RawListing{Payload: payload})
	require.NoError(t, err)

	a1, _ := json.Marshal(first)
	a2, _ := json.Marshal(second)
	assert.Equal(t, a1, a2)
}
