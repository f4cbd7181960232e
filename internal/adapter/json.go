package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dealradar/dealradar/internal/config"
	"github.com/dealradar/dealradar/internal/logger"
	"github.com/dealradar/dealradar/internal/ratelimit"
)

const jsonFetchTimeout = 20 * time.Second

// JSONAdapter consumes a paginated JSON listings API:
//
//	GET {base}/api/products?q=...&page=N
//
// The response is either {"products": [...], "has_more": bool} or a bare
// array. Each array element is emitted as one raw listing.
type JSONAdapter struct {
	src    config.Source
	gate   ratelimit.Gate
	log    logger.Interface
	client *http.Client

	proxyIdx int
}

// NewJSONAdapter creates a JSON API adapter for a configured source.
func NewJSONAdapter(src config.Source, gate ratelimit.Gate, log logger.Interface) (*JSONAdapter, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	return &JSONAdapter{
		src:    src,
		gate:   gate,
		log:    log.WithComponent("json_adapter").WithSource(src.Name),
		client: &http.Client{Timeout: jsonFetchTimeout},
	}, nil
}

// Type returns the adapter variant name.
func (a *JSONAdapter) Type() string {
	return config.AdapterJSON
}

// Source returns the name of the source this adapter scrapes.
func (a *JSONAdapter) Source() string {
	return a.src.Name
}

// RateLimit returns the source's declared rate-limit profile.
func (a *JSONAdapter) RateLimit() config.RateLimitProfile {
	return a.src.RateLimit
}

// RotateProxy switches the HTTP client to the next configured egress path.
func (a *JSONAdapter) RotateProxy() bool {
	if len(a.src.Proxies) == 0 {
		return false
	}

	proxyURL, err := url.Parse(a.src.Proxies[a.proxyIdx%len(a.src.Proxies)])
	a.proxyIdx++
	if err != nil {
		a.log.Warn("skipping invalid proxy url", "error", err)
		return false
	}

	a.client = &http.Client{
		Timeout:   jsonFetchTimeout,
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
	}
	a.log.Info("rotated egress path")
	return true
}

// listingsPage is the upstream page envelope.
type listingsPage struct {
	Products []json.RawMessage `json:"products"`
	HasMore  bool              `json:"has_more"`
}

// Fetch pages through the listings API and emits each product object as a
// raw listing. The sequence ends early on upstream throttling.
func (a *JSONAdapter) Fetch(ctx context.Context, spec FetchSpec) <-chan Result {
	out := make(chan Result)

	go func() {
		defer close(out)

		maxPages := spec.MaxPages
		if maxPages <= 0 {
			maxPages = defaultMaxPages
		}

		query := spec.Query
		if query == "" {
			query = a.src.Query
		}

		for page := 1; page <= maxPages; page++ {
			if err := a.gate.Wait(ctx); err != nil {
				return
			}

			listings, hasMore, err := a.fetchPage(ctx, query, page)
			if err != nil {
				emit(ctx, out, Result{Err: err})
				if IsRateLimited(err) {
					return
				}
				continue
			}

			pageURL := a.pageURL(query, page)
			for _, raw := range listings {
				if !emit(ctx, out, Result{Raw: RawListing{SourceURL: pageURL, Payload: raw}}) {
					return
				}
			}

			if !hasMore || len(listings) == 0 {
				return
			}
		}
	}()

	return out
}

func (a *JSONAdapter) pageURL(query string, page int) string {
	u, err := url.Parse(a.src.BaseURL)
	if err != nil {
		return a.src.BaseURL
	}
	u.Path = "/api/products"
	q := u.Query()
	if query != "" {
		q.Set("q", query)
	}
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

func (a *JSONAdapter) fetchPage(ctx context.Context, query string, page int) ([]json.RawMessage, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.pageURL(query, page), http.NoBody)
	if err != nil {
		return nil, false, NewScrapeError(a.src.Name, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)
	if key := a.src.Credentials.APIKey; key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, false, NewScrapeError(a.src.Name, fmt.Sprintf("fetch page %d", page), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, false, &RateLimitedError{
			Source:     a.src.Name,
			RetryAfter: retryAfter(resp.Header),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, NewScrapeError(a.src.Name,
			fmt.Sprintf("page %d returned status %d", page, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, NewScrapeError(a.src.Name, "read response", err)
	}

	// Either an envelope or a bare array
	var envelope listingsPage
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Products != nil {
		return envelope.Products, envelope.HasMore, nil
	}

	var bare []json.RawMessage
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, false, NewScrapeError(a.src.Name, "decode listings page", err)
	}
	return bare, len(bare) > 0, nil
}

// jsonListing is one upstream product object. Price fields arrive as
// numbers or strings depending on the platform.
type jsonListing struct {
	ID            json.Number `json:"id"`
	ExternalID    string      `json:"external_id"`
	Title         string      `json:"title"`
	Name          string      `json:"name"`
	Brand         string      `json:"brand"`
	Currency      string      `json:"currency"`
	Price         any         `json:"price"`
	OriginalPrice any         `json:"original_price"`
	ImageURL      string      `json:"image_url"`
	URL           string      `json:"url"`
}

// Parse converts one product object into the intermediate record.
func (a *JSONAdapter) Parse(raw RawListing) (Listing, error) {
	var src jsonListing
	dec := json.NewDecoder(bytes.NewReader(raw.Payload))
	dec.UseNumber()
	if err := dec.Decode(&src); err != nil {
		return Listing{}, NewScrapeError(a.src.Name, "decode listing", err)
	}

	listing := Listing{
		ExternalID:    src.ExternalID,
		Title:         src.Title,
		Brand:         src.Brand,
		Currency:      src.Currency,
		Price:         scalarString(src.Price),
		OriginalPrice: scalarString(src.OriginalPrice),
		ImageURL:      src.ImageURL,
		ProductURL:    src.URL,
	}

	if listing.ExternalID == "" {
		listing.ExternalID = src.ID.String()
	}
	if listing.Title == "" {
		listing.Title = src.Name
	}
	if listing.Currency == "" {
		listing.Currency = a.src.Currency
	}

	if listing.ExternalID == "" || listing.ExternalID == "0" {
		return Listing{}, NewScrapeError(a.src.Name, "listing has no external id", nil)
	}
	if listing.Title == "" {
		return Listing{}, NewScrapeError(a.src.Name, "listing has no title", nil)
	}
	if listing.Price == "" {
		return Listing{}, NewScrapeError(a.src.Name, "listing has no price", nil)
	}

	return listing, nil
}

// scalarString renders a JSON scalar (string or number) as a string.
func scalarString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return fmt.Sprintf("%v", s)
	}
}
