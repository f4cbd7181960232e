package adapter

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/dealradar/dealradar/internal/config"
	"github.com/dealradar/dealradar/internal/logger"
	"github.com/dealradar/dealradar/internal/ratelimit"
)

const (
	// defaultUserAgent is sent on every outbound fetch.
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

	// defaultMaxPages caps pagination when the fetch spec does not.
	defaultMaxPages = 50
)

// HTMLAdapter scrapes listing pages with CSS selectors configured per
// source. Fetch walks the source's start URLs and pagination links and
// emits each product card as a raw listing; Parse extracts the listing
// fields from one card.
type HTMLAdapter struct {
	src  config.Source
	gate ratelimit.Gate
	log  logger.Interface

	mu       sync.Mutex
	proxyIdx int
	proxy    string
}

// NewHTMLAdapter creates an HTML adapter for a configured source.
func NewHTMLAdapter(src config.Source, gate ratelimit.Gate, log logger.Interface) (*HTMLAdapter, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	return &HTMLAdapter{
		src:  src,
		gate: gate,
		log:  log.WithComponent("html_adapter").WithSource(src.Name),
	}, nil
}

// Type returns the adapter variant name.
func (a *HTMLAdapter) Type() string {
	return config.AdapterHTML
}

// Source returns the name of the source this adapter scrapes.
func (a *HTMLAdapter) Source() string {
	return a.src.Name
}

// RateLimit returns the source's declared rate-limit profile.
func (a *HTMLAdapter) RateLimit() config.RateLimitProfile {
	return a.src.RateLimit
}

// RotateProxy switches to the next configured egress path.
func (a *HTMLAdapter) RotateProxy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.src.Proxies) == 0 {
		return false
	}

	a.proxy = a.src.Proxies[a.proxyIdx%len(a.src.Proxies)]
	a.proxyIdx++
	a.log.Info("rotated egress path", "proxy_index", a.proxyIdx%len(a.src.Proxies))
	return true
}

func (a *HTMLAdapter) currentProxy() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.proxy
}

// allowedDomains derives the collector's domain allowlist from the source
// configuration.
func (a *HTMLAdapter) allowedDomains() []string {
	seen := make(map[string]bool)
	var domains []string

	for _, raw := range append([]string{a.src.BaseURL}, a.src.StartURLs...) {
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			continue
		}
		// Both forms: local sources carry an explicit port
		for _, host := range []string{u.Hostname(), u.Host} {
			if !seen[host] {
				seen[host] = true
				domains = append(domains, host)
			}
		}
	}

	return domains
}

func (a *HTMLAdapter) newCollector() (*colly.Collector, error) {
	c := colly.NewCollector(
		colly.UserAgent(defaultUserAgent),
		colly.AllowedDomains(a.allowedDomains()...),
	)
	// Shared cookie jars have caused responses to bleed between
	// concurrent fetches before; every run gets a clean collector.
	c.DisableCookies()

	if p := a.currentProxy(); p != "" {
		if err := c.SetProxy(p); err != nil {
			return nil, NewScrapeError(a.src.Name, "set proxy", err)
		}
	}

	return c, nil
}

// Fetch walks the source's listing pages and emits one raw listing per
// product card. The sequence ends early on upstream throttling.
func (a *HTMLAdapter) Fetch(ctx context.Context, spec FetchSpec) <-chan Result {
	out := make(chan Result)

	go func() {
		defer close(out)

		c, err := a.newCollector()
		if err != nil {
			emit(ctx, out, Result{Err: err})
			return
		}

		var (
			nextURL   string
			throttled *RateLimitedError
		)

		c.OnHTML(a.src.Selectors.Card, func(e *colly.HTMLElement) {
			html, htmlErr := goquery.OuterHtml(e.DOM)
			if htmlErr != nil {
				emit(ctx, out, Result{Err: NewScrapeError(a.src.Name, "extract listing card", htmlErr)})
				return
			}
			emit(ctx, out, Result{Raw: RawListing{
				SourceURL: e.Request.URL.String(),
				Payload:   []byte(html),
			}})
		})

		if next := a.src.Selectors.NextPage; next != "" {
			c.OnHTML(next, func(e *colly.HTMLElement) {
				nextURL = e.Request.AbsoluteURL(e.Attr("href"))
			})
		}

		c.OnError(func(r *colly.Response, _ error) {
			if r != nil && r.StatusCode == http.StatusTooManyRequests {
				throttled = &RateLimitedError{
					Source:     a.src.Name,
					RetryAfter: retryAfter(*r.Headers),
				}
			}
		})

		maxPages := spec.MaxPages
		if maxPages <= 0 {
			maxPages = defaultMaxPages
		}

		pages := 0
		visited := make(map[string]bool)
		queue := append([]string{}, a.src.StartURLs...)

		for len(queue) > 0 && pages < maxPages {
			pageURL := queue[0]
			queue = queue[1:]
			if visited[pageURL] {
				continue
			}
			visited[pageURL] = true

			// Suspend until the source's budget allows another request
			if waitErr := a.gate.Wait(ctx); waitErr != nil {
				return
			}

			nextURL = ""
			visitErr := c.Visit(pageURL)

			if throttled != nil {
				emit(ctx, out, Result{Err: throttled})
				return
			}
			if visitErr != nil {
				emit(ctx, out, Result{Err: NewScrapeError(a.src.Name, "fetch "+pageURL, visitErr)})
				continue
			}

			pages++
			if nextURL != "" {
				queue = append(queue, nextURL)
			}
		}
	}()

	return out
}

// Parse extracts the listing fields from one product card fragment.
func (a *HTMLAdapter) Parse(raw RawListing) (Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Payload))
	if err != nil {
		return Listing{}, NewScrapeError(a.src.Name, "parse listing card", err)
	}

	sel := a.src.Selectors
	card := doc.Find(sel.Card).First()
	if card.Length() == 0 {
		card = doc.Selection
	}

	listing := Listing{
		Title:         strings.TrimSpace(card.Find(sel.Title).First().Text()),
		Currency:      a.src.Currency,
		Price:      strings.TrimSpace(card.Find(sel.Price).First().Text()),
		ProductURL: a.resolveURL(card.Find(sel.Link).First().AttrOr("href", "")),
	}

	if sel.Brand != "" {
		listing.Brand = strings.TrimSpace(card.Find(sel.Brand).First().Text())
	}
	if sel.OriginalPrice != "" {
		listing.OriginalPrice = strings.TrimSpace(card.Find(sel.OriginalPrice).First().Text())
	}
	if sel.Image != "" {
		listing.ImageURL = a.resolveURL(card.Find(sel.Image).First().AttrOr("src", ""))
	}

	listing.ExternalID = a.externalID(card, listing.ProductURL)

	if listing.ExternalID == "" {
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

// externalID resolves the source-scoped listing identifier: the configured
// selector's data-id attribute or text, falling back to the last product
// URL path segment.
func (a *HTMLAdapter) externalID(card *goquery.Selection, productURL string) string {
	if sel := a.src.Selectors.ExternalID; sel != "" {
		el := card.Find(sel).First()
		if v, ok := el.Attr("data-id"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		if text := strings.TrimSpace(el.Text()); text != "" {
			return text
		}
	}

	if productURL == "" {
		return ""
	}
	u, err := url.Parse(productURL)
	if err != nil {
		return ""
	}
	if id := u.Query().Get("id"); id != "" {
		return id
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	return segments[len(segments)-1]
}

// resolveURL makes a possibly relative URL absolute against the base URL.
func (a *HTMLAdapter) resolveURL(raw string) string {
	if raw == "" {
		return ""
	}
	base, err := url.Parse(a.src.BaseURL)
	if err != nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

// retryAfter reads the Retry-After header as a delay, if present.
func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// emit sends a result unless the context is done.
func emit(ctx context.Context, out chan<- Result, res Result) bool {
	select {
	case out <- res:
		return true
	case <-ctx.Done():
		return false
	}
}
