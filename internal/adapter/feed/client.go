// Package feed fetches raw payloads from the upstream seismic data sources.
package feed

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/seismoguard/quake-ingest/internal/domain"
)

// maxPayloadBytes caps a single feed response. The largest real payload (the
// USGS daily summary) stays well under 2 MB.
const maxPayloadBytes = 8 << 20

// Endpoint describes one upstream feed.
type Endpoint struct {
	Source domain.Source
	URL    string

	// ExtractPre: the raw KRDAE bulletin is an HTML page wrapping the
	// monospaced table in a <pre> block; the table text is extracted
	// before parsing.
	ExtractPre bool
}

// Client performs bounded HTTP fetches against the upstream feeds. Every
// request carries the caller's context deadline; each upstream host is
// additionally rate limited so a tight retry loop cannot hammer a provider.
type Client struct {
	httpClient *http.Client
	userAgent  string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewClient creates a feed client. timeout bounds each request end to end;
// rps limits requests per second per upstream host.
func NewClient(timeout time.Duration, rps float64) *Client {
	if rps <= 0 {
		rps = 2
	}
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: tr},
		userAgent:  "quake-ingest/1.0",
		limiters:   make(map[string]*rate.Limiter),
		rps:        rate.Limit(rps),
		burst:      3,
	}
}

// Fetch retrieves one endpoint's raw payload. A timeout, a non-2xx status,
// or an unreadable body all surface as errors; the scheduler degrades them to
// "no data from this source this cycle".
func (c *Client) Fetch(ctx context.Context, ep Endpoint) ([]byte, error) {
	if err := c.wait(ctx, ep.URL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, text/html;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ep.Source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", ep.Source, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s body: %w", ep.Source, err)
	}

	if ep.ExtractPre {
		return extractPreText(body), nil
	}
	return body, nil
}

// wait applies the per-host rate limit.
func (c *Client) wait(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}

	c.mu.Lock()
	lim, ok := c.limiters[u.Host]
	if !ok {
		lim = rate.NewLimiter(c.rps, c.burst)
		c.limiters[u.Host] = lim
	}
	c.mu.Unlock()

	return lim.Wait(ctx)
}

// extractPreText pulls the text of the first <pre> block out of an HTML
// payload. Payloads that are not HTML (or have no <pre>) pass through
// unchanged, so the downstream text parser sees the table either way.
func extractPreText(body []byte) []byte {
	if !strings.Contains(strings.ToLower(string(body[:min(len(body), 1024)])), "<html") {
		return body
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return body
	}
	if pre := doc.Find("pre").First(); pre.Length() > 0 {
		return []byte(pre.Text())
	}
	return body
}
