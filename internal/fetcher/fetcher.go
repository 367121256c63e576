// Package fetcher retrieves business website HTML for enrichment. A fetch
// never fails the pipeline: unreachable sites are reported as a degraded
// result and enrichment continues on search signals alone.
package fetcher

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// UnreachableMarker is the text stored in place of website content when the
// site could not be fetched. Downstream prompts key off this exact string.
const UnreachableMarker = "Website unreachable."

// defaultMaxBodyBytes caps how much of a page is read. Business sites past
// this point are boilerplate.
const defaultMaxBodyBytes = 512 * 1024

// Result is the outcome of a site fetch. Unreachable results carry no HTML.
type Result struct {
	URL         string
	RawHTML     string
	StatusCode  int
	Unreachable bool
}

// SiteFetcher fetches business homepages via net/http.
type SiteFetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// Option configures a SiteFetcher.
type Option func(*SiteFetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *SiteFetcher) {
		f.client = hc
	}
}

// WithUserAgent overrides the request user agent.
func WithUserAgent(ua string) Option {
	return func(f *SiteFetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodyBytes overrides the page read cap.
func WithMaxBodyBytes(n int64) Option {
	return func(f *SiteFetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// New creates a SiteFetcher. timeout bounds the whole fetch including DNS
// and TLS.
func New(timeout time.Duration, opts ...Option) *SiteFetcher {
	f := &SiteFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: timeout,
				}).DialContext,
				TLSHandshakeTimeout: timeout,
			},
		},
		userAgent: "Mozilla/5.0 (compatible; Lead2CloseBot/1.0)",
		maxBody:   defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NormalizeURL prefixes bare hostnames with https. CRM users paste website
// fields without a scheme more often than not.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "https://" + raw
	}
	return raw
}

// Fetch retrieves a business website. It never returns an error: any
// failure mode yields an unreachable Result so enrichment can degrade
// instead of aborting.
func (f *SiteFetcher) Fetch(ctx context.Context, rawURL string) Result {
	targetURL := NormalizeURL(rawURL)
	if targetURL == "" {
		return Result{Unreachable: true}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		zap.L().Debug("fetcher: invalid url", zap.String("url", targetURL), zap.Error(err))
		return Result{URL: targetURL, Unreachable: true}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		zap.L().Debug("fetcher: fetch failed", zap.String("url", targetURL), zap.Error(err))
		return Result{URL: targetURL, Unreachable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		zap.L().Debug("fetcher: error status", zap.String("url", targetURL), zap.Int("status", resp.StatusCode))
		return Result{URL: targetURL, StatusCode: resp.StatusCode, Unreachable: true}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		zap.L().Debug("fetcher: read body failed", zap.String("url", targetURL), zap.Error(err))
		return Result{URL: targetURL, StatusCode: resp.StatusCode, Unreachable: true}
	}

	return Result{
		URL:        targetURL,
		RawHTML:    string(body),
		StatusCode: resp.StatusCode,
	}
}
