// Package search looks up a site's privacy policy with the Brave Search API.
//
// It is the last resort of the policy locator, used only when the site's
// own root page has no usable link. Every failure is logged and reported as
// a miss so the locator can answer "not found" instead of erroring.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultEndpoint is the Brave web search endpoint.
const DefaultEndpoint = "https://api.search.brave.com/res/v1/web/search"

// DefaultTimeout bounds one search call.
const DefaultTimeout = 10 * time.Second

// maxResponseSize limits how much of a search response is read.
const maxResponseSize = 2 * 1024 * 1024

// Result count bounds accepted by Options.Count.
const (
	minCount = 1
	maxCount = 3
)

// ErrMissingAPIKey is logged when no subscription token is configured.
var ErrMissingAPIKey = errors.New("brave API key is not set")

// Options configures a BraveClient.
type Options struct {
	// APIKey is the subscription token sent in X-Subscription-Token.
	APIKey string

	// Endpoint overrides DefaultEndpoint.
	Endpoint string

	// Count is the number of results requested, clamped to 1..3.
	Count int

	// Timeout bounds one call. Zero uses DefaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides http.DefaultClient.
	HTTPClient *http.Client

	// Logger overrides slog.Default().
	Logger *slog.Logger
}

// BraveClient queries Brave Search for "<domain> privacy policy".
type BraveClient struct {
	apiKey   string
	endpoint string
	count    int
	timeout  time.Duration
	client   *http.Client
	logger   *slog.Logger
}

// NewBraveClient creates a client from opts.
func NewBraveClient(opts Options) *BraveClient {
	c := &BraveClient{
		apiKey:   opts.APIKey,
		endpoint: opts.Endpoint,
		count:    clampCount(opts.Count),
		timeout:  opts.Timeout,
		client:   opts.HTTPClient,
		logger:   opts.Logger,
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.client == nil {
		c.client = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// braveResponse is the subset of the search response we read.
type braveResponse struct {
	Web *struct {
		Results []struct {
			Title string `json:"title"`
			URL   string `json:"url"`
		} `json:"results"`
	} `json:"web"`
}

// Search returns the top result URL for siteURL's privacy policy.
// Any failure is logged and reported as ("", false).
func (c *BraveClient) Search(ctx context.Context, siteURL string) (string, bool) {
	results, err := c.search(ctx, siteURL)
	if err != nil {
		c.logger.Warn("policy search failed", "site", siteURL, "error", err)
		return "", false
	}
	if len(results) == 0 {
		c.logger.Info("policy search returned no results", "site", siteURL)
		return "", false
	}
	for i, r := range results {
		c.logger.Debug("search result", "rank", i+1, "url", r)
	}
	return results[0], true
}

func (c *BraveClient) search(ctx context.Context, siteURL string) ([]string, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	query, err := Query(siteURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	params := endpoint.Query()
	params.Set("q", query)
	params.Set("count", strconv.Itoa(c.count))
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var body braveResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if body.Web == nil {
		return nil, nil
	}

	urls := make([]string, 0, len(body.Web.Results))
	for _, r := range body.Web.Results {
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
	}
	return urls, nil
}

// Query builds the search query for siteURL: its hostname without a
// leading "www." followed by "privacy policy".
func Query(siteURL string) (string, error) {
	u, err := url.Parse(siteURL)
	if err != nil {
		return "", fmt.Errorf("invalid site URL: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("invalid site URL %q: missing host", siteURL)
	}
	return strings.TrimPrefix(host, "www.") + " privacy policy", nil
}

func clampCount(n int) int {
	if n < minCount {
		return minCount
	}
	if n > maxCount {
		return maxCount
	}
	return n
}
