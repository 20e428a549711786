package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client is a thin read-only client to an external discovery provider,
// wrapped in a Cache so repeated or overlapping queries don't hammer the
// upstream.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *Cache
}

// NewClient builds a Client. baseURL is the DISCOVERY_URL environment
// value; an empty baseURL is valid — discovery is optional — and every
// operation then degrades to an empty result.
func NewClient(baseURL string, cache *Cache) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      cache,
	}
}

type upstreamResponse struct {
	Items []DiscoveredPackage `json:"items"`
}

// Search proxies a free-text query to the discovery provider.
func (c *Client) Search(ctx context.Context, q string, limit int) ([]DiscoveredPackage, error) {
	key := fmt.Sprintf("search:q=%s&limit=%d", q, limit)
	return c.cache.Get(ctx, key, func(ctx context.Context) ([]DiscoveredPackage, error) {
		return c.fetch(ctx, "/search", url.Values{"q": {q}, "limit": {itoa(limit)}})
	})
}

// Trending proxies a trending-packages query, optionally scoped to category.
func (c *Client) Trending(ctx context.Context, category string, limit int) ([]DiscoveredPackage, error) {
	key := fmt.Sprintf("trending:category=%s&limit=%d", category, limit)
	return c.cache.Get(ctx, key, func(ctx context.Context) ([]DiscoveredPackage, error) {
		values := url.Values{"limit": {itoa(limit)}}
		if category != "" {
			values.Set("category", category)
		}
		return c.fetch(ctx, "/trending", values)
	})
}

// Browse proxies a category-browse query.
func (c *Client) Browse(ctx context.Context, category string, limit int) ([]DiscoveredPackage, error) {
	key := fmt.Sprintf("browse:category=%s&limit=%d", category, limit)
	return c.cache.Get(ctx, key, func(ctx context.Context) ([]DiscoveredPackage, error) {
		return c.fetch(ctx, "/browse", url.Values{"category": {category}, "limit": {itoa(limit)}})
	})
}

func (c *Client) fetch(ctx context.Context, path string, query url.Values) ([]DiscoveredPackage, error) {
	if c.baseURL == "" {
		return []DiscoveredPackage{}, nil
	}

	reqURL := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovery: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery: %s returned status %d", path, resp.StatusCode)
	}

	var parsed upstreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("discovery: decode response: %w", err)
	}
	return parsed.Items, nil
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}
