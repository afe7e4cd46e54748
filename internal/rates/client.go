// Package rates fetches live exchange rates from the upstream currency API.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to an exchangerate-API-compatible endpoint returning
// {"result":"success","rates":{"USD":1.27,...}} for a base currency.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type latestResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

// FetchLatest returns every rate the upstream publishes for the base
// currency; the caller caches the full set, not just the pair it needs.
func (c *Client) FetchLatest(ctx context.Context, baseCurrency string) (map[string]float64, error) {
	requestURL := fmt.Sprintf("%s/latest/%s", c.baseURL, url.PathEscape(strings.ToUpper(baseCurrency)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build rates request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("fetch rates: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode rates response: %w", err)
	}
	if parsed.Result != "" && parsed.Result != "success" {
		return nil, fmt.Errorf("fetch rates: upstream result %q", parsed.Result)
	}
	if len(parsed.Rates) == 0 {
		return nil, fmt.Errorf("fetch rates: empty rate table")
	}
	return parsed.Rates, nil
}
