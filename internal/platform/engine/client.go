// Package engine is the client for the analytics engine: the REST surface
// serving the watchlist and per-symbol tile state, the push-stream
// WebSocket, and the outbound alert endpoint.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/n8kahl/copilotd/internal/domain"
)

// Client is the REST client for the analytics engine.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Client for the engine at baseURL, e.g.
// "http://localhost:3001". apiKey may be empty when the engine does not
// require authentication.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Watchlist returns the operator's tracked symbols.
func (c *Client) Watchlist(ctx context.Context) ([]string, error) {
	body, err := c.doGet(ctx, "/api/tickers")
	if err != nil {
		return nil, fmt.Errorf("engine: get watchlist: %w", err)
	}

	var resp struct {
		Tickers []string `json:"tickers"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("engine: decode watchlist: %w", err)
	}
	return resp.Tickers, nil
}

// TileState fetches the full tile for one symbol. Any non-success status is
// a fetch failure.
func (c *Client) TileState(ctx context.Context, symbol string) (*domain.PartialTile, error) {
	path := fmt.Sprintf("/api/tickers/%s/state", url.PathEscape(symbol))

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("engine: get tile %s: %w", symbol, err)
	}

	var tile domain.PartialTile
	if err := json.Unmarshal(body, &tile); err != nil {
		return nil, fmt.Errorf("engine: decode tile %s: %w", symbol, err)
	}
	return &tile, nil
}

// PostAlert delivers an alert payload to the engine's outbound channel. A
// nil return means the engine confirmed delivery.
func (c *Client) PostAlert(ctx context.Context, payload domain.AlertPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("engine: marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/alerts", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("engine: create alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("engine: post alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("engine: post alert status %d: %s: %w",
			resp.StatusCode, string(respBody), domain.ErrDispatchFailed)
	}
	return nil
}

// doGet issues a GET and returns the body. Any non-2xx status is an error.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrFetchFailed)
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
}

// Compile-time interface checks.
var (
	_ domain.WatchlistSource = (*Client)(nil)
	_ domain.SnapshotFetcher = (*Client)(nil)
)
