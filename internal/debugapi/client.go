package debugapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned by Client.Get when the daemon answers 404.
var ErrNotFound = errors.New("debugapi: bss not found")

// Client talks to a running daemon's debug endpoint over plain HTTP,
// steerctl's replacement for a generated ConnectRPC stub.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client against baseURL (e.g. "http://localhost:9106").
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: http.DefaultClient}
}

// List returns every locally hosted BSS, without per-client detail.
func (c *Client) List(ctx context.Context) ([]BSSStatus, error) {
	var bsses []BSSStatus
	if err := c.get(ctx, "/bsses", &bsses); err != nil {
		return nil, err
	}
	return bsses, nil
}

// Get returns one BSS's full status, including its client list.
func (c *Client) Get(ctx context.Context, handle string) (BSSStatus, error) {
	var bs BSSStatus
	if err := c.get(ctx, "/bsses/"+handle, &bs); err != nil {
		return BSSStatus{}, err
	}
	return bs, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("debugapi: build request for %s: %w", path, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("debugapi: request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("debugapi: %s: status %d: %s", path, resp.StatusCode, errResp.Error)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("debugapi: decode response from %s: %w", path, err)
	}
	return nil
}
