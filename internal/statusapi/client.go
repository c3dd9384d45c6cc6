package statusapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ticketsync/internal/ledger"
	"ticketsync/internal/services"
)

// Client reads progress views from a running Server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Dial connects to the status endpoint at bind and verifies it responds.
func Dial(ctx context.Context, bind, token string) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(bind), "/")
	if base == "" {
		return nil, services.Wrap(services.ErrConfiguration, "status-api", "dial", "status.bind is empty", nil)
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	client := &Client{
		baseURL: base,
		token:   token,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
	var health Health
	if _, err := client.get(ctx, "/health", &health); err != nil {
		return nil, err
	}
	return client, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Summary fetches the aggregated progress view.
func (c *Client) Summary(ctx context.Context) (Summary, error) {
	var summary Summary
	_, err := c.get(ctx, "/api/summary", &summary)
	return summary, err
}

// Describe fetches one record, returning nil when the ticket is unknown.
func (c *Client) Describe(ctx context.Context, id int64) (*ledger.Record, error) {
	var resp RecordResponse
	found, err := c.get(ctx, "/api/records/"+strconv.FormatInt(id, 10), &resp)
	if err != nil || !found {
		return nil, err
	}
	return &resp.Record, nil
}

// List fetches every record.
func (c *Client) List(ctx context.Context) ([]ledger.Record, error) {
	var resp RecordListResponse
	_, err := c.get(ctx, "/api/records", &resp)
	return resp.Records, err
}

func (c *Client) get(ctx context.Context, path string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "status-api", "get", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return false, services.Wrap(services.ErrConfiguration, "status-api", "get", "status.token rejected", nil)
	case resp.StatusCode != http.StatusOK:
		var payload map[string]string
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return false, services.Wrap(services.ErrTransient, "status-api", "get",
			fmt.Sprintf("%s returned %d: %s", path, resp.StatusCode, payload["error"]), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}
