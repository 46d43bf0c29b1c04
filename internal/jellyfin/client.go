package jellyfin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jellyhook/internal/config"
	"jellyhook/internal/event"
)

var (
	// ErrHTTP indicates the server answered with an error status.
	ErrHTTP = errors.New("jellyfin http error")
	// ErrConnection indicates the server could not be reached.
	ErrConnection = errors.New("jellyfin connection error")
)

// HTTPDoer describes the HTTP client used by the Jellyfin client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to one Jellyfin server.
type Client struct {
	baseURL string
	apiKey  string
	userID  string
	client  HTTPDoer
}

// NewClient constructs a client from daemon configuration.
func NewClient(cfg config.Jellyfin) *Client {
	return NewClientWithDoer(cfg, &http.Client{
		Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
	})
}

// NewClientWithDoer constructs a client with an injected HTTP doer.
func NewClientWithDoer(cfg config.Jellyfin, doer HTTPDoer) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		userID:  strings.TrimSpace(cfg.UserID),
		client:  doer,
	}
}

// GetItem fetches full item metadata, used to enrich sparse webhook
// payloads before rule evaluation.
func (c *Client) GetItem(ctx context.Context, itemID string) (event.Payload, error) {
	if itemID == "" {
		return nil, fmt.Errorf("%w: empty item id", ErrHTTP)
	}
	endpoint := fmt.Sprintf("%s/Items/%s", c.baseURL, url.PathEscape(itemID))
	if c.userID != "" {
		endpoint += "?userId=" + url.QueryEscape(c.userID)
	}

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var payload event.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode item %s: %v", ErrHTTP, itemID, err)
	}
	return payload, nil
}

// UpdateItem rewrites the given metadata fields on an item.
func (c *Client) UpdateItem(ctx context.Context, itemID string, fields map[string]any) error {
	if itemID == "" {
		return fmt.Errorf("%w: empty item id", ErrHTTP)
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode item update: %w", err)
	}
	endpoint := fmt.Sprintf("%s/Items/%s", c.baseURL, url.PathEscape(itemID))
	_, err = c.do(ctx, http.MethodPost, endpoint, payload)
	return err
}

// AddToPlaylist adds an item to a playlist on behalf of the configured
// user. Adding an item that is already present is accepted by the server,
// so the call is idempotent from the pipeline's point of view.
func (c *Client) AddToPlaylist(ctx context.Context, playlistID, itemID string) error {
	if playlistID == "" || itemID == "" {
		return fmt.Errorf("%w: playlist and item ids required", ErrHTTP)
	}
	if c.userID == "" {
		return fmt.Errorf("%w: user_id not configured", ErrHTTP)
	}
	endpoint := fmt.Sprintf("%s/Playlists/%s/Items?ids=%s&userId=%s",
		c.baseURL,
		url.PathEscape(playlistID),
		url.QueryEscape(itemID),
		url.QueryEscape(c.userID),
	)
	_, err := c.do(ctx, http.MethodPost, endpoint, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build jellyfin request: %w", err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrConnection, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s %s returned %d", ErrHTTP, method, endpoint, resp.StatusCode)
	}
	return data, nil
}
