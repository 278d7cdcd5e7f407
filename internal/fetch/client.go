// Package fetch drives the tile download: it derives request URLs from
// quadkeys, fetches tile payloads over HTTP with a bounded worker pool, and
// publishes each tile atomically into the sharded output tree.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Default request parameters for the Bing 3D tile endpoint.
const (
	DefaultHost      = "https://t.ssl.ak.tiles.virtualearth.net"
	DefaultBuildID   = "15340"
	DefaultFormatTag = "3dv4"

	userAgent = "TileFetcher/1.0 (+https://example.local)"
)

// ErrEmptyBody is returned when the server answers 2xx with no payload.
var ErrEmptyBody = errors.New("fetch: empty response body")

// Source identifies the tile endpoint and the fixed query parameters every
// tile request carries.
type Source struct {
	Host      string
	BuildID   string
	FormatTag string
	APIKey    string
}

// TileURL builds the request URL for a tile quadkey.
func (s Source) TileURL(quadkey string) string {
	return fmt.Sprintf("%s/tiles/mtx%s?g=%s&tf=%s&n=z&key=%s&form=web3d",
		s.Host, quadkey, s.BuildID, s.FormatTag, s.APIKey)
}

// ClientOptions configures the HTTP client.
type ClientOptions struct {
	// Timeout bounds each request, headers through body.
	Timeout time.Duration

	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration

	// IdleConnTimeout is how long idle connections are kept for reuse.
	IdleConnTimeout time.Duration

	// MaxIdleConnsPerHost caps pooled connections to the tile host.
	MaxIdleConnsPerHost int
}

// DefaultClientOptions returns the tuning used for production downloads.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout:             30 * time.Second,
		ConnectTimeout:      10 * time.Second,
		IdleConnTimeout:     30 * time.Second,
		MaxIdleConnsPerHost: 32,
	}
}

// Client fetches tile payloads. Each fetch is a single attempt: any status
// outside 2xx, an empty body, a timeout, or a transport error is a failure
// reported to the caller. There is no retry.
type Client struct {
	client *http.Client
}

// NewClient creates a tile HTTP client with the given options.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.IdleConnTimeout <= 0 {
		opts.IdleConnTimeout = 30 * time.Second
	}
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = 32
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: opts.ConnectTimeout,
		}).DialContext,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		IdleConnTimeout:     opts.IdleConnTimeout,
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
	}
}

// Fetch performs one GET and returns the full response body.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}

	return body, nil
}
