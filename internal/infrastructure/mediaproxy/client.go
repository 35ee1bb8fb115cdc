package mediaproxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	ErrNotFound = errors.New("not found")
)

// File is externally hosted media fetched through the proxy path.
type File struct {
	Data        []byte
	ContentType string
}

// Client fetches externally hosted media (e.g. Telegram CDN files) so that
// public file links can serve them without exposing the upstream URL.
type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{},
	}
}

func (c *Client) Fetch(ctx context.Context, rawURL string) (*File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media proxy fetch failed with status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &File{
		Data:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
