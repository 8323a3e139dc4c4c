// Package http holds the outbound HTTP client shared by the portal
// executor and the messaging gateway. Callers import it under an alias
// since the package name shadows net/http.
package http

import (
	"context"
	"net/http"
	"time"
)

// Client carries the per-request timeout both external surfaces use.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// DoWithContext executes the request bound to ctx. The call ends when
// ctx or the client timeout expires, whichever comes first.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req.WithContext(ctx))
}
