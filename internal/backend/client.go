package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/bufbuild/httplb"
)

// ClientConfig tunes the outbound HTTP client.
type ClientConfig struct {
	// Timeout applies to requests whose context has no deadline.
	Timeout time.Duration

	// IdleConnTimeout closes connections idle for longer.
	IdleConnTimeout time.Duration
}

// NewClient returns an httplb client for backend and validation calls.
// Redirects are not followed. The client must be released with
// CloseClient; cancelling ctx also stops its background goroutines.
func NewClient(ctx context.Context, cfg ClientConfig) *http.Client {
	opts := []httplb.ClientOption{
		httplb.WithRootContext(ctx),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, httplb.WithDefaultTimeout(cfg.Timeout))
	}
	if cfg.IdleConnTimeout > 0 {
		opts = append(opts, httplb.WithIdleConnectionTimeout(cfg.IdleConnTimeout))
	}
	return httplb.NewClient(opts...).Client
}

// CloseClient releases a client created by NewClient.
func CloseClient(client *http.Client) error {
	return (&httplb.Client{Client: client}).Close()
}
