// Package client dispatches typed inference calls: it acquires a
// credential, resolves the model's endpoint, builds the request envelope,
// and routes the response through the SSE stream decoder when streaming
// is requested.
package client

import (
	"net/http"

	"github.com/qianfan-go/qianfan/pkg/api"
	"github.com/qianfan-go/qianfan/pkg/auth"
	"github.com/qianfan-go/qianfan/pkg/config"
	"github.com/qianfan-go/qianfan/pkg/endpoint"
)

// apiPrefix is the versioned namespace all model endpoints live under.
const apiPrefix = "/rpc/2.0/ai_custom/v1/wenxinworkshop"

// Client is the dispatch pipeline for one key-pair configuration.
// Credential state is owned by the client's cache, not a process global,
// so multiple clients with independent key pairs can coexist. All methods
// are safe for concurrent use.
type Client struct {
	cfg config.Config

	// httpClient bounds buffered calls with the configured timeout.
	// streamClient has no timeout: a stream may legitimately outlive any
	// fixed deadline, so its lifetime is governed by context cancellation.
	httpClient   *http.Client
	streamClient *http.Client

	cache    *auth.Cache
	source   auth.TokenSource
	resolver *endpoint.Resolver
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport used for buffered calls. The
// streaming transport shares its RoundTripper but drops the timeout.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
		c.streamClient = &http.Client{Transport: h.Transport}
	}
}

// WithTokenSource replaces the credential source, e.g. for tests or for
// deployments with a non-standard token endpoint.
func WithTokenSource(src auth.TokenSource) Option {
	return func(c *Client) { c.source = src }
}

// WithCache shares a credential cache between clients.
func WithCache(cache *auth.Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithResolver replaces the endpoint resolver.
func WithResolver(r *endpoint.Resolver) Option {
	return func(c *Client) { c.resolver = r }
}

// New creates a Client from a validated configuration.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{cfg: *cfg}
	c.httpClient = &http.Client{Timeout: cfg.Timeout}
	c.streamClient = &http.Client{}

	authBase := cfg.AuthBaseURL
	if authBase == "" {
		authBase = cfg.BaseURL
	}
	c.source = auth.NewOAuthTokenSource(authBase, cfg.AccessKey, cfg.SecretKey, nil)
	c.cache = auth.NewCache(auth.WithSafetyMargin(cfg.TokenSafetyMargin))

	table := endpoint.DefaultTable()
	for typ, byName := range cfg.Endpoints {
		for name, path := range byName {
			table.Add(api.ModelType(typ), name, path)
		}
	}
	var ropts []endpoint.ResolverOption
	if !cfg.DisableEndpointOverlay {
		ropts = append(ropts, endpoint.WithOverlay(c.fetchOverlay, cfg.OverlayTTL))
	}
	c.resolver = endpoint.NewResolver(table, ropts...)

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases idle transport connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	c.streamClient.CloseIdleConnections()
	return nil
}
