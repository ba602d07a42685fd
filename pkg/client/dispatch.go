package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/qianfan-go/qianfan/pkg/api"
	"github.com/qianfan-go/qianfan/pkg/observability"
	"github.com/qianfan-go/qianfan/pkg/sse"
)

// maxResponseBody bounds buffered (non-streaming) response bodies.
const maxResponseBody = 32 << 20

// CallOption adjusts a single dispatched call.
type CallOption func(*callConfig)

type callConfig struct {
	endpointOverride string
}

// WithEndpoint overrides endpoint resolution with an explicit path
// fragment, e.g. for privately deployed models the catalog cannot know.
// An override always wins, whatever the endpoint tables hold.
func WithEndpoint(path string) CallOption {
	return func(c *callConfig) { c.endpointOverride = path }
}

func applyCallOptions(opts []CallOption) callConfig {
	var cc callConfig
	for _, opt := range opts {
		opt(&cc)
	}
	return cc
}

// Do dispatches a buffered call and decodes the response into T.
//
// An expired credential reported by the service triggers exactly one
// transparent re-acquire-and-retry of the whole call.
func Do[T any](ctx context.Context, c *Client, typ api.ModelType, model string, body api.RequestBody, opts ...CallOption) (*T, error) {
	cc := applyCallOptions(opts)

	start := time.Now()
	raw, err := c.invoke(ctx, typ, model, body, cc)
	observability.RequestDuration.WithLabelValues(string(typ), model).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.RequestsTotal.WithLabelValues(string(typ), model, "error").Inc()
		return nil, err
	}
	observability.RequestsTotal.WithLabelValues(string(typ), model, "ok").Inc()

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, api.NewRequestError(0, fmt.Sprintf("decoding service response: %s", err))
	}
	return &out, nil
}

// DoStream dispatches a streaming call and returns the typed stream
// immediately, without blocking for content; the caller pulls items at
// its own pace.
func DoStream[T any](ctx context.Context, c *Client, typ api.ModelType, model string, body api.RequestBody, opts ...CallOption) (*sse.Stream[T], error) {
	cc := applyCallOptions(opts)

	resp, cancel, err := c.open(ctx, typ, model, body, cc)
	if err != nil {
		observability.RequestsTotal.WithLabelValues(string(typ), model, "error").Inc()
		return nil, err
	}
	observability.RequestsTotal.WithLabelValues(string(typ), model, "ok").Inc()
	observability.ActiveStreams.Inc()

	return sse.NewStream[T](resp.Body,
		sse.WithAbort(cancel),
		sse.WithCloseHook(func() { observability.ActiveStreams.Dec() }),
	), nil
}

// invoke runs one buffered call with the single expiry retry.
func (c *Client) invoke(ctx context.Context, typ api.ModelType, model string, body api.RequestBody, cc callConfig) ([]byte, error) {
	raw, expired, err := c.attempt(ctx, typ, model, body, cc)
	if expired {
		c.retryCredential(model)
		raw, _, err = c.attempt(ctx, typ, model, body, cc)
	}
	return raw, err
}

// attempt runs the full pipeline once: acquire, resolve, build, send,
// read. expired reports whether the failure was a stale credential, which
// the caller may retry once.
func (c *Client) attempt(ctx context.Context, typ api.ModelType, model string, body api.RequestBody, cc callConfig) (raw []byte, expired bool, err error) {
	env, err := c.prepare(ctx, typ, model, body, cc)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.send(ctx, env)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	data, err := readBody(resp.Body, maxResponseBody)
	if err != nil {
		return nil, false, mapTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reqErr := statusError(resp.StatusCode, data)
		return nil, credentialExpired(resp.StatusCode, parseServiceError(data)), reqErr
	}

	// The service reports some failures in a 2xx body.
	if se := parseServiceError(data); se != nil && se.ErrorCode != 0 {
		reqErr := api.NewServiceError(resp.StatusCode, se.ErrorCode, se.ErrorMsg)
		return nil, se.TokenExpired(), reqErr
	}

	return data, false, nil
}

// open runs the streaming pipeline with the single expiry retry and hands
// back the live response plus the cancel function governing its lifetime.
func (c *Client) open(ctx context.Context, typ api.ModelType, model string, body api.RequestBody, cc callConfig) (*http.Response, context.CancelFunc, error) {
	resp, cancel, expired, err := c.openAttempt(ctx, typ, model, body, cc)
	if expired {
		c.retryCredential(model)
		resp, cancel, _, err = c.openAttempt(ctx, typ, model, body, cc)
	}
	return resp, cancel, err
}

func (c *Client) openAttempt(ctx context.Context, typ api.ModelType, model string, body api.RequestBody, cc callConfig) (*http.Response, context.CancelFunc, bool, error) {
	sctx, cancel := context.WithCancel(ctx)

	env, err := c.prepare(sctx, typ, model, body, cc)
	if err != nil {
		cancel()
		return nil, nil, false, err
	}

	resp, err := c.send(sctx, env)
	if err != nil {
		cancel()
		return nil, nil, false, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := readBody(resp.Body, maxErrorBody)
		resp.Body.Close()
		cancel()
		reqErr := statusError(resp.StatusCode, data)
		return nil, nil, credentialExpired(resp.StatusCode, parseServiceError(data)), reqErr
	}

	// A service-level failure on a streaming call arrives as a plain JSON
	// body instead of an event stream.
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		data, _ := readBody(resp.Body, maxErrorBody)
		resp.Body.Close()
		cancel()
		if se := parseServiceError(data); se != nil && se.ErrorCode != 0 {
			reqErr := api.NewServiceError(resp.StatusCode, se.ErrorCode, se.ErrorMsg)
			return nil, nil, se.TokenExpired(), reqErr
		}
		return nil, nil, false, api.NewRequestError(resp.StatusCode, fmt.Sprintf("expected event stream, got %q", ct))
	}

	return resp, cancel, false, nil
}

// prepare runs the side-effecting steps of the pipeline: credential
// acquisition and endpoint resolution, then the pure envelope build.
func (c *Client) prepare(ctx context.Context, typ api.ModelType, model string, body api.RequestBody, cc callConfig) (*Envelope, error) {
	cred, err := c.cache.Acquire(ctx, c.source)
	if err != nil {
		return nil, err
	}
	path, err := c.resolver.Resolve(ctx, typ, model, cc.endpointOverride)
	if err != nil {
		return nil, err
	}
	return buildEnvelope(typ, c.cfg.BaseURL, path, cred.Token, body)
}

// retryCredential drops the stale credential before the one transparent
// retry.
func (c *Client) retryCredential(model string) {
	observability.CredentialRetriesTotal.Inc()
	slog.Debug("credential reported expired, re-acquiring and retrying call", "model", model)
	c.cache.Invalidate(c.source.KeyPairID())
}

// credentialExpired reports whether a failed response signals a stale
// credential: an HTTP 401, or the service's invalid/expired token codes.
func credentialExpired(status int, se *api.ServiceError) bool {
	if status == http.StatusUnauthorized {
		return true
	}
	return se != nil && se.TokenExpired()
}
