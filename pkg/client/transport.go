package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/qianfan-go/qianfan/pkg/api"
)

// maxErrorBody bounds how much of a failed response is read for its error
// message.
const maxErrorBody = 64 * 1024

// send performs the network call for an envelope. Streaming envelopes go
// through the timeout-free client; the caller owns the response body.
func (c *Client) send(ctx context.Context, env *Envelope) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, env.URL, bytes.NewReader(env.Body))
	if err != nil {
		return nil, api.NewRequestError(0, fmt.Sprintf("building request: %s", err))
	}
	for k, vs := range env.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	hc := c.httpClient
	if env.Streaming {
		hc = c.streamClient
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	return resp, nil
}

// mapTransportError classifies network-level failures: deadline overruns
// become TimeoutError, explicit cancellation becomes CanceledError, and
// everything else a RequestError without a status code.
func mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return api.NewTimeoutError("request")
	}
	if errors.Is(err, context.Canceled) {
		return api.NewCanceledError("request")
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return api.NewTimeoutError("request")
	}
	return api.NewRequestError(0, fmt.Sprintf("connection error: %s", err))
}

// parseServiceError tries to decode a structured service error body.
// Returns nil when the body is not a recognizable error record.
func parseServiceError(data []byte) *api.ServiceError {
	var se api.ServiceError
	if err := json.Unmarshal(data, &se); err != nil {
		return nil
	}
	if se.ErrorCode == 0 && se.ErrorMsg == "" && se.ErrDescription == "" {
		return nil
	}
	return &se
}

// statusError builds the RequestError for a non-2xx response, preserving
// the upstream message when the body carried one.
func statusError(status int, data []byte) *api.RequestError {
	se := parseServiceError(data)
	switch {
	case se == nil:
		return api.NewRequestError(status, "")
	case se.ErrorMsg != "":
		return api.NewServiceError(status, se.ErrorCode, se.ErrorMsg)
	case se.ErrDescription != "":
		return api.NewRequestError(status, se.ErrDescription)
	default:
		return api.NewRequestError(status, "")
	}
}

// readBody drains a response body up to limit bytes.
func readBody(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}
