package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/qianfan-go/qianfan/pkg/api"
)

// Envelope is the fully built request for one call: final URL, headers,
// serialized body, and the streaming expectation. An envelope is built
// once per call and never shared or mutated afterwards.
type Envelope struct {
	URL       string
	Headers   http.Header
	Body      []byte
	Streaming bool
}

// typeDefaults holds per-model-type parameters the service requires but
// callers may omit. Caller-supplied fields always win.
var typeDefaults = map[api.ModelType]map[string]any{
	api.ModelTypeChat: {
		"temperature":   0.95,
		"top_p":         0.8,
		"penalty_score": 1.0,
	},
	api.ModelTypeCompletion: {
		"temperature": 0.95,
		"top_p":       0.8,
	},
	api.ModelTypeText2Image: {
		"size":  "1024x1024",
		"n":     1,
		"steps": 20,
	},
}

// buildEnvelope assembles the request envelope for a resolved endpoint.
// It is a pure function: every lookup side effect (credential, endpoint)
// happens in the dispatcher before this step.
func buildEnvelope(typ api.ModelType, baseURL, path, token string, body api.RequestBody) (*Envelope, error) {
	payload, err := mergeDefaults(typ, body)
	if err != nil {
		return nil, api.NewRequestError(0, fmt.Sprintf("marshaling request body: %s", err))
	}

	u := strings.TrimRight(baseURL, "/") + apiPrefix + path +
		"?access_token=" + url.QueryEscape(token)

	streaming := body.Streaming()
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	if streaming {
		headers.Set("Accept", "text/event-stream")
	}

	return &Envelope{
		URL:       u,
		Headers:   headers,
		Body:      payload,
		Streaming: streaming,
	}, nil
}

// mergeDefaults serializes the body and fills in the model type's default
// parameters for fields the caller left unset.
func mergeDefaults(typ api.ModelType, body api.RequestBody) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	defaults := typeDefaults[typ]
	if len(defaults) == 0 {
		return data, nil
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for k, v := range defaults {
		if _, ok := fields[k]; !ok {
			fields[k] = v
		}
	}
	return json.Marshal(fields)
}
