package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/qianfan-go/qianfan/pkg/api"
)

// serviceListResponse is the wire shape of the dynamic service catalog.
type serviceListResponse struct {
	Result struct {
		Items []serviceEntry `json:"items"`
	} `json:"result"`
	api.ServiceError
}

type serviceEntry struct {
	Name     string `json:"name"`
	APIType  string `json:"api_type"`
	Endpoint string `json:"endpoint"`
}

// fetchOverlay retrieves the dynamic endpoint overlay from the service
// catalog. The resolver calls it lazily and treats failures as
// best-effort.
func (c *Client) fetchOverlay(ctx context.Context) (map[api.ModelType]map[string]string, error) {
	cred, err := c.cache.Acquire(ctx, c.source)
	if err != nil {
		return nil, err
	}

	u := strings.TrimRight(c.cfg.BaseURL, "/") + apiPrefix + "/service/list" +
		"?access_token=" + url.QueryEscape(cred.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("service list returned HTTP %d", resp.StatusCode)
	}

	var list serviceListResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&list); err != nil {
		return nil, fmt.Errorf("parsing service list: %w", err)
	}
	if list.ErrorCode != 0 {
		return nil, fmt.Errorf("service list error %d: %s", list.ErrorCode, list.ErrorMsg)
	}

	overlay := make(map[api.ModelType]map[string]string)
	for _, item := range list.Result.Items {
		if item.Name == "" || item.Endpoint == "" {
			continue
		}
		typ := api.ModelType(item.APIType)
		byName, ok := overlay[typ]
		if !ok {
			byName = make(map[string]string)
			overlay[typ] = byName
		}
		byName[item.Name] = item.Endpoint
	}
	return overlay, nil
}
