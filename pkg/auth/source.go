package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/qianfan-go/qianfan/pkg/api"
)

// defaultTokenTTL is assumed when the token endpoint reports no expiry and
// the token carries none either.
const defaultTokenTTL = 24 * time.Hour

// TokenSource issues fresh credentials for one key pair.
type TokenSource interface {
	// KeyPairID identifies the key pair; the Cache keys its state on it.
	KeyPairID() string

	// Token performs one credential refresh.
	Token(ctx context.Context) (*Credential, error)
}

// OAuthTokenSource exchanges a key pair for an access token at an
// OAuth-style token endpoint returning {access_token, expires_in} on
// success or {error, error_description} on failure.
type OAuthTokenSource struct {
	httpClient *http.Client
	baseURL    string
	accessKey  string
	secretKey  string

	now func() time.Time
}

// NewOAuthTokenSource creates a token source for the given key pair.
// httpClient may be nil, in which case a client with a 30s timeout is used.
func NewOAuthTokenSource(baseURL, accessKey, secretKey string, httpClient *http.Client) *OAuthTokenSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &OAuthTokenSource{
		httpClient: httpClient,
		baseURL:    stripTrailingSlash(baseURL),
		accessKey:  accessKey,
		secretKey:  secretKey,
		now:        time.Now,
	}
}

// KeyPairID implements TokenSource.
func (s *OAuthTokenSource) KeyPairID() string { return s.accessKey }

// tokenResponse is the token endpoint's wire shape. Error fields share the
// body with the success fields; the service never sends both.
type tokenResponse struct {
	AccessToken    string `json:"access_token"`
	ExpiresIn      int64  `json:"expires_in"`
	Err            string `json:"error"`
	ErrDescription string `json:"error_description"`
}

// Token implements TokenSource by calling the token endpoint once.
func (s *OAuthTokenSource) Token(ctx context.Context) (*Credential, error) {
	q := url.Values{}
	q.Set("grant_type", "client_credentials")
	q.Set("client_id", s.accessKey)
	q.Set("client_secret", s.secretKey)
	endpoint := s.baseURL + "/oauth/2.0/token?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, api.NewAuthError("", fmt.Sprintf("building token request: %s", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, api.NewAuthError("", fmt.Sprintf("token endpoint unreachable: %s", err))
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&tr); err != nil {
		return nil, api.NewAuthError("", fmt.Sprintf("parsing token response (HTTP %d): %s", resp.StatusCode, err))
	}

	if tr.ErrDescription != "" || tr.Err != "" {
		desc := tr.ErrDescription
		if desc == "" {
			desc = "token endpoint rejected the key pair"
		}
		return nil, api.NewAuthError(tr.Err, desc)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, api.NewAuthError("", fmt.Sprintf("token endpoint returned HTTP %d", resp.StatusCode))
	}
	if tr.AccessToken == "" {
		return nil, api.NewAuthError("", "token endpoint returned no access_token")
	}

	now := s.now()
	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl <= 0 {
		// Some deployments omit expires_in for JWT-shaped tokens; the exp
		// claim is the expiry then.
		if d, ok := ttlFromJWT(tr.AccessToken, now); ok {
			ttl = d
		} else {
			ttl = defaultTokenTTL
		}
	}

	return &Credential{Token: tr.AccessToken, IssuedAt: now, TTL: ttl}, nil
}

func stripTrailingSlash(u string) string {
	for len(u) > 0 && u[len(u)-1] == '/' {
		u = u[:len(u)-1]
	}
	return u
}
