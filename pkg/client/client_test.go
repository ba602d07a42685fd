package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/qianfan-go/qianfan/pkg/api"
	"github.com/qianfan-go/qianfan/pkg/config"
)

// tokenHandler serves the token endpoint, counting refreshes.
func tokenHandler(calls *atomic.Int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok",
			"expires_in":   3600,
		})
	}
}

func newTestClient(t *testing.T, mux *http.ServeMux, mutate func(*config.Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := config.Defaults()
	cfg.AccessKey = "ak"
	cfg.SecretKey = "sk"
	cfg.BaseURL = srv.URL
	cfg.DisableEndpointOverlay = true
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := New(&cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestChatCompletionBuffered(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", tokenHandler(nil))
	mux.HandleFunc(apiPrefix+"/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("access_token"); got != "tok" {
			t.Errorf("access_token = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var fields map[string]any
		if err := json.Unmarshal(body, &fields); err != nil {
			t.Errorf("request body: %v", err)
			return
		}
		if _, ok := fields["temperature"]; !ok {
			t.Error("default temperature missing from request body")
		}
		json.NewEncoder(w).Encode(api.ChatResponse{ID: "r1", Result: "hello"})
	})

	c := newTestClient(t, mux, nil)
	resp, err := c.ChatCompletion(context.Background(), "ernie-bot", &api.ChatRequest{
		Messages: []api.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if resp.Result != "hello" {
		t.Errorf("Result = %q", resp.Result)
	}
}

func TestCaseInsensitiveModelResolution(t *testing.T) {
	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", tokenHandler(nil))
	mux.HandleFunc(apiPrefix+"/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(api.ChatResponse{Result: "ok"})
	})

	c := newTestClient(t, mux, nil)
	for _, name := range []string{"ERNIE-Bot", "ernie-bot", "Ernie-BOT"} {
		if _, err := c.ChatCompletion(context.Background(), name, &api.ChatRequest{}); err != nil {
			t.Fatalf("ChatCompletion(%q): %v", name, err)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("all casings must reach the same endpoint, got %d calls", calls.Load())
	}
}

func TestNon2xxReturnsRequestError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", tokenHandler(nil))
	mux.HandleFunc(apiPrefix+"/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{"error_code": 500100, "error_msg": "backend exploded"})
	})

	c := newTestClient(t, mux, nil)
	_, err := c.ChatCompletion(context.Background(), "ernie-bot", &api.ChatRequest{})

	var reqErr *api.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("want RequestError, got %v", err)
	}
	if reqErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d", reqErr.StatusCode)
	}
	if reqErr.Message != "backend exploded" {
		t.Errorf("Message = %q, upstream error_msg must be preserved", reqErr.Message)
	}
}

func TestExpired401RetriesOnceAndSucceeds(t *testing.T) {
	var tokenCalls, chatCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", tokenHandler(&tokenCalls))
	mux.HandleFunc(apiPrefix+"/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if chatCalls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error_description": "token expired"})
			return
		}
		json.NewEncoder(w).Encode(api.ChatResponse{Result: "second time lucky"})
	})

	c := newTestClient(t, mux, nil)
	resp, err := c.ChatCompletion(context.Background(), "ernie-bot", &api.ChatRequest{})
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if resp.Result != "second time lucky" {
		t.Errorf("Result = %q", resp.Result)
	}
	if chatCalls.Load() != 2 {
		t.Errorf("chat calls = %d, want 2 (one transparent retry)", chatCalls.Load())
	}
	if tokenCalls.Load() != 2 {
		t.Errorf("token calls = %d, want 2 (re-acquire on retry)", tokenCalls.Load())
	}
}

func TestExpiredBodyCodeRetriesOnce(t *testing.T) {
	var chatCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", tokenHandler(nil))
	mux.HandleFunc(apiPrefix+"/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		// Expiry reported in a 200 body, as the service does.
		if chatCalls.Add(1) == 1 {
			json.NewEncoder(w).Encode(map[string]any{"error_code": 111, "error_msg": "Access token expired"})
			return
		}
		json.NewEncoder(w).Encode(api.ChatResponse{Result: "ok"})
	})

	c := newTestClient(t, mux, nil)
	resp, err := c.ChatCompletion(context.Background(), "ernie-bot", &api.ChatRequest{})
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if resp.Result != "ok" {
		t.Errorf("Result = %q", resp.Result)
	}
	if chatCalls.Load() != 2 {
		t.Errorf("chat calls = %d, want 2", chatCalls.Load())
	}
}

func TestExpiredRetryHappensAtMostOnce(t *testing.T) {
	var chatCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", tokenHandler(nil))
	mux.HandleFunc(apiPrefix+"/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		chatCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error_description": "token expired"})
	})

	c := newTestClient(t, mux, nil)
	_, err := c.ChatCompletion(context.Background(), "ernie-bot", &api.ChatRequest{})

	var reqErr *api.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("want RequestError after exhausted retry, got %v", err)
	}
	if chatCalls.Load() != 2 {
		t.Errorf("chat calls = %d, want exactly 2 (never more than one retry)", chatCalls.Load())
	}
}

func TestUnknownModelResolutionError(t *testing.T) {
	var chatCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", tokenHandler(nil))
	mux.HandleFunc(apiPrefix+"/", func(w http.ResponseWriter, r *http.Request) {
		chatCalls.Add(1)
	})

	c := newTestClient(t, mux, nil)
	_, err := c.ChatCompletion(context.Background(), "no-such-model", &api.ChatRequest{})

	var resErr *api.ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("want ResolutionError, got %v", err)
	}
	if chatCalls.Load() != 0 {
		t.Error("no inference request may be issued for an unresolvable model")
	}
}

func TestEndpointOverrideWins(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", tokenHandler(nil))
	mux.HandleFunc(apiPrefix+"/chat/my_private_deploy", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.ChatResponse{Result: "private"})
	})

	c := newTestClient(t, mux, nil)
	// The model is unknown to every table; the override carries the call.
	resp, err := c.ChatCompletion(context.Background(), "my-private-model", &api.ChatRequest{},
		WithEndpoint("/chat/my_private_deploy"))
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if resp.Result != "private" {
		t.Errorf("Result = %q", resp.Result)
	}
}

func sseChatHandler(t *testing.T, payloads ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl, ok := w.(http.Flusher)
		if !ok {
			t.Error("response writer must support flushing")
			return
		}
		for _, p := range payloads {
			fmt.Fprintf(w, "data: %s\n\n", p)
			fl.Flush()
		}
	}
}

func TestStreamingChat(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", tokenHandler(nil))
	mux.HandleFunc(apiPrefix+"/chat/completions", sseChatHandler(t,
		`{"result":"hel","sentence_id":0}`,
		`{"result":"lo","sentence_id":1,"is_end":true}`,
		"[DONE]",
	))

	c := newTestClient(t, mux, nil)
	stream, err := c.ChatCompletionStream(context.Background(), "ernie-bot", &api.ChatRequest{
		Messages: []api.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("ChatCompletionStream: %v", err)
	}

	var got string
	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got += chunk.Result
	}
	if got != "hello" {
		t.Errorf("assembled result = %q", got)
	}
}

func TestStreamingServiceErrorBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", tokenHandler(nil))
	mux.HandleFunc(apiPrefix+"/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		// Plain JSON error instead of an event stream.
		json.NewEncoder(w).Encode(map[string]any{"error_code": 336100, "error_msg": "qps limit reached"})
	})

	c := newTestClient(t, mux, nil)
	_, err := c.ChatCompletionStream(context.Background(), "ernie-bot", &api.ChatRequest{})

	var reqErr *api.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("want RequestError, got %v", err)
	}
	if reqErr.Code != 336100 {
		t.Errorf("Code = %d", reqErr.Code)
	}
}

func TestStreamingCancelAbortsTransport(t *testing.T) {
	serverDone := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", tokenHandler(nil))
	mux.HandleFunc(apiPrefix+"/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"result\":\"a\"}\n\n")
		fl.Flush()
		<-r.Context().Done()
		close(serverDone)
	})

	c := newTestClient(t, mux, nil)
	stream, err := c.ChatCompletionStream(context.Background(), "ernie-bot", &api.ChatRequest{})
	if err != nil {
		t.Fatalf("ChatCompletionStream: %v", err)
	}

	chunk, err := stream.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if chunk.Result != "a" {
		t.Errorf("chunk = %+v", chunk)
	}

	stream.Cancel()

	_, err = stream.Next()
	var canceled *api.CanceledError
	if !errors.As(err, &canceled) {
		t.Errorf("want CanceledError after Cancel, got %v", err)
	}

	select {
	case <-serverDone:
	case <-time.After(2 * time.Second):
		t.Error("cancellation did not propagate to the transport")
	}
}

func TestTimeoutMapsToTimeoutError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", tokenHandler(nil))
	mux.HandleFunc(apiPrefix+"/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})

	c := newTestClient(t, mux, func(cfg *config.Config) {
		cfg.Timeout = 50 * time.Millisecond
	})
	_, err := c.ChatCompletion(context.Background(), "ernie-bot", &api.ChatRequest{})

	var timeoutErr *api.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("want TimeoutError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("TimeoutError should match context.DeadlineExceeded")
	}
}

func TestAuthErrorPropagates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_client",
			"error_description": "unknown client id",
		})
	})

	c := newTestClient(t, mux, nil)
	_, err := c.ChatCompletion(context.Background(), "ernie-bot", &api.ChatRequest{})

	var authErr *api.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("want AuthError, got %v", err)
	}
	if authErr.Description != "unknown client id" {
		t.Errorf("Description = %q", authErr.Description)
	}
}

func TestOverlayResolvesNewModel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", tokenHandler(nil))
	mux.HandleFunc(apiPrefix+"/service/list", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"items": []map[string]string{
					{"name": "Brand-New-Model", "api_type": "chat", "endpoint": "/chat/brand_new"},
				},
			},
		})
	})
	mux.HandleFunc(apiPrefix+"/chat/brand_new", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.ChatResponse{Result: "from overlay"})
	})

	c := newTestClient(t, mux, func(cfg *config.Config) {
		cfg.DisableEndpointOverlay = false
	})
	resp, err := c.ChatCompletion(context.Background(), "brand-new-model", &api.ChatRequest{})
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if resp.Result != "from overlay" {
		t.Errorf("Result = %q", resp.Result)
	}
}

func TestEmbedding(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", tokenHandler(nil))
	mux.HandleFunc(apiPrefix+"/embeddings/embedding-v1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.EmbeddingResponse{
			Data: []api.EmbeddingData{{Embedding: []float64{0.1, 0.2}, Index: 0}},
		})
	})

	c := newTestClient(t, mux, nil)
	resp, err := c.Embedding(context.Background(), "Embedding-V1", &api.EmbeddingRequest{Input: []string{"hi"}})
	if err != nil {
		t.Fatalf("Embedding: %v", err)
	}
	if len(resp.Data) != 1 || len(resp.Data[0].Embedding) != 2 {
		t.Errorf("Data = %+v", resp.Data)
	}
}
