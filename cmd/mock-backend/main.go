// Command mock-backend runs a deterministic stand-in for the hosted
// inference service: a token endpoint, a handful of model endpoints with
// buffered and SSE responses, and the dynamic service catalog. It is
// meant for demos and manual client testing without real credentials.
//
// Configuration:
//
//	MOCK_PORT       - Listen port (default: 9090)
//	MOCK_TOKEN_TTL  - Issued token lifetime in seconds (default: 3600)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

const apiPrefix = "/rpc/2.0/ai_custom/v1/wenxinworkshop"

func main() {
	port := envOrDefault("MOCK_PORT", "9090")
	ttlStr := envOrDefault("MOCK_TOKEN_TTL", "3600")
	ttl, err := strconv.Atoi(ttlStr)
	if err != nil {
		slog.Error("invalid MOCK_TOKEN_TTL", "value", ttlStr)
		os.Exit(1)
	}

	backend := newBackend(time.Duration(ttl) * time.Second)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/2.0/token", backend.handleToken)
	mux.HandleFunc("POST "+apiPrefix+"/chat/{deploy}", backend.withToken(backend.handleChat))
	mux.HandleFunc("POST "+apiPrefix+"/completions/{deploy}", backend.withToken(backend.handleChat))
	mux.HandleFunc("POST "+apiPrefix+"/embeddings/{deploy}", backend.withToken(backend.handleEmbedding))
	mux.HandleFunc("GET "+apiPrefix+"/service/list", backend.withToken(backend.handleServiceList))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port, "token_ttl", ttl)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// backend issues and validates tokens and serves canned model responses.
type backend struct {
	ttl time.Duration

	mu     sync.Mutex
	tokens map[string]time.Time // token -> expiry
	serial int
}

func newBackend(ttl time.Duration) *backend {
	return &backend{ttl: ttl, tokens: make(map[string]time.Time)}
}

// --- Token endpoint ---

func (b *backend) handleToken(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("grant_type") != "client_credentials" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "unsupported_grant_type",
			"error_description": "grant_type must be client_credentials",
		})
		return
	}
	if q.Get("client_id") == "" || q.Get("client_secret") == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_client",
			"error_description": "client_id and client_secret are required",
		})
		return
	}

	b.mu.Lock()
	b.serial++
	tok := fmt.Sprintf("mock-token-%d", b.serial)
	b.tokens[tok] = time.Now().Add(b.ttl)
	b.mu.Unlock()

	slog.Info("token issued", "token", tok, "ttl", b.ttl)
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": tok,
		"expires_in":   int(b.ttl.Seconds()),
	})
}

// withToken rejects requests whose access_token is unknown or expired,
// using the service's in-band error codes.
func (b *backend) withToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := r.URL.Query().Get("access_token")

		b.mu.Lock()
		expiry, known := b.tokens[tok]
		b.mu.Unlock()

		switch {
		case !known:
			writeJSON(w, http.StatusOK, map[string]any{
				"error_code": 110, "error_msg": "Access token invalid or no longer valid",
			})
			return
		case time.Now().After(expiry):
			writeJSON(w, http.StatusOK, map[string]any{
				"error_code": 111, "error_msg": "Access token expired",
			})
			return
		}
		next(w, r)
	}
}

// --- Model endpoints ---

type chatRequest struct {
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

func (b *backend) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error_code": 336002, "error_msg": "invalid request body",
		})
		return
	}

	text := replyFor(&req)
	if req.Stream {
		b.streamChat(w, text)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":      "as-mock-1",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"result":  text,
		"is_end":  true,
		"usage":   map[string]int{"prompt_tokens": 5, "completion_tokens": 7, "total_tokens": 12},
	})
}

func replyFor(req *chatRequest) string {
	last := req.Prompt
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			last = req.Messages[i].Content
			break
		}
	}
	if strings.Contains(strings.ToLower(last), "count") {
		return "1, 2, 3, 4, 5"
	}
	return "Hello! This is the mock backend speaking."
}

func (b *backend) streamChat(w http.ResponseWriter, text string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	words := strings.SplitAfter(text, " ")
	for i, word := range words {
		frame := map[string]any{
			"id":          "as-mock-stream",
			"object":      "chat.completion",
			"sentence_id": i,
			"result":      word,
			"is_end":      i == len(words)-1,
		}
		data, _ := json.Marshal(frame)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
		time.Sleep(50 * time.Millisecond)
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (b *backend) handleEmbedding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input []string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error_code": 336002, "error_msg": "invalid request body",
		})
		return
	}

	data := make([]map[string]any, len(req.Input))
	for i := range req.Input {
		data[i] = map[string]any{
			"object":    "embedding",
			"index":     i,
			"embedding": []float64{0.1, 0.2, 0.3},
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      "as-mock-emb",
		"object":  "embedding_list",
		"created": time.Now().Unix(),
		"data":    data,
		"usage":   map[string]int{"prompt_tokens": len(req.Input), "total_tokens": len(req.Input)},
	})
}

// handleServiceList serves the dynamic endpoint catalog the client's
// resolver overlays on its static table.
func (b *backend) handleServiceList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"result": map[string]any{
			"items": []map[string]string{
				{"name": "ERNIE-Bot", "api_type": "chat", "endpoint": "/chat/completions"},
				{"name": "Mock-Chat", "api_type": "chat", "endpoint": "/chat/mock"},
				{"name": "Mock-Embedding", "api_type": "embedding", "endpoint": "/embeddings/mock"},
			},
		},
	})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
