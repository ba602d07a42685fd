package api

// ModelType categorizes the hosted service's model families. Each type has
// its own versioned URL namespace and request/response record shape.
type ModelType string

const (
	ModelTypeChat       ModelType = "chat"
	ModelTypeCompletion ModelType = "completion"
	ModelTypeEmbedding  ModelType = "embedding"
	ModelTypeReranker   ModelType = "reranker"
	ModelTypeText2Image ModelType = "text2image"
)

// RequestBody is implemented by every request record. Streaming reports
// whether the caller asked for an SSE response; requests without a stream
// field are always buffered.
type RequestBody interface {
	Streaming() bool
}

// Message is a single turn in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// Usage reports token accounting for one call or one stream.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatRequest is the request record for chat models.
type ChatRequest struct {
	Messages        []Message `json:"messages"`
	Temperature     *float64  `json:"temperature,omitempty"`
	TopP            *float64  `json:"top_p,omitempty"`
	PenaltyScore    *float64  `json:"penalty_score,omitempty"`
	System          string    `json:"system,omitempty"`
	MaxOutputTokens int       `json:"max_output_tokens,omitempty"`
	UserID          string    `json:"user_id,omitempty"`
	Stream          bool      `json:"stream,omitempty"`
}

// Streaming implements RequestBody.
func (r *ChatRequest) Streaming() bool { return r.Stream }

// ChatResponse is one chat result: the whole answer for a buffered call,
// or one delta frame of an SSE stream.
type ChatResponse struct {
	ID               string `json:"id"`
	Object           string `json:"object"`
	Created          int64  `json:"created"`
	SentenceID       int    `json:"sentence_id,omitempty"`
	Result           string `json:"result"`
	IsEnd            bool   `json:"is_end,omitempty"`
	IsTruncated      bool   `json:"is_truncated,omitempty"`
	FinishReason     string `json:"finish_reason,omitempty"`
	NeedClearHistory bool   `json:"need_clear_history,omitempty"`
	Usage            *Usage `json:"usage,omitempty"`
}

// CompletionRequest is the request record for raw text completion models.
type CompletionRequest struct {
	Prompt       string   `json:"prompt"`
	Temperature  *float64 `json:"temperature,omitempty"`
	TopP         *float64 `json:"top_p,omitempty"`
	PenaltyScore *float64 `json:"penalty_score,omitempty"`
	UserID       string   `json:"user_id,omitempty"`
	Stream       bool     `json:"stream,omitempty"`
}

// Streaming implements RequestBody.
func (r *CompletionRequest) Streaming() bool { return r.Stream }

// CompletionResponse shares the chat response shape; completion endpoints
// emit the same frame layout.
type CompletionResponse = ChatResponse

// EmbeddingRequest is the request record for embedding models.
type EmbeddingRequest struct {
	Input  []string `json:"input"`
	UserID string   `json:"user_id,omitempty"`
}

// Streaming implements RequestBody. Embedding calls are always buffered.
func (r *EmbeddingRequest) Streaming() bool { return false }

// EmbeddingData is one embedding vector in an EmbeddingResponse.
type EmbeddingData struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

// EmbeddingResponse is the result record for embedding models.
type EmbeddingResponse struct {
	ID      string          `json:"id"`
	Object  string          `json:"object"`
	Created int64           `json:"created"`
	Data    []EmbeddingData `json:"data"`
	Usage   *Usage          `json:"usage,omitempty"`
}

// RerankRequest is the request record for reranker models.
type RerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
	UserID    string   `json:"user_id,omitempty"`
}

// Streaming implements RequestBody. Rerank calls are always buffered.
func (r *RerankRequest) Streaming() bool { return false }

// RerankResult is one scored document in a RerankResponse.
type RerankResult struct {
	Document       string  `json:"document"`
	RelevanceScore float64 `json:"relevance_score"`
	Index          int     `json:"index"`
}

// RerankResponse is the result record for reranker models.
type RerankResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Results []RerankResult `json:"results"`
	Usage   *Usage         `json:"usage,omitempty"`
}

// Text2ImageRequest is the request record for image generation models.
type Text2ImageRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Size           string `json:"size,omitempty"`
	N              int    `json:"n,omitempty"`
	Steps          int    `json:"steps,omitempty"`
	SamplerIndex   string `json:"sampler_index,omitempty"`
	UserID         string `json:"user_id,omitempty"`
}

// Streaming implements RequestBody. Image generation is always buffered.
func (r *Text2ImageRequest) Streaming() bool { return false }

// ImageData is one generated image in a Text2ImageResponse.
type ImageData struct {
	Object   string `json:"object"`
	B64Image string `json:"b64_image"`
	Index    int    `json:"index"`
}

// Text2ImageResponse is the result record for image generation models.
type Text2ImageResponse struct {
	ID      string      `json:"id"`
	Object  string      `json:"object"`
	Created int64       `json:"created"`
	Data    []ImageData `json:"data"`
	Usage   *Usage      `json:"usage,omitempty"`
}

// ServiceError is the structured error body the service attaches to failed
// calls. The token endpoint uses the OAuth-style Err/ErrDescription pair;
// inference endpoints use ErrorCode/ErrorMsg, sometimes on a 200 response.
type ServiceError struct {
	ErrorCode      int    `json:"error_code,omitempty"`
	ErrorMsg       string `json:"error_msg,omitempty"`
	Err            string `json:"error,omitempty"`
	ErrDescription string `json:"error_description,omitempty"`
}

// Service error codes that signal an expired or invalid access token. A
// dispatcher seeing one of these re-acquires the credential and retries
// the call once.
const (
	ErrCodeInvalidToken = 110
	ErrCodeExpiredToken = 111
)

// TokenExpired reports whether the error body signals a stale credential.
func (e *ServiceError) TokenExpired() bool {
	return e.ErrorCode == ErrCodeInvalidToken || e.ErrorCode == ErrCodeExpiredToken
}
