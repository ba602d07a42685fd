package client

import (
	"context"

	"github.com/qianfan-go/qianfan/pkg/api"
	"github.com/qianfan-go/qianfan/pkg/sse"
)

// ChatCompletion performs a buffered chat call.
func (c *Client) ChatCompletion(ctx context.Context, model string, req *api.ChatRequest, opts ...CallOption) (*api.ChatResponse, error) {
	r := *req
	r.Stream = false
	return Do[api.ChatResponse](ctx, c, api.ModelTypeChat, model, &r, opts...)
}

// ChatCompletionStream performs a streaming chat call. The returned stream
// yields one ChatResponse per delta frame.
func (c *Client) ChatCompletionStream(ctx context.Context, model string, req *api.ChatRequest, opts ...CallOption) (*sse.Stream[api.ChatResponse], error) {
	r := *req
	r.Stream = true
	return DoStream[api.ChatResponse](ctx, c, api.ModelTypeChat, model, &r, opts...)
}

// Completion performs a buffered text completion call.
func (c *Client) Completion(ctx context.Context, model string, req *api.CompletionRequest, opts ...CallOption) (*api.CompletionResponse, error) {
	r := *req
	r.Stream = false
	return Do[api.CompletionResponse](ctx, c, api.ModelTypeCompletion, model, &r, opts...)
}

// CompletionStream performs a streaming text completion call.
func (c *Client) CompletionStream(ctx context.Context, model string, req *api.CompletionRequest, opts ...CallOption) (*sse.Stream[api.CompletionResponse], error) {
	r := *req
	r.Stream = true
	return DoStream[api.CompletionResponse](ctx, c, api.ModelTypeCompletion, model, &r, opts...)
}

// Embedding computes embedding vectors for a batch of inputs.
func (c *Client) Embedding(ctx context.Context, model string, req *api.EmbeddingRequest, opts ...CallOption) (*api.EmbeddingResponse, error) {
	return Do[api.EmbeddingResponse](ctx, c, api.ModelTypeEmbedding, model, req, opts...)
}

// Rerank scores documents against a query.
func (c *Client) Rerank(ctx context.Context, model string, req *api.RerankRequest, opts ...CallOption) (*api.RerankResponse, error) {
	return Do[api.RerankResponse](ctx, c, api.ModelTypeReranker, model, req, opts...)
}

// Text2Image generates images from a prompt.
func (c *Client) Text2Image(ctx context.Context, model string, req *api.Text2ImageRequest, opts ...CallOption) (*api.Text2ImageResponse, error) {
	return Do[api.Text2ImageResponse](ctx, c, api.ModelTypeText2Image, model, req, opts...)
}
