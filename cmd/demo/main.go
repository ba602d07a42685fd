// Command demo exercises the client against a live service: one buffered
// chat call, one streaming chat call with a split stream, and one
// embedding call. Point it at cmd/mock-backend for a local run:
//
//	QIANFAN_ACCESS_KEY=ak QIANFAN_SECRET_KEY=sk \
//	QIANFAN_BASE_URL=http://localhost:9090 go run ./cmd/demo
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/qianfan-go/qianfan/pkg/api"
	"github.com/qianfan-go/qianfan/pkg/client"
	"github.com/qianfan-go/qianfan/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	model := flag.String("model", "ERNIE-Bot", "chat model name")
	embModel := flag.String("embedding-model", "Embedding-V1", "embedding model name")
	prompt := flag.String("prompt", "Say hello and count from 1 to 5.", "chat prompt")
	flag.Parse()

	if err := run(*configPath, *model, *embModel, *prompt); err != nil {
		slog.Error("demo failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, model, embModel, prompt string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	c, err := client.New(cfg)
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Buffered chat.
	resp, err := c.ChatCompletion(ctx, model, &api.ChatRequest{
		Messages: []api.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return fmt.Errorf("buffered chat: %w", err)
	}
	fmt.Printf("[buffered] %s\n", resp.Result)

	// Streaming chat, split so two consumers read the same frames.
	stream, err := c.ChatCompletionStream(ctx, model, &api.ChatRequest{
		Messages: []api.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}

	left, right, err := stream.Split()
	if err != nil {
		return fmt.Errorf("splitting stream: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var frames int
		for {
			if _, err := right.Next(); err != nil {
				break
			}
			frames++
		}
		fmt.Printf("\n[stream/count] %d frames\n", frames)
	}()

	fmt.Print("[stream/text] ")
	for {
		chunk, err := left.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading stream: %w", err)
		}
		fmt.Print(chunk.Result)
	}
	wg.Wait()

	// Embedding.
	emb, err := c.Embedding(ctx, embModel, &api.EmbeddingRequest{
		Input: []string{prompt},
	})
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if len(emb.Data) > 0 {
		fmt.Printf("[embedding] %d vectors, dim %d\n", len(emb.Data), len(emb.Data[0].Embedding))
	}

	return nil
}
