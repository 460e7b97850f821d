// Package llm wraps the Genkit model plumbing behind the two narrow
// capabilities the pipeline needs: embedding text and generating grounded
// answers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/vhoang/troly/internal/log"
)

// Embedder generates embeddings through a Genkit ai.Embedder with a
// per-call timeout. It satisfies vectorstore.Embedder.
type Embedder struct {
	embedder ai.Embedder
	timeout  time.Duration
	logger   log.Logger
}

// NewEmbedder creates an Embedder. timeout bounds each model call.
func NewEmbedder(embedder ai.Embedder, timeout time.Duration, logger log.Logger) *Embedder {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Embedder{embedder: embedder, timeout: timeout, logger: logger}
}

// Embed returns the embedding for one text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding timeout after %s: %w", e.timeout, err)
		}
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	return resp.Embeddings[0].Embedding, nil
}

// EmbedBatch embeds texts in one request, preserving order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}

	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("batch embedding timeout after %s: %w", e.timeout, err)
		}
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d",
			len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		out[i] = emb.Embedding
	}
	return out, nil
}
