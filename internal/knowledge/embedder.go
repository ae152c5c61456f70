// Package knowledge wraps the local vector index used for campus document
// retrieval. Documents are grouped into per-topic collections and queried
// by cosine similarity.
package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/philippgille/chromem-go"
)

// ErrNoEmbedder indicates no embedding model was provided.
var ErrNoEmbedder = errors.New("no embedder configured")

// EmbeddingFunc converts a genkit embedder into the chromem embedding
// callback. Returns ErrNoEmbedder when embedder is nil so misconfiguration
// surfaces at index time, not as a nil dereference mid-batch.
func EmbeddingFunc(embedder ai.Embedder) (chromem.EmbeddingFunc, error) {
	if embedder == nil {
		return nil, ErrNoEmbedder
	}
	return func(ctx context.Context, text string) ([]float32, error) {
		resp, err := embedder.Embed(ctx, &ai.EmbedRequest{
			Input: []*ai.Document{ai.DocumentFromText(text, nil)},
		})
		if err != nil {
			return nil, fmt.Errorf("embedding text: %w", err)
		}
		if len(resp.Embeddings) == 0 {
			return nil, errors.New("embedder returned no embeddings")
		}
		return resp.Embeddings[0].Embedding, nil
	}, nil
}
