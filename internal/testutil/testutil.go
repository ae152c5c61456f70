// Package testutil provides shared test doubles: a deterministic mock
// model, a deterministic mock embedder, and an SSE stream parser.
package testutil

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/genkit"
)

// NewGenkit initializes a Genkit instance for tests.
func NewGenkit(t *testing.T) *genkit.Genkit {
	t.Helper()
	g := genkit.Init(context.Background())
	if g == nil {
		t.Fatal("initializing genkit for test")
	}
	return g
}
