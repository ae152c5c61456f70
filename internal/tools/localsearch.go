package tools

import (
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/zk-jackie/campusqa/internal/knowledge"
)

// LocalSearchInput is the localSearch tool input.
type LocalSearchInput struct {
	Keyword string `json:"keyword" jsonschema_description:"One key word to look up in local campus documents"`
}

// LocalHit is one local document fragment.
type LocalHit struct {
	Topic    string  `json:"topic"`
	Source   string  `json:"source"`
	Headings string  `json:"headings,omitempty"`
	Content  string  `json:"content"`
	Score    float32 `json:"score"`
}

// LocalSearchOutput is the localSearch tool output.
type LocalSearchOutput struct {
	Hits  []LocalHit `json:"hits,omitempty"`
	Error string     `json:"error,omitempty"`
}

func defineLocalSearch(g *genkit.Genkit, store *knowledge.Store, cfg Config, logger *slog.Logger) ai.Tool {
	return genkit.DefineTool(g, LocalSearchName,
		"Look up local campus documents (handbooks, notices, regulations) by a key word.",
		func(ctx *ai.ToolContext, in LocalSearchInput) (LocalSearchOutput, error) {
			logger.Info("local search", "keyword", in.Keyword)

			if store == nil || store.Empty() {
				return LocalSearchOutput{Error: "no local documents are indexed"}, nil
			}

			results, err := store.Search(ctx, in.Keyword, cfg.MaxResults)
			if err != nil {
				logger.Error("local search failed", "keyword", in.Keyword, "error", err)
				return LocalSearchOutput{Error: fmt.Sprintf("local search failed: %v", err)}, nil
			}
			if len(results) == 0 {
				return LocalSearchOutput{Error: "no matching documents"}, nil
			}

			hits := make([]LocalHit, len(results))
			for i, r := range results {
				hits[i] = LocalHit{
					Topic:    r.Topic,
					Source:   r.Source,
					Headings: r.Headings,
					Content:  r.Content,
					Score:    r.Similarity,
				}
			}
			return LocalSearchOutput{Hits: hits}, nil
		})
}
