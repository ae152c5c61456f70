// Package tools provides the Genkit tools the campus guide may call:
// a site-scoped web search, a single page visit, and local knowledge
// retrieval.
//
// Dependencies are injected and captured via closures; the package holds no
// state of its own. Tool errors are returned as readable strings inside the
// output so the model can recover, not as Go errors that abort the turn.
package tools

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/zk-jackie/campusqa/internal/knowledge"
)

// Tool name constants. The system prompt refers to these capabilities, so
// the names are part of the agent's contract.
const (
	WebSearchName   = "webSearch"
	WebVisitName    = "webVisit"
	LocalSearchName = "localSearch"
)

// Config bundles tool settings.
type Config struct {
	// Site scopes web searches to one domain, e.g. "gdou.edu.cn".
	Site string

	// MaxResults caps search hits and local retrieval hits.
	MaxResults int
}

// ToolNames lists every tool Register defines, in registration order.
func ToolNames() []string {
	return []string{WebSearchName, WebVisitName, LocalSearchName}
}

// httpClient is shared by the network tools. Redirects are followed but
// capped; slow campus servers get a generous timeout.
func httpClient() *http.Client {
	return &http.Client{
		Timeout: 20 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// Register defines all guide tools on g and returns them in a stable order.
// store may be nil when no local index exists; the local search tool then
// reports that no documents are available.
func Register(g *genkit.Genkit, store *knowledge.Store, cfg Config, logger *slog.Logger) []ai.Tool {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "tools")

	client := httpClient()
	return []ai.Tool{
		defineWebSearch(g, client, cfg, logger),
		defineWebVisit(g, client, logger),
		defineLocalSearch(g, store, cfg, logger),
	}
}
