// Package app assembles the application: model provider, knowledge index,
// session store, credential gate and tools, with embedded cleanup.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/zk-jackie/campusqa/internal/auth"
	"github.com/zk-jackie/campusqa/internal/config"
	"github.com/zk-jackie/campusqa/internal/guide"
	"github.com/zk-jackie/campusqa/internal/knowledge"
	"github.com/zk-jackie/campusqa/internal/session"
)

// App holds all initialized components.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	Knowledge *knowledge.Store
	Sessions  *session.Store
	Gate      *auth.Gate
	Verifier  *auth.Verifier
	Guide     *guide.Guide
}

// Close releases everything Setup initialized. Safe to call on a partially
// initialized App.
func (a *App) Close() {
	if a.Sessions != nil {
		a.Sessions.Close()
	}
}
