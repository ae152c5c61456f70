package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/openai/openai-go/option"

	"github.com/zk-jackie/campusqa/internal/auth"
	"github.com/zk-jackie/campusqa/internal/config"
	"github.com/zk-jackie/campusqa/internal/guide"
	"github.com/zk-jackie/campusqa/internal/knowledge"
	"github.com/zk-jackie/campusqa/internal/session"
	"github.com/zk-jackie/campusqa/internal/tools"
)

// Setup creates and initializes the serving application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	a.Sessions = session.New(cfg.SessionTTL, logger.With("component", "session"))

	a.Verifier = auth.NewVerifier(cfg.SecretKey, cfg.Algorithm)
	blacklist := auth.NewBlacklist(cfg.BlacklistFile, logger.With("component", "blacklist"))
	a.Gate = auth.NewGate(blacklist, a.Verifier, logger.With("component", "gate"))

	// The knowledge index is optional at serve time: without an embedder
	// or an existing index the local search tool degrades gracefully.
	a.Embedder = provideEmbedder(g, cfg)
	if a.Embedder != nil {
		store, err := provideKnowledge(cfg, a.Embedder, logger)
		if err != nil {
			logger.Warn("opening knowledge index, local search disabled", "error", err)
		} else {
			a.Knowledge = store
		}
	} else {
		logger.Warn("no embedder configured, local search disabled")
	}

	guideTools := tools.Register(g, a.Knowledge, tools.Config{
		Site:       cfg.SearchSite,
		MaxResults: cfg.SearchMaxResults,
	}, logger)

	a.Guide = guide.New(g, "openai/"+cfg.ModelName, a.Sessions, logger,
		guide.WithTools(guideTools...),
		guide.WithMaxTurns(cfg.MaxTurns),
	)

	return a, nil
}

// SetupVectorize initializes only what the batch indexing job needs.
func SetupVectorize(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	a.Embedder = provideEmbedder(g, cfg)
	if a.Embedder == nil {
		return nil, knowledge.ErrNoEmbedder
	}

	store, err := provideKnowledge(cfg, a.Embedder, logger)
	if err != nil {
		return nil, err
	}
	a.Knowledge = store

	return a, nil
}

// provideGenkit initializes Genkit with the OpenAI-compatible provider.
// The base URL override lets the same code talk to any hosted endpoint
// that speaks the OpenAI protocol.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	// The batch job may be configured with embedder credentials only.
	apiKey := cfg.ModelAPIKey
	if apiKey == "" {
		apiKey = cfg.EmbedderAPIKey
	}
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	baseURL := cfg.ModelBaseURL
	if baseURL == "" {
		baseURL = cfg.EmbedderBaseURL
	}
	var opts []option.RequestOption
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	g := genkit.Init(ctx,
		genkit.WithPlugins(&openai.OpenAI{APIKey: apiKey, Opts: opts}),
	)
	if g == nil {
		return nil, errors.New("initializing genkit with openai provider")
	}
	slog.Info("initialized Genkit with openai provider",
		"model", cfg.ModelName, "base_url", cfg.ModelBaseURL)
	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider plugin.
// OpenAI-compatible embedders are auto-registered in Init() and looked up
// by model name.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	if cfg.EmbedderModel == "" {
		return nil
	}
	return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
}

// provideKnowledge opens the on-disk vector index.
func provideKnowledge(cfg *config.Config, embedder ai.Embedder, logger *slog.Logger) (*knowledge.Store, error) {
	embed, err := knowledge.EmbeddingFunc(embedder)
	if err != nil {
		return nil, err
	}
	store, err := knowledge.Open(cfg.VectorDBPath, embed, logger.With("component", "knowledge"))
	if err != nil {
		return nil, fmt.Errorf("opening knowledge index: %w", err)
	}
	return store, nil
}
