// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (CAMPUSQA_* prefix)
//  2. Config file (~/.campusqa/config.yaml, or CAMPUSQA_CONFIG)
//  3. Default values
//
// Security: the token secret and API keys are sensitive and are never
// logged; callers must not marshal the full Config into responses.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation.
var (
	// ErrMissingSecretKey indicates the token signing secret is not set.
	ErrMissingSecretKey = errors.New("missing secret key")

	// ErrMissingModelName indicates no chat model is configured.
	ErrMissingModelName = errors.New("missing model name")

	// ErrMissingAPIKey indicates the model API key is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidSessionTTL indicates the session inactivity window is not positive.
	ErrInvalidSessionTTL = errors.New("invalid session ttl")

	// ErrMissingEmbedder indicates no embedding provider is resolvable.
	ErrMissingEmbedder = errors.New("missing embedder configuration")

	// ErrInvalidAlgorithm indicates an unsupported token signing algorithm.
	ErrInvalidAlgorithm = errors.New("invalid signing algorithm")
)

// Supported token signing algorithms (HMAC family only; the secret is a
// shared key, not a key pair).
var supportedAlgorithms = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
}

// Config stores application configuration.
type Config struct {
	// HTTP server
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst   int      `mapstructure:"rate_burst"`  // Per-IP token bucket burst (0 = default)

	// Access control
	SecretKey     string `mapstructure:"secret_key"` // SENSITIVE
	Algorithm     string `mapstructure:"algorithm"`  // "HS256" (default), "HS384", "HS512"
	BlacklistFile string `mapstructure:"blacklist_file"`

	// Chat model (OpenAI-compatible hosted endpoint)
	ModelName    string `mapstructure:"model_name"`
	ModelAPIKey  string `mapstructure:"model_api_key"` // SENSITIVE
	ModelBaseURL string `mapstructure:"model_base_url"`
	MaxTurns     int    `mapstructure:"max_turns"` // Maximum agentic loop turns

	// Session history
	SessionTTL time.Duration `mapstructure:"session_ttl"` // Inactivity window before a transcript is dropped

	// Embeddings (may share the chat endpoint; separate so the batch job
	// can point elsewhere)
	EmbedderModel   string `mapstructure:"embedder_model"`
	EmbedderAPIKey  string `mapstructure:"embedder_api_key"` // SENSITIVE
	EmbedderBaseURL string `mapstructure:"embedder_base_url"`

	// Local knowledge index
	VectorDBPath string `mapstructure:"vector_db_path"`

	// Web search tool
	SearchSite       string `mapstructure:"search_site"` // site: filter for campus-scoped search
	SearchMaxResults int    `mapstructure:"search_max_results"`
}

// setDefaults registers default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":54823")
	v.SetDefault("algorithm", "HS256")
	v.SetDefault("blacklist_file", "blacklist.txt")
	v.SetDefault("max_turns", 5)
	v.SetDefault("session_ttl", 10*time.Minute)
	v.SetDefault("vector_db_path", "database/vectordb")
	v.SetDefault("search_site", "gdou.edu.cn")
	v.SetDefault("search_max_results", 4)
}

// bindEnvVariables binds every config key explicitly. AutomaticEnv alone
// does not surface env-only values through Unmarshal for keys without
// defaults, so secrets would silently stay empty.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded strings cannot fail to bind; a panic here is a bug.
	mustBind := func(key string) {
		envVar := "CAMPUSQA_" + strings.ToUpper(key)
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	for _, key := range []string{
		"addr", "cors_origins", "trust_proxy", "rate_burst",
		"secret_key", "algorithm", "blacklist_file",
		"model_name", "model_api_key", "model_base_url", "max_turns",
		"session_ttl",
		"embedder_model", "embedder_api_key", "embedder_base_url",
		"vector_db_path",
		"search_site", "search_max_results",
	} {
		mustBind(key)
	}
}

// Load reads configuration from defaults, an optional config file, and the
// environment.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CAMPUSQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVariables(v)

	if path := os.Getenv("CAMPUSQA_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".campusqa"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// A missing config file is fine; env and defaults still apply.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// ValidateServe checks the settings required to run the HTTP service.
func (c *Config) ValidateServe() error {
	if c.SecretKey == "" {
		return ErrMissingSecretKey
	}
	if !supportedAlgorithms[c.Algorithm] {
		return fmt.Errorf("%w: %q", ErrInvalidAlgorithm, c.Algorithm)
	}
	if c.ModelName == "" {
		return ErrMissingModelName
	}
	if c.ModelAPIKey == "" {
		return ErrMissingAPIKey
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSessionTTL, c.SessionTTL)
	}
	return nil
}

// ValidateVectorize checks the settings required to run the batch
// vectorization job.
func (c *Config) ValidateVectorize() error {
	if c.EmbedderModel == "" {
		return ErrMissingEmbedder
	}
	if c.VectorDBPath == "" {
		return errors.New("vector db path is required")
	}
	return nil
}
