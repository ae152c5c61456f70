package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zk-jackie/campusqa/internal/auth"
	"github.com/zk-jackie/campusqa/internal/config"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token for the API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToken()
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "student", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.SecretKey == "" {
		return config.ErrMissingSecretKey
	}

	signed, err := auth.NewVerifier(cfg.SecretKey, cfg.Algorithm).Sign(tokenSubject, tokenTTL)
	if err != nil {
		return fmt.Errorf("signing token: %w", err)
	}

	fmt.Println(signed)
	return nil
}
