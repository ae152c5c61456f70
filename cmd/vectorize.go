package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zk-jackie/campusqa/internal/app"
	"github.com/zk-jackie/campusqa/internal/config"
	"github.com/zk-jackie/campusqa/internal/vectorize"
)

var (
	crawlURL   string
	crawlDepth int
	crawlPages int
	crawlOut   string
)

var vectorizeCmd = &cobra.Command{
	Use:   "vectorize [paths...]",
	Short: "Index markdown documents into the local knowledge base",
	Long: `vectorize splits markdown files on their headings and embeds each
fragment into the local vector index, grouped by topic. Paths may be files
or directories; directories are walked recursively.

With --crawl, campus web pages are fetched into markdown files first and
indexed together with the given paths.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVectorize(cmd.Context(), args)
	},
}

func init() {
	vectorizeCmd.Flags().StringVar(&crawlURL, "crawl", "", "start URL to crawl campus pages from")
	vectorizeCmd.Flags().IntVar(&crawlDepth, "crawl-depth", 2, "maximum crawl depth")
	vectorizeCmd.Flags().IntVar(&crawlPages, "crawl-pages", 50, "maximum pages to crawl")
	vectorizeCmd.Flags().StringVar(&crawlOut, "crawl-out", "database/raw", "directory for crawled markdown")
	rootCmd.AddCommand(vectorizeCmd)
}

func runVectorize(ctx context.Context, paths []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateVectorize(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := newLogger()

	if crawlURL != "" {
		crawler := vectorize.NewCrawler(crawlOut, crawlDepth, crawlPages, logger)
		pages, err := crawler.Crawl(crawlURL)
		if err != nil {
			return fmt.Errorf("crawling %s: %w", crawlURL, err)
		}
		logger.Info("crawl finished", "pages", pages, "dir", crawlOut)
		paths = append(paths, crawlOut)
	}

	if len(paths) == 0 {
		return vectorize.ErrNoFiles
	}

	a, err := app.SetupVectorize(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	stats, err := vectorize.NewPipeline(a.Knowledge, logger).Run(ctx, paths)
	if err != nil {
		return fmt.Errorf("vectorizing: %w", err)
	}

	fmt.Printf("Indexed %d fragments from %d files into %d topics at %s\n",
		stats.Fragments, stats.Files, stats.Topics, cfg.VectorDBPath)
	return nil
}
