package vectorize

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/zk-jackie/campusqa/internal/knowledge"
)

// Sentinel errors.
var (
	// ErrNoDocuments indicates the input paths yielded no markdown files.
	ErrNoDocuments = errors.New("no documents to vectorize")

	// ErrNoFiles indicates no input paths were given.
	ErrNoFiles = errors.New("no file paths provided")
)

// Stats summarizes one pipeline run.
type Stats struct {
	Files     int
	Fragments int
	Topics    int
}

// Pipeline splits markdown files and indexes the fragments.
type Pipeline struct {
	store  *knowledge.Store
	logger *slog.Logger
}

// NewPipeline creates a Pipeline writing into store.
func NewPipeline(store *knowledge.Store, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{store: store, logger: logger.With("component", "vectorize")}
}

// Run collects markdown files under paths, splits them on headings and
// indexes every fragment under its topic. Unreadable files are logged and
// skipped; a run that produces no fragments fails with ErrNoDocuments.
func (p *Pipeline) Run(ctx context.Context, paths []string) (Stats, error) {
	if len(paths) == 0 {
		return Stats{}, ErrNoFiles
	}

	files := CollectFiles(paths, p.logger)
	if len(files) == 0 {
		return Stats{}, ErrNoDocuments
	}

	var docs []knowledge.Document
	topics := make(map[string]struct{})
	indexed := 0

	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			p.logger.Warn("skipping unreadable file", "file", file, "error", err)
			continue
		}
		fragments, err := Split(file, content)
		if err != nil {
			p.logger.Warn("skipping file", "file", file, "error", err)
			continue
		}
		for _, f := range fragments {
			docs = append(docs, knowledge.Document{
				ID:       uuid.NewString(),
				Topic:    f.Topic,
				Source:   f.Source,
				Headings: f.Headings,
				Content:  f.Content,
			})
			topics[f.Topic] = struct{}{}
		}
		indexed++
		p.logger.Info("split document", "file", file, "fragments", len(fragments))
	}

	if len(docs) == 0 {
		return Stats{}, ErrNoDocuments
	}
	if err := p.store.Add(ctx, docs); err != nil {
		return Stats{}, fmt.Errorf("indexing documents: %w", err)
	}

	stats := Stats{Files: indexed, Fragments: len(docs), Topics: len(topics)}
	p.logger.Info("vectorization complete",
		"files", stats.Files, "fragments", stats.Fragments, "topics", stats.Topics)
	return stats, nil
}

// CollectFiles expands paths into the markdown files they contain.
// Directories are walked recursively; non-markdown files are ignored and
// invalid paths are logged and skipped so one bad path cannot sink a batch.
func CollectFiles(paths []string, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			logger.Warn("skipping invalid path", "path", path, "error", err)
			continue
		}
		if !info.IsDir() {
			if isMarkdown(path) {
				files = append(files, path)
			}
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isMarkdown(p) {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			logger.Warn("skipping unwalkable directory", "path", path, "error", err)
		}
	}
	return files
}

func isMarkdown(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".md")
}
