package tools

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	readability "github.com/go-shiori/go-readability"
)

const (
	maxPageBody    = 4 << 20 // 4MB
	maxContentRune = 8000
)

// WebVisitInput is the webVisit tool input.
type WebVisitInput struct {
	URL string `json:"url" jsonschema_description:"Url of the web page to visit"`
}

// WebVisitOutput is the webVisit tool output.
type WebVisitOutput struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

func defineWebVisit(g *genkit.Genkit, client *http.Client, logger *slog.Logger) ai.Tool {
	return genkit.DefineTool(g, WebVisitName,
		"Fetch one web page by its url and return its readable text content. Use at most 2 times per question.",
		func(ctx *ai.ToolContext, in WebVisitInput) (WebVisitOutput, error) {
			logger.Info("web visit", "url", in.URL)

			title, content, err := fetchReadable(ctx, client, in.URL)
			if err != nil {
				logger.Error("web visit failed", "url", in.URL, "error", err)
				return WebVisitOutput{Error: fmt.Sprintf("visit failed: %v", err)}, nil
			}
			return WebVisitOutput{Title: title, Content: content}, nil
		})
}

// fetchReadable downloads the page and extracts its main text content,
// dropping navigation, scripts and boilerplate.
func fetchReadable(ctx context.Context, client *http.Client, rawURL string) (title, content string, err error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parsing url: %w", err)
	}
	if pageURL.Scheme != "http" && pageURL.Scheme != "https" {
		return "", "", fmt.Errorf("unsupported url scheme %q", pageURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return "", "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; campusqa/1.0)")

	resp, err := client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetching page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBody), pageURL)
	if err != nil {
		return "", "", fmt.Errorf("extracting content: %w", err)
	}

	content = strings.TrimSpace(article.TextContent)
	if runes := []rune(content); len(runes) > maxContentRune {
		content = string(runes[:maxContentRune])
	}
	return article.Title, content, nil
}
