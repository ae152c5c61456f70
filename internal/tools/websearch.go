package tools

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

const maxSearchBody = 2 << 20 // 2MB

// WebSearchInput is the webSearch tool input.
type WebSearchInput struct {
	Keyword string `json:"keyword" jsonschema_description:"One key word to search for"`
}

// SearchHit is one web search result.
type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearchOutput is the webSearch tool output.
type WebSearchOutput struct {
	Hits  []SearchHit `json:"hits,omitempty"`
	Error string      `json:"error,omitempty"`
}

func defineWebSearch(g *genkit.Genkit, client *http.Client, cfg Config, logger *slog.Logger) ai.Tool {
	return genkit.DefineTool(g, WebSearchName,
		"Search the web for information about the GDOU campus from its official website. Input one key word.",
		func(ctx *ai.ToolContext, in WebSearchInput) (WebSearchOutput, error) {
			logger.Info("web search", "keyword", in.Keyword)

			hits, err := searchDuckDuckGo(ctx, client, scopeQuery(in.Keyword, cfg.Site), cfg.MaxResults)
			if err != nil {
				logger.Error("web search failed", "keyword", in.Keyword, "error", err)
				return WebSearchOutput{Error: fmt.Sprintf("search failed: %v", err)}, nil
			}
			if len(hits) == 0 {
				return WebSearchOutput{Error: "no results found"}, nil
			}
			return WebSearchOutput{Hits: hits}, nil
		})
}

// scopeQuery prefixes the site filter unless the keyword already carries one.
func scopeQuery(keyword, site string) string {
	if site == "" || strings.HasPrefix(keyword, "site:") {
		return keyword
	}
	return "site:" + site + " " + keyword
}

// searchDuckDuckGo queries the DuckDuckGo HTML endpoint and scrapes the
// result list. The HTML endpoint needs no API key and keeps a stable
// structure: each hit is a .result block with .result__a and .result__snippet.
func searchDuckDuckGo(ctx context.Context, client *http.Client, query string, maxResults int) ([]SearchHit, error) {
	if maxResults <= 0 {
		maxResults = 4
	}

	endpoint := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; campusqa/1.0)")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	return parseSearchResults(io.LimitReader(resp.Body, maxSearchBody), maxResults)
}

// parseSearchResults extracts hits from the DuckDuckGo HTML result page.
func parseSearchResults(r io.Reader, maxResults int) ([]SearchHit, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing search results: %w", err)
	}

	var hits []SearchHit
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find(".result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		hits = append(hits, SearchHit{
			Title:   strings.TrimSpace(link.Text()),
			URL:     resolveRedirect(href),
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		})
		return len(hits) < maxResults
	})
	return hits, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links to the real
// target URL. Unrecognized links pass through unchanged.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
