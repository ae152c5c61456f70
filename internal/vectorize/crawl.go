package vectorize

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocolly/colly/v2"
)

// Crawler fetches pages from the campus site and stores them as markdown
// files that a later pipeline run can index.
type Crawler struct {
	maxDepth int
	maxPages int
	outDir   string
	logger   *slog.Logger
}

// NewCrawler creates a Crawler writing markdown into outDir.
func NewCrawler(outDir string, maxDepth, maxPages int, logger *slog.Logger) *Crawler {
	if maxDepth <= 0 {
		maxDepth = 2
	}
	if maxPages <= 0 {
		maxPages = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		maxDepth: maxDepth,
		maxPages: maxPages,
		outDir:   outDir,
		logger:   logger.With("component", "crawl"),
	}
}

// Crawl walks the site starting at startURL, staying on its host, and
// writes one markdown file per page with the title as H1 and section
// headings preserved. Returns the number of pages written.
func (c *Crawler) Crawl(startURL string) (int, error) {
	start, err := url.Parse(startURL)
	if err != nil {
		return 0, fmt.Errorf("parsing start url: %w", err)
	}
	if err := os.MkdirAll(c.outDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating output dir: %w", err)
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(start.Host),
		colly.MaxDepth(c.maxDepth),
	)

	pages := 0
	collector.OnHTML("html", func(e *colly.HTMLElement) {
		if pages >= c.maxPages {
			return
		}
		md := pageToMarkdown(e)
		if md == "" {
			return
		}
		name := fileNameFor(e.Request.URL)
		if err := os.WriteFile(filepath.Join(c.outDir, name), []byte(md), 0o644); err != nil {
			c.logger.Warn("writing page", "url", e.Request.URL, "error", err)
			return
		}
		pages++
		c.logger.Info("crawled page", "url", e.Request.URL.String(), "file", name)
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if pages >= c.maxPages {
			return
		}
		_ = e.Request.Visit(e.Attr("href"))
	})

	collector.OnError(func(r *colly.Response, err error) {
		c.logger.Warn("crawl request failed", "url", r.Request.URL.String(), "error", err)
	})

	if err := collector.Visit(start.String()); err != nil {
		return 0, fmt.Errorf("starting crawl: %w", err)
	}
	collector.Wait()

	if pages == 0 {
		return 0, ErrNoDocuments
	}
	return pages, nil
}

// pageToMarkdown reduces a page to title, section headings and paragraph
// text. Pages without a usable title or body are dropped.
func pageToMarkdown(e *colly.HTMLElement) string {
	title := strings.TrimSpace(e.ChildText("title"))
	if title == "" {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)

	body := 0
	e.ForEach("h2, h3, p, span", func(_ int, el *colly.HTMLElement) {
		text := strings.TrimSpace(el.Text)
		if text == "" {
			return
		}
		switch el.Name {
		case "h2":
			fmt.Fprintf(&b, "## %s\n\n", text)
		case "h3":
			fmt.Fprintf(&b, "### %s\n\n", text)
		default:
			fmt.Fprintf(&b, "%s\n\n", text)
			body += len(text)
		}
	})
	if body == 0 {
		return ""
	}
	return b.String()
}

// fileNameFor derives a stable markdown file name from a page URL.
func fileNameFor(u *url.URL) string {
	name := strings.Trim(u.Path, "/")
	if name == "" {
		name = "index"
	}
	name = strings.NewReplacer("/", "_", ".", "_").Replace(name)
	return name + ".md"
}
