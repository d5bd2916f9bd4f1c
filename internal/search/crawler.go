package search

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"
	"golang.org/x/sync/errgroup"

	"github.com/crystaldolphin/researchflow/internal/schema"
)

const (
	crawlUserAgent     = "Mozilla/5.0 (compatible; researchflow/0.1; +https://github.com/crystaldolphin/researchflow)"
	maxRedirects       = 5
	maxPageBytes       = 2 << 20
	defaultMaxPages    = 30
	defaultParallelism = 4
)

// Page is one crawled document.
type Page struct {
	URL  string
	Text string
}

// JoinPages renders pages as one text finding, in crawl order.
func JoinPages(pages []Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		parts = append(parts, "## "+p.URL+"\n\n"+strings.TrimSpace(p.Text))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// CrawlerParams configures a Crawler.
type CrawlerParams struct {
	Client      *http.Client
	MaxPages    int // hard cap across all levels; defaults to 30
	Parallelism int // concurrent fetches per level; defaults to 4
}

// Crawler walks one site breadth-first and extracts readable text with
// go-readability. Links are followed only on the starting host.
type Crawler struct {
	client      *http.Client
	maxPages    int
	parallelism int
}

// NewCrawler creates a Crawler.
func NewCrawler(p CrawlerParams) *Crawler {
	client := p.Client
	if client == nil {
		client = &http.Client{
			Timeout: defaultHTTPTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		}
	}
	if p.MaxPages <= 0 {
		p.MaxPages = defaultMaxPages
	}
	if p.Parallelism <= 0 {
		p.Parallelism = defaultParallelism
	}
	return &Crawler{client: client, maxPages: p.MaxPages, parallelism: p.Parallelism}
}

// Crawl visits rawURL and, level by level up to opts.MaxDepth, at most
// opts.MaxBreadth new same-host links per page.
func (c *Crawler) Crawl(ctx context.Context, rawURL string, opts schema.CrawlOptions) (string, error) {
	const op = "crawl"
	start, err := url.Parse(rawURL)
	if err != nil {
		return "", schema.NewError(schema.KindSearchUnavailable, op, err)
	}
	start.Fragment = ""

	root, links, err := c.fetch(ctx, start)
	if err != nil {
		return "", schema.SearchError(op, err)
	}

	pages := []Page{root}
	visited := map[string]bool{start.String(): true}
	frontier := c.pick(links, start.Host, visited, opts.MaxBreadth)

	for depth := 1; depth <= opts.MaxDepth && len(frontier) > 0 && len(pages) < c.maxPages; depth++ {
		if room := c.maxPages - len(pages); len(frontier) > room {
			frontier = frontier[:room]
		}

		level := make([]Page, len(frontier))
		levelLinks := make([][]*url.URL, len(frontier))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.parallelism)
		for i, u := range frontier {
			g.Go(func() error {
				page, found, err := c.fetch(gctx, u)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					slog.Debug("Crawl fetch failed", "url", u.String(), "err", err)
					return nil
				}
				level[i] = page
				levelLinks[i] = found
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return "", schema.SearchError(op, err)
		}

		var next []*url.URL
		for i := range frontier {
			if level[i].URL == "" {
				continue
			}
			pages = append(pages, level[i])
			next = append(next, c.pick(levelLinks[i], start.Host, visited, opts.MaxBreadth)...)
		}
		frontier = next
	}

	return JoinPages(pages), nil
}

// pick returns up to breadth unvisited same-host links and marks them visited.
func (c *Crawler) pick(links []*url.URL, host string, visited map[string]bool, breadth int) []*url.URL {
	var out []*url.URL
	for _, l := range links {
		if breadth > 0 && len(out) >= breadth {
			break
		}
		if l.Host != host {
			continue
		}
		key := l.String()
		if visited[key] {
			continue
		}
		visited[key] = true
		out = append(out, l)
	}
	return out
}

// fetch downloads u and returns its readable text and outgoing links.
func (c *Crawler) fetch(ctx context.Context, u *url.URL) (Page, []*url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, nil, err
	}
	req.Header.Set("User-Agent", crawlUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return Page{}, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Page{}, nil, fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Page{}, nil, err
	}

	ctype := resp.Header.Get("Content-Type")
	if !strings.Contains(ctype, "text/html") && !isHTMLPrefix(body) {
		return Page{URL: u.String(), Text: string(body)}, nil, nil
	}

	var text string
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err == nil {
		text = htmlToMarkdown(article.Content)
		if article.Title != "" {
			text = "# " + article.Title + "\n\n" + text
		}
	} else {
		text = stripHTMLTags(string(body))
	}

	return Page{URL: u.String(), Text: text}, extractLinks(u, body), nil
}

var reHref = regexp.MustCompile(`(?i)<a\s+[^>]*href=["']([^"'#]+)["']`)

// extractLinks resolves every anchor in body against base, in document order.
func extractLinks(base *url.URL, body []byte) []*url.URL {
	var links []*url.URL
	seen := map[string]bool{}
	for _, m := range reHref.FindAllSubmatch(body, -1) {
		ref, err := url.Parse(strings.TrimSpace(string(m[1])))
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			continue
		}
		abs.Fragment = ""
		if seen[abs.String()] {
			continue
		}
		seen[abs.String()] = true
		links = append(links, abs)
	}
	return links
}

// isHTMLPrefix returns true if the body starts with an HTML declaration.
func isHTMLPrefix(b []byte) bool {
	prefix := strings.ToLower(strings.TrimSpace(string(b[:min(256, len(b))])))
	return strings.HasPrefix(prefix, "<!doctype") || strings.HasPrefix(prefix, "<html")
}

// ---------------------------------------------------------------------------
// HTML → text/markdown helpers
// ---------------------------------------------------------------------------

var (
	reScript    = regexp.MustCompile(`(?is)<script[\s\S]*?</script>`)
	reStyle     = regexp.MustCompile(`(?is)<style[\s\S]*?</style>`)
	reTags      = regexp.MustCompile(`<[^>]+>`)
	reSpaces    = regexp.MustCompile(`[ \t]+`)
	reNewlines  = regexp.MustCompile(`\n{3,}`)
	reLinks     = regexp.MustCompile(`(?is)<a\s+[^>]*href=["']([^"']+)["'][^>]*>([\s\S]*?)</a>`)
	reHeadings  = regexp.MustCompile(`(?is)<h([1-6])[^>]*>([\s\S]*?)</h[1-6]>`)
	reListItems = regexp.MustCompile(`(?is)<li[^>]*>([\s\S]*?)</li>`)
	reBlockEnd  = regexp.MustCompile(`(?is)</(p|div|section|article)>`)
	reLineBreak = regexp.MustCompile(`(?is)<(br|hr)\s*/?>`)
)

// stripHTMLTags removes all HTML tags and normalizes whitespace.
func stripHTMLTags(text string) string {
	text = reScript.ReplaceAllString(text, "")
	text = reStyle.ReplaceAllString(text, "")
	text = reTags.ReplaceAllString(text, "")
	text = reSpaces.ReplaceAllString(text, " ")
	text = reNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// htmlToMarkdown converts HTML to a simple markdown representation.
func htmlToMarkdown(htmlText string) string {
	text := reLinks.ReplaceAllStringFunc(htmlText, func(m string) string {
		parts := reLinks.FindStringSubmatch(m)
		if len(parts) < 3 {
			return m
		}
		return fmt.Sprintf("[%s](%s)", stripHTMLTags(parts[2]), parts[1])
	})
	text = reHeadings.ReplaceAllStringFunc(text, func(m string) string {
		parts := reHeadings.FindStringSubmatch(m)
		if len(parts) < 3 {
			return m
		}
		level := int(parts[1][0] - '0')
		return fmt.Sprintf("\n%s %s\n", strings.Repeat("#", level), stripHTMLTags(parts[2]))
	})
	text = reListItems.ReplaceAllStringFunc(text, func(m string) string {
		parts := reListItems.FindStringSubmatch(m)
		if len(parts) < 2 {
			return m
		}
		return "\n- " + stripHTMLTags(parts[1])
	})
	text = reBlockEnd.ReplaceAllString(text, "\n\n")
	text = reLineBreak.ReplaceAllString(text, "\n")
	return normalizeWhitespace(stripHTMLTags(text))
}

func normalizeWhitespace(text string) string {
	text = reSpaces.ReplaceAllString(text, " ")
	text = reNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
