package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const maxWebResponse int64 = 2 * 1024 * 1024

// webClient is shared by the web tools; all outbound dials go through the
// private-range filter.
var webClient = &http.Client{
	Transport: newSafeTransport(),
	Timeout:   30 * time.Second,
}

// WebFetchTool retrieves a URL and returns its body as text.
type WebFetchTool struct{}

func (t *WebFetchTool) Definition() (string, string, map[string]interface{}) {
	return "web_fetch", "Fetch a URL and return its content as text",
		schema(map[string]string{"url": "Absolute http(s) URL to fetch"}, "url")
}

func (t *WebFetchTool) Execute(ctx context.Context, input map[string]interface{}) (string, error) {
	raw, err := stringArg(input, "url")
	if err != nil {
		return "", err
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("web_fetch: invalid URL %q", raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("web_fetch: %w", err)
	}
	req.Header.Set("User-Agent", "monco-bot/1.0")

	resp, err := webClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("web_fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWebResponse))
	if err != nil {
		return "", fmt.Errorf("web_fetch: read body: %w", err)
	}

	text := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		text = stripHTML(text)
	}
	return fmt.Sprintf("HTTP %d\n%s", resp.StatusCode, text), nil
}

// WebSearchTool queries the DuckDuckGo HTML endpoint and returns result
// titles and links. Best-effort scraping: layout changes degrade to fewer
// results, never to an error.
type WebSearchTool struct{}

func (t *WebSearchTool) Definition() (string, string, map[string]interface{}) {
	return "web_search", "Search the web and return result titles and URLs",
		schema(map[string]string{"query": "Search query"}, "query")
}

var resultLinkRe = regexp.MustCompile(`<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)

func (t *WebSearchTool) Execute(ctx context.Context, input map[string]interface{}) (string, error) {
	query, err := stringArg(input, "query")
	if err != nil {
		return "", err
	}

	endpoint := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("web_search: %w", err)
	}
	req.Header.Set("User-Agent", "monco-bot/1.0")

	resp, err := webClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("web_search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWebResponse))
	if err != nil {
		return "", fmt.Errorf("web_search: read body: %w", err)
	}

	var sb strings.Builder
	for i, m := range resultLinkRe.FindAllStringSubmatch(string(body), 8) {
		link := htmlUnescape(m[1])
		// DuckDuckGo wraps result links in a redirect with uddg=<target>.
		if u, err := url.Parse(link); err == nil {
			if target := u.Query().Get("uddg"); target != "" {
				link = target
			}
		}
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, strings.TrimSpace(stripHTML(m[2])), link)
	}

	if sb.Len() == 0 {
		return "no results", nil
	}
	return sb.String(), nil
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

// stripHTML is a crude tag remover; good enough to keep model context small.
func stripHTML(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = htmlUnescape(s)
	return strings.Join(strings.Fields(s), " ")
}

func htmlUnescape(s string) string {
	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	return r.Replace(s)
}
