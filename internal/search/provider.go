package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Result is one raw hit from the underlying search engine.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Provider abstracts the web search engine behind the enricher.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// DuckDuckGo queries the HTML (non-JS) results endpoint and parses the
// markup. No API key required.
type DuckDuckGo struct {
	baseURL    string
	region     string
	httpClient *http.Client
}

// NewDuckDuckGo creates a provider for the Italian results region.
func NewDuckDuckGo() *DuckDuckGo {
	return &DuckDuckGo{
		baseURL: "https://html.duckduckgo.com/html/",
		region:  "it-it",
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// NewDuckDuckGoWithBaseURL points the provider at a custom endpoint (tests).
func NewDuckDuckGoWithBaseURL(baseURL string) *DuckDuckGo {
	d := NewDuckDuckGo()
	d.baseURL = baseURL
	return d
}

func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = 8
	}

	params := url.Values{
		"q":  {query},
		"kl": {d.region},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; bussola/1.0)")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: unexpected status %d", resp.StatusCode)
	}

	results, err := parseResults(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing search results: %w", err)
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// parseResults walks the result page markup. Each hit is an anchor with
// class result__a (title + link) followed by a result__snippet node.
func parseResults(r io.Reader) ([]Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var results []Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			switch {
			case hasClass(n, "result__a"):
				results = append(results, Result{
					Title: strings.TrimSpace(textContent(n)),
					URL:   cleanResultURL(attr(n, "href")),
				})
			case hasClass(n, "result__snippet"):
				if len(results) > 0 && results[len(results)-1].Snippet == "" {
					results[len(results)-1].Snippet = strings.TrimSpace(textContent(n))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func hasClass(n *html.Node, class string) bool {
	for _, field := range strings.Fields(attr(n, "class")) {
		if field == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// cleanResultURL unwraps DuckDuckGo's redirect links (/l/?uddg=<target>).
func cleanResultURL(raw string) string {
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return raw
}
