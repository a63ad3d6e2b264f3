package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const maxFetchSize = 5 << 20

var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"nav":      true,
	"header":   true,
	"footer":   true,
	"iframe":   true,
	"svg":      true,
	"form":     true,
}

// Page is the readable part of an HTML document.
type Page struct {
	Title string
	Text  string
}

type PageFetcher struct {
	client    *http.Client
	userAgent string
}

func NewPageFetcher(timeout time.Duration) *PageFetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &PageFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: "docrag/1.0 (+crawler)",
	}
}

// Fetch downloads rawURL and parses its readable text.
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request failed: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s failed: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s failed: %d %s", rawURL, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("fetch %s: unsupported content type %q", rawURL, ct)
	}
	return ParseHTML(io.LimitReader(resp.Body, maxFetchSize))
}

// ParseHTML keeps the title and the visible text, skipping scripts,
// styles and page chrome.
func ParseHTML(r io.Reader) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html failed: %w", err)
	}

	page := &Page{}
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skippedElements[n.Data] {
				return
			}
			if n.Data == "title" {
				if page.Title == "" && n.FirstChild != nil {
					page.Title = strings.Join(strings.Fields(n.FirstChild.Data), " ")
				}
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	page.Text = strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	if page.Text == "" {
		return nil, errors.New("page has no readable text")
	}
	return page, nil
}
