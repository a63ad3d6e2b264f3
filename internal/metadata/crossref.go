package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"docrag/internal/model"
)

var errRetryable = errors.New("retryable crossref response")

type CrossrefOptions struct {
	BaseURL       string
	Mailto        string
	RatePerSecond float64
	Timeout       time.Duration
	MaxRetries    int
	// Backoff is the first retry delay; it doubles on every retry.
	Backoff time.Duration
}

// CrossrefClient looks DOIs up in the Crossref works API.
type CrossrefClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

func NewCrossrefClient(opts CrossrefOptions) *CrossrefClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	ua := "docrag/1.0"
	if opts.Mailto != "" {
		ua += " (mailto:" + opts.Mailto + ")"
	}
	return &CrossrefClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  ua,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
	}
}

// LookupMetadata returns nil, nil when Crossref does not know the DOI.
func (c *CrossrefClient) LookupMetadata(ctx context.Context, doi string) (*model.PaperMetadata, error) {
	doi = CleanDOI(doi)
	if doi == "" {
		return nil, nil
	}
	endpoint, err := url.JoinPath(c.baseURL, "works", doi)
	if err != nil {
		return nil, fmt.Errorf("build crossref url failed: %w", err)
	}

	delay := c.backoff
	for attempt := 0; ; attempt++ {
		meta, err := c.fetch(ctx, endpoint)
		if err == nil || !errors.Is(err, errRetryable) || attempt >= c.maxRetries {
			return meta, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (c *CrossrefClient) fetch(ctx context.Context, endpoint string) (*model.PaperMetadata, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("crossref rate limit wait failed: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build crossref request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: crossref request failed: %v", errRetryable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read crossref response failed: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", errRetryable, resp.StatusCode)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("crossref response status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed crossrefResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse crossref json failed: %w", err)
	}
	return parsed.Message.toMetadata(), nil
}

type crossrefResponse struct {
	Message crossrefWork `json:"message"`
}

type crossrefWork struct {
	DOI            string   `json:"DOI"`
	Title          []string `json:"title"`
	ContainerTitle []string `json:"container-title"`
	Author         []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
		Name   string `json:"name"`
	} `json:"author"`
	PublishedPrint  crossrefDate `json:"published-print"`
	PublishedOnline crossrefDate `json:"published-online"`
	Issued          crossrefDate `json:"issued"`
}

type crossrefDate struct {
	DateParts [][]int `json:"date-parts"`
}

func (d crossrefDate) time() *time.Time {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 || d.DateParts[0][0] == 0 {
		return nil
	}
	parts := d.DateParts[0]
	month, day := 1, 1
	if len(parts) > 1 && parts[1] > 0 {
		month = parts[1]
	}
	if len(parts) > 2 && parts[2] > 0 {
		day = parts[2]
	}
	t := time.Date(parts[0], time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}

func (w crossrefWork) toMetadata() *model.PaperMetadata {
	meta := &model.PaperMetadata{DOI: CleanDOI(w.DOI)}
	if len(w.Title) > 0 {
		meta.Title = CleanTitle(w.Title[0])
	}
	if len(w.ContainerTitle) > 0 {
		meta.Journal = strings.TrimSpace(w.ContainerTitle[0])
	}
	for _, a := range w.Author {
		name := strings.TrimSpace(strings.TrimSpace(a.Given) + " " + strings.TrimSpace(a.Family))
		if name == "" {
			name = strings.TrimSpace(a.Name)
		}
		if name != "" {
			meta.Authors = append(meta.Authors, name)
		}
	}
	for _, d := range []crossrefDate{w.PublishedPrint, w.PublishedOnline, w.Issued} {
		if t := d.time(); t != nil {
			meta.PublishedAt = t
			break
		}
	}
	return meta
}

var markupTag = strings.NewReplacer("<scp>", "", "</scp>", "", "<i>", "", "</i>", "", "<b>", "", "</b>", "", "<sub>", "", "</sub>", "", "<sup>", "", "</sup>", "")

// CleanTitle drops the inline markup Crossref keeps in titles.
func CleanTitle(title string) string {
	return strings.Join(strings.Fields(markupTag.Replace(title)), " ")
}
