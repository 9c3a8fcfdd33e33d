// Package scrape fetches result URLs and extracts readable content from
// them. HTML goes through readability extraction and markdown conversion,
// PDFs through plain-text extraction; everything else is kept as-is.
// Fetches are cache-first: a fresh URL cache entry bypasses the network.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	readability "github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"github.com/assistkit/scout/pkg/config"
	"github.com/assistkit/scout/pkg/models"
)

const (
	defaultUserAgent     = "scout-research/1.0"
	defaultMaxFetchBytes = 1 << 20 // per page, before extraction
	defaultFetchTimeout  = 15 * time.Second
)

// Cache is the URL cache surface the fetcher needs. Implemented by store.Store.
type Cache interface {
	GetCachedURL(ctx context.Context, url string) (*models.ScrapedPage, error)
	CacheURL(ctx context.Context, url, title, content string) error
}

// Fetcher retrieves page content for specialist results.
type Fetcher struct {
	cache      Cache
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	blocked    []string
}

// NewFetcher builds a Fetcher over the given cache. A nil config uses the
// defaults; the per-URL deadline comes from the caller's context, the
// client timeout is only the outer safety net.
func NewFetcher(cache Cache, cfg *config.ToolsConfig) *Fetcher {
	f := &Fetcher{
		cache:     cache,
		userAgent: defaultUserAgent,
		maxBytes:  defaultMaxFetchBytes,
	}
	clientTimeout := defaultFetchTimeout
	if cfg != nil {
		if cfg.UserAgent != "" {
			f.userAgent = cfg.UserAgent
		}
		if cfg.MaxFetchBytes > 0 {
			f.maxBytes = cfg.MaxFetchBytes
		}
		if cfg.FetchTimeout.Std() > 0 {
			clientTimeout = cfg.FetchTimeout.Std()
		}
		for _, d := range cfg.BlockedDomains {
			d = strings.ToLower(strings.TrimSpace(d))
			if d != "" {
				f.blocked = append(f.blocked, d)
			}
		}
	}
	f.httpClient = &http.Client{Timeout: clientTimeout}
	return f
}

// Fetch returns extracted content for a URL, from cache when possible.
// A cache miss fetches, extracts, and caches the page. Errors mean the
// page is unusable; callers treat them as a skipped result.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*models.ScrapedPage, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", pageURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if f.isBlocked(parsed.Hostname()) {
		return nil, fmt.Errorf("domain %s is blocked", parsed.Hostname())
	}

	if f.cache != nil {
		cached, err := f.cache.GetCachedURL(ctx, pageURL)
		if err != nil {
			slog.Warn("URL cache lookup failed", "url", pageURL, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	body, contentType, err := f.download(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	title, content, err := f.extract(body, contentType, parsed)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.CacheURL(ctx, pageURL, title, content); err != nil {
			slog.Warn("Failed to cache scraped page", "url", pageURL, "error", err)
		}
	}

	return &models.ScrapedPage{URL: pageURL, Title: title, Content: content}, nil
}

// download performs the HTTP GET and returns at most maxBytes of the body
// plus the response content type.
func (f *Fetcher) download(ctx context.Context, pageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", pageURL, err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// extract routes the body through the extractor matching its content type.
func (f *Fetcher) extract(body []byte, contentType string, pageURL *url.URL) (title, content string, err error) {
	switch {
	case strings.Contains(contentType, "application/pdf") ||
		strings.HasSuffix(strings.ToLower(pageURL.Path), ".pdf"):
		content, err = extractPDF(body)
		return "", content, err

	case strings.Contains(contentType, "html") || looksLikeHTML(body):
		return extractHTML(body, pageURL)

	default:
		// Plain text, JSON, source files: keep verbatim.
		return "", string(body), nil
	}
}

// extractHTML pulls the readable article out of an HTML page and converts
// it to markdown. When readability finds nothing, the whole document is
// converted instead, with the <title> tag as the title.
func extractHTML(body []byte, pageURL *url.URL) (title, content string, err error) {
	article, rerr := readability.FromReader(bytes.NewReader(body), pageURL)
	if rerr == nil && strings.TrimSpace(article.Content) != "" {
		title = article.Title
		markdown, merr := htmltomarkdown.ConvertString(article.Content)
		if merr != nil {
			content = article.TextContent
		} else {
			content = markdown
		}
	} else {
		title = htmlTitle(body)
		markdown, merr := htmltomarkdown.ConvertString(string(body))
		if merr != nil {
			return "", "", fmt.Errorf("extract html: %w", merr)
		}
		content = markdown
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", "", fmt.Errorf("no readable content")
	}
	return title, content, nil
}

// extractPDF returns the plain text of a PDF body. The pdf library panics
// on some malformed files, so the recover converts that into an error.
func extractPDF(body []byte) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extract pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("extract pdf: %w", err)
	}
	text, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf: %w", err)
	}
	raw, err := io.ReadAll(text)
	if err != nil {
		return "", fmt.Errorf("extract pdf: %w", err)
	}
	content = strings.TrimSpace(string(raw))
	if content == "" {
		return "", fmt.Errorf("pdf has no extractable text")
	}
	return content, nil
}

// htmlTitle scans for the document's <title> text.
func htmlTitle(body []byte) string {
	tok := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := tok.TagName()
			if string(name) == "title" {
				if tok.Next() == html.TextToken {
					return strings.TrimSpace(string(tok.Text()))
				}
				return ""
			}
		}
	}
}

// looksLikeHTML sniffs bodies served without a useful content type.
func looksLikeHTML(body []byte) bool {
	head := strings.ToLower(string(body[:min(len(body), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}

func (f *Fetcher) isBlocked(host string) bool {
	host = strings.ToLower(host)
	for _, b := range f.blocked {
		if host == b || strings.HasSuffix(host, "."+b) {
			return true
		}
	}
	return false
}
