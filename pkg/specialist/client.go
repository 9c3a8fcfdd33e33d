package specialist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/assistkit/scout/pkg/config"
)

const (
	defaultSearchTimeout = 15 * time.Second
	defaultUserAgent     = "scout-research/1.0"
)

// apiClient is the HTTP layer shared by the backend tools.
type apiClient struct {
	hc        *http.Client
	userAgent string
}

func newAPIClient(cfg *config.ToolsConfig) *apiClient {
	c := &apiClient{
		hc:        &http.Client{Timeout: defaultSearchTimeout},
		userAgent: defaultUserAgent,
	}
	if cfg != nil {
		if cfg.UserAgent != "" {
			c.userAgent = cfg.UserAgent
		}
		if cfg.FetchTimeout.Std() > 0 {
			c.hc.Timeout = cfg.FetchTimeout.Std()
		}
	}
	return c
}

// getJSON performs a GET and decodes the JSON response.
func (c *apiClient) getJSON(ctx context.Context, rawURL string, headers map[string]string, out any) error {
	return c.doJSON(ctx, http.MethodGet, rawURL, headers, nil, out)
}

// postJSON performs a POST with a JSON body and decodes the JSON response.
func (c *apiClient) postJSON(ctx context.Context, rawURL string, headers map[string]string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, rawURL, headers, body, out)
}

func (c *apiClient) doJSON(ctx context.Context, method, rawURL string, headers map[string]string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// getRaw performs a GET and returns the raw body (for non-JSON backends).
func (c *apiClient) getRaw(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// rankRelevance assigns decaying relevance by position for backends that
// don't score their results.
func rankRelevance(i int) float64 {
	r := 0.9 - 0.05*float64(i)
	if r < 0.3 {
		r = 0.3
	}
	return r
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// stripTags removes HTML markup from API snippets.
func stripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}

// collapseSpace squeezes runs of whitespace (including newlines) into
// single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
