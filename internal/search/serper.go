package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ProviderError is a non-2xx response from the search provider. It carries
// the provider's status code and body and is never treated as empty results.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("search: provider returned status %d: %s", e.Status, e.Body)
}

// Options are the optional Serper /search parameters.
type Options struct {
	GL          string `json:"gl,omitempty"`
	HL          string `json:"hl,omitempty"`
	Num         int    `json:"num,omitempty"`
	Location    string `json:"location,omitempty"`
	TBS         string `json:"tbs,omitempty"`
	Page        int    `json:"page,omitempty"`
	Autocorrect *bool  `json:"autocorrect,omitempty"`
}

// ScrapeOptions are the optional Serper /scrape parameters.
type ScrapeOptions struct {
	IncludeHTML     bool   `json:"includeHtml,omitempty"`
	IncludeMarkdown bool   `json:"includeMarkdown,omitempty"`
	Selector        string `json:"selector,omitempty"`
}

// Result is the raw /search response.
type Result struct {
	KnowledgeGraph *KnowledgeGraph `json:"knowledgeGraph,omitempty"`
	Organic        []Organic       `json:"organic"`
}

type KnowledgeGraph struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type Organic struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// ScrapeResult is the raw /scrape response.
type ScrapeResult struct {
	Text     string         `json:"text"`
	Markdown string         `json:"markdown,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Client calls the Serper API. https://serper.dev/ docs
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://google.serper.dev"
	}
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Search performs one web search.
func (c *Client) Search(ctx context.Context, query string, opts Options) (*Result, error) {
	payload := map[string]any{"q": query}
	if opts.GL != "" {
		payload["gl"] = opts.GL
	}
	if opts.HL != "" {
		payload["hl"] = opts.HL
	}
	if opts.Num > 0 {
		payload["num"] = opts.Num
	}
	if opts.Location != "" {
		payload["location"] = opts.Location
	}
	if opts.TBS != "" {
		payload["tbs"] = opts.TBS
	}
	if opts.Page > 0 {
		payload["page"] = opts.Page
	}
	if opts.Autocorrect != nil {
		payload["autocorrect"] = *opts.Autocorrect
	}

	var out Result
	if err := c.post(ctx, "/search", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Scrape retrieves the text content of a webpage.
func (c *Client) Scrape(ctx context.Context, url string, opts ScrapeOptions) (*ScrapeResult, error) {
	payload := map[string]any{"url": url}
	if opts.IncludeHTML {
		payload["includeHtml"] = true
	}
	if opts.IncludeMarkdown {
		payload["includeMarkdown"] = true
	}
	if opts.Selector != "" {
		payload["selector"] = opts.Selector
	}

	var out ScrapeResult
	if err := c.post(ctx, "/scrape", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("search: failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("search: failed to create request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("search: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ProviderError{Status: resp.StatusCode, Body: string(b)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("search: failed to parse response: %w", err)
	}
	return nil
}
