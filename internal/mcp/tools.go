package mcp

import (
	"context"
	"encoding/json"

	"github.com/mohammad-safakhou/deepresearch/internal/fetch"
	"github.com/mohammad-safakhou/deepresearch/internal/search"
)

const searchToolSchema = `{
  "type": "object",
  "properties": {
    "q": {"type": "string", "description": "Search query string"},
    "gl": {"type": "string", "description": "Optional region code for search results in ISO 3166-1 alpha-2 format (e.g., 'us')"},
    "hl": {"type": "string", "description": "Optional language code for search results in ISO 639-1 format (e.g., 'en')"},
    "location": {"type": "string", "description": "Optional location for search results (e.g., 'SoHo, New York, United States')"},
    "num": {"type": "number", "description": "Number of results to return (default: 10)"},
    "page": {"type": "number", "description": "Page number of results to return (default: 1)"},
    "tbs": {"type": "string", "description": "Time-based search filter ('qdr:h' for past hour, 'qdr:d' for past day, 'qdr:w' for past week, 'qdr:m' for past month, 'qdr:y' for past year)"},
    "autocorrect": {"type": "boolean", "description": "Whether to autocorrect spelling in query"}
  },
  "required": ["q", "gl", "hl"]
}`

const scrapeToolSchema = `{
  "type": "object",
  "properties": {
    "url": {"type": "string", "description": "The URL of the webpage to scrape."},
    "includeMarkdown": {"type": "boolean", "description": "Whether to include markdown content.", "default": false}
  },
  "required": ["url"]
}`

const fetchToolSchema = `{
  "type": "object",
  "properties": {
    "url": {"type": "string", "description": "The URL of the webpage to render and extract readable text from."}
  },
  "required": ["url"]
}`

// RegisterSearchTools wires the Serper-backed tools into the registry.
func RegisterSearchTools(r *Registry, client *search.Client) {
	r.Register(Tool{
		Name:        "google_search",
		Description: "Tool to perform web searches via Serper API and retrieve rich results. It is able to retrieve organic search results, people also ask, related searches, and knowledge graph.",
		InputSchema: json.RawMessage(searchToolSchema),
	}, func(ctx context.Context, args map[string]any) (ToolResult, error) {
		opts := search.Options{
			GL: str(args["gl"]),
			HL: str(args["hl"]),
		}
		if n, ok := args["num"].(float64); ok {
			opts.Num = int(n)
		}
		if p, ok := args["page"].(float64); ok {
			opts.Page = int(p)
		}
		opts.Location = str(args["location"])
		opts.TBS = str(args["tbs"])
		if ac, ok := args["autocorrect"].(bool); ok {
			opts.Autocorrect = &ac
		}
		result, err := client.Search(ctx, str(args["q"]), opts)
		if err != nil {
			return ToolResult{}, err
		}
		return jsonResult(result)
	})

	r.Register(Tool{
		Name:        "scrape",
		Description: "Tool to scrape a webpage and retrieve the text and, optionally, the markdown content. It will retrieve also the JSON-LD metadata and the head metadata.",
		InputSchema: json.RawMessage(scrapeToolSchema),
	}, func(ctx context.Context, args map[string]any) (ToolResult, error) {
		opts := search.ScrapeOptions{}
		if im, ok := args["includeMarkdown"].(bool); ok {
			opts.IncludeMarkdown = im
		}
		result, err := client.Scrape(ctx, str(args["url"]), opts)
		if err != nil {
			return ToolResult{}, err
		}
		return jsonResult(result)
	})
}

// RegisterFetchTool wires the headless-browser fetcher into the registry.
func RegisterFetchTool(r *Registry, fetcher *fetch.Fetcher) {
	r.Register(Tool{
		Name:        "web_fetch",
		Description: "Tool to render a webpage in a headless browser and extract the readable article text. Use for pages that require JavaScript.",
		InputSchema: json.RawMessage(fetchToolSchema),
	}, func(ctx context.Context, args map[string]any) (ToolResult, error) {
		result, err := fetcher.Fetch(ctx, str(args["url"]))
		if err != nil {
			return ToolResult{}, err
		}
		return jsonResult(result)
	})
}

func jsonResult(v any) (ToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ToolResult{}, err
	}
	return TextResult(string(b)), nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
