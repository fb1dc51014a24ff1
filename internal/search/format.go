package search

import (
	"fmt"
	"strings"
)

const maxScrapeChars = 20000

// FormatResults renders a raw search result into a readable context block for
// the model: knowledge graph first, then numbered organic results in
// provider order.
func FormatResults(r *Result) string {
	var parts []string

	if kg := r.KnowledgeGraph; kg != nil {
		parts = append(parts, fmt.Sprintf("Knowledge Graph:\n%s - %s\n", kg.Title, kg.Description))
	}

	for i, res := range r.Organic {
		parts = append(parts, fmt.Sprintf("[%d] %s\nURL: %s\nSummary: %s\n", i+1, res.Title, res.Link, res.Snippet))
	}

	return strings.Join(parts, "\n")
}

// FormatScrape renders a scrape result into a bounded plain-text block.
func FormatScrape(r *ScrapeResult) string {
	text := r.Text
	if r.Markdown != "" {
		text = r.Markdown
	}
	if len(text) > maxScrapeChars {
		text = text[:maxScrapeChars]
	}
	return strings.TrimSpace(text)
}
