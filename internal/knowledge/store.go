package knowledge

import (
	"context"
	"fmt"
	"strings"
)

// Store persists knowledge documents and answers relevance-ranked queries.
// Two implementations exist: FileStore (JSON file, keyword scoring, optional
// in-memory vector index) and SQLiteStore (documents table, full-text or
// cosine ranking). The variant is selected from configuration at
// construction time.
type Store interface {
	// Add stores a chunk of content and returns its stable content-hash ID.
	// Adding identical content twice is a no-op that returns the same ID.
	Add(ctx context.Context, content, source string, metadata map[string]any) (string, error)

	// Search returns up to limit documents ranked by relevance, best first.
	// Nothing matching yields an empty slice, never an error.
	Search(ctx context.Context, query string, limit int) ([]Result, error)

	// ContextString formats the top matches into a prompt-ready block.
	// An empty string means "no relevant knowledge"; callers omit the block.
	ContextString(ctx context.Context, query string, limit int) (string, error)

	// Delete removes a document by ID (admin-only hard purge). It reports
	// whether the document existed.
	Delete(ctx context.Context, id string) (bool, error)

	// Purge empties the knowledge base.
	Purge(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// contextSnippetLen caps how much of each document lands in the prompt block.
const contextSnippetLen = 300

// formatContext renders search results the way agents consume them.
func formatContext(results []Result) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("RELEVANT KNOWLEDGE:\n")
	for i, r := range results {
		content := r.Content
		if len(content) > contextSnippetLen {
			content = content[:contextSnippetLen] + "..."
		}
		source := r.Source
		if source == "" {
			source = "unknown"
		}
		fmt.Fprintf(&b, "%d. Source: %s (Relevance: %.2f)\n", i+1, source, r.Relevance)
		fmt.Fprintf(&b, "   Content: %s\n\n", content)
	}
	return b.String()
}

// normalizeScore maps a non-negative raw lexical score onto (0, 1).
// The mapping is monotone, so ranking is unaffected.
func normalizeScore(raw float64) float64 {
	if raw <= 0 {
		return 0
	}
	return raw / (raw + 1)
}

// keywordScore implements the lexical ranking shared by both backends:
// the sum of term frequencies for every query token found in the content,
// plus a bonus when the whole query appears as a substring.
func keywordScore(content, query string) float64 {
	contentLower := strings.ToLower(content)
	queryLower := strings.ToLower(query)

	score := 0.0
	for _, word := range strings.Fields(queryLower) {
		score += float64(strings.Count(contentLower, word))
	}
	if strings.Contains(contentLower, queryLower) {
		score++
	}
	return score
}

// buildMatchQuery turns free text into an OR query of sanitized tokens for
// the full-text table. Returns "" when no usable token remains.
func buildMatchQuery(query string) string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		var b strings.Builder
		for _, r := range f {
			if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127 {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
		}
	}
	if len(tokens) == 0 {
		return ""
	}
	return strings.Join(tokens, " OR ")
}
