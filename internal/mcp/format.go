package mcp

import (
	"fmt"
	"strings"

	"github.com/cqlabs/cqs/internal/search"
)

// FormatSearchResults renders hybrid search hits as markdown: a heading, a
// result count, and one section per hit with its location, score,
// signature, first doc line, source, and match scores.
func FormatSearchResults(query string, results []search.Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for %q\n\n", query)
	fmt.Fprintf(&sb, "Found %d result%s\n\n", len(results), plural(len(results)))

	for i, r := range results {
		formatResult(&sb, i+1, r)
	}
	return sb.String()
}

func formatResult(sb *strings.Builder, num int, r search.Result) {
	c := r.Chunk
	if c == nil {
		return
	}

	fmt.Fprintf(sb, "### %d. %s:%d-%d (score: %.3f)\n\n", num, c.FilePath, c.StartLine, c.EndLine, r.Score)

	if c.Signature != "" {
		fmt.Fprintf(sb, "**%s `%s`**\n\n", c.Kind, c.Signature)
	}
	if c.DocString != "" {
		fmt.Fprintf(sb, "%s\n\n", firstLine(c.DocString, 160))
	}

	lang := c.Language
	if lang == "" {
		lang = "text"
	}
	fmt.Fprintf(sb, "```%s\n%s\n```\n\n", lang, c.Source)

	fmt.Fprintf(sb, "_match: %s (vec %.3f, name %.3f)_\n\n", r.Source, r.VecScore, r.NameScore)
}

func firstLine(s string, maxLen int) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > maxLen {
		s = s[:maxLen-3] + "..."
	}
	return s
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// clampLimit bounds limit to [min, max], substituting defaultVal when limit
// isn't positive.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		limit = defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}
