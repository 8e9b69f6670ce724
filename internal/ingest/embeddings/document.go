package embeddings

import (
	"strings"
)

const fallbackSnippetChars = 200

// BuildEmbeddingText produces the deterministic embedding input for a hunk.
// Re-ingesting the same hunk/summary pair must yield a byte-identical
// string, so the format is fixed: path, hunk header, a WHY line when a
// summary exists (otherwise the first 200 characters of the after-snippet),
// and the first line of the commit message.
func BuildEmbeddingText(path, header, whySummary, afterSnippet, commitMessage string) string {
	var builder strings.Builder
	builder.WriteString(path)
	builder.WriteString("\n")
	builder.WriteString(header)
	builder.WriteString("\n")
	if whySummary != "" {
		builder.WriteString("WHY: ")
		builder.WriteString(whySummary)
	} else {
		builder.WriteString("hunk: ")
		builder.WriteString(truncate(strings.TrimSpace(afterSnippet), fallbackSnippetChars))
	}
	builder.WriteString("\nMSG: ")
	builder.WriteString(firstLine(commitMessage))
	return builder.String()
}

func truncate(s string, limit int) string {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
