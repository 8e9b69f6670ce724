package embeddings

import (
	"strings"
	"testing"
)

func TestBuildEmbeddingTextWithSummary(t *testing.T) {
	text := BuildEmbeddingText(
		"internal/db/queue.go",
		"@@ -10,4 +10,5 @@",
		"Adds retry backoff to dequeue.",
		"ignored snippet",
		"fix queue retries\n\nlong body here",
	)
	want := "internal/db/queue.go\n@@ -10,4 +10,5 @@\nWHY: Adds retry backoff to dequeue.\nMSG: fix queue retries"
	if text != want {
		t.Fatalf("got %q, want %q", text, want)
	}
}

func TestBuildEmbeddingTextFallbackSnippet(t *testing.T) {
	snippet := "  " + strings.Repeat("a", 300) + "  "
	text := BuildEmbeddingText("p.go", "@@ -1 +1 @@", "", snippet, "msg")

	lines := strings.Split(text, "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), text)
	}
	if !strings.HasPrefix(lines[2], "hunk: ") {
		t.Fatalf("fallback line must use hunk prefix: %q", lines[2])
	}
	content := strings.TrimPrefix(lines[2], "hunk: ")
	if len(content) != 200 {
		t.Fatalf("fallback snippet must trim then cap at 200 chars, got %d", len(content))
	}
	if lines[3] != "MSG: msg" {
		t.Fatalf("unexpected message line %q", lines[3])
	}
}

func TestBuildEmbeddingTextDeterministic(t *testing.T) {
	first := BuildEmbeddingText("p.go", "@@ -1 +1 @@", "why", "snippet", "msg")
	second := BuildEmbeddingText("p.go", "@@ -1 +1 @@", "why", "snippet", "msg")
	if first != second {
		t.Fatalf("embedding text must be byte-identical across runs")
	}
}
