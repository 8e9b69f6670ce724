package patch

import (
	"strings"
	"testing"
)

const sampleDiff = `diff --git a/pkg/handler.go b/pkg/handler.go
index 123..456 100644
--- a/pkg/handler.go
+++ b/pkg/handler.go
@@ -10,4 +10,5 @@ func Handle() {
 	ctx := context.Background()
-	result := process(ctx)
+	result, err := process(ctx)
+	_ = err
 	return result
@@ -40,3 +41,3 @@ func helper() {
 	a := 1
-	b := 2
+	b := 3
 	_ = a
diff --git a/README.md b/README.md
index 789..abc 100644
--- a/README.md
+++ b/README.md
@@ -1,2 +1,3 @@
 # Title
+New line
 Body
`

func TestParseMultiFileScoping(t *testing.T) {
	hunks := Parse(sampleDiff, "pkg/handler.go")
	if len(hunks) != 2 {
		t.Fatalf("expected 2 hunks, got %d", len(hunks))
	}

	first := hunks[0]
	if first.HunkNo != 0 {
		t.Fatalf("expected hunk numbering to start at 0, got %d", first.HunkNo)
	}
	if first.OldStart != 10 || first.OldLines != 4 || first.NewStart != 10 || first.NewLines != 5 {
		t.Fatalf("unexpected ranges: %+v", first)
	}
	if first.LinesAdded != 2 || first.LinesRemoved != 1 {
		t.Fatalf("expected 2 added / 1 removed, got %d/%d", first.LinesAdded, first.LinesRemoved)
	}
	if !strings.Contains(first.BeforeSnippet, "result := process(ctx)") {
		t.Fatalf("before snippet missing removed line: %q", first.BeforeSnippet)
	}
	if strings.Contains(first.BeforeSnippet, "result, err :=") {
		t.Fatalf("before snippet contains added line: %q", first.BeforeSnippet)
	}
	if !strings.Contains(first.AfterSnippet, "result, err := process(ctx)") {
		t.Fatalf("after snippet missing added line: %q", first.AfterSnippet)
	}

	second := hunks[1]
	if second.HunkNo != 1 || second.OldStart != 40 {
		t.Fatalf("unexpected second hunk: %+v", second)
	}

	other := Parse(sampleDiff, "README.md")
	if len(other) != 1 {
		t.Fatalf("expected 1 hunk for README.md, got %d", len(other))
	}
	if other[0].LinesAdded != 1 || other[0].LinesRemoved != 0 {
		t.Fatalf("unexpected README.md counts: %+v", other[0])
	}
}

func TestParseMissingFile(t *testing.T) {
	hunks := Parse(sampleDiff, "missing.go")
	if len(hunks) != 0 {
		t.Fatalf("expected no hunks for absent path, got %d", len(hunks))
	}
}

func TestParseSingleLineRanges(t *testing.T) {
	diff := "diff --git a/f.txt b/f.txt\n" +
		"--- a/f.txt\n" +
		"+++ b/f.txt\n" +
		"@@ -10 +10 @@\n" +
		"-old\n" +
		"+new\n"
	hunks := Parse(diff, "f.txt")
	if len(hunks) != 1 {
		t.Fatalf("expected 1 hunk, got %d", len(hunks))
	}
	h := hunks[0]
	if h.OldStart != 10 || h.OldLines != 1 || h.NewStart != 10 || h.NewLines != 1 {
		t.Fatalf("single-line ranges should default length to 1: %+v", h)
	}
}

func TestParseSkipsMalformedHeader(t *testing.T) {
	diff := "diff --git a/f.txt b/f.txt\n" +
		"@@ not a real header @@\n" +
		"+orphan\n" +
		"@@ -1,1 +1,2 @@\n" +
		" keep\n" +
		"+added\n"
	hunks := Parse(diff, "f.txt")
	if len(hunks) != 1 {
		t.Fatalf("expected malformed header to be skipped, got %d hunks", len(hunks))
	}
	if hunks[0].LinesAdded != 1 {
		t.Fatalf("content before a valid header must not leak in: %+v", hunks[0])
	}
}

func TestParseCapsSnippets(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("diff --git a/big.txt b/big.txt\n")
	sb.WriteString("@@ -1,0 +1,200 @@\n")
	for i := 0; i < 200; i++ {
		sb.WriteString("+" + strings.Repeat("x", 30) + "\n")
	}
	hunks := Parse(sb.String(), "big.txt")
	if len(hunks) != 1 {
		t.Fatalf("expected 1 hunk, got %d", len(hunks))
	}
	if len(hunks[0].AfterSnippet) > 1000 {
		t.Fatalf("after snippet not capped: %d bytes", len(hunks[0].AfterSnippet))
	}
	if hunks[0].LinesAdded != 200 {
		t.Fatalf("line counts must survive capping, got %d", hunks[0].LinesAdded)
	}
}
