// Package patch parses unified-diff text into per-file hunks with
// reconstructed before/after snippets.
package patch

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	fileHeaderRegexp = regexp.MustCompile(`^diff --git a/(?P<old>.*?) b/(?P<new>.*?)$`)
	hunkHeaderRegexp = regexp.MustCompile(`^@@ -(\d+),?(\d*) \+(\d+),?(\d*) @@`)
)

// snippetBudget caps each reconstructed snippet to bound document size.
const snippetBudget = 1000

// Hunk is one parsed `@@` block. Numbering is zero-based and stable in
// header-encounter order within the file.
type Hunk struct {
	HunkNo        int
	OldStart      int
	OldLines      int
	NewStart      int
	NewLines      int
	Header        string
	BeforeSnippet string
	AfterSnippet  string
	LinesAdded    int
	LinesRemoved  int
}

type builder struct {
	hunk   Hunk
	before []string
	after  []string
}

func (b *builder) finish() Hunk {
	b.hunk.BeforeSnippet = capSnippet(strings.Join(b.before, "\n"))
	b.hunk.AfterSnippet = capSnippet(strings.Join(b.after, "\n"))
	return b.hunk
}

func capSnippet(s string) string {
	if len(s) > snippetBudget {
		return s[:snippetBudget]
	}
	return s
}

// Parse scans a unified diff, which may cover several files, and returns the
// hunks belonging to filePath in file order. A diff with no section for the
// target path yields an empty slice. A malformed `@@` header is skipped
// without aborting the scan.
func Parse(patchText, filePath string) []Hunk {
	var hunks []Hunk
	var current *builder
	inTarget := false

	flush := func() {
		if current != nil {
			hunks = append(hunks, current.finish())
			current = nil
		}
	}

	for _, line := range strings.Split(patchText, "\n") {
		if match := fileHeaderRegexp.FindStringSubmatch(line); match != nil {
			if inTarget {
				flush()
			}
			oldPath := match[fileHeaderRegexp.SubexpIndex("old")]
			inTarget = oldPath == filePath
			continue
		}
		if !inTarget {
			continue
		}

		if strings.HasPrefix(line, "@@") {
			match := hunkHeaderRegexp.FindStringSubmatch(line)
			if match == nil {
				// Malformed header: the current hunk, if any, stays open
				// until the next valid header or EOF.
				continue
			}
			flush()
			current = &builder{hunk: Hunk{
				HunkNo:   len(hunks),
				OldStart: atoiDefault(match[1], 1),
				OldLines: atoiDefault(match[2], 1),
				NewStart: atoiDefault(match[3], 1),
				NewLines: atoiDefault(match[4], 1),
				Header:   line,
			}}
			continue
		}

		if current == nil {
			continue
		}
		switch {
		case strings.HasPrefix(line, " "):
			content := line[1:]
			current.before = append(current.before, content)
			current.after = append(current.after, content)
		case strings.HasPrefix(line, "-"):
			current.before = append(current.before, line[1:])
			current.hunk.LinesRemoved++
		case strings.HasPrefix(line, "+"):
			current.after = append(current.after, line[1:])
			current.hunk.LinesAdded++
		}
	}
	flush()

	return hunks
}

// atoiDefault parses a length or start token, with absent length tokens
// defaulting to 1 per unified-diff convention for single-line hunks.
func atoiDefault(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
