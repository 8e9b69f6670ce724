package summarize

import (
	"fmt"
	"sort"
	"strings"
)

// fallbackSummary derives a deterministic summary from the hunk's line
// counts. Used when the LLM call fails or the hunk is too large to send.
func fallbackSummary(input HunkInput) string {
	switch {
	case input.LinesRemoved == 0 && input.LinesAdded > 0:
		return fmt.Sprintf("Add %d line(s) to %s", input.LinesAdded, input.Path)
	case input.LinesAdded == 0 && input.LinesRemoved > 0:
		return fmt.Sprintf("Remove %d line(s) from %s", input.LinesRemoved, input.Path)
	default:
		return fmt.Sprintf("Modify %s (%d added, %d removed)", input.Path, input.LinesAdded, input.LinesRemoved)
	}
}

var keywordLabels = []struct {
	label    string
	keywords []string
}{
	{"fix", []string{"fix", "bug", "error"}},
	{"refactor", []string{"refactor", "rename", "clean"}},
	{"feature", []string{"add", "new", "create"}},
	{"cleanup", []string{"remove", "delete", "drop"}},
	{"test", []string{"test", "spec"}},
}

// fallbackLabels assigns labels by substring match over the commit message
// and file path. Deterministic: output order is fixed.
func fallbackLabels(commitMessage, path string) []string {
	haystack := strings.ToLower(commitMessage + " " + path)
	var labels []string
	for _, entry := range keywordLabels {
		for _, kw := range entry.keywords {
			if strings.Contains(haystack, kw) {
				labels = append(labels, entry.label)
				break
			}
		}
	}
	return labels
}

// parseLabels extracts the trailing "Labels:" line from an LLM response,
// falling back to keyword labels when absent or empty.
func parseLabels(response, commitMessage, path string) (summary string, labels []string) {
	lines := strings.Split(strings.TrimSpace(response), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "labels:") {
			raw := strings.TrimSpace(line[len("labels:"):])
			for _, part := range strings.Split(raw, ",") {
				if label := strings.ToLower(strings.TrimSpace(part)); label != "" {
					labels = append(labels, label)
				}
			}
			lines = append(lines[:i], lines[i+1:]...)
			break
		}
	}
	summary = strings.TrimSpace(strings.Join(lines, "\n"))
	if len(labels) == 0 {
		labels = fallbackLabels(commitMessage, path)
	}
	sort.Strings(labels)
	return summary, labels
}
