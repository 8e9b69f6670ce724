package summarize

import (
	"context"
	"errors"
	"strings"
	"time"
)

type FailureCategory string

const (
	FailureCategoryLargeHunk FailureCategory = "large_hunk"
	FailureCategoryTimeout   FailureCategory = "timeout"
	FailureCategoryError     FailureCategory = "error"
)

// ErrHunkTooLarge marks hunks whose prompt exceeds the model context budget.
// Such hunks are never sent to the model; they degrade straight to fallback.
var ErrHunkTooLarge = errors.New("hunk exceeds token budget")

// HunkInput is one hunk handed to the summarizer.
type HunkInput struct {
	HunkID       int64
	Path         string
	Header       string
	AfterSnippet string
	LinesAdded   int
	LinesRemoved int
}

// Result is the summary produced for one hunk. Fallback results are
// deterministic and derived without an LLM call; Err records why.
type Result struct {
	HunkID   int64
	Summary  string
	Labels   []string
	Fallback bool
	Err      error
}

type Config struct {
	ModelName        string
	OllamaURL        string
	MaxContextTokens int
	CallTimeout      time.Duration
	Concurrency      int
}

// FailureDetails classifies an error for operator-facing records.
func FailureDetails(err error) (reason string, category FailureCategory) {
	if err == nil {
		return "", ""
	}
	if errors.Is(err, ErrHunkTooLarge) {
		return strings.TrimSpace(err.Error()), FailureCategoryLargeHunk
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout: " + strings.TrimSpace(err.Error()), FailureCategoryTimeout
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = "unknown failure"
	}
	return msg, FailureCategoryError
}
