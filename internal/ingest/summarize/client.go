package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/dferrero/diffscope/internal/logging"
)

const defaultConcurrency = 5

// generator is the LLM surface the summarizer calls. Satisfied by the
// langchaingo ollama client; tests substitute a fake.
type generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Client turns hunks into "why did this change" summaries, batched against
// the LLM with bounded concurrency and deterministic per-hunk fallback.
type Client struct {
	cfg Config
	llm generator
	log logging.Logger
}

func NewClient(cfg Config, log logging.Logger) (*Client, error) {
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("llm model name is required")
	}
	opts := []ollama.Option{
		ollama.WithModel(cfg.ModelName),
		ollama.WithKeepAlive("5m"),
	}
	if trimmed := strings.TrimSpace(cfg.OllamaURL); trimmed != "" {
		opts = append(opts, ollama.WithServerURL(trimmed))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return &Client{cfg: cfg, llm: llm, log: log.WithName("summarize")}, nil
}

// ModelID names the model recorded alongside stored summaries.
func (c *Client) ModelID() string { return c.cfg.ModelName }

// SummarizeHunks produces one Result per input, in input order. Inputs are
// chunked; chunks run sequentially and hunks within a chunk in parallel. A
// per-hunk failure degrades that hunk to its fallback summary without
// aborting siblings.
func (c *Client) SummarizeHunks(ctx context.Context, inputs []HunkInput, commitMessage string) []Result {
	results := make([]Result, len(inputs))

	concurrency := c.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	for start := 0; start < len(inputs); start += concurrency {
		end := start + concurrency
		if end > len(inputs) {
			end = len(inputs)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx] = c.summarizeOne(ctx, inputs[idx], commitMessage)
			}(i)
		}
		wg.Wait()
	}
	return results
}

func (c *Client) summarizeOne(ctx context.Context, input HunkInput, commitMessage string) Result {
	prompt := renderTemplate(hunkPromptTemplate, map[string]string{
		"CommitMessage": firstLine(commitMessage),
		"FilePath":      input.Path,
		"Header":        input.Header,
		"Text":          input.AfterSnippet,
	})

	if budget := c.cfg.MaxContextTokens; budget > 0 && estimateTokens(prompt) > budget {
		c.log.Debug("hunk exceeds context budget, using fallback", "path", input.Path, "hunk", input.HunkID)
		return fallbackResult(input, commitMessage, fmt.Errorf("%w: prompt estimated above %d tokens", ErrHunkTooLarge, budget))
	}

	response, err := c.generate(ctx, prompt)
	if err != nil {
		c.log.Error(err, "hunk summarization failed", "path", input.Path, "hunk", input.HunkID)
		return fallbackResult(input, commitMessage, err)
	}

	summary, labels := parseLabels(response, commitMessage, input.Path)
	if summary == "" {
		return fallbackResult(input, commitMessage, errors.New("empty summary response"))
	}
	return Result{HunkID: input.HunkID, Summary: summary, Labels: labels}
}

// SummarizeCommit reduces per-hunk summaries into at most six commit-level
// bullets.
func (c *Client) SummarizeCommit(ctx context.Context, hunkSummaries []string, commitMessage string) ([]string, error) {
	if len(hunkSummaries) == 0 {
		return nil, errors.New("no hunk summaries to reduce")
	}
	prompt := renderTemplate(commitPromptTemplate, map[string]string{
		"CommitMessage": commitMessage,
		"Text":          strings.Join(hunkSummaries, "\n"),
	})

	response, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var bullets []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		if line == "" {
			continue
		}
		bullets = append(bullets, line)
		if len(bullets) == 6 {
			break
		}
	}
	if len(bullets) == 0 {
		return nil, errors.New("empty commit summary response")
	}
	return bullets, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}
	resp, err := c.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", c.annotateError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty llm response")
	}
	return resp.Choices[0].Content, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.CallTimeout)
}

func (c *Client) annotateError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("llm call timed out after %s: %w", c.cfg.CallTimeout, err)
	}
	return err
}

func fallbackResult(input HunkInput, commitMessage string, cause error) Result {
	return Result{
		HunkID:   input.HunkID,
		Summary:  fallbackSummary(input),
		Labels:   fallbackLabels(commitMessage, input.Path),
		Fallback: true,
		Err:      cause,
	}
}

func renderTemplate(tmpl string, values map[string]string) string {
	out := tmpl
	for key, value := range values {
		out = strings.ReplaceAll(out, "{{."+key+"}}", value)
	}
	return out
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
