package webhook

import (
	"encoding/json"
	"fmt"
)

// EventType classifies the webhook deliveries the pipeline stores.
type EventType string

const (
	EventPush              EventType = "push"
	EventPullRequest       EventType = "pull_request"
	EventPullRequestReview EventType = "pull_request_review"
	EventIssueComment      EventType = "issue_comment"
)

// ParseEventType maps the X-GitHub-Event header onto a stored event type.
// Unknown event types are expected filtering, not errors.
func ParseEventType(header string) (EventType, bool) {
	switch EventType(header) {
	case EventPush, EventPullRequest, EventPullRequestReview, EventIssueComment:
		return EventType(header), true
	default:
		return "", false
	}
}

// Pull request actions that trigger ingestion. Everything else (closed,
// labeled, ...) is intentionally dropped at the gateway.
var ingestedPRActions = map[string]bool{
	"opened":      true,
	"synchronize": true,
	"reopened":    true,
}

type Repository struct {
	FullName string `json:"full_name"`
	CloneURL string `json:"clone_url"`
	Private  bool   `json:"private"`
}

type PushCommit struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// PushEvent is the validated shape of a push delivery. Only the fields the
// pipeline consumes are decoded.
type PushEvent struct {
	Ref        string       `json:"ref"`
	Repository Repository   `json:"repository"`
	Commits    []PushCommit `json:"commits"`
	HeadCommit *PushCommit  `json:"head_commit"`
}

type PullRequestDetail struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	Head   struct {
		SHA string `json:"sha"`
	} `json:"head"`
}

// PullRequestEvent is the validated shape of a pull_request delivery.
type PullRequestEvent struct {
	Action      string            `json:"action"`
	Number      int               `json:"number"`
	Repository  Repository        `json:"repository"`
	PullRequest PullRequestDetail `json:"pull_request"`
}

func decodePush(payload []byte) (*PushEvent, error) {
	var event PushEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode push payload: %w", err)
	}
	if event.Repository.FullName == "" {
		return nil, fmt.Errorf("push payload missing repository.full_name")
	}
	return &event, nil
}

func decodePullRequest(payload []byte) (*PullRequestEvent, error) {
	var event PullRequestEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode pull_request payload: %w", err)
	}
	if event.Repository.FullName == "" {
		return nil, fmt.Errorf("pull_request payload missing repository.full_name")
	}
	if event.Number == 0 {
		event.Number = event.PullRequest.Number
	}
	if event.Number == 0 {
		return nil, fmt.Errorf("pull_request payload missing number")
	}
	return &event, nil
}
