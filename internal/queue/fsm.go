package queue

import "fmt"

// Status is the lifecycle state of a queue item.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRetry      Status = "retry"
)

// TargetType identifies what a queue item points at.
type TargetType string

const (
	TargetCommit      TargetType = "commit"
	TargetPullRequest TargetType = "pull_request"
)

// Priorities. Lower is served first.
const (
	PriorityHigh   = 1
	PriorityNormal = 5
)

// Terminal reports whether a status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var allowedTransitions = map[Status][]Status{
	StatusQueued:     {StatusProcessing},
	StatusRetry:      {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusRetry, StatusFailed},
}

// Transition validates a status change, rejecting anything outside the
// queued → processing → completed|retry|failed machine. Retry items re-enter
// via the same dequeue edge queued items use.
func Transition(from, to Status) error {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("illegal queue transition %s -> %s", from, to)
}

// Phase is the processing stage of a commit or pull request.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseFetching  Phase = "fetching"
	PhaseParsing   Phase = "parsing"
	PhaseEmbedding Phase = "embedding"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

var phaseOrder = map[Phase]int{
	PhasePending:   0,
	PhaseFetching:  1,
	PhaseParsing:   2,
	PhaseEmbedding: 3,
	PhaseCompleted: 4,
}

// AdvancePhase validates a forward-only phase change. Any non-terminal phase
// may fail; completed and failed rows never move again.
func AdvancePhase(from, to Phase) error {
	if from == PhaseCompleted || from == PhaseFailed {
		return fmt.Errorf("phase %s is terminal", from)
	}
	if to == PhaseFailed {
		return nil
	}
	fromOrder, ok := phaseOrder[from]
	if !ok {
		return fmt.Errorf("unknown phase %q", from)
	}
	toOrder, ok := phaseOrder[to]
	if !ok {
		return fmt.Errorf("unknown phase %q", to)
	}
	if toOrder <= fromOrder {
		return fmt.Errorf("phase cannot move backward: %s -> %s", from, to)
	}
	return nil
}
