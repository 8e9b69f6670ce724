package queue

import "testing"

func TestTransitionRules(t *testing.T) {
	allowed := [][2]Status{
		{StatusQueued, StatusProcessing},
		{StatusRetry, StatusProcessing},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusRetry},
		{StatusProcessing, StatusFailed},
	}
	for _, tr := range allowed {
		if err := Transition(tr[0], tr[1]); err != nil {
			t.Fatalf("%s -> %s should be allowed: %v", tr[0], tr[1], err)
		}
	}

	rejected := [][2]Status{
		{StatusQueued, StatusCompleted},
		{StatusQueued, StatusFailed},
		{StatusQueued, StatusRetry},
		{StatusCompleted, StatusProcessing},
		{StatusFailed, StatusProcessing},
		{StatusFailed, StatusQueued},
		{StatusRetry, StatusCompleted},
	}
	for _, tr := range rejected {
		if err := Transition(tr[0], tr[1]); err == nil {
			t.Fatalf("%s -> %s should be rejected", tr[0], tr[1])
		}
	}
}

func TestTerminal(t *testing.T) {
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Fatalf("completed and failed are terminal")
	}
	for _, s := range []Status{StatusQueued, StatusProcessing, StatusRetry} {
		if s.Terminal() {
			t.Fatalf("%s must not be terminal", s)
		}
	}
}

func TestAdvancePhaseForwardOnly(t *testing.T) {
	forward := [][2]Phase{
		{PhasePending, PhaseFetching},
		{PhaseFetching, PhaseParsing},
		{PhaseParsing, PhaseEmbedding},
		{PhaseEmbedding, PhaseCompleted},
		{PhasePending, PhaseCompleted},
	}
	for _, tr := range forward {
		if err := AdvancePhase(tr[0], tr[1]); err != nil {
			t.Fatalf("%s -> %s should advance: %v", tr[0], tr[1], err)
		}
	}

	backward := [][2]Phase{
		{PhaseParsing, PhaseFetching},
		{PhaseEmbedding, PhaseParsing},
		{PhaseFetching, PhaseFetching},
	}
	for _, tr := range backward {
		if err := AdvancePhase(tr[0], tr[1]); err == nil {
			t.Fatalf("%s -> %s should be rejected", tr[0], tr[1])
		}
	}
}

func TestAdvancePhaseFailure(t *testing.T) {
	for _, from := range []Phase{PhasePending, PhaseFetching, PhaseParsing, PhaseEmbedding} {
		if err := AdvancePhase(from, PhaseFailed); err != nil {
			t.Fatalf("%s -> failed should be allowed: %v", from, err)
		}
	}
	if err := AdvancePhase(PhaseCompleted, PhaseFailed); err == nil {
		t.Fatalf("completed is terminal, failed must not overwrite it")
	}
	if err := AdvancePhase(PhaseFailed, PhaseFetching); err == nil {
		t.Fatalf("failed is terminal")
	}
}
