package autofix

import (
	"testing"

	"github.com/agentkernel/core/internal/evidence"
)

func TestPlanMatchesKnownCategory(t *testing.T) {
	c := NewCoordinator(nil)
	plan := c.Plan(Signal{Subject: "agent-1", Category: "stale_cache"})
	if !plan.AutoApply {
		t.Fatal("expected auto-apply for known category")
	}
	if len(plan.Actions) == 0 {
		t.Fatal("expected non-empty actions")
	}
}

func TestPlanEscalatesUnknownCategory(t *testing.T) {
	c := NewCoordinator(nil)
	plan := c.Plan(Signal{Subject: "agent-1", Category: "unknown_thing"})
	if plan.AutoApply {
		t.Fatal("expected escalation for unknown category")
	}
	if len(plan.Actions) != 0 {
		t.Fatal("expected no actions for unknown category")
	}
}

func TestRecordAppendsEvidence(t *testing.T) {
	ledger := evidence.OpenInMemory(evidence.NewSigner([]byte("key")))
	c := NewCoordinator(ledger)
	plan := c.Plan(Signal{Subject: "agent-1", Category: "flaky_test"})
	if _, _, err := c.Record(plan, true); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(ledger.All()) != 1 {
		t.Fatalf("expected 1 evidence record, got %d", len(ledger.All()))
	}
}
