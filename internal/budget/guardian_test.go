package budget

import (
	"testing"

	"github.com/agentkernel/core/internal/evidence"
)

func newGuardian(t *testing.T) *Guardian {
	t.Helper()
	return NewGuardian(Limits{MaxTokens: 1000, MaxLatencyMs: 500}, evidence.OpenInMemory(evidence.NewSigner([]byte("key"))))
}

func TestProceedsWhenUnderBudget(t *testing.T) {
	g := newGuardian(t)
	g.Record(TelemetryEvent{Tokens: 100, LatencyMs: 50})

	d := g.Evaluate("stage-1", []StageTask{{Name: "t1"}})
	if d.Action != ActionProceed {
		t.Fatalf("expected Proceed, got %s", d.Action)
	}
}

func TestRewritesWhenOverBudgetAndSensitiveTasksExist(t *testing.T) {
	g := newGuardian(t)
	for i := 0; i < 10; i++ {
		g.Record(TelemetryEvent{Tokens: 500, LatencyMs: 10})
	}

	plan := []StageTask{{Name: "core"}, {Name: "extra", BudgetSensitive: true}}
	d := g.Evaluate("stage-1", plan)
	if d.Action != ActionRewritePlan {
		t.Fatalf("expected RewritePlan, got %s", d.Action)
	}
	if len(d.RewrittenPlan) != 1 || d.RewrittenPlan[0].Name != "core" {
		t.Fatalf("expected rewritten plan to drop sensitive task, got %+v", d.RewrittenPlan)
	}
}

func TestEscalatesWhenOverBudgetWithNoSensitiveTasks(t *testing.T) {
	g := newGuardian(t)
	for i := 0; i < 10; i++ {
		g.Record(TelemetryEvent{Tokens: 500, LatencyMs: 10})
	}

	plan := []StageTask{{Name: "core"}}
	d := g.Evaluate("stage-1", plan)
	if d.Action != ActionEscalate {
		t.Fatalf("expected Escalate, got %s", d.Action)
	}
}

func TestTelemetryTailIsBounded(t *testing.T) {
	g := newGuardian(t)
	for i := 0; i < 100; i++ {
		g.Record(TelemetryEvent{Tokens: 1, LatencyMs: 1})
	}
	if g.Usage().Samples != defaultTelemetryTail {
		t.Fatalf("expected tail bounded to %d, got %d", defaultTelemetryTail, g.Usage().Samples)
	}
}

func TestEvaluateRecordsEvidence(t *testing.T) {
	ledger := evidence.OpenInMemory(evidence.NewSigner([]byte("key")))
	g := NewGuardian(Limits{MaxTokens: 1000, MaxLatencyMs: 500}, ledger)
	g.Evaluate("stage-1", []StageTask{{Name: "t1"}})

	if len(ledger.All()) != 1 {
		t.Fatalf("expected 1 budget decision recorded, got %d", len(ledger.All()))
	}
}
