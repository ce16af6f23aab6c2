// Package budget implements the Budget Guardian (C11): per-stage token
// and latency budget enforcement backed by a bounded telemetry tail.
package budget

import (
	"sync"

	"github.com/agentkernel/core/internal/evidence"
)

const defaultTelemetryTail = 50

// TelemetryEvent is one sample the Budget Guardian folds into BudgetUsage.
type TelemetryEvent struct {
	Tokens    int64
	LatencyMs float64
}

// BudgetUsage is the Guardian's aggregated view of recent telemetry.
type BudgetUsage struct {
	Tokens          int64
	AverageLatencyMs float64
	Samples         int
}

// Limits bounds acceptable per-stage resource consumption.
type Limits struct {
	MaxTokens     int64
	MaxLatencyMs  float64
}

// Action is the Guardian's decision for a stage.
type Action string

const (
	ActionProceed    Action = "Proceed"
	ActionRewritePlan Action = "RewritePlan"
	ActionEscalate   Action = "Escalate"
)

// StageTask is the minimal shape the Guardian needs to decide whether a
// task is safe to drop during a rewrite attempt.
type StageTask struct {
	Name            string
	BudgetSensitive bool
}

// Decision records a Guardian ruling for one stage evaluation.
type Decision struct {
	Action       Action
	Usage        BudgetUsage
	OriginalPlan []StageTask
	RewrittenPlan []StageTask
}

// Guardian reads a bounded telemetry tail and gates stage execution against
// configured limits.
type Guardian struct {
	mu     sync.Mutex
	tail   []TelemetryEvent
	tailCap int
	limits Limits
	ledger *evidence.Ledger
}

// NewGuardian constructs a Guardian with the spec's default 50-event tail.
func NewGuardian(limits Limits, ledger *evidence.Ledger) *Guardian {
	return &Guardian{tailCap: defaultTelemetryTail, limits: limits, ledger: ledger}
}

// Record appends a telemetry event, evicting the oldest once the tail is
// full.
func (g *Guardian) Record(ev TelemetryEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tail = append(g.tail, ev)
	if len(g.tail) > g.tailCap {
		g.tail = g.tail[len(g.tail)-g.tailCap:]
	}
}

// Usage computes BudgetUsage over the current telemetry tail.
func (g *Guardian) Usage() BudgetUsage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.usageLocked()
}

func (g *Guardian) usageLocked() BudgetUsage {
	if len(g.tail) == 0 {
		return BudgetUsage{}
	}
	var totalTokens int64
	var totalLatency float64
	for _, ev := range g.tail {
		totalTokens += ev.Tokens
		totalLatency += ev.LatencyMs
	}
	return BudgetUsage{
		Tokens:           totalTokens,
		AverageLatencyMs: totalLatency / float64(len(g.tail)),
		Samples:          len(g.tail),
	}
}

// Evaluate runs §4.9's per-stage decision procedure and records the result
// via the evidence ledger.
func (g *Guardian) Evaluate(stageName string, plan []StageTask) Decision {
	usage := g.Usage()
	decision := Decision{Usage: usage, OriginalPlan: plan}

	overBudget := usage.Tokens > g.limits.MaxTokens || usage.AverageLatencyMs > g.limits.MaxLatencyMs
	if !overBudget {
		decision.Action = ActionProceed
	} else {
		rewritten := dropBudgetSensitive(plan)
		if len(rewritten) > 0 && len(rewritten) < len(plan) {
			decision.Action = ActionRewritePlan
			decision.RewrittenPlan = rewritten
		} else {
			decision.Action = ActionEscalate
		}
	}

	g.recordDecision(stageName, decision)
	return decision
}

func dropBudgetSensitive(plan []StageTask) []StageTask {
	out := make([]StageTask, 0, len(plan))
	for _, t := range plan {
		if !t.BudgetSensitive {
			out = append(out, t)
		}
	}
	return out
}

func (g *Guardian) recordDecision(stageName string, decision Decision) {
	if g.ledger == nil {
		return
	}
	payload := map[string]interface{}{
		"stage":  stageName,
		"action": decision.Action,
		"usage": map[string]interface{}{
			"tokens":             decision.Usage.Tokens,
			"average_latency_ms": decision.Usage.AverageLatencyMs,
			"samples":            decision.Usage.Samples,
		},
	}
	if decision.Action == ActionRewritePlan {
		names := make([]string, 0, len(decision.RewrittenPlan))
		for _, t := range decision.RewrittenPlan {
			names = append(names, t.Name)
		}
		payload["rewritten_plan"] = names
	}
	g.ledger.Append(evidence.KindBudgetDecision, "budget-guardian", stageName, payload)
}
