// Package autofix implements the Auto-Fix Coordinator (C12): it plans
// candidate auto-fix actions against a failure signal and records every
// planned action — applied or not — as a policy receipt in the evidence
// ledger.
package autofix

import (
	"fmt"

	"github.com/agentkernel/core/internal/evidence"
)

// Signal describes an observed failure the coordinator may plan a fix for.
type Signal struct {
	Subject   string // e.g. the failing agent, task, or sandbox
	Category  string // e.g. "flaky_test", "stale_cache", "dependency_conflict"
	Detail    string
}

// Plan is a coordinator-proposed remediation.
type Plan struct {
	Signal     Signal
	Actions    []string
	AutoApply  bool
	Reason     string
}

// Coordinator maps known failure categories to remediation actions and
// records every plan to the evidence ledger as an auto_fix receipt.
type Coordinator struct {
	ledger   *evidence.Ledger
	playbook map[string][]string
}

// NewCoordinator constructs a Coordinator with the default playbook,
// mirroring the repair recommendations the Agent Registry already
// surfaces for known-degraded agents (§4.5).
func NewCoordinator(ledger *evidence.Ledger) *Coordinator {
	return &Coordinator{
		ledger: ledger,
		playbook: map[string][]string{
			"flaky_test":          {"re-run failing suite", "quarantine test if still flaky"},
			"stale_cache":         {"invalidate cache entries", "restart worker pool"},
			"dependency_conflict": {"pin conflicting dependency", "re-run dependency resolution"},
			"credential_expiry":   {"rotate credentials", "restart affected service"},
		},
	}
}

// Plan proposes a remediation for a Signal. Categories outside the
// playbook are escalated (no actions, AutoApply=false).
func (c *Coordinator) Plan(sig Signal) Plan {
	actions, known := c.playbook[sig.Category]
	plan := Plan{Signal: sig}
	if !known {
		plan.Reason = fmt.Sprintf("no known remediation for category %q; escalating", sig.Category)
		return plan
	}
	plan.Actions = actions
	plan.AutoApply = true
	plan.Reason = "matched playbook entry"
	return plan
}

// Record persists a Plan as an auto_fix evidence receipt, whether or not
// it was ultimately applied.
func (c *Coordinator) Record(plan Plan, applied bool) (evidence.Record, string, error) {
	if c.ledger == nil {
		return evidence.Record{}, "", nil
	}
	payload := map[string]interface{}{
		"category": plan.Signal.Category,
		"detail":   plan.Signal.Detail,
		"actions":  plan.Actions,
		"applied":  applied,
		"reason":   plan.Reason,
	}
	return c.ledger.Append(evidence.KindAutoFix, "autofix-coordinator", plan.Signal.Subject, payload)
}
