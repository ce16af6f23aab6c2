package scheduler

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

//go:embed policy/approval.rego
var approvalPolicySource string

// ApprovalPolicy evaluates the operating-mode approval gate (§4.7) through
// a prepared Rego query rather than hand-rolled conditionals, so the gate
// can be extended (new modes, new sensitive capability names) by editing
// policy data instead of Go code.
type ApprovalPolicy struct {
	query rego.PreparedEvalQuery
}

// NewApprovalPolicy compiles the embedded approval-gate policy.
func NewApprovalPolicy() (*ApprovalPolicy, error) {
	ctx := context.Background()
	r := rego.New(
		rego.Query("data.scheduler.approval.requires_approval"),
		rego.Module("approval.rego", approvalPolicySource),
	)
	pq, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compiling approval policy: %w", err)
	}
	return &ApprovalPolicy{query: pq}, nil
}

// RequiresApproval evaluates the policy for a task under the given
// operating mode.
func (p *ApprovalPolicy) RequiresApproval(mode OperatingMode, t *Task) (bool, error) {
	input := map[string]interface{}{
		"mode":                  string(mode),
		"required_capabilities": t.RequiredCapabilities,
		"priority":              t.Priority,
	}
	rs, err := p.query.Eval(context.Background(), rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("evaluating approval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	result, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("approval policy returned non-boolean result")
	}
	return result, nil
}
