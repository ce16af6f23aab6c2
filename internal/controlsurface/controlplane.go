// Package controlsurface implements the Control Surface: the HTTP/RPC
// and WebSocket shape external callers use to drive the kernel
// (§6.5), plus the separate drop-control surface for the Code-Drop
// Pipeline.
package controlsurface

import "context"

// ControlPlane is the operation set the main control surface dispatches
// to: start | deploy | monitor | shutdown | verify | autonomous |
// self-improve (§6.5). Implemented by the composition root (cmd/agentkerneld).
type ControlPlane interface {
	Start(ctx context.Context) error
	Deploy(ctx context.Context, manifestPath string) error
	Monitor(ctx context.Context) (MonitorSnapshot, error)
	Shutdown(ctx context.Context) error
	Verify(ctx context.Context, workspace string) (VerifyReport, error)
	Autonomous(ctx context.Context, enabled bool) error
	SelfImprove(ctx context.Context) (SelfImproveReport, error)
}

// MonitorSnapshot is a point-in-time view of kernel health returned by
// the monitor operation.
type MonitorSnapshot struct {
	AgentsOnline   int            `json:"agents_online"`
	PendingTasks   int            `json:"pending_tasks"`
	ActiveTasks    int            `json:"active_tasks"`
	DroppedMessages uint64        `json:"dropped_messages"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// VerifyReport is the result of verifying a workspace against the
// active profile's declared storage roots. Tool and egress constraints
// are not checked.
type VerifyReport struct {
	Workspace string   `json:"workspace"`
	Passed    bool     `json:"passed"`
	Violations []string `json:"violations,omitempty"`
}

// SelfImproveReport summarizes one auto-fix/self-improve cycle.
type SelfImproveReport struct {
	PlansConsidered int      `json:"plans_considered"`
	PlansApplied    int      `json:"plans_applied"`
	Escalated       []string `json:"escalated,omitempty"`
}
