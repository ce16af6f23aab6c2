package main

import (
	"context"
	"fmt"

	"github.com/agentkernel/core/internal/autofix"
	"github.com/agentkernel/core/internal/controlsurface"
	"github.com/agentkernel/core/internal/manifest"
	"github.com/agentkernel/core/internal/runtime"
	"github.com/agentkernel/core/internal/types"
)

// Start brings the runtime plugin set up in dependency order.
func (k *kernel) Start(ctx context.Context) error {
	return k.runtimes.Bootstrap()
}

// Deploy loads and applies a new kernel manifest without restarting the
// process: runtimes are re-bootstrapped and token policies reconfigured.
func (k *kernel) Deploy(ctx context.Context, manifestPath string) error {
	if manifestPath == "" {
		return types.NewError(types.KindConfiguration, "kernel.Deploy", fmt.Errorf("manifest path required"))
	}
	km, err := manifest.LoadKernelManifest(manifestPath)
	if err != nil {
		return err
	}
	runtimes, err := runtime.FromManifest(km.RuntimePlugins())
	if err != nil {
		return err
	}
	if err := runtimes.Bootstrap(); err != nil {
		return err
	}
	k.caps.Configure(km.Capability())
	k.runtimes = runtimes
	return nil
}

// Monitor reports a point-in-time health snapshot.
func (k *kernel) Monitor(ctx context.Context) (controlsurface.MonitorSnapshot, error) {
	agentsOnline := 0
	for _, a := range k.agents.All() {
		if a.Status == types.AgentOnline || a.Status == types.AgentIdle {
			agentsOnline++
		}
	}
	return controlsurface.MonitorSnapshot{
		AgentsOnline:    agentsOnline,
		PendingTasks:    k.sched.PendingLen(),
		DroppedMessages: k.hub.DroppedCount(),
	}, nil
}

// Shutdown releases the ledger and memory store file handles.
func (k *kernel) Shutdown(ctx context.Context) error {
	k.Close()
	return nil
}

// Verify checks a workspace path against the active profile's storage
// root policy.
func (k *kernel) Verify(ctx context.Context, workspace string) (controlsurface.VerifyReport, error) {
	report := controlsurface.VerifyReport{Workspace: workspace, Passed: true}
	allowed := false
	for _, root := range k.profile.Storage.Roots {
		if root.Path == workspace {
			allowed = true
			break
		}
	}
	if !allowed && len(k.profile.Storage.Roots) > 0 {
		report.Passed = false
		report.Violations = append(report.Violations, fmt.Sprintf("workspace %q is not a declared storage root", workspace))
	}
	return report, nil
}

// Autonomous records the requested autonomous flag on the kernel. The
// scheduler keeps the operating mode it was constructed with, so its
// approval gating is not changed by this call.
func (k *kernel) Autonomous(ctx context.Context, enabled bool) error {
	k.autonomous = enabled
	return nil
}

// SelfImprove runs one auto-fix planning pass over known recurring
// failure signals (placeholder signal set; a real deployment wires this
// to telemetry-derived signals).
func (k *kernel) SelfImprove(ctx context.Context) (controlsurface.SelfImproveReport, error) {
	signals := []autofix.Signal{
		{Subject: "scheduler", Category: "flaky_test", Detail: "intermittent dispatch test failures"},
	}
	report := controlsurface.SelfImproveReport{PlansConsidered: len(signals)}
	for _, sig := range signals {
		plan := k.fixer.Plan(sig)
		if _, _, err := k.fixer.Record(plan, plan.AutoApply); err != nil {
			report.Escalated = append(report.Escalated, sig.Subject)
			continue
		}
		if plan.AutoApply {
			report.PlansApplied++
		} else {
			report.Escalated = append(report.Escalated, sig.Subject)
		}
	}
	return report, nil
}
