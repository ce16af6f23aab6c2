package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestRegistry() *Registry {
	return NewRegistry(prometheus.NewRegistry())
}

func TestLoadLevelBoundaries(t *testing.T) {
	cases := []struct {
		name  string
		snap  Snapshot
		level LoadLevel
	}{
		{"all zero is idle", Snapshot{}, Idle},
		{"cpu boundary saturated", Snapshot{CPUUtil: 0.93}, Saturated},
		{"mem boundary elevated", Snapshot{MemUtil: 0.85}, Elevated},
		{"queue boundary steady", Snapshot{InferenceQueueDepth: 32}, Steady},
		{"sandbox queue drives saturated", Snapshot{SandboxQueueDepth: 96}, Saturated},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.snap.LoadLevel(); got != c.level {
				t.Fatalf("expected %s, got %s", c.level, got)
			}
		})
	}
}

func TestRegistryRingIsBounded(t *testing.T) {
	r := newTestRegistry()
	for i := 0; i < MaxHistory+10; i++ {
		r.Record(Snapshot{CPUUtil: 0.1})
	}
	if len(r.ring) != MaxHistory {
		t.Fatalf("expected ring bounded to %d, got %d", MaxHistory, len(r.ring))
	}
}

func TestAggregatedAppliesSameThresholds(t *testing.T) {
	r := newTestRegistry()
	r.Record(Snapshot{CPUUtil: 0.92})
	r.Record(Snapshot{CPUUtil: 0.98})
	if level := r.CurrentLoadLevel(); level != Saturated {
		t.Fatalf("expected saturated average, got %s", level)
	}
}

func TestScalingPolicyDefaultsWhenEmpty(t *testing.T) {
	r := newTestRegistry()
	p := NewPolicy(DefaultScalingLimits())
	d := p.Decide(r)
	if d.InferenceMode != ModeFull || d.AgentConcurrencyLimit != p.Limits.BaselineConcurrency {
		t.Fatalf("expected baseline/full default, got %+v", d)
	}
}

func TestScalingPolicySaturated(t *testing.T) {
	r := newTestRegistry()
	r.Record(Snapshot{CPUUtil: 0.99})
	p := NewPolicy(DefaultScalingLimits())
	d := p.Decide(r)
	if d.InferenceMode != ModeLightweight || d.AgentConcurrencyLimit != p.Limits.MinConcurrency {
		t.Fatalf("expected lightweight/min concurrency, got %+v", d)
	}
	if d.SandboxSchedulingDelayMs != p.Limits.SaturatedBackoffMs {
		t.Fatalf("expected saturated backoff delay, got %d", d.SandboxSchedulingDelayMs)
	}
}
