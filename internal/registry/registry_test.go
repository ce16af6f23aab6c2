package registry

import (
	"testing"

	"github.com/agentkernel/core/internal/types"
)

func TestEmptyRegistry(t *testing.T) {
	r := New()
	if r.Count() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Count())
	}
}

func TestLoadDefaultRegistry(t *testing.T) {
	r := New()
	count, err := r.LoadDefault()
	if err != nil {
		t.Fatalf("load default: %v", err)
	}
	if count == 0 {
		t.Fatal("expected embedded directory to contain agents")
	}
	if stats := r.Stats(); stats.TotalAgents != count {
		t.Fatalf("expected stats.total_agents == count, got %d vs %d", stats.TotalAgents, count)
	}
}

func TestNewWithDefaultDataConstructor(t *testing.T) {
	r, err := NewWithDefaultData()
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if r.Count() == 0 {
		t.Fatal("expected non-empty registry")
	}
}

func TestParseLayer(t *testing.T) {
	cases := map[string]types.AgentLayer{
		"board":      types.LayerL2Reasoning,
		"Executive":  types.LayerL1Autonomy,
		"micro":      types.LayerL5Infrastructure,
		"specialist": types.LayerL4Operations,
		"L3":         types.LayerL3Orchestration,
	}
	for input, want := range cases {
		if got := parseLayer(input); got != want {
			t.Errorf("parseLayer(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestReRegisteringReplacesRatherThanDuplicates(t *testing.T) {
	r := New()
	a := types.FromRegistry("dup", "agent-dup")
	r.Put(a)
	a.Health = types.HealthHealthy
	r.Put(a)

	if r.Count() != 1 {
		t.Fatalf("expected a single entry after re-registering, got %d", r.Count())
	}
	if stats := r.Stats(); stats.TotalAgents != 1 || stats.HealthyAgents != 1 {
		t.Fatalf("expected stats recomputed from primary store, got %+v", stats)
	}
}
