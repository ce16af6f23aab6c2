// Package runtime implements the Runtime Plugin Manager (C4): topologically
// orders and bootstraps language runtime plugins declared by the Manifest
// & Profile Loader (C1).
package runtime

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agentkernel/core/internal/telemetry"
	"github.com/agentkernel/core/internal/types"
)

// PluginState is a plugin's lifecycle stage.
type PluginState string

const (
	PluginRegistered  PluginState = "Registered"
	PluginBootstrapped PluginState = "Bootstrapped"
	PluginRunning     PluginState = "Running"
)

// PluginEntry is a single declared runtime plugin.
type PluginEntry struct {
	Name       string   `yaml:"name"`
	Kind       string   `yaml:"kind"`
	Version    string   `yaml:"version"`
	Entrypoint string   `yaml:"entrypoint"`
	DependsOn  []string `yaml:"depends_on,omitempty"`
	Assets     []string `yaml:"assets,omitempty"`
}

type plugin struct {
	entry PluginEntry
	state PluginState
}

// Manager bootstraps plugins in dependency order.
type Manager struct {
	mu        sync.Mutex
	plugins   map[string]*plugin
	order     []string
	telemetry *telemetry.Registry
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{plugins: make(map[string]*plugin)}
}

// WithTelemetry attaches a Telemetry Registry so ExecutionPolicy can
// combine runtime state with system load.
func (m *Manager) WithTelemetry(reg *telemetry.Registry) *Manager {
	m.telemetry = reg
	return m
}

// FromManifest registers every plugin entry, rejecting duplicate names,
// missing dependencies and dependency cycles.
func FromManifest(entries []PluginEntry) (*Manager, error) {
	m := NewManager()
	for _, e := range entries {
		if _, exists := m.plugins[e.Name]; exists {
			return nil, types.NewError(types.KindConfiguration, "runtime.FromManifest", fmt.Errorf("duplicate runtime name %q", e.Name))
		}
		m.plugins[e.Name] = &plugin{entry: e, state: PluginRegistered}
	}
	if _, err := m.computeBootOrder(); err != nil {
		return nil, err
	}
	return m, nil
}

// computeBootOrder runs Kahn's algorithm over the dependency graph.
func (m *Manager) computeBootOrder() ([]string, error) {
	inDegree := make(map[string]int, len(m.plugins))
	adjacency := make(map[string][]string, len(m.plugins))

	for name := range m.plugins {
		inDegree[name] = 0
	}
	for name, p := range m.plugins {
		for _, dep := range p.entry.DependsOn {
			if _, ok := m.plugins[dep]; !ok {
				return nil, types.NewError(types.KindDependency, "runtime.computeBootOrder", fmt.Errorf("missing dependency %q for plugin %q", dep, name))
			}
			adjacency[dep] = append(adjacency[dep], name)
			inDegree[name]++
		}
	}

	var queue []string
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var ordered []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		ordered = append(ordered, n)

		var freed []string
		for _, next := range adjacency[n] {
			inDegree[next]--
			if inDegree[next] == 0 {
				freed = append(freed, next)
			}
		}
		sort.Strings(freed)
		queue = append(queue, freed...)
	}

	if len(ordered) != len(m.plugins) {
		return nil, types.NewError(types.KindDependency, "runtime.computeBootOrder", fmt.Errorf("DependencyCycle"))
	}
	return ordered, nil
}

// Bootstrap computes the boot order and transitions every plugin
// Registered -> Bootstrapped -> Running.
func (m *Manager) Bootstrap() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, err := m.computeBootOrder()
	if err != nil {
		return err
	}
	m.order = order

	for _, name := range order {
		p := m.plugins[name]
		p.state = PluginBootstrapped
		p.state = PluginRunning
	}
	return nil
}

// BootOrder reports the last computed boot order.
func (m *Manager) BootOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// State returns the current lifecycle state of a named plugin.
func (m *Manager) State(name string) (PluginState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plugins[name]
	if !ok {
		return "", false
	}
	return p.state, true
}

// RunningCount reports how many plugins have reached Running.
func (m *Manager) RunningCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.plugins {
		if p.state == PluginRunning {
			n++
		}
	}
	return n
}

// ExecutionPolicy derives whether machine (autonomous) execution should be
// preferred right now, combining the current set of Running plugins with
// aggregated telemetry. A system with no running plugins, or one under
// Saturated load, should prefer conservative (non-autonomous) execution.
type ExecutionPolicy struct {
	PreferAutonomous bool
	RunningPlugins   int
	LoadLevel        telemetry.LoadLevel
}

// ExecutionPolicy computes the current ExecutionPolicy.
func (m *Manager) ExecutionPolicy() ExecutionPolicy {
	running := m.RunningCount()
	level := telemetry.Idle
	if m.telemetry != nil {
		level = m.telemetry.Aggregated().LoadLevel()
	}
	return ExecutionPolicy{
		PreferAutonomous: running > 0 && level != telemetry.Saturated,
		RunningPlugins:   running,
		LoadLevel:        level,
	}
}
