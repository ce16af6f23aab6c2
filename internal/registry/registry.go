// Package registry implements the Agent Registry (C7): an in-memory,
// indexed store of agent metadata loaded from a tabular manifest.
package registry

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/agentkernel/core/internal/types"
)

//go:embed data/agent_directory.csv
var defaultDirectory []byte

// Registry is the process-wide indexed agent store.
type Registry struct {
	mu        sync.RWMutex
	agents    map[string]types.AgentMetadata
	byLayer   map[types.AgentLayer][]string
	byCapability map[string][]string
	stats     types.RegistryStats
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		agents:       make(map[string]types.AgentMetadata),
		byLayer:      make(map[types.AgentLayer][]string),
		byCapability: make(map[string][]string),
		stats:        types.NewRegistryStats(),
	}
}

// NewWithDefaultData constructs a Registry pre-loaded with the embedded
// agent directory.
func NewWithDefaultData() (*Registry, error) {
	r := New()
	if _, err := r.LoadDefault(); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadDefault loads the embedded default agent directory.
func (r *Registry) LoadDefault() (int, error) {
	return r.loadFromReader(strings.NewReader(string(defaultDirectory)))
}

// LoadFromFile loads an agent directory tabular source from disk.
func (r *Registry) LoadFromFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, types.NewError(types.KindExternal, "registry.LoadFromFile", err)
	}
	defer f.Close()
	return r.loadFromReader(f)
}

func (r *Registry) loadFromReader(reader io.Reader) (int, error) {
	cr := csv.NewReader(reader)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return 0, types.NewError(types.KindExternal, "registry.loadFromReader", fmt.Errorf("reading header: %w", err))
	}
	_ = header

	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, types.NewError(types.KindExternal, "registry.loadFromReader", err)
		}

		agent, ok := parseRecord(record)
		if !ok {
			continue
		}
		if _, exists := r.agents[agent.ID]; exists {
			log.Printf("[REGISTRY] duplicate agent entry detected, keeping latest: %s", agent.ID)
		} else {
			count++
		}
		r.agents[agent.ID] = agent
	}

	r.rebuildIndexesLocked()
	log.Printf("[REGISTRY] loaded %d agents from registry", count)
	return count, nil
}

func col(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

func parseRecord(record []string) (types.AgentMetadata, bool) {
	name := col(record, 0)
	if name == "" {
		return types.AgentMetadata{}, false
	}
	id := col(record, 12)
	if id == "" {
		id = name
	}

	agent := types.FromRegistry(name, id)
	if role := col(record, 1); role != "" {
		agent.Category = types.AgentCategory(role)
	}
	agent.Layer = parseLayer(col(record, 2))
	agent.Purpose = col(record, 57)
	agent.Health = parseHealthStatus(col(record, 72))

	if repairs := col(record, 73); repairs != "" {
		agent.RepairRecommendations = splitTrim(repairs)
	}
	if issues := col(record, 74); issues != "" {
		agent.IssuesIdentified = splitTrim(issues)
	}

	return agent, true
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseLayer accepts both legacy organizational naming and modern L1-L5
// technical naming (§6.2).
func parseLayer(s string) types.AgentLayer {
	switch strings.ToLower(s) {
	case "executive", "l1", "l1autonomy":
		return types.LayerL1Autonomy
	case "board", "l2", "l2reasoning":
		return types.LayerL2Reasoning
	case "stack-chief", "stack_chief", "l3", "l3orchestration":
		return types.LayerL3Orchestration
	case "specialist", "l4", "l4operations":
		return types.LayerL4Operations
	case "micro", "l5", "l5infrastructure":
		return types.LayerL5Infrastructure
	default:
		return types.LayerL4Operations
	}
}

func parseHealthStatus(s string) types.HealthStatus {
	switch strings.ToLower(s) {
	case "healthy":
		return types.HealthHealthy
	case "degraded":
		return types.HealthDegraded
	case "needs repair", "needs_repair":
		return types.HealthNeedsRepair
	case "error":
		return types.HealthError
	default:
		return types.HealthUnknown
	}
}

// rebuildIndexesLocked clears and rebuilds every derived index and the
// registry statistics atomically in one pass. Caller must hold r.mu.
func (r *Registry) rebuildIndexesLocked() {
	r.byLayer = make(map[types.AgentLayer][]string)
	r.byCapability = make(map[string][]string)
	r.stats = types.NewRegistryStats()
	r.stats.TotalAgents = len(r.agents)

	for id, agent := range r.agents {
		r.byLayer[agent.Layer] = append(r.byLayer[agent.Layer], id)
		for _, cap := range agent.Capabilities {
			r.byCapability[cap] = append(r.byCapability[cap], id)
		}

		switch agent.Health {
		case types.HealthHealthy:
			r.stats.HealthyAgents++
		case types.HealthUnknown:
			r.stats.UnknownStatus++
		default:
			r.stats.NeedsRepair++
		}
		r.stats.AgentsByLayer[string(agent.Layer)]++
	}
}

// Get returns an agent by id.
func (r *Registry) Get(id string) (types.AgentMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// Put inserts or replaces an agent and rebuilds indexes, so re-registering
// the same agent replaces its entry rather than duplicating it.
func (r *Registry) Put(agent types.AgentMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agent.ID] = agent
	r.rebuildIndexesLocked()
}

// All returns every registered agent.
func (r *Registry) All() []types.AgentMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.AgentMetadata, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	return out
}

// ByLayer returns every agent in the given layer.
func (r *Registry) ByLayer(layer types.AgentLayer) []types.AgentMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byLayer[layer]
	out := make([]types.AgentMetadata, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.agents[id])
	}
	return out
}

// ByCapability returns every agent declaring the given capability.
func (r *Registry) ByCapability(cap string) []types.AgentMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byCapability[cap]
	out := make([]types.AgentMetadata, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.agents[id])
	}
	return out
}

// Healthy returns every agent whose health is Healthy.
func (r *Registry) Healthy() []types.AgentMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []types.AgentMetadata
	for _, a := range r.agents {
		if a.IsHealthy() {
			out = append(out, a)
		}
	}
	return out
}

// NeedsRepair returns every agent flagged as needing repair.
func (r *Registry) NeedsRepair() []types.AgentMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []types.AgentMetadata
	for _, a := range r.agents {
		if a.NeedsRepair() {
			out = append(out, a)
		}
	}
	return out
}

// Stats returns the registry's derived statistics.
func (r *Registry) Stats() types.RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// Count returns the total number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
