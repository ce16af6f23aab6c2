// Package sandbox implements the Sandbox Manager (C15): named-lane
// isolation, validation readiness, conflict pre-checks, and the
// promote-to-production step layered on top of the Code-Drop Pipeline's
// integration sandbox.
package sandbox

import (
	"fmt"
	"sync"

	"github.com/agentkernel/core/internal/types"
)

// Name identifies one of the fixed sandbox lanes.
type Name string

const (
	A Name = "A"
	B Name = "B"
	C Name = "C"
	D Name = "D" // integration lane
)

// Lease is one sandbox lane's current occupant.
type Lease struct {
	Name     Name
	Occupant string // drop id, or empty if free
	Branch   string
	Files    []string // files touched by the occupant, for conflict detection
}

// Manager tracks lane occupancy across the fixed sandbox set.
type Manager struct {
	mu     sync.Mutex
	leases map[Name]*Lease
}

// NewManager constructs a Manager with all four lanes free.
func NewManager() *Manager {
	m := &Manager{leases: make(map[Name]*Lease)}
	for _, n := range []Name{A, B, C, D} {
		m.leases[n] = &Lease{Name: n}
	}
	return m
}

// Occupy assigns a drop/branch to a lane. A lane already holding a
// different occupant rejects the request.
func (m *Manager) Occupy(name Name, occupant, branch string, files []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lease, ok := m.leases[name]
	if !ok {
		return types.NewError(types.KindConfiguration, "sandbox.Occupy", fmt.Errorf("unknown sandbox %s", name))
	}
	if lease.Occupant != "" && lease.Occupant != occupant {
		return types.NewError(types.KindIntegrity, "sandbox.Occupy", fmt.Errorf("sandbox %s already occupied by %s", name, lease.Occupant))
	}
	lease.Occupant = occupant
	lease.Branch = branch
	lease.Files = files
	return nil
}

// Release frees a lane.
func (m *Manager) Release(name Name) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lease, ok := m.leases[name]; ok {
		lease.Occupant = ""
		lease.Branch = ""
		lease.Files = nil
	}
}

// Lease returns a copy of a lane's current state.
func (m *Manager) Lease(name Name) (Lease, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lease, ok := m.leases[name]
	if !ok {
		return Lease{}, false
	}
	return *lease, true
}

// CheckConflicts is the pre-merge hook (§4.11): true blocks merge. Named
// lanes conflict when any pair of their occupants' touched-file sets
// overlap.
func (m *Manager) CheckConflicts(names []Name) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	var fileSets [][]string
	for _, n := range names {
		if lease, ok := m.leases[n]; ok {
			fileSets = append(fileSets, lease.Files)
		}
	}

	for i := 0; i < len(fileSets); i++ {
		seen := make(map[string]bool, len(fileSets[i]))
		for _, f := range fileSets[i] {
			seen[f] = true
		}
		for j := i + 1; j < len(fileSets); j++ {
			for _, f := range fileSets[j] {
				if seen[f] {
					return true
				}
			}
		}
	}
	return false
}

// MergePreconditions checks every named source sandbox is both occupied
// and (per caller-supplied readiness) ready; a failing precondition aborts
// without mutating any state, so this never partially releases lanes.
func (m *Manager) MergePreconditions(names []Name, ready func(Name) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, n := range names {
		lease, ok := m.leases[n]
		if !ok || lease.Occupant == "" {
			return types.NewError(types.KindDependency, "sandbox.MergePreconditions", fmt.Errorf("sandbox %s has no occupant", n))
		}
		if ready != nil && !ready(n) {
			return types.NewError(types.KindDependency, "sandbox.MergePreconditions", fmt.Errorf("sandbox %s is not ready", n))
		}
	}
	return nil
}

// PromoteToProduction releases every named source lane and the
// integration lane D, marking the merge complete. Callers must have
// already verified D's own validation passed.
func (m *Manager) PromoteToProduction(sources []Name) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range sources {
		if lease, ok := m.leases[n]; ok {
			lease.Occupant = ""
			lease.Branch = ""
			lease.Files = nil
		}
	}
	if lease, ok := m.leases[D]; ok {
		lease.Occupant = ""
		lease.Branch = ""
		lease.Files = nil
	}
}
