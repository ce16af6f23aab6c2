// Package hostcontrol implements the Host Control Surface (C3): leases
// environments and arbitrates resource envelopes, guarded by the
// Capability Token Service (C2).
package hostcontrol

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/agentkernel/core/internal/capability"
	"github.com/agentkernel/core/internal/types"
)

// EnvironmentLease is the spec's EnvironmentLease entity (§3).
type EnvironmentLease struct {
	Environment string
	Token       string
	IssuedTo    string
	GrantedAt   time.Time
	ExpiresAt   time.Time
}

// ResourceRequest is the input to ArbitrateResources.
type ResourceRequest struct {
	Environment        string
	DesiredCPUShare    float64
	DesiredMemoryBytes int64
}

// ResourceGrant is the arbitrated envelope returned to the caller.
type ResourceGrant struct {
	GrantedCPU      float64
	GrantedMemory   int64
	IsolationEnforced bool
}

const maxCPUShare = 0.75
const memoryGrantFraction = 0.80

// Surface is the authoritative, process-wide lease table. No other
// component may mutate it directly.
type Surface struct {
	mu      sync.Mutex
	tokens  *capability.Service
	leases  map[string]*EnvironmentLease // environment -> lease
	leaseTTL time.Duration
}

// New constructs a Surface guarded by the given capability token service.
func New(tokens *capability.Service) *Surface {
	return &Surface{
		tokens:   tokens,
		leases:   make(map[string]*EnvironmentLease),
		leaseTTL: time.Hour,
	}
}

// RequestEnvironmentTakeover leases env to the holder of token. If an
// active lease already exists for the same token it is returned
// idempotently; a lease held by a different token yields EnvironmentInUse.
func (s *Surface) RequestEnvironmentTakeover(token, env string) (EnvironmentLease, error) {
	validated, err := s.tokens.Validate(token, "host.env.takeover")
	if err != nil {
		return EnvironmentLease{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.leases[env]; ok {
		if existing.Token == token {
			return *existing, nil
		}
		return EnvironmentLease{}, types.NewError(types.KindIntegrity, "hostcontrol.RequestEnvironmentTakeover", fmt.Errorf("EnvironmentInUse"))
	}

	now := time.Now()
	lease := &EnvironmentLease{
		Environment: env,
		Token:       token,
		IssuedTo:    validated.IssuedTo,
		GrantedAt:   now,
		ExpiresAt:   now.Add(s.leaseTTL),
	}
	s.leases[env] = lease
	return *lease, nil
}

// ReleaseEnvironment releases a lease; the same token must be presented.
func (s *Surface) ReleaseEnvironment(token, env string) error {
	if _, err := s.tokens.Validate(token, "host.env.takeover"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.leases[env]
	if !ok {
		return types.NewError(types.KindIntegrity, "hostcontrol.ReleaseEnvironment", fmt.Errorf("EnvironmentNotLeased"))
	}
	if existing.Token != token {
		return types.NewError(types.KindAuthorization, "hostcontrol.ReleaseEnvironment", fmt.Errorf("EnvironmentIsolationViolation"))
	}
	delete(s.leases, env)
	return nil
}

// ArbitrateResources grants a clamped resource envelope to a leaseholder.
func (s *Surface) ArbitrateResources(token string, req ResourceRequest) (ResourceGrant, error) {
	if _, err := s.tokens.Validate(token, "host.resource.arbitrate"); err != nil {
		return ResourceGrant{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.leases[req.Environment]
	if !ok || existing.Token != token {
		return ResourceGrant{}, types.NewError(types.KindIntegrity, "hostcontrol.ArbitrateResources", fmt.Errorf("EnvironmentNotLeased"))
	}

	cpu := req.DesiredCPUShare
	if cpu < 0 {
		cpu = 0
	}
	if cpu > 1 {
		cpu = 1
	}
	if cpu > maxCPUShare {
		cpu = maxCPUShare
	}

	mem := int64(math.Floor(float64(req.DesiredMemoryBytes) * memoryGrantFraction))

	return ResourceGrant{
		GrantedCPU:        cpu,
		GrantedMemory:     mem,
		IsolationEnforced: true,
	}, nil
}

// ActiveLeases enumerates every environment currently leased.
func (s *Surface) ActiveLeases() []EnvironmentLease {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]EnvironmentLease, 0, len(s.leases))
	for _, l := range s.leases {
		out = append(out, *l)
	}
	return out
}
