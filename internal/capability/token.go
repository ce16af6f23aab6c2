// Package capability implements the Capability Token Service (C2):
// scope-bound tokens with TTL ceilings, revocation, and per-scope
// validation gating every privileged action in the control plane.
package capability

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentkernel/core/internal/types"
)

// TokenPolicy binds a scope to a capability set and a TTL ceiling.
type TokenPolicy struct {
	Scope        string   `yaml:"scope"`
	Description  string   `yaml:"description,omitempty"`
	TTLSeconds   int64    `yaml:"ttl_seconds"`
	Capabilities []string `yaml:"capabilities"`
}

// IssueRequest is the input to Issue.
type IssueRequest struct {
	Actor       string
	Scopes      []string
	TTLOverride *time.Duration
	Metadata    map[string]string
}

// ScopeToken is the spec's ScopeToken entity (§3).
type ScopeToken struct {
	Secret    string
	IssuedTo  string
	Scopes    []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Metadata  map[string]string
	Revoked   bool
}

// IsExpired reports whether the token has passed its expiry instant.
func (t ScopeToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// GrantsScope reports whether the token was issued with the given scope.
func (t ScopeToken) GrantsScope(scope string) bool {
	for _, s := range t.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Service is the process-wide capability token authority. All operations
// are O(1) amortized via hash maps; the mutex is held only across state
// mutations, never across I/O (there is none).
type Service struct {
	mu       sync.Mutex
	policies map[string]TokenPolicy
	tokens   map[string]*ScopeToken
	counter  uint64
}

// NewService constructs an unconfigured Service.
func NewService() *Service {
	return &Service{
		policies: make(map[string]TokenPolicy),
		tokens:   make(map[string]*ScopeToken),
	}
}

// Configure replaces the policy table and clears issued/revoked token state.
func (s *Service) Configure(policies []TokenPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.policies = make(map[string]TokenPolicy, len(policies))
	for _, p := range policies {
		s.policies[p.Scope] = p
	}
	s.tokens = make(map[string]*ScopeToken)
	atomic.StoreUint64(&s.counter, 0)
}

// ConfiguredScopes reports the set of scopes known to the current policy
// table, for introspection and debugging tooling.
func (s *Service) ConfiguredScopes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	scopes := make([]string, 0, len(s.policies))
	for scope := range s.policies {
		scopes = append(scopes, scope)
	}
	return scopes
}

// Issue mints a new ScopeToken for the requested scopes.
func (s *Service) Issue(req IssueRequest) (ScopeToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.policies) == 0 {
		return ScopeToken{}, types.NewError(types.KindConfiguration, "capability.Issue", fmt.Errorf("NotConfigured"))
	}
	if len(req.Scopes) == 0 {
		return ScopeToken{}, types.NewError(types.KindAuthorization, "capability.Issue", fmt.Errorf("MissingScopes"))
	}

	// Dedup scopes preserving first-seen order.
	seen := make(map[string]bool, len(req.Scopes))
	dedup := make([]string, 0, len(req.Scopes))
	for _, scope := range req.Scopes {
		if seen[scope] {
			continue
		}
		seen[scope] = true
		dedup = append(dedup, scope)
	}

	var ttlCeiling int64 = -1
	for _, scope := range dedup {
		policy, ok := s.policies[scope]
		if !ok {
			return ScopeToken{}, types.NewError(types.KindAuthorization, "capability.Issue", fmt.Errorf("UnknownScope(%s)", scope))
		}
		if ttlCeiling == -1 || policy.TTLSeconds < ttlCeiling {
			ttlCeiling = policy.TTLSeconds
		}
	}

	effectiveTTL := time.Duration(ttlCeiling) * time.Second
	if req.TTLOverride != nil {
		if *req.TTLOverride > effectiveTTL {
			return ScopeToken{}, types.NewError(types.KindAuthorization, "capability.Issue",
				fmt.Errorf("TtlExceedsPolicy{requested=%s, policy=%s}", *req.TTLOverride, effectiveTTL))
		}
		effectiveTTL = *req.TTLOverride
	}

	now := time.Now()
	counter := atomic.AddUint64(&s.counter, 1)
	secret := deriveSecret(req.Actor, now, counter)

	token := &ScopeToken{
		Secret:    secret,
		IssuedTo:  req.Actor,
		Scopes:    dedup,
		IssuedAt:  now,
		ExpiresAt: now.Add(effectiveTTL),
		Metadata:  req.Metadata,
	}
	s.tokens[secret] = token
	return *token, nil
}

// Validate checks that a token exists, is unrevoked, unexpired, and grants
// the given scope.
func (s *Service) Validate(secret, scope string) (ScopeToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[secret]
	if !ok {
		return ScopeToken{}, types.NewError(types.KindIntegrity, "capability.Validate", fmt.Errorf("UnknownToken"))
	}
	if token.Revoked {
		return ScopeToken{}, types.NewError(types.KindAuthorization, "capability.Validate", fmt.Errorf("Revoked"))
	}
	if token.IsExpired(time.Now()) {
		return ScopeToken{}, types.NewError(types.KindAuthorization, "capability.Validate", fmt.Errorf("Expired"))
	}
	if !token.GrantsScope(scope) {
		return ScopeToken{}, types.NewError(types.KindAuthorization, "capability.Validate", fmt.Errorf("ScopeMissing"))
	}
	return *token, nil
}

// Revoke marks a token permanently unusable. Idempotent; unknown tokens fail.
func (s *Service) Revoke(secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[secret]
	if !ok {
		return types.NewError(types.KindIntegrity, "capability.Revoke", fmt.Errorf("UnknownToken"))
	}
	token.Revoked = true
	return nil
}

// Reset clears all issued tokens and the policy table. Test-only.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies = make(map[string]TokenPolicy)
	s.tokens = make(map[string]*ScopeToken)
	atomic.StoreUint64(&s.counter, 0)
}

// deriveSecret derives a token secret from actor + timestamp + monotonic
// counter, hashed to 256 bits so secrets are unguessable even though
// derivation is deterministic given its inputs.
func deriveSecret(actor string, at time.Time, counter uint64) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("token::%s::%d::%d", actor, at.UnixNano(), counter)))
	return hex.EncodeToString(h[:])
}
