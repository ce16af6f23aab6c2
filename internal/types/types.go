// Package types holds data model entities shared across agentkernel's
// components: agent metadata, the error taxonomy, and the ambient
// alerting structures carried from the dashboard layer.
package types

import (
	"fmt"
	"time"
)

// ErrorKind is the abstract taxonomy every surfaced error is tagged with.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindAuthorization ErrorKind = "authorization"
	KindCapacity      ErrorKind = "capacity"
	KindDependency    ErrorKind = "dependency"
	KindIntegrity     ErrorKind = "integrity"
	KindExternal      ErrorKind = "external"
	KindTimeout       ErrorKind = "timeout"
)

// KindedError wraps an error with a taxonomy tag so callers can switch on
// recovery strategy without string-matching messages.
type KindedError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *KindedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *KindedError) Unwrap() error { return e.Err }

// NewError builds a KindedError.
func NewError(kind ErrorKind, op string, err error) *KindedError {
	return &KindedError{Kind: kind, Op: op, Err: err}
}

// AgentLayer is the closed tagged variant agents are classified into.
// Behavior dispatch is by capability match, never by layer subtype.
type AgentLayer string

const (
	LayerL1Autonomy       AgentLayer = "L1Autonomy"
	LayerL2Reasoning      AgentLayer = "L2Reasoning"
	LayerL3Orchestration  AgentLayer = "L3Orchestration"
	LayerL4Operations     AgentLayer = "L4Operations"
	LayerL5Infrastructure AgentLayer = "L5Infrastructure"
)

// AgentCategory is an open classification tag (unlike AgentLayer, which is closed).
type AgentCategory string

// AgentStatus is the liveness/availability state of a registered agent.
type AgentStatus string

const (
	AgentOnline  AgentStatus = "Online"
	AgentBusy    AgentStatus = "Busy"
	AgentIdle    AgentStatus = "Idle"
	AgentOffline AgentStatus = "Offline"
	AgentError   AgentStatus = "Error"
)

// HealthStatus is the agent's self-reported or registry-derived health.
type HealthStatus string

const (
	HealthHealthy     HealthStatus = "Healthy"
	HealthDegraded    HealthStatus = "Degraded"
	HealthNeedsRepair HealthStatus = "NeedsRepair"
	HealthError       HealthStatus = "Error"
	HealthUnknown     HealthStatus = "Unknown"
)

// AgentMetadata is the spec's AgentMetadata entity (§3).
//
// Layer is immutable once set; id is unique within a registry. Status
// transitions are monotonic per heartbeat cycle: a missed heartbeat moves
// an agent to Offline, and only a fresh heartbeat moves it back to Online.
type AgentMetadata struct {
	ID                    string        `json:"id"`
	Name                  string        `json:"name"`
	Layer                 AgentLayer    `json:"layer"`
	Category              AgentCategory `json:"category"`
	Capabilities          []string      `json:"capabilities"`
	Status                AgentStatus   `json:"status"`
	Health                HealthStatus  `json:"health"`
	LoadFactor            float64       `json:"load_factor"`
	TasksCompleted        int64         `json:"tasks_completed"`
	AvgResponseMs         float64       `json:"avg_response_ms"`
	SuccessRate           float64       `json:"success_rate"`
	LastHeartbeat         time.Time     `json:"last_heartbeat"`
	Purpose               string        `json:"purpose,omitempty"`
	IssuesIdentified      []string      `json:"issues_identified,omitempty"`
	RepairRecommendations []string      `json:"repair_recommendations,omitempty"`
}

// FromRegistry constructs an AgentMetadata with sane registry defaults,
// mirroring the tabular loader's minimal-required-fields construction path.
func FromRegistry(name, id string) AgentMetadata {
	return AgentMetadata{
		ID:          id,
		Name:        name,
		Layer:       LayerL4Operations,
		Status:      AgentOffline,
		Health:      HealthUnknown,
		LoadFactor:  0,
		SuccessRate: 1,
	}
}

// IsHealthy reports whether the agent's health is Healthy.
func (a AgentMetadata) IsHealthy() bool { return a.Health == HealthHealthy }

// NeedsRepair reports whether the agent's health requires attention.
func (a AgentMetadata) NeedsRepair() bool {
	switch a.Health {
	case HealthDegraded, HealthNeedsRepair, HealthError:
		return true
	default:
		return false
	}
}

// HasCapability reports whether the agent declares the given capability.
func (a AgentMetadata) HasCapability(cap string) bool {
	for _, c := range a.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// HasAllCapabilities reports whether the agent's capability set is a
// superset of required.
func (a AgentMetadata) HasAllCapabilities(required []string) bool {
	for _, r := range required {
		if !a.HasCapability(r) {
			return false
		}
	}
	return true
}

// RegistryStats mirrors the Agent Registry's derived counters (§4.5),
// recomputed atomically on every rebuild.
type RegistryStats struct {
	TotalAgents   int            `json:"total_agents"`
	HealthyAgents int            `json:"healthy_agents"`
	NeedsRepair   int            `json:"needs_repair"`
	UnknownStatus int            `json:"unknown_status"`
	AgentsByLayer map[string]int `json:"agents_by_layer"`
}

// NewRegistryStats returns a zeroed stats struct ready for accumulation.
func NewRegistryStats() RegistryStats {
	return RegistryStats{AgentsByLayer: make(map[string]int)}
}

// AlertThresholds configures the ambient per-agent alerting layer that
// watches registry health and feeds the notification sinks.
type AlertThresholds struct {
	FailedTestsMax        int   `json:"failed_tests_max"`
	IdleTimeMaxSeconds    int   `json:"idle_time_max_seconds"`
	EscalationQueueMax    int   `json:"escalation_queue_max"`
	TokenUsageMax         int64 `json:"token_usage_max"`
	ConsecutiveRejectsMax int   `json:"consecutive_rejects_max"`
}

// DefaultThresholds returns sensible defaults for the alerting layer.
func DefaultThresholds() AlertThresholds {
	return AlertThresholds{
		FailedTestsMax:        5,
		IdleTimeMaxSeconds:    600,
		EscalationQueueMax:    10,
		TokenUsageMax:         100000,
		ConsecutiveRejectsMax: 3,
	}
}

// Validate checks that all threshold values are sane.
func (t AlertThresholds) Validate() error {
	if t.FailedTestsMax < 1 {
		return fmt.Errorf("failed_tests_max must be at least 1")
	}
	if t.IdleTimeMaxSeconds < 60 {
		return fmt.Errorf("idle_time_max_seconds must be at least 60")
	}
	if t.EscalationQueueMax < 1 {
		return fmt.Errorf("escalation_queue_max must be at least 1")
	}
	if t.TokenUsageMax < 1000 {
		return fmt.Errorf("token_usage_max must be at least 1000")
	}
	if t.ConsecutiveRejectsMax < 1 {
		return fmt.Errorf("consecutive_rejects_max must be at least 1")
	}
	return nil
}
