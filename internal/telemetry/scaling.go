package telemetry

// InferenceMode is the adaptive scaling policy's inference-mode decision.
type InferenceMode string

const (
	ModeFull       InferenceMode = "Full"
	ModeHybrid     InferenceMode = "Hybrid"
	ModeLightweight InferenceMode = "Lightweight"
)

// ScalingDecision is C6's output: the concurrency limit, inference mode,
// and scheduling backoff derived from the current aggregated load level.
type ScalingDecision struct {
	AgentConcurrencyLimit  int
	InferenceMode          InferenceMode
	SandboxSchedulingDelayMs int
	Notes                  string
}

// ScalingLimits are the operator-configured concurrency bounds C6 scales
// within.
type ScalingLimits struct {
	MinConcurrency    int
	BaselineConcurrency int
	MaxConcurrency    int
	ElevatedBackoffMs int
	SaturatedBackoffMs int
}

// DefaultScalingLimits returns conservative defaults.
func DefaultScalingLimits() ScalingLimits {
	return ScalingLimits{
		MinConcurrency:      1,
		BaselineConcurrency: 4,
		MaxConcurrency:      16,
		ElevatedBackoffMs:   250,
		SaturatedBackoffMs:  1000,
	}
}

// Policy maps a Registry's aggregated load level to a ScalingDecision.
type Policy struct {
	Limits ScalingLimits
}

// NewPolicy constructs a Policy with the given limits.
func NewPolicy(limits ScalingLimits) *Policy {
	return &Policy{Limits: limits}
}

// Decide computes the ScalingDecision for a registry's current aggregated
// telemetry. When the registry has no samples yet, defaults to
// baseline/Full/0 per §4.4.
func (p *Policy) Decide(reg *Registry) ScalingDecision {
	if _, ok := reg.Latest(); !ok {
		return ScalingDecision{
			AgentConcurrencyLimit: p.Limits.BaselineConcurrency,
			InferenceMode:         ModeFull,
			Notes:                 "no telemetry recorded; defaulting to baseline",
		}
	}

	level := reg.CurrentLoadLevel()
	return p.decideForLevel(level)
}

func (p *Policy) decideForLevel(level LoadLevel) ScalingDecision {
	switch level {
	case Idle:
		return ScalingDecision{
			AgentConcurrencyLimit: p.Limits.MaxConcurrency,
			InferenceMode:         ModeFull,
			Notes:                 "idle: running at max concurrency",
		}
	case Steady:
		return ScalingDecision{
			AgentConcurrencyLimit: p.Limits.BaselineConcurrency,
			InferenceMode:         ModeFull,
			Notes:                 "steady: running at baseline concurrency",
		}
	case Elevated:
		limit := p.Limits.BaselineConcurrency - p.Limits.BaselineConcurrency/3
		if limit < p.Limits.MinConcurrency {
			limit = p.Limits.MinConcurrency
		}
		return ScalingDecision{
			AgentConcurrencyLimit:   limit,
			InferenceMode:           ModeHybrid,
			SandboxSchedulingDelayMs: p.Limits.ElevatedBackoffMs,
			Notes:                   "elevated: backing off from baseline",
		}
	default: // Saturated
		return ScalingDecision{
			AgentConcurrencyLimit:   p.Limits.MinConcurrency,
			InferenceMode:           ModeLightweight,
			SandboxSchedulingDelayMs: p.Limits.SaturatedBackoffMs,
			Notes:                   "saturated: running at minimum concurrency",
		}
	}
}
