// Package telemetry implements the Telemetry Registry and Adaptive Scaling
// Policy (C5, C6): a bounded ring of load samples, derived load levels, and
// the concurrency/inference-mode decisions they drive.
package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MaxHistory bounds the telemetry ring (§4.4).
const MaxHistory = 32

// LoadLevel is the derived severity of system utilization.
type LoadLevel string

const (
	Idle      LoadLevel = "Idle"
	Steady    LoadLevel = "Steady"
	Elevated  LoadLevel = "Elevated"
	Saturated LoadLevel = "Saturated"
)

// Snapshot is the spec's TelemetrySnapshot entity (§4.4).
type Snapshot struct {
	Timestamp           time.Time
	CPUUtil             float64
	MemUtil             float64
	AgentConcurrency    int
	InferenceQueueDepth float64
	SandboxQueueDepth   float64
}

// LoadLevel derives the severity of this single snapshot using the
// inclusive-lower-bound threshold table (§4.4). A snapshot's level is the
// highest level whose cpu/mem/queue condition is met.
func (s Snapshot) LoadLevel() LoadLevel {
	return deriveLoadLevel(s.CPUUtil, s.MemUtil, s.InferenceQueueDepth, s.SandboxQueueDepth)
}

func deriveLoadLevel(cpu, mem, inferenceQueue, sandboxQueue float64) LoadLevel {
	queuePressure := inferenceQueue
	if sandboxQueue > queuePressure {
		queuePressure = sandboxQueue
	}

	switch {
	case cpu >= 0.93 || mem >= 0.93 || queuePressure >= 96.0:
		return Saturated
	case cpu >= 0.82 || mem >= 0.85 || queuePressure >= 64.0:
		return Elevated
	case cpu >= 0.65 || mem >= 0.70 || queuePressure >= 32.0:
		return Steady
	default:
		return Idle
	}
}

// Registry is the process-wide bounded ring of telemetry snapshots.
type Registry struct {
	mu      sync.Mutex
	ring    []Snapshot
	gauge   *prometheus.GaugeVec
}

// NewRegistry constructs an empty Registry and registers its Prometheus
// gauges with reg (pass prometheus.DefaultRegisterer in production, or a
// fresh prometheus.NewRegistry() in tests).
func NewRegistry(reg prometheus.Registerer) *Registry {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "agentkernel",
		Subsystem: "telemetry",
		Name:      "utilization",
		Help:      "Latest recorded utilization sample per dimension.",
	}, []string{"dimension"})
	if reg != nil {
		reg.MustRegister(gauge)
	}
	return &Registry{gauge: gauge}
}

// Record appends a snapshot, evicting the oldest if the ring is full.
func (r *Registry) Record(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ring = append(r.ring, s)
	if len(r.ring) > MaxHistory {
		r.ring = r.ring[len(r.ring)-MaxHistory:]
	}

	if r.gauge != nil {
		r.gauge.WithLabelValues("cpu").Set(s.CPUUtil)
		r.gauge.WithLabelValues("mem").Set(s.MemUtil)
		r.gauge.WithLabelValues("inference_queue").Set(s.InferenceQueueDepth)
		r.gauge.WithLabelValues("sandbox_queue").Set(s.SandboxQueueDepth)
	}
}

// Latest returns the most recently recorded snapshot, if any.
func (r *Registry) Latest() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ring) == 0 {
		return Snapshot{}, false
	}
	return r.ring[len(r.ring)-1], true
}

// Averages averages every dimension across the full ring.
func (r *Registry) Averages() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.averagesLocked()
}

func (r *Registry) averagesLocked() Snapshot {
	if len(r.ring) == 0 {
		return Snapshot{}
	}
	var out Snapshot
	for _, s := range r.ring {
		out.CPUUtil += s.CPUUtil
		out.MemUtil += s.MemUtil
		out.InferenceQueueDepth += s.InferenceQueueDepth
		out.SandboxQueueDepth += s.SandboxQueueDepth
		out.AgentConcurrency += s.AgentConcurrency
	}
	n := float64(len(r.ring))
	out.CPUUtil /= n
	out.MemUtil /= n
	out.InferenceQueueDepth /= n
	out.SandboxQueueDepth /= n
	out.AgentConcurrency = int(float64(out.AgentConcurrency) / n)
	out.Timestamp = time.Now()
	return out
}

// Aggregated is an alias for Averages, kept distinct for readability at
// call sites that want "the current aggregated view of the ring".
func (r *Registry) Aggregated() Snapshot {
	return r.Averages()
}

// CurrentLoadLevel derives the load level from the aggregated averages.
func (r *Registry) CurrentLoadLevel() LoadLevel {
	return r.Aggregated().LoadLevel()
}

// Reset clears the ring. Test-only.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ring = nil
}
