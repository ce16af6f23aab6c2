package crc

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentkernel/core/internal/types"
)

// Drop is a single code-drop tracked through the pipeline state machine.
type Drop struct {
	ID       string
	Manifest DropManifest
	State    State
	Sandbox  SandboxName

	Analysis   *AnalysisResult
	Adaptation *AdaptationResult
	Validation *ValidationResult

	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Pipeline tracks every Drop and enforces the state machine's legal
// transitions.
type Pipeline struct {
	mu                  sync.RWMutex
	drops               map[string]*Drop
	autoApproveThreshold float64
}

// NewPipeline constructs an empty Pipeline.
func NewPipeline(autoApproveThreshold float64) *Pipeline {
	return &Pipeline{
		drops:                make(map[string]*Drop),
		autoApproveThreshold: autoApproveThreshold,
	}
}

// Ingest registers a new Drop from a manifest and assigns it a DropId.
func (p *Pipeline) Ingest(manifest DropManifest) *Drop {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if manifest.Timestamp.IsZero() {
		manifest.Timestamp = now
	}
	if manifest.Priority == "" {
		manifest.Priority = defaultPriority(manifest.SourceType)
	}

	d := &Drop{
		ID:        uuid.New().String(),
		Manifest:  manifest,
		State:     StateIncoming,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.drops[d.ID] = d
	p.transitionLocked(d, StateQueued)
	return d
}

// Analyze runs (synchronously, per §4.10) the analysis phase, moving the
// drop Queued -> Analyzing -> Adapting. Analysis is idempotent: repeating
// it on an unchanged source yields a byte-equivalent AnalysisResult except
// for timestamps, which is a property of the caller-supplied result, not
// of the pipeline's bookkeeping.
func (p *Pipeline) Analyze(dropID string, result AnalysisResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.drops[dropID]
	if !ok {
		return types.NewError(types.KindIntegrity, "crc.Analyze", fmt.Errorf("unknown drop %s", dropID))
	}
	if d.State != StateQueued && d.State != StateAnalyzing {
		return types.NewError(types.KindDependency, "crc.Analyze", fmt.Errorf("drop %s is in state %s, expected Queued", dropID, d.State))
	}
	if d.State == StateQueued {
		if err := p.transitionLocked(d, StateAnalyzing); err != nil {
			return err
		}
	}
	d.Analysis = &result
	return p.transitionLocked(d, StateAdapting)
}

// Adapt runs the adaptation phase, computing AutoApproved from the
// pipeline's configured threshold.
func (p *Pipeline) Adapt(dropID string, result AdaptationResult) error {
	result.AutoApproved = resolveAutoApproved(result.AIConfidence, p.autoApproveThreshold)

	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.drops[dropID]
	if !ok {
		return types.NewError(types.KindIntegrity, "crc.Adapt", fmt.Errorf("unknown drop %s", dropID))
	}
	if d.State != StateAdapting {
		return types.NewError(types.KindDependency, "crc.Adapt", fmt.Errorf("drop %s is in state %s, expected Adapting", dropID, d.State))
	}
	d.Adaptation = &result
	return p.transitionLocked(d, StateValidating)
}

// Validate runs the validation phase and assigns a sandbox per §4.10's
// source-type policy (or the manifest override).
func (p *Pipeline) Validate(dropID string, result ValidationResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.drops[dropID]
	if !ok {
		return types.NewError(types.KindIntegrity, "crc.Validate", fmt.Errorf("unknown drop %s", dropID))
	}
	if d.State != StateValidating {
		return types.NewError(types.KindDependency, "crc.Validate", fmt.Errorf("drop %s is in state %s, expected Validating", dropID, d.State))
	}
	d.Validation = &result
	d.Sandbox = d.Manifest.resolvedSandbox()
	return p.transitionLocked(d, StateInSandbox)
}

// MarkReadyToMerge transitions a validated, in-sandbox drop forward once
// its own readiness criteria hold.
func (p *Pipeline) MarkReadyToMerge(dropID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.drops[dropID]
	if !ok {
		return types.NewError(types.KindIntegrity, "crc.MarkReadyToMerge", fmt.Errorf("unknown drop %s", dropID))
	}
	if d.Validation == nil || !d.Validation.IsReady() {
		return types.NewError(types.KindDependency, "crc.MarkReadyToMerge", fmt.Errorf("drop %s is not ready", dropID))
	}
	return p.transitionLocked(d, StateReadyToMerge)
}

// ConflictChecker is a pre-merge hook; true blocks merge. Callers supply
// their own conflict predicate (e.g. comparing touched file sets) since
// the pipeline has no inherent notion of overlapping changes.
type ConflictChecker func(sources []*Drop) bool

// MergeToIntegration implements §4.10's merge_to_integration(sources):
// every named source must be ReadyToMerge and conflict-free; on success
// each becomes Merged and a new integration Drop is returned in Merging
// state.
func (p *Pipeline) MergeToIntegration(dropIDs []string, checkConflicts ConflictChecker) (*Drop, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sources := make([]*Drop, 0, len(dropIDs))
	for _, id := range dropIDs {
		d, ok := p.drops[id]
		if !ok {
			return nil, types.NewError(types.KindIntegrity, "crc.MergeToIntegration", fmt.Errorf("unknown drop %s", id))
		}
		if d.State != StateReadyToMerge {
			return nil, types.NewError(types.KindDependency, "crc.MergeToIntegration", fmt.Errorf("drop %s is not ready to merge (state=%s)", id, d.State))
		}
		sources = append(sources, d)
	}

	if checkConflicts != nil && checkConflicts(sources) {
		return nil, types.NewError(types.KindIntegrity, "crc.MergeToIntegration", fmt.Errorf("conflict detected among source drops"))
	}

	for _, d := range sources {
		if err := p.transitionLocked(d, StateMerged); err != nil {
			return nil, err
		}
	}

	integration := &Drop{
		ID:        uuid.New().String(),
		Manifest:  DropManifest{Name: "integration", SourceType: SourceInternal, Timestamp: time.Now()},
		State:     StateMerging,
		Sandbox:   SandboxD,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	p.drops[integration.ID] = integration
	return integration, nil
}

// PromoteToProduction completes the integration sandbox's own validation,
// transitioning Merging -> Ready.
func (p *Pipeline) PromoteToProduction(dropID string, result ValidationResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.drops[dropID]
	if !ok {
		return types.NewError(types.KindIntegrity, "crc.PromoteToProduction", fmt.Errorf("unknown drop %s", dropID))
	}
	if d.State != StateMerging {
		return types.NewError(types.KindDependency, "crc.PromoteToProduction", fmt.Errorf("drop %s is in state %s, expected Merging", dropID, d.State))
	}
	d.Validation = &result
	if !result.IsReady() {
		return types.NewError(types.KindDependency, "crc.PromoteToProduction", fmt.Errorf("integration drop %s failed validation", dropID))
	}
	return p.transitionLocked(d, StateReady)
}

// Fail transitions a drop to Failed with a reason, from any non-Archived
// state.
func (p *Pipeline) Fail(dropID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.drops[dropID]
	if !ok {
		return types.NewError(types.KindIntegrity, "crc.Fail", fmt.Errorf("unknown drop %s", dropID))
	}
	d.FailureReason = reason
	return p.transitionLocked(d, StateFailed)
}

// Retry re-queues a Failed drop for another analysis/adaptation pass,
// the state machine's sole permitted regression (§3).
func (p *Pipeline) Retry(dropID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.drops[dropID]
	if !ok {
		return types.NewError(types.KindIntegrity, "crc.Retry", fmt.Errorf("unknown drop %s", dropID))
	}
	if d.State != StateFailed {
		return types.NewError(types.KindDependency, "crc.Retry", fmt.Errorf("drop %s is in state %s, expected Failed", dropID, d.State))
	}
	d.FailureReason = ""
	d.Analysis = nil
	d.Adaptation = nil
	d.Validation = nil
	return p.transitionLocked(d, StateQueued)
}

// Cancel fails a drop with an operator-initiated reason; a no-op error
// if the drop is already terminal (Archived).
func (p *Pipeline) Cancel(dropID string) error {
	return p.Fail(dropID, "cancelled by operator")
}

// Get returns a drop by id.
func (p *Pipeline) Get(dropID string) (*Drop, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	d, ok := p.drops[dropID]
	return d, ok
}

// List returns every tracked drop.
func (p *Pipeline) List() []*Drop {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Drop, 0, len(p.drops))
	for _, d := range p.drops {
		out = append(out, d)
	}
	return out
}

// ExpireRetention auto-transitions Ready/Merged drops older than their
// source type's retention window to Archived (§4.10).
func (p *Pipeline) ExpireRetention(now time.Time) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var archived []string
	for _, d := range p.drops {
		if d.State != StateReady && d.State != StateMerged {
			continue
		}
		window := time.Duration(retentionDays(d.Manifest.SourceType)) * 24 * time.Hour
		if now.Sub(d.UpdatedAt) < window {
			continue
		}
		if err := p.transitionLocked(d, StateArchived); err == nil {
			archived = append(archived, d.ID)
		}
	}
	return archived
}

func (p *Pipeline) transitionLocked(d *Drop, next State) error {
	if !CanTransition(d.State, next) {
		return types.NewError(types.KindIntegrity, "crc.transitionLocked", fmt.Errorf("invalid transition %s -> %s for drop %s", d.State, next, d.ID))
	}
	d.State = next
	d.UpdatedAt = time.Now()
	return nil
}
