// Package crc implements the Code-Drop Pipeline (C14): ingest, analysis,
// adaptation, validation/sandbox assignment, promotion to integration, and
// content-addressed archival with retention.
package crc

import (
	"time"
)

// SourceType classifies where a drop originated.
type SourceType string

const (
	SourceExternalRepo SourceType = "ExternalRepo"
	SourceFork         SourceType = "Fork"
	SourceMirror       SourceType = "Mirror"
	SourceStale        SourceType = "Stale"
	SourceInternal      SourceType = "Internal"
)

// folderName maps a SourceType to its incoming/archive folder name (§6.3).
func (s SourceType) folderName() string {
	switch s {
	case SourceExternalRepo:
		return "repos"
	case SourceFork:
		return "forks"
	case SourceMirror:
		return "mirrors"
	case SourceStale:
		return "stale"
	default:
		return "repos"
	}
}

// Priority is the drop's scheduling priority within the pipeline.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityNormal Priority = "Normal"
)

// defaultPriority returns the per-source-type default priority (§3 of
// SPEC_FULL's original_source supplement).
func defaultPriority(s SourceType) Priority {
	if s == SourceExternalRepo {
		return PriorityHigh
	}
	return PriorityNormal
}

// SandboxName is a lane a drop may be validated and merged into.
type SandboxName string

const (
	SandboxA SandboxName = "A"
	SandboxB SandboxName = "B"
	SandboxC SandboxName = "C"
	SandboxD SandboxName = "D" // integration sandbox
)

// defaultSandbox returns the per-source-type default sandbox assignment
// (§4.10): ExternalRepo->A, Fork->B, Mirror->A, Stale->C.
func defaultSandbox(s SourceType) SandboxName {
	switch s {
	case SourceExternalRepo:
		return SandboxA
	case SourceFork:
		return SandboxB
	case SourceMirror:
		return SandboxA
	case SourceStale:
		return SandboxC
	default:
		return SandboxA
	}
}

// retentionDays returns the archival retention window for a SourceType
// (§4.10).
func retentionDays(s SourceType) int {
	switch s {
	case SourceStale:
		return 90
	case SourceExternalRepo:
		return 180
	case SourceFork:
		return 90
	case SourceMirror:
		return 30
	case SourceInternal:
		return 365
	default:
		return 90
	}
}

// DropManifest is produced by the ingest phase.
type DropManifest struct {
	Name       string
	Source     string
	SourceType SourceType
	Timestamp  time.Time
	Priority   Priority
	Metadata   map[string]string

	// SandboxOverride, when non-empty, wins over the source-type default
	// sandbox assignment (resolved Open Question #2).
	SandboxOverride SandboxName
}

// resolvedSandbox returns SandboxOverride if set, else the source-type
// default.
func (m DropManifest) resolvedSandbox() SandboxName {
	if m.SandboxOverride != "" {
		return m.SandboxOverride
	}
	return defaultSandbox(m.SourceType)
}

// AnalysisResult is produced by the analysis phase.
type AnalysisResult struct {
	FilesCount     int
	LinesCount     int
	Languages      []string
	Dependencies   []string
	PatternsFound  []string
	Issues         []string
	AIConfidence   float64 // [0,1]
}

// AdaptationResult is produced by the adaptation phase.
type AdaptationResult struct {
	ChangesMade   bool
	FilesModified []string
	TestsGenerated int
	AIConfidence  float64
	AutoApproved  bool
	DiffSummary   string
	SandboxReady  bool
}

// resolveAutoApproved computes AdaptationResult.AutoApproved per §4.10.
func resolveAutoApproved(confidence, threshold float64) bool {
	return confidence >= threshold
}

// ValidationResult captures the sandbox readiness criteria (§4.11).
type ValidationResult struct {
	TestsPassed    bool
	Coverage       float64
	SecurityScan   bool
	PerformanceOK  bool
	CodeReview     bool
	Documentation  bool
}

// IsReady reports whether every readiness criterion holds.
func (v ValidationResult) IsReady() bool {
	return v.TestsPassed && v.Coverage >= 80.0 && v.SecurityScan && v.PerformanceOK && v.CodeReview && v.Documentation
}
