// Package workflow implements the Workflow Engine (C10): stage graphs with
// sequential, parallel, conditional, and loop execution semantics.
package workflow

import (
	"time"
)

// StageStatus is the execution outcome of a Stage.
type StageStatus string

const (
	StageStatusPending   StageStatus = "Pending"
	StageStatusRunning   StageStatus = "Running"
	StageStatusCompleted StageStatus = "Completed"
	StageStatusFailed    StageStatus = "Failed"
	StageStatusSkipped   StageStatus = "Skipped"
)

// StageKind selects the execution strategy for a Stage.
type StageKind string

const (
	KindSequential StageKind = "sequential"
	KindParallel   StageKind = "parallel"
	KindConditional StageKind = "conditional"
	KindLoop       StageKind = "loop"
)

const defaultLoopIterationCap = 1024

// StageTask is one unit of work inside a Stage.
type StageTask struct {
	Name            string
	ActionName      string
	Parameters      map[string]interface{}
	AllowFailure    bool
	BudgetSensitive bool // eligible to be dropped by the Budget Guardian's RewritePlan (§4.9)
	Run             func(ctx map[string]interface{}) error
}

// Stage is a named node in the workflow graph.
type Stage struct {
	Name              string
	Kind              StageKind
	DependsOn         []string
	Tasks             []StageTask
	Predicate         string // gojq expression evaluated against context, for Conditional/Loop
	LoopIterationCap  int

	Status    StageStatus
	StartedAt *time.Time
	EndedAt   *time.Time
	Err       error
}

// effectiveIterationCap returns the configured cap, or the spec default.
func (s *Stage) effectiveIterationCap() int {
	if s.LoopIterationCap > 0 {
		return s.LoopIterationCap
	}
	return defaultLoopIterationCap
}
