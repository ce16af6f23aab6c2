// Package scheduler implements the Orchestrator & Scheduler (C9): a
// priority-ordered task queue, capability-based agent matching, dependency
// gating, and the dispatch loop that ties them together.
package scheduler

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a scheduled Task.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusAssigned  Status = "Assigned"
	StatusInProgress Status = "InProgress"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
	StatusCancelled Status = "Cancelled"
)

// FailureReason qualifies why a task ended in Failed.
type FailureReason string

const (
	ReasonTimeout         FailureReason = "Timeout"
	ReasonExecutionError  FailureReason = "ExecutionError"
	ReasonDependencyFailed FailureReason = "DependencyFailed"
)

// Task is a unit of schedulable work.
type Task struct {
	ID                  string
	Description         string
	Priority            int // 0-6, 0=emergency, 1=critical
	RequiredCapabilities []string
	Dependencies        []string
	BudgetSensitive      bool

	Status         Status
	AssignedAgent  string
	FailureReason  FailureReason
	CancelCause    string
	CancelRequested bool

	Deadline    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	Metadata map[string]string
}

// NewTask constructs a Pending task with sane defaults.
func NewTask(id, description string, priority int, requiredCapabilities []string) *Task {
	now := time.Now()
	return &Task{
		ID:                   id,
		Description:          description,
		Priority:             priority,
		RequiredCapabilities: requiredCapabilities,
		Status:               StatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
		Metadata:             make(map[string]string),
	}
}

// Validate checks invariant field values.
func (t *Task) Validate() error {
	if t.Priority < 0 || t.Priority > 6 {
		return fmt.Errorf("priority must be between 0 and 6")
	}
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	return nil
}

// IsTerminal reports whether the task has reached a final status.
func (t *Task) IsTerminal() bool {
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// RequiresSensitiveApproval reports whether the task's required
// capabilities include "sensitive" — used by the supervised operating mode.
func (t *Task) RequiresSensitiveApproval() bool {
	for _, c := range t.RequiredCapabilities {
		if c == "sensitive" {
			return true
		}
	}
	return false
}

// IsCriticalOrAbove reports priority <= Critical (priority 1).
func (t *Task) IsCriticalOrAbove() bool {
	return t.Priority <= 1
}
