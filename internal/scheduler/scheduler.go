package scheduler

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/agentkernel/core/internal/hub"
	"github.com/agentkernel/core/internal/telemetry"
	"github.com/agentkernel/core/internal/types"
)

// OperatingMode governs whether task assignment requires human approval.
type OperatingMode string

const (
	ModeAutonomous OperatingMode = "autonomous"
	ModeSupervised OperatingMode = "supervised"
	ModeInteractive OperatingMode = "interactive"
)

// ApprovalStatus is the state of an ApprovalRequest.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "Pending"
	ApprovalApproved ApprovalStatus = "Approved"
	ApprovalRejected ApprovalStatus = "Rejected"
	ApprovalExpired  ApprovalStatus = "Expired"
)

// ApprovalRequest gates the assignment step in supervised/interactive mode.
type ApprovalRequest struct {
	TaskID      string
	SubmittedAt time.Time
	Status      ApprovalStatus
}

// AgentSource is the subset of the Agent Registry the scheduler consults
// for capability matching. Satisfied by *registry.Registry.
type AgentSource interface {
	All() []types.AgentMetadata
	Get(id string) (types.AgentMetadata, bool)
	Put(types.AgentMetadata)
}

const (
	defaultHeartbeatInterval = 10 * time.Second
	healthMonitorInterval    = 30 * time.Second
	rollingAverageAlpha      = 0.1
)

// Scheduler runs the C9 dispatch loop: task intake, dependency gating,
// capability matching, assignment, completion, and health monitoring.
type Scheduler struct {
	mu       sync.Mutex
	queue    *TaskQueue
	agents   AgentSource
	hub      *hub.Hub
	scaling  *telemetry.Policy
	telemetryReg *telemetry.Registry
	mode     OperatingMode
	approvals map[string]*ApprovalRequest
	approvalPolicy *ApprovalPolicy

	heartbeatInterval time.Duration
}

// NewScheduler constructs a Scheduler in the given operating mode. The
// approval gate is evaluated through the embedded Rego policy; if that
// policy fails to compile, the scheduler falls back to the hardcoded
// mode rules from §4.7 and logs the compilation error.
func NewScheduler(agents AgentSource, h *hub.Hub, scaling *telemetry.Policy, reg *telemetry.Registry, mode OperatingMode) *Scheduler {
	policy, err := NewApprovalPolicy()
	if err != nil {
		log.Printf("[SCHEDULER] approval policy compilation failed, using fallback rules: %v", err)
		policy = nil
	}
	return &Scheduler{
		queue:             NewTaskQueue(),
		agents:            agents,
		hub:               h,
		scaling:           scaling,
		telemetryReg:      reg,
		mode:              mode,
		approvals:         make(map[string]*ApprovalRequest),
		approvalPolicy:    policy,
		heartbeatInterval: defaultHeartbeatInterval,
	}
}

// Submit validates and enqueues a task, opening an ApprovalRequest when the
// operating mode requires one.
func (s *Scheduler) Submit(t *Task) error {
	if err := t.Validate(); err != nil {
		return types.NewError(types.KindConfiguration, "scheduler.Submit", err)
	}

	s.mu.Lock()
	if s.requiresApprovalLocked(t) {
		s.approvals[t.ID] = &ApprovalRequest{TaskID: t.ID, SubmittedAt: time.Now(), Status: ApprovalPending}
	}
	s.mu.Unlock()

	s.queue.Push(t)
	return nil
}

func (s *Scheduler) requiresApprovalLocked(t *Task) bool {
	if s.approvalPolicy != nil {
		result, err := s.approvalPolicy.RequiresApproval(s.mode, t)
		if err == nil {
			return result
		}
		log.Printf("[SCHEDULER] approval policy evaluation failed, using fallback rules: %v", err)
	}
	switch s.mode {
	case ModeInteractive:
		return true
	case ModeSupervised:
		return t.RequiresSensitiveApproval() || t.IsCriticalOrAbove()
	default:
		return false
	}
}

// Approve marks a pending ApprovalRequest Approved, unblocking assignment.
func (s *Scheduler) Approve(taskID string) error {
	return s.resolveApproval(taskID, ApprovalApproved)
}

// Reject marks a pending ApprovalRequest Rejected.
func (s *Scheduler) Reject(taskID string) error {
	return s.resolveApproval(taskID, ApprovalRejected)
}

func (s *Scheduler) resolveApproval(taskID string, status ApprovalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.approvals[taskID]
	if !ok {
		return types.NewError(types.KindIntegrity, "scheduler.resolveApproval", fmt.Errorf("no approval request for task %s", taskID))
	}
	req.Status = status
	return nil
}

func (s *Scheduler) approvalBlocks(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.approvals[taskID]
	if !ok {
		return false
	}
	return req.Status != ApprovalApproved
}

// DispatchOnce runs one iteration of the scheduler loop's body (steps 1-5
// of §4.7) and reports whether a task was assigned.
func (s *Scheduler) DispatchOnce() (assigned bool, backoff time.Duration, err error) {
	t := s.queue.PopPending()
	if t == nil {
		return false, 0, nil
	}

	if ok, cause := s.evaluateDependencies(t); !ok {
		if cause != "" {
			t.Status = StatusCancelled
			t.CancelCause = cause
			t.UpdatedAt = time.Now()
			s.queue.Complete(t)
			return false, 0, nil
		}
		// Dependency not yet satisfied: requeue and back off.
		s.queue.Requeue(t)
		return false, s.backoffInterval(), nil
	}

	if s.approvalBlocks(t.ID) {
		s.queue.Requeue(t)
		return false, s.backoffInterval(), nil
	}

	agent, ok := s.matchAgent(t)
	if !ok {
		s.queue.Requeue(t)
		return false, s.backoffInterval(), nil
	}

	s.assign(t, agent)
	return true, 0, nil
}

// evaluateDependencies checks that every dependency is Completed. A
// Failed/Cancelled dependency propagates: the caller cancels the dependent
// with a cause. Returns (ready, cancelCause).
func (s *Scheduler) evaluateDependencies(t *Task) (bool, string) {
	for _, depID := range t.Dependencies {
		dep, ok := s.queue.Completed(depID)
		if !ok {
			return false, ""
		}
		if dep.Status != StatusCompleted {
			return false, fmt.Sprintf("dependency %s ended in %s", depID, dep.Status)
		}
	}
	return true, ""
}

// matchAgent implements §4.7 step 3: capability-based matching with the
// documented tie-break order.
func (s *Scheduler) matchAgent(t *Task) (types.AgentMetadata, bool) {
	var candidates []types.AgentMetadata
	for _, a := range s.agents.All() {
		if !a.HasAllCapabilities(t.RequiredCapabilities) {
			continue
		}
		if a.Status != types.AgentOnline && a.Status != types.AgentIdle {
			continue
		}
		if a.LoadFactor >= 1.0 {
			continue
		}
		candidates = append(candidates, a)
	}
	if len(candidates) == 0 {
		return types.AgentMetadata{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.LoadFactor != b.LoadFactor {
			return a.LoadFactor < b.LoadFactor
		}
		if a.SuccessRate != b.SuccessRate {
			return a.SuccessRate > b.SuccessRate
		}
		if a.AvgResponseMs != b.AvgResponseMs {
			return a.AvgResponseMs < b.AvgResponseMs
		}
		return a.LastHeartbeat.Before(b.LastHeartbeat)
	})
	return candidates[0], true
}

// assign performs §4.7 step 5: mark assigned, emit TaskAssignment, and
// increment the agent's load factor.
func (s *Scheduler) assign(t *Task, agent types.AgentMetadata) {
	now := time.Now()
	t.Status = StatusAssigned
	t.AssignedAgent = agent.ID
	t.UpdatedAt = now
	t.StartedAt = &now
	s.queue.Activate(t)

	agent.LoadFactor += s.loadUnit()
	agent.Status = types.AgentBusy
	s.agents.Put(agent)

	if s.hub != nil {
		msg := hub.NewMessage("TaskAssignment", "scheduler", "orchestrator", map[string]interface{}{
			"task_id":  t.ID,
			"agent_id": agent.ID,
		}).ToAgent(agent.ID, string(agent.Category))
		if err := s.hub.Send(msg); err != nil {
			log.Printf("[SCHEDULER] failed to emit TaskAssignment for %s: %v", t.ID, err)
		}
	}
}

func (s *Scheduler) loadUnit() float64 {
	if s.scaling != nil && s.scaling.Limits.MaxConcurrency > 0 {
		return 1.0 / float64(s.scaling.Limits.MaxConcurrency)
	}
	return 1.0
}

func (s *Scheduler) backoffInterval() time.Duration {
	if s.scaling == nil || s.telemetryReg == nil {
		return 0
	}
	decision := s.scaling.Decide(s.telemetryReg)
	return time.Duration(decision.SandboxSchedulingDelayMs) * time.Millisecond
}

// CompleteTask implements §4.7 step 6: completion path with rolling
// averages (alpha=0.1) and decremented agent load.
func (s *Scheduler) CompleteTask(taskID string, success bool, responseMs float64) error {
	t, ok := s.queue.Active(taskID)
	if !ok {
		return types.NewError(types.KindIntegrity, "scheduler.CompleteTask", fmt.Errorf("task %s is not active", taskID))
	}

	now := time.Now()
	t.UpdatedAt = now
	t.CompletedAt = &now
	if success {
		t.Status = StatusCompleted
	} else {
		t.Status = StatusFailed
		t.FailureReason = ReasonExecutionError
	}

	if agent, ok := s.agents.Get(t.AssignedAgent); ok {
		agent.LoadFactor -= s.loadUnit()
		if agent.LoadFactor < 0 {
			agent.LoadFactor = 0
		}

		agent.TasksCompleted++
		successValue := 0.0
		if success {
			successValue = 1.0
		}
		if agent.TasksCompleted <= 1 {
			agent.SuccessRate = successValue
			agent.AvgResponseMs = responseMs
		} else {
			agent.SuccessRate = rollingAverageAlpha*successValue + (1-rollingAverageAlpha)*agent.SuccessRate
			agent.AvgResponseMs = rollingAverageAlpha*responseMs + (1-rollingAverageAlpha)*agent.AvgResponseMs
		}
		if agent.LoadFactor == 0 {
			agent.Status = types.AgentOnline
		}
		s.agents.Put(agent)
	}

	s.queue.Complete(t)
	return nil
}

// CancelTask cancels a task per §5's cancellation model: Pending tasks are
// removed immediately; Assigned/InProgress tasks are flagged and observed
// at the next cooperative checkpoint.
func (s *Scheduler) CancelTask(taskID, cause string) error {
	if s.queue.RemovePending(taskID) {
		return nil
	}
	if t, ok := s.queue.Active(taskID); ok {
		t.CancelRequested = true
		t.CancelCause = cause
		t.UpdatedAt = time.Now()
		return nil
	}
	return types.NewError(types.KindIntegrity, "scheduler.CancelTask", fmt.Errorf("task %s not found", taskID))
}

// CheckDeadlines implements the timeout monitor: active tasks whose
// deadline has passed transition to Failed{Timeout} and free their agent.
func (s *Scheduler) CheckDeadlines(now time.Time) []*Task {
	var timedOut []*Task
	for _, t := range s.queue.ActiveTasks() {
		if t.Deadline == nil || now.Before(*t.Deadline) {
			continue
		}
		t.Status = StatusFailed
		t.FailureReason = ReasonTimeout
		t.UpdatedAt = now
		if agent, ok := s.agents.Get(t.AssignedAgent); ok {
			agent.LoadFactor -= s.loadUnit()
			if agent.LoadFactor < 0 {
				agent.LoadFactor = 0
			}
			if agent.LoadFactor == 0 {
				agent.Status = types.AgentOnline
			}
			s.agents.Put(agent)
		}
		s.queue.Complete(t)
		timedOut = append(timedOut, t)
	}
	return timedOut
}

// CheckAgentHealth implements the health monitor loop (every 30s in
// production): agents whose last heartbeat exceeds 3x the heartbeat
// interval transition Offline and release their assigned tasks to pending.
func (s *Scheduler) CheckAgentHealth(now time.Time) []string {
	var offline []string
	staleAfter := 3 * s.heartbeatInterval

	for _, agent := range s.agents.All() {
		if agent.Status == types.AgentOffline {
			continue
		}
		if now.Sub(agent.LastHeartbeat) <= staleAfter {
			continue
		}
		agent.Status = types.AgentOffline
		s.agents.Put(agent)
		offline = append(offline, agent.ID)

		for _, t := range s.queue.ActiveTasks() {
			if t.AssignedAgent != agent.ID {
				continue
			}
			if _, ok := s.queue.ReleaseActive(t.ID); !ok {
				continue
			}
			t.Status = StatusPending
			t.AssignedAgent = ""
			t.UpdatedAt = now
			s.queue.Push(t)
		}
	}
	return offline
}

// HealthMonitorInterval returns the configured health monitor poll period.
func (s *Scheduler) HealthMonitorInterval() time.Duration {
	return healthMonitorInterval
}

// PendingLen returns the number of tasks awaiting dispatch.
func (s *Scheduler) PendingLen() int {
	return s.queue.PendingLen()
}
