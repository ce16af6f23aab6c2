package scheduler

import (
	"sort"
	"sync"
)

const defaultCompletedRingSize = 512

// TaskQueue partitions tasks into pending, active, and a bounded completed
// ring, per §4.7.
type TaskQueue struct {
	mu        sync.RWMutex
	pending   []*Task
	active    map[string]*Task
	completed []*Task
	ringSize  int
}

// NewTaskQueue constructs an empty queue with the default completed ring
// size.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		pending:  make([]*Task, 0),
		active:   make(map[string]*Task),
		ringSize: defaultCompletedRingSize,
	}
}

// Push inserts a task into pending, maintaining priority order.
func (q *TaskQueue) Push(t *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, t)
	q.sortPendingLocked()
}

// PopPending removes and returns the highest-priority pending task.
func (q *TaskQueue) PopPending() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	t := q.pending[0]
	q.pending = q.pending[1:]
	return t
}

// Requeue pushes a task back onto pending at its original priority (used
// when no capability match is found).
func (q *TaskQueue) Requeue(t *Task) {
	q.Push(t)
}

// Activate moves a task into the active map.
func (q *TaskQueue) Activate(t *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.active[t.ID] = t
}

// Complete moves a task out of active and appends it to the bounded
// completed ring, evicting the oldest entry if full.
func (q *TaskQueue) Complete(t *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.active, t.ID)
	q.completed = append(q.completed, t)
	if len(q.completed) > q.ringSize {
		q.completed = q.completed[len(q.completed)-q.ringSize:]
	}
}

// ReleaseActive removes a task from active without marking it terminal
// (used when an offline agent's work is returned to pending).
func (q *TaskQueue) ReleaseActive(id string) (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.active[id]
	if ok {
		delete(q.active, id)
	}
	return t, ok
}

// Active returns the task with the given id from the active map.
func (q *TaskQueue) Active(id string) (*Task, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	t, ok := q.active[id]
	return t, ok
}

// ActiveTasks returns a snapshot of every active task.
func (q *TaskQueue) ActiveTasks() []*Task {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]*Task, 0, len(q.active))
	for _, t := range q.active {
		out = append(out, t)
	}
	return out
}

// Completed returns a task from the completed ring by id, and whether it
// was found there. The task may have ended Completed, Failed or
// Cancelled; callers check its Status.
func (q *TaskQueue) Completed(id string) (*Task, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for i := len(q.completed) - 1; i >= 0; i-- {
		if q.completed[i].ID == id {
			return q.completed[i], true
		}
	}
	return nil, false
}

// RemovePending cancels a pending task immediately, removing it from the
// queue. Returns false if the task was not pending.
func (q *TaskQueue) RemovePending(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, t := range q.pending {
		if t.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	return false
}

// PendingLen returns the number of pending tasks.
func (q *TaskQueue) PendingLen() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.pending)
}

// CompletedHistory returns a copy of the completed ring.
func (q *TaskQueue) CompletedHistory() []*Task {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]*Task, len(q.completed))
	copy(out, q.completed)
	return out
}

func (q *TaskQueue) sortPendingLocked() {
	sort.SliceStable(q.pending, func(i, j int) bool {
		if q.pending[i].Priority != q.pending[j].Priority {
			return q.pending[i].Priority < q.pending[j].Priority
		}
		return q.pending[i].CreatedAt.Before(q.pending[j].CreatedAt)
	})
}
