// Package queue keeps generation tasks in process memory and advances them
// through pending, processing and a terminal state.
package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrTaskNotPending = errors.New("task is not pending")
)

// Task is one queued generation job.
type Task struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	UserID     string                 `json:"userId"`
	Status     Status                 `json:"status"`
	Progress   int                    `json:"progress"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Result     map[string]interface{} `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
	FinishedAt *time.Time             `json:"finishedAt,omitempty"`

	seq int64
}

// Terminal reports whether the task has completed or failed.
func (t Task) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// Registry is the mutex-guarded task table shared by HTTP handlers and the sweeper.
type Registry struct {
	mu    sync.Mutex
	tasks map[string]*Task
	seq   int64
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task), now: time.Now}
}

// Enqueue records a new pending task and returns a copy of it. The type is not validated.
func (r *Registry) Enqueue(taskType, userID string, context map[string]interface{}) Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	task := &Task{
		ID:        uuid.NewString(),
		Type:      taskType,
		UserID:    userID,
		Status:    StatusPending,
		Context:   context,
		CreatedAt: r.now(),
		seq:       r.seq,
	}
	r.tasks[task.ID] = task
	return *task
}

// List returns every task, newest first.
func (r *Registry) List() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].seq > out[j].seq
	})
	return out
}

func (r *Registry) Get(id string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Cancel removes a pending task. Tasks in any other state are left untouched.
func (r *Registry) Cancel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if t.Status != StatusPending {
		return ErrTaskNotPending
	}
	delete(r.tasks, id)
	return nil
}

// pendingIDs returns the ids of pending tasks, oldest first.
func (r *Registry) pendingIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make([]*Task, 0)
	for _, t := range r.tasks {
		if t.Status == StatusPending {
			pending = append(pending, t)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].seq < pending[j].seq })

	ids := make([]string, len(pending))
	for i, t := range pending {
		ids[i] = t.ID
	}
	return ids
}

// claim moves a pending task to processing. It fails when the task was
// cancelled or already claimed.
func (r *Registry) claim(id string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status != StatusPending {
		return Task{}, false
	}
	t.Status = StatusProcessing
	t.Progress = 0
	return *t, true
}

func (r *Registry) setProgress(id string, progress int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tasks[id]; ok && t.Status == StatusProcessing {
		t.Progress = progress
	}
}

// finish records the terminal state. A nil cause completes the task with result.
func (r *Registry) finish(id string, result map[string]interface{}, cause error) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Terminal() {
		return Task{}, false
	}
	now := r.now()
	t.FinishedAt = &now
	if cause != nil {
		t.Status = StatusFailed
		t.Error = cause.Error()
		if t.Error == "" {
			t.Error = "Unknown error"
		}
		return *t, true
	}
	t.Status = StatusCompleted
	t.Progress = 100
	t.Result = result
	return *t, true
}
