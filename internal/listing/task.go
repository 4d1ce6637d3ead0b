// internal/listing/task.go
package listing

import (
	"fmt"
	"sort"
	"time"
)

// TaskState is the lifecycle state of a FetchTask.
type TaskState int

const (
	TaskQueued TaskState = iota
	TaskRunning
	TaskCompleted
	TaskFailed
	TaskTimedOut
)

func (s TaskState) String() string {
	return [...]string{"queued", "running", "completed", "failed", "timed_out"}[s]
}

// Terminal reports whether no further transitions are allowed.
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskTimedOut
}

// FetchTask is one source fetch inside one aggregation call.
type FetchTask struct {
	Source   string
	Query    string
	Filters  Filters
	MaxPages int
	Timeout  time.Duration
	State    TaskState
}

// Transition moves the task to next, rejecting illegal moves.
func (t *FetchTask) Transition(next TaskState) error {
	ok := false
	switch t.State {
	case TaskQueued:
		ok = next == TaskRunning || next == TaskTimedOut
	case TaskRunning:
		ok = next.Terminal()
	}
	if !ok {
		return fmt.Errorf("task %s: illegal transition %s -> %s", t.Source, t.State, next)
	}
	t.State = next
	return nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
