package process

import "sync/atomic"

// State represents the lifecycle state of an Executor.
type State string

// Executor states.
const (
	StateCreated  State = "created"  // Not launched yet
	StateRunning  State = "running"  // Process and tasks started
	StateJoining  State = "joining"  // Join in progress
	StateFinished State = "finished" // Join returned, output readable
)

// TaskState is the outcome of one of the three tasks an Executor runs.
type TaskState int32

// Task states. Completed, failed and cancelled are terminal.
const (
	TaskPending TaskState = iota
	TaskRunning
	TaskCompleted
	TaskFailed
	TaskCancelled
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	case TaskCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state can no longer change.
func (s TaskState) Terminal() bool {
	return s >= TaskCompleted
}

// task records the outcome of one concurrently running step.
// code and err are written once, before done is closed.
type task struct {
	name  string
	state atomic.Int32
	code  int
	err   error
	done  chan struct{}
}

func newTask(name string) *task {
	return &task{name: name, done: make(chan struct{})}
}

func (t *task) start() {
	t.state.CompareAndSwap(int32(TaskPending), int32(TaskRunning))
}

// finish moves the task into a terminal state. Only the first call has an effect.
func (t *task) finish(state TaskState, code int, err error) {
	current := TaskState(t.state.Load())
	if current.Terminal() {
		return
	}
	t.code = code
	t.err = err
	t.state.Store(int32(state))
	close(t.done)
}

func (t *task) State() TaskState {
	return TaskState(t.state.Load())
}

func (t *task) wait() {
	<-t.done
}
