package process

import (
	"context"
	"errors"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smazurov/procexec/internal/logging"
)

// errKilledByCaller is the cancellation cause when nothing more specific is known.
var errKilledByCaller = errors.New("process killed")

// Executor runs one external process. It writes to the process's stdin on
// request, drains stdout and stderr into hooks and reports a single outcome
// from Join.
type Executor struct {
	id      string
	name    string
	command []string
	opts    Options
	hooks   Hooks
	logger  logging.Logger

	cmd   *exec.Cmd
	pipes *pipes
	pid   int

	scope       context.Context
	cancelScope context.CancelCauseFunc
	killed      atomic.Bool

	group  errgroup.Group
	stdout *task
	stderr *task
	waiter *task

	output      lineBuffer
	errorOutput lineBuffer

	stdinOnce sync.Once
	stdinErr  error

	mu    sync.RWMutex
	state State

	joinMu   sync.Mutex
	joined   bool
	joinCode int
	joinErr  error

	startTime time.Time
	duration  time.Duration
}

// New launches command and starts draining its output.
// The returned Executor is running; call Join to collect the result.
func New(command []string, opts *Options) (*Executor, error) {
	o := opts.withDefaults()

	e := &Executor{
		id:      o.ID,
		name:    commandName(command),
		command: slices.Clone(command),
		opts:    o,
		logger:  o.Logger,
		state:   StateCreated,
		stdout:  newTask("stdout"),
		stderr:  newTask("stderr"),
		waiter:  newTask("exit"),
	}
	e.hooks = o.Hooks.withDefaults(e.name, e.logger)

	e.scope, e.cancelScope = context.WithCancelCause(context.Background())

	cmd, p, err := launch(e.scope, command, &o)
	if err != nil {
		e.cancelScope(err)
		if IsLaunch(err) {
			e.logger.Error("Failed to start process", "command", e.name, "error", err)
		}
		return nil, err
	}
	e.cmd = cmd
	e.pipes = p
	e.pid = cmd.Process.Pid
	e.startTime = time.Now()

	e.logger.Debug("Executing", "id", e.id, "command", e.name, "args", strings.Join(command, " "), "pid", e.pid)
	e.setState(StateRunning)
	if o.OnStart != nil {
		o.OnStart(e.id, e.pid)
	}

	e.group.SetLimit(3)
	e.group.Go(e.waitExit)
	e.group.Go(func() error {
		return e.drain(e.stdout, p.stdoutR, &e.output, "output line handler", e.hooks.OnOutputLine)
	})
	e.group.Go(func() error {
		return e.drain(e.stderr, p.stderrR, &e.errorOutput, "error line handler", e.hooks.OnErrorLine)
	})

	return e, nil
}

// ID returns the executor's identifier.
func (e *Executor) ID() string { return e.id }

// Command returns a copy of the launched argv.
func (e *Executor) Command() []string { return slices.Clone(e.command) }

// Pid returns the process id of the launched process.
func (e *Executor) Pid() int { return e.pid }

// StartTime returns when the process was launched.
func (e *Executor) StartTime() time.Time { return e.startTime }

// State returns the current lifecycle state.
func (e *Executor) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// IsFinished reports whether Join has completed.
func (e *Executor) IsFinished() bool {
	return e.State() == StateFinished
}

func (e *Executor) setState(newState State) {
	e.mu.Lock()
	oldState := e.state
	if oldState == newState || oldState == StateFinished {
		e.mu.Unlock()
		return
	}
	e.state = newState
	e.mu.Unlock()

	e.logger.Debug("State change", "from", oldState, "to", newState)
	if e.opts.OnStateChange != nil {
		e.opts.OnStateChange(e.id, oldState, newState)
	}
}

// Kill requests termination of the process. Join then reports INTERRUPTED
// unless an output handler failed first. Returns false if a kill was
// already requested.
func (e *Executor) Kill() bool {
	if e.IsFinished() {
		return false
	}
	return e.kill(errKilledByCaller)
}

// kill flips the cancellation token. Only the first caller cancels the scope.
func (e *Executor) kill(reason error) bool {
	if !e.killed.CompareAndSwap(false, true) {
		e.logger.Debug("Process already killed", "pid", e.pid, "reason", reason)
		return false
	}

	e.logger.Info("Killing process", "pid", e.pid, "reason", reason)
	e.cancelScope(reason)
	if e.opts.OnKill != nil {
		e.opts.OnKill(e.id, reason)
	}
	return true
}

func (e *Executor) killOnFailure(stream string, err error) {
	if e.killed.Load() {
		e.logger.Debug("Output handling failed after process was already killed", "stream", stream, "error", err)
		return
	}
	e.logger.Warn("Killing process due to error in output handling", "stream", stream, "error", err)
	e.kill(err)
}

// Write sends p to the process's stdin.
func (e *Executor) Write(p []byte) (int, error) {
	if e.IsFinished() {
		return 0, newError(ErrIllegalState, "process already finished", nil)
	}
	n, err := e.pipes.stdinW.Write(p)
	if err != nil {
		return n, newError(ErrIO, "write stdin of "+e.name, err)
	}
	return n, nil
}

// Print writes s to the process's stdin.
func (e *Executor) Print(s string) error {
	_, err := e.Write([]byte(s))
	return err
}

// Println writes s followed by a newline to the process's stdin.
func (e *Executor) Println(s string) error {
	return e.Print(s + "\n")
}

// SendEOF closes the process's stdin. Later calls are no-ops.
func (e *Executor) SendEOF() error {
	if e.IsFinished() {
		return newError(ErrIllegalState, "process already finished", nil)
	}
	if err := e.closeStdin(); err != nil {
		return newError(ErrIO, "close stdin of "+e.name, err)
	}
	return nil
}

func (e *Executor) closeStdin() error {
	e.stdinOnce.Do(func() {
		e.stdinErr = e.pipes.stdinW.Close()
	})
	return e.stdinErr
}

// Wait is Join without a timeout or cancellation.
func (e *Executor) Wait() (int, error) {
	return e.Join(context.Background(), 0)
}

// Join waits for the process to terminate and its output to be drained.
// A zero timeout waits indefinitely. On timeout or ctx cancellation the
// process is killed and reaped before Join returns.
//
// Errors are reported in order: timeout or cancellation, a failed exit
// hook, a stdout failure, a stderr failure, a kill. Every error path
// returns -1 as the code.
func (e *Executor) Join(ctx context.Context, timeout time.Duration) (int, error) {
	if timeout < 0 {
		return -1, newError(ErrInvalidArgument, "negative timeout", nil)
	}

	e.joinMu.Lock()
	defer e.joinMu.Unlock()

	if e.joined {
		return e.joinCode, e.joinErr
	}

	e.setState(StateJoining)
	code, err := e.join(ctx, timeout)
	e.finish()

	e.joined = true
	e.joinCode, e.joinErr = code, err
	return code, err
}

func (e *Executor) join(ctx context.Context, timeout time.Duration) (int, error) {
	if err := e.awaitExit(ctx, timeout); err != nil {
		return -1, err
	}

	switch e.waiter.State() {
	case TaskFailed:
		return -1, surface(e.name, e.waiter.err)
	case TaskCancelled:
		if err := e.streamFailure(); err != nil {
			return -1, err
		}
		return -1, newError(ErrInterrupted, "process "+e.name+" was killed", context.Cause(e.scope))
	default:
		if err := e.streamFailure(); err != nil {
			return -1, err
		}
		return e.waiter.code, nil
	}
}

// awaitExit blocks until the exit waiter is terminal, killing the process
// if the timeout expires or ctx is done first.
func (e *Executor) awaitExit(ctx context.Context, timeout time.Duration) error {
	select {
	case <-e.waiter.done:
		return nil
	default:
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-e.waiter.done:
		return nil
	case <-expired:
		e.logger.Warn("Process timed out, killing", "command", e.name, "timeout", timeout)
		err := newError(ErrTimeout, "process "+e.name+" did not finish within "+timeout.String(), nil)
		e.kill(err)
		return err
	case <-ctx.Done():
		cause := context.Cause(ctx)
		e.logger.Warn("Join interrupted, killing process", "command", e.name, "cause", cause)
		err := newError(ErrInterrupted, "waiting for process "+e.name+" was interrupted", cause)
		e.kill(err)
		return err
	}
}

func (e *Executor) streamFailure() error {
	e.stdout.wait()
	e.stderr.wait()

	if e.stdout.State() == TaskFailed {
		return surface(e.name, e.stdout.err)
	}
	if e.stderr.State() == TaskFailed {
		return surface(e.name, e.stderr.err)
	}
	return nil
}

// finish waits for every task, releases stdin and marks the executor finished.
func (e *Executor) finish() {
	_ = e.group.Wait()
	_ = e.closeStdin()
	e.cancelScope(nil)
	e.mu.Lock()
	e.duration = time.Since(e.startTime)
	e.mu.Unlock()
	e.setState(StateFinished)
}

// Output returns the captured stdout lines.
func (e *Executor) Output() ([]string, error) {
	if !e.IsFinished() {
		return nil, newError(ErrIllegalState, "process not finished", nil)
	}
	return e.output.snapshot(), nil
}

// ErrorOutput returns the captured stderr lines.
func (e *Executor) ErrorOutput() ([]string, error) {
	if !e.IsFinished() {
		return nil, newError(ErrIllegalState, "process not finished", nil)
	}
	return e.errorOutput.snapshot(), nil
}

// ExitCode returns the code the process exited with, including after a
// kill. -1 if it is unknown.
func (e *Executor) ExitCode() (int, error) {
	if !e.IsFinished() {
		return -1, newError(ErrIllegalState, "process not finished", nil)
	}
	return e.waiter.code, nil
}

// Duration returns the time from launch to the end of Join, or the time
// elapsed so far while still running.
func (e *Executor) Duration() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state != StateFinished {
		return time.Since(e.startTime)
	}
	return e.duration
}
