package jobs

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/smazurov/procexec/internal/events"
	"github.com/smazurov/procexec/internal/logging"
	"github.com/smazurov/procexec/internal/process"
)

// Runner runs jobs and reports their lifecycle on Bus.
type Runner struct {
	// Bus receives lifecycle events. May be nil.
	Bus *events.Bus

	// Logger for runner and executor diagnostics. If nil, uses logging.GetLogger("jobs").
	Logger logging.Logger

	// KillGrace and MaxLineSize are passed to every executor. Zero means the
	// executor default.
	KillGrace   time.Duration
	MaxLineSize int

	// Hooks are installed on every executor. Nil hooks keep the defaults.
	Hooks process.Hooks

	mu      sync.Mutex
	running map[string]*execution
}

// ErrNotRunning is returned by Kill for an unknown or finished execution.
var ErrNotRunning = errors.New("execution not running")

type execution struct {
	job string
	e   *process.Executor
}

// Execution describes a job whose process is running.
type Execution struct {
	ID        string        `json:"id" doc:"Executor identifier"`
	Job       string        `json:"job" example:"build" doc:"Job name"`
	Command   []string      `json:"command" doc:"Launched argv"`
	Pid       int           `json:"pid" example:"4242" doc:"Process id"`
	State     process.State `json:"state" example:"running" doc:"Executor state"`
	StartTime time.Time     `json:"start_time" doc:"Launch time"`
}

func (r *Runner) track(job string, e *process.Executor) func() {
	r.mu.Lock()
	if r.running == nil {
		r.running = make(map[string]*execution)
	}
	r.running[e.ID()] = &execution{job: job, e: e}
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.running, e.ID())
		r.mu.Unlock()
	}
}

// Running lists the executions that have not finished yet, oldest first.
func (r *Runner) Running() []Execution {
	r.mu.Lock()
	list := make([]Execution, 0, len(r.running))
	for id, x := range r.running {
		list = append(list, Execution{
			ID:        id,
			Job:       x.job,
			Command:   x.e.Command(),
			Pid:       x.e.Pid(),
			State:     x.e.State(),
			StartTime: x.e.StartTime(),
		})
	}
	r.mu.Unlock()

	slices.SortFunc(list, func(a, b Execution) int {
		return a.StartTime.Compare(b.StartTime)
	})
	return list
}

// Kill requests termination of a running execution. It reports whether
// this call was the one that killed it; the execution then finishes with
// an INTERRUPTED error.
func (r *Runner) Kill(id string) (bool, error) {
	r.mu.Lock()
	x, ok := r.running[id]
	r.mu.Unlock()
	if !ok {
		return false, ErrNotRunning
	}
	r.logger().Info("Kill requested", "job", x.job, "id", id)
	return x.e.Kill(), nil
}

func (r *Runner) logger() logging.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return logging.GetLogger("jobs")
}

// Run executes one job to completion. The result carries the job's outcome;
// launch failures are reported in Result.Err.
func (r *Runner) Run(ctx context.Context, job Job) *process.Result {
	logger := r.logger()

	argv, err := job.Argv()
	if err != nil {
		res := &process.Result{ExitCode: -1, StartTime: time.Now(), Err: err}
		r.publishFinished(job.Name, 0, res)
		return res
	}

	id := uuid.NewString()
	var pid int
	opts := &process.Options{
		ID:          id,
		Env:         job.Overrides(),
		Dir:         job.Dir,
		Hooks:       r.Hooks,
		Logger:      logger,
		MaxLineSize: r.MaxLineSize,
		KillGrace:   r.KillGrace,
		OnStart: func(id string, p int) {
			pid = p
			r.Bus.Publish(events.ExecStartedEvent{
				ID:        id,
				Job:       job.Name,
				Command:   argv,
				Pid:       p,
				Timestamp: now(),
			})
		},
		OnStateChange: func(id string, from, to process.State) {
			r.Bus.Publish(events.ExecStateChangedEvent{
				ID:        id,
				Job:       job.Name,
				From:      string(from),
				To:        string(to),
				Timestamp: now(),
			})
		},
		OnKill: func(id string, reason error) {
			r.Bus.Publish(events.ExecKilledEvent{
				ID:        id,
				Job:       job.Name,
				Reason:    KillReason(reason),
				Message:   reason.Error(),
				Timestamp: now(),
			})
		},
	}

	var stdin io.Reader
	if job.Stdin != "" {
		stdin = strings.NewReader(job.Stdin)
	}

	logger.Info("Running job", "job", job.Name, "id", id)
	res := r.execute(ctx, argv, opts, stdin, time.Duration(job.Timeout), job.Name)

	if res.Err != nil {
		logger.Warn("Job failed", "job", job.Name, "id", id, "error", res.Err)
	} else {
		logger.Info("Job finished", "job", job.Name, "id", id, "exit_code", res.ExitCode, "duration", res.Duration)
	}

	r.publishFinished(job.Name, pid, res)
	return res
}

func (r *Runner) execute(ctx context.Context, argv []string, opts *process.Options, stdin io.Reader, timeout time.Duration, job string) *process.Result {
	e, err := process.New(argv, opts)
	if err != nil {
		return &process.Result{ID: opts.ID, Command: argv, ExitCode: -1, StartTime: time.Now(), Err: err}
	}
	untrack := r.track(job, e)
	defer untrack()
	return e.Complete(ctx, stdin, timeout)
}

// RunAll runs jobs side by side, at most concurrency at a time (zero means
// no limit). Each job gets its own executor; one job's failure does not
// affect the others. Results are returned in job order.
func (r *Runner) RunAll(ctx context.Context, jobs []Job, concurrency int) []*process.Result {
	results := make([]*process.Result, len(jobs))

	var g errgroup.Group
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i := range jobs {
		g.Go(func() error {
			results[i] = r.Run(ctx, jobs[i])
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *Runner) publishFinished(job string, pid int, res *process.Result) {
	ev := events.ExecFinishedEvent{
		ID:          res.ID,
		Job:         job,
		Pid:         pid,
		ExitCode:    res.ExitCode,
		Outcome:     Outcome(res),
		DurationSec: res.Duration.Seconds(),
		StdoutLines: len(res.Stdout),
		StderrLines: len(res.Stderr),
		Timestamp:   now(),
	}
	if res.Err != nil {
		ev.ErrorCode = string(process.CodeOf(res.Err))
		ev.Error = res.Err.Error()
	}
	r.Bus.Publish(ev)
}

// Outcome classifies a result for events and metrics.
func Outcome(res *process.Result) string {
	switch {
	case res.Err == nil && res.ExitCode == 0:
		return events.OutcomeSuccess
	case res.Err == nil:
		return events.OutcomeExitCode
	case process.IsTimeout(res.Err):
		return events.OutcomeTimeout
	case process.IsInterrupted(res.Err):
		return events.OutcomeKilled
	default:
		return events.OutcomeError
	}
}

// KillReason names the cause passed to a kill.
func KillReason(reason error) string {
	switch process.CodeOf(reason) {
	case process.ErrTimeout:
		return "timeout"
	case process.ErrInterrupted:
		return "interrupted"
	case process.ErrHandler:
		return "handler"
	case process.ErrIO:
		return "io"
	case process.ErrUnexpected:
		return "unexpected"
	default:
		return "caller"
	}
}

func now() string {
	return time.Now().Format(time.RFC3339)
}
