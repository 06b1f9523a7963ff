package process

import (
	"context"
	"io"
	"time"
)

// Result is the outcome of a one-shot Run.
type Result struct {
	ID        string        `json:"id"`
	Command   []string      `json:"command"`
	ExitCode  int           `json:"exit_code"`
	Stdout    []string      `json:"stdout"`
	Stderr    []string      `json:"stderr"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// Run launches command, feeds it stdin (nil for none), joins it and
// collects everything into a Result. Launch failures are reported in
// Result.Err with an exit code of -1.
func Run(ctx context.Context, command []string, opts *Options, stdin io.Reader, timeout time.Duration) *Result {
	e, err := New(command, opts)
	if err != nil {
		return &Result{Command: command, ExitCode: -1, StartTime: time.Now(), Err: err}
	}
	return e.Complete(ctx, stdin, timeout)
}

// Complete feeds stdin (nil for none), joins with timeout and collects the
// Result. After a kill or timeout, Result.ExitCode is the post-kill code.
func (e *Executor) Complete(ctx context.Context, stdin io.Reader, timeout time.Duration) *Result {
	res := &Result{ID: e.ID(), Command: e.Command(), StartTime: e.StartTime()}

	if stdin == nil {
		_ = e.SendEOF()
	} else {
		go feedStdin(e, stdin)
	}

	res.ExitCode, res.Err = e.Join(ctx, timeout)
	if code, err := e.ExitCode(); err == nil && res.Err != nil {
		res.ExitCode = code
	}
	res.Stdout, _ = e.Output()
	res.Stderr, _ = e.ErrorOutput()
	res.Duration = e.Duration()
	return res
}

// feedStdin copies r into the process and closes stdin. Write errors mean
// the process stopped reading, which Join reports on its own.
func feedStdin(e *Executor, r io.Reader) {
	if _, err := io.Copy(e, r); err != nil && !IsIllegalState(err) {
		e.logger.Debug("Stopped feeding stdin", "error", err)
	}
	_ = e.SendEOF()
}
