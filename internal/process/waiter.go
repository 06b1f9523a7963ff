package process

import (
	"time"
)

// waitExit reaps the process. The exit hook only runs for processes that
// terminated on their own.
func (e *Executor) waitExit() error {
	t := e.waiter
	t.start()

	waitErr := e.cmd.Wait()
	state := e.cmd.ProcessState

	if e.scope.Err() != nil {
		code := exitCodeFromState(state)
		e.logger.Debug("Killed process reaped", "pid", e.pid, "exit_code", code, "wait_error", waitErr)
		t.finish(TaskCancelled, code, nil)
		e.closeStuckStreams()
		return nil
	}

	if state == nil {
		err := newError(ErrUnexpected, "wait for "+e.name, waitErr)
		t.finish(TaskFailed, -1, err)
		return err
	}

	code := exitCodeFromState(state)
	if err := callHook("exit code handler", func() error { return e.hooks.OnExitCode(code) }); err != nil {
		t.finish(TaskFailed, code, err)
		return err
	}

	t.finish(TaskCompleted, code, nil)
	return nil
}

// closeStuckStreams gives the drainers KillGrace to reach EOF after a kill.
// Descendants that escaped the process group may still hold the write ends,
// in which case the read ends are closed from here.
func (e *Executor) closeStuckStreams() {
	timer := time.NewTimer(e.opts.KillGrace)
	defer timer.Stop()

	for _, d := range []struct {
		t *task
		f func() error
	}{
		{e.stdout, e.pipes.stdoutR.Close},
		{e.stderr, e.pipes.stderrR.Close},
	} {
		select {
		case <-d.t.done:
		case <-timer.C:
			e.logger.Warn("Output stream still open after kill, closing", "stream", d.t.name, "grace", e.opts.KillGrace)
			_ = d.f()
			// Fire immediately for the remaining stream.
			timer.Reset(0)
		}
	}
}
