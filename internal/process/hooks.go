package process

import (
	"fmt"
	"runtime/debug"

	"github.com/smazurov/procexec/internal/logging"
)

// Hooks are caller-supplied callbacks run from the executor's tasks.
// A hook may return an error of any type; Join reports it as an ErrHandler
// *Error whose Cause is the hook's error.
type Hooks struct {
	// OnOutputLine is called for every stdout line, after the line has been
	// appended to the captured output.
	OnOutputLine func(line string) error

	// OnErrorLine is called for every stderr line, after the line has been
	// appended to the captured error output.
	OnErrorLine func(line string) error

	// OnExitCode is called once when the process terminates on its own.
	// It is not called when the process was killed.
	OnExitCode func(code int) error
}

// withDefaults fills unset hooks with logging-only implementations that never fail.
func (h Hooks) withDefaults(name string, logger logging.Logger) Hooks {
	if h.OnOutputLine == nil {
		h.OnOutputLine = func(line string) error {
			logger.Debug("Process output", "command", name, "line", line)
			return nil
		}
	}
	if h.OnErrorLine == nil {
		h.OnErrorLine = func(line string) error {
			logger.Warn("Process error output", "command", name, "line", line)
			return nil
		}
	}
	if h.OnExitCode == nil {
		h.OnExitCode = func(code int) error {
			if code != 0 {
				logger.Warn("Process exited with non-zero code", "command", name, "exit_code", code)
			}
			return nil
		}
	}
	return h
}

// PanicError carries a value recovered from a panicking hook.
type PanicError struct {
	Value any
	Stack string
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// callHook runs fn, turning a returned error into an ErrHandler error and a
// panic into an ErrUnexpected one.
func callHook(what string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newError(ErrUnexpected, what+" panicked", &PanicError{Value: r, Stack: string(debug.Stack())})
		}
	}()

	if hookErr := fn(); hookErr != nil {
		return newError(ErrHandler, what+" failed", hookErr)
	}
	return nil
}
