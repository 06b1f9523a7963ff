package process

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/smazurov/procexec/internal/logging"
)

const defaultKillGrace = 5 * time.Second

// StateChangeCallback is called when an executor changes lifecycle state.
type StateChangeCallback func(id string, oldState, newState State)

// StartCallback is called once the process has been launched.
type StartCallback func(id string, pid int)

// KillCallback is called once, by whichever party first requests the kill.
type KillCallback func(id string, reason error)

// Options configures a new Executor. The zero value is usable.
type Options struct {
	// ID identifies the executor in logs and callbacks. Defaults to a random UUID.
	ID string

	// Env overrides the inherited environment. A nil value removes the
	// variable, a non-nil value sets it. The empty key is invalid.
	Env map[string]*string

	// Dir is the working directory. Empty means inherit.
	Dir string

	// Hooks receive output lines and the exit code.
	Hooks Hooks

	// Logger for executor diagnostics. If nil, uses logging.GetLogger("process").
	Logger logging.Logger

	// MaxLineSize, when positive, is the longest line a stream drainer
	// accepts; a longer line fails the drainer with IO. Zero means no limit.
	MaxLineSize int

	// KillGrace bounds how long a killed process may keep its output pipes
	// open before they are closed from our side. Default 5s.
	KillGrace time.Duration

	OnStart       StartCallback
	OnStateChange StateChangeCallback
	OnKill        KillCallback
}

// Value returns a pointer to v, for use in Options.Env.
func Value(v string) *string {
	return &v
}

func (o *Options) withDefaults() Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.Logger == nil {
		out.Logger = logging.GetLogger("process")
	}
	if l, ok := out.Logger.(*slog.Logger); ok {
		out.Logger = l.With("exec_id", out.ID)
	}
	if out.KillGrace <= 0 {
		out.KillGrace = defaultKillGrace
	}
	return out
}
