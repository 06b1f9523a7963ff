package events

// Event type constants for kelindar/event.
const (
	TypeExecStarted uint32 = iota + 1
	TypeExecStateChanged
	TypeExecKilled
	TypeExecFinished
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// Outcomes reported in ExecFinishedEvent. OutcomeKilled covers interrupts
// and caller kills; OutcomeError covers launch, handler, IO and unexpected
// failures.
const (
	OutcomeSuccess  = "success"
	OutcomeExitCode = "exit_code"
	OutcomeTimeout  = "timeout"
	OutcomeKilled   = "killed"
	OutcomeError    = "error"
)

// ExecStartedEvent is published once a process has been launched.
type ExecStartedEvent struct {
	ID        string   `json:"id" example:"0b6c7f5e-8a5e-4d7e-9c0f-2f0d7c1b9a11" doc:"Executor identifier"`
	Job       string   `json:"job" example:"build" doc:"Job name"`
	Command   []string `json:"command" doc:"Launched argv"`
	Pid       int      `json:"pid" example:"4242" doc:"Process id"`
	Timestamp string   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Launch time"`
}

// Type returns the event type identifier for ExecStartedEvent.
func (e ExecStartedEvent) Type() uint32 { return TypeExecStarted }

// ExecStateChangedEvent reports an executor lifecycle transition.
type ExecStateChangedEvent struct {
	ID        string `json:"id" doc:"Executor identifier"`
	Job       string `json:"job" doc:"Job name"`
	From      string `json:"from" example:"running" doc:"Previous state"`
	To        string `json:"to" example:"joining" doc:"New state"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Transition time"`
}

// Type returns the event type identifier for ExecStateChangedEvent.
func (e ExecStateChangedEvent) Type() uint32 { return TypeExecStateChanged }

// ExecKilledEvent is published when a kill is requested for a process.
type ExecKilledEvent struct {
	ID        string `json:"id" doc:"Executor identifier"`
	Job       string `json:"job" doc:"Job name"`
	Reason    string `json:"reason" example:"timeout" doc:"Kill reason: timeout, interrupted, handler, io, unexpected, caller"`
	Message   string `json:"message" doc:"Kill cause"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Kill time"`
}

// Type returns the event type identifier for ExecKilledEvent.
func (e ExecKilledEvent) Type() uint32 { return TypeExecKilled }

// ExecFinishedEvent is published when Join has returned.
type ExecFinishedEvent struct {
	ID          string  `json:"id" doc:"Executor identifier"`
	Job         string  `json:"job" doc:"Job name"`
	Pid         int     `json:"pid" example:"4242" doc:"Process id, 0 if the launch failed"`
	ExitCode    int     `json:"exit_code" example:"0" doc:"Exit code, -1 if unknown"`
	Outcome     string  `json:"outcome" example:"success" doc:"success, exit_code, timeout, killed or error"`
	ErrorCode   string  `json:"error_code,omitempty" example:"TIMEOUT" doc:"Executor error code"`
	Error       string  `json:"error,omitempty" doc:"Error message"`
	DurationSec float64 `json:"duration_seconds" example:"1.25" doc:"Wall time from launch to end of join"`
	StdoutLines int     `json:"stdout_lines" doc:"Captured stdout lines"`
	StderrLines int     `json:"stderr_lines" doc:"Captured stderr lines"`
	Timestamp   string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Finish time"`
}

// Type returns the event type identifier for ExecFinishedEvent.
func (e ExecFinishedEvent) Type() uint32 { return TypeExecFinished }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"api" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
