package models

import (
	"time"

	"github.com/smazurov/procexec/internal/jobs"
	"github.com/smazurov/procexec/internal/metrics"
	"github.com/smazurov/procexec/internal/stats"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"a1b2c3d" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Exec models
type ExecRequestData struct {
	Name      string            `json:"name,omitempty" example:"build" doc:"Job name used in events and metrics"`
	Command   string            `json:"command,omitempty" example:"sh -c 'echo hello'" doc:"Command line, split with shell-like quoting"`
	Args      []string          `json:"args,omitempty" doc:"Command argv, used verbatim. Mutually exclusive with command"`
	Env       map[string]string `json:"env,omitempty" doc:"Environment variables to set"`
	Unset     []string          `json:"unset,omitempty" doc:"Environment variables to remove"`
	Stdin     string            `json:"stdin,omitempty" doc:"Data written to the process's stdin before it is closed"`
	Dir       string            `json:"dir,omitempty" example:"/tmp" doc:"Working directory"`
	TimeoutMs int64             `json:"timeout_ms,omitempty" minimum:"0" example:"5000" doc:"Timeout in milliseconds, 0 for the server default"`
}

type ExecRequest struct {
	Body ExecRequestData
}

type ExecData struct {
	ID         string    `json:"id" doc:"Executor identifier"`
	Name       string    `json:"name" example:"build" doc:"Job name"`
	Command    []string  `json:"command" doc:"Launched argv"`
	ExitCode   int       `json:"exit_code" example:"0" doc:"Exit code, 128+signal if killed by a signal, -1 if unknown"`
	Outcome    string    `json:"outcome" example:"success" doc:"success, exit_code, timeout, killed or error"`
	Stdout     []string  `json:"stdout" doc:"Captured stdout lines"`
	Stderr     []string  `json:"stderr" doc:"Captured stderr lines"`
	StartTime  time.Time `json:"start_time" doc:"Launch time"`
	DurationMs float64   `json:"duration_ms" example:"12.5" doc:"Wall time from launch to end of join"`
	ErrorCode  string    `json:"error_code,omitempty" example:"TIMEOUT" doc:"Executor error code"`
	Error      string    `json:"error,omitempty" doc:"Error message"`
}

type ExecResponse struct {
	Body ExecData
}

type RunningData struct {
	Executions []jobs.Execution `json:"executions" doc:"Executions whose process has not been joined yet"`
}

type RunningResponse struct {
	Body RunningData
}

type KillRequest struct {
	ID string `path:"id" doc:"Executor identifier"`
}

type KillData struct {
	ID     string `json:"id" doc:"Executor identifier"`
	Killed bool   `json:"killed" doc:"False if a kill had already been requested"`
}

type KillResponse struct {
	Body KillData
}

// Stats models
type StatsData struct {
	Summary stats.Snapshot                 `json:"summary" doc:"Outcome counts and duration percentiles since startup"`
	Jobs    map[string]*metrics.JobMetrics `json:"jobs" doc:"Totals per job name"`
}

type StatsResponse struct {
	Body StatsData
}
