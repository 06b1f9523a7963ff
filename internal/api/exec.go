package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/procexec/internal/api/models"
	"github.com/smazurov/procexec/internal/jobs"
	"github.com/smazurov/procexec/internal/metrics"
	"github.com/smazurov/procexec/internal/process"
)

const defaultJobName = "api"

// registerExecRoutes registers process execution and statistics routes.
func (s *Server) registerExecRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "exec",
		Method:      http.MethodPost,
		Path:        "/api/exec",
		Summary:     "Run Process",
		Description: "Run a process to completion and return its exit code and captured output. Process failures are reported in the body with status 200.",
		Tags:        []string{"exec"},
		Security:    withAuth(),
		Errors:      []int{400, 401},
	}, func(ctx context.Context, input *models.ExecRequest) (*models.ExecResponse, error) {
		job, err := s.jobFromRequest(&input.Body)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}

		res := s.runner.Run(ctx, job)
		if process.HasCode(res.Err, process.ErrInvalidArgument) {
			return nil, huma.Error400BadRequest(res.Err.Error())
		}

		return &models.ExecResponse{Body: execData(job.Name, res)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-running",
		Method:      http.MethodGet,
		Path:        "/api/exec",
		Summary:     "Running Processes",
		Description: "List executions started through this server that have not finished",
		Tags:        []string{"exec"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.RunningResponse, error) {
		return &models.RunningResponse{
			Body: models.RunningData{Executions: s.runner.Running()},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "kill-exec",
		Method:      http.MethodDelete,
		Path:        "/api/exec/{id}",
		Summary:     "Kill Process",
		Description: "Kill a running execution. The pending exec request then returns with error code INTERRUPTED.",
		Tags:        []string{"exec"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.KillRequest) (*models.KillResponse, error) {
		killed, err := s.runner.Kill(input.ID)
		if errors.Is(err, jobs.ErrNotRunning) {
			return nil, huma.Error404NotFound("no running execution " + input.ID)
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("kill failed", err)
		}
		return &models.KillResponse{Body: models.KillData{ID: input.ID, Killed: killed}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stats",
		Method:      http.MethodGet,
		Path:        "/api/stats",
		Summary:     "Execution Statistics",
		Description: "Outcome counts, duration percentiles and per-job totals since startup",
		Tags:        []string{"exec"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StatsResponse, error) {
		return &models.StatsResponse{
			Body: models.StatsData{
				Summary: s.summary.Snapshot(),
				Jobs:    metrics.GetAllJobMetrics(),
			},
		}, nil
	})
}

func (s *Server) jobFromRequest(req *models.ExecRequestData) (jobs.Job, error) {
	job := jobs.Job{
		Name:    req.Name,
		Command: req.Command,
		Args:    req.Args,
		Env:     req.Env,
		Unset:   req.Unset,
		Stdin:   req.Stdin,
		Dir:     req.Dir,
		Timeout: jobs.Duration(s.effectiveTimeout(time.Duration(req.TimeoutMs) * time.Millisecond)),
	}
	if job.Name == "" {
		job.Name = defaultJobName
	}
	if err := job.Validate(); err != nil {
		return jobs.Job{}, err
	}
	return job, nil
}

func (s *Server) effectiveTimeout(requested time.Duration) time.Duration {
	timeout := requested
	if timeout <= 0 {
		timeout = s.options.DefaultTimeout
	}
	if limit := s.options.MaxTimeout; limit > 0 && (timeout <= 0 || timeout > limit) {
		timeout = limit
	}
	return timeout
}

func execData(name string, res *process.Result) models.ExecData {
	data := models.ExecData{
		ID:         res.ID,
		Name:       name,
		Command:    res.Command,
		ExitCode:   res.ExitCode,
		Outcome:    jobs.Outcome(res),
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		StartTime:  res.StartTime,
		DurationMs: float64(res.Duration.Microseconds()) / 1000,
	}
	if data.Stdout == nil {
		data.Stdout = []string{}
	}
	if data.Stderr == nil {
		data.Stderr = []string{}
	}
	if res.Err != nil {
		data.ErrorCode = string(process.CodeOf(res.Err))
		data.Error = res.Err.Error()
	}
	return data
}
