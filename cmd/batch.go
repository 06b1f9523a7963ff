package cmd

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/procexec/internal/config"
	"github.com/smazurov/procexec/internal/events"
	"github.com/smazurov/procexec/internal/jobs"
	"github.com/smazurov/procexec/internal/logging"
	"github.com/smazurov/procexec/internal/metrics"
	"github.com/smazurov/procexec/internal/report"
)

// CreateBatchCmd creates the batch command.
func CreateBatchCmd() *cobra.Command {
	var pattern string
	var concurrency int
	var watch bool
	var debounce time.Duration
	var logJSON bool
	var logLevel string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run every job in a set of job files",
		Long: `Loads jobs from TOML or YAML files matched by a doublestar pattern, runs them side by side ` +
			`and prints a results table with duration percentiles. With --watch the batch is re-run ` +
			`whenever a matched file changes.`,
		Example: `  procexec batch --jobs 'jobs/**/*.toml'
  procexec batch --jobs ci.yaml --concurrency 2 --watch`,
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			loggingConfig := logging.Config{
				Level:     logLevel,
				Format:    "text",
				Output:    os.Stderr,
				NoJournal: true,
			}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("batch")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			bus := events.New()
			defer metrics.Subscribe(bus)()
			runner := &jobs.Runner{Bus: bus, Logger: logging.GetLogger("jobs")}

			if !watch {
				all, err := jobs.LoadGlob(pattern)
				if err != nil {
					logger.Error("Failed to load jobs", "error", err)
					stop()
					os.Exit(ExitFailure)
				}
				failed := RunBatch(ctx, runner, all, concurrency, os.Stdout)
				stop()
				if failed > 0 {
					os.Exit(ExitFailure)
				}
				return
			}

			if err := watchBatch(ctx, pattern, debounce, func(all []jobs.Job) {
				RunBatch(ctx, runner, all, concurrency, os.Stdout)
			}, logger); err != nil {
				logger.Error("Failed to watch jobs", "error", err)
				stop()
				os.Exit(ExitFailure)
			}
		},
	}

	cmd.Flags().StringVarP(&pattern, "jobs", "j", "", "Job file pattern, e.g. 'jobs/**/*.toml' (required)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", runtime.NumCPU(), "Maximum jobs running at once (0 for no limit)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-run the batch when a matched job file changes")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "Quiet period after a change before re-running")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	_ = cmd.MarkFlagRequired("jobs")

	return cmd
}

// RunBatch runs all jobs, writes the report to out and returns how many
// did not succeed.
func RunBatch(ctx context.Context, runner *jobs.Runner, all []jobs.Job, concurrency int, out io.Writer) int {
	results := runner.RunAll(ctx, all, concurrency)

	rows := make([]report.Row, len(all))
	failed := 0
	for i, res := range results {
		rows[i] = report.Row{Job: all[i].Name, Result: res}
		if jobs.Outcome(res) != events.OutcomeSuccess {
			failed++
		}
	}

	fmt.Fprintln(out, report.Render(rows))
	return failed
}

// watchBatch runs the batch once, then again after every relevant change,
// until ctx is done. Batches never overlap; changes during a run queue at
// most one re-run.
func watchBatch(ctx context.Context, pattern string, debounce time.Duration, run func([]jobs.Job), logger logging.Logger) error {
	dirs, err := watchDirs(jobs.BaseDir(pattern))
	if err != nil {
		return err
	}

	pending := make(chan []jobs.Job, 1)
	queue := func(all []jobs.Job) {
		select {
		case <-pending:
		default:
		}
		pending <- all
	}

	watcher := config.NewWatcher(pattern, jobs.LoadGlob, logger,
		config.WithWatchPaths[[]jobs.Job](dirs...),
		config.WithFilter[[]jobs.Job](func(name string) bool { return jobs.Matches(pattern, name) }),
		config.WithDebounce[[]jobs.Job](debounce),
		config.WithErrorHandler[[]jobs.Job](func(err error) {
			logger.Warn("Job files changed but could not be loaded", "error", err)
		}),
	)
	unsubscribe := watcher.OnReload(queue)
	defer unsubscribe()

	if err := watcher.Start(); err != nil {
		return err
	}
	defer func() { _ = watcher.Stop() }()

	if all, err := jobs.LoadGlob(pattern); err != nil {
		logger.Warn("Initial job load failed, waiting for changes", "error", err)
	} else {
		queue(all)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case all := <-pending:
			logger.Info("Running batch", "jobs", len(all))
			run(all)
		}
	}
}

// watchDirs lists base and every directory below it. fsnotify watches are
// not recursive.
func watchDirs(base string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list watch directories under %s: %w", base, err)
	}
	return dirs, nil
}
