package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/procexec/cmd"
	"github.com/smazurov/procexec/internal/api"
	"github.com/smazurov/procexec/internal/config"
	"github.com/smazurov/procexec/internal/events"
	"github.com/smazurov/procexec/internal/jobs"
	"github.com/smazurov/procexec/internal/logging"
	"github.com/smazurov/procexec/internal/metrics"
	"github.com/smazurov/procexec/internal/metrics/exporters"
	"github.com/smazurov/procexec/internal/stats"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Exec settings
	ExecDefaultTimeout time.Duration `help:"Timeout for exec requests that set none (0 waits indefinitely)" default:"0s" toml:"exec.default_timeout" env:"EXEC_DEFAULT_TIMEOUT"`
	ExecMaxTimeout     time.Duration `help:"Upper bound for any exec timeout (0 for none)" default:"0s" toml:"exec.max_timeout" env:"EXEC_MAX_TIMEOUT"`
	ExecKillGrace      time.Duration `help:"How long a killed process may hold its output open" default:"5s" toml:"exec.kill_grace" env:"EXEC_KILL_GRACE"`
	ExecMaxLineSize    int           `help:"Longest accepted output line in bytes (0 for no limit)" default:"0" toml:"exec.max_line_size" env:"EXEC_MAX_LINE_SIZE"`

	// Metrics settings
	MetricsEnabled bool `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingProcess string `help:"Executor logging level" default:"info" toml:"logging.process" env:"LOGGING_PROCESS"`
	LoggingJobs    string `help:"Job runner logging level" default:"info" toml:"logging.jobs" env:"LOGGING_JOBS"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP    string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingBuffer  int    `help:"Log entries replayed to new log stream clients" default:"1000" toml:"logging.buffer_size" env:"LOGGING_BUFFER_SIZE"`
}

func main() {
	var root *cobra.Command

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, root); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:      opts.LoggingLevel,
			Format:     opts.LoggingFormat,
			BufferSize: opts.LoggingBuffer,
			Modules: map[string]string{
				"process": opts.LoggingProcess,
				"jobs":    opts.LoggingJobs,
				"api":     opts.LoggingAPI,
				"http":    opts.LoggingHTTP,
			},
		})

		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()
		api.PublishLogs(eventBus)

		unsubscribeMetrics := metrics.Subscribe(eventBus)
		summary := stats.NewSummary()
		unsubscribeSummary := summary.Subscribe(eventBus)

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			EventBus:     eventBus,
			Runner: &jobs.Runner{
				Bus:         eventBus,
				Logger:      logging.GetLogger("process"),
				KillGrace:   opts.ExecKillGrace,
				MaxLineSize: opts.ExecMaxLineSize,
			},
			Summary:        summary,
			DefaultTimeout: opts.ExecDefaultTimeout,
			MaxTimeout:     opts.ExecMaxTimeout,
		}
		if opts.MetricsEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
		}
		if opts.AuthUsername == "" || opts.AuthPassword == "" {
			logger.Warn("Basic auth disabled, anyone who can reach the port can run processes")
		}

		server := api.NewServer(apiOpts)

		hooks.OnStart(func() {
			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			ctx, cancel := context.WithTimeout(context.Background(), opts.ExecKillGrace+5*time.Second)
			defer cancel()
			if stopErr := server.Stop(ctx); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			unsubscribeSummary()
			unsubscribeMetrics()
			logging.SetLogCallback(nil)
		})
	})

	root = cli.Root()
	root.Use = "procexec"
	root.Short = "Run external processes and collect their output"

	root.AddCommand(cmd.CreateRunCmd())
	root.AddCommand(cmd.CreateBatchCmd())
	root.AddCommand(cmd.CreateVersionCmd())

	cli.Run()
}
