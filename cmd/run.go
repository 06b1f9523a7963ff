package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/procexec/internal/logging"
	"github.com/smazurov/procexec/internal/process"
)

// Exit statuses for failures that have no child exit code.
const (
	ExitFailure     = 1
	ExitTimeout     = 124
	ExitInterrupted = 130
)

// RunConfig holds the resolved flags of the run command.
type RunConfig struct {
	Argv      []string
	Env       map[string]*string
	Dir       string
	Timeout   time.Duration
	KillGrace time.Duration
	Stdin     io.Reader
}

// CreateRunCmd creates the run command.
func CreateRunCmd() *cobra.Command {
	var command string
	var envs []string
	var unsets []string
	var stdinPath string
	var dir string
	var timeout time.Duration
	var killGrace time.Duration
	var logJSON bool
	var logLevel string

	cmd := &cobra.Command{
		Use:   "run [flags] [-- command args...]",
		Short: "Run one process and relay its output",
		Long: `Runs a single process, writes its stdout and stderr lines to the terminal as they arrive ` +
			`and exits with the process's exit code. A timeout exits 124, an interrupt 130, any other failure 1.`,
		Example: `  procexec run -- ls -l /tmp
  procexec run --timeout 5s --env GREETING=hi -c 'sh -c "echo $GREETING"'
  echo data | procexec run --stdin - -- cat`,
		Run: func(_ *cobra.Command, args []string) {
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
			logger := logging.GetLogger("run")

			cfg, closeStdin, err := buildRunConfig(command, args, envs, unsets, stdinPath)
			if err != nil {
				logger.Error("Invalid arguments", "error", err)
				os.Exit(ExitFailure)
			}
			defer closeStdin()
			cfg.Dir = dir
			cfg.Timeout = timeout
			cfg.KillGrace = killGrace

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res := RunProcess(ctx, cfg, os.Stdout, os.Stderr)
			status := ExitStatus(res)
			if res.Err != nil {
				logger.Error("Process failed", "error", res.Err, "exit_status", status)
			} else {
				logger.Debug("Process finished", "exit_code", res.ExitCode, "duration", res.Duration)
			}

			closeStdin()
			stop()
			os.Exit(status)
		},
	}

	cmd.Flags().StringVarP(&command, "command", "c", "", "Command line to split with shell-like quoting instead of positional args")
	cmd.Flags().StringArrayVarP(&envs, "env", "e", nil, "Set an environment variable (KEY=VALUE, repeatable)")
	cmd.Flags().StringArrayVarP(&unsets, "unset", "u", nil, "Remove an inherited environment variable (repeatable)")
	cmd.Flags().StringVar(&stdinPath, "stdin", "", "File to feed to stdin, - for this process's stdin")
	cmd.Flags().StringVar(&dir, "dir", "", "Working directory")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "Kill the process after this long (0 waits indefinitely)")
	cmd.Flags().DurationVar(&killGrace, "kill-grace", 0, "How long a killed process may hold its output open (0 for the default)")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	return cmd
}

// buildRunConfig resolves the argv, environment and stdin flags. The returned
// close function releases an opened stdin file and is safe to call twice.
func buildRunConfig(command string, args, envs, unsets []string, stdinPath string) (RunConfig, func(), error) {
	noop := func() {}
	cfg := RunConfig{}

	switch {
	case command != "" && len(args) > 0:
		return cfg, noop, fmt.Errorf("use either --command or positional arguments, not both")
	case command != "":
		argv, err := process.ParseCommand(command)
		if err != nil {
			return cfg, noop, err
		}
		cfg.Argv = argv
	case len(args) > 0:
		cfg.Argv = args
	default:
		return cfg, noop, fmt.Errorf("no command given")
	}

	env, err := parseEnv(envs, unsets)
	if err != nil {
		return cfg, noop, err
	}
	cfg.Env = env

	switch stdinPath {
	case "":
	case "-":
		cfg.Stdin = os.Stdin
	default:
		f, err := os.Open(stdinPath)
		if err != nil {
			return cfg, noop, fmt.Errorf("failed to open stdin file: %w", err)
		}
		cfg.Stdin = f
		closed := false
		return cfg, func() {
			if !closed {
				closed = true
				_ = f.Close()
			}
		}, nil
	}

	return cfg, noop, nil
}

// parseEnv turns KEY=VALUE and KEY flags into executor overrides. Unset wins
// over a set of the same key.
func parseEnv(envs, unsets []string) (map[string]*string, error) {
	if len(envs) == 0 && len(unsets) == 0 {
		return nil, nil
	}
	env := make(map[string]*string, len(envs)+len(unsets))
	for _, kv := range envs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --env %q, want KEY=VALUE", kv)
		}
		env[key] = process.Value(value)
	}
	for _, key := range unsets {
		if key == "" {
			return nil, fmt.Errorf("empty --unset key")
		}
		env[key] = nil
	}
	return env, nil
}

// RunProcess runs cfg, relaying output lines to stdout and stderr as they
// arrive. ctx cancellation kills the process.
func RunProcess(ctx context.Context, cfg RunConfig, stdout, stderr io.Writer) *process.Result {
	opts := &process.Options{
		Env:       cfg.Env,
		Dir:       cfg.Dir,
		KillGrace: cfg.KillGrace,
		Logger:    logging.GetLogger("process"),
		Hooks: process.Hooks{
			OnOutputLine: func(line string) error {
				_, err := fmt.Fprintln(stdout, line)
				return err
			},
			OnErrorLine: func(line string) error {
				_, err := fmt.Fprintln(stderr, line)
				return err
			},
			OnExitCode: func(int) error { return nil },
		},
	}
	return process.Run(ctx, cfg.Argv, opts, cfg.Stdin, cfg.Timeout)
}

// ExitStatus maps a result to the status the run command exits with.
func ExitStatus(res *process.Result) int {
	switch {
	case res.Err == nil:
		return res.ExitCode
	case process.IsTimeout(res.Err):
		return ExitTimeout
	case process.IsInterrupted(res.Err):
		return ExitInterrupted
	default:
		return ExitFailure
	}
}
