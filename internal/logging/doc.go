// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"process": "debug",  // Per-module overrides
//			"api":     "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("mymodule")
//	logger.Info("Starting up", "port", 8080)
//	logger.Debug("Details", "config", cfg)
//	logger.Warn("Something unusual", "error", err)
//	logger.Error("Failed", "error", err)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("jobs").With("job", name)
//	logger.Info("Job started")  // Includes job in all logs
//
// # Log Levels
//
//	debug - Verbose debugging information
//	info  - General operational messages
//	warn  - Warning conditions
//	error - Error conditions
//
// # Output Destinations
//
// The system automatically detects available outputs:
//
//	console  text or JSON on stdout, or Config.Output
//	journal  when journald is reachable, unless Config.NoJournal
//	buffer   always, see History
//
// All present handlers are combined with a MultiHandler.
//
// Journal availability is checked via [github.com/coreos/go-systemd/v22/journal.Enabled].
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t procexec              # All procexec logs
//	journalctl -t procexec -f           # Follow live
//	journalctl -t procexec --since "5m" # Last 5 minutes
//	journalctl -t procexec -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t procexec MODULE=process
//	journalctl -t procexec EXEC_ID=3f1c...
//
// # History
//
// Every record also lands in a RingBuffer of the last Config.BufferSize
// entries (GetBuffer). A Filter selects entries by module and minimum
// level. SetLogCallback registers a function that sees each entry as it is
// written; the API uses both to stream logs to SSE clients.
//
// # Configuration
//
// Log levels can be set globally or per-module. Module-specific levels
// override the global level for that module only.
//
// Example TOML configuration; keys other than level, format and
// buffer_size name a module:
//
//	[logging]
//	level = "info"
//	format = "text"
//	process = "debug"
//	api = "warn"
//	jobs = "error"
package logging
