// Package jobs loads job definitions from TOML or YAML files and runs them
// through process executors.
package jobs

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/smazurov/procexec/internal/process"
)

// Duration is a time.Duration that decodes from strings like "30s" in both
// TOML and YAML job files.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalYAML accepts a duration string or a plain number of seconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var secs float64
	if err := node.Decode(&secs); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	return d.UnmarshalText([]byte(node.Value))
}

// Job describes one process to run. Exactly one of Command and Args is set:
// Command is a shell-like string split by process.ParseCommand, Args is an
// argv used verbatim.
type Job struct {
	Name    string            `toml:"name" yaml:"name" json:"name"`
	Command string            `toml:"command,omitempty" yaml:"command,omitempty" json:"command,omitempty"`
	Args    []string          `toml:"args,omitempty" yaml:"args,omitempty" json:"args,omitempty"`
	Env     map[string]string `toml:"env,omitempty" yaml:"env,omitempty" json:"env,omitempty"`
	Unset   []string          `toml:"unset,omitempty" yaml:"unset,omitempty" json:"unset,omitempty"`
	Stdin   string            `toml:"stdin,omitempty" yaml:"stdin,omitempty" json:"stdin,omitempty"`
	Dir     string            `toml:"dir,omitempty" yaml:"dir,omitempty" json:"dir,omitempty"`
	Timeout Duration          `toml:"timeout,omitempty" yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Argv returns the command line to launch.
func (j *Job) Argv() ([]string, error) {
	if len(j.Args) > 0 {
		return slices.Clone(j.Args), nil
	}
	return process.ParseCommand(j.Command)
}

// Overrides returns the environment overrides in process.Options form.
// Unset wins over Env for the same key.
func (j *Job) Overrides() map[string]*string {
	if len(j.Env) == 0 && len(j.Unset) == 0 {
		return nil
	}
	env := make(map[string]*string, len(j.Env)+len(j.Unset))
	for _, k := range slices.Sorted(maps.Keys(j.Env)) {
		env[k] = process.Value(j.Env[k])
	}
	for _, k := range j.Unset {
		env[k] = nil
	}
	return env
}

// Validate checks a single job.
func (j *Job) Validate() error {
	if j.Name == "" {
		return errors.New("job name is required")
	}
	if j.Command != "" && len(j.Args) > 0 {
		return fmt.Errorf("job %q: command and args are mutually exclusive", j.Name)
	}
	if j.Command == "" && len(j.Args) == 0 {
		return fmt.Errorf("job %q: command or args is required", j.Name)
	}
	if _, err := j.Argv(); err != nil {
		return fmt.Errorf("job %q: %w", j.Name, err)
	}
	if j.Timeout < 0 {
		return fmt.Errorf("job %q: timeout must not be negative", j.Name)
	}
	return nil
}

// Validate checks every job and that names are unique.
func Validate(jobs []Job) error {
	seen := make(map[string]struct{}, len(jobs))
	var errs []error
	for i := range jobs {
		if err := jobs[i].Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := seen[jobs[i].Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate job name %q", jobs[i].Name))
			continue
		}
		seen[jobs[i].Name] = struct{}{}
	}
	return errors.Join(errs...)
}
