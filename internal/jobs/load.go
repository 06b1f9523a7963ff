package jobs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a job file:
//
//	[[jobs]]
//	name = "hello"
//	command = "echo hello"
//	timeout = "5s"
type File struct {
	Jobs []Job `toml:"jobs" yaml:"jobs"`
}

// Load reads the jobs in one file. The format follows the extension:
// .toml, .yaml or .yml.
func Load(path string) ([]Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}

	var f File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &f)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("unsupported job file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse job file %s: %w", path, err)
	}

	if err := Validate(f.Jobs); err != nil {
		return nil, fmt.Errorf("invalid job file %s: %w", path, err)
	}
	return f.Jobs, nil
}

// Match expands a doublestar pattern (for example "jobs/**/*.toml") into
// the sorted list of job files it names.
func Match(pattern string) ([]string, error) {
	paths, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("invalid job pattern %q: %w", pattern, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadGlob loads every file matched by pattern, in path order. Names must be
// unique across all files.
func LoadGlob(pattern string) ([]Job, error) {
	paths, err := Match(pattern)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no job files match %q", pattern)
	}

	var all []Job
	for _, path := range paths {
		jobs, err := Load(path)
		if err != nil {
			return nil, err
		}
		all = append(all, jobs...)
	}

	if err := Validate(all); err != nil {
		return nil, err
	}
	return all, nil
}

// BaseDir returns the static directory prefix of pattern, the directory a
// file watcher has to observe to see matches appear.
func BaseDir(pattern string) string {
	base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
	return filepath.FromSlash(base)
}

// Matches reports whether path is matched by pattern.
func Matches(pattern, path string) bool {
	ok, err := doublestar.PathMatch(pattern, path)
	return err == nil && ok
}
