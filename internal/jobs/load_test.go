package jobs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.toml")
	writeFile(t, path, `
[[jobs]]
name = "hello"
command = "echo hello"
timeout = "5s"

[jobs.env]
GREETING = "hi"

[[jobs]]
name = "argv"
args = ["printf", "%s\n", "a b"]
unset = ["HOME"]
stdin = "input"
dir = "/tmp"
`)

	jobs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "hello", jobs[0].Name)
	assert.Equal(t, "echo hello", jobs[0].Command)
	assert.Equal(t, Duration(5*time.Second), jobs[0].Timeout)
	assert.Equal(t, map[string]string{"GREETING": "hi"}, jobs[0].Env)

	assert.Equal(t, []string{"printf", "%s\n", "a b"}, jobs[1].Args)
	assert.Equal(t, []string{"HOME"}, jobs[1].Unset)
	assert.Equal(t, "input", jobs[1].Stdin)
	assert.Equal(t, "/tmp", jobs[1].Dir)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	writeFile(t, path, `
jobs:
  - name: hello
    command: echo hello
    timeout: 1m
  - name: slow
    args: [sleep, "1"]
    timeout: 3
`)

	jobs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, Duration(time.Minute), jobs[0].Timeout)
	assert.Equal(t, Duration(3*time.Second), jobs[1].Timeout)
	assert.Equal(t, []string{"sleep", "1"}, jobs[1].Args)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "jobs.json")
	writeFile(t, bad, `{}`)
	_, err = Load(bad)
	assert.ErrorContains(t, err, "unsupported")

	invalid := filepath.Join(dir, "invalid.toml")
	writeFile(t, invalid, `[[jobs]`)
	_, err = Load(invalid)
	assert.ErrorContains(t, err, "failed to parse")

	unnamed := filepath.Join(dir, "unnamed.yml")
	writeFile(t, unnamed, "jobs:\n  - command: \"true\"\n")
	_, err = Load(unnamed)
	assert.ErrorContains(t, err, "name is required")
}

func TestLoadGlob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.toml"), "[[jobs]]\nname = \"b\"\ncommand = \"true\"\n")
	writeFile(t, filepath.Join(dir, "nested", "deep", "a.yaml"), "jobs:\n  - name: a\n    command: \"true\"\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	jobs, err := LoadGlob(filepath.Join(dir, "**", "*.{toml,yaml}"))
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "b", jobs[0].Name)
	assert.Equal(t, "a", jobs[1].Name)

	_, err = LoadGlob(filepath.Join(dir, "*.nothing"))
	assert.ErrorContains(t, err, "no job files")
}

func TestLoadGlobDuplicateAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one.toml"), "[[jobs]]\nname = \"same\"\ncommand = \"true\"\n")
	writeFile(t, filepath.Join(dir, "two.toml"), "[[jobs]]\nname = \"same\"\ncommand = \"true\"\n")

	_, err := LoadGlob(filepath.Join(dir, "*.toml"))
	assert.ErrorContains(t, err, "duplicate")
}

func TestPatternHelpers(t *testing.T) {
	assert.Equal(t, filepath.FromSlash("jobs/nightly"), BaseDir("jobs/nightly/**/*.toml"))
	assert.Equal(t, ".", BaseDir("*.toml"))

	assert.True(t, Matches("jobs/**/*.toml", "jobs/a/b/c.toml"))
	assert.False(t, Matches("jobs/**/*.toml", "jobs/a/b/c.yaml"))
}
