package cmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/procexec/internal/jobs"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunBatch(t *testing.T) {
	runner := &jobs.Runner{Logger: discardLogger(), KillGrace: 200 * time.Millisecond}
	all := []jobs.Job{
		{Name: "first", Command: "echo 1"},
		{Name: "second", Command: "sh -c 'exit 2'"},
		{Name: "third", Command: "sleep 30", Timeout: jobs.Duration(50 * time.Millisecond)},
	}

	var out bytes.Buffer
	failed := RunBatch(context.Background(), runner, all, 2, &out)

	assert.Equal(t, 2, failed)
	assert.Contains(t, out.String(), "first")
	assert.Contains(t, out.String(), "exit 2")
	assert.Contains(t, out.String(), "timeout")
	assert.Contains(t, out.String(), "3 total")
}

func TestWatchDirs(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "a", "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "a", "job.toml"), nil, 0o644))

	dirs, err := watchDirs(base)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{base, filepath.Join(base, "a"), filepath.Join(base, "a", "b")}, dirs)

	_, err = watchDirs(filepath.Join(base, "missing"))
	assert.Error(t, err)
}

func TestWatchBatchRerunsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[jobs]]\nname = \"one\"\ncommand = \"true\"\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := make(chan []jobs.Job, 4)
	done := make(chan error, 1)
	go func() {
		done <- watchBatch(ctx, filepath.Join(dir, "*.toml"), 50*time.Millisecond, func(all []jobs.Job) {
			runs <- all
		}, discardLogger())
	}()

	select {
	case all := <-runs:
		require.Len(t, all, 1)
		assert.Equal(t, "one", all[0].Name)
	case <-time.After(5 * time.Second):
		t.Fatal("initial batch did not run")
	}

	require.NoError(t, os.WriteFile(path, []byte("[[jobs]]\nname = \"one\"\ncommand = \"true\"\n\n[[jobs]]\nname = \"two\"\ncommand = \"true\"\n"), 0o644))

	select {
	case all := <-runs:
		assert.Len(t, all, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("batch did not re-run after change")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
