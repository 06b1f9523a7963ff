package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() *Options {
	return &Options{Logger: testLogger(), KillGrace: 200 * time.Millisecond}
}

// startTest launches command and fails the test if it cannot be started.
func startTest(t *testing.T, command []string, opts *Options) *Executor {
	t.Helper()
	if opts == nil {
		opts = testOptions()
	}
	if opts.Logger == nil {
		opts.Logger = testLogger()
	}
	e, err := New(command, opts)
	require.NoError(t, err)
	return e
}

func sh(script string) []string {
	return []string{"sh", "-c", script}
}

type lineError struct {
	line string
}

func (e *lineError) Error() string {
	return "rejected line " + e.line
}

func TestEchoHello(t *testing.T) {
	e := startTest(t, []string{"echo", "hello"}, nil)
	require.NoError(t, e.SendEOF())

	code, err := e.Join(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.True(t, e.IsFinished())

	out, err := e.Output()
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, out)

	errOut, err := e.ErrorOutput()
	require.NoError(t, err)
	assert.Empty(t, errOut)
}

func TestOutputLinesInOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []string

	opts := testOptions()
	opts.Hooks.OnOutputLine = func(line string) error {
		mu.Lock()
		seen = append(seen, line)
		mu.Unlock()
		return nil
	}

	e := startTest(t, sh(`i=1; while [ $i -le 500 ]; do echo $i; i=$((i+1)); done`), opts)
	code, err := e.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	out, err := e.Output()
	require.NoError(t, err)
	require.Len(t, out, 500)
	for i, line := range out {
		assert.Equal(t, strconv.Itoa(i+1), line)
	}
	assert.Equal(t, out, seen)
}

func TestEmptyOutput(t *testing.T) {
	e := startTest(t, []string{"true"}, nil)
	code, err := e.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	out, err := e.Output()
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestStderrCaptured(t *testing.T) {
	e := startTest(t, sh(`echo out; echo err1 >&2; echo err2 >&2`), nil)
	_, err := e.Wait()
	require.NoError(t, err)

	out, _ := e.Output()
	errOut, _ := e.ErrorOutput()
	assert.Equal(t, []string{"out"}, out)
	assert.Equal(t, []string{"err1", "err2"}, errOut)
}

func TestExitCode(t *testing.T) {
	var got int
	opts := testOptions()
	opts.Hooks.OnExitCode = func(code int) error {
		got = code
		return nil
	}

	e := startTest(t, sh(`exit 42`), opts)
	code, err := e.Wait()
	require.NoError(t, err)
	assert.Equal(t, 42, code)
	assert.Equal(t, 42, got)

	recorded, err := e.ExitCode()
	require.NoError(t, err)
	assert.Equal(t, 42, recorded)
}

func TestExitCodeHookFailure(t *testing.T) {
	hookErr := errors.New("bad exit")
	opts := testOptions()
	opts.Hooks.OnExitCode = func(int) error { return hookErr }

	e := startTest(t, sh(`echo done; exit 3`), opts)
	code, err := e.Wait()
	require.Error(t, err)
	assert.Equal(t, -1, code)
	assert.True(t, IsHandler(err))
	assert.ErrorIs(t, err, hookErr)

	out, _ := e.Output()
	assert.Equal(t, []string{"done"}, out)
}

func TestStdinRoundTrip(t *testing.T) {
	e := startTest(t, []string{"cat"}, nil)
	require.NoError(t, e.Println("first"))
	require.NoError(t, e.Print("sec"))
	require.NoError(t, e.Println("ond"))
	require.NoError(t, e.SendEOF())
	require.NoError(t, e.SendEOF())

	code, err := e.Join(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	out, _ := e.Output()
	assert.Equal(t, []string{"first", "second"}, out)
}

func TestAccessorsBeforeFinish(t *testing.T) {
	e := startTest(t, []string{"cat"}, nil)
	assert.Equal(t, StateRunning, e.State())

	_, err := e.Output()
	assert.True(t, IsIllegalState(err))
	_, err = e.ErrorOutput()
	assert.True(t, IsIllegalState(err))
	_, err = e.ExitCode()
	assert.True(t, IsIllegalState(err))

	require.NoError(t, e.SendEOF())
	_, err = e.Wait()
	require.NoError(t, err)
}

func TestWritesAfterFinish(t *testing.T) {
	e := startTest(t, []string{"true"}, nil)
	_, err := e.Wait()
	require.NoError(t, err)

	assert.True(t, IsIllegalState(e.Print("x")))
	assert.True(t, IsIllegalState(e.Println("x")))
	assert.True(t, IsIllegalState(e.SendEOF()))
	assert.False(t, e.Kill())
}

func TestTimeoutKillsProcess(t *testing.T) {
	var kills int
	var mu sync.Mutex
	var exitHookCalls atomic.Int32
	opts := testOptions()
	opts.Hooks.OnExitCode = func(int) error {
		exitHookCalls.Add(1)
		return nil
	}
	opts.OnKill = func(string, error) {
		mu.Lock()
		kills++
		mu.Unlock()
	}

	e := startTest(t, sh(`echo started; sleep 5`), opts)

	start := time.Now()
	code, err := e.Join(context.Background(), 200*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, IsTimeout(err), "got %v", err)
	assert.Equal(t, -1, code)
	assert.Less(t, elapsed, 3*time.Second)
	assert.True(t, e.IsFinished())

	recorded, err := e.ExitCode()
	require.NoError(t, err)
	assert.Equal(t, 137, recorded)

	out, _ := e.Output()
	assert.Equal(t, []string{"started"}, out)

	mu.Lock()
	assert.Equal(t, 1, kills)
	mu.Unlock()
	assert.Zero(t, exitHookCalls.Load(), "exit code hook runs only on a natural exit")
}

func TestJoinContextCancelled(t *testing.T) {
	e := startTest(t, sh(`sleep 5`), nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	code, err := e.Join(ctx, 0)
	require.Error(t, err)
	assert.True(t, IsInterrupted(err), "got %v", err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, -1, code)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestKill(t *testing.T) {
	var exitHookCalls atomic.Int32
	opts := testOptions()
	opts.Hooks.OnExitCode = func(int) error {
		exitHookCalls.Add(1)
		return nil
	}

	e := startTest(t, sh(`sleep 5`), opts)
	assert.True(t, e.Kill())
	assert.False(t, e.Kill())

	code, err := e.Wait()
	require.Error(t, err)
	assert.True(t, IsInterrupted(err))
	assert.ErrorIs(t, err, errKilledByCaller)
	assert.Equal(t, -1, code)
	assert.Zero(t, exitHookCalls.Load())
}

func TestHandlerFailureStopsProcess(t *testing.T) {
	opts := testOptions()
	opts.Hooks.OnOutputLine = func(line string) error {
		if line == "two" {
			return &lineError{line: line}
		}
		return nil
	}

	e := startTest(t, sh(`echo one; echo two; echo three; sleep 5`), opts)

	start := time.Now()
	code, err := e.Wait()
	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, -1, code)
	assert.True(t, IsHandler(err))

	var le *lineError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "two", le.line)

	out, _ := e.Output()
	assert.Equal(t, []string{"one", "two"}, out)
}

func TestStdoutFailureTakesPrecedence(t *testing.T) {
	stdoutErr := errors.New("stdout hook")
	stderrErr := errors.New("stderr hook")

	for i := range 20 {
		// Neither hook returns before both have seen a line, so both
		// drainers fail and only the precedence decides the result.
		var both sync.WaitGroup
		both.Add(2)
		opts := testOptions()
		opts.Hooks.OnOutputLine = func(string) error {
			both.Done()
			both.Wait()
			return stdoutErr
		}
		opts.Hooks.OnErrorLine = func(string) error {
			both.Done()
			both.Wait()
			return stderrErr
		}

		e := startTest(t, sh(`echo err >&2; echo out; sleep 5`), opts)
		_, err := e.Wait()
		require.Error(t, err, "run %d", i)
		require.ErrorIs(t, err, stdoutErr, "run %d", i)
	}
}

func TestStderrHandlerFailure(t *testing.T) {
	stderrErr := errors.New("stderr hook")
	opts := testOptions()
	opts.Hooks.OnErrorLine = func(string) error { return stderrErr }

	e := startTest(t, sh(`echo fine; echo bad >&2; sleep 5`), opts)
	_, err := e.Wait()
	require.Error(t, err)
	assert.True(t, IsHandler(err))
	assert.ErrorIs(t, err, stderrErr)
}

func TestHandlerPanic(t *testing.T) {
	opts := testOptions()
	opts.Hooks.OnOutputLine = func(string) error {
		panic("boom")
	}

	e := startTest(t, sh(`echo x; sleep 5`), opts)
	_, err := e.Wait()
	require.Error(t, err)
	assert.True(t, IsUnexpected(err))

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "boom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

func TestLongLineWithoutLimit(t *testing.T) {
	e := startTest(t, sh(`head -c 2000000 /dev/zero | tr '\0' a; echo; echo tail`), nil)
	code, err := e.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	out, _ := e.Output()
	require.Len(t, out, 2)
	assert.Len(t, out[0], 2000000)
	assert.Equal(t, "tail", out[1])
}

func TestCarriageReturnEndsLine(t *testing.T) {
	e := startTest(t, sh(`printf '10%%\r20%%\r\ndone\nlast'`), nil)
	_, err := e.Wait()
	require.NoError(t, err)

	out, _ := e.Output()
	assert.Equal(t, []string{"10%", "20%", "done", "last"}, out)
}

func TestLineTooLong(t *testing.T) {
	opts := testOptions()
	opts.MaxLineSize = 16

	e := startTest(t, sh(`echo short; echo 0123456789012345678901234567890123456789`), opts)
	_, err := e.Wait()
	require.Error(t, err)
	assert.True(t, IsIO(err), "got %v", err)

	out, _ := e.Output()
	assert.Equal(t, []string{"short"}, out)
}

func TestJoinTwiceReturnsSameResult(t *testing.T) {
	e := startTest(t, sh(`exit 7`), nil)
	code1, err1 := e.Wait()
	code2, err2 := e.Join(context.Background(), time.Second)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, 7, code1)
	assert.Equal(t, code1, code2)

	e = startTest(t, sh(`sleep 5`), nil)
	_, err1 = e.Join(context.Background(), 50*time.Millisecond)
	_, err2 = e.Wait()
	assert.True(t, IsTimeout(err1))
	assert.Same(t, err1, err2)
}

func TestNegativeTimeout(t *testing.T) {
	e := startTest(t, []string{"true"}, nil)
	_, err := e.Join(context.Background(), -time.Second)
	assert.True(t, HasCode(err, ErrInvalidArgument))
	assert.NotEqual(t, StateFinished, e.State())

	_, err = e.Wait()
	require.NoError(t, err)
}

func TestStateTransitions(t *testing.T) {
	var mu sync.Mutex
	var transitions []string
	opts := testOptions()
	opts.ID = "states"
	opts.OnStateChange = func(id string, oldState, newState State) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "states", id)
		transitions = append(transitions, fmt.Sprintf("%s->%s", oldState, newState))
	}

	e := startTest(t, []string{"true"}, opts)
	_, err := e.Wait()
	require.NoError(t, err)
	_, _ = e.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"created->running", "running->joining", "joining->finished"}, transitions)
}

func TestLaunchFailures(t *testing.T) {
	_, err := New(nil, testOptions())
	assert.True(t, HasCode(err, ErrInvalidArgument))

	_, err = New([]string{""}, testOptions())
	assert.True(t, HasCode(err, ErrInvalidArgument))

	opts := testOptions()
	opts.Env = map[string]*string{"": Value("x")}
	_, err = New([]string{"true"}, opts)
	assert.True(t, HasCode(err, ErrInvalidArgument))

	_, err = New([]string{"/nonexistent/procexec-test-binary"}, testOptions())
	assert.True(t, IsLaunch(err), "got %v", err)

	opts = testOptions()
	opts.Dir = "/nonexistent/procexec-test-dir"
	_, err = New([]string{"true"}, opts)
	assert.True(t, IsLaunch(err), "got %v", err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PROCEXEC_TEST_REMOVE", "present")
	t.Setenv("PROCEXEC_TEST_REPLACE", "old")

	opts := testOptions()
	opts.Env = map[string]*string{
		"PROCEXEC_TEST_REMOVE":  nil,
		"PROCEXEC_TEST_REPLACE": Value("new"),
		"PROCEXEC_TEST_ADD":     Value("added value"),
	}

	e := startTest(t, sh(`echo "${PROCEXEC_TEST_REMOVE-unset}"; echo "$PROCEXEC_TEST_REPLACE"; echo "$PROCEXEC_TEST_ADD"`), opts)
	_, err := e.Wait()
	require.NoError(t, err)

	out, _ := e.Output()
	assert.Equal(t, []string{"unset", "new", "added value"}, out)
}

func TestWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions()
	opts.Dir = dir

	e := startTest(t, []string{"pwd"}, opts)
	_, err := e.Wait()
	require.NoError(t, err)

	out, _ := e.Output()
	require.Len(t, out, 1)
	assert.True(t, strings.HasSuffix(out[0], dir), "got %s", out[0])
}

func TestConcurrentExecutors(t *testing.T) {
	const n = 50

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			want := fmt.Sprintf("executor-%d", i)
			e, err := New([]string{"echo", want}, testOptions())
			if err != nil {
				errs <- err
				return
			}
			if _, err := e.Join(context.Background(), 10*time.Second); err != nil {
				errs <- err
				return
			}
			out, _ := e.Output()
			if len(out) != 1 || out[0] != want {
				errs <- fmt.Errorf("executor %d: got %v", i, out)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestIDDefaults(t *testing.T) {
	e := startTest(t, []string{"true"}, nil)
	assert.NotEmpty(t, e.ID())
	assert.Equal(t, []string{"true"}, e.Command())
	assert.Positive(t, e.Pid())
	_, err := e.Wait()
	require.NoError(t, err)
	assert.Positive(t, e.Duration())
}

func TestOnStartReportsPid(t *testing.T) {
	var gotID string
	var gotPid int
	opts := testOptions()
	opts.ID = "started"
	opts.OnStart = func(id string, pid int) {
		gotID, gotPid = id, pid
	}

	e := startTest(t, []string{"true"}, opts)
	assert.Equal(t, "started", gotID)
	assert.Equal(t, e.Pid(), gotPid)
	_, err := e.Wait()
	require.NoError(t, err)
}
