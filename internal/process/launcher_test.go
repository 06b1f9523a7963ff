package process

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeEnv(t *testing.T) {
	base := []string{"A=1", "B=2", "C=3", "A=dup", "EMPTY="}

	got := mergeEnv(base, map[string]*string{
		"B": nil,
		"C": Value("30"),
		"Z": Value("26"),
		"D": Value(""),
		"X": nil,
	})

	assert.Equal(t, []string{"A=1", "C=30", "EMPTY=", "D=", "Z=26"}, got)
}

func TestMergeEnvNoOverrides(t *testing.T) {
	got := mergeEnv([]string{"A=1", "B=2"}, nil)
	assert.Equal(t, []string{"A=1", "B=2"}, got)
}

func TestValidateLaunch(t *testing.T) {
	require.NoError(t, validateLaunch([]string{"true"}, map[string]*string{"OK": Value("1")}))
	assert.True(t, HasCode(validateLaunch(nil, nil), ErrInvalidArgument))
	assert.True(t, HasCode(validateLaunch([]string{"true"}, map[string]*string{"A=B": nil}), ErrInvalidArgument))
}

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("broken pipe")
	err := newError(ErrIO, "write stdin of cat", cause)

	assert.Equal(t, "[IO] write stdin of cat: broken pipe", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, err.HasCode(ErrIO))
	assert.Equal(t, ErrIO, CodeOf(err))
	assert.Equal(t, ErrorCode(""), CodeOf(cause))
}

func TestSurface(t *testing.T) {
	handlerErr := newError(ErrHandler, "hook failed", errors.New("x"))
	assert.Same(t, handlerErr, surface("cmd", handlerErr))

	wrapped := surface("cmd", errors.New("odd"))
	assert.True(t, IsUnexpected(wrapped))
	assert.True(t, strings.Contains(wrapped.Error(), "output handling of external process cmd"))
}

func TestRunHelper(t *testing.T) {
	res := Run(context.Background(), []string{"cat"}, testOptions(), strings.NewReader("x\ny\n"), 5*time.Second)
	require.NoError(t, res.Err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, []string{"x", "y"}, res.Stdout)
	assert.Empty(t, res.Stderr)
	assert.NotEmpty(t, res.ID)

	res = Run(context.Background(), sh(`sleep 5`), testOptions(), nil, 100*time.Millisecond)
	assert.True(t, IsTimeout(res.Err))
	assert.Equal(t, 137, res.ExitCode)

	res = Run(context.Background(), []string{"/nonexistent/procexec"}, testOptions(), nil, 0)
	assert.True(t, IsLaunch(res.Err))
	assert.Equal(t, -1, res.ExitCode)
}
