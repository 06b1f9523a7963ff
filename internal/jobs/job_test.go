package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestJobArgv(t *testing.T) {
	j := Job{Name: "a", Command: `sh -c "echo 'hi there'"`}
	argv, err := j.Argv()
	require.NoError(t, err)
	assert.Equal(t, []string{"sh", "-c", "echo 'hi there'"}, argv)

	j = Job{Name: "b", Args: []string{"echo", "a b"}}
	argv, err = j.Argv()
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", "a b"}, argv)

	argv[0] = "changed"
	assert.Equal(t, "echo", j.Args[0])
}

func TestJobOverrides(t *testing.T) {
	assert.Nil(t, (&Job{}).Overrides())

	j := Job{
		Env:   map[string]string{"A": "1", "B": "2"},
		Unset: []string{"B", "C"},
	}
	env := j.Overrides()
	require.Len(t, env, 3)
	require.NotNil(t, env["A"])
	assert.Equal(t, "1", *env["A"])
	assert.Nil(t, env["B"])
	assert.Contains(t, env, "C")
	assert.Nil(t, env["C"])
}

func TestJobValidate(t *testing.T) {
	tests := []struct {
		name    string
		job     Job
		wantErr string
	}{
		{"valid command", Job{Name: "ok", Command: "true"}, ""},
		{"valid args", Job{Name: "ok", Args: []string{"true"}}, ""},
		{"missing name", Job{Command: "true"}, "name is required"},
		{"missing command", Job{Name: "x"}, "command or args is required"},
		{"both", Job{Name: "x", Command: "true", Args: []string{"true"}}, "mutually exclusive"},
		{"unclosed quote", Job{Name: "x", Command: `echo "oops`}, "x"},
		{"negative timeout", Job{Name: "x", Command: "true", Timeout: Duration(-time.Second)}, "negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateDuplicateNames(t *testing.T) {
	err := Validate([]Job{
		{Name: "a", Command: "true"},
		{Name: "b", Command: "true"},
		{Name: "a", Command: "false"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate job name "a"`)
}

func TestDurationDecoding(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, Duration(90*time.Second), d)

	require.NoError(t, d.UnmarshalText(nil))
	assert.Equal(t, Duration(0), d)

	assert.Error(t, d.UnmarshalText([]byte("soon")))

	var v struct {
		A Duration `yaml:"a"`
		B Duration `yaml:"b"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: 250ms\nb: 2\n"), &v))
	assert.Equal(t, Duration(250*time.Millisecond), v.A)
	assert.Equal(t, Duration(2*time.Second), v.B)

	text, err := Duration(1500 * time.Millisecond).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1.5s", string(text))
}
