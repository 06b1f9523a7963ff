package process

import (
	"context"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// pipes holds both ends of the three standard streams. The child gets
// *os.File ends, so exec does not start copying goroutines and Cmd.Wait
// never closes the parent's read ends underneath the drainers.
type pipes struct {
	stdinR, stdinW   *os.File
	stdoutR, stdoutW *os.File
	stderrR, stderrW *os.File
}

func openPipes() (*pipes, error) {
	p := &pipes{}
	var err error
	if p.stdinR, p.stdinW, err = os.Pipe(); err != nil {
		return nil, err
	}
	if p.stdoutR, p.stdoutW, err = os.Pipe(); err != nil {
		p.closeAll()
		return nil, err
	}
	if p.stderrR, p.stderrW, err = os.Pipe(); err != nil {
		p.closeAll()
		return nil, err
	}
	return p, nil
}

// closeChildEnds closes the ends inherited by the child. Must be called
// after Start, otherwise the drainers never see EOF.
func (p *pipes) closeChildEnds() {
	closeFiles(p.stdinR, p.stdoutW, p.stderrW)
}

func (p *pipes) closeAll() {
	closeFiles(p.stdinR, p.stdinW, p.stdoutR, p.stdoutW, p.stderrR, p.stderrW)
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}

// mergeEnv applies overrides to base. Existing variables keep their position,
// removed ones are dropped, new ones are appended in key order.
func mergeEnv(base []string, overrides map[string]*string) []string {
	merged := make([]string, 0, len(base)+len(overrides))
	seen := make(map[string]bool, len(base))

	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if seen[key] {
			continue
		}
		seen[key] = true

		value, overridden := overrides[key]
		switch {
		case !overridden:
			merged = append(merged, kv)
		case value != nil:
			merged = append(merged, key+"="+*value)
		}
	}

	added := make([]string, 0, len(overrides))
	for key, value := range overrides {
		if !seen[key] && value != nil {
			added = append(added, key)
		}
	}
	sort.Strings(added)
	for _, key := range added {
		merged = append(merged, key+"="+*overrides[key])
	}

	return merged
}

func validateLaunch(command []string, env map[string]*string) error {
	if len(command) == 0 || command[0] == "" {
		return newError(ErrInvalidArgument, "empty command", nil)
	}
	for key := range env {
		if key == "" {
			return newError(ErrInvalidArgument, "empty environment variable name", nil)
		}
		if strings.ContainsAny(key, "=\x00") {
			return newError(ErrInvalidArgument, "invalid environment variable name "+key, nil)
		}
	}
	return nil
}

// launch starts command under ctx. Cancelling ctx kills the process group;
// Cmd.Wait still blocks until the process has been reaped.
func launch(ctx context.Context, command []string, opts *Options) (*exec.Cmd, *pipes, error) {
	if err := validateLaunch(command, opts.Env); err != nil {
		return nil, nil, err
	}

	p, err := openPipes()
	if err != nil {
		return nil, nil, newError(ErrLaunch, "create pipes for "+command[0], err)
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	if len(opts.Env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), opts.Env)
	}
	cmd.Dir = opts.Dir
	cmd.Stdin = p.stdinR
	cmd.Stdout = p.stdoutW
	cmd.Stderr = p.stderrW
	cmd.WaitDelay = opts.KillGrace
	configureProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		p.closeAll()
		return nil, nil, newError(ErrLaunch, "start "+command[0], err)
	}
	p.closeChildEnds()

	return cmd, p, nil
}
