package process

import (
	"bufio"
	"bytes"
	"math"
	"os"
	"slices"
	"sync"
)

const initialLineBuffer = 4096

// lineBuffer collects the lines read by one drainer.
type lineBuffer struct {
	mu    sync.Mutex
	lines []string
}

func (b *lineBuffer) append(line string) {
	b.mu.Lock()
	b.lines = append(b.lines, line)
	b.mu.Unlock()
}

func (b *lineBuffer) snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lines == nil {
		return []string{}
	}
	return slices.Clone(b.lines)
}

// drain reads r line by line until EOF, a hook failure or a read error.
// The read end is closed when drain returns.
func (e *Executor) drain(t *task, r *os.File, buf *lineBuffer, what string, hook func(string) error) error {
	defer r.Close()
	t.start()

	limit := e.opts.MaxLineSize
	if limit <= 0 {
		limit = math.MaxInt
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(initialLineBuffer, limit)), limit)
	scanner.Split(splitLines())

	for scanner.Scan() {
		line := scanner.Text()
		buf.append(line)

		if err := callHook(what, func() error { return hook(line) }); err != nil {
			t.finish(TaskFailed, 0, err)
			e.killOnFailure(t.name, err)
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		if e.killed.Load() {
			e.logger.Debug("Stream closed after kill", "stream", t.name, "error", err)
			t.finish(TaskCompleted, 0, nil)
			return nil
		}
		ioErr := newError(ErrIO, "read "+t.name+" of "+e.name, err)
		t.finish(TaskFailed, 0, ioErr)
		e.killOnFailure(t.name, ioErr)
		return ioErr
	}

	t.finish(TaskCompleted, 0, nil)
	return nil
}

// splitLines returns a split function that ends a line at "\n", "\r" or
// "\r\n". A line ending in a lone "\r" is delivered at once; a "\n"
// arriving next is then skipped.
func splitLines() bufio.SplitFunc {
	skipLF := false
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if skipLF && len(data) > 0 {
			skipLF = false
			if data[0] == '\n' {
				return 1, nil, nil
			}
		}

		if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
			if data[i] == '\r' {
				switch {
				case i+1 == len(data):
					skipLF = true
				case data[i+1] == '\n':
					return i + 2, data[:i], nil
				}
			}
			return i + 1, data[:i], nil
		}

		if atEOF && len(data) > 0 {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}
