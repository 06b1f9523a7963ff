package process

import (
	"bufio"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
)

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"newline", "a\nb\n", []string{"a", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"lone cr", "a\rb\r", []string{"a", "b"}},
		{"cr cr", "a\r\rb", []string{"a", "", "b"}},
		{"blank lines", "\n\nx\n\n", []string{"", "", "x", ""}},
		{"no terminator", "tail", []string{"tail"}},
		{"empty", "", nil},
	}

	readers := map[string]func(string) io.Reader{
		"whole":    func(s string) io.Reader { return strings.NewReader(s) },
		"one byte": func(s string) io.Reader { return iotest.OneByteReader(strings.NewReader(s)) },
	}

	for _, tt := range tests {
		for rname, newReader := range readers {
			t.Run(tt.name+"/"+rname, func(t *testing.T) {
				scanner := bufio.NewScanner(newReader(tt.input))
				scanner.Split(splitLines())

				var got []string
				for scanner.Scan() {
					got = append(got, scanner.Text())
				}
				assert.NoError(t, scanner.Err())
				assert.Equal(t, tt.want, got)
			})
		}
	}
}
