// Package testutil provides test helpers importable from any package.
package testutil

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

// LogCapture is an io.Writer for a slog handler that keeps every complete
// line, so a test can wait for a message logged by a goroutine it does not
// control.
type LogCapture struct {
	mu     sync.Mutex
	buf    []byte
	lines  []string
	notify chan struct{}
}

// NewLogCapture creates an empty LogCapture.
func NewLogCapture() *LogCapture {
	return &LogCapture{notify: make(chan struct{}, 1)}
}

// Write implements io.Writer. Lines are split on newlines.
func (c *LogCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	c.buf = append(c.buf, p...)
	for {
		idx := bytes.IndexByte(c.buf, '\n')
		if idx < 0 {
			break
		}
		if line := string(c.buf[:idx]); line != "" {
			c.lines = append(c.lines, line)
		}
		c.buf = c.buf[idx+1:]
	}
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return len(p), nil
}

// Lines returns a copy of the captured lines.
func (c *LogCapture) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// Count returns how many captured lines contain substr.
func (c *LogCapture) Count(substr string) int {
	n := 0
	for _, l := range c.Lines() {
		if strings.Contains(l, substr) {
			n++
		}
	}
	return n
}

// WaitFor waits up to timeout until at least n lines contain substr and
// returns the last of them. Calls t.Fatal on timeout.
func (c *LogCapture) WaitFor(t *testing.T, substr string, n int, timeout time.Duration) string {
	t.Helper()
	deadline := time.After(timeout)
	for {
		var last string
		seen := 0
		for _, l := range c.Lines() {
			if strings.Contains(l, substr) {
				seen++
				last = l
			}
		}
		if seen >= n {
			return last
		}
		select {
		case <-c.notify:
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for %d log lines containing %q; got:\n%s",
				n, substr, strings.Join(c.Lines(), "\n"))
			return ""
		}
	}
}
