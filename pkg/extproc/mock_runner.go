package extproc

import (
	"context"
	"fmt"
	"regexp"
	"sync"
)

var _ Runner = (*MockRunner)(nil)

type mockHandler struct {
	re *regexp.Regexp
	fn func(Cmd) (Output, error)
}

// MockRunner answers commands from registered handlers and records every command line.
// A handler registered later takes precedence over an earlier one matching the same command.
type MockRunner struct {
	mu       sync.Mutex
	handlers []mockHandler
	calls    []string
}

func NewMockRunner() *MockRunner {
	return &MockRunner{}
}

// On registers fn for every command whose rendered line matches pattern.
func (m *MockRunner) On(pattern string, fn func(Cmd) (Output, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers = append(m.handlers, mockHandler{
		re: regexp.MustCompile(pattern),
		fn: fn,
	})
}

// Reply makes matching commands succeed with the given output lines.
func (m *MockRunner) Reply(pattern string, lines ...string) {
	m.On(pattern, func(Cmd) (Output, error) {
		return Output{Lines: lines}, nil
	})
}

// Fail makes matching commands exit with status 1 and the given output lines.
func (m *MockRunner) Fail(pattern string, lines ...string) {
	m.On(pattern, func(c Cmd) (Output, error) {
		return Output{Lines: lines, ExitCode: 1}, fmt.Errorf("run %s: exit status 1", c.Name)
	})
}

func (m *MockRunner) Run(ctx context.Context, c Cmd) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	line := c.String()

	m.mu.Lock()
	m.calls = append(m.calls, line)
	var fn func(Cmd) (Output, error)
	for i := len(m.handlers) - 1; i >= 0; i-- {
		if m.handlers[i].re.MatchString(line) {
			fn = m.handlers[i].fn
			break
		}
	}
	m.mu.Unlock()

	if fn == nil {
		return Output{ExitCode: 127}, fmt.Errorf("run %s: no mock handler for %q", c.Name, line)
	}

	return fn(c)
}

func (m *MockRunner) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := make([]string, len(m.calls))
	copy(res, m.calls)
	return res
}

// Count returns how many recorded commands match pattern.
func (m *MockRunner) Count(pattern string) int {
	re := regexp.MustCompile(pattern)

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, line := range m.calls {
		if re.MatchString(line) {
			n++
		}
	}

	return n
}

func (m *MockRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = nil
}
