package extproc

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Runner spawns one external process and waits for it.
type Runner interface {
	Run(ctx context.Context, c Cmd) (Output, error)
}

type Cmd struct {
	Name    string
	Args    []string
	Timeout time.Duration
}

func Command(name string, args ...string) Cmd {
	return Cmd{
		Name: name,
		Args: args,
	}
}

func (c Cmd) WithTimeout(d time.Duration) Cmd {
	c.Timeout = d
	return c
}

func (c Cmd) String() string {
	var sb strings.Builder
	_, _ = sb.WriteString(c.Name)
	for _, arg := range c.Args {
		_ = sb.WriteByte(' ')
		if arg == "" || strings.ContainsAny(arg, " \t\"'") {
			_, _ = sb.WriteString(`"` + strings.ReplaceAll(arg, `"`, `\"`) + `"`)
			continue
		}
		_, _ = sb.WriteString(arg)
	}

	return sb.String()
}

// Output holds the merged stdout and stderr of a finished command, split in lines.
type Output struct {
	Lines    []string
	ExitCode int
}

func NewOutput(raw []byte, code int) Output {
	text := strings.TrimRight(string(raw), "\n")
	if text == "" {
		return Output{ExitCode: code}
	}

	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
	}

	return Output{
		Lines:    lines,
		ExitCode: code,
	}
}

// First returns the submatches of the first line matching re.
func (o Output) First(re *regexp.Regexp) ([]string, bool) {
	for _, line := range o.Lines {
		if m := re.FindStringSubmatch(line); m != nil {
			return m, true
		}
	}

	return nil, false
}

// Last returns the submatches of the last line matching re.
func (o Output) Last(re *regexp.Regexp) ([]string, bool) {
	for i := len(o.Lines) - 1; i >= 0; i-- {
		if m := re.FindStringSubmatch(o.Lines[i]); m != nil {
			return m, true
		}
	}

	return nil, false
}

// All returns the submatches of every matching line, in output order.
func (o Output) All(re *regexp.Regexp) [][]string {
	var res [][]string
	for _, line := range o.Lines {
		if m := re.FindStringSubmatch(line); m != nil {
			res = append(res, m)
		}
	}

	return res
}

func (o Output) Has(re *regexp.Regexp) bool {
	_, ok := o.First(re)
	return ok
}

func (o Output) String() string {
	return strings.Join(o.Lines, "\n")
}
