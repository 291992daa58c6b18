package extproc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/padme-experiment/padme-cdr/pkg/logging"
)

var log = logging.New("extproc")

var ErrTimeout = fmt.Errorf("command timed out")

var _ Runner = (*ExecRunner)(nil)

func NewExecRunner(cfg Config) *ExecRunner {
	var limiter chan struct{}
	if cfg.Concurrent > 0 {
		limiter = make(chan struct{}, cfg.Concurrent)
	}

	env := os.Environ()
	for k, v := range cfg.Envs {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	return &ExecRunner{
		cfg:     cfg,
		limiter: limiter,
		env:     env,
	}
}

type ExecRunner struct {
	cfg     Config
	limiter chan struct{}
	env     []string
}

func (r *ExecRunner) Run(ctx context.Context, c Cmd) (Output, error) {
	if r.limiter != nil {
		select {
		case <-ctx.Done():
			return Output{}, ctx.Err()
		case r.limiter <- struct{}{}:
		}
		defer func() {
			<-r.limiter
		}()
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = r.cfg.Timeout
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	l := log.With("cmd", c.String())
	start := time.Now()

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Env = r.env
	raw, err := cmd.CombinedOutput()

	code := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}

	out := NewOutput(raw, code)
	l.Debugw("command finished", "exit", code, "lines", len(out.Lines), "elapsed", time.Since(start).String())

	if ctx.Err() == context.DeadlineExceeded {
		return out, fmt.Errorf("%s: %w after %s", c.Name, ErrTimeout, timeout)
	}

	if err != nil {
		return out, fmt.Errorf("run %s: %w", c.Name, err)
	}

	return out, nil
}
