package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/modules/impl/probe"
	"github.com/padme-experiment/padme-cdr/pkg/extproc"
	"github.com/padme-experiment/padme-cdr/pkg/logging"
)

var log = logging.New("transport")

type Options struct {
	Runner extproc.Runner
	// CopyTimeout is passed to gfal-copy as global and per transfer timeout.
	CopyTimeout time.Duration
	// ScratchDir holds local copies of files relayed through this machine.
	ScratchDir     string
	ScratchMinFree int64
}

type routeKey struct {
	src core.SiteKind
	dst core.SiteKind
}

type routeFunc func(ctx context.Context, r *Router, req core.CopyRequest) error

// routes lists every supported (source, destination) pair. A tape gateway is never a source.
var routes = map[routeKey]routeFunc{
	{core.GridStorage, core.GridStorage}:     copyGridToGrid,
	{core.GridStorage, core.RemoteShellDisk}: copyGridToShell,
	{core.GridStorage, core.RemoteShellTape}: copyGridToShell,
	{core.GridStorage, core.LocalFilesystem}: copyGridToLocal,

	{core.RemoteShellDisk, core.GridStorage}:     copyShellToGrid,
	{core.RemoteShellDisk, core.RemoteShellDisk}: copyShellToShell,
	{core.RemoteShellDisk, core.RemoteShellTape}: copyShellToShell,
	{core.RemoteShellDisk, core.LocalFilesystem}: copyShellToLocal,

	{core.LocalFilesystem, core.GridStorage}:     copyLocalToGrid,
	{core.LocalFilesystem, core.RemoteShellDisk}: copyLocalToShell,
	{core.LocalFilesystem, core.RemoteShellTape}: copyLocalToShell,
	{core.LocalFilesystem, core.LocalFilesystem}: copyLocalToLocal,
}

var _ core.Transporter = (*Router)(nil)

// Router dispatches each copy to the protocol of its site pair.
type Router struct {
	opts Options
}

func NewRouter(opts Options) *Router {
	return &Router{opts: opts}
}

func (r *Router) Supports(src, dst core.SiteKind) bool {
	_, ok := routes[routeKey{src: src, dst: dst}]
	return ok
}

// Copy runs the protocol of the pair. On failure the destination and every intermediate
// copy created along the way are removed.
func (r *Router) Copy(ctx context.Context, req core.CopyRequest) error {
	fn, ok := routes[routeKey{src: req.Src.Kind, dst: req.Dst.Kind}]
	if !ok {
		return fmt.Errorf("%s (%s) -> %s (%s): %w", req.Src.Label(), req.Src.Kind, req.Dst.Label(), req.Dst.Kind, core.ErrUnsupportedRoute)
	}

	log.Infow("starting copy", "file", req.File, "src", req.Src.Label(), "dst", req.Dst.Label())
	return fn(ctx, r, req)
}

func (r *Router) probeOpts() probe.Options {
	return probe.Options{Runner: r.opts.Runner}
}

// cleanup collects the undo steps of a copy in progress.
type cleanup struct {
	file  string
	steps []func(context.Context) error
}

func (c *cleanup) add(step func(context.Context) error) {
	c.steps = append(c.steps, step)
}

// fail runs every registered step, newest first, and returns cause.
// Cleanup must run even when ctx was cancelled, so it gets a fresh context.
func (c *cleanup) fail(cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var merr *multierror.Error
	for i := len(c.steps) - 1; i >= 0; i-- {
		if err := c.steps[i](ctx); err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	if err := merr.ErrorOrNil(); err != nil {
		log.Warnw("cleanup after failed copy incomplete", "file", c.file, "err", err)
	}

	return cause
}

func transportErr(req core.CopyRequest, step string, err error, out extproc.Output) error {
	if last := lastLine(out); last != "" {
		return fmt.Errorf("%s %s -> %s: %s: %w: %v (%s)", req.File, req.Src.Label(), req.Dst.Label(), step, core.ErrTransportFailure, err, last)
	}

	return fmt.Errorf("%s %s -> %s: %s: %w: %v", req.File, req.Src.Label(), req.Dst.Label(), step, core.ErrTransportFailure, err)
}

func lastLine(out extproc.Output) string {
	if len(out.Lines) == 0 {
		return ""
	}

	return out.Lines[len(out.Lines)-1]
}
