package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/pkg/extproc"
)

var noOutput = extproc.Output{}

func removeLocal(p string) func(context.Context) error {
	return func(context.Context) error {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", p, err)
		}

		return nil
	}
}

func removeWith(rm func(context.Context, string) error, p string) func(context.Context) error {
	return func(ctx context.Context) error {
		return rm(ctx, p)
	}
}

// scratchFile reserves a unique path in the scratch area after checking that the file fits.
func (r *Router) scratchFile(ctx context.Context, req core.CopyRequest) (string, error) {
	if err := os.MkdirAll(r.opts.ScratchDir, 0755); err != nil {
		return "", transportErr(req, "create scratch directory", err, noOutput)
	}

	usage, err := disk.UsageWithContext(ctx, r.opts.ScratchDir)
	if err != nil {
		return "", transportErr(req, "check scratch space", err, noOutput)
	}

	need := uint64(r.opts.ScratchMinFree)
	if req.Expected.Size > 0 {
		need += uint64(req.Expected.Size)
	}

	if usage.Free < need {
		err := fmt.Errorf("%s free in %s, %s needed", units.BytesSize(float64(usage.Free)), r.opts.ScratchDir, units.BytesSize(float64(need)))
		return "", transportErr(req, "check scratch space", err, noOutput)
	}

	return filepath.Join(r.opts.ScratchDir, fmt.Sprintf("%s.%s", req.File, uuid.NewString())), nil
}

// copyLocalToLocal writes into a temporary file next to the destination and renames it
// into place once complete.
func copyLocalToLocal(ctx context.Context, _ *Router, req core.CopyRequest) error {
	dir := filepath.Dir(req.DstPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return transportErr(req, "create destination directory", err, noOutput)
	}

	src, err := os.Open(req.SrcPath)
	if err != nil {
		return transportErr(req, "open source", err, noOutput)
	}

	defer src.Close()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(req.DstPath)+".*")
	if err != nil {
		return transportErr(req, "create temporary file", err, noOutput)
	}

	cl := &cleanup{file: req.File}
	cl.add(removeLocal(tmp.Name()))

	_, err = io.Copy(tmp, &ctxReader{ctx: ctx, r: src})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		return cl.fail(transportErr(req, "copy", err, noOutput))
	}

	if err := os.Rename(tmp.Name(), req.DstPath); err != nil {
		return cl.fail(transportErr(req, "rename into place", err, noOutput))
	}

	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}

	return cr.r.Read(p)
}
