package transport

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/modules/impl/probe"
)

func copyGridToGrid(ctx context.Context, r *Router, req core.CopyRequest) error {
	cl := &cleanup{file: req.File}
	cl.add(removeWith(probe.NewGrid(req.Dst, r.probeOpts()).Remove, req.DstPath))

	out, err := r.gfalCopy(ctx, gfalOpts{checksum: true, spaceToken: req.Dst.SpaceToken},
		gridURL(req.Src, req.SrcPath), gridURL(req.Dst, req.DstPath))
	if err != nil {
		return cl.fail(transportErr(req, "gfal-copy", err, out))
	}

	return nil
}

func copyGridToLocal(ctx context.Context, r *Router, req core.CopyRequest) error {
	if err := os.MkdirAll(filepath.Dir(req.DstPath), 0755); err != nil {
		return transportErr(req, "create destination directory", err, noOutput)
	}

	cl := &cleanup{file: req.File}
	cl.add(removeLocal(req.DstPath))

	out, err := r.gfalCopy(ctx, gfalOpts{}, gridURL(req.Src, req.SrcPath), fileURL(req.DstPath))
	if err != nil {
		return cl.fail(transportErr(req, "gfal-copy", err, out))
	}

	return nil
}

func copyShellToGrid(ctx context.Context, r *Router, req core.CopyRequest) error {
	cl := &cleanup{file: req.File}
	cl.add(removeWith(probe.NewGrid(req.Dst, r.probeOpts()).Remove, req.DstPath))

	opts := gfalOpts{spaceToken: req.Dst.SpaceToken, extra: sftpPluginArgs(req.Src)}
	out, err := r.gfalCopy(ctx, opts, sftpURL(req.Src, req.SrcPath), gridURL(req.Dst, req.DstPath))
	if err != nil {
		return cl.fail(transportErr(req, "gfal-copy", err, out))
	}

	return nil
}

func copyShellToLocal(ctx context.Context, r *Router, req core.CopyRequest) error {
	if err := os.MkdirAll(filepath.Dir(req.DstPath), 0755); err != nil {
		return transportErr(req, "create destination directory", err, noOutput)
	}

	cl := &cleanup{file: req.File}
	cl.add(removeLocal(req.DstPath))

	out, err := r.scp(ctx, []string{req.Src.KeyFile}, false, remote(req.Src, req.SrcPath), req.DstPath)
	if err != nil {
		return cl.fail(transportErr(req, "scp", err, out))
	}

	return nil
}

func copyLocalToGrid(ctx context.Context, r *Router, req core.CopyRequest) error {
	cl := &cleanup{file: req.File}
	cl.add(removeWith(probe.NewGrid(req.Dst, r.probeOpts()).Remove, req.DstPath))

	out, err := r.gfalCopy(ctx, gfalOpts{spaceToken: req.Dst.SpaceToken}, fileURL(req.SrcPath), gridURL(req.Dst, req.DstPath))
	if err != nil {
		return cl.fail(transportErr(req, "gfal-copy", err, out))
	}

	return nil
}

// copyGridToShell relays the file through the local scratch area since the remote
// shell sites cannot talk to the storage elements.
func copyGridToShell(ctx context.Context, r *Router, req core.CopyRequest) error {
	scratch, err := r.scratchFile(ctx, req)
	if err != nil {
		return err
	}

	defer func() {
		if err := os.Remove(scratch); err != nil && !os.IsNotExist(err) {
			log.Warnw("remove scratch copy", "path", scratch, "err", err)
		}
	}()

	out, err := r.gfalCopy(ctx, gfalOpts{}, gridURL(req.Src, req.SrcPath), fileURL(scratch))
	if err != nil {
		return transportErr(req, "gfal-copy to scratch", err, out)
	}

	// the scratch copy is the source of the last leg
	leg := req
	leg.Src = core.Site{Name: req.Src.Name, Kind: core.LocalFilesystem, Endpoint: filepath.Dir(scratch)}
	leg.SrcPath = scratch
	return copyLocalToShell(ctx, r, leg)
}

func copyShellToShell(ctx context.Context, r *Router, req core.CopyRequest) error {
	return r.toShell(ctx, req, func(ctx context.Context, target string) error {
		out, err := r.scp(ctx, []string{req.Src.KeyFile, req.Dst.KeyFile}, true, remote(req.Src, req.SrcPath), remote(req.Dst, target))
		if err != nil {
			return transportErr(req, "scp -3", err, out)
		}

		return nil
	})
}

func copyLocalToShell(ctx context.Context, r *Router, req core.CopyRequest) error {
	return r.toShell(ctx, req, func(ctx context.Context, target string) error {
		out, err := r.scp(ctx, []string{req.Dst.KeyFile}, false, req.SrcPath, remote(req.Dst, target))
		if err != nil {
			return transportErr(req, "scp", err, out)
		}

		return nil
	})
}

// toShell delivers a file to a remote shell site. Tape gateways receive the file in
// their temporary area, where it is verified before being moved into place.
func (r *Router) toShell(ctx context.Context, req core.CopyRequest, send func(ctx context.Context, target string) error) error {
	dst := probe.NewShellDisk(req.Dst, r.probeOpts())
	if err := dst.MkdirAll(ctx, path.Dir(req.DstPath)); err != nil {
		return transportErr(req, "create destination directory", err, noOutput)
	}

	cl := &cleanup{file: req.File}
	if req.Dst.Kind != core.RemoteShellTape {
		cl.add(removeWith(dst.Remove, req.DstPath))
		if err := send(ctx, req.DstPath); err != nil {
			return cl.fail(err)
		}

		return nil
	}

	tmp := path.Join(req.Dst.TmpDir, path.Base(req.DstPath))
	cl.add(removeWith(dst.Remove, tmp))

	if err := send(ctx, tmp); err != nil {
		return cl.fail(err)
	}

	if err := r.verifyStaged(ctx, dst, tmp, req); err != nil {
		return cl.fail(err)
	}

	if err := dst.Rename(ctx, tmp, req.DstPath); err != nil {
		return cl.fail(transportErr(req, "move into place", err, noOutput))
	}

	return nil
}

// verifyStaged requires equal sizes and two equal checksums before a staged file is released.
func (r *Router) verifyStaged(ctx context.Context, dst *probe.ShellDisk, tmp string, req core.CopyRequest) error {
	expected := req.Expected
	if !expected.HasChecksum() && req.Src.Kind == core.LocalFilesystem {
		if sum, err := probe.FileAdler32(ctx, req.SrcPath); err == nil {
			expected.Checksum = sum
		}
	}

	observed, err := dst.Stat(ctx, tmp)
	if err != nil {
		return transportErr(req, "check staged copy", err, noOutput)
	}

	verdict := core.VerdictMatch
	switch {
	case observed.Size != expected.Size:
		verdict = core.VerdictSizeMismatch
	case !observed.HasChecksum() || !expected.HasChecksum():
		verdict = core.VerdictChecksumMissing
	case observed.Checksum != expected.Checksum:
		verdict = core.VerdictChecksumMismatch
	}

	if verdict == core.VerdictMatch {
		return nil
	}

	return &core.MismatchError{
		File:     req.File,
		Src:      req.Src.Label(),
		Dst:      fmt.Sprintf("%s:%s", req.Dst.Label(), tmp),
		Expected: expected,
		Observed: observed,
		Verdict:  verdict,
		Base:     core.ErrVerifyMismatch,
	}
}
