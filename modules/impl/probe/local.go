package probe

import (
	"context"
	"errors"
	"fmt"
	"hash/adler32"
	"io"
	"io/fs"
	"os"

	"github.com/padme-experiment/padme-cdr/core"
)

var _ core.SiteAccess = (*Local)(nil)

// Local serves a directory tree of the machine running the command.
type Local struct {
	site core.Site
}

func NewLocal(site core.Site) *Local {
	return &Local{site: site}
}

func (l *Local) Site() core.Site {
	return l.site
}

func (l *Local) Exists(ctx context.Context, p string) (bool, error) {
	_, err := l.Size(ctx, p)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, core.ErrMissing) {
		return false, nil
	}

	return false, err
}

func (l *Local) Size(_ context.Context, p string) (int64, error) {
	fi, err := os.Stat(p)
	if err != nil || !fi.Mode().IsRegular() {
		return 0, fmt.Errorf("%s at %s: %w", p, l.site.Label(), core.ErrMissing)
	}

	return fi.Size(), nil
}

// Checksum computes the Adler-32 of p when the site is declared checksum capable.
func (l *Local) Checksum(ctx context.Context, p string) (string, error) {
	if !l.site.Caps.Checksum {
		return "", fmt.Errorf("%s at %s: %w", p, l.site.Label(), core.ErrChecksumUnavailable)
	}

	sum, err := FileAdler32(ctx, p)
	if err != nil {
		log.Debugw("compute adler32", "path", p, "err", err)
		return "", fmt.Errorf("%s at %s: %w", p, l.site.Label(), core.ErrChecksumUnavailable)
	}

	return sum, nil
}

func (l *Local) Stat(ctx context.Context, p string) (core.FileAttributes, error) {
	return stat(ctx, l, p)
}

func (l *Local) List(_ context.Context, dir string) (core.Listing, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s at %s: %w", dir, l.site.Label(), core.ErrPathNotFound)
		}

		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	listing := core.Listing{}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		listing[entry.Name()] = core.FileAttributes{Size: info.Size()}
	}

	return listing, nil
}

func (l *Local) Remove(_ context.Context, p string) error {
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", p, err)
	}

	return nil
}

func (l *Local) RemoveAll(_ context.Context, dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}

	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}

	return cr.r.Read(p)
}

// FileAdler32 returns the Adler-32 checksum of a local file as 8 lowercase hex digits.
func FileAdler32(ctx context.Context, p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}

	defer f.Close()

	h := adler32.New()
	if _, err := io.Copy(h, ctxReader{ctx: ctx, r: f}); err != nil {
		return "", fmt.Errorf("read %s: %w", p, err)
	}

	return fmt.Sprintf("%08x", h.Sum32()), nil
}
