package probe

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/padme-experiment/padme-cdr/core"
)

var _ core.SiteAccess = (*ShellTape)(nil)

// ShellTape probes a tape archive gateway. Files are looked up on the gateway disk first,
// then in the archive catalog, which never reports checksums.
type ShellTape struct {
	*ShellDisk
}

func NewShellTape(site core.Site, opts Options) *ShellTape {
	return &ShellTape{
		ShellDisk: NewShellDisk(site, opts),
	}
}

func (t *ShellTape) Exists(ctx context.Context, p string) (bool, error) {
	_, err := t.Size(ctx, p)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, core.ErrMissing) {
		return false, nil
	}

	return false, err
}

func (t *ShellTape) Size(ctx context.Context, p string) (int64, error) {
	size, err := t.ShellDisk.Size(ctx, p)
	if err == nil {
		return size, nil
	}

	out, qerr := t.ssh(ctx, "dsmc", "query", "archive", p)
	if !out.Has(dsmcNoMatch) {
		for _, m := range out.All(dsmcArchiveLine) {
			if m[2] != p {
				continue
			}

			if size, perr := parseSize(m[1]); perr == nil {
				return size, nil
			}
		}
	}

	if qerr != nil {
		log.Debugw("archive query failed", "site", t.site.Label(), "path", p, "err", qerr)
	}

	return 0, fmt.Errorf("%s at %s: %w", p, t.site.Label(), core.ErrMissing)
}

func (t *ShellTape) Stat(ctx context.Context, p string) (core.FileAttributes, error) {
	return stat(ctx, t, p)
}

// List merges the files on the gateway disk with the ones already archived.
func (t *ShellTape) List(ctx context.Context, dir string) (core.Listing, error) {
	disk, derr := t.ShellDisk.List(ctx, dir)
	if derr != nil && !errors.Is(derr, core.ErrPathNotFound) {
		return nil, derr
	}

	dir = path.Clean(dir)
	out, err := t.ssh(ctx, "dsmc", "query", "archive", dir+`/\*.root`)
	listing := core.Listing{}
	if !out.Has(dsmcNoMatch) {
		matches := out.All(dsmcArchiveLine)
		if err != nil && len(matches) == 0 {
			return nil, fmt.Errorf("query archive %s at %s: %w", dir, t.site.Label(), err)
		}

		for _, m := range matches {
			if path.Dir(m[2]) != dir {
				continue
			}

			size, perr := parseSize(m[1])
			if perr != nil {
				continue
			}

			listing[path.Base(m[2])] = core.FileAttributes{Size: size}
		}
	}

	for name, attrs := range disk {
		listing[name] = attrs
	}

	if derr != nil && len(listing) == 0 {
		return nil, fmt.Errorf("%s at %s: %w", dir, t.site.Label(), core.ErrPathNotFound)
	}

	return listing, nil
}

// RemoveAll is refused: archived files can only be removed by the archive administrators.
func (t *ShellTape) RemoveAll(_ context.Context, dir string) error {
	return fmt.Errorf("remove %s at %s: %w", dir, t.site.Label(), core.ErrUnsupportedOperation)
}
