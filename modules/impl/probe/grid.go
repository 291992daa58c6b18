package probe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/pkg/extproc"
)

var _ core.SiteAccess = (*Grid)(nil)

// Grid talks to an SRM storage element through the gfal2 command line tools.
type Grid struct {
	site core.Site
	opts Options
}

func NewGrid(site core.Site, opts Options) *Grid {
	return &Grid{
		site: site,
		opts: opts,
	}
}

func (g *Grid) Site() core.Site {
	return g.site
}

// URL returns the SRM url of a path at this site.
func (g *Grid) URL(p string) string {
	return g.site.Endpoint + p
}

func (g *Grid) timeoutArgs() []string {
	if g.opts.ListTimeout <= 0 {
		return nil
	}

	return []string{"-t", strconv.Itoa(int(g.opts.ListTimeout.Seconds()))}
}

func (g *Grid) run(ctx context.Context, name string, args ...string) (extproc.Output, error) {
	full := append(g.timeoutArgs(), args...)
	return g.opts.Runner.Run(ctx, extproc.Command(name, full...))
}

func (g *Grid) Exists(ctx context.Context, p string) (bool, error) {
	_, err := g.Size(ctx, p)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, core.ErrMissing) {
		return false, nil
	}

	return false, err
}

func (g *Grid) Size(ctx context.Context, p string) (int64, error) {
	url := g.URL(p)

	out, err := g.run(ctx, "gfal-ls", "-l", url)
	if size, ok := sizeFromLongListing(out, p); ok {
		return size, nil
	}

	if err != nil {
		log.Debugw("gfal-ls failed", "url", url, "err", err)
	}

	// some storage elements do not answer long listings of single files
	out, err = g.run(ctx, "gfal-stat", url)
	if m, ok := out.First(gfalStatSize); ok {
		if size, perr := parseSize(m[1]); perr == nil {
			return size, nil
		}
	}

	if err != nil {
		log.Debugw("gfal-stat failed", "url", url, "err", err)
	}

	return 0, fmt.Errorf("%s at %s: %w", p, g.site.Label(), core.ErrMissing)
}

func (g *Grid) Checksum(ctx context.Context, p string) (string, error) {
	out, err := g.run(ctx, "gfal-sum", g.URL(p), "adler32")
	if sum, ok := checksumFrom(out, adlerLast, 2); ok && err == nil {
		return sum, nil
	}

	return "", fmt.Errorf("%s at %s: %w", p, g.site.Label(), core.ErrChecksumUnavailable)
}

func (g *Grid) Stat(ctx context.Context, p string) (core.FileAttributes, error) {
	return stat(ctx, g, p)
}

func (g *Grid) List(ctx context.Context, dir string) (core.Listing, error) {
	url := g.URL(dir)
	out, err := g.run(ctx, "gfal-ls", "-l", url)
	if m, ok := out.First(gfalError); ok {
		if code, _ := strconv.Atoi(m[1]); code == gfalENOENTCode {
			return nil, fmt.Errorf("%s at %s: %w", dir, g.site.Label(), core.ErrPathNotFound)
		}

		return nil, fmt.Errorf("list %s: %s", url, strings.TrimSpace(m[2]))
	}

	if err != nil {
		return nil, fmt.Errorf("list %s: %w", url, err)
	}

	return listingFromLongListing(out), nil
}

func (g *Grid) Remove(ctx context.Context, p string) error {
	url := g.URL(p)
	out, err := g.run(ctx, "gfal-rm", url)
	if err != nil {
		return fmt.Errorf("gfal-rm %s: %w: %s", url, err, out.String())
	}

	return nil
}

func (g *Grid) RemoveAll(ctx context.Context, dir string) error {
	url := g.URL(dir)
	out, err := g.run(ctx, "gfal-rm", "-r", url)
	if err != nil {
		return fmt.Errorf("gfal-rm -r %s: %w: %s", url, err, out.String())
	}

	return nil
}

type sizeChecksummer interface {
	Size(ctx context.Context, p string) (int64, error)
	Checksum(ctx context.Context, p string) (string, error)
}

// stat combines size and checksum. A checksum failure leaves the checksum empty.
func stat(ctx context.Context, p sizeChecksummer, name string) (core.FileAttributes, error) {
	size, err := p.Size(ctx, name)
	if err != nil {
		return core.FileAttributes{}, err
	}

	attrs := core.FileAttributes{Size: size}
	sum, err := p.Checksum(ctx, name)
	if err != nil {
		if !errors.Is(err, core.ErrChecksumUnavailable) {
			return attrs, err
		}

		log.Debugw("checksum unavailable", "path", name, "err", err)
		return attrs, nil
	}

	attrs.Checksum = sum
	return attrs, nil
}
