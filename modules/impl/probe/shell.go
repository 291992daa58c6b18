package probe

import (
	"context"
	"errors"
	"fmt"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/pkg/extproc"
)

// SSHCommand runs remote on the host of a remote shell site.
func SSHCommand(site core.Site, remote ...string) extproc.Cmd {
	args := []string{"-n", "-i", site.KeyFile, "-l", site.User, site.Endpoint}
	return extproc.Command("ssh", append(args, remote...)...)
}

var _ core.SiteAccess = (*ShellDisk)(nil)

// ShellDisk probes a disk server reachable through ssh.
type ShellDisk struct {
	site core.Site
	opts Options
}

func NewShellDisk(site core.Site, opts Options) *ShellDisk {
	return &ShellDisk{
		site: site,
		opts: opts,
	}
}

func (s *ShellDisk) Site() core.Site {
	return s.site
}

func (s *ShellDisk) ssh(ctx context.Context, remote ...string) (extproc.Output, error) {
	return s.opts.Runner.Run(ctx, SSHCommand(s.site, remote...))
}

func (s *ShellDisk) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.Size(ctx, p)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, core.ErrMissing) {
		return false, nil
	}

	return false, err
}

func (s *ShellDisk) Size(ctx context.Context, p string) (int64, error) {
	out, err := s.ssh(ctx, "ls", "-l", p)
	if size, ok := sizeFromLongListing(out, p); ok {
		return size, nil
	}

	if err != nil && !shellNotFound(out) {
		log.Debugw("remote ls failed", "site", s.site.Label(), "path", p, "err", err)
	}

	return 0, fmt.Errorf("%s at %s: %w", p, s.site.Label(), core.ErrMissing)
}

func (s *ShellDisk) Checksum(ctx context.Context, p string) (string, error) {
	if s.site.ChecksumTool == "" {
		return "", fmt.Errorf("%s at %s: no checksum tool: %w", p, s.site.Label(), core.ErrChecksumUnavailable)
	}

	out, err := s.ssh(ctx, s.site.ChecksumTool, p)
	if sum, ok := checksumFrom(out, adlerFirst, 1); ok && err == nil {
		return sum, nil
	}

	return "", fmt.Errorf("%s at %s: %w", p, s.site.Label(), core.ErrChecksumUnavailable)
}

func (s *ShellDisk) Stat(ctx context.Context, p string) (core.FileAttributes, error) {
	return stat(ctx, s, p)
}

func (s *ShellDisk) List(ctx context.Context, dir string) (core.Listing, error) {
	out, err := s.ssh(ctx, "ls", "-l", dir)
	if shellNotFound(out) {
		return nil, fmt.Errorf("%s at %s: %w", dir, s.site.Label(), core.ErrPathNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("list %s at %s: %w", dir, s.site.Label(), err)
	}

	return listingFromLongListing(out), nil
}

func (s *ShellDisk) Remove(ctx context.Context, p string) error {
	out, err := s.ssh(ctx, "rm", "-f", p)
	if err != nil {
		return fmt.Errorf("remove %s at %s: %w: %s", p, s.site.Label(), err, out.String())
	}

	return nil
}

func (s *ShellDisk) RemoveAll(ctx context.Context, dir string) error {
	out, err := s.ssh(ctx, "rm", "-rf", dir)
	if err != nil {
		return fmt.Errorf("remove %s at %s: %w: %s", dir, s.site.Label(), err, out.String())
	}

	return nil
}

// MkdirAll creates dir and its parents.
func (s *ShellDisk) MkdirAll(ctx context.Context, dir string) error {
	out, err := s.ssh(ctx, "mkdir", "-p", dir)
	if err != nil {
		return fmt.Errorf("mkdir %s at %s: %w: %s", dir, s.site.Label(), err, out.String())
	}

	return nil
}

// Rename moves a file within the site.
func (s *ShellDisk) Rename(ctx context.Context, from, to string) error {
	out, err := s.ssh(ctx, "mv", from, to)
	if err != nil {
		return fmt.Errorf("move %s to %s at %s: %w: %s", from, to, s.site.Label(), err, out.String())
	}

	return nil
}
