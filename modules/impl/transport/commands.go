package transport

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/pkg/extproc"
)

var (
	gfalCopyError = regexp.MustCompile(`^gfal-copy error: `)
	commandTimout = regexp.MustCompile(`^Command timed out`)
)

type gfalOpts struct {
	checksum   bool
	spaceToken string
	extra      []string
}

func (r *Router) gfalCopy(ctx context.Context, opts gfalOpts, src, dst string) (extproc.Output, error) {
	secs := strconv.Itoa(int(r.opts.CopyTimeout.Seconds()))
	args := []string{"-t", secs, "-T", secs, "-p"}
	if opts.checksum {
		args = append(args, "--checksum", "ADLER32")
	}

	if opts.spaceToken != "" {
		args = append(args, "-S", opts.spaceToken)
	}

	args = append(args, opts.extra...)
	args = append(args, src, dst)

	out, err := r.opts.Runner.Run(ctx, extproc.Command("gfal-copy", args...))
	if err == nil && (out.Has(gfalCopyError) || out.Has(commandTimout)) {
		err = fmt.Errorf("gfal-copy reported an error")
	}

	return out, err
}

// scp copies between any two locations. Remote locations are given as user@host:path.
func (r *Router) scp(ctx context.Context, keys []string, threeWay bool, src, dst string) (extproc.Output, error) {
	var args []string
	if threeWay {
		args = append(args, "-3")
	}

	seen := map[string]bool{}
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		args = append(args, "-i", k)
	}

	args = append(args, src, dst)
	return r.opts.Runner.Run(ctx, extproc.Command("scp", args...))
}

func gridURL(site core.Site, p string) string {
	return site.Endpoint + p
}

func fileURL(p string) string {
	return "file://" + p
}

func sftpURL(site core.Site, p string) string {
	return fmt.Sprintf("sftp://%s%s", site.Endpoint, p)
}

func remote(site core.Site, p string) string {
	return fmt.Sprintf("%s@%s:%s", site.User, site.Endpoint, p)
}

func sftpPluginArgs(site core.Site) []string {
	return []string{
		"-D", "SFTP PLUGIN:USER=" + site.User,
		"-D", "SFTP PLUGIN:PRIVKEY=" + site.KeyFile,
	}
}
