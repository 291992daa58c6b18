package probe

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/pkg/extproc"
	"github.com/padme-experiment/padme-cdr/pkg/logging"
)

var log = logging.New("probe")

var (
	// -rw-r--r-- 1 daq daq 1234567 Jan  1 12:00 run_7_20240101_120000_000.root
	lsLongLine = regexp.MustCompile(`^\s*(\S)\S*\s+\S+\s+\S+\s+\S+\s+(\d+)\s+\S+\s+\S+\s+\S+\s+(\S+)\s*$`)
	// 1,234,567  B  01/01/2024  12:00:00  /pdm/padme/daq/.../file.root  Never  ...
	dsmcArchiveLine = regexp.MustCompile(`^\s*([0-9,]+)\s+\S+\s+\S+\s+\S+\s+(\S+)\s+.*$`)
	dsmcNoMatch     = regexp.MustCompile(`^ANS1092W No files matching search criteria were found`)
	// checksum tools print "<checksum> <path>", gfal-sum prints "<path> <checksum>"
	adlerFirst = regexp.MustCompile(`^\s*([0-9a-fA-F]{1,8})\s+(\S+)\s*$`)
	adlerLast  = regexp.MustCompile(`^\s*(\S+)\s+([0-9a-fA-F]{1,8})\s*$`)

	lsNotFound     = regexp.MustCompile(`^ls: cannot access `)
	noSuchFile     = regexp.MustCompile(`No such file or directory`)
	gfalError      = regexp.MustCompile(`^gfal-\S+ error:\s+(\d+)\s+\((.*)\) - `)
	gfalStatSize   = regexp.MustCompile(`^\s*Size:\s+(\d+)\s`)
	gfalENOENTCode = 2
)

// Options are shared by every probe.
type Options struct {
	Runner extproc.Runner
	// ListTimeout is handed over to the grid tools with -t.
	ListTimeout time.Duration
}

// Factory builds the access layer of one site kind.
type Factory func(site core.Site, opts Options) (core.SiteAccess, error)

var (
	registryMu sync.RWMutex
	registry   = map[core.SiteKind]Factory{}
)

// Register makes a site kind available to New. It panics on duplicate registration.
func Register(kind core.SiteKind, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := registry[kind]; ok {
		panic(fmt.Sprintf("probe for site kind %s registered twice", kind))
	}

	registry[kind] = f
}

func init() {
	Register(core.GridStorage, func(site core.Site, opts Options) (core.SiteAccess, error) {
		return NewGrid(site, opts), nil
	})
	Register(core.RemoteShellDisk, func(site core.Site, opts Options) (core.SiteAccess, error) {
		return NewShellDisk(site, opts), nil
	})
	Register(core.RemoteShellTape, func(site core.Site, opts Options) (core.SiteAccess, error) {
		return NewShellTape(site, opts), nil
	})
	Register(core.LocalFilesystem, func(site core.Site, _ Options) (core.SiteAccess, error) {
		return NewLocal(site), nil
	})
}

// New builds the access layer matching the kind of site.
func New(site core.Site, opts Options) (core.SiteAccess, error) {
	registryMu.RLock()
	f, ok := registry[site.Kind]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no probe for site kind %s", site.Kind)
	}

	return f(site, opts)
}

var _ core.SiteAccessor = (*Accessor)(nil)

// Accessor hands out the access layer of resolved sites.
type Accessor struct {
	opts Options
}

func NewAccessor(opts Options) *Accessor {
	return &Accessor{opts: opts}
}

func (a *Accessor) Access(site core.Site) (core.SiteAccess, error) {
	return New(site, a.opts)
}

func parseSize(s string) (int64, error) {
	size, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", s, err)
	}

	return size, nil
}

// sizeFromLongListing finds the entry describing p in an "ls -l" style output.
func sizeFromLongListing(out extproc.Output, p string) (int64, bool) {
	base := path.Base(p)
	for _, m := range out.All(lsLongLine) {
		if m[3] != p && path.Base(m[3]) != base {
			continue
		}

		size, err := parseSize(m[2])
		if err != nil {
			continue
		}

		return size, true
	}

	return 0, false
}

// listingFromLongListing collects the regular files of an "ls -l" style output.
func listingFromLongListing(out extproc.Output) core.Listing {
	listing := core.Listing{}
	for _, m := range out.All(lsLongLine) {
		if m[1] != "-" {
			continue
		}

		size, err := parseSize(m[2])
		if err != nil {
			continue
		}

		listing[path.Base(m[3])] = core.FileAttributes{Size: size}
	}

	return listing
}

func checksumFrom(out extproc.Output, re *regexp.Regexp, group int) (string, bool) {
	m, ok := out.Last(re)
	if !ok {
		return "", false
	}

	return core.NormalizeChecksum(m[group]), true
}

func shellNotFound(out extproc.Output) bool {
	return out.Has(lsNotFound) || out.Has(noSuchFile)
}
