package sites

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/padme-experiment/padme-cdr/core"
)

var (
	rawNameRe = regexp.MustCompile(`^(run_(\d+)_(\d{4})\d{4}_\d{6})(?:[_.][^/\s]*)?$`)
	runNameRe = regexp.MustCompile(`^run_(\d+)_(\d{4})\d{4}_\d{6}$`)

	layoutPlaceholders = []string{"{year}", "{run}", "{file}"}
)

// ParseRaw extracts the run and year components from a raw data file name.
func ParseRaw(filename string) (core.RawName, error) {
	m := rawNameRe.FindStringSubmatch(filename)
	if m == nil {
		return core.RawName{}, fmt.Errorf("%w: %q", core.ErrNamingConvention, filename)
	}

	return core.RawName{
		File:  filename,
		Run:   m[1],
		RunID: m[2],
		Year:  m[3],
	}, nil
}

// ParseRun validates a run name and returns its year.
func ParseRun(run string) (year string, err error) {
	m := runNameRe.FindStringSubmatch(run)
	if m == nil {
		return "", fmt.Errorf("%w: run %q", core.ErrNamingConvention, run)
	}

	return m[2], nil
}

// ValidateLayout checks that a layout template is usable for raw files.
func ValidateLayout(layout string) error {
	if !strings.HasSuffix(layout, "{file}") {
		return fmt.Errorf("layout %q must end with {file}", layout)
	}

	if !strings.Contains(layout, "{run}") {
		return fmt.Errorf("layout %q must contain {run}", layout)
	}

	rest := layout
	for _, p := range layoutPlaceholders {
		rest = strings.ReplaceAll(rest, p, "")
	}

	if strings.ContainsAny(rest, "{}") {
		return fmt.Errorf("layout %q contains unknown placeholders", layout)
	}

	return nil
}

// Resolver maps logical names to physical paths at a site. It performs no I/O.
type Resolver struct{}

func NewResolver() Resolver {
	return Resolver{}
}

// Resolve returns the physical path of a raw data file at site.
func (Resolver) Resolve(filename string, site core.Site) (string, error) {
	raw, err := ParseRaw(filename)
	if err != nil {
		return "", err
	}

	return expand(site, raw.Year, raw.Run, raw.File), nil
}

// RunDir returns the directory holding the files of run at site. A non-empty year
// overrides the one encoded in the run name.
func (Resolver) RunDir(run string, year string, site core.Site) (string, error) {
	parsedYear, err := ParseRun(run)
	if err != nil {
		return "", err
	}

	if year == "" {
		year = parsedYear
	}

	return path.Dir(expand(site, year, run, "_")), nil
}

// ProdDir returns the directory of a production given its catalog storage directory.
func (Resolver) ProdDir(storageDir string, site core.Site) string {
	rel := strings.TrimPrefix(storageDir, "/")
	if site.Kind == core.LocalFilesystem {
		return filepath.Join(site.Endpoint, site.ProdRoot, rel)
	}

	root := site.ProdRoot
	if root == "" {
		root = "/"
	}

	return path.Join(root, rel)
}

// URL renders the address understood by the site's transfer tools for a physical path.
func (Resolver) URL(site core.Site, p string) string {
	switch site.Kind {
	case core.GridStorage:
		return site.Endpoint + p
	case core.RemoteShellDisk, core.RemoteShellTape:
		return fmt.Sprintf("%s@%s:%s", site.User, site.Endpoint, p)
	default:
		return p
	}
}

// Join joins path elements with the separator used at site.
func Join(site core.Site, elem ...string) string {
	if site.Kind == core.LocalFilesystem {
		return filepath.Join(elem...)
	}

	return path.Join(elem...)
}

func expand(site core.Site, year, run, file string) string {
	p := strings.NewReplacer("{year}", year, "{run}", run, "{file}", file).Replace(site.RawLayout)
	if site.Kind == core.LocalFilesystem {
		return filepath.Join(site.Endpoint, p)
	}

	return path.Clean(p)
}

var _ core.Object = RawFile{}
var _ core.Object = ProdFile{}

// RawFile is a raw data file addressed through the naming convention.
type RawFile struct {
	File     string
	Resolver Resolver
}

func (f RawFile) Name() string {
	return f.File
}

func (f RawFile) PathAt(site core.Site) (string, error) {
	return f.Resolver.Resolve(f.File, site)
}

// ProdFile is a production file living in a catalog-defined directory.
type ProdFile struct {
	File       string
	StorageDir string
	Resolver   Resolver
}

func (f ProdFile) Name() string {
	return f.File
}

func (f ProdFile) PathAt(site core.Site) (string, error) {
	if f.File == "" || strings.ContainsAny(f.File, "/ \t") {
		return "", fmt.Errorf("%w: production file %q", core.ErrNamingConvention, f.File)
	}

	return Join(site, f.Resolver.ProdDir(f.StorageDir, site), f.File), nil
}
