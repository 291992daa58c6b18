package sites

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/modules"
	"github.com/padme-experiment/padme-cdr/pkg/homedir"
	"github.com/padme-experiment/padme-cdr/pkg/logging"
)

var log = logging.New("sites")

// Catalog holds the validated site set. It is read-only once built.
type Catalog struct {
	names []string
	sites map[string]modules.SiteConfig
}

// NewCatalog validates the configured sites and indexes them by name.
func NewCatalog(cfgs []modules.SiteConfig) (*Catalog, error) {
	cat := &Catalog{
		sites: make(map[string]modules.SiteConfig, len(cfgs)),
	}

	var merr *multierror.Error
	for i := range cfgs {
		sc := cfgs[i]
		if err := validateSite(sc); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("site #%d %q: %w", i, sc.Name, err))
			continue
		}

		if _, dup := cat.sites[sc.Name]; dup {
			merr = multierror.Append(merr, fmt.Errorf("site %q declared more than once", sc.Name))
			continue
		}

		cat.sites[sc.Name] = sc
		cat.names = append(cat.names, sc.Name)
	}

	if err := merr.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("invalid site catalog: %w", err)
	}

	if len(cat.names) == 0 {
		return nil, fmt.Errorf("invalid site catalog: no site configured")
	}

	return cat, nil
}

func validateSite(sc modules.SiteConfig) error {
	var merr *multierror.Error

	if sc.Name == "" {
		merr = multierror.Append(merr, fmt.Errorf("name is required"))
	}

	switch sc.Kind {
	case core.GridStorage:
		if sc.Endpoint == "" {
			merr = multierror.Append(merr, fmt.Errorf("grid site requires Endpoint"))
		}

	case core.RemoteShellDisk, core.RemoteShellTape:
		if len(sc.Hosts) == 0 {
			merr = multierror.Append(merr, fmt.Errorf("remote shell site requires Hosts"))
		}

		if sc.User == "" || sc.KeyFile == "" {
			merr = multierror.Append(merr, fmt.Errorf("remote shell site requires User and KeyFile"))
		}

		if sc.Kind == core.RemoteShellTape && sc.TmpDir == "" {
			merr = multierror.Append(merr, fmt.Errorf("tape site requires TmpDir"))
		}

	case core.LocalFilesystem:

	default:
		merr = multierror.Append(merr, fmt.Errorf("unknown kind %s", sc.Kind))
	}

	if err := ValidateLayout(sc.RawLayout); err != nil {
		merr = multierror.Append(merr, err)
	}

	return merr.ErrorOrNil()
}

// Names returns the site names in declaration order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Config returns the raw configuration of a site.
func (c *Catalog) Config(name string) (modules.SiteConfig, bool) {
	sc, ok := c.sites[name]
	return sc, ok
}

// Lookup resolves a site name plus an optional qualifier into a concrete site.
// The qualifier selects the host of multi-host remote shell sites and the root
// directory of local sites.
func (c *Catalog) Lookup(name string, qualifier string) (core.Site, error) {
	sc, ok := c.sites[name]
	if !ok {
		return core.Site{}, fmt.Errorf("%w: %q, known sites: %s", core.ErrSiteNotFound, name, strings.Join(c.names, ", "))
	}

	site := core.Site{
		Name:         sc.Name,
		Kind:         sc.Kind,
		Endpoint:     sc.Endpoint,
		User:         sc.User,
		KeyFile:      homedir.Expand(sc.KeyFile),
		SpaceToken:   sc.SpaceToken,
		ChecksumTool: sc.ChecksumTool,
		TmpDir:       sc.TmpDir,
		RawLayout:    sc.RawLayout,
		ProdRoot:     sc.ProdRoot,
		Caps: core.Capabilities{
			Checksum: sc.Checksum,
		},
	}

	switch sc.Kind {
	case core.GridStorage:
		if qualifier != "" {
			return core.Site{}, core.InputError("site %s does not accept a qualifier (got %q)", name, qualifier)
		}

	case core.RemoteShellDisk, core.RemoteShellTape:
		host, err := selectHost(sc, qualifier)
		if err != nil {
			return core.Site{}, err
		}
		site.Endpoint = host
		site.Qualified = len(sc.Hosts) > 1

	case core.LocalFilesystem:
		dir := qualifier
		if dir == "" {
			dir = sc.Endpoint
		}
		if dir == "" {
			log.Warnw("no directory specified for local site, using current directory", "site", name)
			dir = "."
		}

		abs, err := filepath.Abs(homedir.Expand(dir))
		if err != nil {
			return core.Site{}, fmt.Errorf("resolve local directory %q: %w", dir, err)
		}
		site.Endpoint = abs
		site.Qualified = true
	}

	return site, nil
}

func selectHost(sc modules.SiteConfig, qualifier string) (string, error) {
	if qualifier == "" {
		if len(sc.Hosts) == 1 {
			return sc.Hosts[0], nil
		}

		return "", core.InputError("site %s needs a server, one of: %s", sc.Name, strings.Join(sc.Hosts, ", "))
	}

	for _, h := range sc.Hosts {
		if h == qualifier {
			return h, nil
		}
	}

	return "", core.InputError("unknown server %q for site %s, one of: %s", qualifier, sc.Name, strings.Join(sc.Hosts, ", "))
}

// CheckPair rejects source/destination combinations that can never be transferred.
func (c *Catalog) CheckPair(src, dst core.Site) error {
	if src.Kind == core.RemoteShellTape {
		return core.InputError("site %s cannot be used as a source", src.Name)
	}

	if src.SameEndpoint(dst) {
		if src.Qualified {
			return core.InputError("source and destination are the same: %s", src.Label())
		}

		return core.InputError("source and destination sites are both %s", src.Name)
	}

	return nil
}

// Hosts returns the sorted server names of a remote shell site.
func (c *Catalog) Hosts(name string) []string {
	sc, ok := c.sites[name]
	if !ok {
		return nil
	}

	hosts := append([]string(nil), sc.Hosts...)
	sort.Strings(hosts)
	return hosts
}
