package modules

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/pkg/logging"
)

var log = logging.New("config")

const ConfigKey = "cdr"

const (
	DefaultJobs          = 20
	DefaultDeleteRetries = 10
)

type CommonConfig struct {
	// Jobs is the number of files transferred in parallel by batch commands.
	Jobs int
	// VerifyJobs bounds the parallel checksum queries of verification commands.
	VerifyJobs int
	// DeleteJobs above 1 enables per-file parallel removal before the recursive one.
	DeleteJobs    int
	DeleteRetries int
	DeleteBackoff Duration

	// AcceptSizeOnlyMatch treats equal sizes as a match when one of the two sites
	// cannot produce checksums.
	AcceptSizeOnlyMatch bool

	// ScratchDir holds the local copies of staged transfers.
	ScratchDir     string
	ScratchMinFree Size
}

func defaultCommonConfig() CommonConfig {
	return CommonConfig{
		Jobs:                DefaultJobs,
		VerifyJobs:          8,
		DeleteJobs:          1,
		DeleteRetries:       DefaultDeleteRetries,
		DeleteBackoff:       Duration(5 * time.Second),
		AcceptSizeOnlyMatch: true,
		ScratchDir:          "/tmp",
		ScratchMinFree:      Size(1 << 30),
	}
}

type ToolsConfig struct {
	// Concurrent caps the external processes alive at the same time.
	Concurrent int
	// CommandTimeout is the hard ceiling for any external command.
	CommandTimeout Duration
	// ListTimeout is passed to gfal-ls / gfal-stat / gfal-sum.
	ListTimeout Duration
	// CopyTimeout is passed to gfal-copy as global and per-transfer timeout.
	CopyTimeout Duration
	Envs        map[string]string
}

func defaultToolsConfig() ToolsConfig {
	return ToolsConfig{
		Concurrent:     64,
		CommandTimeout: Duration(2 * time.Hour),
		ListTimeout:    Duration(600 * time.Second),
		CopyTimeout:    Duration(3600 * time.Second),
	}
}

type CredentialConfig struct {
	Enabled bool
	Command string
	// MinLifetime below which a warning is issued; the renewal threshold of the proxy handler.
	MinLifetime Duration
	CacheTTL    Duration
}

func defaultCredentialConfig() CredentialConfig {
	return CredentialConfig{
		Enabled:     true,
		Command:     "voms-proxy-info",
		MinLifetime: Duration(time.Hour),
		CacheTTL:    Duration(time.Minute),
	}
}

type CatalogConfig struct {
	// Driver is one of mysql, postgres, sqlite3.
	Driver string
	// DSN is built from the PADME_MCDB_* environment when empty and Driver is mysql.
	DSN string
}

func defaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		Driver: "mysql",
		DSN:    "",
	}
}

type KVStoreBadgerDBConfig struct {
	BaseDir string
}

type KVStoreMongoDBConfig struct {
	DSN          string
	DatabaseName string
}

type JournalConfig struct {
	Enabled bool
	// Driver is badger or mongo.
	Driver string
	Badger *KVStoreBadgerDBConfig
	Mongo  *KVStoreMongoDBConfig
}

func defaultJournalConfig(example bool) JournalConfig {
	cfg := JournalConfig{
		Enabled: true,
		Driver:  "badger",
		Badger:  &KVStoreBadgerDBConfig{BaseDir: ""},
	}
	if example {
		cfg.Mongo = &KVStoreMongoDBConfig{
			DSN:          "mongodb://{host}:27017",
			DatabaseName: "padme_cdr",
		}
	}
	return cfg
}

type MetricsConfig struct {
	Namespace string
	// Listen enables the prometheus endpoint when not empty.
	Listen string
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "padme_cdr",
		Listen:    "",
	}
}

type SiteConfig struct {
	Name string
	Kind core.SiteKind
	// Endpoint is the URL prefix for grid sites and the default directory for local sites.
	Endpoint string
	// Hosts of remote shell sites; a caller chooses one when more than one is configured.
	Hosts        []string
	User         string
	KeyFile      string
	SpaceToken   string
	ChecksumTool string
	TmpDir       string
	// RawLayout maps raw data files to paths; placeholders {year}, {run}, {file}.
	RawLayout string
	ProdRoot  string
	Checksum  bool
}

const (
	GridRawLayout  = "/daq/{year}/rawdata/{run}/{file}"
	DAQRawLayout   = "/data/DAQ/{year}/rawdata/{run}/{file}"
	KLOERawLayout  = "/pdm/padme/daq/{year}/rawdata/{run}/{file}"
	LocalRawLayout = "{run}/{file}"
)

func DefaultSites() []SiteConfig {
	const keyFile = "~/.ssh/id_rsa_cdr"
	return []SiteConfig{
		{
			Name:      "LNF",
			Kind:      core.GridStorage,
			Endpoint:  "srm://atlasse.lnf.infn.it:8446/srm/managerv2?SFN=/dpm/lnf.infn.it/home/vo.padme.org",
			RawLayout: GridRawLayout,
			ProdRoot:  "/",
			Checksum:  true,
		},
		{
			Name:       "LNF2",
			Kind:       core.GridStorage,
			Endpoint:   "srm://atlasse.lnf.infn.it:8446/srm/managerv2?SFN=/dpm/lnf.infn.it/home/vo.padme.org_scratch",
			SpaceToken: "PADME_SCRATCH",
			RawLayout:  GridRawLayout,
			ProdRoot:   "/",
			Checksum:   true,
		},
		{
			Name:      "CNAF",
			Kind:      core.GridStorage,
			Endpoint:  "srm://storm-fe-archive.cr.cnaf.infn.it:8444/srm/managerv2?SFN=/padmeTape",
			RawLayout: GridRawLayout,
			ProdRoot:  "/",
			Checksum:  true,
		},
		{
			Name:      "CNAF2",
			Kind:      core.GridStorage,
			Endpoint:  "srm://storm-fe-archive.cr.cnaf.infn.it:8444/srm/managerv2?SFN=/padme",
			RawLayout: GridRawLayout,
			ProdRoot:  "/",
			Checksum:  true,
		},
		{
			Name:         "DAQ",
			Kind:         core.RemoteShellDisk,
			Hosts:        []string{"l1padme3", "l1padme4"},
			User:         "daq",
			KeyFile:      keyFile,
			ChecksumTool: "/home/daq/DAQ/tools/adler32",
			RawLayout:    DAQRawLayout,
			ProdRoot:     "/data/DAQ",
			Checksum:     true,
		},
		{
			Name:         "KLOE",
			Kind:         core.RemoteShellTape,
			Hosts:        []string{"fibm15"},
			User:         "pdm",
			KeyFile:      keyFile,
			ChecksumTool: "/pdm/bin/adler32",
			TmpDir:       "/pdm/tmp",
			RawLayout:    KLOERawLayout,
			ProdRoot:     "/pdm/padme",
			Checksum:     false,
		},
		{
			Name:      "LOCAL",
			Kind:      core.LocalFilesystem,
			Endpoint:  "",
			RawLayout: LocalRawLayout,
			ProdRoot:  "",
			Checksum:  false,
		},
	}
}

type Config struct {
	Common     CommonConfig
	Tools      ToolsConfig
	Credential CredentialConfig
	Catalog    CatalogConfig
	Journal    JournalConfig
	Metrics    MetricsConfig
	Sites      []SiteConfig
}

func DefaultConfig(example bool) Config {
	return Config{
		Common:     defaultCommonConfig(),
		Tools:      defaultToolsConfig(),
		Credential: defaultCredentialConfig(),
		Catalog:    defaultCatalogConfig(),
		Journal:    defaultJournalConfig(example),
		Metrics:    defaultMetricsConfig(),
		Sites:      DefaultSites(),
	}
}

// CommentAllInExample keeps the [[Sites]] tables of a generated config commented out,
// otherwise they would decode as empty sites.
func (c Config) CommentAllInExample() {}

type configPrimitive struct {
	Common     CommonConfig
	Tools      ToolsConfig
	Credential CredentialConfig
	Catalog    CatalogConfig
	Journal    JournalConfig
	Metrics    MetricsConfig
	Sites      []toml.Primitive
}

// UnmarshalConfig decodes over the current values; a Sites list in data replaces the
// configured sites as a whole so that a site never inherits fields from a default one.
func (c *Config) UnmarshalConfig(data []byte) error {
	primitive := configPrimitive{
		Common:     c.Common,
		Tools:      c.Tools,
		Credential: c.Credential,
		Catalog:    c.Catalog,
		Journal:    c.Journal,
		Metrics:    c.Metrics,
	}

	meta, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&primitive)
	if err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	if meta.IsDefined("Sites") {
		sites := make([]SiteConfig, 0, len(primitive.Sites))
		for i, p := range primitive.Sites {
			var sc SiteConfig
			if err := meta.PrimitiveDecode(p, &sc); err != nil {
				return fmt.Errorf("decode site #%d: %w", i, err)
			}
			sites = append(sites, sc)
		}
		c.Sites = sites
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		log.Warnw("unknown config keys ignored", "keys", undecoded)
	}

	c.Common = primitive.Common
	c.Tools = primitive.Tools
	c.Credential = primitive.Credential
	c.Catalog = primitive.Catalog
	c.Journal = primitive.Journal
	c.Metrics = primitive.Metrics
	return nil
}

// Encode writes the config as TOML.
func (c *Config) Encode(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.Indent = ""
	return enc.Encode(c)
}

func (c *Config) MatchRule() core.MatchRule {
	return core.MatchRule{AcceptSizeOnly: c.Common.AcceptSizeOnlyMatch}
}

// Validate checks the parts of the config that are not tied to a single site.
// Per-site checks happen when the site catalog is built.
func (c *Config) Validate() error {
	var merr *multierror.Error

	if c.Common.Jobs <= 0 {
		merr = multierror.Append(merr, fmt.Errorf("Common.Jobs must be positive, got %d", c.Common.Jobs))
	}

	if c.Common.VerifyJobs <= 0 {
		merr = multierror.Append(merr, fmt.Errorf("Common.VerifyJobs must be positive, got %d", c.Common.VerifyJobs))
	}

	if c.Common.DeleteRetries <= 0 {
		merr = multierror.Append(merr, fmt.Errorf("Common.DeleteRetries must be positive, got %d", c.Common.DeleteRetries))
	}

	if c.Common.ScratchDir == "" {
		merr = multierror.Append(merr, fmt.Errorf("Common.ScratchDir is required"))
	}

	if c.Tools.ListTimeout <= 0 || c.Tools.CopyTimeout <= 0 {
		merr = multierror.Append(merr, fmt.Errorf("Tools timeouts must be positive"))
	}

	switch strings.ToLower(c.Journal.Driver) {
	case "badger", "mongo":
	default:
		if c.Journal.Enabled {
			merr = multierror.Append(merr, fmt.Errorf("unknown journal driver %q", c.Journal.Driver))
		}
	}

	if len(c.Sites) == 0 {
		merr = multierror.Append(merr, fmt.Errorf("no site configured"))
	}

	if !c.Common.AcceptSizeOnlyMatch {
		log.Warn("size-only matches are disabled: transfers involving checksum-incapable sites will never verify")
	}

	return merr.ErrorOrNil()
}
