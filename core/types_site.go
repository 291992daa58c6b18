package core

import (
	"fmt"
	"strings"
)

type SiteKind int

const (
	SiteKindUnknown SiteKind = iota
	GridStorage
	RemoteShellDisk
	RemoteShellTape
	LocalFilesystem
)

var siteKindNames = map[SiteKind]string{
	GridStorage:     "grid",
	RemoteShellDisk: "shell-disk",
	RemoteShellTape: "shell-tape",
	LocalFilesystem: "local",
}

// SiteKinds lists every known kind, in declaration order.
var SiteKinds = []SiteKind{GridStorage, RemoteShellDisk, RemoteShellTape, LocalFilesystem}

func ParseSiteKind(s string) (SiteKind, error) {
	for k, name := range siteKindNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}

	return SiteKindUnknown, fmt.Errorf("unknown site kind %q", s)
}

func (k SiteKind) String() string {
	if name, ok := siteKindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

func (k SiteKind) MarshalText() ([]byte, error) {
	if _, ok := siteKindNames[k]; !ok {
		return nil, fmt.Errorf("unknown site kind %d", int(k))
	}

	return []byte(k.String()), nil
}

func (k *SiteKind) UnmarshalText(text []byte) error {
	parsed, err := ParseSiteKind(string(text))
	if err != nil {
		return err
	}

	*k = parsed
	return nil
}

// Capabilities describe what a site can prove about the files it stores.
type Capabilities struct {
	// Checksum is set when Adler-32 checksums can be obtained for files at rest.
	Checksum bool
}

// Site is the resolved, immutable description of one storage endpoint.
type Site struct {
	Name string
	Kind SiteKind

	// Endpoint is the URL prefix for grid sites, the host for remote shell sites
	// and the root directory for local sites.
	Endpoint string
	// Qualified is set when Endpoint was chosen by the caller (DAQ server, local directory).
	Qualified bool

	User    string
	KeyFile string

	SpaceToken   string
	ChecksumTool string
	TmpDir       string

	RawLayout string
	ProdRoot  string

	Caps Capabilities
}

// Label names the site in human readable messages, e.g. "DAQ(l1padme3)".
func (s Site) Label() string {
	if s.Qualified {
		return fmt.Sprintf("%s(%s)", s.Name, s.Endpoint)
	}

	return s.Name
}

func (s Site) String() string {
	return s.Label()
}

// SameEndpoint reports whether both sites address the same physical storage.
func (s Site) SameEndpoint(o Site) bool {
	return s.Name == o.Name && s.Endpoint == o.Endpoint
}
