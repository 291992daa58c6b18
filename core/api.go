package core

import (
	"context"
)

// Prober answers questions about files stored at one site.
// Tool failures degrade to ErrMissing / ErrChecksumUnavailable, naming errors never reach this layer.
type Prober interface {
	Site() Site
	Exists(ctx context.Context, path string) (bool, error)
	Size(ctx context.Context, path string) (int64, error)
	Checksum(ctx context.Context, path string) (string, error)
	// Stat returns the size and, when available, the checksum of path.
	Stat(ctx context.Context, path string) (FileAttributes, error)
	// List returns the plain files directly under dir with their sizes.
	// ErrPathNotFound is returned when dir does not exist.
	List(ctx context.Context, dir string) (Listing, error)
}

// Remover deletes files and directories at one site.
type Remover interface {
	Remove(ctx context.Context, path string) error
	RemoveAll(ctx context.Context, dir string) error
}

// SiteAccess bundles the probing and removal capabilities of one site.
type SiteAccess interface {
	Prober
	Remover
}

// SiteAccessor builds the access layer for a resolved site.
type SiteAccessor interface {
	Access(site Site) (SiteAccess, error)
}

// CopyRequest describes one file copy between two resolved sites.
type CopyRequest struct {
	File    string
	Src     Site
	SrcPath string
	Dst     Site
	DstPath string
	// Expected holds the attributes observed at the source before copying.
	Expected FileAttributes
}

// Transporter copies one file and leaves the destination either correct or absent.
type Transporter interface {
	Supports(src, dst SiteKind) bool
	Copy(ctx context.Context, req CopyRequest) error
}

// ProductionCatalog is the read-only view on the production manifest store.
type ProductionCatalog interface {
	IsKnown(ctx context.Context, prod string) (bool, error)
	StorageDir(ctx context.Context, prod string) (string, error)
	ExpectedFiles(ctx context.Context, prod string) ([]string, error)
	ExpectedAttributes(ctx context.Context, prod string) (Listing, error)
}

// CredentialProvider guarantees a valid delegated credential at call time.
type CredentialProvider interface {
	Ensure(ctx context.Context) error
}

// Object is a file addressed independently of the site holding it.
type Object interface {
	Name() string
	PathAt(site Site) (string, error)
}
