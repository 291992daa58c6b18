package mock

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/padme-experiment/padme-cdr/core"
)

var _ core.ProductionCatalog = (*Catalog)(nil)

// Production is one catalog entry.
type Production struct {
	StorageDir string
	Files      core.Listing
}

type Catalog struct {
	Productions map[string]Production
}

func NewCatalog() *Catalog {
	return &Catalog{Productions: map[string]Production{}}
}

func (c *Catalog) Add(name string, prod Production) {
	c.Productions[name] = prod
}

func (c *Catalog) get(prod string) (Production, error) {
	p, ok := c.Productions[prod]
	if !ok {
		return Production{}, fmt.Errorf("%q: %w", prod, core.ErrProductionNotFound)
	}

	return p, nil
}

func (c *Catalog) IsKnown(_ context.Context, prod string) (bool, error) {
	_, ok := c.Productions[prod]
	return ok, nil
}

func (c *Catalog) StorageDir(_ context.Context, prod string) (string, error) {
	p, err := c.get(prod)
	if err != nil {
		return "", err
	}

	return p.StorageDir, nil
}

func (c *Catalog) ExpectedFiles(_ context.Context, prod string) ([]string, error) {
	p, err := c.get(prod)
	if err != nil {
		return nil, err
	}

	return p.Files.Names(), nil
}

func (c *Catalog) ExpectedAttributes(_ context.Context, prod string) (core.Listing, error) {
	p, err := c.get(prod)
	if err != nil {
		return nil, err
	}

	res := make(core.Listing, len(p.Files))
	for name, attrs := range p.Files {
		res[name] = attrs
	}

	return res, nil
}

var _ core.CredentialProvider = (*Credentials)(nil)

// Credentials answers Ensure with Err and counts the calls.
type Credentials struct {
	Err   error
	calls atomic.Int64
}

func (c *Credentials) Ensure(context.Context) error {
	c.calls.Add(1)
	return c.Err
}

func (c *Credentials) Calls() int {
	return int(c.calls.Load())
}
