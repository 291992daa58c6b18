package verify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/metrics"
	"github.com/padme-experiment/padme-cdr/modules/sites"
	"github.com/padme-experiment/padme-cdr/pkg/logging"
)

var log = logging.New("verify")

// CatalogLabel names the production catalog side of a production verification.
const CatalogLabel = "catalog"

// Result is the outcome of one verification.
type Result struct {
	Subject string
	A       string
	B       string
	// MissingAtA / MissingAtB are set when the whole run directory is absent on that side.
	MissingAtA bool
	MissingAtB bool
	Delta      core.ListingDelta
}

// Consistent reports whether both sides hold the same files.
func (r *Result) Consistent() bool {
	return !r.MissingAtA && !r.MissingAtB && r.Delta.Consistent()
}

type Verifier struct {
	access   core.SiteAccessor
	catalog  core.ProductionCatalog
	resolver sites.Resolver
	jobs     int
}

// New builds a verifier; jobs bounds the checksum queries in flight, catalog may be nil.
func New(access core.SiteAccessor, catalog core.ProductionCatalog, jobs int) *Verifier {
	if jobs <= 0 {
		jobs = 1
	}

	return &Verifier{
		access:   access,
		catalog:  catalog,
		resolver: sites.NewResolver(),
		jobs:     jobs,
	}
}

// Run compares the content of a run directory at two sites. A non-empty year
// overrides the one encoded in the run name.
func (v *Verifier) Run(ctx context.Context, run string, year string, a, b core.Site, withChecksum bool) (*Result, error) {
	res := &Result{
		Subject: run,
		A:       a.Label(),
		B:       b.Label(),
	}

	listA, accA, err := v.listRun(ctx, run, year, a)
	if err != nil {
		if !errors.Is(err, core.ErrPathNotFound) {
			return nil, err
		}
		res.MissingAtA = true
	}

	listB, accB, err := v.listRun(ctx, run, year, b)
	if err != nil {
		if !errors.Is(err, core.ErrPathNotFound) {
			return nil, err
		}
		res.MissingAtB = true
	}

	if res.MissingAtA || res.MissingAtB {
		log.Warnw("run missing", "run", run, "at-a", res.MissingAtA, "at-b", res.MissingAtB, "a", res.A, "b", res.B)
		return res, nil
	}

	if withChecksum {
		for _, s := range []core.Site{a, b} {
			if !s.Caps.Checksum {
				res.Delta.AddNote(fmt.Sprintf("%s does not support checksum verification: checksum switched off", s.Label()))
				withChecksum = false
			}
		}
	}

	if withChecksum {
		dirA, _ := v.resolver.RunDir(run, year, a)
		dirB, _ := v.resolver.RunDir(run, year, b)

		common := equalSized(listA, listB)
		if err := v.fillChecksums(ctx, accA, dirA, listA, common); err != nil {
			return nil, err
		}

		if err := v.fillChecksums(ctx, accB, dirB, listB, common); err != nil {
			return nil, err
		}
	}

	notes := res.Delta.Notes
	res.Delta = Diff(listA, listB, withChecksum)
	res.Delta.Notes = notes
	record(ctx, &res.Delta)
	return res, nil
}

func (v *Verifier) listRun(ctx context.Context, run, year string, site core.Site) (core.Listing, core.SiteAccess, error) {
	dir, err := v.resolver.RunDir(run, year, site)
	if err != nil {
		return nil, nil, err
	}

	acc, err := v.access.Access(site)
	if err != nil {
		return nil, nil, fmt.Errorf("access %s: %w", site.Label(), err)
	}

	listing, err := acc.List(ctx, dir)
	if err != nil {
		return nil, nil, err
	}

	return listing, acc, nil
}

// Production compares the files of a production as recorded by the catalog with the
// files found at site.
func (v *Verifier) Production(ctx context.Context, prod string, site core.Site, withChecksum bool) (*Result, error) {
	if v.catalog == nil {
		return nil, fmt.Errorf("production %s: no production catalog configured", prod)
	}

	known, err := v.catalog.IsKnown(ctx, prod)
	if err != nil {
		return nil, fmt.Errorf("look up production %s: %w", prod, err)
	}

	if !known {
		return nil, fmt.Errorf("%q: %w", prod, core.ErrProductionNotFound)
	}

	storageDir, err := v.catalog.StorageDir(ctx, prod)
	if err != nil {
		return nil, fmt.Errorf("storage dir of production %s: %w", prod, err)
	}

	expected, err := v.catalog.ExpectedAttributes(ctx, prod)
	if err != nil {
		return nil, fmt.Errorf("files of production %s: %w", prod, err)
	}

	res := &Result{
		Subject: prod,
		A:       CatalogLabel,
		B:       site.Label(),
	}

	acc, err := v.access.Access(site)
	if err != nil {
		return nil, fmt.Errorf("access %s: %w", site.Label(), err)
	}

	dir := v.resolver.ProdDir(storageDir, site)
	listing, err := acc.List(ctx, dir)
	if err != nil {
		if !errors.Is(err, core.ErrPathNotFound) {
			return nil, err
		}

		res.MissingAtB = true
		log.Warnw("production directory missing", "prod", prod, "site", site.Label(), "dir", dir)
		return res, nil
	}

	if withChecksum && !site.Caps.Checksum {
		res.Delta.AddNote(fmt.Sprintf("%s does not support checksum verification: checksum switched off", site.Label()))
		withChecksum = false
	}

	if withChecksum {
		if err := v.fillChecksums(ctx, acc, dir, listing, equalSized(expected, listing)); err != nil {
			return nil, err
		}
	}

	notes := res.Delta.Notes
	res.Delta = Diff(expected, listing, withChecksum)
	res.Delta.Notes = notes
	record(ctx, &res.Delta)
	return res, nil
}

func equalSized(a, b core.Listing) []string {
	return lo.Filter(a.Names(), func(name string, _ int) bool {
		other, ok := b[name]
		return ok && other.Size == a[name].Size
	})
}

// fillChecksums queries the checksum of names in dir. Unavailable checksums stay empty.
func (v *Verifier) fillChecksums(ctx context.Context, acc core.SiteAccess, dir string, listing core.Listing, names []string) error {
	var mu sync.Mutex

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(v.jobs)

	for _, name := range names {
		name := name
		eg.Go(func() error {
			sum, err := acc.Checksum(ectx, sites.Join(acc.Site(), dir, name))
			if err != nil {
				if errors.Is(err, core.ErrChecksumUnavailable) {
					log.Debugw("checksum unavailable", "site", acc.Site().Label(), "file", name)
					return nil
				}

				return err
			}

			mu.Lock()
			attrs := listing[name]
			attrs.Checksum = sum
			listing[name] = attrs
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return fmt.Errorf("checksums at %s: %w", acc.Site().Label(), err)
	}

	return ctx.Err()
}

func record(ctx context.Context, delta *core.ListingDelta) {
	for c, n := range delta.Counts() {
		tctx, err := metrics.New(ctx, metrics.Upsert(metrics.Category, c.String()))
		if err != nil {
			continue
		}

		metrics.Record(tctx, metrics.VerifyEntries.M(int64(n)))
	}
}
