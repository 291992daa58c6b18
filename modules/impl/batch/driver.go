package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/modules"
	"github.com/padme-experiment/padme-cdr/modules/sites"
	"github.com/padme-experiment/padme-cdr/pkg/logging"
)

var log = logging.New("batch")

// Transferrer moves one file. It is implemented by transfer.Orchestrator.
type Transferrer interface {
	Transfer(ctx context.Context, obj core.Object, src, dst core.Site) core.TransferResult
}

type Driver struct {
	access   core.SiteAccessor
	transfer Transferrer
	catalog  core.ProductionCatalog
	journal  core.Journal
	resolver sites.Resolver
	jobs     int
}

// NewDriver builds a batch driver; catalog and journal may be nil.
func NewDriver(access core.SiteAccessor, transfer Transferrer, catalog core.ProductionCatalog, journal core.Journal, jobs int) *Driver {
	if jobs <= 0 {
		jobs = modules.DefaultJobs
	}

	return &Driver{
		access:   access,
		transfer: transfer,
		catalog:  catalog,
		journal:  journal,
		resolver: sites.NewResolver(),
		jobs:     jobs,
	}
}

// WithJobs returns a driver sharing d's collaborators that runs n transfers at a time.
// A non-positive n keeps the current bound.
func (d *Driver) WithJobs(n int) *Driver {
	if n <= 0 {
		return d
	}

	cp := *d
	cp.jobs = n
	return &cp
}

// Run transfers every file of the batch from src to dst. Listing problems abort the batch
// before any file is touched; per file problems only show up in the report.
func (d *Driver) Run(ctx context.Context, b core.Batch, src, dst core.Site) (*Report, error) {
	rep := &Report{
		ID:      uuid.NewString(),
		Batch:   b,
		Src:     src.Label(),
		Dst:     dst.Label(),
		Started: time.Now(),
	}

	l := log.With("batch", b.String(), "id", rep.ID, "src", rep.Src, "dst", rep.Dst)
	l.Infow("batch started", "jobs", d.jobs)

	objs, err := d.enumerate(ctx, b, src)
	if err == nil {
		err = d.fanOut(ctx, objs, src, dst, rep)
	}

	rep.Elapsed = time.Since(rep.Started)
	sortResults(rep.Results)
	d.record(rep, err)

	if err != nil {
		l.Errorw("batch aborted", "err", err)
		return rep, err
	}

	if rep.OK() {
		l.Infow("batch done", "summary", rep.Summary())
	} else {
		l.Warnw("batch done with failures", "failed", rep.Failed(), "summary", rep.Summary())
	}

	return rep, nil
}

func (d *Driver) enumerate(ctx context.Context, b core.Batch, src core.Site) ([]core.Object, error) {
	switch b.Kind {
	case core.BatchRun:
		return d.enumerateRun(ctx, b.ID, src)
	case core.BatchProduction:
		return d.enumerateProduction(ctx, b.ID, src)
	default:
		return nil, core.InputError("unknown batch kind %s", b.Kind)
	}
}

func (d *Driver) enumerateRun(ctx context.Context, run string, src core.Site) ([]core.Object, error) {
	dir, err := d.resolver.RunDir(run, "", src)
	if err != nil {
		return nil, err
	}

	acc, err := d.access.Access(src)
	if err != nil {
		return nil, fmt.Errorf("access %s: %w", src.Label(), err)
	}

	listing, err := acc.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("list run %s at %s: %w", run, src.Label(), err)
	}

	return lo.Map(listing.Names(), func(name string, _ int) core.Object {
		return sites.RawFile{File: name, Resolver: d.resolver}
	}), nil
}

func (d *Driver) enumerateProduction(ctx context.Context, prod string, src core.Site) ([]core.Object, error) {
	if d.catalog == nil {
		return nil, fmt.Errorf("production %s: no production catalog configured", prod)
	}

	known, err := d.catalog.IsKnown(ctx, prod)
	if err != nil {
		return nil, fmt.Errorf("look up production %s: %w", prod, err)
	}

	if !known {
		return nil, fmt.Errorf("%q: %w", prod, core.ErrProductionNotFound)
	}

	storageDir, err := d.catalog.StorageDir(ctx, prod)
	if err != nil {
		return nil, fmt.Errorf("storage dir of production %s: %w", prod, err)
	}

	expected, err := d.catalog.ExpectedFiles(ctx, prod)
	if err != nil {
		return nil, fmt.Errorf("files of production %s: %w", prod, err)
	}

	acc, err := d.access.Access(src)
	if err != nil {
		return nil, fmt.Errorf("access %s: %w", src.Label(), err)
	}

	dir := d.resolver.ProdDir(storageDir, src)
	listing, err := acc.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("list production %s at %s: %w", prod, src.Label(), err)
	}

	present := lo.Filter(expected, func(name string, _ int) bool {
		_, ok := listing[name]
		if !ok {
			log.Warnw("production file not found at source", "prod", prod, "file", name, "site", src.Label())
		}
		return ok
	})

	if len(present) == 0 {
		return nil, fmt.Errorf("production %s: none of the %d catalogued files found at %s: %w", prod, len(expected), src.Label(), core.ErrMissingSource)
	}

	return lo.Map(present, func(name string, _ int) core.Object {
		return sites.ProdFile{File: name, StorageDir: storageDir, Resolver: d.resolver}
	}), nil
}

func (d *Driver) fanOut(ctx context.Context, objs []core.Object, src, dst core.Site, rep *Report) error {
	results := make([]*core.TransferResult, len(objs))

	var eg errgroup.Group
	eg.SetLimit(d.jobs)

	for i := range objs {
		if ctx.Err() != nil {
			break
		}

		idx := i
		eg.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			res := d.transfer.Transfer(ctx, objs[idx], src, dst)
			results[idx] = &res
			return nil
		})
	}

	_ = eg.Wait()

	for _, res := range results {
		if res != nil {
			rep.Results = append(rep.Results, *res)
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("batch interrupted after %d of %d files: %w", len(rep.Results), len(objs), err)
	}

	return nil
}

func (d *Driver) record(rep *Report, aborted error) {
	if d.journal == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := d.journal.Record(ctx, rep.Record(aborted)); err != nil {
		log.Warnw("failed to journal batch", "id", rep.ID, "err", err)
	}
}
