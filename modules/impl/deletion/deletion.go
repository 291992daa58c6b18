package deletion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/metrics"
	"github.com/padme-experiment/padme-cdr/modules/sites"
	"github.com/padme-experiment/padme-cdr/pkg/logging"
	"github.com/padme-experiment/padme-cdr/pkg/retry"
)

var log = logging.New("deletion")

const DefaultMaxRounds = 10

type Options struct {
	MaxRounds int
	Backoff   time.Duration
	// Jobs above 1 removes the files one by one in parallel before the directory itself.
	Jobs int
}

// Reconciler removes run directories, listing again after each removal until the
// directory is reported gone.
type Reconciler struct {
	access   core.SiteAccessor
	resolver sites.Resolver
	opts     Options
}

func New(access core.SiteAccessor, opts Options) *Reconciler {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultMaxRounds
	}

	if opts.Jobs <= 0 {
		opts.Jobs = 1
	}

	return &Reconciler{
		access:   access,
		resolver: sites.NewResolver(),
		opts:     opts,
	}
}

// WithJobs returns a reconciler removing n files in parallel; n <= 0 keeps the configured value.
func (r *Reconciler) WithJobs(n int) *Reconciler {
	if n <= 0 {
		return r
	}

	cp := *r
	cp.opts.Jobs = n
	return &cp
}

// DeleteAll removes the directory of run at site and returns the number of rounds it took.
func (r *Reconciler) DeleteAll(ctx context.Context, run string, year string, site core.Site) (int, error) {
	if site.Kind == core.RemoteShellTape {
		return 0, fmt.Errorf("delete %s at %s: %w", run, site.Label(), core.ErrUnsupportedOperation)
	}

	dir, err := r.resolver.RunDir(run, year, site)
	if err != nil {
		return 0, err
	}

	acc, err := r.access.Access(site)
	if err != nil {
		return 0, fmt.Errorf("access %s: %w", site.Label(), err)
	}

	jobs := r.opts.Jobs
	rlog := log.With("run", run, "site", site.Label(), "dir", dir, "jobs", jobs)

	var fatal error
	rounds, err := retry.Bounded(ctx, retry.Options{
		MaxRounds: r.opts.MaxRounds,
		Backoff:   r.opts.Backoff,
		OnFailure: func(round int, err error) {
			rlog.Warnw("deletion round failed", "round", round, "err", err)
		},
	}, func(ctx context.Context, round int) (bool, error) {
		listing, err := acc.List(ctx, dir)
		if err != nil {
			if errors.Is(err, core.ErrPathNotFound) {
				return true, nil
			}

			return false, fmt.Errorf("list: %w", err)
		}

		rlog.Infow("deleting", "round", round, "files", len(listing))

		if jobs > 1 && len(listing) > 0 {
			if err := removeFiles(ctx, acc, dir, listing.Names(), jobs); err != nil {
				return false, err
			}
		}

		if err := acc.RemoveAll(ctx, dir); err != nil {
			if errors.Is(err, core.ErrUnsupportedOperation) {
				fatal = err
				return true, nil
			}

			return false, fmt.Errorf("remove %s: %w", dir, err)
		}

		return false, nil
	})

	if fatal != nil {
		return rounds, fatal
	}

	if err != nil {
		if errors.Is(err, retry.ErrExhausted) {
			rlog.Errorw("giving up", "rounds", rounds, "err", err)
			return rounds, fmt.Errorf("delete %s at %s: %w: %w", run, site.Label(), core.ErrGaveUp, err)
		}

		return rounds, err
	}

	rlog.Infow("run deleted", "rounds", rounds)
	if tctx, terr := metrics.New(ctx, metrics.Upsert(metrics.Site, site.Name)); terr == nil {
		metrics.Record(tctx, metrics.DeleteRounds.M(int64(rounds)))
	}

	return rounds, nil
}

func removeFiles(ctx context.Context, acc core.SiteAccess, dir string, names []string, jobs int) error {
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(jobs)

	for _, name := range names {
		p := sites.Join(acc.Site(), dir, name)
		eg.Go(func() error {
			if err := acc.Remove(ectx, p); err != nil {
				return fmt.Errorf("remove %s: %w", p, err)
			}

			return nil
		})
	}

	return eg.Wait()
}
