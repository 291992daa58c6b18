package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docker/go-units"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/metrics"
	"github.com/padme-experiment/padme-cdr/pkg/logging"
)

var log = logging.New("transfer")

// Orchestrator moves single files between sites. A destination is never overwritten:
// it ends up either verified identical to the source or absent.
type Orchestrator struct {
	access      core.SiteAccessor
	transporter core.Transporter
	creds       core.CredentialProvider
	rule        core.MatchRule
}

// New builds an orchestrator; creds may be nil when no grid credential is needed.
func New(access core.SiteAccessor, transporter core.Transporter, creds core.CredentialProvider, rule core.MatchRule) *Orchestrator {
	return &Orchestrator{
		access:      access,
		transporter: transporter,
		creds:       creds,
		rule:        rule,
	}
}

// Transfer copies obj from src to dst unless dst already holds it.
func (o *Orchestrator) Transfer(ctx context.Context, obj core.Object, src, dst core.Site) core.TransferResult {
	start := time.Now()
	res := core.TransferResult{
		File: obj.Name(),
		Src:  src.Label(),
		Dst:  dst.Label(),
	}

	res.Outcome, res.Err = o.transfer(ctx, obj, src, dst, &res)
	res.Elapsed = time.Since(start)

	o.report(ctx, src, dst, &res)
	return res
}

func (o *Orchestrator) transfer(ctx context.Context, obj core.Object, src, dst core.Site, res *core.TransferResult) (core.TransferOutcome, error) {
	if !o.transporter.Supports(src.Kind, dst.Kind) {
		return core.OutcomeUnsupportedRoute, fmt.Errorf("%s -> %s: %w", src.Label(), dst.Label(), core.ErrUnsupportedRoute)
	}

	srcPath, err := obj.PathAt(src)
	if err != nil {
		return core.OutcomeNamingError, err
	}

	dstPath, err := obj.PathAt(dst)
	if err != nil {
		return core.OutcomeNamingError, err
	}

	if o.creds != nil && (src.Kind == core.GridStorage || dst.Kind == core.GridStorage) {
		if err := o.creds.Ensure(ctx); err != nil {
			return core.OutcomeCopyFailed, err
		}
	}

	srcAccess, err := o.access.Access(src)
	if err != nil {
		return core.OutcomeCopyFailed, fmt.Errorf("access %s: %w", src.Label(), err)
	}

	dstAccess, err := o.access.Access(dst)
	if err != nil {
		return core.OutcomeCopyFailed, fmt.Errorf("access %s: %w", dst.Label(), err)
	}

	// check source
	srcAttrs, err := srcAccess.Stat(ctx, srcPath)
	if err != nil {
		if errors.Is(err, core.ErrMissing) {
			return core.OutcomeMissingSource, fmt.Errorf("%s at %s: %w", res.File, src.Label(), core.ErrMissingSource)
		}

		return core.OutcomeCopyFailed, fmt.Errorf("check source: %w", err)
	}
	res.SrcAttrs = srcAttrs

	// check destination
	dstAttrs, err := dstAccess.Stat(ctx, dstPath)
	switch {
	case err == nil:
		res.DstAttrs = dstAttrs
		cmp := o.rule.Compare(srcAttrs, src.Caps, dstAttrs, dst.Caps)
		if cmp.Match() {
			res.Proof = cmp.Proof
			return core.OutcomeSkippedIdentical, nil
		}

		return core.OutcomeDestinationMismatch, &core.MismatchError{
			File:     res.File,
			Src:      src.Label(),
			Dst:      dst.Label(),
			Expected: srcAttrs,
			Observed: dstAttrs,
			Verdict:  cmp.Verdict,
		}

	case errors.Is(err, core.ErrMissing):
		// not there yet

	default:
		return core.OutcomeCopyFailed, fmt.Errorf("check destination: %w", err)
	}

	// copy
	err = o.transporter.Copy(ctx, core.CopyRequest{
		File:     res.File,
		Src:      src,
		SrcPath:  srcPath,
		Dst:      dst,
		DstPath:  dstPath,
		Expected: srcAttrs,
	})
	if err != nil {
		switch {
		case errors.Is(err, core.ErrVerifyMismatch):
			return core.OutcomeVerifyMismatch, err
		case errors.Is(err, core.ErrUnsupportedRoute):
			return core.OutcomeUnsupportedRoute, err
		default:
			return core.OutcomeCopyFailed, err
		}
	}

	// verify
	dstAttrs, err = dstAccess.Stat(ctx, dstPath)
	if err != nil {
		o.cleanupDestination(dstAccess, dstPath, res.File)
		return core.OutcomeVerifyMismatch, fmt.Errorf("%s at %s after copy: %w: %w", res.File, dst.Label(), core.ErrVerifyMismatch, err)
	}
	res.DstAttrs = dstAttrs

	// same rule as the check before the copy
	cmp := o.rule.Compare(srcAttrs, src.Caps, dstAttrs, dst.Caps)
	if !cmp.Match() {
		o.cleanupDestination(dstAccess, dstPath, res.File)
		return core.OutcomeVerifyMismatch, &core.MismatchError{
			File:     res.File,
			Src:      src.Label(),
			Dst:      dst.Label(),
			Expected: srcAttrs,
			Observed: dstAttrs,
			Verdict:  cmp.Verdict,
			Base:     core.ErrVerifyMismatch,
		}
	}

	res.Proof = cmp.Proof
	return core.OutcomeCopied, nil
}

// cleanupDestination runs on a fresh context so that a cancelled transfer still removes its copy.
func (o *Orchestrator) cleanupDestination(dst core.SiteAccess, p string, file string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := dst.Remove(ctx, p); err != nil {
		log.Errorw("failed to remove mismatched copy", "file", file, "site", dst.Site().Label(), "path", p, "err", err)
	}
}

func (o *Orchestrator) report(ctx context.Context, src, dst core.Site, res *core.TransferResult) {
	l := log.With("file", res.File, "src", res.Src, "dst", res.Dst, "elapsed", res.Elapsed.Truncate(time.Millisecond).String())

	switch res.Outcome {
	case core.OutcomeCopied:
		l.Infow("file copied", "size", units.BytesSize(float64(res.SrcAttrs.Size)), "src-attrs", res.SrcAttrs.String(), "dst-attrs", res.DstAttrs.String(), "proof", res.Proof.String())
	case core.OutcomeSkippedIdentical:
		l.Infow("file already at destination", "attrs", res.DstAttrs.String(), "proof", res.Proof.String())
	case core.OutcomeDestinationMismatch:
		l.Warnw("file exists at destination but does not match, left untouched", "expected", res.SrcAttrs.String(), "observed", res.DstAttrs.String())
	case core.OutcomeMissingSource:
		l.Warnw("file not found at source")
	default:
		l.Errorw("file transfer failed", "outcome", res.Outcome.String(), "err", res.Err)
	}

	route := metrics.RouteName(src.Kind.String(), dst.Kind.String())
	tctx, err := metrics.New(ctx, metrics.Upsert(metrics.Route, route), metrics.Upsert(metrics.Outcome, res.Outcome.String()))
	if err != nil {
		log.Debugw("tag metrics", "err", err)
		return
	}

	metrics.Record(tctx, metrics.TransferResult.M(1), metrics.TransferDuration.M(res.Elapsed.Seconds()))
	if res.Outcome == core.OutcomeCopied {
		metrics.Record(tctx, metrics.TransferBytes.M(res.SrcAttrs.Size))
	}
}
