package internal

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/modules/impl/batch"
	"github.com/padme-experiment/padme-cdr/modules/impl/transfer"
	"github.com/padme-experiment/padme-cdr/modules/sites"
	"github.com/padme-experiment/padme-cdr/pkg/logging"
)

var TransferCmd = &cli.Command{
	Name:         "transfer",
	Usage:        "Copy one raw data file between two sites",
	ArgsUsage:    " ",
	OnUsageError: OnUsageError,
	Flags: []cli.Flag{
		fileFlag,
		srcSiteFlag,
		srcDirFlag,
		dstSiteFlag,
		dstDirFlag,
		verboseFlag,
	},
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Present() {
			return IncorrectNumArgs(cctx)
		}

		raw, err := sites.ParseRaw(cctx.String(fileFlag.Name))
		if err != nil {
			return ShowHelp(cctx, err)
		}

		var (
			siteCat *sites.Catalog
			orch    *transfer.Orchestrator
		)

		gctx, stop, err := extract(cctx, &siteCat, &orch)
		if err != nil {
			return err
		}
		defer stop()

		src, dst, err := sitePair(cctx, siteCat)
		if err != nil {
			return err
		}

		setVerbose(cctx)

		res := orch.Transfer(gctx, sites.RawFile{File: raw.File, Resolver: sites.NewResolver()}, src, dst)
		RenderTransfer(cctx.App.Writer, res)
		if !res.Outcome.Success() {
			return ErrOperationFailed
		}

		return nil
	},
}

var TransferRunCmd = &cli.Command{
	Name:         "transfer-run",
	Usage:        "Copy every file of a run between two sites",
	ArgsUsage:    " ",
	OnUsageError: OnUsageError,
	Flags: []cli.Flag{
		runFlag,
		srcSiteFlag,
		srcDirFlag,
		dstSiteFlag,
		dstDirFlag,
		jobsFlag,
		verboseFlag,
	},
	Action: func(cctx *cli.Context) error {
		run := cctx.String(runFlag.Name)
		if _, err := sites.ParseRun(run); err != nil {
			return ShowHelp(cctx, err)
		}

		return runBatch(cctx, core.Batch{Kind: core.BatchRun, ID: run})
	},
}

var TransferProdCmd = &cli.Command{
	Name:         "transfer-prod",
	Usage:        "Copy every file of a production between two sites",
	ArgsUsage:    " ",
	OnUsageError: OnUsageError,
	Flags: []cli.Flag{
		prodFlag,
		srcSiteFlag,
		srcDirFlag,
		dstSiteFlag,
		dstDirFlag,
		jobsFlag,
		verboseFlag,
	},
	Action: func(cctx *cli.Context) error {
		return runBatch(cctx, core.Batch{Kind: core.BatchProduction, ID: cctx.String(prodFlag.Name)})
	},
}

func runBatch(cctx *cli.Context, b core.Batch) error {
	if cctx.Args().Present() {
		return IncorrectNumArgs(cctx)
	}

	if jobs := cctx.Int(jobsFlag.Name); cctx.IsSet(jobsFlag.Name) && jobs <= 0 {
		return ShowHelpf(cctx, "--%s must be positive, got %d", jobsFlag.Name, jobs)
	}

	var (
		siteCat *sites.Catalog
		driver  *batch.Driver
	)

	gctx, stop, err := extract(cctx, &siteCat, &driver)
	if err != nil {
		return err
	}
	defer stop()

	src, dst, err := sitePair(cctx, siteCat)
	if err != nil {
		return err
	}

	setVerbose(cctx)

	rep, err := driver.WithJobs(cctx.Int(jobsFlag.Name)).Run(gctx, b, src, dst)
	if err != nil {
		return fmt.Errorf("%s from %s to %s: %w", b, src.Label(), dst.Label(), err)
	}

	RenderReport(cctx.App.Writer, rep, verbosity(cctx))
	if !rep.OK() {
		return ErrOperationFailed
	}

	return nil
}

// setVerbose turns on debug logs of the engine for -vv and above.
func setVerbose(cctx *cli.Context) {
	if verbosity(cctx) > 1 {
		logging.SetVerbose("transfer", "batch", "verify", "deletion", "probe", "transport", "extproc")
	}
}
