package internal

import (
	"github.com/urfave/cli/v2"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/modules/impl/verify"
	"github.com/padme-experiment/padme-cdr/modules/sites"
)

var VerifyRunCmd = &cli.Command{
	Name:         "verify-run",
	Usage:        "Check that a run holds the same files at two sites",
	ArgsUsage:    " ",
	OnUsageError: OnUsageError,
	Flags: []cli.Flag{
		runFlag,
		yearFlag,
		srcSiteFlag,
		srcDirFlag,
		dstSiteFlag,
		dstDirFlag,
		checksumFlag,
		verboseFlag,
	},
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Present() {
			return IncorrectNumArgs(cctx)
		}

		run := cctx.String(runFlag.Name)
		if _, err := sites.ParseRun(run); err != nil {
			return ShowHelp(cctx, err)
		}

		var (
			siteCat  *sites.Catalog
			verifier *verify.Verifier
		)

		gctx, stop, err := extract(cctx, &siteCat, &verifier)
		if err != nil {
			return err
		}
		defer stop()

		a, err := siteFromFlags(cctx, siteCat, srcSiteFlag, srcDirFlag)
		if err != nil {
			return err
		}

		b, err := siteFromFlags(cctx, siteCat, dstSiteFlag, dstDirFlag)
		if err != nil {
			return err
		}

		if a.SameEndpoint(b) {
			return ShowHelp(cctx, core.InputError("nothing to compare, both sides are %s", a.Label()))
		}

		setVerbose(cctx)

		res, err := verifier.Run(gctx, run, cctx.String(yearFlag.Name), a, b, cctx.Bool(checksumFlag.Name))
		if err != nil {
			return err
		}

		RenderVerify(cctx.App.Writer, "Run", res, verbosity(cctx))
		if !res.Consistent() {
			return ErrOperationFailed
		}

		return nil
	},
}

var VerifyProdCmd = &cli.Command{
	Name:         "verify-prod",
	Usage:        "Check the files of a production at a site against the production catalog",
	ArgsUsage:    " ",
	OnUsageError: OnUsageError,
	Flags: []cli.Flag{
		prodFlag,
		&cli.StringFlag{
			Name:    "site",
			Aliases: []string{"S"},
			Usage:   "site to check",
			Value:   defaultDst,
		},
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"s"},
			Usage:   "data directory if the site is LOCAL",
		},
		checksumFlag,
		verboseFlag,
	},
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Present() {
			return IncorrectNumArgs(cctx)
		}

		var (
			siteCat  *sites.Catalog
			verifier *verify.Verifier
		)

		gctx, stop, err := extract(cctx, &siteCat, &verifier)
		if err != nil {
			return err
		}
		defer stop()

		site, err := siteCat.Lookup(cctx.String("site"), cctx.String("dir"))
		if err != nil {
			return ShowHelp(cctx, err)
		}

		setVerbose(cctx)

		res, err := verifier.Production(gctx, cctx.String(prodFlag.Name), site, cctx.Bool(checksumFlag.Name))
		if err != nil {
			return err
		}

		RenderVerify(cctx.App.Writer, "Production", res, verbosity(cctx))
		if !res.Consistent() {
			return ErrOperationFailed
		}

		return nil
	},
}
