package internal

import (
	"github.com/urfave/cli/v2"

	"github.com/padme-experiment/padme-cdr/modules/impl/deletion"
	"github.com/padme-experiment/padme-cdr/modules/sites"
)

const defaultDeleteSite = "CNAF2"

var DeleteRunCmd = &cli.Command{
	Name:         "delete-run",
	Usage:        "Remove every file of a run from a site, retrying until the run directory is gone",
	ArgsUsage:    " ",
	OnUsageError: OnUsageError,
	Flags: []cli.Flag{
		runFlag,
		yearFlag,
		&cli.StringFlag{
			Name:    "site",
			Aliases: []string{"S"},
			Usage:   "site to delete the run from",
			Value:   defaultDeleteSite,
		},
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"s"},
			Usage:   "data directory if the site is LOCAL, data server if the site is DAQ",
		},
		&cli.IntFlag{
			Name:    jobsFlag.Name,
			Aliases: jobsFlag.Aliases,
			Usage:   "number of files removed in parallel before the recursive removal, 1 disables it, defaults to Common.DeleteJobs",
		},
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

		jobs := cctx.Int(jobsFlag.Name)
		if cctx.IsSet(jobsFlag.Name) && jobs <= 0 {
			return ShowHelpf(cctx, "--%s must be positive, got %d", jobsFlag.Name, jobs)
		}

		var (
			siteCat    *sites.Catalog
			reconciler *deletion.Reconciler
		)

		gctx, stop, err := extract(cctx, &siteCat, &reconciler)
		if err != nil {
			return err
		}
		defer stop()

		site, err := siteCat.Lookup(cctx.String("site"), cctx.String("dir"))
		if err != nil {
			return ShowHelp(cctx, err)
		}

		setVerbose(cctx)

		rounds, err := reconciler.WithJobs(jobs).DeleteAll(gctx, run, cctx.String(yearFlag.Name), site)
		if err != nil {
			return err
		}

		okColor.Fprintf(cctx.App.Writer, "=== Run %s deleted from %s after %d rounds ===\n", run, site.Label(), rounds) // nolint:errcheck
		return nil
	},
}
