package internal

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/modules"
	"github.com/padme-experiment/padme-cdr/pkg/confmgr"
)

var SitesCmd = &cli.Command{
	Name:  "sites",
	Usage: "List the configured sites",
	Action: func(cctx *cli.Context) error {
		var cfg *modules.Config
		_, stop, err := extract(cctx, &cfg)
		if err != nil {
			return err
		}
		defer stop()

		return RenderSites(cctx.App.Writer, cfg.Sites)
	},
}

var ConfigCmd = &cli.Command{
	Name:  "config",
	Usage: "Manage the configuration file",
	Subcommands: []*cli.Command{
		{
			Name:  "init",
			Usage: "Write the default configuration into the home directory",
			Action: func(cctx *cli.Context) error {
				home, err := HomeFromCLICtx(cctx)
				if err != nil {
					return err
				}

				cfgmgr, err := confmgr.NewLocal(home.Dir())
				if err != nil {
					return fmt.Errorf("construct config manager: %w", err)
				}

				if err := cfgmgr.SetDefault(cctx.Context, modules.ConfigKey, modules.DefaultConfig(true)); err != nil {
					return fmt.Errorf("init config: %w", err)
				}

				Log.Infow("initialized", "path", cfgmgr.Path(modules.ConfigKey))
				return nil
			},
		},
		{
			Name:  "show",
			Usage: "Print the effective configuration",
			Action: func(cctx *cli.Context) error {
				var cfg *modules.Config
				_, stop, err := extract(cctx, &cfg)
				if err != nil {
					return err
				}
				defer stop()

				return cfg.Encode(cctx.App.Writer)
			},
		},
	},
}

var JournalCmd = &cli.Command{
	Name:  "journal",
	Usage: "Inspect the audit trail of past batches",
	Subcommands: []*cli.Command{
		{
			Name:  "list",
			Usage: "List the journaled batches",
			Action: func(cctx *cli.Context) error {
				var journal core.Journal
				gctx, stop, err := extract(cctx, &journal)
				if err != nil {
					return err
				}
				defer stop()

				recs, err := journal.List(gctx)
				if err != nil {
					return fmt.Errorf("list journal: %w", err)
				}

				return RenderJournal(cctx.App.Writer, recs)
			},
		},
		{
			Name:      "show",
			Usage:     "Show every file of one batch",
			ArgsUsage: "<batch id>",
			Action: func(cctx *cli.Context) error {
				if cctx.NArg() != 1 {
					return IncorrectNumArgs(cctx)
				}

				var journal core.Journal
				gctx, stop, err := extract(cctx, &journal)
				if err != nil {
					return err
				}
				defer stop()

				rec, err := journal.Get(gctx, cctx.Args().First())
				if err != nil {
					return err
				}

				return RenderRecord(cctx.App.Writer, rec)
			},
		},
	},
}
