package main

import (
	"github.com/urfave/cli/v2"

	"github.com/padme-experiment/padme-cdr/cmd/padme-cdr/internal"
	"github.com/padme-experiment/padme-cdr/pkg/logging"
	"github.com/padme-experiment/padme-cdr/ver"
)

func main() {
	logging.Setup()

	app := &cli.App{
		Name:    "padme-cdr",
		Usage:   "Copy and verify PADME raw data between storage sites",
		Version: ver.VersionStr(),
		Commands: []*cli.Command{
			internal.TransferCmd,
			internal.TransferRunCmd,
			internal.TransferProdCmd,
			internal.VerifyRunCmd,
			internal.VerifyProdCmd,
			internal.DeleteRunCmd,
			internal.SitesCmd,
			internal.ConfigCmd,
			internal.JournalCmd,
		},
		Flags: []cli.Flag{
			internal.HomeFlag,
			internal.MetricsListenFlag,
		},
		OnUsageError: internal.OnUsageError,
	}

	internal.RunApp(app)
}
