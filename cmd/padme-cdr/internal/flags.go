package internal

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/modules/sites"
)

const (
	defaultSrc = "CNAF"
	defaultDst = "LNF"
)

var (
	runFlag = &cli.StringFlag{
		Name:     "run",
		Aliases:  []string{"R"},
		Usage:    "name of the run",
		Required: true,
	}

	fileFlag = &cli.StringFlag{
		Name:     "file",
		Aliases:  []string{"F"},
		Usage:    "name of the raw data file",
		Required: true,
	}

	prodFlag = &cli.StringFlag{
		Name:     "prod",
		Aliases:  []string{"P"},
		Usage:    "name of the production",
		Required: true,
	}

	srcSiteFlag = &cli.StringFlag{
		Name:    "src-site",
		Aliases: []string{"S"},
		Usage:   "source site",
		Value:   defaultSrc,
	}

	dstSiteFlag = &cli.StringFlag{
		Name:    "dst-site",
		Aliases: []string{"D"},
		Usage:   "destination site",
		Value:   defaultDst,
	}

	srcDirFlag = &cli.StringFlag{
		Name:    "src-dir",
		Aliases: []string{"s"},
		Usage:   "data directory if the source is LOCAL, data server if the source is DAQ",
	}

	dstDirFlag = &cli.StringFlag{
		Name:    "dst-dir",
		Aliases: []string{"d"},
		Usage:   "data directory if the destination is LOCAL, data server if the destination is DAQ",
	}

	jobsFlag = &cli.IntFlag{
		Name:    "jobs",
		Aliases: []string{"j"},
		Usage:   "number of parallel jobs, defaults to Common.Jobs",
	}

	yearFlag = &cli.StringFlag{
		Name:    "year",
		Aliases: []string{"Y"},
		Usage:   "year of data taking, defaults to the year in the run name",
	}

	checksumFlag = &cli.BoolFlag{
		Name:    "checksum",
		Aliases: []string{"c"},
		Usage:   "enable checksum verification (very time consuming)",
	}

	verboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "verbose output, repeat to increase the level",
		Count:   new(int),
	}
)

// verbosity returns how many times -v was given.
func verbosity(cctx *cli.Context) int {
	return cctx.Count(verboseFlag.Name)
}

// siteFromFlags looks up the site named by nameFlag, qualified by the value of qualFlag.
func siteFromFlags(cctx *cli.Context, cat *sites.Catalog, nameFlag, qualFlag *cli.StringFlag) (core.Site, error) {
	site, err := cat.Lookup(cctx.String(nameFlag.Name), cctx.String(qualFlag.Name))
	if err != nil {
		return core.Site{}, ShowHelp(cctx, fmt.Errorf("--%s: %w", nameFlag.Name, err))
	}

	return site, nil
}

// sitePair resolves source and destination and rejects pairs that cannot be served.
func sitePair(cctx *cli.Context, cat *sites.Catalog) (core.Site, core.Site, error) {
	src, err := siteFromFlags(cctx, cat, srcSiteFlag, srcDirFlag)
	if err != nil {
		return core.Site{}, core.Site{}, err
	}

	dst, err := siteFromFlags(cctx, cat, dstSiteFlag, dstDirFlag)
	if err != nil {
		return core.Site{}, core.Site{}, err
	}

	if err := cat.CheckPair(src, dst); err != nil {
		return core.Site{}, core.Site{}, ShowHelp(cctx, err)
	}

	return src, dst, nil
}
