package internal

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dtynn/dix"
	"github.com/urfave/cli/v2"

	"github.com/padme-experiment/padme-cdr/dep"
	"github.com/padme-experiment/padme-cdr/pkg/homedir"
	"github.com/padme-experiment/padme-cdr/pkg/logging"
)

var Log = logging.New("padme-cdr")

var HomeFlag = &cli.StringFlag{
	Name:    "home",
	Value:   "~/.padme-cdr",
	EnvVars: []string{"PADME_CDR_HOME"},
}

var MetricsListenFlag = &cli.StringFlag{
	Name:  "metrics-listen",
	Usage: "serve prometheus metrics on this address while the command runs",
}

type stopper = func()

func NewSigContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGABRT, syscall.SIGTERM, syscall.SIGINT)
}

func DepsFromCLICtx(cctx *cli.Context) dix.Option {
	return dix.Options(
		dix.Override(new(*cli.Context), cctx),
		dix.Override(new(*homedir.Home), HomeFromCLICtx),
	)
}

func HomeFromCLICtx(cctx *cli.Context) (*homedir.Home, error) {
	home, err := homedir.Open(cctx.String(HomeFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("open home: %w", err)
	}

	if err := home.Init(); err != nil {
		return nil, fmt.Errorf("init home: %w", err)
	}

	return home, nil
}

// extract builds the components a command needs and fills targets with them. The returned
// stopper releases them and must be called once the command is done.
func extract(cctx *cli.Context, targets ...interface{}) (context.Context, stopper, error) {
	gctx, gcancel := NewSigContext(cctx.Context)

	stop, err := dix.New(
		gctx,
		DepsFromCLICtx(cctx),
		dix.Override(new(dep.GlobalContext), gctx),
		dep.Metrics(cctx.String(MetricsListenFlag.Name)),
		dep.Product(targets...),
	)
	if err != nil {
		gcancel()
		return nil, nil, fmt.Errorf("construct components: %w", err)
	}

	return gctx, func() {
		if err := stop(cctx.Context); err != nil {
			Log.Warnw("stop components", "err", err)
		}
		gcancel()
	}, nil
}
