package internal

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/padme-experiment/padme-cdr/core"
)

const (
	ExitOK     = 0
	ExitFailed = 1
	ExitInput  = 2
)

type PrintHelpErr struct {
	Ctx *cli.Context
	Err error
}

func (e *PrintHelpErr) Error() string {
	return e.Err.Error()
}

func (e *PrintHelpErr) Unwrap() error {
	return e.Err
}

func (e *PrintHelpErr) Is(o error) bool {
	_, ok := o.(*PrintHelpErr)
	return ok
}

func ShowHelp(cctx *cli.Context, err error) error {
	return &PrintHelpErr{
		Ctx: cctx,
		Err: err,
	}
}

func ShowHelpf(cctx *cli.Context, format string, args ...interface{}) error {
	return ShowHelp(cctx, fmt.Errorf(format, args...))
}

func IncorrectNumArgs(cctx *cli.Context) error {
	return ShowHelpf(cctx, "incorrect number of arguments, got %d", cctx.NArg())
}

// ErrOperationFailed marks a command that ran to the end but did not reach its goal.
var ErrOperationFailed = fmt.Errorf("operation failed")

// ExitCode maps a command error onto the process exit status.
func ExitCode(err error) int {
	var missing cli.RequiredFlagsErr
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, &PrintHelpErr{}),
		errors.As(err, &missing),
		errors.Is(err, core.ErrInput),
		errors.Is(err, core.ErrSiteNotFound),
		errors.Is(err, core.ErrNamingConvention),
		errors.Is(err, core.ErrProductionNotFound):
		return ExitInput
	default:
		return ExitFailed
	}
}

// OnUsageError turns flag parsing problems into input errors.
func OnUsageError(cctx *cli.Context, err error, _ bool) error {
	return ShowHelp(cctx, fmt.Errorf("%w: %v", core.ErrInput, err))
}

func RunApp(app *cli.App) {
	err := app.Run(os.Args)
	if err == nil {
		return
	}

	var phe *PrintHelpErr
	if errors.As(err, &phe) {
		if phe.Ctx.Command != nil && phe.Ctx.Command.Name != "" {
			_ = cli.ShowCommandHelp(phe.Ctx, phe.Ctx.Command.Name)
		} else {
			_ = cli.ShowAppHelp(phe.Ctx)
		}
		fmt.Fprintf(os.Stderr, "ERROR: %+v\n", err)
	} else if !errors.Is(err, ErrOperationFailed) {
		Log.Errorf("%+v", err)
	}

	os.Exit(ExitCode(err))
}
