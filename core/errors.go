package core

import (
	"fmt"
)

var (
	ErrNamingConvention     = fmt.Errorf("file name does not follow the naming convention")
	ErrUnsupportedRoute     = fmt.Errorf("unsupported transfer route")
	ErrUnsupportedOperation = fmt.Errorf("operation not supported by site")
	ErrMissingSource        = fmt.Errorf("file missing at source")
	ErrTransportFailure     = fmt.Errorf("transport failure")
	ErrVerifyMismatch       = fmt.Errorf("copies do not match")
	ErrChecksumUnavailable  = fmt.Errorf("checksum unavailable")
	ErrGaveUp               = fmt.Errorf("gave up")
	ErrMissing              = fmt.Errorf("file missing")
	ErrPathNotFound         = fmt.Errorf("path not found")
	ErrCredential           = fmt.Errorf("no valid credential")
	ErrInput                = fmt.Errorf("invalid input")
	ErrSiteNotFound         = fmt.Errorf("site not found")
	ErrProductionNotFound   = fmt.Errorf("production not found")
)

// MismatchError describes two copies of a file that disagree.
type MismatchError struct {
	File     string
	Src      string
	Dst      string
	Expected FileAttributes
	Observed FileAttributes
	Verdict  Verdict
	// Base is ErrVerifyMismatch after a copy, nil for pre-existing destinations.
	Base error
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("file %s: %s between %s and %s - S: %s - D: %s", e.File, e.Verdict, e.Src, e.Dst, e.Expected, e.Observed)
}

func (e *MismatchError) Unwrap() error {
	return e.Base
}

// InputError marks errors caused by the caller's arguments.
func InputError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInput, fmt.Sprintf(format, args...))
}
