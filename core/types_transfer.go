package core

import (
	"fmt"
	"time"
)

type TransferOutcome int

const (
	OutcomeUnknown TransferOutcome = iota
	OutcomeSkippedIdentical
	OutcomeCopied
	OutcomeCopyFailed
	OutcomeVerifyMismatch
	OutcomeMissingSource
	OutcomeUnsupportedRoute
	// OutcomeDestinationMismatch: the destination already holds a different file, left untouched.
	OutcomeDestinationMismatch
	// OutcomeNamingError: the file name does not follow the raw data naming convention.
	OutcomeNamingError
)

var AllOutcomes = []TransferOutcome{
	OutcomeSkippedIdentical,
	OutcomeCopied,
	OutcomeCopyFailed,
	OutcomeVerifyMismatch,
	OutcomeMissingSource,
	OutcomeUnsupportedRoute,
	OutcomeDestinationMismatch,
	OutcomeNamingError,
}

var outcomeNames = map[TransferOutcome]string{
	OutcomeSkippedIdentical:    "skipped-identical",
	OutcomeCopied:              "copied-ok",
	OutcomeCopyFailed:          "copy-failed",
	OutcomeVerifyMismatch:      "verify-mismatch",
	OutcomeMissingSource:       "missing-source",
	OutcomeUnsupportedRoute:    "unsupported-route",
	OutcomeDestinationMismatch: "destination-mismatch",
	OutcomeNamingError:         "naming-error",
}

func (o TransferOutcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}

	return fmt.Sprintf("outcome(%d)", int(o))
}

// Success reports whether the destination holds a verified copy after the call.
func (o TransferOutcome) Success() bool {
	return o == OutcomeSkippedIdentical || o == OutcomeCopied
}

func (o TransferOutcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *TransferOutcome) UnmarshalText(text []byte) error {
	for k, name := range outcomeNames {
		if name == string(text) {
			*o = k
			return nil
		}
	}

	return fmt.Errorf("unknown transfer outcome %q", string(text))
}

// TransferResult is produced once per file per orchestration call.
type TransferResult struct {
	File    string
	Src     string
	Dst     string
	Outcome TransferOutcome
	Proof   Proof

	SrcAttrs FileAttributes
	DstAttrs FileAttributes

	Err     error
	Elapsed time.Duration
}

type BatchKind int

const (
	BatchRun BatchKind = iota + 1
	BatchProduction
)

func (k BatchKind) String() string {
	switch k {
	case BatchRun:
		return "run"
	case BatchProduction:
		return "production"
	default:
		return fmt.Sprintf("batch(%d)", int(k))
	}
}

type Batch struct {
	Kind BatchKind
	ID   string
}

func (b Batch) String() string {
	return fmt.Sprintf("%s %s", b.Kind, b.ID)
}
