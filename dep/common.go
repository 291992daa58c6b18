package dep

import (
	"context"

	"github.com/dtynn/dix"

	"github.com/padme-experiment/padme-cdr/pkg/logging"
)

var log = logging.New("dep")

type GlobalContext context.Context

const (
	ignoredInvoke dix.Invoke = iota // nolint:deadcode,varcheck
	StartMetrics

	// InvokePopulate should always be the last Invoke
	InvokePopulate
)
