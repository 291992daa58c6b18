package logging

import (
	"os"

	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/zap"
)

type ZapLogger = zap.SugaredLogger
type WrappedLogger = logging.ZapEventLogger

var (
	New         = logging.Logger
	SetLogLevel = logging.SetLogLevel
	Nop         = zap.NewNop().Sugar()
)

func Setup() {
	if _, set := os.LookupEnv("GOLOG_LOG_LEVEL"); !set {
		_ = logging.SetLogLevel("*", "INFO")
		_ = logging.SetLogLevel("dix", "WARN")
		_ = logging.SetLogLevel("badger", "WARN")
		_ = logging.SetLogLevel("extproc", "INFO")
	}

	// journal writes are noisy at debug level
	_ = logging.SetLogLevel("kv", "INFO")
}

// SetupForSub keeps only the given subsystems at INFO, everything else at ERROR.
func SetupForSub(system ...string) {
	if _, set := os.LookupEnv("GOLOG_LOG_LEVEL"); !set {
		_ = logging.SetLogLevel("*", "ERROR")
		for _, one := range system {
			_ = logging.SetLogLevel(one, "INFO")
		}
	}
}

// SetVerbose lowers the given subsystems to DEBUG.
func SetVerbose(system ...string) {
	for _, one := range system {
		_ = logging.SetLogLevel(one, "DEBUG")
	}
}
