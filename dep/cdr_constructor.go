package dep

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/metrics"
	"github.com/padme-experiment/padme-cdr/modules"
	"github.com/padme-experiment/padme-cdr/modules/impl/batch"
	"github.com/padme-experiment/padme-cdr/modules/impl/credential"
	"github.com/padme-experiment/padme-cdr/modules/impl/deletion"
	"github.com/padme-experiment/padme-cdr/modules/impl/journal"
	"github.com/padme-experiment/padme-cdr/modules/impl/probe"
	"github.com/padme-experiment/padme-cdr/modules/impl/prodcat"
	"github.com/padme-experiment/padme-cdr/modules/impl/transfer"
	"github.com/padme-experiment/padme-cdr/modules/impl/transport"
	"github.com/padme-experiment/padme-cdr/modules/impl/verify"
	"github.com/padme-experiment/padme-cdr/modules/sites"
	"github.com/padme-experiment/padme-cdr/pkg/confmgr"
	"github.com/padme-experiment/padme-cdr/pkg/extproc"
	"github.com/padme-experiment/padme-cdr/pkg/homedir"
)

type (
	ConfDirPath   string
	MetricsListen string
)

func BuildConfDirPath(home *homedir.Home) ConfDirPath {
	return ConfDirPath(home.Dir())
}

func BuildLocalConfigManager(confDir ConfDirPath) (confmgr.ConfigManager, error) {
	return confmgr.NewLocal(string(confDir))
}

// ProvideConfig loads the config file from the home directory; built-in defaults are
// used when it has not been initialized.
func ProvideConfig(gctx GlobalContext, cfgmgr confmgr.ConfigManager) (*modules.Config, error) {
	cfg := modules.DefaultConfig(false)
	if err := cfgmgr.Load(gctx, modules.ConfigKey, &cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}

		log.Warnw("config file not found, using defaults", "path", cfgmgr.Path(modules.ConfigKey))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	buf := bytes.Buffer{}
	if err := cfg.Encode(&buf); err != nil {
		return nil, err
	}

	log.Debugf("padme-cdr cfg: \n%s\n", buf.String())
	return &cfg, nil
}

func BuildSiteCatalog(cfg *modules.Config) (*sites.Catalog, error) {
	return sites.NewCatalog(cfg.Sites)
}

func BuildRunner(cfg *modules.Config) extproc.Runner {
	return extproc.NewExecRunner(extproc.Config{
		Concurrent: cfg.Tools.Concurrent,
		Timeout:    cfg.Tools.CommandTimeout.Std(),
		Envs:       cfg.Tools.Envs,
	})
}

func BuildSiteAccessor(cfg *modules.Config, runner extproc.Runner) core.SiteAccessor {
	return probe.NewAccessor(probe.Options{
		Runner:      runner,
		ListTimeout: cfg.Tools.ListTimeout.Std(),
	})
}

func BuildTransporter(cfg *modules.Config, runner extproc.Runner) core.Transporter {
	return transport.NewRouter(transport.Options{
		Runner:         runner,
		CopyTimeout:    cfg.Tools.CopyTimeout.Std(),
		ScratchDir:     homedir.Expand(cfg.Common.ScratchDir),
		ScratchMinFree: cfg.Common.ScratchMinFree.Std(),
	})
}

func BuildCredentialProvider(cfg *modules.Config, runner extproc.Runner) core.CredentialProvider {
	if !cfg.Credential.Enabled {
		return credential.Disabled{}
	}

	return credential.NewVOMSProxy(runner, cfg.Credential)
}

func BuildProductionCatalog(lc fx.Lifecycle, cfg *modules.Config) (core.ProductionCatalog, error) {
	cat, err := prodcat.Open(cfg.Catalog)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return cat.Close()
		},
	})

	return cat, nil
}

// BuildJournal does not open the store, each journal operation does.
func BuildJournal(gctx GlobalContext, cfg *modules.Config, home *homedir.Home, lc fx.Lifecycle) (core.Journal, error) {
	if !cfg.Journal.Enabled {
		return journal.Discard{}, nil
	}

	open, closeStore, err := journal.Open(gctx, cfg.Journal, home.Dir())
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: closeStore,
	})

	return journal.New(open), nil
}

func BuildOrchestrator(cfg *modules.Config, access core.SiteAccessor, transporter core.Transporter, creds core.CredentialProvider) *transfer.Orchestrator {
	return transfer.New(access, transporter, creds, cfg.MatchRule())
}

func BuildBatchDriver(cfg *modules.Config, access core.SiteAccessor, transferrer batch.Transferrer, catalog core.ProductionCatalog, j core.Journal) *batch.Driver {
	return batch.NewDriver(access, transferrer, catalog, j, cfg.Common.Jobs)
}

func BuildVerifier(cfg *modules.Config, access core.SiteAccessor, catalog core.ProductionCatalog) *verify.Verifier {
	return verify.New(access, catalog, cfg.Common.VerifyJobs)
}

func BuildReconciler(cfg *modules.Config, access core.SiteAccessor) *deletion.Reconciler {
	return deletion.New(access, deletion.Options{
		MaxRounds: cfg.Common.DeleteRetries,
		Backoff:   cfg.Common.DeleteBackoff.Std(),
		Jobs:      cfg.Common.DeleteJobs,
	})
}

func RunMetrics(gctx GlobalContext, lc fx.Lifecycle, cfg *modules.Config, listen MetricsListen) error {
	addr := string(listen)
	if addr == "" {
		addr = cfg.Metrics.Listen
	}

	if addr == "" {
		metrics.RegisterViews()
		return nil
	}

	runCtx, runCancel := context.WithCancel(gctx)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := metrics.Serve(runCtx, addr, cfg.Metrics.Namespace); err != nil {
					log.Errorw("metrics server stopped", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			runCancel()
			return nil
		},
	})

	return nil
}
