package dep

import (
	"github.com/dtynn/dix"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/modules"
	"github.com/padme-experiment/padme-cdr/modules/impl/batch"
	"github.com/padme-experiment/padme-cdr/modules/impl/deletion"
	"github.com/padme-experiment/padme-cdr/modules/impl/mock"
	"github.com/padme-experiment/padme-cdr/modules/impl/transfer"
	"github.com/padme-experiment/padme-cdr/modules/impl/verify"
	"github.com/padme-experiment/padme-cdr/modules/sites"
	"github.com/padme-experiment/padme-cdr/pkg/confmgr"
	"github.com/padme-experiment/padme-cdr/pkg/extproc"
)

// Config provides the loaded configuration and the site catalog built from it.
func Config() dix.Option {
	return dix.Options(
		dix.Override(new(ConfDirPath), BuildConfDirPath),
		dix.Override(new(confmgr.ConfigManager), BuildLocalConfigManager),
		dix.Override(new(*modules.Config), ProvideConfig),
		dix.Override(new(*sites.Catalog), BuildSiteCatalog),
	)
}

// Product wires the real site tools, transport and collaborators.
func Product(target ...interface{}) dix.Option {
	return dix.Options(
		Config(),
		dix.Override(new(extproc.Runner), BuildRunner),
		dix.Override(new(core.SiteAccessor), BuildSiteAccessor),
		dix.Override(new(core.Transporter), BuildTransporter),
		dix.Override(new(core.CredentialProvider), BuildCredentialProvider),
		dix.Override(new(core.ProductionCatalog), BuildProductionCatalog),
		dix.Override(new(core.Journal), BuildJournal),

		dix.Override(new(*transfer.Orchestrator), BuildOrchestrator),
		dix.Override(new(batch.Transferrer), dix.From(new(*transfer.Orchestrator))),
		dix.Override(new(*batch.Driver), BuildBatchDriver),
		dix.Override(new(*verify.Verifier), BuildVerifier),
		dix.Override(new(*deletion.Reconciler), BuildReconciler),
		dix.If(len(target) > 0, dix.Populate(InvokePopulate, target...)),
	)
}

// Metrics serves the prometheus endpoint for the lifetime of the command when configured.
func Metrics(listen string) dix.Option {
	return dix.Options(
		dix.Override(new(MetricsListen), MetricsListen(listen)),
		dix.Override(StartMetrics, RunMetrics),
	)
}

// Mock replaces the site tools and the collaborators with in-memory ones.
func Mock(storage *mock.Storage, catalog *mock.Catalog) dix.Option {
	return dix.Options(
		dix.Override(new(*mock.Storage), storage),
		dix.Override(new(*mock.Catalog), catalog),
		dix.Override(new(core.SiteAccessor), dix.From(new(*mock.Storage))),
		dix.Override(new(core.Transporter), dix.From(new(*mock.Storage))),
		dix.Override(new(core.ProductionCatalog), dix.From(new(*mock.Catalog))),
		dix.Override(new(core.CredentialProvider), &mock.Credentials{}),
	)
}
