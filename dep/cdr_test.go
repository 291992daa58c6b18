package dep_test

import (
	"context"
	"testing"

	"github.com/dtynn/dix"
	"github.com/stretchr/testify/require"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/dep"
	"github.com/padme-experiment/padme-cdr/modules"
	"github.com/padme-experiment/padme-cdr/modules/impl/batch"
	"github.com/padme-experiment/padme-cdr/modules/impl/deletion"
	"github.com/padme-experiment/padme-cdr/modules/impl/mock"
	"github.com/padme-experiment/padme-cdr/modules/impl/verify"
	"github.com/padme-experiment/padme-cdr/modules/sites"
	"github.com/padme-experiment/padme-cdr/pkg/homedir"
)

const (
	run     = "run_7_20240101_120000"
	runFile = run + "_000.root"
	gridDir = "/daq/2024/rawdata/" + run
)

func TestProductWiring(t *testing.T) {
	ctx := context.Background()

	home, err := homedir.Open(t.TempDir())
	require.NoError(t, err)

	storage := mock.NewStorage()
	catalog := mock.NewCatalog()

	var (
		cfg        *modules.Config
		siteCat    *sites.Catalog
		driver     *batch.Driver
		verifier   *verify.Verifier
		reconciler *deletion.Reconciler
		journal    core.Journal
	)

	stopper, err := dix.New(
		ctx,
		dix.Override(new(*homedir.Home), home),
		dix.Override(new(dep.GlobalContext), ctx),
		dep.Product(),
		dep.Mock(storage, catalog),
		dix.Populate(dep.InvokePopulate, &cfg, &siteCat, &driver, &verifier, &reconciler, &journal),
	)
	require.NoError(t, err)
	defer stopper(ctx) // nolint:errcheck

	require.Equal(t, modules.DefaultJobs, cfg.Common.Jobs)

	lnf, err := siteCat.Lookup("LNF", "")
	require.NoError(t, err)
	cnaf, err := siteCat.Lookup("CNAF", "")
	require.NoError(t, err)

	storage.Put(lnf, gridDir+"/"+runFile, core.FileAttributes{Size: 100, Checksum: "0000beef"})

	rep, err := driver.Run(ctx, core.Batch{Kind: core.BatchRun, ID: run}, lnf, cnaf)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Counts()[core.OutcomeCopied])

	res, err := verifier.Run(ctx, run, "", lnf, cnaf, true)
	require.NoError(t, err)
	require.True(t, res.Consistent())

	recs, err := journal.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, rep.ID, recs[0].ID)

	rounds, err := reconciler.DeleteAll(ctx, run, "", cnaf)
	require.NoError(t, err)
	require.Equal(t, 2, rounds)
	require.Empty(t, storage.Paths(cnaf))
}

func TestProductsShareHome(t *testing.T) {
	ctx := context.Background()

	home, err := homedir.Open(t.TempDir())
	require.NoError(t, err)

	storage := mock.NewStorage()
	catalog := mock.NewCatalog()

	build := func() (*sites.Catalog, *batch.Driver, core.Journal) {
		var (
			siteCat *sites.Catalog
			driver  *batch.Driver
			journal core.Journal
		)

		stopper, err := dix.New(
			ctx,
			dix.Override(new(*homedir.Home), home),
			dix.Override(new(dep.GlobalContext), ctx),
			dep.Product(),
			dep.Mock(storage, catalog),
			dix.Populate(dep.InvokePopulate, &siteCat, &driver, &journal),
		)
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, stopper(ctx)) })

		return siteCat, driver, journal
	}

	siteCat, first, journal := build()
	_, second, _ := build()

	lnf, err := siteCat.Lookup("LNF", "")
	require.NoError(t, err)
	cnaf, err := siteCat.Lookup("CNAF", "")
	require.NoError(t, err)
	storage.Put(lnf, gridDir+"/"+runFile, core.FileAttributes{Size: 100, Checksum: "0000beef"})

	rep, err := first.Run(ctx, core.Batch{Kind: core.BatchRun, ID: run}, lnf, cnaf)
	require.NoError(t, err)
	require.True(t, rep.OK())

	rep, err = second.Run(ctx, core.Batch{Kind: core.BatchRun, ID: run}, lnf, cnaf)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Counts()[core.OutcomeSkippedIdentical])

	recs, err := journal.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
}

func TestReconcilerConfiguredJobs(t *testing.T) {
	ctx := context.Background()

	home, err := homedir.Open(t.TempDir())
	require.NoError(t, err)

	cfg := modules.DefaultConfig(false)
	cfg.Common.DeleteJobs = 3

	storage := mock.NewStorage()

	var (
		siteCat    *sites.Catalog
		reconciler *deletion.Reconciler
	)

	stopper, err := dix.New(
		ctx,
		dix.Override(new(*homedir.Home), home),
		dix.Override(new(dep.GlobalContext), ctx),
		dep.Product(),
		dep.Mock(storage, mock.NewCatalog()),
		dix.Override(new(*modules.Config), &cfg),
		dix.Populate(dep.InvokePopulate, &siteCat, &reconciler),
	)
	require.NoError(t, err)
	defer stopper(ctx) // nolint:errcheck

	cnaf, err := siteCat.Lookup("CNAF", "")
	require.NoError(t, err)
	storage.Put(cnaf, gridDir+"/"+run+"_000.root", core.FileAttributes{Size: 10})
	storage.Put(cnaf, gridDir+"/"+run+"_001.root", core.FileAttributes{Size: 10})

	_, err = reconciler.DeleteAll(ctx, run, "", cnaf)
	require.NoError(t, err)

	removes := storage.Removes()
	require.Len(t, removes, 3)
	require.Equal(t, gridDir, removes[len(removes)-1])
}
