package deletion_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/modules"
	"github.com/padme-experiment/padme-cdr/modules/impl/deletion"
	"github.com/padme-experiment/padme-cdr/modules/impl/mock"
	"github.com/padme-experiment/padme-cdr/pkg/retry"
)

const (
	run = "run_7_20240101_120000"
	dir = "/daq/2024/rawdata/" + run
)

var (
	lnf  = core.Site{Name: "LNF", Kind: core.GridStorage, Endpoint: "srm://a", RawLayout: modules.GridRawLayout}
	kloe = core.Site{Name: "KLOE", Kind: core.RemoteShellTape, Endpoint: "fibm15", RawLayout: modules.KLOERawLayout}
)

func populate(storage *mock.Storage) {
	for _, f := range []string{"a.root", "b.root", "c.root"} {
		storage.Put(lnf, dir+"/"+f, core.FileAttributes{Size: 10})
	}
}

func TestDeleteAllTwoRounds(t *testing.T) {
	for _, jobs := range []int{1, 4} {
		storage := mock.NewStorage()
		populate(storage)

		rec := deletion.New(storage, deletion.Options{MaxRounds: 10})
		rounds, err := rec.WithJobs(jobs).DeleteAll(context.Background(), run, "", lnf)
		require.NoError(t, err, "jobs=%d", jobs)
		require.Equal(t, 2, rounds, "jobs=%d", jobs)
		require.Empty(t, storage.Paths(lnf))
	}
}

func TestDeleteAllParallelRemovesFiles(t *testing.T) {
	storage := mock.NewStorage()
	populate(storage)

	rec := deletion.New(storage, deletion.Options{MaxRounds: 10})
	_, err := rec.WithJobs(3).DeleteAll(context.Background(), run, "", lnf)
	require.NoError(t, err)

	removes := storage.Removes()
	require.ElementsMatch(t, []string{dir + "/a.root", dir + "/b.root", dir + "/c.root", dir}, removes)
	require.Equal(t, dir, removes[len(removes)-1])
}

func TestDeleteAllSequentialUsesRecursiveRemove(t *testing.T) {
	storage := mock.NewStorage()
	populate(storage)

	rec := deletion.New(storage, deletion.Options{MaxRounds: 10})
	_, err := rec.WithJobs(1).DeleteAll(context.Background(), run, "", lnf)
	require.NoError(t, err)
	require.Equal(t, []string{dir}, storage.Removes())
}

func TestDeleteAllConfiguredJobs(t *testing.T) {
	storage := mock.NewStorage()
	populate(storage)

	rec := deletion.New(storage, deletion.Options{MaxRounds: 10, Jobs: 3})
	_, err := rec.WithJobs(0).DeleteAll(context.Background(), run, "", lnf)
	require.NoError(t, err)
	require.Len(t, storage.Removes(), 4, "files removed one by one before the directory")

	storage = mock.NewStorage()
	populate(storage)

	rec = deletion.New(storage, deletion.Options{MaxRounds: 10})
	_, err = rec.DeleteAll(context.Background(), run, "", lnf)
	require.NoError(t, err)
	require.Equal(t, []string{dir}, storage.Removes())
}

func TestDeleteAllAlreadyGone(t *testing.T) {
	storage := mock.NewStorage()

	rec := deletion.New(storage, deletion.Options{})
	rounds, err := rec.WithJobs(4).DeleteAll(context.Background(), run, "", lnf)
	require.NoError(t, err)
	require.Equal(t, 1, rounds)
	require.Empty(t, storage.Removes())
}

func TestDeleteAllGivesUp(t *testing.T) {
	storage := mock.NewStorage()
	populate(storage)
	storage.Stubborn(dir, 100)

	rec := deletion.New(storage, deletion.Options{MaxRounds: 3})
	rounds, err := rec.WithJobs(1).DeleteAll(context.Background(), run, "", lnf)
	require.ErrorIs(t, err, core.ErrGaveUp)
	require.ErrorIs(t, err, retry.ErrExhausted)
	require.Equal(t, 3, rounds)
	require.Len(t, storage.Paths(lnf), 3)
	require.Len(t, storage.Removes(), 3)
}

func TestDeleteAllListingKeepsFailing(t *testing.T) {
	storage := mock.NewStorage()
	populate(storage)
	storage.FailList(dir, core.ErrTransportFailure)

	rec := deletion.New(storage, deletion.Options{MaxRounds: 2})
	rounds, err := rec.WithJobs(2).DeleteAll(context.Background(), run, "", lnf)
	require.ErrorIs(t, err, core.ErrGaveUp)
	require.ErrorIs(t, err, core.ErrTransportFailure)
	require.Equal(t, 2, rounds)
	require.Empty(t, storage.Removes())
}

func TestDeleteAllTapeUnsupported(t *testing.T) {
	storage := mock.NewStorage()
	storage.Put(kloe, "/pdm/padme/daq/2024/rawdata/"+run+"/a.root", core.FileAttributes{Size: 10})

	rec := deletion.New(storage, deletion.Options{})
	rounds, err := rec.WithJobs(2).DeleteAll(context.Background(), run, "", kloe)
	require.ErrorIs(t, err, core.ErrUnsupportedOperation)
	require.Zero(t, rounds)
	require.Empty(t, storage.Removes())
}

func TestDeleteAllBadRun(t *testing.T) {
	rec := deletion.New(mock.NewStorage(), deletion.Options{})
	_, err := rec.DeleteAll(context.Background(), "not-a-run", "", lnf)
	require.Error(t, err)
}

func TestDeleteAllCancelled(t *testing.T) {
	storage := mock.NewStorage()
	populate(storage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := deletion.New(storage, deletion.Options{})
	_, err := rec.WithJobs(1).DeleteAll(ctx, run, "", lnf)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, storage.Paths(lnf), 3)
}
