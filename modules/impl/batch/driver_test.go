package batch_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/modules"
	"github.com/padme-experiment/padme-cdr/modules/impl/batch"
	"github.com/padme-experiment/padme-cdr/modules/impl/mock"
	"github.com/padme-experiment/padme-cdr/modules/impl/transfer"
)

const (
	run    = "run_7_20240101_120000"
	runDir = "/daq/2024/rawdata/" + run
)

var (
	siteA = core.Site{Name: "LNF", Kind: core.GridStorage, Endpoint: "srm://a", RawLayout: modules.GridRawLayout, ProdRoot: "/", Caps: core.Capabilities{Checksum: true}}
	siteB = core.Site{Name: "CNAF", Kind: core.GridStorage, Endpoint: "srm://b", RawLayout: modules.GridRawLayout, ProdRoot: "/", Caps: core.Capabilities{Checksum: true}}
)

type memJournal struct {
	mu      sync.Mutex
	records []core.BatchRecord
}

func (j *memJournal) Record(_ context.Context, rec core.BatchRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.records = append(j.records, rec)
	return nil
}

func (j *memJournal) List(context.Context) ([]core.BatchRecord, error) {
	return j.records, nil
}

func (j *memJournal) Get(_ context.Context, id string) (core.BatchRecord, error) {
	for _, r := range j.records {
		if r.ID == id {
			return r, nil
		}
	}

	return core.BatchRecord{}, errors.New("not found")
}

func newDriver(storage *mock.Storage, catalog core.ProductionCatalog, journal core.Journal, jobs int) *batch.Driver {
	orch := transfer.New(storage, storage, nil, core.DefaultMatchRule())
	return batch.NewDriver(storage, orch, catalog, journal, jobs)
}

func TestRunBatch(t *testing.T) {
	storage := mock.NewStorage()
	good := core.FileAttributes{Size: 1000, Checksum: "deadbeef"}

	storage.Put(siteA, runDir+"/"+run+"_000.root", good)
	storage.Put(siteA, runDir+"/"+run+"_001.root", good)
	storage.Put(siteA, runDir+"/"+run+"_002.root", good)
	storage.Put(siteB, runDir+"/"+run+"_001.root", good)
	storage.Put(siteB, runDir+"/"+run+"_002.root", core.FileAttributes{Size: 900, Checksum: "deadbeef"})

	journal := &memJournal{}
	rep, err := newDriver(storage, nil, journal, 2).Run(context.Background(), core.Batch{Kind: core.BatchRun, ID: run}, siteA, siteB)
	require.NoError(t, err)

	require.Len(t, rep.Results, 3)
	require.Equal(t, run+"_000.root", rep.Results[0].File)
	require.Equal(t, map[core.TransferOutcome]int{
		core.OutcomeCopied:              1,
		core.OutcomeSkippedIdentical:    1,
		core.OutcomeDestinationMismatch: 1,
	}, rep.Counts())
	require.Equal(t, 1, rep.Failed())
	require.False(t, rep.OK())
	require.Contains(t, rep.Summary(), "3 files in ")
	require.Contains(t, rep.Summary(), "skipped-identical=1 copied-ok=1 destination-mismatch=1")

	require.Len(t, journal.records, 1)
	rec := journal.records[0]
	require.Equal(t, rep.ID, rec.ID)
	require.Equal(t, run, rec.BatchID)
	require.Equal(t, 1, rec.Counts["copied-ok"])
	require.Len(t, rec.Results, 3)
	require.Empty(t, rec.Aborted)
}

func TestRunBatchAbortsOnListing(t *testing.T) {
	storage := mock.NewStorage()
	journal := &memJournal{}

	rep, err := newDriver(storage, nil, journal, 2).Run(context.Background(), core.Batch{Kind: core.BatchRun, ID: run}, siteA, siteB)
	require.ErrorIs(t, err, core.ErrPathNotFound)
	require.Empty(t, rep.Results)
	require.Empty(t, storage.Copies())

	require.Len(t, journal.records, 1)
	require.NotEmpty(t, journal.records[0].Aborted)

	_, err = newDriver(storage, nil, nil, 2).Run(context.Background(), core.Batch{Kind: core.BatchRun, ID: "run_x"}, siteA, siteB)
	require.ErrorIs(t, err, core.ErrNamingConvention)
}

func TestProductionBatch(t *testing.T) {
	storage := mock.NewStorage()
	catalog := mock.NewCatalog()
	catalog.Add("reco_01", mock.Production{
		StorageDir: "/mc/reco_01",
		Files: core.Listing{
			"a.root": {Size: 1, Checksum: "00000001"},
			"b.root": {Size: 2, Checksum: "00000002"},
			"c.root": {Size: 3, Checksum: "00000003"},
		},
	})
	catalog.Add("reco_02", mock.Production{StorageDir: "/mc/reco_02", Files: core.Listing{"z.root": {Size: 1}}})

	storage.Put(siteA, "/mc/reco_01/a.root", core.FileAttributes{Size: 1, Checksum: "00000001"})
	storage.Put(siteA, "/mc/reco_01/b.root", core.FileAttributes{Size: 2, Checksum: "00000002"})
	storage.Put(siteA, "/mc/reco_01/extra.root", core.FileAttributes{Size: 9, Checksum: "00000009"})
	storage.Put(siteA, "/mc/reco_02/other.root", core.FileAttributes{Size: 9, Checksum: "00000009"})

	d := newDriver(storage, catalog, nil, 4)

	rep, err := d.Run(context.Background(), core.Batch{Kind: core.BatchProduction, ID: "reco_01"}, siteA, siteB)
	require.NoError(t, err)
	require.True(t, rep.OK())
	require.Equal(t, map[core.TransferOutcome]int{core.OutcomeCopied: 2}, rep.Counts())
	require.Equal(t, []string{"/mc/reco_01/a.root", "/mc/reco_01/b.root"}, storage.Paths(siteB))

	_, err = d.Run(context.Background(), core.Batch{Kind: core.BatchProduction, ID: "reco_02"}, siteA, siteB)
	require.ErrorIs(t, err, core.ErrMissingSource)

	_, err = d.Run(context.Background(), core.Batch{Kind: core.BatchProduction, ID: "unknown"}, siteA, siteB)
	require.ErrorIs(t, err, core.ErrProductionNotFound)

	_, err = newDriver(storage, nil, nil, 1).Run(context.Background(), core.Batch{Kind: core.BatchProduction, ID: "reco_01"}, siteA, siteB)
	require.Error(t, err)
}

type slowTransfer struct {
	running atomic.Int64
	max     atomic.Int64
	calls   atomic.Int64
}

func (s *slowTransfer) Transfer(_ context.Context, obj core.Object, src, dst core.Site) core.TransferResult {
	s.calls.Add(1)
	n := s.running.Add(1)
	defer s.running.Add(-1)

	for {
		m := s.max.Load()
		if n <= m || s.max.CompareAndSwap(m, n) {
			break
		}
	}

	time.Sleep(5 * time.Millisecond)
	return core.TransferResult{File: obj.Name(), Src: src.Label(), Dst: dst.Label(), Outcome: core.OutcomeCopied}
}

func TestBoundedParallelism(t *testing.T) {
	storage := mock.NewStorage()
	for i := 0; i < 12; i++ {
		storage.Put(siteA, runDir+"/"+run+"_"+string(rune('a'+i))+".root", core.FileAttributes{Size: 1})
	}

	st := &slowTransfer{}
	rep, err := batch.NewDriver(storage, st, nil, nil, 3).Run(context.Background(), core.Batch{Kind: core.BatchRun, ID: run}, siteA, siteB)
	require.NoError(t, err)
	require.Len(t, rep.Results, 12)
	require.LessOrEqual(t, st.max.Load(), int64(3))
	require.Equal(t, int64(12), st.calls.Load())
}

func TestCancelledBatch(t *testing.T) {
	storage := mock.NewStorage()
	storage.Put(siteA, runDir+"/"+run+"_000.root", core.FileAttributes{Size: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := &slowTransfer{}
	_, err := batch.NewDriver(storage, st, nil, nil, 3).Run(ctx, core.Batch{Kind: core.BatchRun, ID: run}, siteA, siteB)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, int64(0), st.calls.Load())
}

func TestWithJobs(t *testing.T) {
	storage := mock.NewStorage()
	for i := 0; i < 8; i++ {
		storage.Put(siteA, runDir+"/"+run+"_"+string(rune('a'+i))+".root", core.FileAttributes{Size: 1})
	}

	st := &slowTransfer{}
	base := batch.NewDriver(storage, st, nil, nil, 6)
	require.Same(t, base, base.WithJobs(0))

	rep, err := base.WithJobs(1).Run(context.Background(), core.Batch{Kind: core.BatchRun, ID: run}, siteA, siteB)
	require.NoError(t, err)
	require.Len(t, rep.Results, 8)
	require.Equal(t, int64(1), st.max.Load())
}
