package transfer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/modules"
	"github.com/padme-experiment/padme-cdr/modules/impl/mock"
	"github.com/padme-experiment/padme-cdr/modules/impl/transfer"
	"github.com/padme-experiment/padme-cdr/modules/sites"
)

const (
	fileName = "run_7_20240101_120000_000.root"
	filePath = "/daq/2024/rawdata/run_7_20240101_120000/" + fileName
	kloePath = "/pdm/padme/daq/2024/rawdata/run_7_20240101_120000/" + fileName
)

var (
	siteA = core.Site{Name: "LNF", Kind: core.GridStorage, Endpoint: "srm://a", RawLayout: modules.GridRawLayout, Caps: core.Capabilities{Checksum: true}}
	siteB = core.Site{Name: "CNAF", Kind: core.GridStorage, Endpoint: "srm://b", RawLayout: modules.GridRawLayout, Caps: core.Capabilities{Checksum: true}}
	kloe  = core.Site{Name: "KLOE", Kind: core.RemoteShellTape, Endpoint: "fibm15", RawLayout: modules.KLOERawLayout}

	source = core.FileAttributes{Size: 1000, Checksum: "deadbeef"}
)

func rawFile(name string) core.Object {
	return sites.RawFile{File: name, Resolver: sites.NewResolver()}
}

func setup(rule core.MatchRule) (*mock.Storage, *mock.Credentials, *transfer.Orchestrator) {
	storage := mock.NewStorage()
	creds := &mock.Credentials{}
	return storage, creds, transfer.New(storage, storage, creds, rule)
}

func TestCopiedOK(t *testing.T) {
	storage, creds, orch := setup(core.DefaultMatchRule())
	storage.Put(siteA, filePath, source)

	res := orch.Transfer(context.Background(), rawFile(fileName), siteA, siteB)
	require.NoError(t, res.Err)
	require.Equal(t, core.OutcomeCopied, res.Outcome)
	require.Equal(t, core.ProofChecksum, res.Proof)
	require.Equal(t, "LNF", res.Src)
	require.Equal(t, "CNAF", res.Dst)

	attrs, ok := storage.Get(siteB, filePath)
	require.True(t, ok)
	require.Equal(t, source, attrs)
	require.Equal(t, 1, creds.Calls())
}

func TestSkippedIdenticalIsIdempotent(t *testing.T) {
	storage, _, orch := setup(core.DefaultMatchRule())
	storage.Put(siteA, filePath, source)

	first := orch.Transfer(context.Background(), rawFile(fileName), siteA, siteB)
	require.Equal(t, core.OutcomeCopied, first.Outcome)

	for i := 0; i < 3; i++ {
		res := orch.Transfer(context.Background(), rawFile(fileName), siteA, siteB)
		require.Equal(t, core.OutcomeSkippedIdentical, res.Outcome)
		require.NoError(t, res.Err)
	}

	require.Len(t, storage.Copies(), 1, "no copy after the first one")
}

func TestSkippedWithoutCopy(t *testing.T) {
	storage, _, orch := setup(core.DefaultMatchRule())
	storage.Put(siteA, filePath, source)
	storage.Put(siteB, filePath, source)

	res := orch.Transfer(context.Background(), rawFile(fileName), siteA, siteB)
	require.Equal(t, core.OutcomeSkippedIdentical, res.Outcome)
	require.Equal(t, core.ProofChecksum, res.Proof)
	require.Empty(t, storage.Copies())
}

func TestDestinationMismatchLeftUntouched(t *testing.T) {
	storage, _, orch := setup(core.DefaultMatchRule())
	corrupted := core.FileAttributes{Size: 900, Checksum: "deadbeef"}
	storage.Put(siteA, filePath, source)
	storage.Put(siteB, filePath, corrupted)

	res := orch.Transfer(context.Background(), rawFile(fileName), siteA, siteB)
	require.Equal(t, core.OutcomeDestinationMismatch, res.Outcome)

	var mismatch *core.MismatchError
	require.True(t, errors.As(res.Err, &mismatch))
	require.Equal(t, core.VerdictSizeMismatch, mismatch.Verdict)
	require.Equal(t, source, mismatch.Expected)
	require.Equal(t, corrupted, mismatch.Observed)

	attrs, ok := storage.Get(siteB, filePath)
	require.True(t, ok)
	require.Equal(t, corrupted, attrs)
	require.Empty(t, storage.Copies())
	require.Empty(t, storage.Removes())
}

func TestFailuresLeaveNoDestination(t *testing.T) {
	t.Run("copy failure", func(t *testing.T) {
		storage, _, orch := setup(core.DefaultMatchRule())
		storage.Put(siteA, filePath, source)
		storage.FailCopy(fileName, errors.New("connection reset"))

		res := orch.Transfer(context.Background(), rawFile(fileName), siteA, siteB)
		require.Equal(t, core.OutcomeCopyFailed, res.Outcome)
		require.ErrorIs(t, res.Err, core.ErrTransportFailure)

		_, ok := storage.Get(siteB, filePath)
		require.False(t, ok)
	})

	t.Run("corrupted copy", func(t *testing.T) {
		storage, _, orch := setup(core.DefaultMatchRule())
		storage.Put(siteA, filePath, source)
		storage.Corrupt(fileName)

		res := orch.Transfer(context.Background(), rawFile(fileName), siteA, siteB)
		require.Equal(t, core.OutcomeVerifyMismatch, res.Outcome)
		require.ErrorIs(t, res.Err, core.ErrVerifyMismatch)

		_, ok := storage.Get(siteB, filePath)
		require.False(t, ok)
		require.Equal(t, []string{filePath}, storage.Removes())
	})
}

func TestMissingChecksumKeepsCopy(t *testing.T) {
	storage, _, orch := setup(core.DefaultMatchRule())
	storage.Put(siteA, filePath, core.FileAttributes{Size: 1000})

	res := orch.Transfer(context.Background(), rawFile(fileName), siteA, siteB)
	require.NoError(t, res.Err)
	require.Equal(t, core.OutcomeCopied, res.Outcome)
	require.Equal(t, core.ProofSizeOnly, res.Proof)
	require.Empty(t, storage.Removes())

	_, ok := storage.Get(siteB, filePath)
	require.True(t, ok)

	for i := 0; i < 2; i++ {
		res = orch.Transfer(context.Background(), rawFile(fileName), siteA, siteB)
		require.NoError(t, res.Err)
		require.Equal(t, core.OutcomeSkippedIdentical, res.Outcome)
		require.Equal(t, core.ProofSizeOnly, res.Proof)
	}

	require.Len(t, storage.Copies(), 1)
	require.Empty(t, storage.Removes())
}

func TestSizeOnlyToTape(t *testing.T) {
	storage, creds, orch := setup(core.DefaultMatchRule())
	storage.Put(siteA, filePath, source)

	res := orch.Transfer(context.Background(), rawFile(fileName), siteA, kloe)
	require.Equal(t, core.OutcomeCopied, res.Outcome)
	require.Equal(t, core.ProofSizeOnly, res.Proof)
	require.Equal(t, 1, creds.Calls())

	_, ok := storage.Get(kloe, kloePath)
	require.True(t, ok)

	storage, _, orch = setup(core.MatchRule{AcceptSizeOnly: false})
	storage.Put(siteA, filePath, source)

	res = orch.Transfer(context.Background(), rawFile(fileName), siteA, kloe)
	require.Equal(t, core.OutcomeVerifyMismatch, res.Outcome)
	_, ok = storage.Get(kloe, kloePath)
	require.False(t, ok)
}

func TestEarlyOutcomes(t *testing.T) {
	storage, creds, orch := setup(core.DefaultMatchRule())

	res := orch.Transfer(context.Background(), rawFile(fileName), siteA, siteB)
	require.Equal(t, core.OutcomeMissingSource, res.Outcome)
	require.ErrorIs(t, res.Err, core.ErrMissingSource)

	res = orch.Transfer(context.Background(), rawFile(fileName), kloe, siteA)
	require.Equal(t, core.OutcomeUnsupportedRoute, res.Outcome)
	require.ErrorIs(t, res.Err, core.ErrUnsupportedRoute)

	res = orch.Transfer(context.Background(), rawFile("README.txt"), siteA, siteB)
	require.Equal(t, core.OutcomeNamingError, res.Outcome)
	require.ErrorIs(t, res.Err, core.ErrNamingConvention)

	creds.Err = core.ErrCredential
	storage.Put(siteA, filePath, source)
	res = orch.Transfer(context.Background(), rawFile(fileName), siteA, siteB)
	require.Equal(t, core.OutcomeCopyFailed, res.Outcome)
	require.ErrorIs(t, res.Err, core.ErrCredential)
	require.Empty(t, storage.Copies())
}

func TestProductionFile(t *testing.T) {
	storage, _, orch := setup(core.DefaultMatchRule())
	siteA := siteA
	siteA.ProdRoot = "/"
	kloe := kloe
	kloe.ProdRoot = "/pdm/padme"

	obj := sites.ProdFile{File: "reco_001.root", StorageDir: "/mc/reco", Resolver: sites.NewResolver()}
	storage.Put(siteA, "/mc/reco/reco_001.root", core.FileAttributes{Size: 10, Checksum: "00000001"})

	res := orch.Transfer(context.Background(), obj, siteA, kloe)
	require.Equal(t, core.OutcomeCopied, res.Outcome)

	_, ok := storage.Get(kloe, "/pdm/padme/mc/reco/reco_001.root")
	require.True(t, ok)
}
