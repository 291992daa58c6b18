package verify_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/modules"
	"github.com/padme-experiment/padme-cdr/modules/impl/mock"
	"github.com/padme-experiment/padme-cdr/modules/impl/verify"
)

const (
	run     = "run_7_20240101_120000"
	gridDir = "/daq/2024/rawdata/" + run
	kloeDir = "/pdm/padme/daq/2024/rawdata/" + run
)

var (
	lnf  = core.Site{Name: "LNF", Kind: core.GridStorage, Endpoint: "srm://a", RawLayout: modules.GridRawLayout, ProdRoot: "/", Caps: core.Capabilities{Checksum: true}}
	cnaf = core.Site{Name: "CNAF", Kind: core.GridStorage, Endpoint: "srm://b", RawLayout: modules.GridRawLayout, ProdRoot: "/", Caps: core.Capabilities{Checksum: true}}
	kloe = core.Site{Name: "KLOE", Kind: core.RemoteShellTape, Endpoint: "fibm15", RawLayout: modules.KLOERawLayout, ProdRoot: "/pdm/padme"}
)

func TestDiffScenario(t *testing.T) {
	a := core.Listing{
		"f1": {Size: 100, Checksum: "c1"},
		"f2": {Size: 200, Checksum: "c2"},
	}
	b := core.Listing{
		"f1": {Size: 100, Checksum: "c1"},
		"f3": {Size: 50, Checksum: "c3"},
	}

	delta := verify.Diff(a, b, true)
	require.Equal(t, []string{"f1"}, delta.Names(core.DeltaAgree))
	require.Equal(t, []string{"f2"}, delta.Names(core.DeltaMissingAtB))
	require.Equal(t, []string{"f3"}, delta.Names(core.DeltaMissingAtA))
	require.False(t, delta.Consistent())
}

func TestDiffCategories(t *testing.T) {
	a := core.Listing{
		"same":      {Size: 10, Checksum: "0000abcd"},
		"case":      {Size: 10, Checksum: "0000ABCD"},
		"sizes":     {Size: 10, Checksum: "11111111"},
		"sums":      {Size: 10, Checksum: "11111111"},
		"no-sum":    {Size: 10},
		"only-in-a": {Size: 1},
	}
	b := core.Listing{
		"same":      {Size: 10, Checksum: "0000abcd"},
		"case":      {Size: 10, Checksum: "0000abcd"},
		"sizes":     {Size: 11, Checksum: "22222222"},
		"sums":      {Size: 10, Checksum: "22222222"},
		"no-sum":    {Size: 10, Checksum: "33333333"},
		"only-in-b": {Size: 1},
	}

	cases := []struct {
		withChecksum bool
		expected     map[core.DeltaCategory][]string
	}{
		{
			withChecksum: true,
			expected: map[core.DeltaCategory][]string{
				core.DeltaAgree:               {"case", "same"},
				core.DeltaSizeMismatch:        {"sizes"},
				core.DeltaChecksumMismatch:    {"sums"},
				core.DeltaChecksumUnavailable: {"no-sum"},
				core.DeltaMissingAtB:          {"only-in-a"},
				core.DeltaMissingAtA:          {"only-in-b"},
			},
		},
		{
			withChecksum: false,
			expected: map[core.DeltaCategory][]string{
				core.DeltaAgree:        {"case", "no-sum", "same", "sums"},
				core.DeltaSizeMismatch: {"sizes"},
				core.DeltaMissingAtB:   {"only-in-a"},
				core.DeltaMissingAtA:   {"only-in-b"},
			},
		},
	}

	for _, c := range cases {
		delta := verify.Diff(a, b, c.withChecksum)
		require.Equal(t, c.withChecksum, delta.WithChecksum)
		for _, cat := range core.DeltaCategories {
			require.Equal(t, c.expected[cat], delta.Names(cat), "checksum=%v %s", c.withChecksum, cat)
		}
	}
}

func TestDiffCompleteness(t *testing.T) {
	a := core.Listing{"x": {Size: 1}, "y": {Size: 2}, "z": {Size: 3}}
	b := core.Listing{"y": {Size: 2}, "z": {Size: 4}, "w": {Size: 5}}

	delta := verify.Diff(a, b, false)

	seen := map[string]int{}
	for _, e := range delta.Entries {
		seen[e.Name]++
	}

	require.Equal(t, map[string]int{"w": 1, "x": 1, "y": 1, "z": 1}, seen)

	total := 0
	for _, n := range delta.Counts() {
		total += n
	}
	require.Equal(t, 4, total)

	empty := verify.Diff(core.Listing{}, core.Listing{}, true)
	require.Empty(t, empty.Entries)
	require.True(t, empty.Consistent())
}

func TestRunWithChecksum(t *testing.T) {
	storage := mock.NewStorage()
	storage.Put(lnf, gridDir+"/f1.root", core.FileAttributes{Size: 100, Checksum: "c1"})
	storage.Put(lnf, gridDir+"/f2.root", core.FileAttributes{Size: 200, Checksum: "c2"})
	storage.Put(lnf, gridDir+"/f4.root", core.FileAttributes{Size: 400, Checksum: "c4"})
	storage.Put(cnaf, gridDir+"/f1.root", core.FileAttributes{Size: 100, Checksum: "c1"})
	storage.Put(cnaf, gridDir+"/f2.root", core.FileAttributes{Size: 200, Checksum: "cx"})
	storage.Put(cnaf, gridDir+"/f4.root", core.FileAttributes{Size: 400})

	v := verify.New(storage, nil, 4)
	res, err := v.Run(context.Background(), run, "", lnf, cnaf, true)
	require.NoError(t, err)
	require.False(t, res.MissingAtA)
	require.False(t, res.MissingAtB)
	require.Equal(t, run, res.Subject)
	require.Equal(t, "LNF", res.A)
	require.Equal(t, "CNAF", res.B)

	require.True(t, res.Delta.WithChecksum)
	require.Empty(t, res.Delta.Notes)
	require.Equal(t, []string{"f1.root"}, res.Delta.Names(core.DeltaAgree))
	require.Equal(t, []string{"f2.root"}, res.Delta.Names(core.DeltaChecksumMismatch))
	require.Equal(t, []string{"f4.root"}, res.Delta.Names(core.DeltaChecksumUnavailable))
	require.False(t, res.Consistent())
}

func TestRunWithoutChecksum(t *testing.T) {
	storage := mock.NewStorage()
	storage.Put(lnf, gridDir+"/f1.root", core.FileAttributes{Size: 100, Checksum: "c1"})
	storage.Put(cnaf, gridDir+"/f1.root", core.FileAttributes{Size: 100, Checksum: "c9"})

	v := verify.New(storage, nil, 1)
	res, err := v.Run(context.Background(), run, "", lnf, cnaf, false)
	require.NoError(t, err)
	require.False(t, res.Delta.WithChecksum)
	require.True(t, res.Consistent())
}

func TestRunChecksumSwitchedOff(t *testing.T) {
	storage := mock.NewStorage()
	storage.Put(lnf, gridDir+"/f1.root", core.FileAttributes{Size: 100, Checksum: "c1"})
	storage.Put(kloe, kloeDir+"/f1.root", core.FileAttributes{Size: 100})

	v := verify.New(storage, nil, 2)
	res, err := v.Run(context.Background(), run, "", lnf, kloe, true)
	require.NoError(t, err)
	require.False(t, res.Delta.WithChecksum)
	require.Len(t, res.Delta.Notes, 1)
	require.Contains(t, res.Delta.Notes[0], "KLOE")
	require.True(t, res.Consistent())
}

func TestRunMissing(t *testing.T) {
	storage := mock.NewStorage()
	storage.Put(lnf, gridDir+"/f1.root", core.FileAttributes{Size: 100})

	v := verify.New(storage, nil, 2)
	res, err := v.Run(context.Background(), run, "", lnf, cnaf, true)
	require.NoError(t, err)
	require.False(t, res.MissingAtA)
	require.True(t, res.MissingAtB)
	require.False(t, res.Consistent())
	require.Empty(t, res.Delta.Entries)
}

func TestRunYearOverride(t *testing.T) {
	storage := mock.NewStorage()
	storage.Put(lnf, "/daq/2023/rawdata/"+run+"/f1.root", core.FileAttributes{Size: 1})
	storage.Put(cnaf, "/daq/2023/rawdata/"+run+"/f1.root", core.FileAttributes{Size: 1})

	v := verify.New(storage, nil, 2)
	res, err := v.Run(context.Background(), run, "2023", lnf, cnaf, false)
	require.NoError(t, err)
	require.True(t, res.Consistent())
	require.Equal(t, []string{"f1.root"}, res.Delta.Names(core.DeltaAgree))
}

func TestRunListingError(t *testing.T) {
	storage := mock.NewStorage()
	storage.FailList(gridDir, core.ErrTransportFailure)

	v := verify.New(storage, nil, 2)
	_, err := v.Run(context.Background(), run, "", lnf, cnaf, false)
	require.ErrorIs(t, err, core.ErrTransportFailure)
}

func TestProduction(t *testing.T) {
	const prodDir = "/mc/prod_a"

	storage := mock.NewStorage()
	storage.Put(cnaf, prodDir+"/a.root", core.FileAttributes{Size: 10, Checksum: "0000000a"})
	storage.Put(cnaf, prodDir+"/b.root", core.FileAttributes{Size: 20, Checksum: "ffffffff"})
	storage.Put(cnaf, prodDir+"/extra.root", core.FileAttributes{Size: 5})

	catalog := mock.NewCatalog()
	catalog.Add("prod_a", mock.Production{
		StorageDir: prodDir,
		Files: core.Listing{
			"a.root": {Size: 10, Checksum: "0000000A"},
			"b.root": {Size: 20, Checksum: "0000000b"},
			"c.root": {Size: 30, Checksum: "0000000c"},
		},
	})

	v := verify.New(storage, catalog, 2)

	res, err := v.Production(context.Background(), "prod_a", cnaf, true)
	require.NoError(t, err)
	require.Equal(t, verify.CatalogLabel, res.A)
	require.Equal(t, "CNAF", res.B)
	require.Equal(t, []string{"a.root"}, res.Delta.Names(core.DeltaAgree))
	require.Equal(t, []string{"b.root"}, res.Delta.Names(core.DeltaChecksumMismatch))
	require.Equal(t, []string{"c.root"}, res.Delta.Names(core.DeltaMissingAtB))
	require.Equal(t, []string{"extra.root"}, res.Delta.Names(core.DeltaMissingAtA))

	_, err = v.Production(context.Background(), "prod_z", cnaf, false)
	require.ErrorIs(t, err, core.ErrProductionNotFound)

	res, err = v.Production(context.Background(), "prod_a", lnf, false)
	require.NoError(t, err)
	require.True(t, res.MissingAtB)

	_, err = verify.New(storage, nil, 1).Production(context.Background(), "prod_a", cnaf, false)
	require.Error(t, err)
}
