package core_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/padme-experiment/padme-cdr/core"
)

func TestMatchRuleCompare(t *testing.T) {
	capable := core.Capabilities{Checksum: true}
	incapable := core.Capabilities{}
	rule := core.DefaultMatchRule()

	cases := []struct {
		name    string
		a, b    core.FileAttributes
		aCaps   core.Capabilities
		bCaps   core.Capabilities
		verdict core.Verdict
		proof   core.Proof
	}{
		{
			name: "checksum match", a: core.FileAttributes{Size: 1000, Checksum: "deadbeef"}, b: core.FileAttributes{Size: 1000, Checksum: "DEADBEEF"},
			aCaps: capable, bCaps: capable, verdict: core.VerdictMatch, proof: core.ProofChecksum,
		},
		{
			name: "size mismatch wins", a: core.FileAttributes{Size: 1000, Checksum: "deadbeef"}, b: core.FileAttributes{Size: 900, Checksum: "00000001"},
			aCaps: capable, bCaps: capable, verdict: core.VerdictSizeMismatch,
		},
		{
			name: "checksum mismatch", a: core.FileAttributes{Size: 1000, Checksum: "deadbeef"}, b: core.FileAttributes{Size: 1000, Checksum: "00000001"},
			aCaps: capable, bCaps: capable, verdict: core.VerdictChecksumMismatch,
		},
		{
			name: "one side incapable", a: core.FileAttributes{Size: 1000, Checksum: "deadbeef"}, b: core.FileAttributes{Size: 1000},
			aCaps: capable, bCaps: incapable, verdict: core.VerdictMatch, proof: core.ProofSizeOnly,
		},
		{
			name: "capable but missing", a: core.FileAttributes{Size: 1000, Checksum: "deadbeef"}, b: core.FileAttributes{Size: 1000},
			aCaps: capable, bCaps: capable, verdict: core.VerdictMatch, proof: core.ProofSizeOnly,
		},
		{
			name: "both capable both missing", a: core.FileAttributes{Size: 1000}, b: core.FileAttributes{Size: 1000},
			aCaps: capable, bCaps: capable, verdict: core.VerdictMatch, proof: core.ProofSizeOnly,
		},
		{
			name: "incapable side still reports a different checksum", a: core.FileAttributes{Size: 10, Checksum: "0000000a"}, b: core.FileAttributes{Size: 10, Checksum: "0000000b"},
			aCaps: capable, bCaps: incapable, verdict: core.VerdictChecksumMismatch,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cmp := rule.Compare(c.a, c.aCaps, c.b, c.bCaps)
			require.Equal(t, c.verdict, cmp.Verdict)
			if c.verdict == core.VerdictMatch {
				require.Equal(t, c.proof, cmp.Proof)
			}
		})
	}

	t.Run("size only relaxation disabled", func(t *testing.T) {
		strictRule := core.MatchRule{AcceptSizeOnly: false}
		cmp := strictRule.Compare(core.FileAttributes{Size: 5}, capable, core.FileAttributes{Size: 5}, incapable)
		require.False(t, cmp.Match())
	})
}

func TestNormalizeChecksum(t *testing.T) {
	require.Equal(t, "0000abcd", core.NormalizeChecksum("ABCD"))
	require.Equal(t, "deadbeef", core.NormalizeChecksum(" 0xDEADBEEF\n"))
	require.Equal(t, "", core.NormalizeChecksum("  "))
}

func TestSiteKindText(t *testing.T) {
	for _, k := range core.SiteKinds {
		text, err := k.MarshalText()
		require.NoError(t, err)

		var back core.SiteKind
		require.NoError(t, back.UnmarshalText(text))
		require.Equal(t, k, back)
	}

	var k core.SiteKind
	require.Error(t, k.UnmarshalText([]byte("ftp")))
}

func TestSiteLabel(t *testing.T) {
	daq := core.Site{Name: "DAQ", Endpoint: "l1padme3", Qualified: true}
	require.Equal(t, "DAQ(l1padme3)", daq.Label())

	lnf := core.Site{Name: "LNF", Endpoint: "srm://x"}
	require.Equal(t, "LNF", lnf.Label())
	require.False(t, daq.SameEndpoint(lnf))
	require.True(t, daq.SameEndpoint(core.Site{Name: "DAQ", Endpoint: "l1padme3"}))
}
