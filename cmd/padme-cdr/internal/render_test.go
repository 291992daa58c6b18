package internal_test

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/padme-experiment/padme-cdr/cmd/padme-cdr/internal"
	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/modules"
	"github.com/padme-experiment/padme-cdr/modules/impl/batch"
	"github.com/padme-experiment/padme-cdr/modules/impl/verify"
)

const run = "run_7_20240101_120000"

func init() {
	color.NoColor = true
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{nil, internal.ExitOK},
		{internal.ShowHelp(nil, errors.New("bad flag")), internal.ExitInput},
		{core.InputError("no qualifier"), internal.ExitInput},
		{fmt.Errorf("lookup: %w", core.ErrSiteNotFound), internal.ExitInput},
		{fmt.Errorf("%w: run", core.ErrNamingConvention), internal.ExitInput},
		{fmt.Errorf("%q: %w", "prod", core.ErrProductionNotFound), internal.ExitInput},
		{internal.ErrOperationFailed, internal.ExitFailed},
		{fmt.Errorf("delete: %w", core.ErrGaveUp), internal.ExitFailed},
		{core.ErrCredential, internal.ExitFailed},
	}

	for _, c := range cases {
		require.Equal(t, c.code, internal.ExitCode(c.err), "%v", c.err)
	}
}

func verifyResult(a, b core.Listing, withChecksum bool) *verify.Result {
	return &verify.Result{
		Subject: run,
		A:       "LNF",
		B:       "CNAF",
		Delta:   verify.Diff(a, b, withChecksum),
	}
}

func TestRenderVerifyMatch(t *testing.T) {
	listing := core.Listing{
		run + "_000.root": {Size: 2048, Checksum: "0000beef"},
		run + "_001.root": {Size: 1024, Checksum: "0000cafe"},
	}

	var buf bytes.Buffer
	internal.RenderVerify(&buf, "Run", verifyResult(listing, listing, true), 0)
	require.Equal(t, "=== Run "+run+" matches between LNF and CNAF ===\n", buf.String())

	buf.Reset()
	internal.RenderVerify(&buf, "Run", verifyResult(listing, listing, true), 2)
	out := buf.String()
	require.Contains(t, out, "at LNF           run "+run+" contains 2 files (3KiB)")
	require.Contains(t, out, run+"_000.root - OK - size       2048 checksum 0000beef")
	require.Contains(t, out, "matches between LNF and CNAF")
}

func TestRenderVerifyMismatch(t *testing.T) {
	a := core.Listing{
		run + "_000.root": {Size: 10, Checksum: "00000001"},
		run + "_001.root": {Size: 10, Checksum: "00000002"},
		run + "_002.root": {Size: 10},
		run + "_003.root": {Size: 10},
	}
	b := core.Listing{
		run + "_000.root": {Size: 10, Checksum: "00000001"},
		run + "_001.root": {Size: 10, Checksum: "000000ff"},
		run + "_002.root": {Size: 10, Checksum: "00000003"},
		run + "_003.root": {Size: 12},
		run + "_004.root": {Size: 10},
	}

	res := verifyResult(a, b, true)
	res.Delta.AddNote("KLOE does not support checksum verification: checksum switched off")

	var buf bytes.Buffer
	internal.RenderVerify(&buf, "Run", res, 1)
	out := buf.String()

	require.Contains(t, out, "WARNING - KLOE does not support checksum verification")
	require.Contains(t, out, run+"_001.root - checksums are different: 00000002 at LNF vs. 000000ff at CNAF")
	require.Contains(t, out, run+"_002.root - unable to get checksum at LNF")
	require.Contains(t, out, run+"_003.root - file sizes are different: 10 at LNF vs. 12 at CNAF")
	require.Contains(t, out, run+"_004.root - not at LNF")
	require.NotContains(t, out, run+"_000.root")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Equal(t,
		"=== WARNING: Run "+run+" DOES NOT MATCH between LNF and CNAF - LNF: 1 missing - 1 wrong size - LNF: 1 no checksum - 1 wrong checksum ===",
		lines[len(lines)-1],
	)
}

func TestRenderVerifyMissing(t *testing.T) {
	cases := []struct {
		atA, atB bool
		where    string
	}{
		{true, false, "LNF"},
		{false, true, "CNAF"},
		{true, true, "LNF and CNAF"},
	}

	for _, c := range cases {
		res := &verify.Result{Subject: run, A: "LNF", B: "CNAF", MissingAtA: c.atA, MissingAtB: c.atB}

		var buf bytes.Buffer
		internal.RenderVerify(&buf, "Run", res, 2)
		require.Equal(t, "=== WARNING: Run "+run+" is missing at "+c.where+" ===\n", buf.String())
	}
}

func TestRenderReport(t *testing.T) {
	rep := &batch.Report{
		Batch:   core.Batch{Kind: core.BatchRun, ID: run},
		Src:     "CNAF",
		Dst:     "LNF",
		Elapsed: 3 * time.Second,
		Results: []core.TransferResult{
			{File: run + "_000.root", Src: "CNAF", Dst: "LNF", Outcome: core.OutcomeCopied, Proof: core.ProofChecksum},
			{File: run + "_001.root", Src: "CNAF", Dst: "LNF", Outcome: core.OutcomeSkippedIdentical, Proof: core.ProofSizeOnly},
		},
	}

	var buf bytes.Buffer
	internal.RenderReport(&buf, rep, 0)
	require.Equal(t, "=== Run "+run+" copied from CNAF to LNF - "+rep.Summary()+" ===\n", buf.String())

	rep.Results = append(rep.Results, core.TransferResult{
		File:    run + "_002.root",
		Src:     "CNAF",
		Dst:     "LNF",
		Outcome: core.OutcomeCopyFailed,
		Err:     fmt.Errorf("%w: exit status 1", core.ErrTransportFailure),
	})

	buf.Reset()
	internal.RenderReport(&buf, rep, 0)
	out := buf.String()
	require.NotContains(t, out, run+"_000.root")
	require.Contains(t, out, run+"_002.root - CNAF -> LNF - copy-failed\n")
	require.Contains(t, out, "    transport failure: exit status 1\n")
	require.Contains(t, out, "=== WARNING: Run "+run+" NOT COMPLETE from CNAF to LNF - 1 failed - ")

	buf.Reset()
	internal.RenderReport(&buf, rep, 1)
	require.Contains(t, buf.String(), run+"_000.root - CNAF -> LNF - copied-ok (checksum)")
}

func TestRenderSites(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, internal.RenderSites(&buf, modules.DefaultSites()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, len(modules.DefaultSites())+1)
	require.True(t, strings.HasPrefix(lines[0], "NAME"))

	var daq string
	for _, l := range lines {
		if strings.HasPrefix(l, "DAQ ") {
			daq = l
		}
	}
	require.Contains(t, daq, "l1padme3,l1padme4")
	require.Contains(t, daq, "shell-disk")
}

func TestRenderJournal(t *testing.T) {
	started := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := core.BatchRecord{
		ID:      "b1",
		Kind:    core.BatchRun,
		BatchID: run,
		Src:     "CNAF",
		Dst:     "LNF",
		Started: started,
		Elapsed: 90 * time.Second,
		Results: []core.ResultRecord{
			{File: run + "_000.root", Outcome: core.OutcomeCopied, Proof: "checksum"},
			{File: run + "_001.root", Outcome: core.OutcomeMissingSource, Proof: "none", Error: "file missing at source"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, internal.RenderJournal(&buf, []core.BatchRecord{rec}))
	require.Contains(t, buf.String(), "2024-01-02 03:04:05")
	require.Regexp(t, `b1\s+run `+run+`\s+CNAF\s+LNF\s+2024-01-02 03:04:05\s+1 minute 30 seconds\s+2\s+1`, buf.String())

	buf.Reset()
	require.NoError(t, internal.RenderRecord(&buf, rec))
	require.Contains(t, buf.String(), "missing-source")
	require.Contains(t, buf.String(), "file missing at source")
}
