package internal

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/fatih/color"
	"github.com/hako/durafmt"

	"github.com/padme-experiment/padme-cdr/core"
	"github.com/padme-experiment/padme-cdr/modules"
	"github.com/padme-experiment/padme-cdr/modules/impl/batch"
	"github.com/padme-experiment/padme-cdr/modules/impl/verify"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
)

func elapsed(d time.Duration) string {
	return durafmt.Parse(d.Round(time.Millisecond)).LimitFirstN(2).String()
}

func title(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}

// RenderTransfer prints the outcome of one file transfer.
func RenderTransfer(w io.Writer, res core.TransferResult) {
	line := fmt.Sprintf("%s - %s -> %s - %s", res.File, res.Src, res.Dst, res.Outcome)
	if res.Proof != core.ProofNone {
		line += fmt.Sprintf(" (%s)", res.Proof)
	}

	if res.Elapsed > 0 {
		line += " in " + elapsed(res.Elapsed)
	}

	switch {
	case res.Outcome.Success():
		okColor.Fprintln(w, line) // nolint:errcheck
	default:
		failColor.Fprintln(w, line) // nolint:errcheck
	}

	if res.Err != nil {
		fmt.Fprintf(w, "    %v\n", res.Err)
	}
}

// RenderReport prints the failed files of a batch, every file when verbose, and a closing summary.
func RenderReport(w io.Writer, rep *batch.Report, verbose int) {
	for _, res := range rep.Results {
		if res.Outcome.Success() && verbose == 0 {
			continue
		}

		RenderTransfer(w, res)
	}

	if rep.OK() {
		okColor.Fprintf(w, "=== %s %s copied from %s to %s - %s ===\n", title(rep.Batch.Kind.String()), rep.Batch.ID, rep.Src, rep.Dst, rep.Summary()) // nolint:errcheck
		return
	}

	failColor.Fprintf(w, "=== WARNING: %s %s NOT COMPLETE from %s to %s - %d failed - %s ===\n", title(rep.Batch.Kind.String()), rep.Batch.ID, rep.Src, rep.Dst, rep.Failed(), rep.Summary()) // nolint:errcheck
}

func entryLine(e core.DeltaEntry, a, b string) string {
	switch e.Category {
	case core.DeltaMissingAtA:
		return fmt.Sprintf("%s - not at %s", e.Name, a)
	case core.DeltaMissingAtB:
		return fmt.Sprintf("%s - not at %s", e.Name, b)
	case core.DeltaSizeMismatch:
		return fmt.Sprintf("%s - file sizes are different: %d at %s vs. %d at %s", e.Name, e.A.Size, a, e.B.Size, b)
	case core.DeltaChecksumMismatch:
		return fmt.Sprintf("%s - checksums are different: %s at %s vs. %s at %s", e.Name, e.A.Checksum, a, e.B.Checksum, b)
	case core.DeltaChecksumUnavailable:
		var where []string
		if !e.A.HasChecksum() {
			where = append(where, a)
		}
		if !e.B.HasChecksum() {
			where = append(where, b)
		}
		return fmt.Sprintf("%s - unable to get checksum at %s", e.Name, strings.Join(where, " and "))
	default:
		if e.A.HasChecksum() {
			return fmt.Sprintf("%s - OK - size %10d checksum %8s", e.Name, e.A.Size, e.A.Checksum)
		}
		return fmt.Sprintf("%s - OK - size %10d", e.Name, e.A.Size)
	}
}

func totalSize(entries []core.DeltaEntry, side func(core.DeltaEntry) (core.FileAttributes, bool)) (int, int64) {
	var (
		n    int
		size int64
	)
	for _, e := range entries {
		if fa, ok := side(e); ok {
			n++
			size += fa.Size
		}
	}

	return n, size
}

// RenderVerify prints a verification result. kind names the subject, e.g. "Run".
// Verbosity 1 adds the differing files, verbosity 2 every file.
func RenderVerify(w io.Writer, kind string, res *verify.Result, verbose int) {
	if res.MissingAtA || res.MissingAtB {
		var where []string
		if res.MissingAtA {
			where = append(where, res.A)
		}
		if res.MissingAtB {
			where = append(where, res.B)
		}

		failColor.Fprintf(w, "=== WARNING: %s %s is missing at %s ===\n", kind, res.Subject, strings.Join(where, " and ")) // nolint:errcheck
		return
	}

	for _, note := range res.Delta.Notes {
		warnColor.Fprintf(w, "WARNING - %s\n", note) // nolint:errcheck
	}

	if verbose > 0 {
		for _, side := range []struct {
			label string
			get   func(core.DeltaEntry) (core.FileAttributes, bool)
		}{
			{res.A, func(e core.DeltaEntry) (core.FileAttributes, bool) { return e.A, e.InA }},
			{res.B, func(e core.DeltaEntry) (core.FileAttributes, bool) { return e.B, e.InB }},
		} {
			n, size := totalSize(res.Delta.Entries, side.get)
			fmt.Fprintf(w, "at %-13s %s %s contains %d files (%s)\n", side.label, strings.ToLower(kind), res.Subject, n, units.BytesSize(float64(size)))
		}

		for _, e := range res.Delta.Entries {
			if e.Category == core.DeltaAgree && verbose < 2 {
				continue
			}
			fmt.Fprintln(w, entryLine(e, res.A, res.B))
		}
	}

	if res.Consistent() {
		okColor.Fprintf(w, "=== %s %s matches between %s and %s ===\n", kind, res.Subject, res.A, res.B) // nolint:errcheck
		return
	}

	failColor.Fprintf(w, "=== WARNING: %s %s DOES NOT MATCH between %s and %s%s ===\n", kind, res.Subject, res.A, res.B, mismatchReport(res)) // nolint:errcheck
}

func mismatchReport(res *verify.Result) string {
	var (
		b              strings.Builder
		noSumA, noSumB int
		counts         = res.Delta.Counts()
	)

	for _, e := range res.Delta.Entries {
		if e.Category != core.DeltaChecksumUnavailable {
			continue
		}
		if !e.A.HasChecksum() {
			noSumA++
		}
		if !e.B.HasChecksum() {
			noSumB++
		}
	}

	if n := counts[core.DeltaMissingAtA]; n > 0 {
		fmt.Fprintf(&b, " - %s: %d missing", res.A, n)
	}
	if n := counts[core.DeltaMissingAtB]; n > 0 {
		fmt.Fprintf(&b, " - %s: %d missing", res.B, n)
	}
	if n := counts[core.DeltaSizeMismatch]; n > 0 {
		fmt.Fprintf(&b, " - %d wrong size", n)
	}
	if noSumA > 0 {
		fmt.Fprintf(&b, " - %s: %d no checksum", res.A, noSumA)
	}
	if noSumB > 0 {
		fmt.Fprintf(&b, " - %s: %d no checksum", res.B, noSumB)
	}
	if n := counts[core.DeltaChecksumMismatch]; n > 0 {
		fmt.Fprintf(&b, " - %d wrong checksum", n)
	}

	return b.String()
}

// RenderSites prints the configured sites as a table.
func RenderSites(w io.Writer, cfgs []modules.SiteConfig) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tENDPOINT\tHOSTS\tCHECKSUM")
	for _, sc := range cfgs {
		endpoint := sc.Endpoint
		if endpoint == "" {
			endpoint = "-"
		}

		hosts := "-"
		if len(sc.Hosts) > 0 {
			hosts = strings.Join(sc.Hosts, ",")
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", sc.Name, sc.Kind, endpoint, hosts, sc.Checksum)
	}

	return tw.Flush()
}

// RenderJournal prints one line per journaled batch.
func RenderJournal(w io.Writer, recs []core.BatchRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBATCH\tSRC\tDST\tSTARTED\tELAPSED\tFILES\tFAILED")
	for _, rec := range recs {
		failed := 0
		for _, r := range rec.Results {
			if !r.Outcome.Success() {
				failed++
			}
		}

		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			rec.ID, rec.Kind, rec.BatchID, rec.Src, rec.Dst,
			rec.Started.UTC().Format("2006-01-02 15:04:05"), elapsed(rec.Elapsed),
			len(rec.Results), failed,
		)
	}

	return tw.Flush()
}

// RenderRecord prints every file of a journaled batch.
func RenderRecord(w io.Writer, rec core.BatchRecord) error {
	fmt.Fprintf(w, "%s %s %s -> %s started %s, took %s\n", rec.Kind, rec.BatchID, rec.Src, rec.Dst, rec.Started.UTC().Format(time.RFC3339), elapsed(rec.Elapsed))
	if rec.Aborted != "" {
		failColor.Fprintf(w, "aborted: %s\n", rec.Aborted) // nolint:errcheck
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tOUTCOME\tPROOF\tSRC\tDST\tERROR")
	for _, r := range rec.Results {
		errStr := r.Error
		if errStr == "" {
			errStr = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.File, r.Outcome, r.Proof, r.SrcAttrs, r.DstAttrs, errStr)
	}

	return tw.Flush()
}
