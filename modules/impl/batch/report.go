package batch

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hako/durafmt"

	"github.com/padme-experiment/padme-cdr/core"
)

// Report aggregates the per-file results of one batch.
type Report struct {
	ID      string
	Batch   core.Batch
	Src     string
	Dst     string
	Started time.Time
	Elapsed time.Duration
	Results []core.TransferResult
}

func (r *Report) Counts() map[core.TransferOutcome]int {
	counts := map[core.TransferOutcome]int{}
	for _, res := range r.Results {
		counts[res.Outcome]++
	}

	return counts
}

// Failed returns the number of files that did not end up verified at the destination.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.Outcome.Success() {
			n++
		}
	}

	return n
}

func (r *Report) OK() bool {
	return r.Failed() == 0
}

// Summary renders the per-outcome counts, e.g. "12 files in 3 minutes 2 seconds: copied-ok=10 skipped-identical=2".
func (r *Report) Summary() string {
	counts := r.Counts()
	parts := make([]string, 0, len(counts))
	for _, o := range core.AllOutcomes {
		if n := counts[o]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", o, n))
		}
	}

	return fmt.Sprintf("%d files in %s: %s", len(r.Results), durafmt.Parse(r.Elapsed).LimitFirstN(2), strings.Join(parts, " "))
}

// Record converts the report into its journal entry.
func (r *Report) Record(aborted error) core.BatchRecord {
	rec := core.BatchRecord{
		ID:      r.ID,
		Kind:    r.Batch.Kind,
		BatchID: r.Batch.ID,
		Src:     r.Src,
		Dst:     r.Dst,
		Started: r.Started,
		Elapsed: r.Elapsed,
		Counts:  map[string]int{},
		Results: make([]core.ResultRecord, 0, len(r.Results)),
	}

	for o, n := range r.Counts() {
		rec.Counts[o.String()] = n
	}

	for _, res := range r.Results {
		rec.Results = append(rec.Results, core.NewResultRecord(res))
	}

	if aborted != nil {
		rec.Aborted = aborted.Error()
	}

	return rec
}

func sortResults(results []core.TransferResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].File < results[j].File
	})
}
