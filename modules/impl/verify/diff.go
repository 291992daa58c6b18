package verify

import (
	"sort"

	"github.com/samber/lo"

	"github.com/padme-experiment/padme-cdr/core"
)

// Diff partitions the union of the names of a and b. Every name lands in exactly one
// category; a size mismatch hides any checksum difference.
func Diff(a, b core.Listing, withChecksum bool) core.ListingDelta {
	names := lo.Uniq(append(lo.Keys(a), lo.Keys(b)...))
	sort.Strings(names)

	delta := core.ListingDelta{
		Entries:      make([]core.DeltaEntry, 0, len(names)),
		WithChecksum: withChecksum,
	}

	for _, name := range names {
		attrA, inA := a[name]
		attrB, inB := b[name]
		entry := core.DeltaEntry{
			Name: name,
			A:    attrA,
			B:    attrB,
			InA:  inA,
			InB:  inB,
		}

		switch {
		case !inB:
			entry.Category = core.DeltaMissingAtB
		case !inA:
			entry.Category = core.DeltaMissingAtA
		case attrA.Size != attrB.Size:
			entry.Category = core.DeltaSizeMismatch
		case !withChecksum:
			entry.Category = core.DeltaAgree
		case !attrA.HasChecksum() || !attrB.HasChecksum():
			entry.Category = core.DeltaChecksumUnavailable
		case core.NormalizeChecksum(attrA.Checksum) != core.NormalizeChecksum(attrB.Checksum):
			entry.Category = core.DeltaChecksumMismatch
		default:
			entry.Category = core.DeltaAgree
		}

		delta.Entries = append(delta.Entries, entry)
	}

	return delta
}
