package core

import (
	"sort"
)

// Listing maps file names to the attributes observed at one site.
type Listing map[string]FileAttributes

func (l Listing) Names() []string {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

type DeltaCategory int

const (
	DeltaAgree DeltaCategory = iota + 1
	DeltaMissingAtA
	DeltaMissingAtB
	DeltaSizeMismatch
	DeltaChecksumMismatch
	DeltaChecksumUnavailable
)

var DeltaCategories = []DeltaCategory{
	DeltaAgree,
	DeltaMissingAtA,
	DeltaMissingAtB,
	DeltaSizeMismatch,
	DeltaChecksumMismatch,
	DeltaChecksumUnavailable,
}

func (c DeltaCategory) String() string {
	switch c {
	case DeltaAgree:
		return "agree"
	case DeltaMissingAtA:
		return "missing-at-a"
	case DeltaMissingAtB:
		return "missing-at-b"
	case DeltaSizeMismatch:
		return "size-mismatch"
	case DeltaChecksumMismatch:
		return "checksum-mismatch"
	case DeltaChecksumUnavailable:
		return "checksum-unavailable"
	default:
		return "unknown"
	}
}

// DeltaEntry records how one name was classified and what was observed on both sides.
type DeltaEntry struct {
	Name     string
	Category DeltaCategory
	A        FileAttributes
	B        FileAttributes
	InA      bool
	InB      bool
}

// ListingDelta partitions the union of the names of two listings.
type ListingDelta struct {
	Entries      []DeltaEntry
	WithChecksum bool
	Notes        []string
}

func (d *ListingDelta) Names(c DeltaCategory) []string {
	var names []string
	for _, e := range d.Entries {
		if e.Category == c {
			names = append(names, e.Name)
		}
	}

	return names
}

func (d *ListingDelta) Count(c DeltaCategory) int {
	n := 0
	for _, e := range d.Entries {
		if e.Category == c {
			n++
		}
	}

	return n
}

func (d *ListingDelta) Counts() map[DeltaCategory]int {
	counts := make(map[DeltaCategory]int, len(DeltaCategories))
	for _, e := range d.Entries {
		counts[e.Category]++
	}

	return counts
}

// Consistent is true when every name agrees on both sides.
func (d *ListingDelta) Consistent() bool {
	return d.Count(DeltaAgree) == len(d.Entries)
}

func (d *ListingDelta) AddNote(note string) {
	d.Notes = append(d.Notes, note)
}
