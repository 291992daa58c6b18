package core

import (
	"fmt"
	"strings"
)

// RawName is the parsed form of a raw data file name run_<id>_<YYYYMMDD>_<HHMMSS>[_<suffix>].
type RawName struct {
	File  string
	Run   string
	RunID string
	Year  string
}

// FileAttributes are the observable properties of one file at one site.
// An empty Checksum means the checksum is unavailable.
type FileAttributes struct {
	Size     int64
	Checksum string
}

func (fa FileAttributes) HasChecksum() bool {
	return fa.Checksum != ""
}

func (fa FileAttributes) String() string {
	if fa.Checksum == "" {
		return fmt.Sprintf("%d", fa.Size)
	}

	return fmt.Sprintf("%d %s", fa.Size, fa.Checksum)
}

// NormalizeChecksum brings Adler-32 values from the different tools to 8 lowercase hex digits.
func NormalizeChecksum(sum string) string {
	sum = strings.ToLower(strings.TrimSpace(sum))
	sum = strings.TrimPrefix(sum, "0x")
	if sum == "" {
		return ""
	}

	for len(sum) < 8 {
		sum = "0" + sum
	}

	return sum
}

type Proof int

const (
	ProofNone Proof = iota
	ProofSizeOnly
	ProofChecksum
)

func (p Proof) String() string {
	switch p {
	case ProofSizeOnly:
		return "size-only"
	case ProofChecksum:
		return "checksum"
	default:
		return "none"
	}
}

type Verdict int

const (
	VerdictMatch Verdict = iota
	VerdictSizeMismatch
	VerdictChecksumMismatch
	// VerdictChecksumMissing means the rule needed a checksum that a site could not deliver.
	VerdictChecksumMissing
)

func (v Verdict) String() string {
	switch v {
	case VerdictMatch:
		return "match"
	case VerdictSizeMismatch:
		return "size mismatch"
	case VerdictChecksumMismatch:
		return "checksum mismatch"
	case VerdictChecksumMissing:
		return "checksum missing"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// MatchRule holds the equality rule between two copies of the same file.
type MatchRule struct {
	// AcceptSizeOnly accepts equal sizes as a match when at least one of the two sites
	// cannot produce checksums. Without it such pairs never match.
	AcceptSizeOnly bool
}

func DefaultMatchRule() MatchRule {
	return MatchRule{AcceptSizeOnly: true}
}

type Comparison struct {
	Verdict Verdict
	Proof   Proof
}

func (c Comparison) Match() bool {
	return c.Verdict == VerdictMatch
}

// Compare applies the rule to the attributes observed at two sites.
// Sizes must always agree. Checksums are compared when both sites are checksum capable
// and both values are present. A capable site that fails to deliver its checksum
// degrades the match to ProofSizeOnly.
func (r MatchRule) Compare(a FileAttributes, aCaps Capabilities, b FileAttributes, bCaps Capabilities) Comparison {
	if a.Size != b.Size {
		return Comparison{Verdict: VerdictSizeMismatch}
	}

	bothCapable := aCaps.Checksum && bCaps.Checksum
	if bothCapable {
		if a.HasChecksum() && b.HasChecksum() {
			if NormalizeChecksum(a.Checksum) != NormalizeChecksum(b.Checksum) {
				return Comparison{Verdict: VerdictChecksumMismatch}
			}

			return Comparison{Verdict: VerdictMatch, Proof: ProofChecksum}
		}

		return Comparison{Verdict: VerdictMatch, Proof: ProofSizeOnly}
	}

	if !r.AcceptSizeOnly {
		return Comparison{Verdict: VerdictChecksumMissing}
	}

	// a checksum incapable site cannot prove more than the size
	if a.HasChecksum() && b.HasChecksum() && NormalizeChecksum(a.Checksum) != NormalizeChecksum(b.Checksum) {
		return Comparison{Verdict: VerdictChecksumMismatch}
	}

	return Comparison{Verdict: VerdictMatch, Proof: ProofSizeOnly}
}
