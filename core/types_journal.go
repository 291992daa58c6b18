package core

import (
	"context"
	"time"
)

// ResultRecord is the persisted form of a TransferResult.
type ResultRecord struct {
	File     string
	Outcome  TransferOutcome
	Proof    string
	SrcAttrs FileAttributes
	DstAttrs FileAttributes
	Error    string `json:",omitempty"`
	Elapsed  time.Duration
}

func NewResultRecord(res TransferResult) ResultRecord {
	rec := ResultRecord{
		File:     res.File,
		Outcome:  res.Outcome,
		Proof:    res.Proof.String(),
		SrcAttrs: res.SrcAttrs,
		DstAttrs: res.DstAttrs,
		Elapsed:  res.Elapsed,
	}

	if res.Err != nil {
		rec.Error = res.Err.Error()
	}

	return rec
}

// BatchRecord is the audit entry written once per batch.
type BatchRecord struct {
	ID      string
	Kind    BatchKind
	BatchID string
	Src     string
	Dst     string
	Started time.Time
	Elapsed time.Duration
	Counts  map[string]int
	Aborted string `json:",omitempty"`
	Results []ResultRecord
}

// Journal keeps an audit trail of batch outcomes. It is never read to take transfer decisions.
type Journal interface {
	Record(ctx context.Context, rec BatchRecord) error
	List(ctx context.Context) ([]BatchRecord, error)
	Get(ctx context.Context, id string) (BatchRecord, error)
}
