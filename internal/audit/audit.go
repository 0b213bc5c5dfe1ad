// Package audit records allocation runs: every committed greedy apply or
// optimizer rewrite produces a run record published to Kafka, and
// optimizer snapshots are archived to object storage. Both sinks are
// optional; the engine runs fine without infrastructure attached.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/southpark/southpark/internal/models"
)

// RunMode distinguishes the two solving strategies.
type RunMode string

const (
	RunGreedy RunMode = "greedy"
	RunExact  RunMode = "exact"
)

// RunRecord describes one completed allocation run.
type RunRecord struct {
	RunID    uuid.UUID `json:"runId"`
	Mode     RunMode   `json:"mode"`
	Actor    string    `json:"actor,omitempty"`
	EventIDs []int     `json:"eventIds"`
	Rows     int       `json:"rows"`
	Status   string    `json:"status"`
	TS       time.Time `json:"ts"`
}

// NewRunRecord stamps a fresh record for the given mode.
func NewRunRecord(mode RunMode) RunRecord {
	return RunRecord{
		RunID: uuid.New(),
		Mode:  mode,
		TS:    time.Now().UTC(),
	}
}

// Publisher emits run records to a stream.
type Publisher interface {
	PublishRun(ctx context.Context, run RunRecord) error
	Close() error
}

// Archiver stores a run's full row snapshot.
type Archiver interface {
	ArchiveRun(ctx context.Context, run RunRecord, rows []models.AllocationRecord) error
}

// NopPublisher drops records; used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishRun(ctx context.Context, run RunRecord) error { return nil }
func (NopPublisher) Close() error                                        { return nil }

// NopArchiver drops snapshots; used when no bucket is configured.
type NopArchiver struct{}

func (NopArchiver) ArchiveRun(ctx context.Context, run RunRecord, rows []models.AllocationRecord) error {
	return nil
}
