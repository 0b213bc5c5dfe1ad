// Package allocator orchestrates the two solving strategies over the
// store: per-event greedy recommendations (optionally committed), the
// batch greedy loop, and the whole-dataset exact optimize. It owns the
// lock that serializes ledger-read-then-commit sequences.
package allocator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/southpark/southpark/internal/audit"
	"github.com/southpark/southpark/internal/distance"
	"github.com/southpark/southpark/internal/engine"
	"github.com/southpark/southpark/internal/ledger"
	"github.com/southpark/southpark/internal/models"
	"github.com/southpark/southpark/internal/optimizer"
	"github.com/southpark/southpark/internal/store"
)

type Service struct {
	store         store.Store
	distances     *distance.Table
	cfg           engine.RankingConfig
	solverTimeout time.Duration
	publisher     audit.Publisher
	archiver      audit.Archiver

	// mu serializes every committing run. The ledger's view of free
	// capacity is only valid until the next commit; interleaved
	// read-then-write sequences could double-book a lot.
	mu sync.Mutex
}

func New(st store.Store, distances *distance.Table, cfg engine.RankingConfig, solverTimeout time.Duration, publisher audit.Publisher, archiver audit.Archiver) *Service {
	if publisher == nil {
		publisher = audit.NopPublisher{}
	}
	if archiver == nil {
		archiver = audit.NopArchiver{}
	}
	return &Service{
		store:         st,
		distances:     distances,
		cfg:           cfg,
		solverTimeout: solverTimeout,
		publisher:     publisher,
		archiver:      archiver,
	}
}

// EventOutcome is the per-event result of a greedy run.
type EventOutcome struct {
	EventID  int                     `json:"eventId"`
	Name     string                  `json:"name"`
	Statuses map[models.Phase]string `json:"statuses"`
	Rows     int                     `json:"rows"`
}

// RunSummary describes one committed run.
type RunSummary struct {
	RunID  uuid.UUID      `json:"runId"`
	Mode   audit.RunMode  `json:"mode"`
	Events []EventOutcome `json:"events"`
	Rows   int            `json:"rows"`
}

// Recommend produces a recommendation for one event without committing
// anything. The throwaway ledger sees only committed allocations.
func (s *Service) Recommend(ctx context.Context, eventID int) (models.Event, models.Recommendation, error) {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return models.Event{}, models.Recommendation{}, err
	}
	eng := s.newEngine()
	rec, err := eng.Recommend(ctx, ev)
	if err != nil {
		return models.Event{}, models.Recommendation{}, err
	}
	return ev, rec, nil
}

// AllocateEvent runs the greedy engine for one event and commits the
// result, replacing the event's prior allocation.
func (s *Service) AllocateEvent(ctx context.Context, eventID int) (RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return RunSummary{}, err
	}
	run := audit.NewRunRecord(audit.RunGreedy)
	summary := RunSummary{RunID: run.RunID, Mode: run.Mode}

	outcome, rows, err := s.allocateOne(ctx, s.newEngine(), ev)
	if err != nil {
		return RunSummary{}, err
	}
	summary.Events = append(summary.Events, outcome)
	summary.Rows = len(rows)
	s.recordRun(ctx, run, summary, rows)
	return summary, nil
}

// AllocateAll runs the greedy engine over every event in ascending
// event-id order, committing each event's result before the next one
// plans. Earlier events get allocation priority through the rows
// already in the store; every event plans on a fresh ledger so the
// committed usage is never counted a second time.
func (s *Service) AllocateAll(ctx context.Context) (RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	run := audit.NewRunRecord(audit.RunGreedy)
	summary := RunSummary{RunID: run.RunID, Mode: run.Mode}

	var allRows []models.AllocationRecord
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return RunSummary{}, err
		}
		outcome, rows, err := s.allocateOne(ctx, s.newEngine(), ev)
		if err != nil {
			return RunSummary{}, fmt.Errorf("event %d: %w", ev.ID, err)
		}
		summary.Events = append(summary.Events, outcome)
		summary.Rows += len(rows)
		allRows = append(allRows, rows...)
	}
	s.recordRun(ctx, run, summary, allRows)
	return summary, nil
}

func (s *Service) allocateOne(ctx context.Context, eng *engine.Engine, ev models.Event) (EventOutcome, []models.AllocationRecord, error) {
	rec, err := eng.Recommend(ctx, ev)
	if err != nil {
		return EventOutcome{}, nil, err
	}
	applier := engine.NewApplier(s.store)
	rows, err := applier.Apply(ctx, ev, rec)
	if err != nil {
		return EventOutcome{}, nil, err
	}
	outcome := EventOutcome{
		EventID:  ev.ID,
		Name:     ev.Name,
		Statuses: map[models.Phase]string{},
		Rows:     len(rows),
	}
	for phase, pr := range rec.Phases {
		outcome.Statuses[phase] = pr.Status
	}
	return outcome, rows, nil
}

// Optimize solves the whole dataset exactly and rewrites the full
// allocation table with the distance-minimal assignment. Infeasibility
// and solver timeout surface as errors; nothing is committed then.
func (s *Service) Optimize(ctx context.Context) (RunSummary, optimizer.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, err := s.optimizerInput(ctx)
	if err != nil {
		return RunSummary{}, optimizer.Result{}, err
	}

	solveCtx := ctx
	if s.solverTimeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, s.solverTimeout)
		defer cancel()
	}
	result, err := optimizer.Solve(solveCtx, in, optimizer.Options{})
	if err != nil {
		return RunSummary{}, optimizer.Result{}, err
	}
	if err := s.store.ReplaceAllAllocations(ctx, result.Rows); err != nil {
		return RunSummary{}, optimizer.Result{}, fmt.Errorf("commit optimized allocation: %w", err)
	}

	run := audit.NewRunRecord(audit.RunExact)
	summary := RunSummary{RunID: run.RunID, Mode: run.Mode, Rows: len(result.Rows)}
	for _, ev := range in.Events {
		summary.Events = append(summary.Events, EventOutcome{EventID: ev.ID, Name: ev.Name})
	}
	s.recordRun(ctx, run, summary, result.Rows)
	return summary, result, nil
}

func (s *Service) optimizerInput(ctx context.Context) (optimizer.Input, error) {
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return optimizer.Input{}, err
	}
	lots, err := s.store.ListLots(ctx, store.LotFilter{})
	if err != nil {
		return optimizer.Input{}, err
	}
	span, ok := eventsSpan(events)
	in := optimizer.Input{Events: events, Lots: lots, Distances: s.distances}
	if !ok {
		return in, nil
	}
	for _, lot := range lots {
		records, err := s.store.CapacitiesForLot(ctx, lot.ID, span)
		if err != nil {
			return optimizer.Input{}, err
		}
		in.Capacities = append(in.Capacities, records...)
	}
	return in, nil
}

// eventsSpan is the smallest date range covering every phase of every
// event.
func eventsSpan(events []models.Event) (models.DateRange, bool) {
	var span models.DateRange
	found := false
	for _, ev := range events {
		for _, phase := range models.Phases() {
			w := ev.Window(phase)
			days := w.Days()
			if len(days) == 0 {
				continue
			}
			if !found {
				span = models.DateRange{Start: days[0], End: days[len(days)-1]}
				found = true
				continue
			}
			if days[0].Before(span.Start) {
				span.Start = days[0]
			}
			if days[len(days)-1].After(span.End) {
				span.End = days[len(days)-1]
			}
		}
	}
	return span, found
}

// EventAllocation returns the committed rows for one event.
func (s *Service) EventAllocation(ctx context.Context, eventID int) ([]models.AllocationRecord, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.EventAllocations(ctx, eventID)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) newEngine() *engine.Engine {
	led := ledger.New(s.store)
	scorer := engine.NewScorer(s.distances, s.cfg)
	return engine.New(s.store, led, scorer, s.cfg)
}

// recordRun ships the audit trail best-effort; a dead broker or bucket
// must not fail a committed run.
func (s *Service) recordRun(ctx context.Context, run audit.RunRecord, summary RunSummary, rows []models.AllocationRecord) {
	run.Rows = summary.Rows
	run.Actor = "allocation-engine"
	run.Status = "completed"
	for _, ev := range summary.Events {
		run.EventIDs = append(run.EventIDs, ev.EventID)
	}
	if err := s.publisher.PublishRun(ctx, run); err != nil {
		log.Printf("audit publish run %s: %v", run.RunID, err)
	}
	if err := s.archiver.ArchiveRun(ctx, run, rows); err != nil {
		log.Printf("audit archive run %s: %v", run.RunID, err)
	}
}
