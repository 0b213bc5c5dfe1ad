package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/southpark/southpark/internal/models"
)

// AllocationReplacer is the commit half of the store: delete-then-insert
// of one event's allocation inside a single transaction.
type AllocationReplacer interface {
	ReplaceAllocations(ctx context.Context, eventID int, rows []models.AllocationRecord) error
}

// Applier expands a phase-level recommendation into one allocation row
// per (event, lot, day) and commits it, replacing whatever allocation
// the event had before.
type Applier struct {
	store AllocationReplacer
}

func NewApplier(store AllocationReplacer) *Applier {
	return &Applier{store: store}
}

// Apply commits the recommendation and returns the rows written.
func (a *Applier) Apply(ctx context.Context, ev models.Event, rec models.Recommendation) ([]models.AllocationRecord, error) {
	rows := BuildRows(ev, rec)
	if err := a.store.ReplaceAllocations(ctx, ev.ID, rows); err != nil {
		return nil, fmt.Errorf("apply recommendation for event %d: %w", ev.ID, err)
	}
	return rows, nil
}

// BuildRows expands the recommendation: for every day of every phase,
// one row per lot, with unit counts converted back to vehicle counts
// (buses /3, trucks /4, rounded to nearest) and vehicle types landing on
// the same lot merged into one row. Rows are ordered by date then lot.
func BuildRows(ev models.Event, rec models.Recommendation) []models.AllocationRecord {
	var rows []models.AllocationRecord
	for _, phase := range models.Phases() {
		pr, ok := rec.Phases[phase]
		if !ok {
			continue
		}
		perLot := map[int]*models.AllocationRecord{}
		var lotOrder []int
		add := func(assignments []models.LotAssignment, apply func(rec *models.AllocationRecord, vehicles int), weight int) {
			for _, as := range assignments {
				vehicles := models.VehiclesFromUnits(as.Units, weight)
				if vehicles == 0 {
					continue
				}
				row, ok := perLot[as.LotID]
				if !ok {
					row = &models.AllocationRecord{EventID: ev.ID, LotID: as.LotID}
					perLot[as.LotID] = row
					lotOrder = append(lotOrder, as.LotID)
				}
				apply(row, vehicles)
			}
		}
		add(pr.Cars, func(r *models.AllocationRecord, v int) { r.Cars += v }, models.UnitsPerCar)
		add(pr.Buses, func(r *models.AllocationRecord, v int) { r.Buses += v }, models.UnitsPerBus)
		add(pr.Trucks, func(r *models.AllocationRecord, v int) { r.Trucks += v }, models.UnitsPerTruck)

		sort.Ints(lotOrder)
		for _, day := range ev.Window(phase).Days() {
			for _, lotID := range lotOrder {
				row := *perLot[lotID]
				row.Date = day
				rows = append(rows, row)
			}
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].LotID < rows[j].LotID
	})
	return rows
}

// coveredDays is a convenience for tests and reporting: all days in the
// event's three phases in order.
func coveredDays(ev models.Event) []time.Time {
	var days []time.Time
	for _, phase := range models.Phases() {
		days = append(days, ev.Window(phase).Days()...)
	}
	return days
}
