// Package ledger answers how much of a lot's capacity is still free over
// a date range, net of allocations already committed by other events and
// of consumption recorded during the current planning run.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/southpark/southpark/internal/models"
)

// Store is the slice of the persistence layer the ledger reads.
type Store interface {
	CapacitiesForLot(ctx context.Context, lotID int, r models.DateRange) ([]models.CapacityRecord, error)
	AllocationsForLot(ctx context.Context, lotID int, r models.DateRange, excludeEventID int) ([]models.AllocationRecord, error)
}

// Remaining is the bottleneck availability of a lot across a date range:
// the minimum over every day and every capacity window valid that day.
type Remaining struct {
	// FreeUnits is the remaining unit-weighted capacity.
	FreeUnits int
	// Trucks and Buses are the remaining count-based sub-limits, already
	// clamped so that the counted vehicles also fit into FreeUnits.
	Trucks int
	Buses  int
}

type lotDay struct {
	lotID int
	day   time.Time
}

type consumption struct {
	units  int
	trucks int
	buses  int
}

// Ledger computes remaining capacity. It additionally tracks consumption
// recorded by the caller during one planning run, so a greedy pass over
// several phases and lots sees its own uncommitted assignments. The
// ledger is owned by exactly one run at a time; callers serialize
// commits around it.
type Ledger struct {
	store    Store
	consumed map[lotDay]consumption
}

func New(store Store) *Ledger {
	return &Ledger{store: store, consumed: map[lotDay]consumption{}}
}

// Reset drops all in-run consumption.
func (l *Ledger) Reset() {
	l.consumed = map[lotDay]consumption{}
}

// Consume records an in-run assignment against the lot for every day of
// the range. Quantities are vehicle counts; unit weighting is applied
// here.
func (l *Ledger) Consume(lotID int, r models.DateRange, cars, buses, trucks int) {
	for _, day := range r.Days() {
		k := lotDay{lotID: lotID, day: day}
		c := l.consumed[k]
		c.units += cars*models.UnitsPerCar + buses*models.UnitsPerBus + trucks*models.UnitsPerTruck
		c.trucks += trucks
		c.buses += buses
		l.consumed[k] = c
	}
}

// Remaining returns the free capacity of the lot over the range,
// excluding the given event's own committed allocation (it is about to
// be replaced). A day with no valid capacity window zeroes the whole
// range; missing data never raises.
func (l *Ledger) Remaining(ctx context.Context, lotID int, r models.DateRange, excludeEventID int) (Remaining, error) {
	records, err := l.store.CapacitiesForLot(ctx, lotID, r)
	if err != nil {
		return Remaining{}, fmt.Errorf("ledger capacities: %w", err)
	}
	allocations, err := l.store.AllocationsForLot(ctx, lotID, r, excludeEventID)
	if err != nil {
		return Remaining{}, fmt.Errorf("ledger allocations: %w", err)
	}

	byDay := map[time.Time]consumption{}
	for _, rec := range allocations {
		day := models.Midnight(rec.Date)
		c := byDay[day]
		c.units += rec.AllocatedCapacity()
		c.trucks += rec.Trucks
		c.buses += rec.Buses
		byDay[day] = c
	}

	out := Remaining{FreeUnits: -1, Trucks: -1, Buses: -1}
	for _, day := range r.Days() {
		cap, ok := capacityOn(records, day)
		if !ok {
			return Remaining{}, nil
		}
		used := byDay[day]
		if inRun, ok := l.consumed[lotDay{lotID: lotID, day: day}]; ok {
			used.units += inRun.units
			used.trucks += inRun.trucks
			used.buses += inRun.buses
		}
		free := cap.Capacity - used.units
		trucks := cap.TruckLimit - used.trucks
		buses := cap.BusLimit - used.buses
		out.FreeUnits = minAvail(out.FreeUnits, free)
		out.Trucks = minAvail(out.Trucks, trucks)
		out.Buses = minAvail(out.Buses, buses)
	}
	if out.FreeUnits < 0 {
		// Empty range.
		return Remaining{}, nil
	}

	// A truck or bus must fit into the remaining units as well as into
	// its count limit.
	out.Trucks = min(out.Trucks, out.FreeUnits/models.UnitsPerTruck)
	out.Buses = min(out.Buses, out.FreeUnits/models.UnitsPerBus)
	return clampNonNegative(out), nil
}

// capacityOn resolves the binding capacity for a single day. Should
// several windows overlap the day, the most conservative one wins.
func capacityOn(records []models.CapacityRecord, day time.Time) (models.CapacityRecord, bool) {
	var out models.CapacityRecord
	found := false
	for _, rec := range records {
		if !rec.Covers(day) {
			continue
		}
		if !found {
			out = rec
			found = true
			continue
		}
		out.Capacity = min(out.Capacity, rec.Capacity)
		out.TruckLimit = min(out.TruckLimit, rec.TruckLimit)
		out.BusLimit = min(out.BusLimit, rec.BusLimit)
	}
	return out, found
}

func minAvail(current, candidate int) int {
	if current < 0 || candidate < current {
		return candidate
	}
	return current
}

func clampNonNegative(r Remaining) Remaining {
	if r.FreeUnits < 0 {
		r.FreeUnits = 0
	}
	if r.Trucks < 0 {
		r.Trucks = 0
	}
	if r.Buses < 0 {
		r.Buses = 0
	}
	return r
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
