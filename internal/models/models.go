package models

import (
	"math"
	"time"
)

// Phase is one stage of an event's lifecycle. Each phase covers a
// contiguous, non-overlapping date range with its own vehicle demand.
type Phase string

const (
	PhaseAssembly    Phase = "assembly"
	PhaseRuntime     Phase = "runtime"
	PhaseDisassembly Phase = "disassembly"
)

// Phases returns the three phases in lifecycle order.
func Phases() []Phase {
	return []Phase{PhaseAssembly, PhaseRuntime, PhaseDisassembly}
}

// Capacity accounting weights: a bus occupies three car-sized units,
// a truck four.
const (
	UnitsPerCar   = 1
	UnitsPerBus   = 3
	UnitsPerTruck = 4
)

// DateRange is an inclusive day-granular range. Both bounds are
// normalized to UTC midnight.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Day builds a UTC-midnight date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Midnight truncates t to its UTC calendar day.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Days enumerates every calendar day of the range in order. An inverted
// range yields nil.
func (r DateRange) Days() []time.Time {
	start, end := Midnight(r.Start), Midnight(r.End)
	if end.Before(start) {
		return nil
	}
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Contains reports whether day falls inside the range.
func (r DateRange) Contains(day time.Time) bool {
	d := Midnight(day)
	return !d.Before(Midnight(r.Start)) && !d.After(Midnight(r.End))
}

// PhaseDemand is the daily vehicle demand of one phase.
type PhaseDemand struct {
	Cars   int `json:"cars"`
	Buses  int `json:"buses"`
	Trucks int `json:"trucks"`
}

// Units is the unit-weighted total of the demand.
func (d PhaseDemand) Units() int {
	return d.Cars*UnitsPerCar + d.Buses*UnitsPerBus + d.Trucks*UnitsPerTruck
}

// IsZero reports whether the phase has no demand at all.
func (d PhaseDemand) IsZero() bool {
	return d.Cars == 0 && d.Buses == 0 && d.Trucks == 0
}

// Event is an exhibition with three sequential phases. Hall and entrance
// ids are only used for distance lookups.
type Event struct {
	ID          int                   `json:"id"`
	Name        string                `json:"name"`
	Assembly    DateRange             `json:"assembly"`
	Runtime     DateRange             `json:"runtime"`
	Disassembly DateRange             `json:"disassembly"`
	HallIDs     []int                 `json:"hallIds"`
	EntranceIDs []int                 `json:"entranceIds"`
	Demand      map[Phase]PhaseDemand `json:"demand"`
}

// Window returns the date range of the given phase.
func (e Event) Window(p Phase) DateRange {
	switch p {
	case PhaseAssembly:
		return e.Assembly
	case PhaseRuntime:
		return e.Runtime
	case PhaseDisassembly:
		return e.Disassembly
	}
	return DateRange{}
}

// PhaseDemand returns the demand of the given phase, zero if unset.
func (e Event) PhaseDemand(p Phase) PhaseDemand {
	if e.Demand == nil {
		return PhaseDemand{}
	}
	return e.Demand[p]
}

// PhaseOf returns the phase whose window contains the given day, and
// whether any does.
func (e Event) PhaseOf(day time.Time) (Phase, bool) {
	for _, p := range Phases() {
		if e.Window(p).Contains(day) {
			return p, true
		}
	}
	return "", false
}

// ParkingLot describes a lot. The descriptive attributes are only used
// as optional filters when building candidate sets.
type ParkingLot struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	SurfaceMaterial string `json:"surfaceMaterial,omitempty"`
	ServiceLevel    string `json:"serviceLevel,omitempty"`
	External        bool   `json:"external,omitempty"`
}

// CapacityRecord is one validity window of a lot's capacity. A lot may
// carry several non-overlapping windows over time; the window valid on a
// given day is the authoritative capacity for that day.
type CapacityRecord struct {
	LotID      int       `json:"parkingLotId"`
	Capacity   int       `json:"capacity"`
	TruckLimit int       `json:"truckLimit"`
	BusLimit   int       `json:"busLimit"`
	ValidFrom  time.Time `json:"validFrom"`
	ValidTo    time.Time `json:"validTo"`
}

// Covers reports whether the window is valid on the given day.
func (c CapacityRecord) Covers(day time.Time) bool {
	return DateRange{Start: c.ValidFrom, End: c.ValidTo}.Contains(day)
}

// AllocationRecord is one committed allocation row: what one event
// consumes on one lot on one day.
type AllocationRecord struct {
	EventID int       `json:"eventId"`
	LotID   int       `json:"parkingLotId"`
	Date    time.Time `json:"date"`
	Cars    int       `json:"allocatedCars"`
	Trucks  int       `json:"allocatedTrucks"`
	Buses   int       `json:"allocatedBuses"`
}

// AllocatedCapacity is the unit-weighted sum of the row.
func (a AllocationRecord) AllocatedCapacity() int {
	return a.Cars*UnitsPerCar + a.Buses*UnitsPerBus + a.Trucks*UnitsPerTruck
}

// LotAssignment is a slice of one vehicle type's demand placed on one
// lot. Units are unit-weighted (buses and trucks count 3 and 4 apiece);
// VehiclesFromUnits converts back to vehicle counts.
type LotAssignment struct {
	LotID int `json:"parkingLotId"`
	Units int `json:"units"`
}

// VehiclesFromUnits converts a unit-weighted quantity back into a
// vehicle count, rounding to the nearest whole vehicle. The rounding is
// lossy in both directions (7 bus units round to 2 buses, leaving one
// unit unaccounted), which the engine accepts as a known drift.
func VehiclesFromUnits(units, weight int) int {
	if weight <= 1 {
		return units
	}
	return int(math.Round(float64(units) / float64(weight)))
}

// PhaseRecommendation is the greedy engine's output for one phase.
type PhaseRecommendation struct {
	Cars   []LotAssignment `json:"cars"`
	Buses  []LotAssignment `json:"buses"`
	Trucks []LotAssignment `json:"trucks"`
	Status string          `json:"status"`
}

// Recommendation is the greedy engine's output for one event.
type Recommendation struct {
	EventID int                           `json:"eventId"`
	Phases  map[Phase]PhaseRecommendation `json:"phases"`
}

// StatusOK is the per-phase status when demand was fully placed.
const StatusOK = "ok"
