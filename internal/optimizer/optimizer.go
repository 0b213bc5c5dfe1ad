// Package optimizer assigns a single lot to every (event, date) across
// the whole dataset at once, minimizing total distance subject to
// per-lot-per-day capacity and phase stability. Unlike the greedy
// engine it has no first-come-first-served bias: either a feasible
// global assignment exists and the cheapest one is returned, or the
// instance is reported infeasible.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/southpark/southpark/internal/distance"
	"github.com/southpark/southpark/internal/models"
)

// ErrInfeasible means no assignment satisfies every constraint: some
// day's demand exceeds what the lot network can hold, or an event has no
// reachable candidate lot.
var ErrInfeasible = errors.New("no feasible assignment for the requested data")

// Input is the optimizer's snapshot of the planning data. The solver
// only reads it; prior allocations are ignored because the run rewrites
// the whole allocation table.
type Input struct {
	Events     []models.Event
	Lots       []models.ParkingLot
	Capacities []models.CapacityRecord
	Distances  *distance.Table
}

// Options tunes result assembly.
type Options struct {
	// RecordLotCapacity reproduces the legacy result format, which wrote
	// the lot's total capacity instead of the event's consumed demand
	// into each allocation row. Off by default; rows then carry the
	// event's actual per-day vehicle demand.
	RecordLotCapacity bool
}

// PhaseAssignment is the solved lot choice for one event phase. The lot
// is constant across every day of the phase (phase stability).
type PhaseAssignment struct {
	EventID int          `json:"eventId"`
	Phase   models.Phase `json:"phase"`
	LotID   int          `json:"parkingLotId"`
}

// Result is a feasible, distance-minimal global assignment.
type Result struct {
	Assignments   []PhaseAssignment         `json:"assignments"`
	Rows          []models.AllocationRecord `json:"rows"`
	TotalDistance float64                   `json:"totalDistance"`
	Nodes         int                       `json:"nodes"`
}

// variable is one (event, phase) choice. Phase stability collapses the
// per-day binary variables of a phase into a single lot pick whose
// demand is charged to every day of the phase.
type variable struct {
	event       models.Event
	phase       models.Phase
	days        []time.Time
	demand      models.PhaseDemand
	demandUnits int
	candidates  []candidate
}

// candidate is one admissible lot for a variable, costed by the event's
// distance to the lot summed over the phase days.
type candidate struct {
	lotID int
	cost  float64
}

type lotDay struct {
	lotID int
	day   time.Time
}

// Solve builds the assignment model and searches it exhaustively with
// branch and bound. The context bounds the wall clock: a deadline or
// cancellation aborts the search and no solution is produced.
func Solve(ctx context.Context, in Input, opts Options) (Result, error) {
	caps := newCapacityIndex(in.Capacities)
	vars, err := buildVariables(in, caps)
	if err != nil {
		return Result{}, err
	}
	if len(vars) == 0 {
		return Result{}, nil
	}

	best, nodes, err := search(ctx, vars, caps)
	if err != nil {
		return Result{}, err
	}
	if best == nil {
		return Result{}, ErrInfeasible
	}

	res := Result{Nodes: nodes}
	for i, v := range vars {
		lotID := best.lots[i]
		res.Assignments = append(res.Assignments, PhaseAssignment{
			EventID: v.event.ID,
			Phase:   v.phase,
			LotID:   lotID,
		})
		for _, day := range v.days {
			row := models.AllocationRecord{
				EventID: v.event.ID,
				LotID:   lotID,
				Date:    day,
				Cars:    v.demand.Cars,
				Trucks:  v.demand.Trucks,
				Buses:   v.demand.Buses,
			}
			if opts.RecordLotCapacity {
				// Legacy format: the lot's full capacity, expressed in
				// car-sized units, instead of what the event consumes.
				row.Cars = caps.unitsOn(lotID, day)
				row.Trucks = 0
				row.Buses = 0
			}
			res.Rows = append(res.Rows, row)
		}
	}
	res.TotalDistance = best.cost
	sort.SliceStable(res.Rows, func(i, j int) bool {
		if res.Rows[i].EventID != res.Rows[j].EventID {
			return res.Rows[i].EventID < res.Rows[j].EventID
		}
		return res.Rows[i].Date.Before(res.Rows[j].Date)
	})
	return res, nil
}

// buildVariables precomputes the candidate table: a lot is a candidate
// for an event phase only if a capacity window covers every day of the
// phase with room for the phase's full daily unit demand, and the lot is
// reachable in the distance table.
func buildVariables(in Input, caps *capacityIndex) ([]variable, error) {
	var vars []variable
	for _, ev := range in.Events {
		for _, phase := range models.Phases() {
			demand := ev.PhaseDemand(phase)
			if demand.IsZero() {
				continue
			}
			days := ev.Window(phase).Days()
			if len(days) == 0 {
				continue
			}
			v := variable{
				event:       ev,
				phase:       phase,
				days:        days,
				demand:      demand,
				demandUnits: demand.Units(),
			}
			for _, lot := range in.Lots {
				dist := eventDistance(in.Distances, ev, lot.ID)
				if math.IsInf(dist, 1) {
					continue
				}
				admissible := true
				for _, day := range days {
					if caps.unitsOn(lot.ID, day) < v.demandUnits {
						admissible = false
						break
					}
				}
				if !admissible {
					continue
				}
				v.candidates = append(v.candidates, candidate{
					lotID: lot.ID,
					cost:  dist * float64(len(days)),
				})
			}
			if len(v.candidates) == 0 {
				return nil, fmt.Errorf("%w: event %d has no candidate lot for %s", ErrInfeasible, ev.ID, phase)
			}
			sort.Slice(v.candidates, func(i, j int) bool {
				if v.candidates[i].cost != v.candidates[j].cost {
					return v.candidates[i].cost < v.candidates[j].cost
				}
				return v.candidates[i].lotID < v.candidates[j].lotID
			})
			vars = append(vars, v)
		}
	}

	// Most-constrained first keeps the search tree small; ties resolve
	// deterministically.
	sort.SliceStable(vars, func(i, j int) bool {
		if len(vars[i].candidates) != len(vars[j].candidates) {
			return len(vars[i].candidates) < len(vars[j].candidates)
		}
		if vars[i].event.ID != vars[j].event.ID {
			return vars[i].event.ID < vars[j].event.ID
		}
		return phaseIndex(vars[i].phase) < phaseIndex(vars[j].phase)
	})
	return vars, nil
}

// eventDistance averages over the event's halls; events without hall
// records fall back to their entrances.
func eventDistance(t *distance.Table, ev models.Event, lotID int) float64 {
	d := t.Average(ev.HallIDs, lotID)
	if math.IsInf(d, 1) {
		d = t.Average(ev.EntranceIDs, lotID)
	}
	return d
}

func phaseIndex(p models.Phase) int {
	for i, q := range models.Phases() {
		if p == q {
			return i
		}
	}
	return len(models.Phases())
}

// capacityIndex resolves a lot's unit capacity on a day, taking the
// minimum when several windows overlap and zero when none covers it.
type capacityIndex struct {
	byLot map[int][]models.CapacityRecord
	cache map[lotDay]int
}

func newCapacityIndex(records []models.CapacityRecord) *capacityIndex {
	idx := &capacityIndex{
		byLot: map[int][]models.CapacityRecord{},
		cache: map[lotDay]int{},
	}
	for _, rec := range records {
		idx.byLot[rec.LotID] = append(idx.byLot[rec.LotID], rec)
	}
	return idx
}

func (c *capacityIndex) unitsOn(lotID int, day time.Time) int {
	day = models.Midnight(day)
	k := lotDay{lotID: lotID, day: day}
	if units, ok := c.cache[k]; ok {
		return units
	}
	units := 0
	found := false
	for _, rec := range c.byLot[lotID] {
		if !rec.Covers(day) {
			continue
		}
		if !found || rec.Capacity < units {
			units = rec.Capacity
		}
		found = true
	}
	c.cache[k] = units
	return units
}
