package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/southpark/southpark/internal/ledger"
	"github.com/southpark/southpark/internal/models"
	"github.com/southpark/southpark/internal/store"
)

// LotLister is the slice of the store the engine needs.
type LotLister interface {
	ListLots(ctx context.Context, filter store.LotFilter) ([]models.ParkingLot, error)
}

// Engine produces per-phase, per-vehicle-type lot recommendations for a
// single event. It consumes the shared ledger as it assigns, so batch
// callers running it over several events see earlier events' uncommitted
// assignments; the event processed first effectively has priority.
type Engine struct {
	lots   LotLister
	ledger *ledger.Ledger
	scorer *Scorer
	cfg    RankingConfig
}

func New(lots LotLister, led *ledger.Ledger, scorer *Scorer, cfg RankingConfig) *Engine {
	return &Engine{lots: lots, ledger: led, scorer: scorer, cfg: cfg}
}

// Recommend walks the event's three phases and allocates each phase's
// demand across ranked lots. Unmet demand becomes a per-phase status
// rather than an error; the recommendation is still usable partially.
// The result is deterministic for identical ledger state and input.
func (e *Engine) Recommend(ctx context.Context, ev models.Event) (models.Recommendation, error) {
	rec := models.Recommendation{
		EventID: ev.ID,
		Phases:  map[models.Phase]models.PhaseRecommendation{},
	}
	for _, phase := range models.Phases() {
		pr, err := e.recommendPhase(ctx, ev, phase)
		if err != nil {
			return models.Recommendation{}, fmt.Errorf("recommend %s: %w", phase, err)
		}
		rec.Phases[phase] = pr
	}
	return rec, nil
}

func (e *Engine) recommendPhase(ctx context.Context, ev models.Event, phase models.Phase) (models.PhaseRecommendation, error) {
	pr := models.PhaseRecommendation{Status: models.StatusOK}
	demand := ev.PhaseDemand(phase)
	if demand.IsZero() {
		return pr, nil
	}
	window := ev.Window(phase)

	lots, err := e.lots.ListLots(ctx, store.LotFilter{})
	if err != nil {
		return pr, fmt.Errorf("list lots: %w", err)
	}

	// One availability snapshot per lot for this phase. Every lot is
	// visited at most once below, so the snapshot stays valid through
	// the walk; it already includes in-run consumption from earlier
	// phases and earlier events.
	avail := make(map[int]ledger.Remaining, len(lots))
	free := make(map[int]int, len(lots))
	for _, lot := range lots {
		if err := ctx.Err(); err != nil {
			return pr, err
		}
		rem, err := e.ledger.Remaining(ctx, lot.ID, window, ev.ID)
		if err != nil {
			return pr, err
		}
		avail[lot.ID] = rem
		free[lot.ID] = rem.FreeUnits
	}

	origins := ev.HallIDs
	if len(origins) == 0 {
		// Events without hall records are ranked from their entrances.
		origins = ev.EntranceIDs
	}
	ranked := e.scorer.Rank(lots, origins, free)
	if demand.Trucks >= e.cfg.HeavyTruckThreshold && e.cfg.HeavyTruckThreshold > 0 {
		ranked = promoteLot(ranked, e.cfg.HeavyLotID)
	}

	remaining := demand
	for _, rl := range ranked {
		if err := ctx.Err(); err != nil {
			return pr, err
		}
		if remaining.IsZero() {
			break
		}
		a := avail[rl.Lot.ID]
		gotCars, gotBuses, gotTrucks := consumeLot(&remaining, a)
		if gotCars > 0 {
			pr.Cars = append(pr.Cars, models.LotAssignment{LotID: rl.Lot.ID, Units: gotCars * models.UnitsPerCar})
		}
		if gotBuses > 0 {
			pr.Buses = append(pr.Buses, models.LotAssignment{LotID: rl.Lot.ID, Units: gotBuses * models.UnitsPerBus})
		}
		if gotTrucks > 0 {
			pr.Trucks = append(pr.Trucks, models.LotAssignment{LotID: rl.Lot.ID, Units: gotTrucks * models.UnitsPerTruck})
		}
		if gotCars > 0 || gotBuses > 0 || gotTrucks > 0 {
			e.ledger.Consume(rl.Lot.ID, window, gotCars, gotBuses, gotTrucks)
		}
	}

	if !remaining.IsZero() {
		pr.Status = missingStatus(remaining)
	}
	return pr, nil
}

// consumeLot drains as much of the remaining demand as the lot can hold:
// cars first (one unit each), then buses (three units, bounded by the
// bus slot count), then trucks (four units, bounded by the truck slot
// count). It stops when the lot cannot satisfy any remaining type.
func consumeLot(remaining *models.PhaseDemand, a ledger.Remaining) (cars, buses, trucks int) {
	freeUnits := a.FreeUnits
	busSlots := a.Buses
	truckSlots := a.Trucks
	for freeUnits > 0 && !remaining.IsZero() {
		switch {
		case remaining.Cars > 0 && freeUnits >= models.UnitsPerCar:
			n := min(freeUnits, remaining.Cars)
			cars += n
			remaining.Cars -= n
			freeUnits -= n * models.UnitsPerCar
		case remaining.Buses > 0 && freeUnits >= models.UnitsPerBus && busSlots > 0:
			n := min(min(freeUnits/models.UnitsPerBus, remaining.Buses), busSlots)
			buses += n
			remaining.Buses -= n
			freeUnits -= n * models.UnitsPerBus
			busSlots -= n
		case remaining.Trucks > 0 && freeUnits >= models.UnitsPerTruck && truckSlots > 0:
			n := min(min(freeUnits/models.UnitsPerTruck, remaining.Trucks), truckSlots)
			trucks += n
			remaining.Trucks -= n
			freeUnits -= n * models.UnitsPerTruck
			truckSlots -= n
		default:
			return cars, buses, trucks
		}
	}
	return cars, buses, trucks
}

// promoteLot moves the given lot to the front of the ranking, keeping
// the relative order of the rest.
func promoteLot(ranked []RankedLot, lotID int) []RankedLot {
	for i, rl := range ranked {
		if rl.Lot.ID == lotID {
			out := make([]RankedLot, 0, len(ranked))
			out = append(out, rl)
			out = append(out, ranked[:i]...)
			out = append(out, ranked[i+1:]...)
			return out
		}
	}
	return ranked
}

func missingStatus(remaining models.PhaseDemand) string {
	var parts []string
	if remaining.Cars > 0 {
		parts = append(parts, fmt.Sprintf("%d car units", remaining.Cars*models.UnitsPerCar))
	}
	if remaining.Buses > 0 {
		parts = append(parts, fmt.Sprintf("%d bus units", remaining.Buses*models.UnitsPerBus))
	}
	if remaining.Trucks > 0 {
		parts = append(parts, fmt.Sprintf("%d truck units", remaining.Trucks*models.UnitsPerTruck))
	}
	return "allocated within capacities, but missing capacity for " + strings.Join(parts, ", ")
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
