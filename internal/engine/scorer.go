// Package engine implements the greedy side of the allocation system:
// ranking candidate lots, walking them to satisfy per-phase demand, and
// expanding the resulting recommendation into committable allocation
// rows.
package engine

import (
	"math"
	"sort"

	"github.com/southpark/southpark/internal/distance"
	"github.com/southpark/southpark/internal/models"
)

// RankingConfig is the injected tuning for the scorer and the greedy
// walk. These values differ per deployment; see internal/config.
type RankingConfig struct {
	// WestHallIDs is the hall group close to the west default lot.
	WestHallIDs []int
	// WestLotID is forced to the front of the ranking when any of the
	// event's halls is a west hall.
	WestLotID int
	// HeavyLotID is tried first for truck demand of at least
	// HeavyTruckThreshold vehicles.
	HeavyLotID          int
	HeavyTruckThreshold int
	// UsePriorityScore orders lots by the combined distance/scarcity
	// score instead of plain average distance. Off in the shipped
	// configuration.
	UsePriorityScore bool
}

// RankedLot is one candidate lot with its scores. Priority is reported
// alongside the ranking but only drives the order when
// UsePriorityScore is set.
type RankedLot struct {
	Lot         models.ParkingLot `json:"lot"`
	AvgDistance float64           `json:"avgDistance"`
	Priority    float64           `json:"priority"`
}

// Scorer ranks candidate lots for a set of origin halls.
type Scorer struct {
	distances *distance.Table
	cfg       RankingConfig
}

func NewScorer(distances *distance.Table, cfg RankingConfig) *Scorer {
	return &Scorer{distances: distances, cfg: cfg}
}

// Rank orders candidates for the given halls: west-override first (when
// it applies), then ascending average distance, then ascending lot id.
// Lots with no distance entry for any hall score +Inf and sort last.
// freeUnits optionally supplies remaining unit capacity per lot id for
// the reported priority score; missing entries count as zero free.
func (s *Scorer) Rank(lots []models.ParkingLot, hallIDs []int, freeUnits map[int]int) []RankedLot {
	ranked := make([]RankedLot, 0, len(lots))
	for _, lot := range lots {
		avg := s.distances.Average(hallIDs, lot.ID)
		ranked = append(ranked, RankedLot{
			Lot:         lot,
			AvgDistance: avg,
			Priority:    priorityScore(avg, freeUnits[lot.ID]),
		})
	}

	westApplies := s.westApplies(hallIDs)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if s.cfg.UsePriorityScore {
			if a.Priority != b.Priority {
				return lessWithInf(a.Priority, b.Priority)
			}
			return a.Lot.ID < b.Lot.ID
		}
		if westApplies {
			aWest := a.Lot.ID == s.cfg.WestLotID
			bWest := b.Lot.ID == s.cfg.WestLotID
			if aWest != bWest {
				return aWest
			}
		}
		if a.AvgDistance != b.AvgDistance {
			return lessWithInf(a.AvgDistance, b.AvgDistance)
		}
		return a.Lot.ID < b.Lot.ID
	})
	return ranked
}

func (s *Scorer) westApplies(hallIDs []int) bool {
	for _, h := range hallIDs {
		for _, w := range s.cfg.WestHallIDs {
			if h == w {
				return true
			}
		}
	}
	return false
}

// priorityScore combines distance with scarcity: a lot with little free
// capacity ranks worse than an equally distant lot with plenty.
func priorityScore(avgDistance float64, free int) float64 {
	if math.IsInf(avgDistance, 1) {
		return math.Inf(1)
	}
	return avgDistance * (1 + 1/float64(1+free))
}

func lessWithInf(a, b float64) bool {
	if math.IsInf(a, 1) {
		return false
	}
	if math.IsInf(b, 1) {
		return true
	}
	return a < b
}
