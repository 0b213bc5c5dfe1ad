package optimizer

import (
	"context"
	"fmt"
)

// solution is the incumbent of the branch-and-bound search: one chosen
// candidate lot per variable, in variable order.
type solution struct {
	lots []int
	cost float64
}

// search enumerates lot choices variable by variable, pruning branches
// whose cost plus an optimistic bound on the rest cannot beat the
// incumbent. The bound is the sum of each remaining variable's cheapest
// candidate, precomputed as a suffix sum. Candidates are tried in cost
// order so the first complete assignment is already a decent incumbent.
func search(ctx context.Context, vars []variable, caps *capacityIndex) (*solution, int, error) {
	// suffixMin[i] = lower bound on the cost of assigning vars[i:].
	suffixMin := make([]float64, len(vars)+1)
	for i := len(vars) - 1; i >= 0; i-- {
		suffixMin[i] = suffixMin[i+1] + vars[i].candidates[0].cost
	}

	s := &searcher{
		vars:      vars,
		caps:      caps,
		suffixMin: suffixMin,
		usage:     map[lotDay]int{},
		chosen:    make([]int, len(vars)),
	}
	if err := s.descend(ctx, 0, 0); err != nil {
		return nil, s.nodes, err
	}
	return s.best, s.nodes, nil
}

type searcher struct {
	vars      []variable
	caps      *capacityIndex
	suffixMin []float64
	usage     map[lotDay]int
	chosen    []int
	best      *solution
	nodes     int
}

func (s *searcher) descend(ctx context.Context, idx int, cost float64) error {
	s.nodes++
	// The solve is CPU-bound and can run long on dense instances; the
	// caller's deadline is the only stop condition.
	if s.nodes%1024 == 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("solver aborted, no solution produced: %w", err)
		}
	}
	if s.best != nil && cost+s.suffixMin[idx] >= s.best.cost {
		return nil
	}
	if idx == len(s.vars) {
		lots := append([]int(nil), s.chosen...)
		s.best = &solution{lots: lots, cost: cost}
		return nil
	}

	v := s.vars[idx]
	for _, cand := range v.candidates {
		if s.best != nil && cost+cand.cost+s.suffixMin[idx+1] >= s.best.cost {
			// Candidates are cost-sorted; nothing further can improve.
			break
		}
		if !s.fits(v, cand.lotID) {
			continue
		}
		s.charge(v, cand.lotID, v.demandUnits)
		s.chosen[idx] = cand.lotID
		err := s.descend(ctx, idx+1, cost+cand.cost)
		s.charge(v, cand.lotID, -v.demandUnits)
		if err != nil {
			return err
		}
	}
	return nil
}

// fits checks the per-lot-per-day capacity constraint for every day of
// the variable's phase against current usage.
func (s *searcher) fits(v variable, lotID int) bool {
	for _, day := range v.days {
		if s.usage[lotDay{lotID: lotID, day: day}]+v.demandUnits > s.caps.unitsOn(lotID, day) {
			return false
		}
	}
	return true
}

func (s *searcher) charge(v variable, lotID int, units int) {
	for _, day := range v.days {
		s.usage[lotDay{lotID: lotID, day: day}] += units
	}
}
