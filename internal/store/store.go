// Package store persists the allocation engine's inputs and outputs:
// events with demand, parking lots, capacity windows, and committed
// allocation rows. Event and lot CRUD belongs to the surrounding system;
// the engine only reads those tables and rewrites allocations.
package store

import (
	"context"
	"errors"

	"github.com/southpark/southpark/internal/models"
)

var ErrNotFound = errors.New("not found")

// LotFilter narrows the candidate lot list. Zero values mean no filter.
type LotFilter struct {
	SurfaceMaterial string
	ServiceLevel    string
}

type Store interface {
	// ListEvents returns every event with its per-phase demand, halls
	// and entrances, ordered by ascending event id.
	ListEvents(ctx context.Context) ([]models.Event, error)
	GetEvent(ctx context.Context, id int) (models.Event, error)

	ListLots(ctx context.Context, filter LotFilter) ([]models.ParkingLot, error)

	// CapacitiesForLot returns every capacity window of the lot that
	// overlaps the range.
	CapacitiesForLot(ctx context.Context, lotID int, r models.DateRange) ([]models.CapacityRecord, error)

	// AllocationsForLot returns committed allocation rows for the lot
	// inside the range, excluding the given event (pass 0 to exclude
	// nothing). The planned event's own prior allocation is about to be
	// replaced and must not count against it.
	AllocationsForLot(ctx context.Context, lotID int, r models.DateRange, excludeEventID int) ([]models.AllocationRecord, error)

	EventAllocations(ctx context.Context, eventID int) ([]models.AllocationRecord, error)

	// ReplaceAllocations deletes the event's existing allocation rows and
	// writes the new ones in a single transaction: either the full
	// replacement lands or the prior state survives.
	ReplaceAllocations(ctx context.Context, eventID int, rows []models.AllocationRecord) error

	// ReplaceAllAllocations rewrites the entire allocation table, used by
	// the exact optimizer which re-plans every event at once.
	ReplaceAllAllocations(ctx context.Context, rows []models.AllocationRecord) error

	Ping(ctx context.Context) error
}
