package store

import (
	"context"
	"sort"
	"sync"

	"github.com/southpark/southpark/internal/models"
)

// MemoryStore provides an in-memory implementation useful for tests and
// local runs without a database.
type MemoryStore struct {
	mu          sync.RWMutex
	events      map[int]models.Event
	lots        map[int]models.ParkingLot
	capacities  []models.CapacityRecord
	allocations []models.AllocationRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: map[int]models.Event{},
		lots:   map[int]models.ParkingLot{},
	}
}

// PutEvent seeds or replaces an event.
func (m *MemoryStore) PutEvent(ev models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[ev.ID] = ev
}

// PutLot seeds or replaces a lot.
func (m *MemoryStore) PutLot(lot models.ParkingLot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lots[lot.ID] = lot
}

// PutCapacity seeds a capacity window.
func (m *MemoryStore) PutCapacity(rec models.CapacityRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capacities = append(m.capacities, rec)
}

func (m *MemoryStore) ListEvents(ctx context.Context) ([]models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := make([]models.Event, 0, len(m.events))
	for _, ev := range m.events {
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return events, nil
}

func (m *MemoryStore) GetEvent(ctx context.Context, id int) (models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.events[id]
	if !ok {
		return models.Event{}, ErrNotFound
	}
	return ev, nil
}

func (m *MemoryStore) ListLots(ctx context.Context, filter LotFilter) ([]models.ParkingLot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lots := make([]models.ParkingLot, 0, len(m.lots))
	for _, lot := range m.lots {
		if filter.SurfaceMaterial != "" && lot.SurfaceMaterial != filter.SurfaceMaterial {
			continue
		}
		if filter.ServiceLevel != "" && lot.ServiceLevel != filter.ServiceLevel {
			continue
		}
		lots = append(lots, lot)
	}
	sort.Slice(lots, func(i, j int) bool { return lots[i].ID < lots[j].ID })
	return lots, nil
}

func (m *MemoryStore) CapacitiesForLot(ctx context.Context, lotID int, r models.DateRange) ([]models.CapacityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var records []models.CapacityRecord
	start, end := models.Midnight(r.Start), models.Midnight(r.End)
	for _, rec := range m.capacities {
		if rec.LotID != lotID {
			continue
		}
		if models.Midnight(rec.ValidFrom).After(end) || models.Midnight(rec.ValidTo).Before(start) {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ValidFrom.Before(records[j].ValidFrom) })
	return records, nil
}

func (m *MemoryStore) AllocationsForLot(ctx context.Context, lotID int, r models.DateRange, excludeEventID int) ([]models.AllocationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var records []models.AllocationRecord
	for _, rec := range m.allocations {
		if rec.LotID != lotID || rec.EventID == excludeEventID {
			continue
		}
		if !r.Contains(rec.Date) {
			continue
		}
		records = append(records, rec)
	}
	sortAllocations(records)
	return records, nil
}

func (m *MemoryStore) EventAllocations(ctx context.Context, eventID int) ([]models.AllocationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var records []models.AllocationRecord
	for _, rec := range m.allocations {
		if rec.EventID == eventID {
			records = append(records, rec)
		}
	}
	sortAllocations(records)
	return records, nil
}

func (m *MemoryStore) ReplaceAllocations(ctx context.Context, eventID int, rows []models.AllocationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.allocations[:0]
	for _, rec := range m.allocations {
		if rec.EventID != eventID {
			kept = append(kept, rec)
		}
	}
	m.allocations = append(kept, rows...)
	return nil
}

func (m *MemoryStore) ReplaceAllAllocations(ctx context.Context, rows []models.AllocationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocations = append([]models.AllocationRecord(nil), rows...)
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func sortAllocations(records []models.AllocationRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		if records[i].LotID != records[j].LotID {
			return records[i].LotID < records[j].LotID
		}
		return records[i].EventID < records[j].EventID
	})
}
