package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/southpark/southpark/internal/models"
)

// PGStore reads the planning tables and writes allocation rows through
// database/sql. Schema: event, visitor_demand, hall_occupation,
// entrance_occupation, parking_lot, parking_lot_capacity,
// parking_lot_allocation.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Per-phase demand is the maximum daily demand recorded for the phase;
// the engines plan against the peak day.
const eventSelect = `
	SELECT e.id, e.name,
	       e.assembly_start_date, e.assembly_end_date,
	       e.runtime_start_date, e.runtime_end_date,
	       e.disassembly_start_date, e.disassembly_end_date,
	       ARRAY(SELECT hall_id FROM hall_occupation WHERE event_id = e.id ORDER BY hall_id) AS hall_ids,
	       ARRAY(SELECT entrance_id FROM entrance_occupation WHERE event_id = e.id ORDER BY entrance_id) AS entrance_ids,
	       COALESCE((SELECT MAX(car_demand) FROM visitor_demand WHERE event_id = e.id AND status = 'assembly'), 0),
	       COALESCE((SELECT MAX(bus_demand) FROM visitor_demand WHERE event_id = e.id AND status = 'assembly'), 0),
	       COALESCE((SELECT MAX(truck_demand) FROM visitor_demand WHERE event_id = e.id AND status = 'assembly'), 0),
	       COALESCE((SELECT MAX(car_demand) FROM visitor_demand WHERE event_id = e.id AND status = 'runtime'), 0),
	       COALESCE((SELECT MAX(bus_demand) FROM visitor_demand WHERE event_id = e.id AND status = 'runtime'), 0),
	       COALESCE((SELECT MAX(truck_demand) FROM visitor_demand WHERE event_id = e.id AND status = 'runtime'), 0),
	       COALESCE((SELECT MAX(car_demand) FROM visitor_demand WHERE event_id = e.id AND status = 'disassembly'), 0),
	       COALESCE((SELECT MAX(bus_demand) FROM visitor_demand WHERE event_id = e.id AND status = 'disassembly'), 0),
	       COALESCE((SELECT MAX(truck_demand) FROM visitor_demand WHERE event_id = e.id AND status = 'disassembly'), 0)
	FROM event e
`

func scanEvent(scan func(dest ...interface{}) error) (models.Event, error) {
	var ev models.Event
	var halls, entrances pq.Int64Array
	var assembly, runtime, disassembly models.PhaseDemand
	err := scan(
		&ev.ID, &ev.Name,
		&ev.Assembly.Start, &ev.Assembly.End,
		&ev.Runtime.Start, &ev.Runtime.End,
		&ev.Disassembly.Start, &ev.Disassembly.End,
		&halls, &entrances,
		&assembly.Cars, &assembly.Buses, &assembly.Trucks,
		&runtime.Cars, &runtime.Buses, &runtime.Trucks,
		&disassembly.Cars, &disassembly.Buses, &disassembly.Trucks,
	)
	if err != nil {
		return models.Event{}, err
	}
	for _, h := range halls {
		ev.HallIDs = append(ev.HallIDs, int(h))
	}
	for _, e := range entrances {
		ev.EntranceIDs = append(ev.EntranceIDs, int(e))
	}
	ev.Demand = map[models.Phase]models.PhaseDemand{
		models.PhaseAssembly:    assembly,
		models.PhaseRuntime:     runtime,
		models.PhaseDisassembly: disassembly,
	}
	return ev, nil
}

func (s *PGStore) ListEvents(ctx context.Context) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, eventSelect+" ORDER BY e.id")
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	var events []models.Event
	for rows.Next() {
		ev, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (s *PGStore) GetEvent(ctx context.Context, id int) (models.Event, error) {
	row := s.db.QueryRowContext(ctx, eventSelect+" WHERE e.id = $1", id)
	ev, err := scanEvent(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Event{}, ErrNotFound
		}
		return models.Event{}, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

func (s *PGStore) ListLots(ctx context.Context, filter LotFilter) ([]models.ParkingLot, error) {
	query := `
		SELECT id, name, COALESCE(surface_material, ''), COALESCE(service_level, ''), COALESCE(external, FALSE)
		FROM parking_lot
		WHERE 1=1
	`
	var args []interface{}
	if filter.SurfaceMaterial != "" {
		args = append(args, filter.SurfaceMaterial)
		query += fmt.Sprintf(" AND surface_material = $%d", len(args))
	}
	if filter.ServiceLevel != "" {
		args = append(args, filter.ServiceLevel)
		query += fmt.Sprintf(" AND service_level = $%d", len(args))
	}
	query += " ORDER BY id"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	defer rows.Close()
	var lots []models.ParkingLot
	for rows.Next() {
		var lot models.ParkingLot
		if err := rows.Scan(&lot.ID, &lot.Name, &lot.SurfaceMaterial, &lot.ServiceLevel, &lot.External); err != nil {
			return nil, fmt.Errorf("scan lot: %w", err)
		}
		lots = append(lots, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	return lots, nil
}

func (s *PGStore) CapacitiesForLot(ctx context.Context, lotID int, r models.DateRange) ([]models.CapacityRecord, error) {
	const query = `
		SELECT parking_lot_id, capacity, COALESCE(truck_limit, 0), COALESCE(bus_limit, 0), valid_from, valid_to
		FROM parking_lot_capacity
		WHERE parking_lot_id = $1 AND valid_from <= $3 AND valid_to >= $2
		ORDER BY valid_from
	`
	rows, err := s.db.QueryContext(ctx, query, lotID, models.Midnight(r.Start), models.Midnight(r.End))
	if err != nil {
		return nil, fmt.Errorf("capacities for lot %d: %w", lotID, err)
	}
	defer rows.Close()
	var records []models.CapacityRecord
	for rows.Next() {
		var rec models.CapacityRecord
		if err := rows.Scan(&rec.LotID, &rec.Capacity, &rec.TruckLimit, &rec.BusLimit, &rec.ValidFrom, &rec.ValidTo); err != nil {
			return nil, fmt.Errorf("scan capacity: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("capacities for lot %d: %w", lotID, err)
	}
	return records, nil
}

func (s *PGStore) AllocationsForLot(ctx context.Context, lotID int, r models.DateRange, excludeEventID int) ([]models.AllocationRecord, error) {
	const query = `
		SELECT event_id, parking_lot_id, date, allocated_cars, allocated_trucks, allocated_buses
		FROM parking_lot_allocation
		WHERE parking_lot_id = $1 AND date >= $2 AND date <= $3 AND event_id <> $4
		ORDER BY date, event_id
	`
	rows, err := s.db.QueryContext(ctx, query, lotID, models.Midnight(r.Start), models.Midnight(r.End), excludeEventID)
	if err != nil {
		return nil, fmt.Errorf("allocations for lot %d: %w", lotID, err)
	}
	defer rows.Close()
	return scanAllocations(rows)
}

func (s *PGStore) EventAllocations(ctx context.Context, eventID int) ([]models.AllocationRecord, error) {
	const query = `
		SELECT event_id, parking_lot_id, date, allocated_cars, allocated_trucks, allocated_buses
		FROM parking_lot_allocation
		WHERE event_id = $1
		ORDER BY date, parking_lot_id
	`
	rows, err := s.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("allocations for event %d: %w", eventID, err)
	}
	defer rows.Close()
	return scanAllocations(rows)
}

func scanAllocations(rows *sql.Rows) ([]models.AllocationRecord, error) {
	var records []models.AllocationRecord
	for rows.Next() {
		var rec models.AllocationRecord
		if err := rows.Scan(&rec.EventID, &rec.LotID, &rec.Date, &rec.Cars, &rec.Trucks, &rec.Buses); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read allocations: %w", err)
	}
	return records, nil
}

const insertAllocation = `
	INSERT INTO parking_lot_allocation (event_id, parking_lot_id, date, allocated_cars, allocated_trucks, allocated_buses)
	VALUES ($1, $2, $3, $4, $5, $6)
`

func (s *PGStore) ReplaceAllocations(ctx context.Context, eventID int, rows []models.AllocationRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace allocations: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM parking_lot_allocation WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("delete allocations for event %d: %w", eventID, err)
	}
	for _, rec := range rows {
		if rec.EventID != eventID {
			return fmt.Errorf("allocation row for event %d in replace of event %d", rec.EventID, eventID)
		}
		if _, err := tx.ExecContext(ctx, insertAllocation,
			rec.EventID, rec.LotID, models.Midnight(rec.Date), rec.Cars, rec.Trucks, rec.Buses); err != nil {
			return fmt.Errorf("insert allocation: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace allocations: %w", err)
	}
	return nil
}

func (s *PGStore) ReplaceAllAllocations(ctx context.Context, rows []models.AllocationRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rewrite allocations: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM parking_lot_allocation`); err != nil {
		return fmt.Errorf("clear allocations: %w", err)
	}
	for _, rec := range rows {
		if _, err := tx.ExecContext(ctx, insertAllocation,
			rec.EventID, rec.LotID, models.Midnight(rec.Date), rec.Cars, rec.Trucks, rec.Buses); err != nil {
			return fmt.Errorf("insert allocation: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rewrite allocations: %w", err)
	}
	return nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}
