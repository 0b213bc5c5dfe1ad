package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/southpark/southpark/internal/models"
)

func newMockStore(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPGStore(db), mock
}

func eventColumns() []string {
	return []string{
		"id", "name",
		"assembly_start_date", "assembly_end_date",
		"runtime_start_date", "runtime_end_date",
		"disassembly_start_date", "disassembly_end_date",
		"hall_ids", "entrance_ids",
		"a_cars", "a_buses", "a_trucks",
		"r_cars", "r_buses", "r_trucks",
		"d_cars", "d_buses", "d_trucks",
	}
}

func TestGetEvent(t *testing.T) {
	st, mock := newMockStore(t)

	rows := sqlmock.NewRows(eventColumns()).AddRow(
		7, "interpack",
		models.Day(2026, time.March, 1), models.Day(2026, time.March, 3),
		models.Day(2026, time.March, 4), models.Day(2026, time.March, 8),
		models.Day(2026, time.March, 9), models.Day(2026, time.March, 10),
		pq.Int64Array{1, 2}, pq.Int64Array{3},
		100, 5, 20,
		400, 10, 0,
		80, 0, 15,
	)
	mock.ExpectQuery("SELECT e.id, e.name").WithArgs(7).WillReturnRows(rows)

	ev, err := st.GetEvent(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, ev.ID)
	assert.Equal(t, "interpack", ev.Name)
	assert.Equal(t, []int{1, 2}, ev.HallIDs)
	assert.Equal(t, []int{3}, ev.EntranceIDs)
	assert.Equal(t, models.PhaseDemand{Cars: 100, Buses: 5, Trucks: 20}, ev.PhaseDemand(models.PhaseAssembly))
	assert.Equal(t, models.PhaseDemand{Cars: 400, Buses: 10}, ev.PhaseDemand(models.PhaseRuntime))
	assert.Equal(t, models.PhaseDemand{Cars: 80, Trucks: 15}, ev.PhaseDemand(models.PhaseDisassembly))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEventNotFound(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery("SELECT e.id, e.name").WithArgs(404).WillReturnError(sql.ErrNoRows)

	_, err := st.GetEvent(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListLotsWithFilter(t *testing.T) {
	st, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"id", "name", "surface_material", "service_level", "external"}).
		AddRow(3, "P3", "asphalt", "high", false)
	mock.ExpectQuery("FROM parking_lot").WithArgs("asphalt", "high").WillReturnRows(rows)

	lots, err := st.ListLots(context.Background(), LotFilter{SurfaceMaterial: "asphalt", ServiceLevel: "high"})
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, "P3", lots[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCapacitiesForLot(t *testing.T) {
	st, mock := newMockStore(t)
	r := models.DateRange{Start: models.Day(2026, time.May, 1), End: models.Day(2026, time.May, 10)}
	rows := sqlmock.NewRows([]string{"parking_lot_id", "capacity", "truck_limit", "bus_limit", "valid_from", "valid_to"}).
		AddRow(2, 500, 50, 30, models.Day(2026, time.January, 1), models.Day(2026, time.December, 31))
	mock.ExpectQuery("FROM parking_lot_capacity").
		WithArgs(2, r.Start, r.End).
		WillReturnRows(rows)

	records, err := st.CapacitiesForLot(context.Background(), 2, r)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 500, records[0].Capacity)
	assert.Equal(t, 50, records[0].TruckLimit)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocationsForLotExcludesEvent(t *testing.T) {
	st, mock := newMockStore(t)
	r := models.DateRange{Start: models.Day(2026, time.June, 1), End: models.Day(2026, time.June, 2)}
	rows := sqlmock.NewRows([]string{"event_id", "parking_lot_id", "date", "allocated_cars", "allocated_trucks", "allocated_buses"}).
		AddRow(5, 2, models.Day(2026, time.June, 1), 40, 2, 1)
	mock.ExpectQuery("FROM parking_lot_allocation").
		WithArgs(2, r.Start, r.End, 9).
		WillReturnRows(rows)

	records, err := st.AllocationsForLot(context.Background(), 2, r, 9)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 5, records[0].EventID)
	assert.Equal(t, 40, records[0].Cars)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceAllocations(t *testing.T) {
	st, mock := newMockStore(t)
	day := models.Day(2026, time.July, 1)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM parking_lot_allocation").
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO parking_lot_allocation").
		WithArgs(7, 1, day, 10, 2, 1).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := st.ReplaceAllocations(context.Background(), 7, []models.AllocationRecord{
		{EventID: 7, LotID: 1, Date: day, Cars: 10, Trucks: 2, Buses: 1},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceAllocationsRejectsForeignRows(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM parking_lot_allocation").
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := st.ReplaceAllocations(context.Background(), 7, []models.AllocationRecord{
		{EventID: 8, LotID: 1, Date: models.Day(2026, time.July, 1)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event 8")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceAllAllocations(t *testing.T) {
	st, mock := newMockStore(t)
	day := models.Day(2026, time.August, 1)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM parking_lot_allocation").
		WillReturnResult(sqlmock.NewResult(0, 10))
	mock.ExpectExec("INSERT INTO parking_lot_allocation").
		WithArgs(1, 4, day, 5, 0, 0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO parking_lot_allocation").
		WithArgs(2, 4, day, 3, 1, 0).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err := st.ReplaceAllAllocations(context.Background(), []models.AllocationRecord{
		{EventID: 1, LotID: 4, Date: day, Cars: 5},
		{EventID: 2, LotID: 4, Date: day, Cars: 3, Trucks: 1},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
