package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/southpark/southpark/internal/ledger"
	"github.com/southpark/southpark/internal/models"
	"github.com/southpark/southpark/internal/store"
)

func wholeYear(lotID, capacity, truckLimit, busLimit int) models.CapacityRecord {
	return models.CapacityRecord{
		LotID:      lotID,
		Capacity:   capacity,
		TruckLimit: truckLimit,
		BusLimit:   busLimit,
		ValidFrom:  models.Day(2026, time.January, 1),
		ValidTo:    models.Day(2026, time.December, 31),
	}
}

func TestRemainingMinAcrossRange(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutCapacity(wholeYear(1, 100, 10, 10))
	// Another event holds 40 units on the middle day only.
	require.NoError(t, st.ReplaceAllocations(context.Background(), 9, []models.AllocationRecord{
		{EventID: 9, LotID: 1, Date: models.Day(2026, time.March, 2), Cars: 40},
	}))

	led := ledger.New(st)
	r := models.DateRange{Start: models.Day(2026, time.March, 1), End: models.Day(2026, time.March, 3)}
	rem, err := led.Remaining(context.Background(), 1, r, 0)
	require.NoError(t, err)
	assert.Equal(t, 60, rem.FreeUnits)
}

func TestRemainingExcludesPlannedEvent(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutCapacity(wholeYear(1, 50, 5, 5))
	require.NoError(t, st.ReplaceAllocations(context.Background(), 7, []models.AllocationRecord{
		{EventID: 7, LotID: 1, Date: models.Day(2026, time.April, 10), Cars: 30},
	}))

	led := ledger.New(st)
	r := models.DateRange{Start: models.Day(2026, time.April, 10), End: models.Day(2026, time.April, 10)}

	rem, err := led.Remaining(context.Background(), 1, r, 7)
	require.NoError(t, err)
	assert.Equal(t, 50, rem.FreeUnits, "the event being replanned must not block itself")

	rem, err = led.Remaining(context.Background(), 1, r, 0)
	require.NoError(t, err)
	assert.Equal(t, 20, rem.FreeUnits)
}

func TestRemainingUncoveredDayZeroesRange(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutCapacity(models.CapacityRecord{
		LotID:     1,
		Capacity:  100,
		ValidFrom: models.Day(2026, time.May, 1),
		ValidTo:   models.Day(2026, time.May, 2),
	})

	led := ledger.New(st)
	r := models.DateRange{Start: models.Day(2026, time.May, 1), End: models.Day(2026, time.May, 3)}
	rem, err := led.Remaining(context.Background(), 1, r, 0)
	require.NoError(t, err)
	assert.Equal(t, ledger.Remaining{}, rem)
}

func TestRemainingOverlappingWindowsTakeMinimum(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutCapacity(wholeYear(1, 100, 10, 10))
	st.PutCapacity(models.CapacityRecord{
		LotID:      1,
		Capacity:   30,
		TruckLimit: 2,
		BusLimit:   3,
		ValidFrom:  models.Day(2026, time.June, 1),
		ValidTo:    models.Day(2026, time.June, 30),
	})

	led := ledger.New(st)
	r := models.DateRange{Start: models.Day(2026, time.June, 10), End: models.Day(2026, time.June, 11)}
	rem, err := led.Remaining(context.Background(), 1, r, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, rem.FreeUnits)
	assert.Equal(t, 2, rem.Trucks)
	assert.Equal(t, 3, rem.Buses)
}

func TestRemainingClampsSlotsToFreeUnits(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutCapacity(wholeYear(1, 10, 5, 5))

	led := ledger.New(st)
	r := models.DateRange{Start: models.Day(2026, time.July, 1), End: models.Day(2026, time.July, 1)}
	rem, err := led.Remaining(context.Background(), 1, r, 0)
	require.NoError(t, err)
	// Ten units hold at most two trucks or three buses regardless of the
	// slot limits.
	assert.Equal(t, 10, rem.FreeUnits)
	assert.Equal(t, 2, rem.Trucks)
	assert.Equal(t, 3, rem.Buses)
}

func TestConsumeTracksInRunAssignments(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutCapacity(wholeYear(1, 40, 4, 4))

	led := ledger.New(st)
	r := models.DateRange{Start: models.Day(2026, time.August, 1), End: models.Day(2026, time.August, 2)}

	led.Consume(1, r, 5, 2, 1) // 5 + 6 + 4 = 15 units per day
	rem, err := led.Remaining(context.Background(), 1, r, 0)
	require.NoError(t, err)
	assert.Equal(t, 25, rem.FreeUnits)
	assert.Equal(t, 3, rem.Trucks)
	assert.Equal(t, 2, rem.Buses)

	led.Reset()
	rem, err = led.Remaining(context.Background(), 1, r, 0)
	require.NoError(t, err)
	assert.Equal(t, 40, rem.FreeUnits)
}

func TestRemainingNeverNegative(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutCapacity(wholeYear(1, 10, 1, 1))
	require.NoError(t, st.ReplaceAllocations(context.Background(), 3, []models.AllocationRecord{
		{EventID: 3, LotID: 1, Date: models.Day(2026, time.September, 1), Cars: 8, Trucks: 2},
	}))

	led := ledger.New(st)
	r := models.DateRange{Start: models.Day(2026, time.September, 1), End: models.Day(2026, time.September, 1)}
	rem, err := led.Remaining(context.Background(), 1, r, 0)
	require.NoError(t, err)
	assert.Equal(t, ledger.Remaining{}, rem)
}
