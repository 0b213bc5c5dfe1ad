package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRangeDays(t *testing.T) {
	r := DateRange{Start: Day(2026, time.March, 30), End: Day(2026, time.April, 2)}
	days := r.Days()
	require.Len(t, days, 4)
	assert.Equal(t, Day(2026, time.March, 30), days[0])
	assert.Equal(t, Day(2026, time.April, 2), days[3])

	single := DateRange{Start: Day(2026, time.May, 1), End: Day(2026, time.May, 1)}
	assert.Len(t, single.Days(), 1)

	inverted := DateRange{Start: Day(2026, time.May, 2), End: Day(2026, time.May, 1)}
	assert.Nil(t, inverted.Days())
}

func TestDateRangeDaysNormalizesClockTime(t *testing.T) {
	r := DateRange{
		Start: time.Date(2026, time.March, 1, 14, 30, 0, 0, time.UTC),
		End:   time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC),
	}
	days := r.Days()
	require.Len(t, days, 2)
	assert.Equal(t, Day(2026, time.March, 1), days[0])
}

func TestDateRangeContains(t *testing.T) {
	r := DateRange{Start: Day(2026, time.June, 10), End: Day(2026, time.June, 12)}
	assert.True(t, r.Contains(Day(2026, time.June, 10)))
	assert.True(t, r.Contains(Day(2026, time.June, 12)))
	assert.False(t, r.Contains(Day(2026, time.June, 13)))
	assert.False(t, r.Contains(Day(2026, time.June, 9)))
}

func TestPhaseDemandUnits(t *testing.T) {
	d := PhaseDemand{Cars: 2, Buses: 1, Trucks: 1}
	assert.Equal(t, 9, d.Units())
	assert.False(t, d.IsZero())
	assert.True(t, PhaseDemand{}.IsZero())
}

func TestVehiclesFromUnits(t *testing.T) {
	cases := []struct {
		units, weight, want int
	}{
		{5, UnitsPerCar, 5},
		{6, UnitsPerBus, 2},
		{7, UnitsPerBus, 2},  // 2.33 rounds down, one unit of drift
		{8, UnitsPerBus, 3},  // 2.67 rounds up
		{1, UnitsPerBus, 0},
		{8, UnitsPerTruck, 2},
		{10, UnitsPerTruck, 3}, // 2.5 rounds up
		{0, UnitsPerTruck, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, VehiclesFromUnits(c.units, c.weight), "units=%d weight=%d", c.units, c.weight)
	}
}

func TestEventWindowAndPhaseOf(t *testing.T) {
	ev := Event{
		Assembly:    DateRange{Start: Day(2026, time.March, 1), End: Day(2026, time.March, 3)},
		Runtime:     DateRange{Start: Day(2026, time.March, 4), End: Day(2026, time.March, 8)},
		Disassembly: DateRange{Start: Day(2026, time.March, 9), End: Day(2026, time.March, 10)},
	}
	assert.Equal(t, ev.Runtime, ev.Window(PhaseRuntime))

	phase, ok := ev.PhaseOf(Day(2026, time.March, 2))
	require.True(t, ok)
	assert.Equal(t, PhaseAssembly, phase)

	phase, ok = ev.PhaseOf(Day(2026, time.March, 9))
	require.True(t, ok)
	assert.Equal(t, PhaseDisassembly, phase)

	_, ok = ev.PhaseOf(Day(2026, time.March, 11))
	assert.False(t, ok)
}

func TestEventPhaseDemandUnset(t *testing.T) {
	var ev Event
	assert.True(t, ev.PhaseDemand(PhaseRuntime).IsZero())
}

func TestAllocationRecordAllocatedCapacity(t *testing.T) {
	rec := AllocationRecord{Cars: 10, Buses: 2, Trucks: 3}
	assert.Equal(t, 10+6+12, rec.AllocatedCapacity())
}

func TestCapacityRecordCovers(t *testing.T) {
	rec := CapacityRecord{ValidFrom: Day(2026, time.January, 1), ValidTo: Day(2026, time.December, 31)}
	assert.True(t, rec.Covers(Day(2026, time.July, 15)))
	assert.False(t, rec.Covers(Day(2027, time.January, 1)))
}
