// Package distance holds the static origin-to-lot distance table used by
// both allocation engines. Origins are hall or entrance ids; a missing
// pair means the lot is unreachable from that origin.
package distance

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
)

type key struct {
	origin int
	lot    int
}

// Table is an immutable lookup from (origin, lot) to a walking-distance
// cost. Build it once at startup and share it; lookups are read-only.
type Table struct {
	pairs map[key]float64
}

// New returns an empty table.
func New() *Table {
	return &Table{pairs: map[key]float64{}}
}

// Add records the distance between an origin and a lot.
func (t *Table) Add(origin, lot int, dist float64) {
	t.pairs[key{origin: origin, lot: lot}] = dist
}

// Between returns the distance from origin to lot, or +Inf when the pair
// is absent (the lot is excluded from consideration for that origin).
func (t *Table) Between(origin, lot int) float64 {
	if d, ok := t.pairs[key{origin: origin, lot: lot}]; ok {
		return d
	}
	return math.Inf(1)
}

// Average is the mean distance from a set of origins to a lot, taken
// over the pairs that exist. Origins with no entry are excluded from the
// mean rather than penalized; if no pair exists the result is +Inf.
func (t *Table) Average(origins []int, lot int) float64 {
	var sum float64
	var n int
	for _, origin := range origins {
		if d, ok := t.pairs[key{origin: origin, lot: lot}]; ok {
			sum += d
			n++
		}
	}
	if n == 0 {
		return math.Inf(1)
	}
	return sum / float64(n)
}

// Len returns the number of known pairs.
func (t *Table) Len() int {
	return len(t.pairs)
}

// ReadCSV parses "origin,lot,distance" lines. Blank lines are skipped.
func ReadCSV(r io.Reader) (*Table, error) {
	t := New()
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		parts := strings.Split(text, ",")
		if len(parts) != 3 {
			return nil, fmt.Errorf("distance table line %d: expected origin,lot,distance", line)
		}
		origin, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("distance table line %d: origin: %w", line, err)
		}
		lot, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("distance table line %d: lot: %w", line, err)
		}
		dist, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("distance table line %d: distance: %w", line, err)
		}
		t.Add(origin, lot, dist)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read distance table: %w", err)
	}
	return t, nil
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the surveyed fairground matrix: origins 1-5 against
// lots 1-20. It is the dataset shipped with the system; deployments with
// their own survey load a CSV instead.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := ReadCSV(strings.NewReader(defaultMatrix))
		if err != nil {
			// The embedded matrix is a compile-time constant.
			panic(fmt.Sprintf("parse embedded distance matrix: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

const defaultMatrix = `
1,1,370
1,2,767
1,3,900
1,4,1010
1,5,1370
1,6,1436
1,7,1840
1,8,1920
1,9,2000
1,10,2086
1,11,962
1,12,982
1,13,1050
1,14,1120
1,15,1210
1,16,1370
1,17,1460
1,18,1620
1,19,1670
1,20,1830
2,1,120
2,2,472
2,3,574
2,4,566
2,5,918
2,6,1012
2,7,1430
2,8,1490
2,9,1570
2,10,1640
2,11,545
2,12,540
2,13,622
2,14,695
2,15,790
2,16,890
2,17,970
2,18,1050
2,19,1140
2,20,1420
3,1,631
3,2,50
3,3,50
3,4,171
3,5,526
3,6,597
3,7,1000
3,8,1080
3,9,1160
3,10,1240
3,11,143
3,12,151
3,13,213
3,14,280
3,15,540
3,16,611
3,17,650
3,18,742
3,19,750
3,20,997
4,1,946
4,2,378
4,3,270
4,4,151
4,5,180
4,6,261
4,7,658
4,8,736
4,9,812
4,10,896
4,11,485
4,12,365
4,13,265
4,14,221
4,15,226
4,16,209
4,17,294
4,18,325
4,19,439
4,20,680
5,1,1320
5,2,760
5,3,606
5,4,530
5,5,153
5,6,175
5,7,187
5,8,283
5,9,354
5,10,446
5,11,963
5,12,947
5,13,755
5,14,687
5,15,682
5,16,667
5,17,635
5,18,560
5,19,552
5,20,739
`
