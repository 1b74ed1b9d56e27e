// Package trips holds the enriched trip-execution row shared by the
// pairing and windowing engines: the raw report row joined with its
// parsed block identifier and variability cells.
package trips

import (
	"github.com/rtl-data/blockpairs/internal/blocks"
	"github.com/rtl-data/blockpairs/internal/db"
	"github.com/rtl-data/blockpairs/internal/stats"
)

// Trip is a trip execution ready for pairing or windowing.
type Trip struct {
	db.TripExecution
	Block blocks.ID

	// AvgVar is the per-trip mean deviation; nil when the trip has no
	// history under the per-trip grouping.
	AvgVar *float64
	// Cell is the route/direction/start variability cell; nil when absent.
	Cell *stats.Cell
}

// Enrich parses block identifiers and left-joins variability cells onto
// the raw rows. Rows with malformed block identifiers cannot be assigned
// a block key; they are counted and excluded, never silently dropped.
// Either cell map may be nil when the corresponding enrichment is off.
func Enrich(rows []db.TripExecution, tripCells, routeCells map[stats.Key]stats.Cell) ([]Trip, int64) {
	out := make([]Trip, 0, len(rows))
	var malformed int64

	for _, r := range rows {
		id, err := blocks.Parse(r.BlockID)
		if err != nil {
			malformed++
			continue
		}

		t := Trip{TripExecution: r, Block: id}
		if tripCells != nil {
			if c, ok := tripCells[stats.KeyFor(r, stats.ByTrip)]; ok {
				v := c.MeanDeviation
				t.AvgVar = &v
			}
		}
		if routeCells != nil {
			if c, ok := routeCells[stats.KeyFor(r, stats.ByRouteDirStart)]; ok {
				cell := c
				t.Cell = &cell
			}
		}
		out = append(out, t)
	}

	return out, malformed
}

// GroupKey returns the (date, block key) partition of the trip.
func (t Trip) GroupKey() blocks.GroupKey {
	return blocks.GroupKey{Date: t.Date, Key: t.Block.Key}
}

// Window is a clock-time interval over seconds of day, with an exclusive
// lower bound and an inclusive upper bound.
type Window struct {
	StartSec int64
	EndSec   int64
}

// Contains reports whether sec falls inside the window.
func (w Window) Contains(sec int64) bool {
	return sec > w.StartSec && sec <= w.EndSec
}

// OnTimeClass thresholds an on-time percentage into the binary class.
func OnTimeClass(pct, threshold float64) int {
	if pct >= threshold {
		return 1
	}
	return 0
}
