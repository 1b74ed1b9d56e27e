// Package stats computes historical variability cells for trip executions.
//
// A cell aggregates the deviation between real and planned duration over a
// group of historical executions, plus duration percentiles used as risk
// features. Cells are computed once per batch run, before any pairing or
// windowing begins, and are immutable afterwards.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/rtl-data/blockpairs/internal/db"
)

// GroupBy selects the variability grouping key.
type GroupBy int

const (
	// ByTrip groups historical executions by raw trip ID.
	ByTrip GroupBy = iota
	// ByRouteDirStart groups by (route, direction, planned start), which
	// generalises across dates sharing the same scheduled trip definition.
	ByRouteDirStart
)

// Key identifies one variability cell. Only the fields relevant to the
// chosen grouping are populated.
type Key struct {
	TripID          string
	RouteID         string
	DirectionID     int64
	PlannedStartSec int64
}

// KeyFor derives the grouping key for a trip execution.
func KeyFor(t db.TripExecution, by GroupBy) Key {
	if by == ByTrip {
		return Key{TripID: t.TripID}
	}
	return Key{
		RouteID:         t.RouteID,
		DirectionID:     t.DirectionID,
		PlannedStartSec: t.PlannedStartSec,
	}
}

// Cell holds the aggregated variability statistics for one group.
type Cell struct {
	MeanDeviation float64 `json:"mean_deviation"` // mean(real - planned), seconds
	P25           float64 `json:"p25"`            // percentiles of real duration
	P75           float64 `json:"p75"`
	P85           float64 `json:"p85"`
	Range7525     float64 `json:"range7525"` // p75 - p25, dispersion feature
	// P85Ratio is p85 of the real durations over the mean planned duration
	// of the group. Within a (route, direction, start) cell the planned
	// duration is normally a single schedule value, so the mean is that
	// value; when a schedule change mixes durations inside one cell the
	// mean keeps the ratio stable instead of tying it to an arbitrary row.
	P85Ratio float64 `json:"p85_pct"`
	Count    int     `json:"count"`
}

// Compute aggregates variability cells over the given history. Rows
// without an observed duration are excluded from aggregation. The result
// is independent of input order.
func Compute(history []db.TripExecution, by GroupBy) map[Key]Cell {
	type acc struct {
		deviations []float64
		reals      []float64
		planned    []float64
	}
	groups := make(map[Key]*acc)

	for _, t := range history {
		if !t.RealDurationSec.Valid {
			continue
		}
		k := KeyFor(t, by)
		a := groups[k]
		if a == nil {
			a = &acc{}
			groups[k] = a
		}
		a.deviations = append(a.deviations, float64(t.RealDurationSec.Int64-t.PlannedDurationSec))
		a.reals = append(a.reals, float64(t.RealDurationSec.Int64))
		a.planned = append(a.planned, float64(t.PlannedDurationSec))
	}

	cells := make(map[Key]Cell, len(groups))
	for k, a := range groups {
		sort.Float64s(a.reals)

		c := Cell{
			MeanDeviation: stat.Mean(a.deviations, nil),
			P25:           Percentile(a.reals, 0.25),
			P75:           Percentile(a.reals, 0.75),
			P85:           Percentile(a.reals, 0.85),
			Count:         len(a.reals),
		}
		c.Range7525 = c.P75 - c.P25
		if mp := stat.Mean(a.planned, nil); mp != 0 {
			c.P85Ratio = c.P85 / mp
		}
		cells[k] = c
	}

	return cells
}

// Percentile returns the continuous p-th percentile of sorted, using
// linear interpolation between order statistics (not nearest-rank).
// sorted must be in ascending order; p in [0, 1].
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}

	h := p * float64(n-1)
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
