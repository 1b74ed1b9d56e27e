package stats

import (
	"database/sql"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtl-data/blockpairs/internal/db"
)

func execution(date, tripID string, real int64) db.TripExecution {
	return db.TripExecution{
		Date:               date,
		ServiceID:          1,
		BlockID:            "B1_1",
		TripID:             tripID,
		RouteID:            "45",
		DirectionID:        0,
		PlannedStartSec:    28800,
		PlannedDurationSec: 600,
		RealDurationSec:    sql.NullInt64{Int64: real, Valid: true},
		OnTimePct:          sql.NullFloat64{Float64: 0.9, Valid: true},
	}
}

func TestPercentile(t *testing.T) {
	sorted := []float64{100, 200, 300, 400, 500}

	assert.InDelta(t, 200, Percentile(sorted, 0.25), 1e-9)
	assert.InDelta(t, 300, Percentile(sorted, 0.50), 1e-9)
	assert.InDelta(t, 400, Percentile(sorted, 0.75), 1e-9)
	assert.InDelta(t, 440, Percentile(sorted, 0.85), 1e-9)
	assert.InDelta(t, 100, Percentile(sorted, 0), 1e-9)
	assert.InDelta(t, 500, Percentile(sorted, 1), 1e-9)

	assert.InDelta(t, 42, Percentile([]float64{42}, 0.85), 1e-9)
	assert.True(t, math.IsNaN(Percentile(nil, 0.5)))
}

func TestComputeByRouteDirStart(t *testing.T) {
	history := []db.TripExecution{
		execution("2026-01-05", "T1", 100),
		execution("2026-01-06", "T2", 200),
		execution("2026-01-07", "T3", 300),
		execution("2026-01-08", "T4", 400),
		execution("2026-01-09", "T5", 500),
	}
	// A row without an observed duration contributes nothing.
	noReal := execution("2026-01-12", "T6", 0)
	noReal.RealDurationSec = sql.NullInt64{}
	history = append(history, noReal)

	cells := Compute(history, ByRouteDirStart)
	require.Len(t, cells, 1)

	key := Key{RouteID: "45", DirectionID: 0, PlannedStartSec: 28800}
	cell, ok := cells[key]
	require.True(t, ok)

	assert.Equal(t, 5, cell.Count)
	assert.InDelta(t, -300, cell.MeanDeviation, 1e-9) // mean(real) 300 vs planned 600
	assert.InDelta(t, 200, cell.P25, 1e-9)
	assert.InDelta(t, 400, cell.P75, 1e-9)
	assert.InDelta(t, 440, cell.P85, 1e-9)
	assert.InDelta(t, 200, cell.Range7525, 1e-9)
	assert.InDelta(t, 440.0/600.0, cell.P85Ratio, 1e-9)
}

func TestComputeByTrip(t *testing.T) {
	a1 := execution("2026-01-05", "T1", 650)
	a2 := execution("2026-01-06", "T1", 550)
	b := execution("2026-01-05", "T2", 700)
	b.PlannedStartSec = 30000

	cells := Compute([]db.TripExecution{a1, a2, b}, ByTrip)
	require.Len(t, cells, 2)

	t1 := cells[Key{TripID: "T1"}]
	assert.Equal(t, 2, t1.Count)
	assert.InDelta(t, 0, t1.MeanDeviation, 1e-9) // +50 and -50 cancel

	t2 := cells[Key{TripID: "T2"}]
	assert.Equal(t, 1, t2.Count)
	assert.InDelta(t, 100, t2.MeanDeviation, 1e-9)
}

func TestComputeIsOrderIndependent(t *testing.T) {
	history := []db.TripExecution{
		execution("2026-01-05", "T1", 100),
		execution("2026-01-06", "T2", 500),
		execution("2026-01-07", "T3", 300),
	}
	reversed := []db.TripExecution{history[2], history[1], history[0]}

	got := Compute(history, ByRouteDirStart)
	want := Compute(reversed, ByRouteDirStart)
	assert.True(t, cmp.Equal(want, got), cmp.Diff(want, got))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	for _, by := range []GroupBy{ByTrip, ByRouteDirStart} {
		history := []db.TripExecution{
			execution("2026-01-05", "T1", 100),
			execution("2026-01-06", "T1", 300),
			execution("2026-01-07", "T2", 200),
		}
		cells := Compute(history, by)

		path := filepath.Join(dir, "cells.json")
		require.NoError(t, Save(path, by, cells))

		gotBy, got, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, by, gotBy)
		assert.True(t, cmp.Equal(cells, got), cmp.Diff(cells, got))
	}
}
