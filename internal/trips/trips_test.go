package trips

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtl-data/blockpairs/internal/db"
	"github.com/rtl-data/blockpairs/internal/stats"
)

func TestEnrich(t *testing.T) {
	rows := []db.TripExecution{
		{Date: "2026-01-05", BlockID: "B1_1", TripID: "T1", RouteID: "45", PlannedStartSec: 28800},
		{Date: "2026-01-05", BlockID: "nodash", TripID: "T2", RouteID: "45", PlannedStartSec: 29500},
		{Date: "2026-01-05", BlockID: "B1_2", TripID: "T3", RouteID: "45", PlannedStartSec: 30000},
	}
	tripCells := map[stats.Key]stats.Cell{
		{TripID: "T1"}: {MeanDeviation: -12.5},
	}
	routeCells := map[stats.Key]stats.Cell{
		{RouteID: "45", DirectionID: 0, PlannedStartSec: 30000}: {P85Ratio: 1.1, Range7525: 80},
	}

	enriched, malformed := Enrich(rows, tripCells, routeCells)
	assert.Equal(t, int64(1), malformed)
	require.Len(t, enriched, 2)

	first := enriched[0]
	assert.Equal(t, "B1", first.Block.Key)
	require.NotNil(t, first.AvgVar)
	assert.InDelta(t, -12.5, *first.AvgVar, 1e-9)
	assert.Nil(t, first.Cell)

	second := enriched[1]
	assert.Nil(t, second.AvgVar)
	require.NotNil(t, second.Cell)
	assert.InDelta(t, 1.1, second.Cell.P85Ratio, 1e-9)
}

func TestWindowContains(t *testing.T) {
	am := Window{StartSec: 21600, EndSec: 32400}

	assert.False(t, am.Contains(21600)) // lower bound is exclusive
	assert.True(t, am.Contains(21601))
	assert.True(t, am.Contains(32400)) // upper bound is inclusive
	assert.False(t, am.Contains(32401))
}

func TestOnTimeClass(t *testing.T) {
	assert.Equal(t, 1, OnTimeClass(0.85, 0.85)) // threshold itself is on time
	assert.Equal(t, 1, OnTimeClass(0.9, 0.85))
	assert.Equal(t, 0, OnTimeClass(0.8499, 0.85))
}

func TestGroupKey(t *testing.T) {
	tr := Trip{TripExecution: db.TripExecution{Date: "2026-01-05"}}
	tr.Block.Key = "B1"
	assert.Equal(t, "2026-01-05/B1", tr.GroupKey().String())
}
