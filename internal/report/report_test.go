package report

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const predictionsCSV = `route_pair,prob
45_0_60_1,0.91
12_1_45_0,0.42
60_1_12_1,0.5
45_0_60_1,0.73
`

func TestLoadPredictions(t *testing.T) {
	preds, err := LoadPredictions(strings.NewReader(predictionsCSV), 0.5)
	require.NoError(t, err)
	require.Len(t, preds, 4)

	assert.Equal(t, Prediction{RoutePair: "45_0_60_1", Prob: 0.91, Class: 1}, preds[0])
	assert.Equal(t, 0, preds[1].Class)
	// The threshold itself is not "on time": class needs prob strictly above.
	assert.Equal(t, 0, preds[2].Class)
}

func TestLoadPredictionsBadInput(t *testing.T) {
	_, err := LoadPredictions(strings.NewReader("foo,bar\n1,2\n"), 0.5)
	assert.ErrorContains(t, err, "missing route_pair or prob")

	_, err = LoadPredictions(strings.NewReader("route_pair,prob\nx,notanumber\n"), 0.5)
	assert.ErrorContains(t, err, "bad prob")
}

func TestSummarize(t *testing.T) {
	preds, err := LoadPredictions(strings.NewReader(predictionsCSV), 0.5)
	require.NoError(t, err)

	counts := map[string]int64{
		"45_0_60_1": 120,
		"12_1_45_0": 7,
		// 60_1_12_1 intentionally absent
	}

	rows := Summarize(preds, counts)
	require.Len(t, rows, 4)

	// Ascending by probability: riskiest pairs first.
	assert.Equal(t, "12_1_45_0", rows[0].RoutePair)
	assert.Equal(t, "60_1_12_1", rows[1].RoutePair)
	assert.Equal(t, 0.73, rows[2].Prob)
	assert.Equal(t, 0.91, rows[3].Prob)

	assert.Equal(t, int64(7), rows[0].Count)
	assert.Equal(t, int64(0), rows[1].Count) // missing count joins as zero
	assert.Equal(t, int64(120), rows[3].Count)
}

func TestWriteSummaryCSV(t *testing.T) {
	rows := []SummaryRow{
		{RoutePair: "12_1_45_0", Prob: 0.42, Class: 0, Count: 7},
		{RoutePair: "45_0_60_1", Prob: 0.91, Class: 1, Count: 120},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSummaryCSV(&buf, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "route_pair,prob,class,count", lines[0])
	assert.Equal(t, "12_1_45_0,0.42,0,7", lines[1])
	assert.Equal(t, "45_0_60_1,0.91,1,120", lines[2])
}

func TestCountRoutePairs(t *testing.T) {
	rows := []map[string]string{
		{"route_pair": "a", "y_on_time_b": "1"},
		{"route_pair": "a", "y_on_time_b": "0"},
		{"route_pair": "b", "y_on_time_b": "1"},
		{"other": "x"},
	}
	counts := CountRoutePairs(rows)
	assert.Equal(t, map[string]int64{"a": 2, "b": 1}, counts)
}

func TestAggregateByPair(t *testing.T) {
	preds, err := LoadPredictions(strings.NewReader(predictionsCSV), 0.5)
	require.NoError(t, err)

	aggs := AggregateByPair(preds)
	require.Len(t, aggs, 3)

	// Sorted by mean probability ascending.
	assert.Equal(t, "12_1_45_0", aggs[0].RoutePair)
	assert.Equal(t, "60_1_12_1", aggs[1].RoutePair)

	last := aggs[2]
	assert.Equal(t, "45_0_60_1", last.RoutePair)
	assert.Equal(t, int64(2), last.N)
	assert.InDelta(t, 0.82, last.MeanProb, 1e-9)
	assert.InDelta(t, 1.0, last.ShareOnTime, 1e-9)
}

func TestRenderPairBarChart(t *testing.T) {
	preds, err := LoadPredictions(strings.NewReader(predictionsCSV), 0.5)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderPairBarChart(&buf, AggregateByPair(preds), 2))
	html := buf.String()
	assert.Contains(t, html, "Route Pair On-Time Probability")
	assert.Contains(t, html, "12_1_45_0")
}

func TestSaveProbHistogram(t *testing.T) {
	preds, err := LoadPredictions(strings.NewReader(predictionsCSV), 0.5)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "probs.png")
	require.NoError(t, SaveProbHistogram(preds, 10, path))
	assert.FileExists(t, path)
}
