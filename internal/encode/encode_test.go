package encode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fitRows() []map[string]string {
	return []map[string]string{
		{"layover": "2", "dur": "600", "route_pair": "45_0_60_1", "y": "1"},
		{"layover": "4", "dur": "600", "route_pair": "12_1_45_0", "y": "0"},
	}
}

func testSpec() Spec {
	return Spec{Numeric: []string{"layover", "dur"}, Categorical: []string{"route_pair"}}
}

func TestFitAndTransform(t *testing.T) {
	enc, err := Fit(fitRows(), testSpec())
	require.NoError(t, err)

	// layover: mean 3, population std 1.
	assert.InDelta(t, 3, enc.Stats.Mean["layover"], 1e-9)
	assert.InDelta(t, 1, enc.Stats.Std["layover"], 1e-9)
	// dur is constant: std falls back to 1 so values encode as zero.
	assert.InDelta(t, 1, enc.Stats.Std["dur"], 1e-9)

	// Vocabulary is sorted, so index assignment is reproducible.
	m := enc.Categories["route_pair"]
	assert.Equal(t, 2, m.Size)
	assert.Equal(t, 0, m.Map["12_1_45_0"])
	assert.Equal(t, 1, m.Map["45_0_60_1"])

	assert.Equal(t, 4, enc.Width())

	vec, err := enc.Transform(fitRows()[0])
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-1, 0, 0, 1}, vec, 1e-9)
}

func TestTransformUnseenCategory(t *testing.T) {
	enc, err := Fit(fitRows(), testSpec())
	require.NoError(t, err)

	vec, err := enc.Transform(map[string]string{
		"layover": "3", "dur": "600", "route_pair": "99_0_99_1",
	})
	require.NoError(t, err)
	// Unseen value encodes as an all-zero block, not an error.
	assert.InDeltaSlice(t, []float64{0, 0, 0, 0}, vec, 1e-9)
}

func TestTransformClip(t *testing.T) {
	enc, err := Fit(fitRows(), testSpec())
	require.NoError(t, err)
	enc.Clip = 5

	vec, err := enc.Transform(map[string]string{
		"layover": "1000", "dur": "600", "route_pair": "45_0_60_1",
	})
	require.NoError(t, err)
	assert.InDelta(t, 5, vec[0], 1e-9)

	vec, err = enc.Transform(map[string]string{
		"layover": "-1000", "dur": "600", "route_pair": "45_0_60_1",
	})
	require.NoError(t, err)
	assert.InDelta(t, -5, vec[0], 1e-9)
}

func TestTransformRejectsBadNumerics(t *testing.T) {
	enc, err := Fit(fitRows(), testSpec())
	require.NoError(t, err)

	_, err = enc.Transform(map[string]string{"dur": "600", "route_pair": "45_0_60_1"})
	assert.ErrorContains(t, err, "missing numeric column")

	_, err = enc.Transform(map[string]string{"layover": "abc", "dur": "600", "route_pair": "x"})
	assert.ErrorContains(t, err, "bad value")

	_, err = enc.Transform(map[string]string{"layover": "NaN", "dur": "600", "route_pair": "x"})
	assert.ErrorContains(t, err, "non-finite")
}

func TestFitRejectsEmptyAndBadInput(t *testing.T) {
	_, err := Fit(nil, testSpec())
	assert.Error(t, err)

	rows := fitRows()
	rows[1]["layover"] = "oops"
	_, err = Fit(rows, testSpec())
	assert.ErrorContains(t, err, "row 1")
}

func TestArtifactsRoundTrip(t *testing.T) {
	dir := t.TempDir()

	enc, err := Fit(fitRows(), testSpec())
	require.NoError(t, err)
	require.NoError(t, enc.SaveArtifacts(dir))

	loaded, err := LoadArtifacts(dir, testSpec())
	require.NoError(t, err)
	assert.Equal(t, enc.Stats, loaded.Stats)
	assert.Equal(t, enc.Categories, loaded.Categories)

	vec, err := loaded.Transform(fitRows()[0])
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-1, 0, 0, 1}, vec, 1e-9)
}

func TestLoadArtifactsRejectsSchemaDrift(t *testing.T) {
	dir := t.TempDir()

	enc, err := Fit(fitRows(), testSpec())
	require.NoError(t, err)
	require.NoError(t, enc.SaveArtifacts(dir))

	// An extra numeric column the artifacts never saw.
	drifted := Spec{Numeric: []string{"layover", "dur", "extra"}, Categorical: []string{"route_pair"}}
	_, err = LoadArtifacts(dir, drifted)
	assert.Error(t, err)

	// A categorical column the artifacts never saw.
	drifted = Spec{Numeric: []string{"layover", "dur"}, Categorical: []string{"other"}}
	_, err = LoadArtifacts(dir, drifted)
	assert.Error(t, err)

	_, err = LoadArtifacts(t.TempDir(), testSpec())
	assert.Error(t, err, "missing artifact files")
}

func TestReadRows(t *testing.T) {
	csvData := "a,b\n1,x\n2,y\n"
	rows, err := ReadRows(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]string{"a": "1", "b": "x"}, rows[0])
	assert.Equal(t, map[string]string{"a": "2", "b": "y"}, rows[1])
}
