// Package encode turns feature rows into numeric vectors: z-scored
// numeric columns followed by one-hot categorical blocks. The fitted
// statistics and vocabularies are persisted as JSON artifacts so that
// inference reproduces the training encoding exactly.
package encode

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"
)

// Spec names the columns to encode, in vector order: numeric columns
// first, then one one-hot block per categorical column.
type Spec struct {
	Numeric     []string
	Categorical []string
}

// NumericStats holds the per-column normalization parameters.
type NumericStats struct {
	Mean map[string]float64 `json:"mean"`
	Std  map[string]float64 `json:"std"`
}

// CategoryMap is the fitted vocabulary of one categorical column. Size is
// the one-hot width; values absent from Map encode as an all-zero block.
type CategoryMap struct {
	Map  map[string]int `json:"map"`
	Size int            `json:"size"`
}

// Encoder applies a fitted encoding. Construct one with Fit or
// LoadArtifacts.
type Encoder struct {
	Spec       Spec
	Stats      NumericStats
	Categories map[string]CategoryMap

	// Clip, when positive, clamps each z-scored value to [-Clip, Clip].
	// Zero disables clamping.
	Clip float64
}

// Fit computes normalization statistics and categorical vocabularies over
// rows. Numeric statistics use the population standard deviation; a
// constant column gets std 1 so its values encode as exact zeros instead
// of dividing by zero. Vocabularies are sorted, so the same data always
// yields the same index assignment.
func Fit(rows []map[string]string, spec Spec) (*Encoder, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("cannot fit encoder on zero rows")
	}

	enc := &Encoder{
		Spec: spec,
		Stats: NumericStats{
			Mean: make(map[string]float64, len(spec.Numeric)),
			Std:  make(map[string]float64, len(spec.Numeric)),
		},
		Categories: make(map[string]CategoryMap, len(spec.Categorical)),
	}

	for _, col := range spec.Numeric {
		vals := make([]float64, 0, len(rows))
		for i, row := range rows {
			v, err := numericValue(row, col)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			vals = append(vals, v)
		}
		mean := stat.Mean(vals, nil)
		std := stat.PopStdDev(vals, nil)
		if std == 0 {
			std = 1
		}
		enc.Stats.Mean[col] = mean
		enc.Stats.Std[col] = std
	}

	for _, col := range spec.Categorical {
		seen := make(map[string]struct{})
		for i, row := range rows {
			v, ok := row[col]
			if !ok {
				return nil, fmt.Errorf("row %d: missing categorical column %q", i, col)
			}
			seen[v] = struct{}{}
		}
		vocab := make([]string, 0, len(seen))
		for v := range seen {
			vocab = append(vocab, v)
		}
		sort.Strings(vocab)

		m := CategoryMap{Map: make(map[string]int, len(vocab)), Size: len(vocab)}
		for i, v := range vocab {
			m.Map[v] = i
		}
		enc.Categories[col] = m
	}

	return enc, nil
}

// Width returns the length of the encoded vector.
func (e *Encoder) Width() int {
	w := len(e.Spec.Numeric)
	for _, col := range e.Spec.Categorical {
		w += e.Categories[col].Size
	}
	return w
}

// Transform encodes one row. Numeric columns that fail to parse or are
// not finite are an error: silent NaN propagation into a model input is
// worse than a failed run. Unseen categorical values encode as an
// all-zero block.
func (e *Encoder) Transform(row map[string]string) ([]float64, error) {
	out := make([]float64, 0, e.Width())

	for _, col := range e.Spec.Numeric {
		v, err := numericValue(row, col)
		if err != nil {
			return nil, err
		}
		z := (v - e.Stats.Mean[col]) / e.Stats.Std[col]
		if e.Clip > 0 {
			z = math.Max(-e.Clip, math.Min(e.Clip, z))
		}
		out = append(out, z)
	}

	for _, col := range e.Spec.Categorical {
		m := e.Categories[col]
		block := make([]float64, m.Size)
		if idx, ok := m.Map[row[col]]; ok {
			block[idx] = 1
		}
		out = append(out, block...)
	}

	return out, nil
}

// TransformAll encodes rows into a row-major matrix.
func (e *Encoder) TransformAll(rows []map[string]string) ([][]float64, error) {
	out := make([][]float64, 0, len(rows))
	for i, row := range rows {
		vec, err := e.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, vec)
	}
	return out, nil
}

func numericValue(row map[string]string, col string) (float64, error) {
	raw, ok := row[col]
	if !ok {
		return 0, fmt.Errorf("missing numeric column %q", col)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("numeric column %q: bad value %q: %w", col, raw, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("numeric column %q: non-finite value %q", col, raw)
	}
	return v, nil
}
