// Package report consumes model prediction CSVs and joins them back to
// the observed pairing data: summary tables, per-route-pair aggregates,
// and charts.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// Prediction is one scored row from the model: the route pair key, the
// predicted probability that the successor trip runs on time, and the
// thresholded class.
type Prediction struct {
	RoutePair string
	Prob      float64
	Class     int
}

// LoadPredictions reads a prediction CSV with route_pair and prob
// columns. The class is derived here from threshold, not read from the
// file, so re-thresholding never requires rescoring.
func LoadPredictions(r io.Reader, threshold float64) ([]Prediction, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read predictions header: %w", err)
	}
	pairCol, probCol := -1, -1
	for i, col := range header {
		switch col {
		case "route_pair":
			pairCol = i
		case "prob":
			probCol = i
		}
	}
	if pairCol < 0 || probCol < 0 {
		return nil, fmt.Errorf("predictions CSV missing route_pair or prob column, got %v", header)
	}

	var preds []Prediction
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read predictions row %d: %w", len(preds)+1, err)
		}
		prob, err := strconv.ParseFloat(rec[probCol], 64)
		if err != nil {
			return nil, fmt.Errorf("predictions row %d: bad prob %q: %w", len(preds)+1, rec[probCol], err)
		}
		p := Prediction{RoutePair: rec[pairCol], Prob: prob}
		if prob > threshold {
			p.Class = 1
		}
		preds = append(preds, p)
	}

	return preds, nil
}

// CountRoutePairs tallies the route_pair column of feature rows, giving
// the number of observed pairs behind each key.
func CountRoutePairs(rows []map[string]string) map[string]int64 {
	counts := make(map[string]int64)
	for _, row := range rows {
		if k, ok := row["route_pair"]; ok {
			counts[k]++
		}
	}
	return counts
}

// SummaryRow is one prediction joined with its observation count.
type SummaryRow struct {
	RoutePair string
	Prob      float64
	Class     int
	Count     int64
}

// Summarize joins predictions with observation counts and sorts ascending
// by probability, so the riskiest route pairs lead the output. A route
// pair absent from counts gets count 0 rather than being dropped.
func Summarize(preds []Prediction, counts map[string]int64) []SummaryRow {
	rows := make([]SummaryRow, 0, len(preds))
	for _, p := range preds {
		rows = append(rows, SummaryRow{
			RoutePair: p.RoutePair,
			Prob:      p.Prob,
			Class:     p.Class,
			Count:     counts[p.RoutePair],
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Prob < rows[j].Prob })
	return rows
}

// WriteSummaryCSV streams summary rows to w.
func WriteSummaryCSV(w io.Writer, rows []SummaryRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"route_pair", "prob", "class", "count"}); err != nil {
		return fmt.Errorf("failed to write summary header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.RoutePair,
			strconv.FormatFloat(r.Prob, 'g', -1, 64),
			strconv.Itoa(r.Class),
			strconv.FormatInt(r.Count, 10),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
