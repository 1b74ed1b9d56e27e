package report

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Aggregate is the per-route-pair rollup of a prediction set.
type Aggregate struct {
	RoutePair   string
	N           int64
	MeanProb    float64
	ShareOnTime float64 // fraction of predictions in class 1
}

// AggregateByPair groups predictions by route pair. Output is sorted by
// mean probability ascending, matching the summary ordering.
func AggregateByPair(preds []Prediction) []Aggregate {
	byPair := make(map[string][]Prediction)
	for _, p := range preds {
		byPair[p.RoutePair] = append(byPair[p.RoutePair], p)
	}

	aggs := make([]Aggregate, 0, len(byPair))
	for key, group := range byPair {
		probs := make([]float64, len(group))
		var onTime int64
		for i, p := range group {
			probs[i] = p.Prob
			if p.Class == 1 {
				onTime++
			}
		}
		aggs = append(aggs, Aggregate{
			RoutePair:   key,
			N:           int64(len(group)),
			MeanProb:    stat.Mean(probs, nil),
			ShareOnTime: float64(onTime) / float64(len(group)),
		})
	}

	sort.SliceStable(aggs, func(i, j int) bool {
		if aggs[i].MeanProb != aggs[j].MeanProb {
			return aggs[i].MeanProb < aggs[j].MeanProb
		}
		return aggs[i].RoutePair < aggs[j].RoutePair
	})
	return aggs
}
