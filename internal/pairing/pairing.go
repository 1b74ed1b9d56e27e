// Package pairing links each trip execution to its immediate successor on
// the same vehicle block, producing one training row per adjacent pair.
package pairing

import (
	"sort"

	"github.com/rtl-data/blockpairs/internal/blocks"
	"github.com/rtl-data/blockpairs/internal/trips"
)

// FeatureSet selects which variability enrichment the emitted pairs carry.
type FeatureSet int

const (
	// FeaturesBase carries schedule-only features.
	FeaturesBase FeatureSet = iota
	// FeaturesAvgVar adds the per-trip mean duration deviation for both sides.
	FeaturesAvgVar
	// FeaturesP85 adds the route/direction/start percentile features of the
	// successor trip.
	FeaturesP85
)

// Options control pairing behaviour. Use the pipeline configuration to
// fill them so training and inference agree.
type Options struct {
	Features        FeatureSet
	OnTimeThreshold float64 // positive class cutoff on on_time_pct
	MaxLayoverSec   int64   // pairs at or beyond this layover are dropped
	AMPeak          trips.Window
	PMPeak          trips.Window
}

// Pair is one adjacent (tripA, tripB) link within a block, with the
// engineered features of the single-step classifier.
type Pair struct {
	Date     string
	BlockKey string
	TripA    trips.Trip
	TripB    trips.Trip

	YOnTimeB          int // training label: successor on-time class
	OnTimeA           int
	PlannedLayoverSec int64
	AMPeakA           int
	PMPeakA           int
	RoutePair         string

	// Populated per feature set.
	AvgVarA    float64
	AvgVarB    float64
	P85PctB    float64
	Range7525B float64
}

// RejectCounts tallies pairs excluded during the build, so that nothing
// is dropped without a record.
type RejectCounts struct {
	MissingLabel       int64 // pairs with an unknown on-time outcome on either side
	MissingVariability int64 // pairs lacking variability enrichment when required
	LayoverOutOfRange  int64 // pairs with a layover at or beyond the bound
}

// BuildPairs orders each (date, block key) partition by planned start and
// links adjacent executions. The sort is stable: rows sharing a planned
// start keep their original report order. A partition of size 1 yields no
// pairs; the last trip of a block only ever appears as a successor.
func BuildPairs(rows []trips.Trip, opts Options) ([]Pair, RejectCounts) {
	var rejects RejectCounts

	groups := make(map[blocks.GroupKey][]trips.Trip)
	var order []blocks.GroupKey
	for _, t := range rows {
		k := t.GroupKey()
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], t)
	}

	var pairs []Pair
	for _, k := range order {
		part := groups[k]
		sort.SliceStable(part, func(i, j int) bool {
			return part[i].PlannedStartSec < part[j].PlannedStartSec
		})

		for i := 0; i+1 < len(part); i++ {
			p, reject := makePair(k, part[i], part[i+1], opts)
			if reject != nil {
				reject(&rejects)
				continue
			}
			pairs = append(pairs, p)
		}
	}

	return pairs, rejects
}

// makePair assembles one pair, or returns a reject tally function when the
// pair must be dropped.
func makePair(k blocks.GroupKey, a, b trips.Trip, opts Options) (Pair, func(*RejectCounts)) {
	if !a.OnTimePct.Valid || !b.OnTimePct.Valid {
		return Pair{}, func(r *RejectCounts) { r.MissingLabel++ }
	}

	switch opts.Features {
	case FeaturesAvgVar:
		if a.AvgVar == nil || b.AvgVar == nil {
			return Pair{}, func(r *RejectCounts) { r.MissingVariability++ }
		}
	case FeaturesP85:
		if b.Cell == nil {
			return Pair{}, func(r *RejectCounts) { r.MissingVariability++ }
		}
	}

	// Negative planned layovers (overlapping schedule) clamp to zero; a
	// layover at or beyond the bound means the successor is not "the next
	// trip on this vehicle" in the modelled sense, so the pair is dropped
	// outright rather than clipped.
	layover := b.PlannedStartSec - (a.PlannedStartSec + a.PlannedDurationSec)
	if layover < 0 {
		layover = 0
	}
	if layover >= opts.MaxLayoverSec {
		return Pair{}, func(r *RejectCounts) { r.LayoverOutOfRange++ }
	}

	p := Pair{
		Date:              k.Date,
		BlockKey:          k.Key,
		TripA:             a,
		TripB:             b,
		YOnTimeB:          trips.OnTimeClass(b.OnTimePct.Float64, opts.OnTimeThreshold),
		OnTimeA:           trips.OnTimeClass(a.OnTimePct.Float64, opts.OnTimeThreshold),
		PlannedLayoverSec: layover,
		RoutePair:         RoutePairKey(a, b),
	}
	if opts.AMPeak.Contains(a.PlannedStartSec) {
		p.AMPeakA = 1
	}
	if opts.PMPeak.Contains(a.PlannedStartSec) {
		p.PMPeakA = 1
	}

	switch opts.Features {
	case FeaturesAvgVar:
		p.AvgVarA = *a.AvgVar
		p.AvgVarB = *b.AvgVar
	case FeaturesP85:
		p.P85PctB = b.Cell.P85Ratio
		p.Range7525B = b.Cell.Range7525
	}

	return p, nil
}
