package pairing

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/rtl-data/blockpairs/internal/trips"
)

// RoutePairKey is the composite categorical key of a pair: route and
// direction of both sides, joined with a fixed separator. It is the sole
// categorical feature of the single-step model.
func RoutePairKey(a, b trips.Trip) string {
	return fmt.Sprintf("%s_%d_%s_%d", a.RouteID, a.DirectionID, b.RouteID, b.DirectionID)
}

// Header returns the exact output column names for a feature set. The
// names and their order are an external contract: the model and the
// reporting pass depend on them.
func Header(fs FeatureSet) []string {
	switch fs {
	case FeaturesAvgVar:
		return []string{
			"y_on_time_b", "on_time_a",
			"planned_dur_a", "planned_dur_b",
			"avg_var_a", "avg_var_b",
			"planned_layover_sec", "ampeak_a", "pmpeak_a", "route_pair",
		}
	case FeaturesP85:
		return []string{
			"y_on_time_b", "on_time_a",
			"planned_layover_sec", "p85_pct_b", "planned_dur_b", "range7525_b",
			"ampeak_a", "pmpeak_a", "route_pair",
		}
	default:
		return []string{
			"y_on_time_b", "on_time_a",
			"planned_dur_a", "planned_dur_b",
			"planned_layover_sec", "ampeak_a", "pmpeak_a", "route_pair",
		}
	}
}

// Record renders the pair as a CSV record matching Header(fs).
func (p Pair) Record(fs FeatureSet) []string {
	switch fs {
	case FeaturesAvgVar:
		return []string{
			strconv.Itoa(p.YOnTimeB), strconv.Itoa(p.OnTimeA),
			strconv.FormatInt(p.TripA.PlannedDurationSec, 10),
			strconv.FormatInt(p.TripB.PlannedDurationSec, 10),
			formatFloat(p.AvgVarA), formatFloat(p.AvgVarB),
			strconv.FormatInt(p.PlannedLayoverSec, 10),
			strconv.Itoa(p.AMPeakA), strconv.Itoa(p.PMPeakA), p.RoutePair,
		}
	case FeaturesP85:
		return []string{
			strconv.Itoa(p.YOnTimeB), strconv.Itoa(p.OnTimeA),
			strconv.FormatInt(p.PlannedLayoverSec, 10),
			formatFloat(p.P85PctB),
			strconv.FormatInt(p.TripB.PlannedDurationSec, 10),
			formatFloat(p.Range7525B),
			strconv.Itoa(p.AMPeakA), strconv.Itoa(p.PMPeakA), p.RoutePair,
		}
	default:
		return []string{
			strconv.Itoa(p.YOnTimeB), strconv.Itoa(p.OnTimeA),
			strconv.FormatInt(p.TripA.PlannedDurationSec, 10),
			strconv.FormatInt(p.TripB.PlannedDurationSec, 10),
			strconv.FormatInt(p.PlannedLayoverSec, 10),
			strconv.Itoa(p.AMPeakA), strconv.Itoa(p.PMPeakA), p.RoutePair,
		}
	}
}

// WriteCSV streams the pairs to w with the feature-set header. Pairs are
// independent rows, so arbitrary batching is safe on this path.
func WriteCSV(w io.Writer, fs FeatureSet, pairs []Pair) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(fs)); err != nil {
		return fmt.Errorf("failed to write pairs header: %w", err)
	}
	for _, p := range pairs {
		if err := cw.Write(p.Record(fs)); err != nil {
			return fmt.Errorf("failed to write pair row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
