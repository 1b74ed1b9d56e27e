package sequence

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// FeatureColumns are the per-slot feature names, in emission order. The
// label column on_time_class follows them in the CSV.
var FeatureColumns = []string{
	"planned_layover",
	"plannedduration",
	"p85_pct",
	"range7525",
	"route_id",
	"direction_id",
	"ampeak",
	"pmpeak",
	"prev_on_time_class",
}

// Header returns the long-format CSV header: window identity columns,
// then the slot features, then the label.
func Header() []string {
	h := []string{"date", "block_key", "chunk", "slot"}
	h = append(h, FeatureColumns...)
	return append(h, "on_time_class")
}

// Record renders slot i of the sequence as one long-format row. Slots are
// 1-based in the output. Pad slots render as zeros throughout.
func (s Sequence) Record(i int) []string {
	slot := s.Slots[i]

	routeID := slot.RouteID
	if slot.Pad {
		routeID = "0"
	}

	return []string{
		s.Date,
		s.BlockKey,
		strconv.Itoa(s.Chunk),
		strconv.Itoa(i + 1),
		formatFloat(slot.PlannedLayoverSec),
		formatFloat(slot.PlannedDurationSec),
		formatFloat(slot.P85Pct),
		formatFloat(slot.Range7525),
		routeID,
		strconv.FormatInt(slot.DirectionID, 10),
		strconv.Itoa(slot.AMPeak),
		strconv.Itoa(slot.PMPeak),
		strconv.Itoa(slot.PrevOnTimeClass),
		strconv.Itoa(slot.OnTimeClass),
	}
}

// writeBatch is the flush granularity of WriteCSV, in sequences.
const writeBatch = 64

// WriteCSV streams the sequences to w in long format, one row per slot.
// Pad slots are written too: the reader relies on every window having the
// same row count. Output is flushed in block-aligned batches, so an
// interrupted write never leaves a block partially on disk.
func WriteCSV(w io.Writer, seqs []Sequence) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return fmt.Errorf("failed to write sequence header: %w", err)
	}
	cw.Flush()

	b := NewBatcher(seqs, writeBatch)
	for {
		batch, ok := b.Next()
		if !ok {
			break
		}
		for _, s := range batch {
			for i := range s.Slots {
				if err := cw.Write(s.Record(i)); err != nil {
					return fmt.Errorf("failed to write sequence row: %w", err)
				}
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return err
		}
	}
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
