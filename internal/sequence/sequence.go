// Package sequence arranges the trip executions of a vehicle block into
// fixed-length windows for the sequence classifier. Every window has
// exactly Options.Window slots; short windows are completed with pad
// slots so downstream tensors stay rectangular.
package sequence

import (
	"sort"

	"github.com/rtl-data/blockpairs/internal/blocks"
	"github.com/rtl-data/blockpairs/internal/trips"
)

// Mode selects how a block's trips are cut into windows.
type Mode int

const (
	// Chunked splits a block into consecutive windows of Options.Window
	// slots, padding only the tail window.
	Chunked Mode = iota
	// WholeBlock emits one window per block, truncating trips beyond
	// Options.Window.
	WholeBlock
)

// OrderBy selects the intra-block ordering of trips.
type OrderBy int

const (
	// ByStart orders trips by planned start time.
	ByStart OrderBy = iota
	// ByToken orders trips by the numeric block-identifier token when
	// every trip in the block carries one, falling back to planned start
	// otherwise.
	ByToken
)

// Options control window construction. Fill them from the pipeline
// configuration so training and inference agree.
type Options struct {
	Mode            Mode
	OrderBy         OrderBy
	Window          int     // slots per window
	OnTimeThreshold float64 // positive class cutoff on on_time_pct
	MaxLayoverSec   int64   // layovers at or beyond this collapse to zero
	AMPeak          trips.Window
	PMPeak          trips.Window
}

// Slot is one position in a window. A pad slot carries zeros everywhere,
// including the label, and exists only to keep windows rectangular.
type Slot struct {
	Pad bool

	PlannedLayoverSec  float64
	PlannedDurationSec float64
	P85Pct             float64
	Range7525          float64
	RouteID            string
	DirectionID        int64
	AMPeak             int
	PMPeak             int
	PrevOnTimeClass    int

	OnTimeClass int // label
}

// Sequence is one fixed-length window of a block. Chunk is the 0-based
// window index within the block; whole-block mode always emits chunk 0.
type Sequence struct {
	Date     string
	BlockKey string
	Chunk    int
	Slots    []Slot
}

// RejectCounts tallies rows that did not become real slots.
type RejectCounts struct {
	MissingOutcome int64 // trips with no on-time outcome, kept as pad slots
	Truncated      int64 // trips beyond the window bound in whole-block mode
}

// Build groups trips by (date, block key), orders each block, and cuts it
// into windows. Blocks appear in first-encounter order of the input, so a
// history read in deterministic order yields deterministic output.
//
// A trip with an unknown on-time outcome keeps its position as a pad slot
// rather than shifting its neighbours: slot alignment within a block is
// part of the feature contract.
func Build(rows []trips.Trip, opts Options) ([]Sequence, RejectCounts) {
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

	var seqs []Sequence
	for _, k := range order {
		block := groups[k]
		orderBlock(block, opts.OrderBy)
		slots := buildSlots(block, opts, &rejects)

		if opts.Mode == WholeBlock {
			if len(slots) > opts.Window {
				rejects.Truncated += int64(len(slots) - opts.Window)
				slots = slots[:opts.Window]
			}
			seqs = append(seqs, Sequence{
				Date:     k.Date,
				BlockKey: k.Key,
				Slots:    padded(slots, opts.Window),
			})
			continue
		}

		for chunk := 0; chunk*opts.Window < len(slots); chunk++ {
			lo := chunk * opts.Window
			hi := lo + opts.Window
			if hi > len(slots) {
				hi = len(slots)
			}
			seqs = append(seqs, Sequence{
				Date:     k.Date,
				BlockKey: k.Key,
				Chunk:    chunk,
				Slots:    padded(slots[lo:hi], opts.Window),
			})
		}
	}

	return seqs, rejects
}

// orderBlock sorts a block's trips in place. Token ordering only applies
// when every trip in the block carries a numeric token; a mixed block
// falls back to planned start so the ordering stays total.
func orderBlock(block []trips.Trip, by OrderBy) {
	if by == ByToken {
		allTokens := true
		for _, t := range block {
			if !t.Block.HasSeq {
				allTokens = false
				break
			}
		}
		if allTokens {
			sort.SliceStable(block, func(i, j int) bool {
				return block[i].Block.Seq < block[j].Block.Seq
			})
			return
		}
	}
	sort.SliceStable(block, func(i, j int) bool {
		return block[i].PlannedStartSec < block[j].PlannedStartSec
	})
}

// buildSlots converts an ordered block into slots, one per trip. Layover
// and the previous-class feature both refer to the nearest preceding real
// slot; pad slots contribute nothing.
func buildSlots(block []trips.Trip, opts Options, rejects *RejectCounts) []Slot {
	slots := make([]Slot, 0, len(block))
	prev := -1 // index into block of the last real slot

	for i, t := range block {
		if !t.OnTimePct.Valid {
			rejects.MissingOutcome++
			slots = append(slots, Slot{Pad: true})
			continue
		}

		s := Slot{
			PlannedDurationSec: float64(t.PlannedDurationSec),
			RouteID:            t.RouteID,
			DirectionID:        t.DirectionID,
			OnTimeClass:        trips.OnTimeClass(t.OnTimePct.Float64, opts.OnTimeThreshold),
		}
		if t.Cell != nil {
			s.P85Pct = t.Cell.P85Ratio
			s.Range7525 = t.Cell.Range7525
		}
		if opts.AMPeak.Contains(t.PlannedStartSec) {
			s.AMPeak = 1
		}
		if opts.PMPeak.Contains(t.PlannedStartSec) {
			s.PMPeak = 1
		}
		if prev >= 0 {
			p := block[prev]
			layover := t.PlannedStartSec - (p.PlannedStartSec + p.PlannedDurationSec)
			// Negative and implausibly long layovers collapse to zero here
			// instead of dropping the slot: removing a trip would break the
			// positional alignment of the window.
			if layover > 0 && layover < opts.MaxLayoverSec {
				s.PlannedLayoverSec = float64(layover)
			}
			s.PrevOnTimeClass = trips.OnTimeClass(p.OnTimePct.Float64, opts.OnTimeThreshold)
		}

		slots = append(slots, s)
		prev = i
	}

	return slots
}

// padded extends slots to length w with pad slots. The input is never
// longer than w.
func padded(slots []Slot, w int) []Slot {
	out := make([]Slot, w)
	copy(out, slots)
	for i := len(slots); i < w; i++ {
		out[i] = Slot{Pad: true}
	}
	return out
}
