package sequence

// Batcher yields batches of sequences without ever splitting one block's
// windows across two batches. Chunked windows of a block share state
// through their ordering, so a consumer that resets between batches must
// see a block whole.
type Batcher struct {
	seqs []Sequence
	size int
	pos  int
}

// NewBatcher wraps seqs, which must keep each block's windows contiguous
// (Build output already does). size is the target batch length; batches
// grow past it when a block straddles the boundary.
func NewBatcher(seqs []Sequence, size int) *Batcher {
	if size < 1 {
		size = 1
	}
	return &Batcher{seqs: seqs, size: size}
}

// Next returns the next batch, or ok=false when exhausted. The returned
// slice aliases the underlying sequences.
func (b *Batcher) Next() (batch []Sequence, ok bool) {
	if b.pos >= len(b.seqs) {
		return nil, false
	}

	end := b.pos + b.size
	if end > len(b.seqs) {
		end = len(b.seqs)
	}
	// Extend to the end of the current block.
	for end < len(b.seqs) && sameBlock(b.seqs[end-1], b.seqs[end]) {
		end++
	}

	batch = b.seqs[b.pos:end]
	b.pos = end
	return batch, true
}

// Reset rewinds the batcher to the first sequence.
func (b *Batcher) Reset() { b.pos = 0 }

func sameBlock(a, b Sequence) bool {
	return a.Date == b.Date && a.BlockKey == b.BlockKey
}
