package chacha20

import "math/bits"

// SequenceBits is the width of the trailing bitmap of a SequenceWindow.
const SequenceBits = 64

// SequenceWindow is the anti-replay filter of one data channel direction.
// It tracks which of the sequence numbers start+1 to start+64 were seen and
// slides forward as higher numbers arrive. The zero value is an initialized
// window anchored at 0 that accepts no jump at all; use NewSequenceWindow.
//
// SequenceWindow is not safe for concurrent use.
type SequenceWindow struct {
	start int64
	mask  uint64
	// size bounds how far a sequence number may lead start before it is
	// treated as out of range rather than as advancement.
	size int64
}

func NewSequenceWindow(windowSize int64, seq int64) *SequenceWindow {
	w := &SequenceWindow{size: windowSize}
	w.Init(seq)
	return w
}

// Init anchors the window at seq. The first acceptable number is seq+1.
func (w *SequenceWindow) Init(seq int64) {
	w.start = seq
	w.mask = 0
}

// Start returns the current anchor.
func (w *SequenceWindow) Start() int64 {
	return w.start
}

// Verify accepts seq exactly once. It rejects numbers at or behind the
// anchor, numbers WindowSize or more ahead of it, and duplicates.
func (w *SequenceWindow) Verify(seq int64) bool {
	start := w.start
	mask := w.mask
	diff := seq - start
	if diff <= 0 || diff >= w.size {
		return false
	}

	if diff > SequenceBits {
		slide := diff - SequenceBits
		start += slide
		if slide > SequenceBits {
			mask = 0
		} else {
			mask <<= uint(slide)
		}
		diff = SequenceBits
	}

	bit := uint64(1) << uint(SequenceBits-diff)
	if mask&bit != 0 {
		return false
	}
	w.start = start
	w.mask = mask | bit
	return true
}

// Quality returns how many of the last 64 tracked sequence numbers arrived.
func (w *SequenceWindow) Quality() int {
	return bits.OnesCount64(w.mask)
}
