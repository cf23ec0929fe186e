package srix

// flagWords is the number of 32-bit words backing a BlockFlags set.
const flagWords = Blocks / 32

// BlockFlags records which of the 128 blocks have unsaved modifications.
// Word i holds the flags for blocks 32*i .. 32*i+31.
// Indices >= 128 are never representable; every method ignores them.
type BlockFlags [flagWords]uint32

// Add sets the flag for block index.
func (f *BlockFlags) Add(index uint8) {
	w, bit := index/32, index%32
	if w < flagWords {
		f[w] |= 1 << bit
	}
}

// Get reports whether block index is flagged.
func (f *BlockFlags) Get(index uint8) bool {
	w, bit := index/32, index%32
	if w < flagWords {
		return f[w]&(1<<bit) != 0
	}
	return false
}

// Clear removes the flag for block index.
func (f *BlockFlags) Clear(index uint8) {
	w, bit := index/32, index%32
	if w < flagWords {
		f[w] &^= 1 << bit
	}
}

// Reset clears every flag.
func (f *BlockFlags) Reset() {
	*f = BlockFlags{}
}

// Count returns the number of flagged blocks.
func (f *BlockFlags) Count() int {
	n := 0
	for _, w := range f {
		for ; w != 0; w &= w - 1 {
			n++
		}
	}
	return n
}
