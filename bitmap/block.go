package bitmap

// Block is a fixed-capacity set of small non-negative integers, one bit per
// value. It is sized once and never grows.
type Block []uint64

func New(n int) Block {
	return make(Block, (n+63)>>6)
}

// Set marks i and reports whether it was previously unset.
func (b Block) Set(i int) bool {
	w, m := i>>6, uint64(1)<<(uint(i)&63)
	r := b[w]&m != 0
	b[w] |= m
	return !r
}

// Unset clears i and reports whether it was previously set.
func (b Block) Unset(i int) bool {
	w, m := i>>6, uint64(1)<<(uint(i)&63)
	r := b[w]&m != 0
	b[w] &^= m
	return r
}

func (b Block) Reset() {
	for i := range b {
		b[i] = 0
	}
}
