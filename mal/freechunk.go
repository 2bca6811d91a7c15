package mal

// FreeChunkChain is the ordered list of disjoint free intervals of the
// control store. It is owned by a single allocation run (mal/allocate.go)
// and discarded afterward; a plain ordered slice works as well as an
// intrusive linked list at this size.
type FreeChunkChain struct {
	chunks []Interval
}

// NewFreeChunkChain initializes the chain with a single chunk [0, size-1].
func NewFreeChunkChain(size int) *FreeChunkChain {
	return &FreeChunkChain{chunks: []Interval{{Start: 0, End: size - 1}}}
}

// Reclaim removes [s,e] from whichever chunk contains it entirely. Fails
// with ErrorKind InfeasibleLayout if no single chunk contains the interval.
func (c *FreeChunkChain) Reclaim(s, e int) error {
	for i, chunk := range c.chunks {
		if chunk.Start <= s && e <= chunk.End {
			switch {
			case chunk.Start == s && chunk.End == e:
				c.chunks = append(c.chunks[:i], c.chunks[i+1:]...)
			case chunk.Start == s:
				c.chunks[i] = Interval{Start: e + 1, End: chunk.End}
			case chunk.End == e:
				c.chunks[i] = Interval{Start: chunk.Start, End: s - 1}
			default:
				left := Interval{Start: chunk.Start, End: s - 1}
				right := Interval{Start: e + 1, End: chunk.End}
				tail := append([]Interval{left, right}, c.chunks[i+1:]...)
				c.chunks = append(c.chunks[:i], tail...)
			}
			return nil
		}
	}
	return newError(InfeasibleLayout, "no free chunk contains reclaimed interval %s", Interval{s, e})
}

// FirstChunkGE returns the starting address of the first chunk whose size
// is >= size.
func (c *FreeChunkChain) FirstChunkGE(size int) (int, error) {
	for _, chunk := range c.chunks {
		if chunk.Size() >= size {
			return chunk.Start, nil
		}
	}
	return 0, newError(InfeasibleLayout, "no free chunk of size >= %d", size)
}

// DisplacedPair returns (start1, start2) such that a block of size1 fits at
// start1, a block of size2 fits at start2, both within free chunks, and
// start2 - start1 == d.
func (c *FreeChunkChain) DisplacedPair(size1, size2, d int) (int, int, error) {
	for _, f1 := range c.chunks {
		// The window of feasible start2 values given first-chunk f1 and
		// first-block size1.
		loWindow := f1.Start + d
		hiWindow := f1.Start + size1 - 1 + d

		for _, f2 := range c.chunks {
			if f2.End < loWindow || f2.Start > hiWindow {
				continue
			}
			// Find an i in the window such that f2 contains [i, i+size2-1].
			iLo := max(loWindow, f2.Start)
			iHi := min(hiWindow, f2.End-size2+1)
			if iLo > iHi {
				continue
			}
			i := iLo

			start1 := f1.Start
			start2 := i
			switch {
			case f2.Start > f1.Start+d:
				start1 = f2.Start - d
				start2 = f2.Start
			case f2.Start < f1.Start+d:
				start2 = f1.Start + d
				start1 = f1.Start
			default:
				start1 = f1.Start
				start2 = f1.Start + d
			}

			// Both blocks must still fit entirely within their chunks
			// once normalized.
			if start1 < f1.Start || start1+size1-1 > f1.End {
				continue
			}
			if start2 < f2.Start || start2+size2-1 > f2.End {
				continue
			}

			return start1, start2, nil
		}
	}
	return 0, 0, newError(InfeasibleLayout, "no displaced pair of size %d/%d at offset %d", size1, size2, d)
}

// Chunks returns a snapshot of the current free chunks, for diagnostics and
// tests.
func (c *FreeChunkChain) Chunks() []Interval {
	out := make([]Interval, len(c.chunks))
	copy(out, c.chunks)
	return out
}
