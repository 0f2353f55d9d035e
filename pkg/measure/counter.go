package measure

// CounterWords reads the two 16-bit halves of the free-running event
// counter. The halves are latched separately, so a single read can tear.
type CounterWords func() (hi, lo uint16)

// ReadCounter reads the counter twice and reconciles the halves into one
// consistent 32-bit value even if the low word rolled over in between.
func ReadCounter(read CounterWords) uint32 {
	h1, l1 := read()
	h2, l2 := read()
	if h1 == h2 {
		return uint32(h1)<<16 | uint32(l1)
	}
	if l1 < l2 {
		// both low reads happened after the carry
		return uint32(h2)<<16 | uint32(l1)
	}
	return uint32(h1)<<16 | uint32(l1)
}

// FrequencyCounter turns once-per-second counter captures into counts per
// second.
type FrequencyCounter struct {
	last, current uint32
	primed        bool
}

// Reset discards previous captures.
func (f *FrequencyCounter) Reset() {
	*f = FrequencyCounter{}
}

// Capture records the counter value latched at a one-second boundary.
func (f *FrequencyCounter) Capture(count uint32) {
	if !f.primed {
		f.last, f.current, f.primed = count, count, true
		return
	}
	f.last, f.current = f.current, count
}

// Delta is the number of events in the last full second. Counter wrap is
// handled by modular subtraction.
func (f *FrequencyCounter) Delta() uint32 {
	return f.current - f.last
}
