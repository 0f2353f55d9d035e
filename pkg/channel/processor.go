package channel

// Processor turns raw conversions of both analog channels into display
// samples. It remembers the last value stored at every frame index so the
// average and elastic modes can blend with it.
type Processor struct {
	// Elastic blends every stored sample with the previous one regardless
	// of the per-channel average flag.
	Elastic bool

	prev   [2][FrameSize]uint8
	primed [FrameSize]bool
}

// Reset forgets the previous frame. Called whenever the rate or mode changes.
func (p *Processor) Reset() {
	p.prev = [2][FrameSize]uint8{}
	p.primed = [FrameSize]bool{}
}

// ProcessAt processes one conversion pair destined for frame index idx.
func (p *Processor) ProcessAt(idx int, raw1, raw2 uint8, ch1, ch2 *State) (uint8, uint8) {
	idx &= FrameSize - 1
	c1 := Condition(raw1, ch1)
	c2 := Condition(raw2, ch2)
	v1 := Combine(c1, c2, ch1)
	v2 := Combine(c2, c1, ch2)
	if p.primed[idx] {
		if p.Elastic || ch1.Average {
			v1 = Average(p.prev[0][idx], v1)
		}
		if p.Elastic || ch2.Average {
			v2 = Average(p.prev[1][idx], v2)
		}
	}
	p.prev[0][idx] = v1
	p.prev[1][idx] = v2
	p.primed[idx] = true
	return v1, v2
}
