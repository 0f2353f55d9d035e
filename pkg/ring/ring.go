package ring

import (
	"sync/atomic"
)

// Size is the number of slots per channel.
const Size = 512

// Sample is one conversion of both analog channels plus the digital port.
type Sample struct {
	CH1, CH2 uint8
	Digital  uint8
	// External is the external trigger input. It is not stored in the ring.
	External bool
}

// Buffer is the circular sample store filled by the free-running converter.
// A single producer writes; the consumer reads only after the producer is
// stopped and the write pointer has been snapshotted.
type Buffer struct {
	CH1     [Size]uint8
	CH2     [Size]uint8
	Digital [Size]uint8

	head    atomic.Uint32 // next slot to be written
	written atomic.Uint64 // total writes since Reset
}

// Reset rewinds the write pointer and clears the contents.
func (b *Buffer) Reset() {
	b.CH1 = [Size]uint8{}
	b.CH2 = [Size]uint8{}
	b.Digital = [Size]uint8{}
	b.head.Store(0)
	b.written.Store(0)
}

// Write stores one sample and advances the write pointer modulo Size.
func (b *Buffer) Write(s Sample) {
	h := b.head.Load()
	b.CH1[h] = s.CH1
	b.CH2[h] = s.CH2
	b.Digital[h] = s.Digital
	b.head.Store((h + 1) % Size)
	b.written.Add(1)
}

// WritePointer returns the slot the next write will land in.
func (b *Buffer) WritePointer() int {
	return int(b.head.Load())
}

// Remaining is the number of transfers left before the write pointer wraps,
// the value a DMA transfer counter reports.
func (b *Buffer) Remaining() int {
	return Size - b.WritePointer()
}

// Written returns the number of samples written since Reset.
func (b *Buffer) Written() uint64 {
	return b.written.Load()
}

// CaptureIndex returns the slot where the extracted window begins, given the
// remaining transfer count at freeze time. With halfBuffer only the newest
// half of the ring is used.
func CaptureIndex(remaining int, halfBuffer bool) int {
	idx := (Size - remaining) % Size
	if idx < 0 {
		idx += Size
	}
	if halfBuffer {
		idx = (idx + Size/2) % Size
	}
	return idx
}

// Extract copies len(dst) samples from src starting at start and advancing
// by step slots, wrapping modulo Size. The window is limited to one
// revolution of the ring; the number of samples copied is returned.
func Extract(src *[Size]uint8, start, step int, dst []uint8) int {
	if step < 1 {
		step = 1
	}
	n := len(dst)
	if n*step > Size {
		n = Size / step
	}
	pos := ((start % Size) + Size) % Size
	for i := 0; i < n; i++ {
		dst[i] = src[pos]
		pos += step
		if pos >= Size {
			pos -= Size
		}
	}
	return n
}
