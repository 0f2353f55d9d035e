package capture

import (
	"sync/atomic"

	"github.com/mso/pkg/channel"
	"github.com/mso/pkg/ring"
)

// SampleSink receives every stored slow-mode sample as it is produced.
type SampleSink interface {
	StoreSample(index int, ch1, ch2, digital uint8)
}

// Event is the outcome of one slow sampler tick.
type Event int

const (
	EventNone Event = iota
	// EventStored means a sample was written at the previous write index.
	EventStored
	// EventSweepComplete means the write index wrapped and a full frame is ready.
	EventSweepComplete
)

// SlowSampler stores one averaged sample every Divisor ticks for the slow
// rates. Its write index is published atomically so readers outside the
// tick handler can follow progress.
type SlowSampler struct {
	proc   *channel.Processor
	frames *FrameCounter

	// Roll keeps the sweep running past the end of the frame.
	Roll bool
	Sink SampleSink

	rate     uint8
	divisor  int
	count    int
	sum1     int
	sum2     int
	ch1, ch2 channel.State

	writeIndex atomic.Uint32
	frame      Frame
	stopped    bool
}

// NewSlowSampler returns a sampler writing through proc.
func NewSlowSampler(proc *channel.Processor, frames *FrameCounter) *SlowSampler {
	return &SlowSampler{proc: proc, frames: frames}
}

// Configure loads a new rate and channel setup and restarts the sweep.
func (s *SlowSampler) Configure(rate uint8, divisor uint16, ch1, ch2 channel.State) {
	s.rate = rate
	s.divisor = int(divisor)
	if s.divisor < 1 {
		s.divisor = 1
	}
	s.ch1, s.ch2 = ch1, ch2
	s.frame = Frame{Rate: rate}
	s.Rearm()
}

// Rearm starts a new sweep at index 0.
func (s *SlowSampler) Rearm() {
	s.count = 0
	s.sum1, s.sum2 = 0, 0
	s.writeIndex.Store(0)
	s.stopped = false
}

// Stopped reports whether a non-roll sweep completed and awaits Rearm.
func (s *SlowSampler) Stopped() bool { return s.stopped }

// WriteIndex is the frame slot the next stored sample lands in.
func (s *SlowSampler) WriteIndex() int { return int(s.writeIndex.Load()) }

// Tick processes one raw conversion.
func (s *SlowSampler) Tick(raw ring.Sample) Event {
	if s.stopped {
		return EventNone
	}
	s.sum1 += int(raw.CH1)
	s.sum2 += int(raw.CH2)
	s.count++
	if s.count < s.divisor {
		return EventNone
	}

	v1, v2 := raw.CH1, raw.CH2
	if s.ch1.Average {
		v1 = uint8(s.sum1 / s.count)
	}
	if s.ch2.Average {
		v2 = uint8(s.sum2 / s.count)
	}
	s.count = 0
	s.sum1, s.sum2 = 0, 0

	idx := s.WriteIndex()
	c1, c2 := s.proc.ProcessAt(idx, v1, v2, &s.ch1, &s.ch2)
	s.frame.CH1[idx] = c1
	s.frame.CH2[idx] = c2
	s.frame.Digital[idx] = raw.Digital
	if s.Sink != nil {
		s.Sink.StoreSample(idx, c1, c2, raw.Digital)
	}

	next := (idx + 1) % channel.FrameSize
	s.writeIndex.Store(uint32(next))
	if next != 0 || s.Roll {
		return EventStored
	}
	s.stopped = true
	return EventSweepComplete
}

// Snapshot returns the current frame. In roll mode the samples are rotated
// so the oldest comes first. A new frame number is assigned on every call.
func (s *SlowSampler) Snapshot() *Frame {
	f := s.frame
	f.Roll = s.Roll
	if s.Roll {
		start := s.WriteIndex()
		for i := 0; i < channel.FrameSize; i++ {
			j := (start + i) % channel.FrameSize
			f.CH1[i] = s.frame.CH1[j]
			f.CH2[i] = s.frame.CH2[j]
			f.Digital[i] = s.frame.Digital[j]
		}
	}
	f.Counter = s.frames.Next()
	return &f
}
