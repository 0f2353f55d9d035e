package ratetable

import (
	"fmt"
	"time"
)

// Mode describes how samples are acquired at a given rate index.
type Mode int

const (
	// ModeFast runs the converter free and lets DMA fill the ring.
	ModeFast Mode = iota
	// ModeFastTimerAssisted paces the converter from a timer, still filling the ring.
	ModeFastTimerAssisted
	// ModeSlowInterrupt stores one (possibly averaged) sample per timer tick.
	ModeSlowInterrupt
)

func (m Mode) String() string {
	switch m {
	case ModeFast:
		return "fast"
	case ModeFastTimerAssisted:
		return "fast-timer"
	case ModeSlowInterrupt:
		return "slow"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

const (
	Count    = 22
	MaxIndex = Count - 1
	FastMax  = 10
	SlowMin  = 11
)

// Rate is the immutable record describing one time base setting.
type Rate struct {
	Index      uint8
	Mode       Mode
	TimePerDiv time.Duration
	// SamplesPerSecond is the stored sample rate.
	SamplesPerSecond float64
	// Oversample is the number of raw conversions per displayed sample.
	Oversample uint16
	// PostTriggerScale multiplies the requested post-trigger count into ring positions.
	PostTriggerScale uint16
	// PostTriggerCompensation is subtracted from the scaled post-trigger count
	// because the converter keeps running for a few samples after the counter expires.
	PostTriggerCompensation uint16
	// MinPostTrigger is the smallest post-trigger count the validator accepts.
	MinPostTrigger uint16
	// SlowDivisor is the number of ticks averaged into one stored slow sample.
	SlowDivisor uint16
	// TickPeriod is the slow sampler tick period; zero for fast rates.
	TickPeriod time.Duration
	// FrequencyScale converts a count delta into display units. A spectrum
	// bin is worth FrequencyScale/256.
	FrequencyScale uint32
	// TimeScale is the time per sample in display units, used for cursor readouts.
	TimeScale uint16
}

// Fast reports whether captures at this rate go through the ring buffer.
func (r Rate) Fast() bool { return r.Mode != ModeSlowInterrupt }

// Step is the ring stride used when extracting a frame.
func (r Rate) Step() int {
	if r.Index == 0 {
		return 1
	}
	return 2
}

// CalibrationBucket selects the row of the offset calibration table.
func (r Rate) CalibrationBucket() int {
	if r.Index > 7 {
		return 7
	}
	return int(r.Index)
}

// ProgrammedPostTrigger returns the post-trigger count loaded into the
// counter for a user-requested count, never less than 1.
func (r Rate) ProgrammedPostTrigger(requested uint16) uint16 {
	n := uint32(requested) * uint32(r.PostTriggerScale)
	if n > 0xFFFF {
		n = 0xFFFF
	}
	comp := uint32(r.PostTriggerCompensation)
	if n <= comp {
		return 1
	}
	return uint16(n - comp)
}

const (
	slowTick1600 = time.Second / 1600
	slowTick1280 = time.Second / 1280
)

var table = [Count]Rate{
	{0, ModeFast, 8 * time.Microsecond, 2e6, 1, 1, 8, 8, 0, 0, 200000000, 200},
	{1, ModeFast, 16 * time.Microsecond, 1e6, 2, 1, 5, 5, 0, 0, 100000000, 400},
	{2, ModeFast, 32 * time.Microsecond, 500e3, 2, 2, 5, 5, 0, 0, 50000000, 800},
	{3, ModeFast, 64 * time.Microsecond, 250e3, 2, 2, 4, 4, 0, 0, 25000000, 1600},
	{4, ModeFast, 128 * time.Microsecond, 125e3, 2, 2, 4, 4, 0, 0, 12500000, 3200},
	{5, ModeFast, 256 * time.Microsecond, 62.5e3, 2, 2, 4, 4, 0, 0, 6250000, 6400},
	{6, ModeFastTimerAssisted, 500 * time.Microsecond, 32e3, 2, 2, 1, 1, 0, 0, 3200000, 12500},
	{7, ModeFastTimerAssisted, time.Millisecond, 16e3, 2, 2, 1, 1, 0, 0, 1600000000, 25},
	{8, ModeFastTimerAssisted, 2 * time.Millisecond, 8e3, 2, 2, 1, 1, 0, 0, 800000000, 50},
	{9, ModeFastTimerAssisted, 5 * time.Millisecond, 3.2e3, 2, 2, 1, 1, 0, 0, 320000000, 125},
	{10, ModeFastTimerAssisted, 10 * time.Millisecond, 1.6e3, 2, 2, 1, 1, 0, 0, 160000000, 250},
	{11, ModeSlowInterrupt, 20 * time.Millisecond, 1.6e3, 1, 1, 0, 1, 1, slowTick1600, 160000000, 500},
	{12, ModeSlowInterrupt, 50 * time.Millisecond, 640, 2, 1, 0, 1, 2, slowTick1280, 64000000, 1250},
	{13, ModeSlowInterrupt, 100 * time.Millisecond, 320, 4, 1, 0, 1, 4, slowTick1280, 32000000, 2500},
	{14, ModeSlowInterrupt, 200 * time.Millisecond, 160, 8, 1, 0, 1, 8, slowTick1280, 16000000, 5000},
	{15, ModeSlowInterrupt, 500 * time.Millisecond, 64, 20, 1, 0, 1, 20, slowTick1280, 6400000, 12500},
	{16, ModeSlowInterrupt, time.Second, 32, 40, 1, 0, 1, 40, slowTick1280, 3200000, 25},
	{17, ModeSlowInterrupt, 2 * time.Second, 16, 80, 1, 0, 1, 80, slowTick1280, 1600000, 50},
	{18, ModeSlowInterrupt, 5 * time.Second, 6.4, 200, 1, 0, 1, 200, slowTick1280, 640000, 125},
	{19, ModeSlowInterrupt, 10 * time.Second, 3.2, 400, 1, 0, 1, 400, slowTick1280, 320000, 250},
	{20, ModeSlowInterrupt, 20 * time.Second, 1.6, 800, 1, 0, 1, 800, slowTick1280, 160000, 500},
	{21, ModeSlowInterrupt, 50 * time.Second, 0.64, 2000, 1, 0, 1, 2000, slowTick1280, 64000, 1250},
}

// Clamp limits a rate index to the table.
func Clamp(index uint8) uint8 {
	if index > MaxIndex {
		return MaxIndex
	}
	return index
}

// Lookup returns the record for index, clamping out-of-range values.
func Lookup(index uint8) Rate {
	return table[Clamp(index)]
}

// All returns a copy of the whole table.
func All() []Rate {
	out := make([]Rate, Count)
	copy(out, table[:])
	return out
}
