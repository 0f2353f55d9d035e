package engine

import (
	"sync"
	"time"

	"github.com/mso/pkg/autosetup"
	"github.com/mso/pkg/capture"
	"github.com/mso/pkg/channel"
	"github.com/mso/pkg/measure"
	"github.com/mso/pkg/ratetable"
	"github.com/mso/pkg/ring"
	"github.com/mso/pkg/settings"
)

// Board is the acquisition hardware the engine drives.
type Board interface {
	// Configure sets the converter up for rate r.
	Configure(r ratetable.Rate)
	// Read fills dst with consecutive conversions.
	Read(dst []ring.Sample) (int, error)
	// Advance moves the one-second reference clock forward by d.
	Advance(d time.Duration)
	// CounterWords returns the event counter as two separately latched halves.
	CounterWords() (hi, lo uint16)
	// DCConversions fills dst with differential conversions of channel ch.
	// Conversions are 12-bit signed; wider values saturate the DC average.
	DCConversions(ch int, dst []int16) error
}

// EngineState is everything the capture loop owns. It is only touched
// inside the engine's CriticalSection.
type EngineState struct {
	Settings settings.Settings
	Rate     ratetable.Rate

	Processor channel.Processor
	Ring      ring.Buffer
	Frames    capture.FrameCounter
	Fast      *capture.FastController
	Slow      *capture.SlowSampler
	AutoSetup autosetup.Controller

	Counter     measure.FrequencyCounter
	Measurement measure.Record
	LastStats   [2]channel.Stats
}

// NewEngineState wires the capture controllers to the state's own buffers.
func NewEngineState(s settings.Settings) *EngineState {
	st := &EngineState{Settings: s}
	st.Fast = capture.NewFastController(&st.Ring, &st.Processor, &st.Frames)
	st.Slow = capture.NewSlowSampler(&st.Processor, &st.Frames)
	return st
}

// CriticalSection serializes the capture loop against command callers. It
// stands in for interrupt masking: whatever runs inside Do sees a stable
// EngineState.
type CriticalSection struct {
	mu sync.Mutex
}

// Do runs f with the section held.
func (c *CriticalSection) Do(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f()
}
