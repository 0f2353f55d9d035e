package sim

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/mso/pkg/channel"
	"github.com/mso/pkg/ratetable"
	"github.com/mso/pkg/ring"
	"github.com/mso/pkg/settings"
)

// Shape is a simulated waveform.
type Shape int

const (
	ShapeSine Shape = iota
	ShapeSquare
	ShapeTriangle
	ShapeSawtooth
	ShapeDC
)

// ParseShape maps a config name to a Shape.
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(s) {
	case "sine", "":
		return ShapeSine, nil
	case "square":
		return ShapeSquare, nil
	case "triangle":
		return ShapeTriangle, nil
	case "sawtooth", "saw":
		return ShapeSawtooth, nil
	case "dc":
		return ShapeDC, nil
	}
	return ShapeSine, fmt.Errorf("unknown waveform %q", s)
}

const fullCircle = 4294967296.0

// oscillator is a DDS: the full period maps onto the uint32 phase range so
// wrapping is free and never drifts.
type oscillator struct {
	shape  Shape
	freq   float64
	amp    float64
	offset float64
	phase  uint32
	tuning uint32
}

func (o *oscillator) retune(convPerSec float64) {
	if convPerSec <= 0 {
		o.tuning = 0
		return
	}
	cycles := math.Mod(o.freq/convPerSec, 1)
	o.tuning = uint32(cycles * fullCircle)
}

// value returns the waveform at the current phase in [-1, 1].
func (o *oscillator) value() float64 {
	u := float64(o.phase) / fullCircle
	switch o.shape {
	case ShapeSquare:
		if u < 0.5 {
			return 1
		}
		return -1
	case ShapeTriangle:
		return 4*math.Abs(u-0.5) - 1
	case ShapeSawtooth:
		return 2*u - 1
	case ShapeDC:
		return 0
	}
	return math.Sin(2 * math.Pi * u)
}

// Board is a simulated acquisition board: two analog inputs, an 8-bit
// digital port and a free-running event counter.
type Board struct {
	ch      [2]oscillator
	digital oscillator
	noise   float64
	rng     *rand.Rand

	counterFreq float64
	now         time.Duration
	convPerSec  float64
}

// New builds a board from the simulator configuration.
func New(cfg settings.SimulatorConfig) (*Board, error) {
	b := &Board{
		noise:       cfg.Noise,
		counterFreq: cfg.CounterFrequency,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for i, w := range []settings.Wave{cfg.CH1, cfg.CH2} {
		shape, err := ParseShape(w.Shape)
		if err != nil {
			return nil, fmt.Errorf("simulator ch%d: %w", i+1, err)
		}
		b.ch[i] = oscillator{shape: shape, freq: w.Frequency, amp: w.Amplitude, offset: w.Offset}
	}
	b.digital = oscillator{shape: ShapeSawtooth, freq: cfg.DigitalFrequency / 256}
	b.Configure(ratetable.Lookup(0))
	return b, nil
}

// Seed makes the noise sequence reproducible.
func (b *Board) Seed(seed int64) { b.rng = rand.New(rand.NewSource(seed)) }

// ConversionRate is the number of conversions per second the converter
// runs at for rate r.
func ConversionRate(r ratetable.Rate) float64 {
	if r.Fast() {
		return r.SamplesPerSecond * float64(r.Step())
	}
	if r.TickPeriod <= 0 {
		return 0
	}
	return float64(time.Second) / float64(r.TickPeriod)
}

// Configure retunes the oscillators for the conversion rate of r.
func (b *Board) Configure(r ratetable.Rate) {
	b.convPerSec = ConversionRate(r)
	b.ch[0].retune(b.convPerSec)
	b.ch[1].retune(b.convPerSec)
	b.digital.retune(b.convPerSec)
}

func (b *Board) analog(i int) uint8 {
	o := &b.ch[i]
	v := float64(channel.Center) + o.offset + o.amp*o.value()
	if b.noise > 0 {
		v += b.noise * (b.rng.Float64() - b.rng.Float64())
	}
	o.phase += o.tuning
	if v > 255 {
		v = 255
	}
	if v < 0 {
		v = 0
	}
	return uint8(v)
}

// Read fills dst with consecutive conversions.
func (b *Board) Read(dst []ring.Sample) (int, error) {
	for i := range dst {
		// The port counts in binary, so line n toggles at half the rate of line n-1.
		d := uint8(b.digital.phase >> 24)
		b.digital.phase += b.digital.tuning
		dst[i] = ring.Sample{
			CH1:      b.analog(0),
			CH2:      b.analog(1),
			Digital:  d,
			External: d&0x80 != 0,
		}
	}
	return len(dst), nil
}

// Advance moves the board's reference clock.
func (b *Board) Advance(d time.Duration) { b.now += d }

// Count is the event counter value at the current reference time.
func (b *Board) Count() uint32 {
	return uint32(uint64(b.now.Seconds() * b.counterFreq))
}

// CounterWords returns the counter latched as two 16-bit halves.
func (b *Board) CounterWords() (hi, lo uint16) {
	c := b.Count()
	return uint16(c >> 16), uint16(c)
}

// DCConversions fills dst with differential conversions of channel ch. The
// converter reports inverted polarity.
func (b *Board) DCConversions(ch int, dst []int16) error {
	if ch < 0 || ch > 1 {
		return fmt.Errorf("no analog channel %d", ch)
	}
	for i := range dst {
		dst[i] = -int16(channel.Signed(b.analog(ch)))
	}
	return nil
}
