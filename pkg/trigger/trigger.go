package trigger

import (
	"fmt"

	"github.com/mso/pkg/channel"
	"github.com/mso/pkg/ring"
)

// Source selects the signal the trigger watches.
type Source uint8

const (
	SourceCH1      Source = 0
	SourceCH2      Source = 1
	SourceDigital0 Source = 2 // digital bits 0..7 are sources 2..9
	SourceExternal Source = 10
	MaxSource             = SourceExternal
)

// DigitalSource returns the source for digital line bit.
func DigitalSource(bit uint8) Source { return SourceDigital0 + Source(bit&7) }

// IsDigital reports whether s is one of the eight digital lines.
func (s Source) IsDigital() bool { return s >= SourceDigital0 && s < SourceExternal }

// Bit returns the digital line of a digital source.
func (s Source) Bit() uint8 { return uint8(s - SourceDigital0) }

func (s Source) String() string {
	switch {
	case s == SourceCH1:
		return "CH1"
	case s == SourceCH2:
		return "CH2"
	case s.IsDigital():
		return fmt.Sprintf("D%d", s.Bit())
	case s == SourceExternal:
		return "EXT"
	}
	return fmt.Sprintf("Source(%d)", uint8(s))
}

// Mode is the trigger condition.
type Mode int

const (
	ModeDualEdge Mode = iota
	ModeEdge
	ModeWindow
	ModeSlope
)

func (m Mode) String() string {
	switch m {
	case ModeDualEdge:
		return "dual-edge"
	case ModeEdge:
		return "edge"
	case ModeWindow:
		return "window"
	case ModeSlope:
		return "slope"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Direction of an edge or slope trigger.
type Direction int

const (
	Rising Direction = iota
	Falling
)

// ArmPolicy decides what happens when no trigger condition is met.
type ArmPolicy int

const (
	// Free declares every capture triggered without evaluating a condition.
	Free ArmPolicy = iota
	Normal
	Single
	Auto
)

func (p ArmPolicy) String() string {
	switch p {
	case Free:
		return "free"
	case Normal:
		return "normal"
	case Single:
		return "single"
	case Auto:
		return "auto"
	}
	return fmt.Sprintf("ArmPolicy(%d)", int(p))
}

// Window bounds for the window trigger.
type Window struct {
	Low  uint8 `json:"low"`
	High uint8 `json:"high"`
}

// Config is the trigger configuration.
type Config struct {
	Source    Source    `json:"source"`
	Mode      Mode      `json:"mode"`
	Direction Direction `json:"direction"`
	Policy    ArmPolicy `json:"policy"`
	Level     uint8     `json:"level"`
	Window    Window    `json:"window"`
	// HoldoffTicks is the delay, in timer ticks, before detection starts.
	HoldoffTicks uint8 `json:"holdoff_ticks"`
	// PostTriggerCount is the number of samples captured after the trigger.
	PostTriggerCount uint16 `json:"post_trigger_count"`
	// Timeout is the auto-trigger timeout in timer ticks.
	Timeout uint8 `json:"timeout"`
	// Round keeps the sniffer buffer circular; stored for the control byte only.
	Round bool `json:"round"`
}

// Normalize swaps inverted window bounds and clamps the source.
func (c *Config) Normalize() {
	if c.Window.Low > c.Window.High {
		c.Window.Low, c.Window.High = c.Window.High, c.Window.Low
	}
	if c.Source > MaxSource {
		c.Source = MaxSource
	}
}

// SlopeThreshold reinterprets Level as a signed deviation from center and
// returns its magnitude, at least 1.
func (c *Config) SlopeThreshold() int {
	d := int(c.Level) - channel.Center
	if d < 0 {
		d = -d
	}
	if d == 0 {
		d = 1
	}
	return d
}

// AnalogLevel returns the trigger level expressed in raw converter units,
// i.e. with the channel's offset calibration removed.
func AnalogLevel(level uint8, offsetCalibration int8) uint8 {
	return channel.SaturatingAdd(level, -int(offsetCalibration))
}

// Value extracts the monitored value of src from a sample. Digital and
// external sources yield 0 or 1.
func Value(src Source, s ring.Sample) int {
	switch {
	case src == SourceCH1:
		return int(s.CH1)
	case src == SourceCH2:
		return int(s.CH2)
	case src.IsDigital():
		return int(s.Digital>>src.Bit()) & 1
	case src == SourceExternal:
		if s.External {
			return 1
		}
	}
	return 0
}

// Evaluate reports whether the transition from prev to cur satisfies the
// trigger condition. level is the raw-unit level (see AnalogLevel).
func Evaluate(c *Config, level uint8, prev, cur ring.Sample) bool {
	p := Value(c.Source, prev)
	v := Value(c.Source, cur)

	if c.Source.IsDigital() || c.Source == SourceExternal {
		if c.Direction == Falling {
			return p == 1 && v == 0
		}
		return p == 0 && v == 1
	}

	l := int(level)
	switch c.Mode {
	case ModeEdge:
		if c.Direction == Falling {
			return p >= l && v < l
		}
		return p < l && v >= l
	case ModeDualEdge:
		return (p < l && v >= l) || (p >= l && v < l)
	case ModeWindow:
		lo, hi := int(c.Window.Low), int(c.Window.High)
		if lo > hi {
			lo, hi = hi, lo
		}
		wasInside := p >= lo && p <= hi
		return wasInside && (v < lo || v > hi)
	case ModeSlope:
		d := c.SlopeThreshold()
		if c.Direction == Falling {
			return p-v >= d
		}
		return v-p >= d
	}
	return false
}

// Raw returns a copy of c with its window translated into raw converter
// units, together with the raw edge level, for a channel whose offset
// calibration is offsetCalibration.
func (c Config) Raw(offsetCalibration int8) (Config, uint8) {
	r := c
	r.Window.Low = AnalogLevel(c.Window.Low, offsetCalibration)
	r.Window.High = AnalogLevel(c.Window.High, offsetCalibration)
	return r, AnalogLevel(c.Level, offsetCalibration)
}
