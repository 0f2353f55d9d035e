package channel

// FrameSize is the number of samples per channel in a capture frame.
const FrameSize = 256

// Center is the value of a zero-volt sample.
const Center = 128

// MaxGain is the highest gain index of the input amplifier.
const MaxGain = 6

// MathMode selects the two-channel combination applied to a channel.
type MathMode int

const (
	MathNone MathMode = iota
	MathSubtract
	MathMultiply
)

// State holds the per-channel configuration used when processing samples.
type State struct {
	Enabled bool  `json:"enabled"`
	Gain    uint8 `json:"gain"`
	// OffsetCalibration is added to every raw sample. It is looked up from
	// the calibration table when settings are applied.
	OffsetCalibration int8     `json:"-"`
	Position          int8     `json:"position"`
	Invert            bool     `json:"invert"`
	Average           bool     `json:"average"`
	Math              MathMode `json:"math"`

	// Carried for the control byte; the engine does not act on them.
	Probe10x   bool `json:"probe_10x"`
	Derivative bool `json:"derivative"`
	ACCoupled  bool `json:"ac_coupled"`
}

// Stats are derived from the latest frame of a channel.
type Stats struct {
	Min, Max, Vpp uint8
	DominantBin   int
}

// SaturatingAdd adds d to v, clamping to [0,255].
func SaturatingAdd(v uint8, d int) uint8 {
	r := int(v) + d
	if r < 0 {
		return 0
	}
	if r > 255 {
		return 255
	}
	return uint8(r)
}

// Signed converts a display sample into a signed deviation from center.
func Signed(v uint8) int8 {
	return int8(int(v) - Center)
}

// ScaledMultiply is a signed fractional multiply (a*b/128), saturated to int8.
func ScaledMultiply(a, b int) int8 {
	p := (a * b) >> 7
	if p > 127 {
		return 127
	}
	if p < -128 {
		return -128
	}
	return int8(p)
}

// Average blends two samples, rounding up.
func Average(a, b uint8) uint8 {
	return uint8((uint16(a) + uint16(b) + 1) / 2)
}

// Condition applies offset calibration and inversion to a raw sample.
func Condition(raw uint8, s *State) uint8 {
	v := SaturatingAdd(raw, int(s.OffsetCalibration))
	if s.Invert {
		v = 255 - v
	}
	return v
}

// Combine applies the math mode of s using the other channel's conditioned value.
func Combine(v, other uint8, s *State) uint8 {
	switch s.Math {
	case MathSubtract:
		return SaturatingAdd(v, -int(Signed(other)))
	case MathMultiply:
		return SaturatingAdd(Center, int(ScaledMultiply(int(Signed(v)), -int(Signed(other)))))
	}
	return v
}

// Process runs the full per-sample pipeline for one channel. prev is the
// value previously stored at the same frame index and is only used when
// blending is requested.
func Process(raw, otherConditioned uint8, s *State, prev uint8, blend bool) uint8 {
	v := Combine(Condition(raw, s), otherConditioned, s)
	if blend {
		v = Average(prev, v)
	}
	return v
}
