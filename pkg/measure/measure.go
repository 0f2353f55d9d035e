package measure

import (
	"fmt"
	"math"

	"github.com/mso/pkg/channel"
	"github.com/mso/pkg/dsp"
	"github.com/mso/pkg/ratetable"
	"github.com/mso/pkg/settings"
)

// Analyze returns the extremes and peak-to-peak span of a frame.
func Analyze(samples []uint8) (min, max, vpp uint8) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	min, max = 255, 0
	for _, v := range samples {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max, max - min
}

// Stats computes the derived statistics of one channel of a frame.
func Stats(samples []uint8, w dsp.Window) channel.Stats {
	min, max, vpp := Analyze(samples)
	return channel.Stats{
		Min:         min,
		Max:         max,
		Vpp:         vpp,
		DominantBin: dsp.DominantBin(dsp.Spectrum(samples, w)),
	}
}

// DCConversions is the number of conversions averaged by DCLevel.
const DCConversions = 256

// DCLevel averages differential conversions into a DC reading. The first
// conversion is discarded; the converter reports inverted polarity so the
// sum is negated before the calibration offset is added.
func DCLevel(conversions []int16, calibration int16) int16 {
	if len(conversions) > 0 {
		conversions = conversions[1:]
	}
	if len(conversions) > DCConversions {
		conversions = conversions[:DCConversions]
	}
	var sum int32
	for _, c := range conversions {
		sum -= int32(c)
	}
	sum += int32(calibration)
	return saturate16(sum >> 5)
}

// saturate16 clamps v to the int16 range. Conversions wider than 12 bits
// would otherwise wrap the average.
func saturate16(v int32) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// gainScale is the volts-per-division of each gain step, in the units the
// display formats (1000 = 1 V at gain 0, 62500 = 62.5 mV from gain 4 on).
var gainScale = [channel.MaxGain + 1]int64{1000, 500, 250, 125, 62500, 31250, 15625}

// PeakToPeak converts a vpp span into display units for the given gain.
func PeakToPeak(vpp uint8, gain uint8, probe10x bool) int64 {
	if gain > channel.MaxGain {
		gain = channel.MaxGain
	}
	v := int64(vpp) * 128 * gainScale[gain] / 8
	if probe10x {
		v *= 10
	}
	return v
}

// Frequency converts a counter delta into display units for rate r.
func Frequency(delta uint32, r ratetable.Rate) uint64 {
	return uint64(delta) * uint64(r.FrequencyScale)
}

// BinFrequency converts a spectrum bin into display units for rate r.
func BinFrequency(bin int, r ratetable.Rate) uint64 {
	if bin <= 0 {
		return 0
	}
	return uint64(bin) * uint64(r.FrequencyScale/256)
}

// Record is the latest meter reading.
type Record struct {
	Mode settings.MeterMode `json:"mode"`
	// DC is the DC level of each channel in converter units.
	DC [2]int16 `json:"dc"`
	// VPP is the peak-to-peak reading of each channel in display units.
	VPP [2]int64 `json:"vpp"`
	// Count is the counter delta of the last second or, in counter mode,
	// the raw event count.
	Count uint32 `json:"count"`
	// Frequency is Count scaled by the rate's frequency scale.
	Frequency uint64 `json:"frequency"`
	// ChannelFrequency is each channel's dominant frequency from the spectrum.
	ChannelFrequency [2]uint64 `json:"channel_frequency"`
	Elapsed          Elapsed   `json:"elapsed"`
}

// Elapsed is the hours:minutes:seconds timer shown in counter mode.
type Elapsed struct {
	Hours   uint8 `json:"hours"`
	Minutes uint8 `json:"minutes"`
	Seconds uint8 `json:"seconds"`
}

// Tick advances the timer by one second unless stopped.
func (e *Elapsed) Tick(stopped bool) {
	if stopped {
		return
	}
	e.Seconds++
	if e.Seconds >= 60 {
		e.Seconds = 0
		e.Minutes++
		if e.Minutes >= 60 {
			e.Minutes = 0
			e.Hours++
		}
	}
}

func (e Elapsed) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", e.Hours, e.Minutes, e.Seconds)
}
