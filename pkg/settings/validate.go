package settings

import (
	"github.com/mso/pkg/channel"
	"github.com/mso/pkg/ratetable"
	"github.com/mso/pkg/trigger"
)

// Range limits enforced by Validate.
const (
	MaxHPos           = 128
	MaxVerticalCursor = 127
	MaxHorizCursor    = 63
	MinTriggerLevel   = 3
	MinTriggerTimeout = 3
	MaxPostTrigger    = 32767
	MaxDecode         = 3
	MaxAWGType        = 4
	MaxSweepSpeed     = 127
	// MaxAWGFrequency is the highest AWG frequency, in hundredths of Hz.
	MaxAWGFrequency = 12517375
	// MaxMeterGain limits the gain while measuring voltage in meter mode.
	MaxMeterGain = 3
)

func clampU8(v *uint8, lo, hi uint8) {
	if *v < lo {
		*v = lo
	}
	if *v > hi {
		*v = hi
	}
}

// MaxGain is the highest gain allowed in the current mode.
func (s *Settings) MaxGain() uint8 {
	if s.Mode.Meter() {
		switch s.Status.Meter() {
		case MeterDC, MeterPeakToPeak:
			return MaxMeterGain
		}
	}
	return channel.MaxGain
}

// Validate clamps every field into its valid range. It never fails.
func (s *Settings) Validate() {
	s.Rate = ratetable.Clamp(s.Rate)
	g := s.MaxGain()
	clampU8(&s.CH1.Gain, 0, g)
	clampU8(&s.CH2.Gain, 0, g)

	clampU8(&s.HPos, 0, MaxHPos)
	clampU8(&s.Cursors.VA, 0, MaxVerticalCursor)
	clampU8(&s.Cursors.VB, 0, MaxVerticalCursor)
	clampU8(&s.Cursors.H1A, 0, MaxHorizCursor)
	clampU8(&s.Cursors.H1B, 0, MaxHorizCursor)
	clampU8(&s.Cursors.H2A, 0, MaxHorizCursor)
	clampU8(&s.Cursors.H2B, 0, MaxHorizCursor)

	s.Trigger.Normalize()
	clampU8(&s.Trigger.Level, MinTriggerLevel, 255)
	clampU8(&s.Trigger.Timeout, MinTriggerTimeout, 255)
	if s.Trigger.Source > trigger.MaxSource {
		s.Trigger.Source = trigger.MaxSource
	}
	s.CheckPostTrigger()

	clampU8(&s.Digital.Decode, 0, MaxDecode)
	if maxPos := uint8((8 - s.Digital.Lines()) * 8); s.Digital.Position > maxPos {
		s.Digital.Position = 0
	}

	if s.Sweep.Start > s.Sweep.End {
		s.Sweep.Start = s.Sweep.End
	}
	clampU8(&s.Sweep.Speed, 1, MaxSweepSpeed)

	clampU8(&s.AWG.Type, 0, MaxAWGType)
	if s.AWG.DesiredFrequency > MaxAWGFrequency {
		s.AWG.DesiredFrequency = MaxAWGFrequency
	}
}

// CheckPostTrigger clamps the post-trigger count to the range the current
// rate can honor.
func (s *Settings) CheckPostTrigger() {
	min := ratetable.Lookup(s.Rate).MinPostTrigger
	if s.Trigger.PostTriggerCount < min {
		s.Trigger.PostTriggerCount = min
	}
	if s.Trigger.PostTriggerCount > MaxPostTrigger {
		s.Trigger.PostTriggerCount = MaxPostTrigger
	}
}
