package autosetup

import (
	"github.com/mso/pkg/channel"
	"github.com/mso/pkg/ratetable"
	"github.com/mso/pkg/settings"
	"github.com/mso/pkg/trigger"
)

// Steps of the convergence sequence. The counter starts at StepStartFast
// and walks down to StepFinalize.
const (
	StepFinalize      = 0
	StepIncreaseGain  = 1
	StepDecreaseGain  = 2
	StepFaster        = 3
	StepSlower        = 4
	StepIncreaseGain2 = 5
	StepDecreaseGain2 = 6
	StepStartFast     = 7
)

// MeterRestartStep is where auto-setup resumes after a voltage reading.
const MeterRestartStep = StepSlower

// MaxInvocations caps one auto-setup run.
const MaxInvocations = 64

const (
	maxAutoGain      = 5
	maxAutoRate      = ratetable.FastMax
	clipHigh         = 250
	clipLow          = 18
	underHigh        = 188
	underLow         = 73
	binTooFast       = 124
	binTooSlow       = 50
	minTraceVpp      = 16
	reduceVpp        = 32
	finalHPos        = 64
	finalPostTrigger = 128
)

// Outcome reports what one invocation did.
type Outcome struct {
	// Step is the step that ended the invocation.
	Step int
	// Changed is set when gain or rate moved; settings must be re-applied.
	Changed bool
	// Done is set when the run finished, by finalizing or by the cap.
	Done bool
}

// Controller is the auto-setup state machine. It runs once per captured
// frame until it reaches StepFinalize without a pending change.
type Controller struct {
	step        int
	active      bool
	invocations int

	meterSaved bool
	savedRate  uint8
	savedGain  [2]uint8
}

// Start begins a run at StepStartFast.
func (c *Controller) Start() { c.StartAt(StepStartFast) }

// StartAt begins a run at step.
func (c *Controller) StartAt(step int) {
	if step < StepFinalize || step > StepStartFast {
		step = StepStartFast
	}
	c.step = step
	c.active = true
	c.invocations = 0
}

// Stop abandons a run.
func (c *Controller) Stop() { c.active = false }

// Active reports whether a run is in progress.
func (c *Controller) Active() bool { return c.active }

// Step is the next step to evaluate.
func (c *Controller) Step() int { return c.step }

// Invocations is the number of Run calls in the current run.
func (c *Controller) Invocations() int { return c.invocations }

// Begin starts auto-setup from the user command: it clears the stopped
// state and switches to free-running capture first.
func (c *Controller) Begin(s *settings.Settings) {
	s.Status.Stop = false
	s.Trigger.Policy = trigger.Free
	c.Start()
}

// EnterMeter saves rate and gains, zeroes the gains and starts a run.
func (c *Controller) EnterMeter(s *settings.Settings) {
	c.savedRate = s.Rate
	c.savedGain = [2]uint8{s.CH1.Gain, s.CH2.Gain}
	c.meterSaved = true
	s.CH1.Gain, s.CH2.Gain = 0, 0
	c.Start()
}

// ExitMeter restores the values saved by EnterMeter.
func (c *Controller) ExitMeter(s *settings.Settings) {
	c.active = false
	if !c.meterSaved {
		return
	}
	s.Rate = c.savedRate
	s.CH1.Gain, s.CH2.Gain = c.savedGain[0], c.savedGain[1]
	c.meterSaved = false
}

// Persistable returns a copy of s suitable for saving: while in meter mode
// the tuned rate and gains are replaced by the saved ones.
func (c *Controller) Persistable(s *settings.Settings) settings.Settings {
	out := *s
	if c.meterSaved && s.Mode.Meter() {
		out.Rate = c.savedRate
		out.CH1.Gain, out.CH2.Gain = c.savedGain[0], c.savedGain[1]
	}
	return out
}

func gainLimit(s *settings.Settings) uint8 {
	if s.Mode.Meter() {
		switch s.Status.Meter() {
		case settings.MeterDC, settings.MeterPeakToPeak:
			return settings.MaxMeterGain
		}
	}
	return maxAutoGain
}

// Run performs one invocation. stats must be computed from the latest
// frame with channel math and inversion disabled.
func (c *Controller) Run(s *settings.Settings, stats [2]channel.Stats) Outcome {
	if !c.active {
		return Outcome{Step: c.step, Done: true}
	}
	c.invocations++
	if c.invocations > MaxInvocations {
		c.active = false
		return Outcome{Step: c.step, Done: true}
	}

	rate, g1, g2 := s.Rate, s.CH1.Gain, s.CH2.Gain
	limit := gainLimit(s)
	for {
		if s.CH1.Gain > limit {
			s.CH1.Gain = limit
		}
		if s.CH2.Gain > limit {
			s.CH2.Gain = limit
		}
		if s.Rate > maxAutoRate {
			s.Rate = maxAutoRate
		}

		step := c.step
		switch step {
		case StepFinalize:
			finalize(s, stats)
		case StepIncreaseGain, StepIncreaseGain2:
			for i := 0; i < 2; i++ {
				st, ch := stats[i], s.Channel(i)
				if st.Max < underHigh && st.Min > underLow && ch.Gain < limit {
					ch.Gain++
				}
			}
		case StepDecreaseGain, StepDecreaseGain2:
			for i := 0; i < 2; i++ {
				st, ch := stats[i], s.Channel(i)
				if (st.Max >= clipHigh || st.Min < clipLow) && ch.Gain > 0 {
					ch.Gain--
				}
			}
		case StepFaster:
			if (stats[0].DominantBin > binTooFast || stats[1].DominantBin > binTooFast) && s.Rate > 1 {
				s.Rate--
			}
		case StepSlower:
			if stats[0].DominantBin < binTooSlow && stats[1].DominantBin < binTooSlow && s.Rate < maxAutoRate {
				s.Rate++
			}
		case StepStartFast:
			s.Rate = 1
		}

		changed := s.Rate != rate || s.CH1.Gain != g1 || s.CH2.Gain != g2
		if step == StepFinalize {
			c.active = false
			return Outcome{Step: step, Changed: changed, Done: true}
		}
		if changed {
			return Outcome{Step: step, Changed: true}
		}
		c.step--
	}
}

// half scales a sample's deviation from center by one half.
func half(v uint8) uint8 {
	return uint8(int(channel.Signed(v))/2 + channel.Center)
}

func finalize(s *settings.Settings, stats [2]channel.Stats) {
	if !s.Mode.Meter() {
		s.Trigger.Mode = trigger.ModeEdge
		s.CH1.Enabled = stats[0].Vpp >= minTraceVpp
		s.CH2.Enabled = stats[1].Vpp >= minTraceVpp
		if !s.CH1.Enabled && !s.CH2.Enabled {
			s.CH1.Enabled, s.CH2.Enabled = true, true
		}
		s.HPos = finalHPos
		s.Trigger.PostTriggerCount = finalPostTrigger

		center1 := stats[0].Min + stats[0].Vpp/2
		center2 := stats[1].Min + stats[1].Vpp/2
		f1, f2 := stats[0].DominantBin, stats[1].DominantBin
		switch {
		case s.CH1.Enabled && f1 > 1 && f1 >= f2:
			s.Trigger.Policy = trigger.Auto
			s.Trigger.Source = trigger.SourceCH1
			s.Trigger.Level = center1
			if s.CH1.Invert {
				s.Trigger.Level = 255 - s.Trigger.Level
			}
		case s.CH2.Enabled && f2 > 1:
			s.Trigger.Policy = trigger.Auto
			s.Trigger.Source = trigger.SourceCH2
			s.Trigger.Level = center2
			if s.CH2.Invert {
				s.Trigger.Level = 255 - s.Trigger.Level
			}
		}

		if s.Mode.Scope {
			vpp := [2]uint8{stats[0].Vpp, stats[1].Vpp}
			p1 := -int(center1) / 2
			p2 := -int(center2) / 2
			if s.CH1.Enabled && s.CH2.Enabled {
				if p1 >= -96 {
					p1 -= 32
				} else {
					p1 = -128
				}
				if p2 < -32 {
					p2 += 32
				} else {
					p2 = 0
				}
				reduce(s, &vpp)
			}
			s.CH1.Position, s.CH2.Position = int8(p1), int8(p2)
			reduce(s, &vpp)
		}
	}

	if !s.Mode.Meter() || s.Status.VDC || s.Status.VPP {
		f := stats[0].DominantBin
		if stats[1].DominantBin > f {
			f = stats[1].DominantBin
		}
		step := uint8(f / 16)
		if s.Rate > step {
			s.Rate -= step
		} else {
			s.Rate = 1
		}
	}
}

// reduce lowers the gain of channels whose trace is large, keeping the
// trigger level on the same point of the waveform.
func reduce(s *settings.Settings, vpp *[2]uint8) {
	for i := 0; i < 2; i++ {
		ch := s.Channel(i)
		if ch.Gain > 0 && vpp[i] > reduceVpp {
			ch.Gain--
			if s.Trigger.Source == trigger.Source(i) {
				s.Trigger.Level = half(s.Trigger.Level)
			}
			vpp[i] /= 2
		}
	}
}
