package settings

import (
	"errors"
	"fmt"

	"github.com/mso/pkg/channel"
	"github.com/mso/pkg/trigger"
)

// ChannelPatch changes selected fields of one analog channel.
type ChannelPatch struct {
	Enabled  *bool   `json:"enabled,omitempty"`
	Gain     *uint8  `json:"gain,omitempty"`
	Position *int8   `json:"position,omitempty"`
	Invert   *bool   `json:"invert,omitempty"`
	Average  *bool   `json:"average,omitempty"`
	Math     *string `json:"math,omitempty"`
}

// Patch changes selected settings. Nil fields are left untouched.
type Patch struct {
	Rate      *uint8        `json:"rate,omitempty"`
	CH1       *ChannelPatch `json:"ch1,omitempty"`
	CH2       *ChannelPatch `json:"ch2,omitempty"`
	Source    *string       `json:"trigger_source,omitempty"`
	Trigger   *string       `json:"trigger_mode,omitempty"`
	Direction *string       `json:"trigger_direction,omitempty"`
	Policy    *string       `json:"trigger_policy,omitempty"`
	Level     *uint8        `json:"trigger_level,omitempty"`
	WindowLo  *uint8        `json:"window_low,omitempty"`
	WindowHi  *uint8        `json:"window_high,omitempty"`
	Holdoff   *uint8        `json:"holdoff,omitempty"`
	Post      *uint16       `json:"post_trigger,omitempty"`
	Timeout   *uint8        `json:"timeout,omitempty"`
	Mode      *string       `json:"mode,omitempty"`
	Meter     *string       `json:"meter,omitempty"`
	Roll      *bool         `json:"roll,omitempty"`
	Elastic   *bool         `json:"elastic,omitempty"`
	AWGFreq   *uint32       `json:"awg_frequency,omitempty"`
}

// ParseMath maps "none", "sub" and "mul" to a math mode.
func ParseMath(s string) (channel.MathMode, error) {
	switch s {
	case "none", "":
		return channel.MathNone, nil
	case "sub", "subtract":
		return channel.MathSubtract, nil
	case "mul", "multiply":
		return channel.MathMultiply, nil
	}
	return 0, fmt.Errorf("%w: math %q", ErrUnknownField, s)
}

// ParseSource accepts ch1, ch2, d0..d7 and ext.
func ParseSource(s string) (trigger.Source, error) {
	switch s {
	case "ch1", "CH1":
		return trigger.SourceCH1, nil
	case "ch2", "CH2":
		return trigger.SourceCH2, nil
	case "ext", "EXT":
		return trigger.SourceExternal, nil
	}
	if len(s) == 2 && (s[0] == 'd' || s[0] == 'D') && s[1] >= '0' && s[1] <= '7' {
		return trigger.DigitalSource(s[1] - '0'), nil
	}
	return 0, fmt.Errorf("%w: trigger source %q", ErrUnknownField, s)
}

// ParseTriggerMode accepts the names printed by trigger.Mode.String.
func ParseTriggerMode(s string) (trigger.Mode, error) {
	for m := trigger.ModeDualEdge; m <= trigger.ModeSlope; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: trigger mode %q", ErrUnknownField, s)
}

// ParsePolicy accepts the names printed by trigger.ArmPolicy.String.
func ParsePolicy(s string) (trigger.ArmPolicy, error) {
	for p := trigger.Free; p <= trigger.Auto; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: trigger policy %q", ErrUnknownField, s)
}

// ParseMeter accepts the names printed by MeterMode.String.
func ParseMeter(s string) (MeterMode, error) {
	for m := MeterFrequency; m <= MeterCounter; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: meter mode %q", ErrUnknownField, s)
}

// SetDisplayMode selects scope, xy, fft or meter.
func (s *Settings) SetDisplayMode(name string) error {
	m := s.Mode
	m.Scope, m.XY, m.FFT = false, false, false
	switch name {
	case "scope":
		m.Scope = true
	case "xy":
		m.XY = true
	case "fft":
		m.FFT = true
	case "meter":
	default:
		return fmt.Errorf("%w: display mode %q", ErrUnknownField, name)
	}
	s.Mode = m
	return nil
}

func (c *ChannelPatch) apply(st *channel.State) error {
	if c == nil {
		return nil
	}
	if c.Enabled != nil {
		st.Enabled = *c.Enabled
	}
	if c.Gain != nil {
		st.Gain = *c.Gain
	}
	if c.Position != nil {
		st.Position = *c.Position
	}
	if c.Invert != nil {
		st.Invert = *c.Invert
	}
	if c.Average != nil {
		st.Average = *c.Average
	}
	if c.Math != nil {
		m, err := ParseMath(*c.Math)
		if err != nil {
			return err
		}
		st.Math = m
	}
	return nil
}

// ApplyPatch applies every valid field of p, collecting errors for the
// invalid ones, then validates the result.
func (s *Settings) ApplyPatch(p *Patch) (Effects, error) {
	var e Effects
	if p == nil {
		return e, nil
	}
	var errs []error
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	touch := func(r Register) { e.Merge(WriteEffects(r, s.Rate)) }

	if p.Rate != nil {
		touch(RegRate)
		s.Rate = *p.Rate
	}
	if p.CH1 != nil {
		touch(RegCH1Control)
		check(p.CH1.apply(&s.CH1))
	}
	if p.CH2 != nil {
		touch(RegCH2Control)
		check(p.CH2.apply(&s.CH2))
	}
	if p.Source != nil {
		src, err := ParseSource(*p.Source)
		check(err)
		if err == nil {
			touch(RegTriggerSource)
			s.Trigger.Source = src
		}
	}
	if p.Trigger != nil {
		m, err := ParseTriggerMode(*p.Trigger)
		check(err)
		if err == nil {
			touch(RegTrigger)
			s.Trigger.Mode = m
		}
	}
	if p.Direction != nil {
		switch *p.Direction {
		case "rising":
			s.Trigger.Direction = trigger.Rising
		case "falling":
			s.Trigger.Direction = trigger.Falling
		default:
			check(fmt.Errorf("%w: direction %q", ErrUnknownField, *p.Direction))
		}
		touch(RegTrigger)
	}
	if p.Policy != nil {
		pol, err := ParsePolicy(*p.Policy)
		check(err)
		if err == nil {
			touch(RegTrigger)
			s.Trigger.Policy = pol
		}
	}
	if p.Level != nil {
		touch(RegTriggerLevel)
		s.Trigger.Level = *p.Level
	}
	if p.WindowLo != nil {
		touch(RegWindow2)
		s.Trigger.Window.Low = *p.WindowLo
	}
	if p.WindowHi != nil {
		touch(RegWindow1)
		s.Trigger.Window.High = *p.WindowHi
	}
	if p.Holdoff != nil {
		touch(RegHoldoff)
		s.Trigger.HoldoffTicks = *p.Holdoff
	}
	if p.Post != nil {
		e.Update = true
		s.Trigger.PostTriggerCount = *p.Post
	}
	if p.Timeout != nil {
		touch(RegTriggerTimeout)
		s.Trigger.Timeout = *p.Timeout
	}
	if p.Mode != nil {
		check(s.SetDisplayMode(*p.Mode))
		touch(RegMode)
	}
	if p.Meter != nil {
		m, err := ParseMeter(*p.Meter)
		check(err)
		if err == nil {
			touch(RegStatus)
			s.Status.SetMeter(m)
		}
	}
	if p.Roll != nil {
		touch(RegCursors)
		s.Cursors.Roll = *p.Roll
	}
	if p.Elastic != nil {
		touch(RegDisplay)
		s.Display.Elastic = *p.Elastic
	}
	if p.AWGFreq != nil {
		touch(RegAWGFrequency0)
		s.AWG.DesiredFrequency = *p.AWGFreq
	}
	s.Validate()
	return e, errors.Join(errs...)
}
