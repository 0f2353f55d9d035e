package settings

import (
	"github.com/mso/pkg/channel"
	"github.com/mso/pkg/trigger"
)

func pack(bits ...bool) uint8 {
	var v uint8
	for i, b := range bits {
		if b {
			v |= 1 << uint(i)
		}
	}
	return v
}

func unpack(v uint8, bits ...*bool) {
	for i, b := range bits {
		*b = v&(1<<uint(i)) != 0
	}
}

func channelByte(c *channel.State) uint8 {
	math := c.Math != channel.MathNone
	sub := c.Math == channel.MathSubtract
	return pack(c.Enabled, c.Probe10x, c.Derivative, c.ACCoupled, c.Invert, c.Average, math, sub)
}

func setChannelByte(c *channel.State, v uint8) {
	var math, sub bool
	unpack(v, &c.Enabled, &c.Probe10x, &c.Derivative, &c.ACCoupled, &c.Invert, &c.Average, &math, &sub)
	switch {
	case math && sub:
		c.Math = channel.MathSubtract
	case math:
		c.Math = channel.MathMultiply
	default:
		c.Math = channel.MathNone
	}
}

func triggerByte(t *trigger.Config) uint8 {
	return pack(
		t.Policy == trigger.Normal,
		t.Policy == trigger.Single,
		t.Policy == trigger.Auto,
		t.Direction == trigger.Falling,
		t.Round,
		t.Mode == trigger.ModeSlope,
		t.Mode == trigger.ModeWindow,
		t.Mode == trigger.ModeEdge,
	)
}

func setTriggerByte(t *trigger.Config, v uint8) {
	var normal, single, auto, falling, slope, window, edge bool
	unpack(v, &normal, &single, &auto, &falling, &t.Round, &slope, &window, &edge)
	switch {
	case single:
		t.Policy = trigger.Single
	case normal:
		t.Policy = trigger.Normal
	case auto:
		t.Policy = trigger.Auto
	default:
		t.Policy = trigger.Free
	}
	t.Direction = trigger.Rising
	if falling {
		t.Direction = trigger.Falling
	}
	switch {
	case edge:
		t.Mode = trigger.ModeEdge
	case window:
		t.Mode = trigger.ModeWindow
	case slope:
		t.Mode = trigger.ModeSlope
	default:
		t.Mode = trigger.ModeDualEdge
	}
}

// controlByte encodes control register i (0..11).
func (s *Settings) controlByte(i int) uint8 {
	switch i {
	case 0:
		return s.Rate
	case 1:
		return channelByte(&s.CH1)
	case 2:
		return channelByte(&s.CH2)
	case 3:
		d := &s.Digital
		return pack(d.Enabled, d.Pull, d.PullUp, d.Low, d.Invert, d.HexSerial, d.HexParallel, d.ASCII)
	case 4:
		return s.Digital.Mask
	case 5:
		return triggerByte(&s.Trigger)
	case 6:
		c := &s.Cursors
		return pack(c.Roll, c.Auto, c.Track, c.Horizontal1, c.Horizontal2, c.Vertical, c.Reference, c.SingleSniff)
	case 7:
		d := &s.Display
		return d.Grid&3 | pack(false, false, d.Elastic, d.Screenshot, d.Flip, d.Persistent, d.Line, d.ShowSettings)
	case 8:
		m := &s.Mode
		return pack(m.Hamming, m.Hann, m.Blackman, m.LogScale, m.IQ, m.Scope, m.XY, m.FFT)
	case 9:
		w := &s.Sweep
		return pack(w.AccelDown, w.Accel, w.Down, w.PingPong, w.Frequency, w.Amplitude, w.Offset, w.Duty)
	case 10:
		return s.Sniffer
	case 11:
		st := &s.Status
		return pack(st.Update, st.UpdateAWG, st.UpdateMSO, st.GoSniffer, st.Stop, st.Triggered, st.VDC, st.VPP)
	}
	return 0
}

// setControlByte decodes v into control register i (0..11).
func (s *Settings) setControlByte(i int, v uint8) {
	switch i {
	case 0:
		s.Rate = v
	case 1:
		setChannelByte(&s.CH1, v)
	case 2:
		setChannelByte(&s.CH2, v)
	case 3:
		d := &s.Digital
		unpack(v, &d.Enabled, &d.Pull, &d.PullUp, &d.Low, &d.Invert, &d.HexSerial, &d.HexParallel, &d.ASCII)
	case 4:
		s.Digital.Mask = v
	case 5:
		setTriggerByte(&s.Trigger, v)
	case 6:
		c := &s.Cursors
		unpack(v, &c.Roll, &c.Auto, &c.Track, &c.Horizontal1, &c.Horizontal2, &c.Vertical, &c.Reference, &c.SingleSniff)
	case 7:
		d := &s.Display
		var g0, g1 bool
		unpack(v, &g0, &g1, &d.Elastic, &d.Screenshot, &d.Flip, &d.Persistent, &d.Line, &d.ShowSettings)
		d.Grid = v & 3
	case 8:
		m := &s.Mode
		unpack(v, &m.Hamming, &m.Hann, &m.Blackman, &m.LogScale, &m.IQ, &m.Scope, &m.XY, &m.FFT)
	case 9:
		w := &s.Sweep
		unpack(v, &w.AccelDown, &w.Accel, &w.Down, &w.PingPong, &w.Frequency, &w.Amplitude, &w.Offset, &w.Duty)
	case 10:
		s.Sniffer = v
	case 11:
		st := &s.Status
		unpack(v, &st.Update, &st.UpdateAWG, &st.UpdateMSO, &st.GoSniffer, &st.Stop, &st.Triggered, &st.VDC, &st.VPP)
	}
}
