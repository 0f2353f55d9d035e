package settings

import (
	"fmt"

	"github.com/mso/pkg/trigger"
)

// Register indexes the host register map: 12 control bytes followed by the
// 32 record bytes.
type Register uint8

const (
	RegRate Register = iota
	RegCH1Control
	RegCH2Control
	RegDigitalControl
	RegDigitalMask
	RegTrigger
	RegCursors
	RegDisplay
	RegMode
	RegSweep
	RegSniffer
	RegStatus

	RegCH1Gain
	RegCH2Gain
	RegHPos
	RegVcursorA
	RegVcursorB
	RegHcursor1A
	RegHcursor1B
	RegHcursor2A
	RegHcursor2B
	RegHoldoff
	RegPostTriggerLo
	RegPostTriggerHi
	RegTriggerSource
	RegTriggerLevel
	RegWindow1
	RegWindow2
	RegTriggerTimeout
	RegCH1Position
	RegCH2Position
	RegDigitalPosition
	RegDecode
	RegSweepStart
	RegSweepEnd
	RegSweepSpeed
	RegAWGAmplitude
	RegAWGType
	RegAWGDuty
	RegAWGOffset
	RegAWGFrequency0
	RegAWGFrequency1
	RegAWGFrequency2
	RegAWGFrequency3

	RegisterCount
)

var registerNames = [RegisterCount]string{
	"Srate", "CH1ctrl", "CH2ctrl", "CHDctrl", "CHDmask", "Trigger",
	"Mcursors", "Display", "MFFT", "Sweep", "Sniffer", "MStatus",
	"CH1gain", "CH2gain", "HPos", "VcursorA", "VcursorB",
	"Hcursor1A", "Hcursor1B", "Hcursor2A", "Hcursor2B",
	"Thold", "TpostLo", "TpostHi", "Tsource", "Tlevel",
	"Window1", "Window2", "Ttimeout", "CH1pos", "CH2pos", "CHDpos",
	"CHDdecode", "Sweep1", "Sweep2", "SWSpeed",
	"AWGamp", "AWGtype", "AWGduty", "AWGoffset",
	"AWGdesiredF0", "AWGdesiredF1", "AWGdesiredF2", "AWGdesiredF3",
}

func (r Register) String() string {
	if r < RegisterCount {
		return registerNames[r]
	}
	return fmt.Sprintf("Register(%d)", uint8(r))
}

// Effects are the follow-up actions a register write requests.
type Effects struct {
	// Update restarts the current capture; set by trigger related writes.
	Update bool
	// Apply reconfigures acquisition.
	Apply bool
	// AWG regenerates the waveform output.
	AWG bool
	// ClearTriggered drops a slow-mode sweep in progress.
	ClearTriggered bool
}

// Merge ORs o into e.
func (e *Effects) Merge(o Effects) {
	e.Update = e.Update || o.Update
	e.Apply = e.Apply || o.Apply
	e.AWG = e.AWG || o.AWG
	e.ClearTriggered = e.ClearTriggered || o.ClearTriggered
}

// WriteEffects returns the effects of writing register r while running at rate.
func WriteEffects(r Register, rate uint8) Effects {
	var e Effects
	if r == RegRate && rate > 10 {
		e.ClearTriggered = true
	}
	switch {
	case r <= RegTrigger, r == RegCH1Gain, r == RegCH2Gain,
		r >= RegTriggerSource && r <= RegTriggerTimeout,
		r == RegSweepSpeed, r == RegAWGDuty:
		e.Update = true
	}
	if r <= RegCH2Gain {
		e.Apply = true
	}
	if r >= RegAWGAmplitude {
		e.AWG = true
	}
	return e
}

// Register returns the current value of register r.
func (s *Settings) Register(r Register) (uint8, error) {
	if r >= RegisterCount {
		return 0, fmt.Errorf("%w: register %d", ErrUnknownField, r)
	}
	snap := s.Snapshot()
	return snap[r], nil
}

// SetRegister writes one register and reports the effects of the write.
func (s *Settings) SetRegister(r Register, v uint8) (Effects, error) {
	if r >= RegisterCount {
		return Effects{}, fmt.Errorf("%w: register %d", ErrUnknownField, r)
	}
	e := WriteEffects(r, s.Rate)
	if r < RegCH1Gain {
		s.setControlByte(int(r), v)
		return e, nil
	}
	switch r {
	case RegCH1Gain:
		s.CH1.Gain = v
	case RegCH2Gain:
		s.CH2.Gain = v
	case RegHPos:
		s.HPos = v
	case RegVcursorA:
		s.Cursors.VA = v
	case RegVcursorB:
		s.Cursors.VB = v
	case RegHcursor1A:
		s.Cursors.H1A = v
	case RegHcursor1B:
		s.Cursors.H1B = v
	case RegHcursor2A:
		s.Cursors.H2A = v
	case RegHcursor2B:
		s.Cursors.H2B = v
	case RegHoldoff:
		s.Trigger.HoldoffTicks = v
	case RegPostTriggerLo:
		s.Trigger.PostTriggerCount = s.Trigger.PostTriggerCount&0xFF00 | uint16(v)
	case RegPostTriggerHi:
		s.Trigger.PostTriggerCount = s.Trigger.PostTriggerCount&0x00FF | uint16(v)<<8
	case RegTriggerSource:
		s.Trigger.Source = trigger.Source(v)
	case RegTriggerLevel:
		s.Trigger.Level = v
	case RegWindow1:
		s.Trigger.Window.High = v
	case RegWindow2:
		s.Trigger.Window.Low = v
	case RegTriggerTimeout:
		s.Trigger.Timeout = v
	case RegCH1Position:
		s.CH1.Position = int8(v)
	case RegCH2Position:
		s.CH2.Position = int8(v)
	case RegDigitalPosition:
		s.Digital.Position = v
	case RegDecode:
		s.Digital.Decode = v
	case RegSweepStart:
		s.Sweep.Start = v
	case RegSweepEnd:
		s.Sweep.End = v
	case RegSweepSpeed:
		s.Sweep.Speed = v
	case RegAWGAmplitude:
		s.AWG.Amplitude = int8(v)
	case RegAWGType:
		s.AWG.Type = v
	case RegAWGDuty:
		s.AWG.Duty = v
	case RegAWGOffset:
		s.AWG.Offset = int8(v)
	case RegAWGFrequency0, RegAWGFrequency1, RegAWGFrequency2, RegAWGFrequency3:
		shift := 8 * uint(r-RegAWGFrequency0)
		s.AWG.DesiredFrequency = s.AWG.DesiredFrequency&^(0xFF<<shift) | uint32(v)<<shift
	}
	return e, nil
}
