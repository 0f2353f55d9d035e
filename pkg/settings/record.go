package settings

import (
	"encoding/binary"
	"fmt"

	"github.com/mso/pkg/trigger"
)

const (
	// RecordSize is the length of the persisted settings record.
	RecordSize = 32
	// ControlSize is the number of bit-packed control bytes ahead of the record.
	ControlSize = 12
	// SnapshotSize is the control bytes followed by the record.
	SnapshotSize = ControlSize + RecordSize
)

// Byte offsets inside the persisted record.
const (
	offCH1Gain = iota
	offCH2Gain
	offHPos
	offVcursorA
	offVcursorB
	offHcursor1A
	offHcursor1B
	offHcursor2A
	offHcursor2B
	offHoldoff
	offPostTrigger // 2 bytes, little endian
	_
	offTriggerSource
	offTriggerLevel
	offWindow1
	offWindow2
	offTriggerTimeout
	offCH1Position
	offCH2Position
	offDigitalPosition
	offDecode
	offSweepStart
	offSweepEnd
	offSweepSpeed
	offAWGAmplitude
	offAWGType
	offAWGDuty
	offAWGOffset
	offAWGFrequency // 4 bytes, little endian
)

// MarshalRecord encodes the persisted fields in their fixed order.
func (s *Settings) MarshalRecord() [RecordSize]byte {
	var b [RecordSize]byte
	b[offCH1Gain] = s.CH1.Gain
	b[offCH2Gain] = s.CH2.Gain
	b[offHPos] = s.HPos
	b[offVcursorA] = s.Cursors.VA
	b[offVcursorB] = s.Cursors.VB
	b[offHcursor1A] = s.Cursors.H1A
	b[offHcursor1B] = s.Cursors.H1B
	b[offHcursor2A] = s.Cursors.H2A
	b[offHcursor2B] = s.Cursors.H2B
	b[offHoldoff] = s.Trigger.HoldoffTicks
	binary.LittleEndian.PutUint16(b[offPostTrigger:], s.Trigger.PostTriggerCount)
	b[offTriggerSource] = uint8(s.Trigger.Source)
	b[offTriggerLevel] = s.Trigger.Level
	b[offWindow1] = s.Trigger.Window.High
	b[offWindow2] = s.Trigger.Window.Low
	b[offTriggerTimeout] = s.Trigger.Timeout
	b[offCH1Position] = uint8(s.CH1.Position)
	b[offCH2Position] = uint8(s.CH2.Position)
	b[offDigitalPosition] = s.Digital.Position
	b[offDecode] = s.Digital.Decode
	b[offSweepStart] = s.Sweep.Start
	b[offSweepEnd] = s.Sweep.End
	b[offSweepSpeed] = s.Sweep.Speed
	b[offAWGAmplitude] = uint8(s.AWG.Amplitude)
	b[offAWGType] = s.AWG.Type
	b[offAWGDuty] = s.AWG.Duty
	b[offAWGOffset] = uint8(s.AWG.Offset)
	binary.LittleEndian.PutUint32(b[offAWGFrequency:], s.AWG.DesiredFrequency)
	return b
}

// UnmarshalRecord decodes a persisted record. Values are taken as stored;
// call Validate to bring them into range.
func (s *Settings) UnmarshalRecord(b []byte) error {
	if len(b) != RecordSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrRecordSize, len(b), RecordSize)
	}
	s.CH1.Gain = b[offCH1Gain]
	s.CH2.Gain = b[offCH2Gain]
	s.HPos = b[offHPos]
	s.Cursors.VA = b[offVcursorA]
	s.Cursors.VB = b[offVcursorB]
	s.Cursors.H1A = b[offHcursor1A]
	s.Cursors.H1B = b[offHcursor1B]
	s.Cursors.H2A = b[offHcursor2A]
	s.Cursors.H2B = b[offHcursor2B]
	s.Trigger.HoldoffTicks = b[offHoldoff]
	s.Trigger.PostTriggerCount = binary.LittleEndian.Uint16(b[offPostTrigger:])
	s.Trigger.Source = trigger.Source(b[offTriggerSource])
	s.Trigger.Level = b[offTriggerLevel]
	s.Trigger.Window.High = b[offWindow1]
	s.Trigger.Window.Low = b[offWindow2]
	s.Trigger.Timeout = b[offTriggerTimeout]
	s.CH1.Position = int8(b[offCH1Position])
	s.CH2.Position = int8(b[offCH2Position])
	s.Digital.Position = b[offDigitalPosition]
	s.Digital.Decode = b[offDecode]
	s.Sweep.Start = b[offSweepStart]
	s.Sweep.End = b[offSweepEnd]
	s.Sweep.Speed = b[offSweepSpeed]
	s.AWG.Amplitude = int8(b[offAWGAmplitude])
	s.AWG.Type = b[offAWGType]
	s.AWG.Duty = b[offAWGDuty]
	s.AWG.Offset = int8(b[offAWGOffset])
	s.AWG.DesiredFrequency = binary.LittleEndian.Uint32(b[offAWGFrequency:])
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler with the 32-byte record.
func (s *Settings) MarshalBinary() ([]byte, error) {
	r := s.MarshalRecord()
	return r[:], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (s *Settings) UnmarshalBinary(b []byte) error {
	return s.UnmarshalRecord(b)
}

// Snapshot returns the control bytes followed by the record.
func (s *Settings) Snapshot() [SnapshotSize]byte {
	var out [SnapshotSize]byte
	for i := 0; i < ControlSize; i++ {
		out[i] = s.controlByte(i)
	}
	r := s.MarshalRecord()
	copy(out[ControlSize:], r[:])
	return out
}

// LoadSnapshot decodes a full snapshot.
func (s *Settings) LoadSnapshot(b []byte) error {
	if len(b) != SnapshotSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrRecordSize, len(b), SnapshotSize)
	}
	for i := 0; i < ControlSize; i++ {
		s.setControlByte(i, b[i])
	}
	return s.UnmarshalRecord(b[ControlSize:])
}
