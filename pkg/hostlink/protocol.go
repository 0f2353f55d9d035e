package hostlink

import (
	"fmt"
)

// Opcodes of the host command protocol.
const (
	OpVersion       byte = 'a'
	OpWriteRegister byte = 'b'
	OpAWGFrequency  byte = 'c'
	OpSave          byte = 'd'
	OpStop          byte = 'f'
	OpStart         byte = 'g'
	OpForceTrigger  byte = 'h'
	OpAutoSetup     byte = 'i'
	OpPostTrigger   byte = 'j'
	OpDefaults      byte = 'k'
	OpMeter         byte = 'm'
	OpAutosendOff   byte = 'p'
	OpAutosendOn    byte = 'q'
	OpSnapshot      byte = 'u'
	// OpLoadSnapshot writes all 44 snapshot bytes at once.
	OpLoadSnapshot byte = 'U'
)

// VersionSize is the length of the version reply.
const VersionSize = 4

var payloadSizes = map[byte]int{
	OpVersion:       0,
	OpWriteRegister: 2,
	OpAWGFrequency:  4,
	OpSave:          0,
	OpStop:          0,
	OpStart:         0,
	OpForceTrigger:  0,
	OpAutoSetup:     0,
	OpPostTrigger:   2,
	OpDefaults:      0,
	OpMeter:         0,
	OpAutosendOff:   0,
	OpAutosendOn:    0,
	OpSnapshot:      0,
	OpLoadSnapshot:  snapshotSize,
}

var replySizes = map[byte]int{
	OpVersion:  VersionSize,
	OpMeter:    4,
	OpSnapshot: snapshotSize,
}

// PayloadSize returns the number of request bytes that follow op on a
// byte stream.
func PayloadSize(op byte) (int, error) {
	n, ok := payloadSizes[op]
	if !ok {
		return 0, fmt.Errorf("%w: %#02x", ErrUnknownOpcode, op)
	}
	return n, nil
}

// ReplySize returns the number of bytes the device answers op with.
func ReplySize(op byte) int {
	return replySizes[op]
}

// Request is a command as carried by a USB control transfer: the opcode in
// bRequest and up to four payload bytes packed into wValue and wIndex.
// Longer payloads travel in the data stage.
type Request struct {
	Op    byte
	Value uint16
	Index uint16
	Data  []byte
}

// Payload unpacks the setup fields into the byte-stream payload of r.Op.
func (r Request) Payload() ([]byte, error) {
	switch r.Op {
	case OpWriteRegister:
		return []byte{byte(r.Index), byte(r.Value)}, nil
	case OpAWGFrequency:
		return []byte{byte(r.Index), byte(r.Index >> 8), byte(r.Value), byte(r.Value >> 8)}, nil
	case OpPostTrigger:
		return []byte{byte(r.Value), byte(r.Value >> 8)}, nil
	case OpLoadSnapshot:
		if len(r.Data) < snapshotSize {
			return nil, fmt.Errorf("%w: data stage has %d bytes", ErrShortPayload, len(r.Data))
		}
		return r.Data[:snapshotSize], nil
	}
	if _, err := PayloadSize(r.Op); err != nil {
		return nil, err
	}
	return nil, nil
}

// NewRequest packs a byte-stream payload into setup fields.
func NewRequest(op byte, payload []byte) (Request, error) {
	n, err := PayloadSize(op)
	if err != nil {
		return Request{}, err
	}
	if len(payload) < n {
		return Request{}, fmt.Errorf("%w: %q wants %d bytes, got %d", ErrShortPayload, op, n, len(payload))
	}
	r := Request{Op: op}
	switch op {
	case OpWriteRegister:
		r.Index = uint16(payload[0])
		r.Value = uint16(payload[1])
	case OpAWGFrequency:
		r.Index = uint16(payload[0]) | uint16(payload[1])<<8
		r.Value = uint16(payload[2]) | uint16(payload[3])<<8
	case OpPostTrigger:
		r.Value = uint16(payload[0]) | uint16(payload[1])<<8
	case OpLoadSnapshot:
		r.Data = append([]byte(nil), payload[:n]...)
	}
	return r, nil
}
