package hostlink

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync/atomic"

	"github.com/mso/pkg/capture"
	"github.com/mso/pkg/engine"
	"github.com/mso/pkg/measure"
	"github.com/mso/pkg/settings"
)

const snapshotSize = settings.SnapshotSize

// DefaultVersion is reported by OpVersion when no version is configured.
const DefaultVersion = "2.72"

// Target is the engine surface the dispatcher drives.
type Target interface {
	Settings() settings.Settings
	Mutate(f func(s *settings.Settings) (settings.Effects, error)) error
	Command(c engine.Command) error
	Measurement() measure.Record
}

// Gate forwards slow-mode samples to the next sink while autosend is on.
type Gate struct {
	on   atomic.Bool
	next capture.SampleSink
}

// NewGate returns a closed gate in front of next.
func NewGate(next capture.SampleSink) *Gate {
	return &Gate{next: next}
}

func (g *Gate) StoreSample(index int, ch1, ch2, digital uint8) {
	if g.on.Load() && g.next != nil {
		g.next.StoreSample(index, ch1, ch2, digital)
	}
}

// SetEnabled opens or closes the gate.
func (g *Gate) SetEnabled(on bool) { g.on.Store(on) }

// Enabled reports whether samples are forwarded.
func (g *Gate) Enabled() bool { return g.on.Load() }

// Dispatcher executes host opcodes against a Target.
type Dispatcher struct {
	target  Target
	version [VersionSize]byte
	// Gate is toggled by the autosend opcodes; nil ignores them.
	Gate *Gate
}

// NewDispatcher returns a dispatcher for t. version is truncated or space
// padded to four bytes.
func NewDispatcher(t Target, version string) *Dispatcher {
	if version == "" {
		version = DefaultVersion
	}
	d := &Dispatcher{target: t}
	for i := range d.version {
		d.version[i] = ' '
	}
	copy(d.version[:], version)
	return d
}

// Handle executes one opcode and returns the reply bytes, if any.
func (d *Dispatcher) Handle(op byte, payload []byte) ([]byte, error) {
	n, err := PayloadSize(op)
	if err != nil {
		return nil, err
	}
	if len(payload) < n {
		return nil, fmt.Errorf("%w: %q wants %d bytes, got %d", ErrShortPayload, op, n, len(payload))
	}

	switch op {
	case OpVersion:
		out := d.version
		return out[:], nil

	case OpWriteRegister:
		r, v := settings.Register(payload[0]), payload[1]
		return nil, d.target.Mutate(func(s *settings.Settings) (settings.Effects, error) {
			return s.SetRegister(r, v)
		})

	case OpAWGFrequency:
		f := binary.LittleEndian.Uint32(payload)
		return nil, d.target.Mutate(func(s *settings.Settings) (settings.Effects, error) {
			s.AWG.DesiredFrequency = f
			return settings.Effects{AWG: true}, nil
		})

	case OpPostTrigger:
		post := binary.LittleEndian.Uint16(payload)
		return nil, d.target.Mutate(func(s *settings.Settings) (settings.Effects, error) {
			s.Trigger.PostTriggerCount = post
			s.CheckPostTrigger()
			return settings.Effects{Update: true}, nil
		})

	case OpLoadSnapshot:
		snap := payload[:snapshotSize]
		return nil, d.target.Mutate(func(s *settings.Settings) (settings.Effects, error) {
			if err := s.LoadSnapshot(snap); err != nil {
				return settings.Effects{}, err
			}
			return settings.Effects{Update: true, Apply: true, AWG: true}, nil
		})

	case OpSave:
		return nil, d.target.Command(engine.CommandSave)
	case OpStop:
		return nil, d.target.Command(engine.CommandStop)
	case OpStart:
		return nil, d.target.Command(engine.CommandStart)
	case OpForceTrigger:
		err := d.target.Command(engine.CommandForceTrigger)
		if errors.Is(err, engine.ErrStopped) {
			// A stopped instrument ignores the request.
			return nil, nil
		}
		return nil, err
	case OpAutoSetup:
		return nil, d.target.Command(engine.CommandAutoSetup)
	case OpDefaults:
		return nil, d.target.Command(engine.CommandRestoreDefaults)

	case OpMeter:
		out := MeterReply(d.target.Measurement())
		return out[:], nil

	case OpAutosendOff, OpAutosendOn:
		if d.Gate != nil {
			d.Gate.SetEnabled(op == OpAutosendOn)
		}
		return nil, nil

	case OpSnapshot:
		s := d.target.Settings()
		out := s.Snapshot()
		return out[:], nil
	}
	return nil, fmt.Errorf("%w: %#02x", ErrUnknownOpcode, op)
}

// HandleRequest executes a request received as a USB control transfer.
func (d *Dispatcher) HandleRequest(r Request) ([]byte, error) {
	payload, err := r.Payload()
	if err != nil {
		return nil, err
	}
	return d.Handle(r.Op, payload)
}

// Serve reads opcodes and their payloads from rw until ctx is done or the
// stream ends, writing each reply back. Unknown opcodes are skipped.
func (d *Dispatcher) Serve(ctx context.Context, rw io.ReadWriter) error {
	var op [1]byte
	payload := make([]byte, snapshotSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if _, err := io.ReadFull(rw, op[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read opcode: %w", err)
		}
		n, err := PayloadSize(op[0])
		if err != nil {
			continue
		}
		if _, err := io.ReadFull(rw, payload[:n]); err != nil {
			return fmt.Errorf("read %q payload: %w", op[0], err)
		}
		reply, err := d.Handle(op[0], payload[:n])
		if err != nil {
			return fmt.Errorf("opcode %q: %w", op[0], err)
		}
		if len(reply) > 0 {
			if _, err := rw.Write(reply); err != nil {
				return fmt.Errorf("write reply: %w", err)
			}
		}
	}
}

// MeterReply encodes a reading in four bytes: the frequency in frequency
// mode, the raw count in counter mode, or both channels as little endian
// int16 in the voltage modes.
func MeterReply(rec measure.Record) [4]byte {
	var b [4]byte
	switch rec.Mode {
	case settings.MeterFrequency:
		f := rec.Frequency
		if f > math.MaxUint32 {
			f = math.MaxUint32
		}
		binary.LittleEndian.PutUint32(b[:], uint32(f))
	case settings.MeterCounter:
		binary.LittleEndian.PutUint32(b[:], rec.Count)
	case settings.MeterDC:
		binary.LittleEndian.PutUint16(b[0:], uint16(rec.DC[0]))
		binary.LittleEndian.PutUint16(b[2:], uint16(rec.DC[1]))
	case settings.MeterPeakToPeak:
		binary.LittleEndian.PutUint16(b[0:], uint16(clamp16(rec.VPP[0])))
		binary.LittleEndian.PutUint16(b[2:], uint16(clamp16(rec.VPP[1])))
	}
	return b
}

// DecodeMeter reverses MeterReply for the given mode.
func DecodeMeter(mode settings.MeterMode, b []byte) (measure.Record, error) {
	if len(b) < 4 {
		return measure.Record{}, fmt.Errorf("%w: meter reply has %d bytes", ErrShortPayload, len(b))
	}
	rec := measure.Record{Mode: mode}
	switch mode {
	case settings.MeterFrequency:
		rec.Frequency = uint64(binary.LittleEndian.Uint32(b))
	case settings.MeterCounter:
		rec.Count = binary.LittleEndian.Uint32(b)
	case settings.MeterDC:
		rec.DC[0] = int16(binary.LittleEndian.Uint16(b[0:]))
		rec.DC[1] = int16(binary.LittleEndian.Uint16(b[2:]))
	case settings.MeterPeakToPeak:
		rec.VPP[0] = int64(int16(binary.LittleEndian.Uint16(b[0:])))
		rec.VPP[1] = int64(int16(binary.LittleEndian.Uint16(b[2:])))
	}
	return rec, nil
}

func clamp16(v int64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
