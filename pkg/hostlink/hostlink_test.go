package hostlink

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mso/pkg/engine"
	"github.com/mso/pkg/measure"
	"github.com/mso/pkg/settings"
	"github.com/mso/pkg/sim"
)

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	b, err := sim.New(settings.SimulatorConfig{
		CH1:              settings.Wave{Shape: "square", Frequency: 1000, Amplitude: 50},
		CH2:              settings.Wave{Shape: "dc"},
		DigitalFrequency: 1000,
		CounterFrequency: 1000,
	})
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}
	b.Seed(1)
	return engine.New(b, settings.Default(), engine.Options{TickPeriod: 50 * time.Millisecond})
}

type recordingSink struct{ n int }

func (r *recordingSink) StoreSample(int, uint8, uint8, uint8) { r.n++ }

func TestHandle(t *testing.T) {
	type testCase struct {
		name    string
		op      byte
		payload []byte
		check   func(t *testing.T, e *engine.Engine, reply []byte)
	}
	tests := []testCase{
		{
			name: "version",
			op:   OpVersion,
			check: func(t *testing.T, e *engine.Engine, reply []byte) {
				if string(reply) != DefaultVersion {
					t.Errorf("version = %q, want %q", reply, DefaultVersion)
				}
			},
		},
		{
			name:    "register write",
			op:      OpWriteRegister,
			payload: []byte{byte(settings.RegTriggerLevel), 200},
			check: func(t *testing.T, e *engine.Engine, reply []byte) {
				if s := e.Settings(); s.Trigger.Level != 200 {
					t.Errorf("trigger level = %d, want 200", s.Trigger.Level)
				}
			},
		},
		{
			name:    "awg frequency",
			op:      OpAWGFrequency,
			payload: []byte{0x40, 0x42, 0x0F, 0x00},
			check: func(t *testing.T, e *engine.Engine, reply []byte) {
				s := e.Settings()
				if s.AWG.DesiredFrequency != 1000000 {
					t.Errorf("awg frequency = %d, want 1000000", s.AWG.DesiredFrequency)
				}
				if !s.Status.UpdateAWG {
					t.Errorf("awg update not requested")
				}
			},
		},
		{
			name:    "post trigger clamped",
			op:      OpPostTrigger,
			payload: []byte{0xFF, 0xFF},
			check: func(t *testing.T, e *engine.Engine, reply []byte) {
				if s := e.Settings(); s.Trigger.PostTriggerCount != settings.MaxPostTrigger {
					t.Errorf("post trigger = %d, want %d", s.Trigger.PostTriggerCount, settings.MaxPostTrigger)
				}
			},
		},
		{
			name: "stop",
			op:   OpStop,
			check: func(t *testing.T, e *engine.Engine, reply []byte) {
				if s := e.Settings(); !s.Status.Stop {
					t.Errorf("not stopped")
				}
			},
		},
		{
			name: "autosetup",
			op:   OpAutoSetup,
			check: func(t *testing.T, e *engine.Engine, reply []byte) {
				if !e.AutoSetupActive() {
					t.Errorf("auto-setup not started")
				}
			},
		},
		{
			name: "snapshot",
			op:   OpSnapshot,
			check: func(t *testing.T, e *engine.Engine, reply []byte) {
				s := e.Settings()
				want := s.Snapshot()
				if !bytes.Equal(reply, want[:]) {
					t.Errorf("snapshot = %x, want %x", reply, want)
				}
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newEngine(t)
			d := NewDispatcher(e, "")
			reply, err := d.Handle(tc.op, tc.payload)
			if err != nil {
				t.Fatalf("Handle(%q): %v", tc.op, err)
			}
			tc.check(t, e, reply)
		})
	}
}

func TestHandleErrors(t *testing.T) {
	d := NewDispatcher(newEngine(t), "")
	if _, err := d.Handle('z', nil); !errors.Is(err, ErrUnknownOpcode) {
		t.Errorf("opcode z: err = %v, want ErrUnknownOpcode", err)
	}
	if _, err := d.Handle(OpWriteRegister, []byte{1}); !errors.Is(err, ErrShortPayload) {
		t.Errorf("short write: err = %v, want ErrShortPayload", err)
	}
	if _, err := d.Handle(OpWriteRegister, []byte{200, 1}); !errors.Is(err, settings.ErrUnknownField) {
		t.Errorf("register 200: err = %v, want ErrUnknownField", err)
	}
	if _, err := d.Handle(OpSave, nil); !errors.Is(err, engine.ErrNoSettingsFile) {
		t.Errorf("save: err = %v, want ErrNoSettingsFile", err)
	}
}

func TestForceWhileStoppedIsIgnored(t *testing.T) {
	d := NewDispatcher(newEngine(t), "")
	if _, err := d.Handle(OpStop, nil); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := d.Handle(OpForceTrigger, nil); err != nil {
		t.Errorf("force while stopped: %v", err)
	}
}

func TestLoadSnapshot(t *testing.T) {
	e := newEngine(t)
	d := NewDispatcher(e, "")
	s := settings.Default()
	s.CH1.Gain = 2
	s.Trigger.Level = 90
	snap := s.Snapshot()
	if _, err := d.Handle(OpLoadSnapshot, snap[:]); err != nil {
		t.Fatalf("load: %v", err)
	}
	got := e.Settings()
	if got.CH1.Gain != 2 || got.Trigger.Level != 90 {
		t.Errorf("gain %d level %d, want 2 90", got.CH1.Gain, got.Trigger.Level)
	}
}

func TestAutosendGate(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(newEngine(t), "")
	d.Gate = NewGate(sink)
	d.Gate.StoreSample(0, 1, 2, 3)
	if _, err := d.Handle(OpAutosendOn, nil); err != nil {
		t.Fatal(err)
	}
	d.Gate.StoreSample(1, 1, 2, 3)
	if _, err := d.Handle(OpAutosendOff, nil); err != nil {
		t.Fatal(err)
	}
	d.Gate.StoreSample(2, 1, 2, 3)
	if sink.n != 1 {
		t.Errorf("forwarded %d samples, want 1", sink.n)
	}
}

type pipe struct {
	in  *bytes.Reader
	out bytes.Buffer
}

func (p *pipe) Read(b []byte) (int, error)  { return p.in.Read(b) }
func (p *pipe) Write(b []byte) (int, error) { return p.out.Write(b) }

func TestServe(t *testing.T) {
	e := newEngine(t)
	d := NewDispatcher(e, "9.99")
	stream := []byte{
		OpVersion,
		'z', // skipped
		OpWriteRegister, byte(settings.RegCH1Gain), 3,
		OpMeter,
	}
	p := &pipe{in: bytes.NewReader(stream)}
	if err := d.Serve(context.Background(), p); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if got := p.out.Bytes(); len(got) != VersionSize+4 || string(got[:4]) != "9.99" {
		t.Errorf("replies = %q, want version then 4 meter bytes", got)
	}
	if s := e.Settings(); s.CH1.Gain != 3 {
		t.Errorf("CH1 gain = %d, want 3", s.CH1.Gain)
	}
}

func TestRequestPacking(t *testing.T) {
	type testCase struct {
		op      byte
		payload []byte
		want    Request
	}
	tests := []testCase{
		{op: OpWriteRegister, payload: []byte{25, 140}, want: Request{Op: OpWriteRegister, Index: 25, Value: 140}},
		{op: OpAWGFrequency, payload: []byte{1, 2, 3, 4}, want: Request{Op: OpAWGFrequency, Index: 0x0201, Value: 0x0403}},
		{op: OpPostTrigger, payload: []byte{0x34, 0x12}, want: Request{Op: OpPostTrigger, Value: 0x1234}},
		{op: OpStart, want: Request{Op: OpStart}},
	}
	for _, tc := range tests {
		r, err := NewRequest(tc.op, tc.payload)
		if err != nil {
			t.Fatalf("NewRequest(%q): %v", tc.op, err)
		}
		if r.Op != tc.want.Op || r.Index != tc.want.Index || r.Value != tc.want.Value {
			t.Errorf("NewRequest(%q) = %+v, want %+v", tc.op, r, tc.want)
		}
		back, err := r.Payload()
		if err != nil {
			t.Fatalf("Payload(%q): %v", tc.op, err)
		}
		if !bytes.Equal(back, tc.payload) {
			t.Errorf("Payload(%q) = %v, want %v", tc.op, back, tc.payload)
		}
	}
}

func TestMeterReply(t *testing.T) {
	type testCase struct {
		rec  measure.Record
		want [4]byte
	}
	tests := []testCase{
		{rec: measure.Record{Mode: settings.MeterFrequency, Frequency: 100000}, want: [4]byte{0xA0, 0x86, 0x01, 0x00}},
		{rec: measure.Record{Mode: settings.MeterCounter, Count: 7}, want: [4]byte{7, 0, 0, 0}},
		{rec: measure.Record{Mode: settings.MeterDC, DC: [2]int16{160, -64}}, want: [4]byte{0xA0, 0x00, 0xC0, 0xFF}},
		{rec: measure.Record{Mode: settings.MeterPeakToPeak, VPP: [2]int64{100000, 5}}, want: [4]byte{0xFF, 0x7F, 5, 0}},
	}
	for _, tc := range tests {
		got := MeterReply(tc.rec)
		if got != tc.want {
			t.Errorf("MeterReply(%v) = %x, want %x", tc.rec.Mode, got, tc.want)
		}
		dec, err := DecodeMeter(tc.rec.Mode, got[:])
		if err != nil {
			t.Fatalf("DecodeMeter: %v", err)
		}
		if tc.rec.Mode == settings.MeterDC && dec.DC != tc.rec.DC {
			t.Errorf("decoded DC = %v, want %v", dec.DC, tc.rec.DC)
		}
	}
}

type fakeControl struct {
	rType, request uint8
	val, idx       uint16
	reply          []byte
}

func (f *fakeControl) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	f.rType, f.request, f.val, f.idx = rType, request, val, idx
	return copy(data, f.reply), nil
}

func (f *fakeControl) Close() error { return nil }

func TestClient(t *testing.T) {
	dev := &fakeControl{}
	c := NewClient(dev)
	if err := c.WriteRegister(settings.RegTriggerLevel, 77); err != nil {
		t.Fatalf("WriteRegister: %v", err)
	}
	if dev.rType != requestTypeVendorOut || dev.request != OpWriteRegister || dev.idx != uint16(settings.RegTriggerLevel) || dev.val != 77 {
		t.Errorf("control = %#x %q %d %d", dev.rType, dev.request, dev.val, dev.idx)
	}

	dev.reply = []byte("2.72")
	v, err := c.Version()
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != "2.72" || dev.rType != requestTypeVendorIn {
		t.Errorf("version = %q via %#x", v, dev.rType)
	}

	dev.reply = []byte{1}
	if _, err := c.Meter(); !errors.Is(err, ErrShortPayload) {
		t.Errorf("short meter reply: err = %v, want ErrShortPayload", err)
	}
}
