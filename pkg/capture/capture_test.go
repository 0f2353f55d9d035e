package capture

import (
	"errors"
	"testing"

	"github.com/mso/pkg/channel"
	"github.com/mso/pkg/ratetable"
	"github.com/mso/pkg/ring"
	"github.com/mso/pkg/trigger"
)

func newFast() (*FastController, *ring.Buffer) {
	var buf ring.Buffer
	var proc channel.Processor
	var frames FrameCounter
	return NewFastController(&buf, &proc, &frames), &buf
}

func edgeParams(rate uint8, post uint16) Params {
	return Params{
		Rate: ratetable.Lookup(rate),
		Trigger: trigger.Config{
			Source:           trigger.SourceCH1,
			Mode:             trigger.ModeEdge,
			Policy:           trigger.Normal,
			Level:            128,
			PostTriggerCount: post,
		},
	}
}

func TestHoldoffDelaysDetection(t *testing.T) {
	c, _ := newFast()
	p := edgeParams(1, 100)
	p.Trigger.HoldoffTicks = 50
	c.StartCapture(p)

	for tick := 0; tick < 50; tick++ {
		if c.State() != StateHoldoff {
			t.Fatalf("tick %d: state = %v, want holdoff", tick, c.State())
		}
		for i := 0; i < 20; i++ {
			c.OnSample(ring.Sample{CH1: uint8(i * 13)})
		}
		if n := c.Evaluations(); n != 0 {
			t.Fatalf("tick %d: %d trigger evaluations during holdoff", tick, n)
		}
		c.Tick()
	}
	if c.State() == StateHoldoff {
		t.Fatalf("still in holdoff after 50 ticks")
	}
	for i := 0; i < 2*ring.Size && c.Evaluations() == 0; i++ {
		c.OnSample(ring.Sample{CH1: 10})
	}
	if c.Evaluations() == 0 {
		t.Errorf("no trigger evaluation after holdoff expired")
	}
}

func TestFreeRunSkipsHoldoff(t *testing.T) {
	c, _ := newFast()
	p := edgeParams(1, 100)
	p.Trigger.HoldoffTicks = 50
	p.Trigger.Policy = trigger.Free
	c.StartCapture(p)
	if c.State() != StatePrefill {
		t.Errorf("state = %v, want prefill", c.State())
	}
}

func TestEdgeCaptureAlignsTrigger(t *testing.T) {
	c, buf := newFast()
	p := edgeParams(0, 100)
	c.StartCapture(p)

	// 300 low samples, then a step to high: the trigger fires on the step.
	for i := 0; i < 300; i++ {
		c.OnSample(ring.Sample{CH1: 20})
	}
	if c.State() != StateArmed {
		t.Fatalf("state = %v, want armed", c.State())
	}
	c.OnSample(ring.Sample{CH1: 200})
	if c.State() != StatePostTrigger {
		t.Fatalf("state = %v, want post-trigger", c.State())
	}
	for i := 0; i < 92; i++ {
		c.OnSample(ring.Sample{CH1: 200})
	}
	if c.State() != StateFrozen {
		t.Fatalf("state = %v after 92 post samples, want frozen", c.State())
	}
	if want := ring.CaptureIndex(buf.Remaining(), true); c.CaptureIndex() != want {
		t.Errorf("CaptureIndex = %d, want %d", c.CaptureIndex(), want)
	}

	f, ok, err := c.PollTriggerAndFreeze()
	if err != nil || !ok {
		t.Fatalf("PollTriggerAndFreeze = %v, %v", ok, err)
	}
	// Newest 256 samples: 163 low, the trigger sample, then 92 post samples.
	for i := 0; i < 256; i++ {
		want := uint8(20)
		if i >= 163 {
			want = 200
		}
		if f.CH1[i] != want {
			t.Fatalf("CH1[%d] = %d, want %d", i, f.CH1[i], want)
		}
	}
	if f.Counter != 1 || f.Forced {
		t.Errorf("frame counter %d forced %v, want 1 false", f.Counter, f.Forced)
	}
}

func TestAutoTimeoutForcesTrigger(t *testing.T) {
	c, _ := newFast()
	p := edgeParams(3, 10)
	p.Trigger.Policy = trigger.Auto
	p.Trigger.Timeout = 3
	c.StartCapture(p)
	for i := 0; i < ring.Size; i++ {
		c.OnSample(ring.Sample{CH1: 5})
	}
	for i := 0; i < 3; i++ {
		c.Tick()
	}
	if c.State() != StatePostTrigger {
		t.Fatalf("state = %v, want post-trigger after timeout", c.State())
	}
	for c.State() == StatePostTrigger {
		c.OnSample(ring.Sample{CH1: 5})
	}
	f, ok, err := c.PollTriggerAndFreeze()
	if err != nil || !ok || !f.Forced {
		t.Errorf("frame = %+v ok %v err %v, want forced frame", f, ok, err)
	}
}

func TestNormalNeverTimesOut(t *testing.T) {
	c, _ := newFast()
	p := edgeParams(3, 10)
	p.Trigger.Timeout = 3
	c.StartCapture(p)
	for i := 0; i < ring.Size; i++ {
		c.OnSample(ring.Sample{CH1: 5})
	}
	for i := 0; i < 100; i++ {
		c.Tick()
	}
	if c.State() != StateArmed {
		t.Errorf("state = %v, want armed", c.State())
	}
}

func TestCancelDiscardsCapture(t *testing.T) {
	c, _ := newFast()
	c.StartCapture(edgeParams(2, 50))
	for i := 0; i < 100; i++ {
		c.OnSample(ring.Sample{CH1: 1})
	}
	c.Cancel()
	f, ok, err := c.PollTriggerAndFreeze()
	if !errors.Is(err, ErrCancelled) || ok || f != nil {
		t.Errorf("after cancel got %v %v %v, want ErrCancelled", f, ok, err)
	}
	c.OnSample(ring.Sample{CH1: 200})
	if c.State() != StateCancelled {
		t.Errorf("cancelled capture resumed: %v", c.State())
	}
}

func TestForceTrigger(t *testing.T) {
	c, _ := newFast()
	c.StartCapture(edgeParams(1, 1))
	for c.State() == StatePrefill {
		c.OnSample(ring.Sample{CH1: 5})
	}
	if c.State() != StateArmed {
		t.Fatalf("state = %v, want armed", c.State())
	}
	c.ForceTrigger()
	if c.State() != StatePostTrigger {
		t.Fatalf("state = %v, want post-trigger", c.State())
	}
	for c.State() == StatePostTrigger {
		c.OnSample(ring.Sample{CH1: 5})
	}
	f, ok, err := c.PollTriggerAndFreeze()
	if err != nil || !ok || !f.Forced {
		t.Errorf("forced frame = %v %v %v", f, ok, err)
	}
}

func TestForceDuringHoldoffFillsWindow(t *testing.T) {
	tests := []struct {
		name  string
		ticks int
	}{
		{"holdoff", 0},
		{"prefill", 50},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newFast()
			p := edgeParams(1, 100)
			p.Trigger.HoldoffTicks = 50
			c.StartCapture(p)
			for i := 0; i < tc.ticks; i++ {
				c.Tick()
			}
			c.ForceTrigger()
			if c.State() != StatePrefill {
				t.Fatalf("state = %v after force, want prefill", c.State())
			}
			for i := 0; c.State().Running(); i++ {
				if i > 2*ring.Size {
					t.Fatalf("not frozen after %d samples (state %v)", i, c.State())
				}
				c.OnSample(ring.Sample{CH1: 200})
			}
			f, ok, err := c.PollTriggerAndFreeze()
			if err != nil || !ok {
				t.Fatalf("PollTriggerAndFreeze = %v, %v", ok, err)
			}
			if !f.Forced {
				t.Errorf("frame not marked forced")
			}
			for i, v := range f.CH1 {
				if v != 200 {
					t.Fatalf("CH1[%d] = %d, want 200 (unwritten slot in forced frame)", i, v)
				}
			}
		})
	}
}

type sinkRecorder struct{ indices []int }

func (r *sinkRecorder) StoreSample(index int, ch1, ch2, digital uint8) {
	r.indices = append(r.indices, index)
}

func TestSlowSamplerAverages(t *testing.T) {
	var proc channel.Processor
	var frames FrameCounter
	s := NewSlowSampler(&proc, &frames)
	s.Configure(12, 2, channel.State{Average: true}, channel.State{})

	if ev := s.Tick(ring.Sample{CH1: 10, CH2: 10}); ev != EventNone {
		t.Fatalf("first tick event = %v, want none", ev)
	}
	if ev := s.Tick(ring.Sample{CH1: 20, CH2: 30}); ev != EventStored {
		t.Fatalf("second tick event = %v, want stored", ev)
	}
	f := s.Snapshot()
	if f.CH1[0] != 15 {
		t.Errorf("averaged CH1 = %d, want 15", f.CH1[0])
	}
	if f.CH2[0] != 30 {
		t.Errorf("last CH2 = %d, want 30", f.CH2[0])
	}
	if s.WriteIndex() != 1 {
		t.Errorf("WriteIndex = %d, want 1", s.WriteIndex())
	}
}

func TestSlowSamplerSweepCompletes(t *testing.T) {
	var proc channel.Processor
	var frames FrameCounter
	s := NewSlowSampler(&proc, &frames)
	sink := &sinkRecorder{}
	s.Sink = sink
	s.Configure(11, 1, channel.State{}, channel.State{})

	for i := 0; i < channel.FrameSize-1; i++ {
		if ev := s.Tick(ring.Sample{CH1: uint8(i)}); ev != EventStored {
			t.Fatalf("tick %d event = %v", i, ev)
		}
	}
	if ev := s.Tick(ring.Sample{CH1: 255}); ev != EventSweepComplete {
		t.Fatalf("last tick event = %v, want sweep complete", ev)
	}
	if s.WriteIndex() != 0 || !s.Stopped() {
		t.Errorf("after sweep index %d stopped %v", s.WriteIndex(), s.Stopped())
	}
	if ev := s.Tick(ring.Sample{}); ev != EventNone {
		t.Errorf("tick after sweep = %v, want none until rearm", ev)
	}
	if len(sink.indices) != channel.FrameSize || sink.indices[255] != 255 {
		t.Errorf("sink saw %d samples", len(sink.indices))
	}
	s.Rearm()
	if ev := s.Tick(ring.Sample{}); ev != EventStored {
		t.Errorf("tick after rearm = %v, want stored", ev)
	}
}

func TestSlowSamplerRoll(t *testing.T) {
	var proc channel.Processor
	var frames FrameCounter
	s := NewSlowSampler(&proc, &frames)
	s.Roll = true
	s.Configure(11, 1, channel.State{}, channel.State{})
	for i := 0; i < channel.FrameSize+10; i++ {
		if ev := s.Tick(ring.Sample{CH1: uint8(i)}); ev != EventStored {
			t.Fatalf("roll tick %d event = %v", i, ev)
		}
	}
	f := s.Snapshot()
	// Oldest first: the last 256 values written were 10..265 (mod 256).
	if f.CH1[0] != 10 || f.CH1[255] != uint8(265%256) {
		t.Errorf("roll window = [%d..%d], want [10..9]", f.CH1[0], f.CH1[255])
	}
	if !f.Roll {
		t.Errorf("snapshot not marked roll")
	}
}
