package capture

import (
	"github.com/mso/pkg/channel"
	"github.com/mso/pkg/ratetable"
	"github.com/mso/pkg/ring"
	"github.com/mso/pkg/trigger"
)

// Params is everything a fast capture needs, copied at StartCapture so a
// later settings change cannot alter a capture in flight.
type Params struct {
	Rate    ratetable.Rate
	Trigger trigger.Config
	CH1     channel.State
	CH2     channel.State
	// Immediate declares the capture triggered as soon as the window is
	// filled. Used for free-run, roll and meter modes.
	Immediate bool
}

// FastController drives one burst capture through the ring buffer. It is
// event driven: the owner feeds it conversions with OnSample and timer
// ticks with Tick, and collects the frame with PollTriggerAndFreeze.
type FastController struct {
	buf    *ring.Buffer
	proc   *channel.Processor
	frames *FrameCounter

	p     Params
	state State
	raw   trigger.Config
	level uint8

	holdoff       int
	prefill       int
	timeout       int
	postRemaining int
	prev          ring.Sample
	havePrev      bool
	forced        bool
	evaluations   uint64
	captureIndex  int
}

// NewFastController returns a controller writing into buf.
func NewFastController(buf *ring.Buffer, proc *channel.Processor, frames *FrameCounter) *FastController {
	return &FastController{buf: buf, proc: proc, frames: frames}
}

// StartCapture arms the ring for a new capture.
func (c *FastController) StartCapture(p Params) {
	p.Trigger.Normalize()
	c.p = p
	c.forced = false
	c.havePrev = false
	c.evaluations = 0

	var offset int8
	switch p.Trigger.Source {
	case trigger.SourceCH1:
		offset = p.CH1.OffsetCalibration
	case trigger.SourceCH2:
		offset = p.CH2.OffsetCalibration
	}
	c.raw, c.level = p.Trigger.Raw(offset)

	c.postRemaining = int(p.Rate.ProgrammedPostTrigger(p.Trigger.PostTriggerCount))
	span := channel.FrameSize * p.Rate.Step()
	c.prefill = span - c.postRemaining
	if c.prefill < 0 {
		c.prefill = 0
	}
	c.timeout = int(p.Trigger.Timeout)

	c.holdoff = 0
	if c.usesHoldoff() {
		c.holdoff = int(p.Trigger.HoldoffTicks)
	}
	c.buf.Reset()
	if c.holdoff > 0 {
		c.state = StateHoldoff
	} else {
		c.enterPrefill()
	}
}

func (c *FastController) usesHoldoff() bool {
	if c.p.Immediate {
		return false
	}
	switch c.p.Trigger.Policy {
	case trigger.Normal, trigger.Single, trigger.Auto:
		return true
	}
	return false
}

func (c *FastController) enterPrefill() {
	c.state = StatePrefill
	c.checkPrefill()
}

func (c *FastController) checkPrefill() {
	if c.buf.Written() < uint64(c.prefill) {
		return
	}
	if c.forced || c.p.Immediate || c.p.Trigger.Policy == trigger.Free {
		c.state = StatePostTrigger
		return
	}
	c.state = StateArmed
}

// State returns the current phase.
func (c *FastController) State() State { return c.state }

// Evaluations is the number of trigger condition checks made since
// StartCapture.
func (c *FastController) Evaluations() uint64 { return c.evaluations }

// Tick advances the holdoff and auto-trigger timers by one timer period.
func (c *FastController) Tick() {
	switch c.state {
	case StateHoldoff:
		c.holdoff--
		if c.holdoff <= 0 {
			c.enterPrefill()
		}
	case StateArmed:
		if c.p.Trigger.Policy != trigger.Auto {
			return
		}
		c.timeout--
		if c.timeout <= 0 {
			c.forced = true
			c.state = StatePostTrigger
		}
	}
}

// OnSample stores one conversion and advances the capture.
func (c *FastController) OnSample(s ring.Sample) {
	if !c.state.Running() {
		return
	}
	c.buf.Write(s)
	switch c.state {
	case StatePrefill:
		c.checkPrefill()
	case StateArmed:
		if c.havePrev {
			c.evaluations++
			if trigger.Evaluate(&c.raw, c.level, c.prev, s) {
				c.state = StatePostTrigger
			}
		}
	case StatePostTrigger:
		c.postRemaining--
		if c.postRemaining <= 0 {
			c.freeze()
		}
	}
	c.prev = s
	c.havePrev = true
}

// ForceTrigger ends a trigger wait as if the condition had been met. A
// capture still in holdoff or prefill skips the holdoff but keeps filling
// the pre-trigger window, so the frame never shows unwritten slots.
func (c *FastController) ForceTrigger() {
	switch c.state {
	case StateHoldoff:
		c.forced = true
		c.enterPrefill()
	case StatePrefill:
		c.forced = true
		c.checkPrefill()
	case StateArmed:
		c.forced = true
		c.state = StatePostTrigger
	}
}

// Cancel invalidates a capture that has not yet frozen.
func (c *FastController) Cancel() {
	if c.state.Running() {
		c.state = StateCancelled
	}
}

func (c *FastController) freeze() {
	c.captureIndex = ring.CaptureIndex(c.buf.Remaining(), c.p.Rate.Index == 0)
	c.state = StateFrozen
}

// CaptureIndex is the ring slot the extracted window starts at. Valid once frozen.
func (c *FastController) CaptureIndex() int { return c.captureIndex }

// PollTriggerAndFreeze returns the frame once the capture has frozen. ok is
// false while the capture is still running. A cancelled capture returns
// ErrCancelled and never yields a frame.
func (c *FastController) PollTriggerAndFreeze() (f *Frame, ok bool, err error) {
	switch c.state {
	case StateIdle:
		return nil, false, ErrNotStarted
	case StateCancelled:
		return nil, false, ErrCancelled
	case StateFrozen:
	default:
		return nil, false, nil
	}

	var raw1, raw2 [channel.FrameSize]uint8
	step := c.p.Rate.Step()
	ring.Extract(&c.buf.CH1, c.captureIndex, step, raw1[:])
	ring.Extract(&c.buf.CH2, c.captureIndex, step, raw2[:])

	f = &Frame{Rate: c.p.Rate.Index, Forced: c.forced}
	ring.Extract(&c.buf.Digital, c.captureIndex, step, f.Digital[:])
	for i := 0; i < channel.FrameSize; i++ {
		f.CH1[i], f.CH2[i] = c.proc.ProcessAt(i, raw1[i], raw2[i], &c.p.CH1, &c.p.CH2)
	}
	f.Counter = c.frames.Next()
	c.state = StateIdle
	return f, true, nil
}
