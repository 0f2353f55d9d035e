package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/mso/pkg/autosetup"
	"github.com/mso/pkg/capture"
	"github.com/mso/pkg/channel"
	"github.com/mso/pkg/measure"
	"github.com/mso/pkg/ratetable"
	"github.com/mso/pkg/ring"
	"github.com/mso/pkg/settings"
	"github.com/mso/pkg/trigger"
)

const (
	// maxSamplesPerTick bounds the conversions fed per timer period at the
	// fastest rates.
	maxSamplesPerTick = 4096
	defaultTick       = 40960 * time.Microsecond
	defaultQueueDepth = 8
)

// Options configure an Engine.
type Options struct {
	// TickPeriod is the holdoff and auto-trigger timer period.
	TickPeriod time.Duration
	// QueueDepth is the number of frames buffered for consumers. When the
	// queue is full the oldest frame is dropped.
	QueueDepth  int
	Calibration settings.Calibration
	// SettingsFile is where CommandSave writes the user settings.
	SettingsFile string
	// Paced makes Run wait one TickPeriod per tick instead of running flat out.
	Paced bool
	// Sink receives every stored slow-mode sample.
	Sink capture.SampleSink
}

// OptionsFromConfig builds paced engine options from the loaded config.
func OptionsFromConfig(cfg *settings.Config) Options {
	return Options{
		TickPeriod:   cfg.Engine.TickPeriod,
		QueueDepth:   cfg.Engine.QueueDepth,
		Calibration:  cfg.Calibration,
		SettingsFile: cfg.Engine.SettingsFile,
		Paced:        true,
	}
}

// Engine owns the acquisition state and runs the capture loop.
type Engine struct {
	board Board
	opts  Options

	cs      CriticalSection
	st      *EngineState
	inMeter bool
	clock   time.Duration
	conv    []ring.Sample

	pending atomic.Bool
	frames  chan *capture.Frame
	dropped atomic.Uint64
}

// New returns an engine driving board, starting from initial settings.
// The settings are validated and applied before New returns.
func New(board Board, initial settings.Settings, opts Options) *Engine {
	if opts.TickPeriod <= 0 {
		opts.TickPeriod = defaultTick
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = defaultQueueDepth
	}
	e := &Engine{
		board:  board,
		opts:   opts,
		st:     NewEngineState(initial),
		conv:   make([]ring.Sample, maxSamplesPerTick),
		frames: make(chan *capture.Frame, opts.QueueDepth),
	}
	e.cs.Do(e.apply)
	return e
}

// Frames delivers captured frames. Slow roll-mode snapshots are delivered
// here too.
func (e *Engine) Frames() <-chan *capture.Frame { return e.frames }

// Dropped is the number of frames discarded because the queue was full.
func (e *Engine) Dropped() uint64 { return e.dropped.Load() }

// Run ticks the engine until ctx is cancelled or the board fails.
func (e *Engine) Run(ctx context.Context) error {
	log.Printf("[ENGINE] running: tick %v, queue depth %d, paced %v", e.opts.TickPeriod, e.opts.QueueDepth, e.opts.Paced)
	var tick <-chan time.Time
	if e.opts.Paced {
		t := time.NewTicker(e.opts.TickPeriod)
		defer t.Stop()
		tick = t.C
	}
	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				log.Println("[ENGINE] stopped")
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			log.Println("[ENGINE] stopped")
			return nil
		}
		if err := e.Tick(); err != nil {
			return fmt.Errorf("engine tick: %w", err)
		}
	}
}

// Tick runs one timer period of the capture loop.
func (e *Engine) Tick() error {
	var err error
	e.cs.Do(func() { err = e.tick() })
	return err
}

func (e *Engine) tick() error {
	st := e.st
	if e.pending.Swap(false) {
		if st.Fast.State().Running() {
			st.Fast.Cancel()
			log.Println("[ENGINE] capture cancelled by settings change")
		}
		e.apply()
	}

	e.board.Advance(e.opts.TickPeriod)
	e.clock += e.opts.TickPeriod
	for e.clock >= time.Second {
		e.clock -= time.Second
		e.second()
	}

	if st.Settings.Status.Stop {
		return nil
	}
	if st.Rate.Fast() {
		return e.fastTick()
	}
	return e.slowTick()
}

// samplesPerTick is the number of conversions the converter makes in one
// timer period at rate r.
func samplesPerTick(r ratetable.Rate, period time.Duration) int {
	var perSecond float64
	if r.Fast() {
		perSecond = r.SamplesPerSecond * float64(r.Step())
	} else if r.TickPeriod > 0 {
		perSecond = float64(time.Second) / float64(r.TickPeriod)
	}
	n := int(perSecond * period.Seconds())
	if n < 1 {
		n = 1
	}
	if n > maxSamplesPerTick {
		n = maxSamplesPerTick
	}
	return n
}

func (e *Engine) params() capture.Params {
	st := e.st
	s := &st.Settings
	p := capture.Params{
		Rate:      st.Rate,
		Trigger:   s.Trigger,
		CH1:       s.CH1,
		CH2:       s.CH2,
		Immediate: s.Mode.Meter() || s.Cursors.Roll,
	}
	if st.AutoSetup.Active() {
		// Auto-setup measures the raw inputs.
		p.Immediate = true
		for _, ch := range []*channel.State{&p.CH1, &p.CH2} {
			ch.Invert = false
			ch.Math = channel.MathNone
		}
	}
	return p
}

func (e *Engine) fastTick() error {
	st := e.st
	switch st.Fast.State() {
	case capture.StateIdle, capture.StateCancelled:
		st.Fast.StartCapture(e.params())
	}

	for n := samplesPerTick(st.Rate, e.opts.TickPeriod); n > 0 && st.Fast.State().Running(); {
		chunk := e.conv
		if n < len(chunk) {
			chunk = chunk[:n]
		}
		got, err := e.board.Read(chunk)
		if err != nil {
			return fmt.Errorf("failed to read conversions: %w", err)
		}
		if got == 0 {
			break
		}
		for _, s := range chunk[:got] {
			st.Fast.OnSample(s)
			if !st.Fast.State().Running() {
				break
			}
		}
		n -= got
	}
	st.Fast.Tick()

	f, ok, err := st.Fast.PollTriggerAndFreeze()
	if err != nil && !errors.Is(err, capture.ErrCancelled) {
		return err
	}
	if ok {
		e.deliver(f)
	}
	return nil
}

func (e *Engine) slowTick() error {
	st := e.st
	n := 1
	if st.Rate.TickPeriod > 0 {
		n = int(e.opts.TickPeriod / st.Rate.TickPeriod)
	}
	if n < 1 {
		n = 1
	}
	stored := false
	for n > 0 {
		chunk := e.conv
		if n < len(chunk) {
			chunk = chunk[:n]
		}
		got, err := e.board.Read(chunk)
		if err != nil {
			return fmt.Errorf("failed to read conversions: %w", err)
		}
		if got == 0 {
			break
		}
		for _, s := range chunk[:got] {
			switch st.Slow.Tick(s) {
			case capture.EventStored:
				stored = true
			case capture.EventSweepComplete:
				stored = false
				e.deliver(st.Slow.Snapshot())
				if !st.Settings.Status.Stop {
					st.Slow.Rearm()
				}
			}
		}
		n -= got
	}
	if stored && st.Slow.Roll {
		e.publish(st.Slow.Snapshot())
	}
	return nil
}

// deliver runs the per-frame follow-up (auto-setup, measurements,
// single-shot stop) and queues the frame.
func (e *Engine) deliver(f *capture.Frame) {
	st := e.st
	s := &st.Settings
	w := s.Mode.Window()
	st.LastStats = [2]channel.Stats{measure.Stats(f.CH1[:], w), measure.Stats(f.CH2[:], w)}
	if !f.Forced {
		s.Status.Triggered = true
	}

	switch {
	case st.AutoSetup.Active():
		out := st.AutoSetup.Run(s, st.LastStats)
		if out.Done {
			log.Printf("[ENGINE] auto-setup finished after %d invocations: rate %d, gains %d/%d",
				st.AutoSetup.Invocations(), s.Rate, s.CH1.Gain, s.CH2.Gain)
		}
		if out.Changed || out.Done {
			e.apply()
		}
	case s.Mode.Meter():
		e.measure()
	case s.Trigger.Policy == trigger.Single:
		s.Status.Stop = true
		log.Println("[ENGINE] single capture complete, stopped")
	}
	e.publish(f)
}

func (e *Engine) publish(f *capture.Frame) {
	for {
		select {
		case e.frames <- f:
			return
		default:
		}
		select {
		case <-e.frames:
			e.dropped.Add(1)
		default:
		}
	}
}

func (e *Engine) measure() {
	st := e.st
	s := &st.Settings
	rec := &st.Measurement
	mode := s.Status.Meter()
	rec.Mode = mode
	for i := 0; i < 2; i++ {
		rec.ChannelFrequency[i] = measure.BinFrequency(st.LastStats[i].DominantBin, st.Rate)
	}

	switch mode {
	case settings.MeterDC:
		conv := make([]int16, measure.DCConversions+1)
		for i := 0; i < 2; i++ {
			if err := e.board.DCConversions(i, conv); err != nil {
				log.Printf("[ENGINE] DC conversion on channel %d failed: %v", i+1, err)
				continue
			}
			rec.DC[i] = measure.DCLevel(conv, e.opts.Calibration.DCOffset(i))
		}
	case settings.MeterPeakToPeak:
		for i := 0; i < 2; i++ {
			ch := s.Channel(i)
			rec.VPP[i] = measure.PeakToPeak(st.LastStats[i].Vpp, ch.Gain, ch.Probe10x)
		}
	case settings.MeterCounter:
		return
	}
	st.AutoSetup.StartAt(autosetup.MeterRestartStep)
}

// second runs on every one-second reference tick.
func (e *Engine) second() {
	st := e.st
	count := measure.ReadCounter(e.board.CounterWords)
	st.Counter.Capture(count)
	if !st.Settings.Mode.Meter() {
		return
	}
	rec := &st.Measurement
	switch st.Settings.Status.Meter() {
	case settings.MeterFrequency:
		rec.Count = st.Counter.Delta()
		rec.Frequency = measure.Frequency(rec.Count, st.Rate)
	case settings.MeterCounter:
		rec.Count = count
		rec.Elapsed.Tick(st.Settings.Status.Stop)
	}
}

// apply validates the settings and reconfigures acquisition from them.
func (e *Engine) apply() {
	st := e.st
	s := &st.Settings
	s.Validate()

	switch meter := s.Mode.Meter(); {
	case meter && !e.inMeter:
		e.inMeter = true
		st.Measurement = measure.Record{Mode: s.Status.Meter()}
		st.AutoSetup.EnterMeter(s)
		if s.Status.Meter() == settings.MeterCounter {
			st.AutoSetup.Stop()
		}
		log.Printf("[ENGINE] entering meter mode (%v)", s.Status.Meter())
	case !meter && e.inMeter:
		e.inMeter = false
		st.AutoSetup.ExitMeter(s)
		log.Println("[ENGINE] leaving meter mode")
	}

	prev := st.Rate.Index
	st.Rate = ratetable.Lookup(s.Rate)
	if prev != st.Rate.Index {
		st.Counter.Reset()
	}
	s.CH1.OffsetCalibration = e.opts.Calibration.Offset(0, s.Rate, s.CH1.Gain)
	s.CH2.OffsetCalibration = e.opts.Calibration.Offset(1, s.Rate, s.CH2.Gain)

	st.Processor.Reset()
	st.Processor.Elastic = s.Display.Elastic
	st.Ring.Reset()
	st.Fast.Cancel()
	st.Slow.Roll = s.Cursors.Roll
	st.Slow.Sink = e.opts.Sink
	st.Slow.Configure(s.Rate, st.Rate.SlowDivisor, s.CH1, s.CH2)
	e.board.Configure(st.Rate)

	log.Printf("[ENGINE] apply: rate %d (%v, %v/div), gains %d/%d, trigger %v %v on %v",
		st.Rate.Index, st.Rate.Mode, st.Rate.TimePerDiv, s.CH1.Gain, s.CH2.Gain,
		s.Trigger.Policy, s.Trigger.Mode, s.Trigger.Source)
}

// Mutate runs f on the live settings. Effects requesting an update or a
// reconfiguration cancel the capture in flight at the next tick and
// re-apply the settings.
func (e *Engine) Mutate(f func(s *settings.Settings) (settings.Effects, error)) error {
	var err error
	e.cs.Do(func() {
		var eff settings.Effects
		eff, err = f(&e.st.Settings)
		e.effects(eff)
	})
	return err
}

func (e *Engine) effects(eff settings.Effects) {
	s := &e.st.Settings
	if eff.ClearTriggered {
		s.Status.Triggered = false
	}
	if eff.AWG {
		s.Status.UpdateAWG = true
	}
	if eff.Update || eff.Apply {
		e.pending.Store(true)
	}
}

// Settings returns a copy of the live settings.
func (e *Engine) Settings() settings.Settings {
	var s settings.Settings
	e.cs.Do(func() { s = e.st.Settings })
	return s
}

// PersistableSettings returns the settings as they would be saved: in meter
// mode the rate and gains from before entering meter mode.
func (e *Engine) PersistableSettings() settings.Settings {
	var s settings.Settings
	e.cs.Do(func() { s = e.st.AutoSetup.Persistable(&e.st.Settings) })
	return s
}

// Measurement returns the latest meter reading.
func (e *Engine) Measurement() measure.Record {
	var m measure.Record
	e.cs.Do(func() { m = e.st.Measurement })
	return m
}

// Stats returns the statistics of the last delivered frame.
func (e *Engine) Stats() [2]channel.Stats {
	var s [2]channel.Stats
	e.cs.Do(func() { s = e.st.LastStats })
	return s
}

// Rate returns the applied rate record.
func (e *Engine) Rate() ratetable.Rate {
	var r ratetable.Rate
	e.cs.Do(func() { r = e.st.Rate })
	return r
}

// CaptureState returns the phase of the fast capture.
func (e *Engine) CaptureState() capture.State {
	var s capture.State
	e.cs.Do(func() { s = e.st.Fast.State() })
	return s
}

// AutoSetupActive reports whether an auto-setup run is in progress.
func (e *Engine) AutoSetupActive() bool {
	var a bool
	e.cs.Do(func() { a = e.st.AutoSetup.Active() })
	return a
}
