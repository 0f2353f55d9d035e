package settings

import (
	"github.com/mso/pkg/channel"
	"github.com/mso/pkg/dsp"
	"github.com/mso/pkg/trigger"
)

// Digital is the logic channel configuration.
type Digital struct {
	Enabled     bool  `json:"enabled"`
	Pull        bool  `json:"pull"`
	PullUp      bool  `json:"pull_up"`
	Low         bool  `json:"low"`
	Invert      bool  `json:"invert"`
	HexSerial   bool  `json:"hex_serial"`
	HexParallel bool  `json:"hex_parallel"`
	ASCII       bool  `json:"ascii"`
	Mask        uint8 `json:"mask"`
	Position    uint8 `json:"position"`
	Decode      uint8 `json:"decode"`
}

// Lines returns the number of enabled digital lines.
func (d Digital) Lines() int {
	n := 0
	for m := d.Mask; m != 0; m >>= 1 {
		n += int(m & 1)
	}
	return n
}

// Cursors holds cursor flags and positions.
type Cursors struct {
	Roll        bool  `json:"roll"`
	Auto        bool  `json:"auto"`
	Track       bool  `json:"track"`
	Horizontal1 bool  `json:"horizontal1"`
	Horizontal2 bool  `json:"horizontal2"`
	Vertical    bool  `json:"vertical"`
	Reference   bool  `json:"reference"`
	SingleSniff bool  `json:"single_sniff"`
	VA          uint8 `json:"va"`
	VB          uint8 `json:"vb"`
	H1A         uint8 `json:"h1a"`
	H1B         uint8 `json:"h1b"`
	H2A         uint8 `json:"h2a"`
	H2B         uint8 `json:"h2b"`
}

// Display holds display flags.
type Display struct {
	Grid         uint8 `json:"grid"`
	Elastic      bool  `json:"elastic"`
	Screenshot   bool  `json:"screenshot"`
	Flip         bool  `json:"flip"`
	Persistent   bool  `json:"persistent"`
	Line         bool  `json:"line"`
	ShowSettings bool  `json:"show_settings"`
}

// Mode selects the display mode and the spectrum window.
type Mode struct {
	Hamming  bool `json:"hamming"`
	Hann     bool `json:"hann"`
	Blackman bool `json:"blackman"`
	LogScale bool `json:"log_scale"`
	IQ       bool `json:"iq"`
	Scope    bool `json:"scope"`
	XY       bool `json:"xy"`
	FFT      bool `json:"fft"`
}

// Meter reports whether no display mode is selected.
func (m Mode) Meter() bool { return !m.Scope && !m.XY && !m.FFT }

// Window returns the spectrum window, the first selected one winning.
func (m Mode) Window() dsp.Window {
	switch {
	case m.Hamming:
		return dsp.WindowHamming
	case m.Hann:
		return dsp.WindowHann
	case m.Blackman:
		return dsp.WindowBlackman
	}
	return dsp.WindowNone
}

// Sweep holds the AWG sweep configuration.
type Sweep struct {
	AccelDown bool  `json:"accel_down"`
	Accel     bool  `json:"accel"`
	Down      bool  `json:"down"`
	PingPong  bool  `json:"ping_pong"`
	Frequency bool  `json:"frequency"`
	Amplitude bool  `json:"amplitude"`
	Offset    bool  `json:"offset"`
	Duty      bool  `json:"duty"`
	Start     uint8 `json:"start"`
	End       uint8 `json:"end"`
	Speed     uint8 `json:"speed"`
}

// Status holds run state and the meter sub-mode.
type Status struct {
	Update    bool `json:"update"`
	UpdateAWG bool `json:"update_awg"`
	UpdateMSO bool `json:"update_mso"`
	GoSniffer bool `json:"go_sniffer"`
	Stop      bool `json:"stop"`
	Triggered bool `json:"triggered"`
	VDC       bool `json:"vdc"`
	VPP       bool `json:"vpp"`
}

// MeterMode is the measurement shown in meter mode.
type MeterMode int

const (
	MeterFrequency MeterMode = iota
	MeterDC
	MeterPeakToPeak
	MeterCounter
)

func (m MeterMode) String() string {
	switch m {
	case MeterDC:
		return "vdc"
	case MeterPeakToPeak:
		return "vpp"
	case MeterCounter:
		return "counter"
	}
	return "frequency"
}

// Meter decodes the meter sub-mode from the VDC and VPP flags.
func (s Status) Meter() MeterMode {
	switch {
	case s.VDC && s.VPP:
		return MeterCounter
	case s.VDC:
		return MeterDC
	case s.VPP:
		return MeterPeakToPeak
	}
	return MeterFrequency
}

// SetMeter encodes m into the VDC and VPP flags.
func (s *Status) SetMeter(m MeterMode) {
	s.VDC = m == MeterDC || m == MeterCounter
	s.VPP = m == MeterPeakToPeak || m == MeterCounter
}

// AWG is the waveform generator configuration.
type AWG struct {
	Amplitude int8  `json:"amplitude"`
	Type      uint8 `json:"type"`
	Duty      uint8 `json:"duty"`
	Offset    int8  `json:"offset"`
	// DesiredFrequency is the output frequency times 100.
	DesiredFrequency uint32 `json:"desired_frequency"`
}

// Settings is the complete user state of the instrument.
type Settings struct {
	Rate    uint8          `json:"rate"`
	CH1     channel.State  `json:"ch1"`
	CH2     channel.State  `json:"ch2"`
	Digital Digital        `json:"digital"`
	Trigger trigger.Config `json:"trigger"`
	Cursors Cursors        `json:"cursors"`
	Display Display        `json:"display"`
	Mode    Mode           `json:"mode"`
	Sweep   Sweep          `json:"sweep"`
	Sniffer uint8          `json:"sniffer"`
	Status  Status         `json:"status"`
	HPos    uint8          `json:"hpos"`
	AWG     AWG            `json:"awg"`
}

// Channel returns the channel state for index 0 or 1.
func (s *Settings) Channel(i int) *channel.State {
	if i == 1 {
		return &s.CH2
	}
	return &s.CH1
}

// Default returns the factory settings.
func Default() Settings {
	return Settings{
		Rate: 4,
		CH1:  channel.State{Enabled: true, Gain: 4},
		CH2:  channel.State{Enabled: true, Gain: 4},
		Digital: Digital{
			Mask:     0xFF,
			Position: 0,
		},
		Trigger: trigger.Config{
			Source:           trigger.SourceCH1,
			Mode:             trigger.ModeEdge,
			Policy:           trigger.Auto,
			Level:            128,
			Window:           trigger.Window{Low: 96, High: 160},
			PostTriggerCount: 128,
			Timeout:          25,
		},
		Cursors: Cursors{VA: 32, VB: 96, H1A: 96, H1B: 160, H2A: 96, H2B: 160},
		Display: Display{Grid: 3, ShowSettings: true},
		Mode:    Mode{Scope: true},
		Sweep:   Sweep{Start: 0, End: 255, Speed: 3},
		HPos:    0,
		AWG: AWG{
			Amplitude:        -128,
			Type:             1,
			Duty:             128,
			DesiredFrequency: 100000,
		},
	}
}
