package adc

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/mso/pkg/measure"
	"github.com/mso/pkg/ring"
)

// chunkReader returns at most n bytes per Read, splitting records.
type chunkReader struct {
	r io.Reader
	n int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(p) > c.n {
		p = p[:c.n]
	}
	return c.r.Read(p)
}

func TestStreamDecodesSplitRecords(t *testing.T) {
	raw := []byte{
		10, 20, 0x01,
		30, 40, 0x80,
		50, 60, 0x01,
	}
	s := NewStream(&chunkReader{r: bytes.NewReader(raw), n: 2})
	var got []ring.Sample
	buf := make([]ring.Sample, 4)
	for len(got) < 3 {
		n, err := s.Read(buf)
		if err != nil {
			t.Fatalf("Read after %d samples: %v", len(got), err)
		}
		got = append(got, buf[:n]...)
	}
	want := []ring.Sample{
		{CH1: 10, CH2: 20, Digital: 0x01},
		{CH1: 30, CH2: 40, Digital: 0x80, External: true},
		{CH1: 50, CH2: 60, Digital: 0x01},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	// Line 0 rose twice.
	if c := measure.ReadCounter(s.CounterWords); c != 2 {
		t.Errorf("counter = %d, want 2", c)
	}
	if _, err := s.Read(buf); !errors.Is(err, io.EOF) {
		t.Errorf("Read at end = %v, want EOF", err)
	}
}

func TestStreamDCConversions(t *testing.T) {
	raw := bytes.Repeat([]byte{148, 120, 0}, measure.DCConversions+1)
	s := NewStream(bytes.NewReader(raw))
	conv := make([]int16, measure.DCConversions+1)
	if err := s.DCConversions(1, conv); err != nil {
		t.Fatalf("DCConversions: %v", err)
	}
	if got := measure.DCLevel(conv, 0); got != -64 {
		t.Errorf("DC level = %d, want -64", got)
	}
}

func TestGPIOPort(t *testing.T) {
	pins := []gpio.PinIn{
		&gpiotest.Pin{N: "D0", Num: 0, L: gpio.High},
		&gpiotest.Pin{N: "D1", Num: 1, L: gpio.Low},
		nil,
		&gpiotest.Pin{N: "D3", Num: 3, L: gpio.High},
	}
	port, err := NewGPIOPort(gpio.Float, pins...)
	if err != nil {
		t.Fatalf("NewGPIOPort: %v", err)
	}
	if got := port.Read(); got != 0x09 {
		t.Errorf("Read = %#02x, want 0x09", got)
	}

	s := NewStream(bytes.NewReader([]byte{1, 2, 0xFF}))
	s.Port = port
	buf := make([]ring.Sample, 1)
	if _, err := s.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if buf[0].Digital != 0x09 {
		t.Errorf("digital = %#02x, want the port value 0x09", buf[0].Digital)
	}
}

func TestGPIOPortTooManyPins(t *testing.T) {
	pins := make([]gpio.PinIn, 9)
	if _, err := NewGPIOPort(gpio.Float, pins...); err == nil {
		t.Errorf("nine pins accepted")
	}
}

func TestGPIOPortByName(t *testing.T) {
	for i, name := range []string{"MSO_D0", "MSO_D1"} {
		if gpioreg.ByName(name) != nil {
			continue
		}
		if err := gpioreg.Register(&gpiotest.Pin{N: name, Num: 900 + i, L: gpio.High}); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}
	port, err := NewGPIOPortByName(gpio.Float, "", "MSO_D0", "", "MSO_D1")
	if err != nil {
		t.Fatalf("NewGPIOPortByName: %v", err)
	}
	if got := port.Read(); got != 0x0A {
		t.Errorf("Read = %#02x, want 0x0a", got)
	}
	if _, err := NewGPIOPortByName(gpio.Float, "MSO_NO_SUCH_PIN"); err == nil {
		t.Errorf("unknown pin accepted")
	}
}

func TestParsePull(t *testing.T) {
	type testCase struct {
		in   string
		want gpio.Pull
		ok   bool
	}
	tests := []testCase{
		{"", gpio.Float, true},
		{"float", gpio.Float, true},
		{"Down", gpio.PullDown, true},
		{"up", gpio.PullUp, true},
		{"sideways", gpio.PullNoChange, false},
	}
	for _, tc := range tests {
		got, err := ParsePull(tc.in)
		if (err == nil) != tc.ok || got != tc.want {
			t.Errorf("ParsePull(%q) = %v, %v, want %v ok=%v", tc.in, got, err, tc.want, tc.ok)
		}
	}
}
