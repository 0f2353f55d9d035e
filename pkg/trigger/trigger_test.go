package trigger

import (
	"testing"

	"github.com/mso/pkg/ring"
)

func ch1(v uint8) ring.Sample { return ring.Sample{CH1: v} }

func TestEvaluate(t *testing.T) {
	type testCase struct {
		name  string
		cfg   Config
		prev  ring.Sample
		cur   ring.Sample
		fires bool
	}
	var tests = []testCase{
		{"rising crosses", Config{Mode: ModeEdge, Level: 128}, ch1(120), ch1(130), true},
		{"rising lands on level", Config{Mode: ModeEdge, Level: 128}, ch1(127), ch1(128), true},
		{"rising stays above", Config{Mode: ModeEdge, Level: 128}, ch1(130), ch1(140), false},
		{"rising ignores falling", Config{Mode: ModeEdge, Level: 128}, ch1(140), ch1(100), false},
		{"falling crosses", Config{Mode: ModeEdge, Direction: Falling, Level: 128}, ch1(140), ch1(100), true},
		{"falling ignores rising", Config{Mode: ModeEdge, Direction: Falling, Level: 128}, ch1(100), ch1(140), false},
		{"dual up", Config{Mode: ModeDualEdge, Level: 100}, ch1(90), ch1(110), true},
		{"dual down", Config{Mode: ModeDualEdge, Level: 100}, ch1(110), ch1(90), true},
		{"dual flat", Config{Mode: ModeDualEdge, Level: 100}, ch1(110), ch1(120), false},
		{"window exits high", Config{Mode: ModeWindow, Window: Window{Low: 100, High: 150}}, ch1(120), ch1(160), true},
		{"window exits low", Config{Mode: ModeWindow, Window: Window{Low: 100, High: 150}}, ch1(120), ch1(90), true},
		{"window stays inside", Config{Mode: ModeWindow, Window: Window{Low: 100, High: 150}}, ch1(120), ch1(130), false},
		{"window already outside", Config{Mode: ModeWindow, Window: Window{Low: 100, High: 150}}, ch1(170), ch1(180), false},
		{"slope rising", Config{Mode: ModeSlope, Level: 148}, ch1(100), ch1(120), true},
		{"slope too gentle", Config{Mode: ModeSlope, Level: 148}, ch1(100), ch1(119), false},
		{"slope negative level", Config{Mode: ModeSlope, Level: 108}, ch1(100), ch1(120), true},
		{"slope falling", Config{Mode: ModeSlope, Direction: Falling, Level: 138}, ch1(120), ch1(110), true},
		{"ch2 source", Config{Source: SourceCH2, Mode: ModeEdge, Level: 50}, ring.Sample{CH2: 40}, ring.Sample{CH2: 60}, true},
		{"digital rising", Config{Source: DigitalSource(3)}, ring.Sample{Digital: 0x00}, ring.Sample{Digital: 0x08}, true},
		{"digital other bit", Config{Source: DigitalSource(3)}, ring.Sample{Digital: 0x00}, ring.Sample{Digital: 0x04}, false},
		{"digital falling", Config{Source: DigitalSource(0), Direction: Falling}, ring.Sample{Digital: 0x01}, ring.Sample{Digital: 0x00}, true},
		{"external", Config{Source: SourceExternal}, ring.Sample{}, ring.Sample{External: true}, true},
	}
	for _, test := range tests {
		c := test.cfg
		if got := Evaluate(&c, c.Level, test.prev, test.cur); got != test.fires {
			t.Errorf("%s: Evaluate = %v, want %v", test.name, got, test.fires)
		}
	}
}

func TestNormalizeSwapsWindow(t *testing.T) {
	c := Config{Window: Window{Low: 200, High: 50}, Source: 42}
	c.Normalize()
	if c.Window.Low != 50 || c.Window.High != 200 {
		t.Errorf("window = %+v, want {50 200}", c.Window)
	}
	if c.Source != SourceExternal {
		t.Errorf("source = %v, want EXT", c.Source)
	}
}

func TestSlopeThresholdNeverZero(t *testing.T) {
	c := Config{Level: 128}
	if d := c.SlopeThreshold(); d != 1 {
		t.Errorf("SlopeThreshold(128) = %d, want 1", d)
	}
}

func TestRawRemovesOffset(t *testing.T) {
	c := Config{Level: 100, Window: Window{Low: 10, High: 250}}
	r, lvl := c.Raw(20)
	if lvl != 80 {
		t.Errorf("raw level = %d, want 80", lvl)
	}
	if r.Window.Low != 0 || r.Window.High != 230 {
		t.Errorf("raw window = %+v, want {0 230}", r.Window)
	}
}
