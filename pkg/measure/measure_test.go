package measure

import (
	"math"
	"testing"

	"github.com/mso/pkg/ratetable"
)

func TestFrequencyScaling(t *testing.T) {
	for _, r := range ratetable.All() {
		got := Frequency(1000, r)
		if want := 1000 * uint64(r.FrequencyScale); got != want {
			t.Errorf("rate %d: Frequency(1000) = %d, want %d", r.Index, got, want)
		}
	}
}

func TestBinFrequency(t *testing.T) {
	r := ratetable.Lookup(0)
	if got := BinFrequency(10, r); got != 10*uint64(r.FrequencyScale/256) {
		t.Errorf("BinFrequency(10) = %d", got)
	}
	if got := BinFrequency(0, r); got != 0 {
		t.Errorf("BinFrequency(0) = %d, want 0", got)
	}
}

func TestAnalyze(t *testing.T) {
	min, max, vpp := Analyze([]uint8{120, 136, 128, 121})
	if min != 120 || max != 136 || vpp != 16 {
		t.Errorf("Analyze = %d %d %d, want 120 136 16", min, max, vpp)
	}
}

func TestDCLevel(t *testing.T) {
	conv := make([]int16, 300)
	conv[0] = 30000
	for i := 1; i < len(conv); i++ {
		conv[i] = -10
	}
	// 256 * 10 = 2560, plus 32 calibration, >>5 = 81
	if got := DCLevel(conv, 32); got != 81 {
		t.Errorf("DCLevel = %d, want 81", got)
	}
}

func TestDCLevelSaturates(t *testing.T) {
	type testCase struct {
		conv int16
		want int16
	}
	tests := []testCase{
		{math.MinInt16, math.MaxInt16},
		{math.MaxInt16, math.MinInt16},
		{-2048, 16384},
	}
	for _, tc := range tests {
		conv := make([]int16, DCConversions+1)
		for i := range conv {
			conv[i] = tc.conv
		}
		if got := DCLevel(conv, 0); got != tc.want {
			t.Errorf("DCLevel(%d...) = %d, want %d", tc.conv, got, tc.want)
		}
	}
}

func TestPeakToPeak(t *testing.T) {
	type testCase struct {
		vpp   uint8
		gain  uint8
		probe bool
		want  int64
	}
	var tests = []testCase{
		{16, 0, false, 16 * 128 * 1000 / 8},
		{16, 3, false, 16 * 128 * 125 / 8},
		{16, 3, true, 10 * 16 * 128 * 125 / 8},
		{255, 6, false, 255 * 128 * 15625 / 8},
		{1, 9, false, 128 * 15625 / 8},
	}
	for _, test := range tests {
		if got := PeakToPeak(test.vpp, test.gain, test.probe); got != test.want {
			t.Errorf("PeakToPeak(%d, %d, %v) = %d, want %d", test.vpp, test.gain, test.probe, got, test.want)
		}
	}
}

func TestReadCounterTornRead(t *testing.T) {
	type testCase struct {
		name  string
		reads [][2]uint16
		want  uint32
	}
	var tests = []testCase{
		{"stable", [][2]uint16{{1, 100}, {1, 105}}, 1<<16 | 100},
		{"carry before first low", [][2]uint16{{1, 2}, {2, 8}}, 2<<16 | 2},
		{"carry after first low", [][2]uint16{{1, 0xFFFE}, {2, 3}}, 1<<16 | 0xFFFE},
	}
	for _, test := range tests {
		i := 0
		read := func() (uint16, uint16) {
			r := test.reads[i]
			i++
			return r[0], r[1]
		}
		if got := ReadCounter(read); got != test.want {
			t.Errorf("%s: ReadCounter = %#x, want %#x", test.name, got, test.want)
		}
	}
}

func TestFrequencyCounterWraps(t *testing.T) {
	var f FrequencyCounter
	f.Capture(0xFFFFFF00)
	if f.Delta() != 0 {
		t.Errorf("first capture delta = %d, want 0", f.Delta())
	}
	f.Capture(0x00000100)
	if f.Delta() != 0x200 {
		t.Errorf("wrapped delta = %#x, want 0x200", f.Delta())
	}
	f.Reset()
	f.Capture(5)
	f.Capture(1005)
	if f.Delta() != 1000 {
		t.Errorf("delta = %d, want 1000", f.Delta())
	}
}

func TestElapsed(t *testing.T) {
	var e Elapsed
	for i := 0; i < 3661; i++ {
		e.Tick(false)
	}
	if e.String() != "01:01:01" {
		t.Errorf("elapsed = %s, want 01:01:01", e)
	}
	e.Tick(true)
	if e.Seconds != 1 {
		t.Errorf("stopped timer advanced to %s", e)
	}
}
