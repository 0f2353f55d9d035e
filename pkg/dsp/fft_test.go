package dsp

import (
	"math"
	"testing"
)

func sine(n, cycles int, amplitude float64) []uint8 {
	out := make([]uint8, n)
	for i := range out {
		out[i] = uint8(math.Round(128 + amplitude*math.Sin(2*math.Pi*float64(cycles*i)/float64(n))))
	}
	return out
}

func TestDominantBin(t *testing.T) {
	type testCase struct {
		name    string
		samples []uint8
		window  Window
		want    int
	}
	flat := make([]uint8, 256)
	for i := range flat {
		flat[i] = 128
	}
	var tests = []testCase{
		{"bin 10", sine(256, 10, 60), WindowNone, 10},
		{"bin 80 hann", sine(256, 80, 60), WindowHann, 80},
		{"bin 3 blackman", sine(256, 3, 100), WindowBlackman, 3},
		{"flat", flat, WindowNone, 0},
		{"too small", sine(256, 20, 5), WindowNone, 0},
	}
	for _, test := range tests {
		got := DominantBin(Spectrum(test.samples, test.window))
		if got != test.want {
			t.Errorf("%s: DominantBin = %d, want %d", test.name, got, test.want)
		}
	}
}

func TestSpectrumAmplitude(t *testing.T) {
	mag := Spectrum(sine(256, 16, 40), WindowNone)
	if math.Abs(mag[16]-40) > 1 {
		t.Errorf("bin 16 amplitude = %.2f, want ~40", mag[16])
	}
}

func TestDominantBinIgnoresLargeDC(t *testing.T) {
	mag := make([]float64, 128)
	mag[0] = 100
	mag[1] = 50
	mag[9] = 20
	if got := DominantBin(mag); got != 9 {
		t.Errorf("DominantBin = %d, want 9", got)
	}
}

func TestPowerDBCentersDC(t *testing.T) {
	n := 64
	i := make([]uint8, n)
	q := make([]uint8, n)
	for k := range i {
		i[k] = 255
		q[k] = 128
	}
	p := PowerDB(i, q, WindowNone)
	peak := 0
	for k := range p {
		if p[k] > p[peak] {
			peak = k
		}
	}
	if peak != n/2 {
		t.Errorf("DC peak at bin %d, want %d", peak, n/2)
	}
}
