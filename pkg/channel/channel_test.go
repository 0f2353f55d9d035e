package channel

import "testing"

func TestProcessSaturates(t *testing.T) {
	for raw := 0; raw < 256; raw++ {
		for off := -128; off < 128; off++ {
			s := State{OffsetCalibration: int8(off)}
			v := Process(uint8(raw), Center, &s, 0, false)
			want := raw + off
			if want < 0 {
				want = 0
			}
			if want > 255 {
				want = 255
			}
			if int(v) != want {
				t.Fatalf("Process(%d, offset %d) = %d, want %d", raw, off, v, want)
			}
		}
	}
}

func TestProcessExamples(t *testing.T) {
	type testCase struct {
		name  string
		raw   uint8
		other uint8
		state State
		want  uint8
	}
	var tests = []testCase{
		{"high clamp", 250, Center, State{OffsetCalibration: 20}, 255},
		{"low clamp", 10, Center, State{OffsetCalibration: -50}, 0},
		{"invert", 200, Center, State{Invert: true}, 55},
		{"offset then invert", 250, Center, State{OffsetCalibration: 20, Invert: true}, 0},
		{"subtract", 200, 150, State{Math: MathSubtract}, 178},
		{"subtract saturates", 250, 0, State{Math: MathSubtract}, 255},
		{"subtract floor", 5, 255, State{Math: MathSubtract}, 0},
		{"multiply by zero", 200, Center, State{Math: MathMultiply}, Center},
		{"multiply", 192, 64, State{Math: MathMultiply}, 160},
		{"multiply extremes", 0, 0, State{Math: MathMultiply}, 0},
	}
	for _, test := range tests {
		s := test.state
		if got := Process(test.raw, test.other, &s, 0, false); got != test.want {
			t.Errorf("%s: Process(%d, %d) = %d, want %d", test.name, test.raw, test.other, got, test.want)
		}
	}
}

func TestAverageRoundsUp(t *testing.T) {
	if got := Average(10, 11); got != 11 {
		t.Errorf("Average(10, 11) = %d, want 11", got)
	}
	if got := Average(255, 255); got != 255 {
		t.Errorf("Average(255, 255) = %d, want 255", got)
	}
	if got := Average(0, 1); got != 1 {
		t.Errorf("Average(0, 1) = %d, want 1", got)
	}
}

func TestScaledMultiplySaturates(t *testing.T) {
	if got := ScaledMultiply(-128, -128); got != 127 {
		t.Errorf("ScaledMultiply(-128, -128) = %d, want 127", got)
	}
	if got := ScaledMultiply(64, 64); got != 32 {
		t.Errorf("ScaledMultiply(64, 64) = %d, want 32", got)
	}
}

func TestProcessorBlends(t *testing.T) {
	var p Processor
	ch1 := State{Average: true}
	ch2 := State{}
	v1, v2 := p.ProcessAt(3, 100, 100, &ch1, &ch2)
	if v1 != 100 || v2 != 100 {
		t.Fatalf("first pass = %d, %d, want 100, 100", v1, v2)
	}
	v1, v2 = p.ProcessAt(3, 201, 201, &ch1, &ch2)
	if v1 != 151 {
		t.Errorf("averaged ch1 = %d, want 151", v1)
	}
	if v2 != 201 {
		t.Errorf("unaveraged ch2 = %d, want 201", v2)
	}

	p.Elastic = true
	_, v2 = p.ProcessAt(3, 0, 0, &ch1, &ch2)
	if v2 != 101 {
		t.Errorf("elastic ch2 = %d, want 101", v2)
	}

	p.Reset()
	v1, _ = p.ProcessAt(3, 50, 50, &ch1, &ch2)
	if v1 != 50 {
		t.Errorf("after reset ch1 = %d, want 50", v1)
	}
}
