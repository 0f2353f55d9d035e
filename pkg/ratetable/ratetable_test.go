package ratetable

import "testing"

func TestLookupClamps(t *testing.T) {
	for _, idx := range []uint8{22, 40, 255} {
		if r := Lookup(idx); r.Index != MaxIndex {
			t.Errorf("Lookup(%d).Index = %d, want %d", idx, r.Index, MaxIndex)
		}
	}
	if r := Lookup(5); r.Index != 5 || r.Mode != ModeFast {
		t.Errorf("Lookup(5) = %+v", r)
	}
}

func TestModesByIndex(t *testing.T) {
	for _, r := range All() {
		var want Mode
		switch {
		case r.Index <= 5:
			want = ModeFast
		case r.Index <= FastMax:
			want = ModeFastTimerAssisted
		default:
			want = ModeSlowInterrupt
		}
		if r.Mode != want {
			t.Errorf("rate %d mode = %v, want %v", r.Index, r.Mode, want)
		}
		if r.Fast() != (r.Index <= FastMax) {
			t.Errorf("rate %d Fast() = %v", r.Index, r.Fast())
		}
		if !r.Fast() && (r.SlowDivisor == 0 || r.TickPeriod == 0) {
			t.Errorf("slow rate %d has divisor %d period %v", r.Index, r.SlowDivisor, r.TickPeriod)
		}
	}
}

func TestProgrammedPostTrigger(t *testing.T) {
	type testCase struct {
		rate      uint8
		requested uint16
		want      uint16
	}
	var tests = []testCase{
		{0, 100, 92},
		{0, 8, 1},
		{0, 0, 1},
		{1, 100, 95},
		{2, 100, 195},
		{5, 128, 252},
		{6, 128, 255},
		{10, 1, 1},
		{11, 100, 100},
		{11, 0, 1},
		{21, 32767, 32767},
	}
	for _, test := range tests {
		got := Lookup(test.rate).ProgrammedPostTrigger(test.requested)
		if got != test.want {
			t.Errorf("ProgrammedPostTrigger(rate %d, %d) = %d, want %d",
				test.rate, test.requested, got, test.want)
		}
	}
}

func TestCalibrationBucket(t *testing.T) {
	if b := Lookup(3).CalibrationBucket(); b != 3 {
		t.Errorf("bucket(3) = %d", b)
	}
	if b := Lookup(15).CalibrationBucket(); b != 7 {
		t.Errorf("bucket(15) = %d", b)
	}
}
