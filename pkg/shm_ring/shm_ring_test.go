package shm_ring

import (
	"errors"
	"testing"

	"github.com/mso/pkg/capture"
)

func testFrame(n uint64) *capture.Frame {
	f := &capture.Frame{Counter: n, Rate: 4, Roll: n%2 == 0}
	for i := range f.CH1 {
		f.CH1[i] = uint8(i + int(n))
		f.CH2[i] = uint8(255 - i)
		f.Digital[i] = uint8(n)
	}
	return f
}

func TestEncodeDecodeFrame(t *testing.T) {
	want := testFrame(7)
	want.Forced = true
	buf := make([]byte, RecordSize)
	EncodeFrame(buf, want)
	var got capture.Frame
	DecodeFrame(buf, &got)
	if got != *want {
		t.Errorf("decoded frame differs: counter %d rate %d forced %v roll %v",
			got.Counter, got.Rate, got.Forced, got.Roll)
	}
}

func TestRingWrapsAndDetectsOverrun(t *testing.T) {
	Dir = t.TempDir()
	w, err := Create("/frames", 3*RecordSize+10)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer w.Close()
	if w.Slots() != 3 {
		t.Fatalf("slots = %d, want 3", w.Slots())
	}

	r, err := Open("/frames")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	for i := uint64(0); i < 5; i++ {
		w.WriteFrame(testFrame(i))
	}
	if h := r.GetHead(); h != 5 {
		t.Fatalf("reader head = %d, want 5", h)
	}

	var f capture.Frame
	if err := r.ReadFrame(1, &f); !errors.Is(err, ErrOverwritten) {
		t.Errorf("ReadFrame(1) = %v, want ErrOverwritten", err)
	}
	if err := r.ReadFrame(4, &f); err != nil {
		t.Fatalf("ReadFrame(4): %v", err)
	}
	if f != *testFrame(4) {
		t.Errorf("frame 4 decoded with counter %d", f.Counter)
	}
	if err := r.ReadFrame(5, &f); err == nil {
		t.Errorf("ReadFrame past head succeeded")
	}

	if err := Remove("/frames"); err != nil {
		t.Errorf("Remove: %v", err)
	}
}
