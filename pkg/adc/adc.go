package adc

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mso/pkg/channel"
	"github.com/mso/pkg/ratetable"
	"github.com/mso/pkg/ring"
)

// RecordSize is the size of one conversion record: ch1, ch2, digital.
const RecordSize = 3

// DigitalPort supplies the digital input byte when it is not part of the
// conversion stream.
type DigitalPort interface {
	Read() uint8
}

// Decode unpacks one conversion record.
func Decode(rec []byte) ring.Sample {
	return ring.Sample{
		CH1:      rec[0],
		CH2:      rec[1],
		Digital:  rec[2],
		External: rec[2]&0x80 != 0,
	}
}

// Stream is a board fed by a raw conversion stream. The event counter
// counts rising edges of digital line 0.
type Stream struct {
	r io.Reader
	// Port, when set, replaces the digital byte of every record.
	Port DigitalPort

	buf      []byte
	pending  int
	counter  uint32
	lastLine bool
}

// NewStream reads conversion records from r.
func NewStream(r io.Reader) *Stream {
	return &Stream{r: r, buf: make([]byte, 4096*RecordSize)}
}

// Configure is a no-op: the conversion rate is set by the device itself.
func (s *Stream) Configure(ratetable.Rate) {}

// Read fills dst with whole conversion records. A partial record at the
// end of a read is kept for the next call.
func (s *Stream) Read(dst []ring.Sample) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	want := len(dst) * RecordSize
	if want > len(s.buf) {
		want = len(s.buf) - len(s.buf)%RecordSize
	}
	for s.pending < RecordSize {
		n, err := s.r.Read(s.buf[s.pending:want])
		s.pending += n
		if err != nil {
			if errors.Is(err, io.EOF) && s.pending >= RecordSize {
				break
			}
			return 0, fmt.Errorf("conversion stream: %w", err)
		}
		if n == 0 {
			return 0, nil
		}
	}

	count := s.pending / RecordSize
	if count > len(dst) {
		count = len(dst)
	}
	for i := 0; i < count; i++ {
		smp := Decode(s.buf[i*RecordSize:])
		if s.Port != nil {
			smp.Digital = s.Port.Read()
		}
		line := smp.Digital&1 != 0
		if line && !s.lastLine {
			s.counter++
		}
		s.lastLine = line
		dst[i] = smp
	}
	used := count * RecordSize
	s.pending = copy(s.buf, s.buf[used:s.pending])
	return count, nil
}

// Advance is a no-op: the stream has no separate reference clock.
func (s *Stream) Advance(time.Duration) {}

// CounterWords returns the rising-edge count of digital line 0.
func (s *Stream) CounterWords() (hi, lo uint16) {
	return uint16(s.counter >> 16), uint16(s.counter)
}

// DCConversions derives differential conversions from the stream.
func (s *Stream) DCConversions(ch int, dst []int16) error {
	if ch < 0 || ch > 1 {
		return fmt.Errorf("no analog channel %d", ch)
	}
	samples := make([]ring.Sample, len(dst))
	for got := 0; got < len(samples); {
		n, err := s.Read(samples[got:])
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrUnexpectedEOF
		}
		got += n
	}
	for i, smp := range samples {
		v := smp.CH1
		if ch == 1 {
			v = smp.CH2
		}
		dst[i] = -int16(channel.Signed(v))
	}
	return nil
}
