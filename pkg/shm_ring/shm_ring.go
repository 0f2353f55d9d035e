package shm_ring

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/mso/pkg/capture"
	"github.com/mso/pkg/channel"
)

// RingHeader sits at the very beginning of the shared memory
type RingHeader struct {
	Magic      uint64 // For validation
	Size       uint64 // Total data size (excluding header)
	Head       uint64 // Frames written so far
	Tail       uint64 // Frames consumed by the reader
	Version    uint32
	RecordSize uint32
}

const (
	HeaderSize = uint64(unsafe.Sizeof(RingHeader{}))
	MagicValue = 0x454D4152464F534D // "MSOFRAME"

	recordHeaderSize = 16
	// RecordSize is one encoded frame: sequence, rate, flags, then the
	// three display traces.
	RecordSize = recordHeaderSize + 3*channel.FrameSize
)

const (
	flagForced = 1 << iota
	flagRoll
)

// ErrOverwritten is returned when the writer has already reused the slot
// of the requested frame.
var ErrOverwritten = errors.New("frame overwritten")

// Dir is where shared memory objects live.
var Dir = "/dev/shm"

type ShmRing struct {
	fd     int
	data   []byte
	header *RingHeader
	total  uint64
	slots  uint64
}

// Create creates a new shared memory ring holding size bytes of frame
// records, rounded down to whole records.
func Create(name string, size uint64) (*ShmRing, error) {
	size -= size % RecordSize
	if size == 0 {
		return nil, fmt.Errorf("ring must hold at least one %d byte frame", RecordSize)
	}
	path := Dir + name

	f, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, 0666)
	if err != nil {
		if err == unix.EEXIST {
			return Open(name)
		}
		return nil, fmt.Errorf("open shm: %w", err)
	}

	totalSize := HeaderSize + size

	if err := unix.Ftruncate(f, int64(totalSize)); err != nil {
		unix.Close(f)
		return nil, fmt.Errorf("ftruncate: %w", err)
	}

	data, err := unix.Mmap(f, 0, int(totalSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(f)
		return nil, fmt.Errorf("mmap: %w", err)
	}

	ring := &ShmRing{
		fd:    f,
		data:  data,
		total: size,
		slots: size / RecordSize,
	}

	ring.header = (*RingHeader)(unsafe.Pointer(&data[0]))
	ring.header.Magic = MagicValue
	ring.header.Size = size
	ring.header.Version = 1
	ring.header.RecordSize = RecordSize
	atomic.StoreUint64(&ring.header.Head, 0)
	atomic.StoreUint64(&ring.header.Tail, 0)

	return ring, nil
}

// Open opens an existing shared memory ring buffer
func Open(name string) (*ShmRing, error) {
	path := Dir + name
	f, err := unix.Open(path, unix.O_RDWR, 0666)
	if err != nil {
		return nil, fmt.Errorf("open shm: %w", err)
	}

	var stat unix.Stat_t
	if err := unix.Fstat(f, &stat); err != nil {
		unix.Close(f)
		return nil, fmt.Errorf("fstat: %w", err)
	}
	if uint64(stat.Size) <= HeaderSize {
		unix.Close(f)
		return nil, fmt.Errorf("shm %s too small: %d bytes", path, stat.Size)
	}

	data, err := unix.Mmap(f, 0, int(stat.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(f)
		return nil, fmt.Errorf("mmap: %w", err)
	}

	ring := &ShmRing{
		fd:    f,
		data:  data,
		total: uint64(stat.Size) - HeaderSize,
	}

	ring.header = (*RingHeader)(unsafe.Pointer(&data[0]))
	if ring.header.Magic != MagicValue {
		ring.Close()
		return nil, fmt.Errorf("invalid magic value in shm")
	}
	if ring.header.RecordSize != RecordSize {
		ring.Close()
		return nil, fmt.Errorf("shm record size %d, want %d", ring.header.RecordSize, RecordSize)
	}
	ring.slots = ring.total / RecordSize

	return ring, nil
}

// Total returns the data size in bytes.
func (r *ShmRing) Total() uint64 { return r.total }

// Slots returns the number of frames the ring holds.
func (r *ShmRing) Slots() uint64 { return r.slots }

// GetHead returns the number of frames written so far.
func (r *ShmRing) GetHead() uint64 {
	return atomic.LoadUint64(&r.header.Head)
}

func (r *ShmRing) slot(seq uint64) []byte {
	off := HeaderSize + (seq%r.slots)*RecordSize
	return r.data[off : off+RecordSize]
}

// WriteFrame stores f in the next slot and publishes it.
func (r *ShmRing) WriteFrame(f *capture.Frame) {
	head := atomic.LoadUint64(&r.header.Head)
	EncodeFrame(r.slot(head), f)
	atomic.StoreUint64(&r.header.Head, head+1)
}

// ReadFrame decodes frame number seq, counting from zero. It fails with
// ErrOverwritten when the writer has lapped the reader.
func (r *ShmRing) ReadFrame(seq uint64, f *capture.Frame) error {
	head := atomic.LoadUint64(&r.header.Head)
	if seq >= head {
		return fmt.Errorf("frame %d not written yet (head %d)", seq, head)
	}
	if head-seq > r.slots {
		return fmt.Errorf("%w: frame %d, head %d", ErrOverwritten, seq, head)
	}
	DecodeFrame(r.slot(seq), f)
	// The writer may have reused the slot while it was being copied.
	if atomic.LoadUint64(&r.header.Head)-seq > r.slots {
		return fmt.Errorf("%w: frame %d", ErrOverwritten, seq)
	}
	return nil
}

func (r *ShmRing) GetPointers() (uint64, uint64) {
	return atomic.LoadUint64(&r.header.Head), atomic.LoadUint64(&r.header.Tail)
}

func (r *ShmRing) SetTail(tail uint64) {
	atomic.StoreUint64(&r.header.Tail, tail)
}

func (r *ShmRing) Close() error {
	if r.data != nil {
		unix.Munmap(r.data)
		r.data = nil
	}
	if r.fd != 0 {
		unix.Close(r.fd)
		r.fd = 0
	}
	return nil
}

func Remove(name string) error {
	path := Dir + name
	err := unix.Unlink(path)
	if err != nil && err != unix.ENOENT {
		return err
	}
	return nil
}

// EncodeFrame writes f into a RecordSize byte record.
func EncodeFrame(dst []byte, f *capture.Frame) {
	binary.LittleEndian.PutUint64(dst[0:], f.Counter)
	dst[8] = f.Rate
	var flags uint8
	if f.Forced {
		flags |= flagForced
	}
	if f.Roll {
		flags |= flagRoll
	}
	dst[9] = flags
	body := dst[recordHeaderSize:]
	copy(body[0:], f.CH1[:])
	copy(body[channel.FrameSize:], f.CH2[:])
	copy(body[2*channel.FrameSize:], f.Digital[:])
}

// DecodeFrame reads a record written by EncodeFrame.
func DecodeFrame(src []byte, f *capture.Frame) {
	f.Counter = binary.LittleEndian.Uint64(src[0:])
	f.Rate = src[8]
	f.Forced = src[9]&flagForced != 0
	f.Roll = src[9]&flagRoll != 0
	body := src[recordHeaderSize:]
	copy(f.CH1[:], body[0:])
	copy(f.CH2[:], body[channel.FrameSize:])
	copy(f.Digital[:], body[2*channel.FrameSize:])
}
