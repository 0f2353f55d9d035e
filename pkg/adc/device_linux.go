//go:build linux

package adc

import (
	"fmt"
	"io"

	"golang.org/x/sys/unix"
)

// device reads a character device or FIFO through raw file descriptors.
type device struct {
	fd int
}

func (d *device) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(d.fd, p)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("read failed: %w", err)
		}
		if n == 0 && len(p) > 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

func (d *device) Close() error {
	return unix.Close(d.fd)
}

// Open opens a conversion device or FIFO for reading.
func Open(path string) (*Stream, func() error, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open device %s: %w", path, err)
	}

	// Larger pipe buffer for FIFOs; ignored for character devices.
	const maxPipeSize = 1024 * 1024
	_, _ = unix.FcntlInt(uintptr(fd), unix.F_SETPIPE_SZ, maxPipeSize)

	d := &device{fd: fd}
	return NewStream(d), d.Close, nil
}
