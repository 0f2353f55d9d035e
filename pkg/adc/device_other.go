//go:build !linux

package adc

import "fmt"

// Open opens a conversion device or FIFO for reading.
func Open(path string) (*Stream, func() error, error) {
	return nil, nil, fmt.Errorf("conversion device %s: not supported on this platform", path)
}
