//go:build linux

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mso/pkg/adc"
	"github.com/mso/pkg/ratetable"
	"github.com/mso/pkg/ring"
	"github.com/mso/pkg/settings"
	"github.com/mso/pkg/sim"
)

// RunSimulator creates a named pipe at devicePath and streams simulated
// conversion records into it until ctx is done.
func RunSimulator(ctx context.Context, devicePath string, cfg settings.SimulatorConfig, rate uint8) error {
	board, err := sim.New(cfg)
	if err != nil {
		return fmt.Errorf("[SIM] %w", err)
	}
	board.Configure(ratetable.Lookup(ratetable.Clamp(rate)))

	_ = os.Remove(devicePath)
	if err := unix.Mkfifo(devicePath, 0666); err != nil {
		return fmt.Errorf("[SIM] mkfifo %s: %w", devicePath, err)
	}
	defer os.Remove(devicePath)

	log.Printf("[SIM] Streaming 3-byte conversion records to: %s", devicePath)

	fd, err := openWriter(ctx, devicePath)
	if err != nil {
		return err
	}
	defer func() { unix.Close(fd) }()

	// Tune buffer for throughput
	const maxPipeSize = 1024 * 1024
	_, _ = unix.FcntlInt(uintptr(fd), unix.F_SETPIPE_SZ, maxPipeSize)

	const samplesPerWrite = 4096
	samples := make([]ring.Sample, samplesPerWrite)
	writeBuf := make([]byte, samplesPerWrite*adc.RecordSize)

	for ctx.Err() == nil {
		n, _ := board.Read(samples)
		for i, s := range samples[:n] {
			rec := writeBuf[i*adc.RecordSize:]
			rec[0], rec[1], rec[2] = s.CH1, s.CH2, s.Digital
		}
		if _, err := unix.Write(fd, writeBuf[:n*adc.RecordSize]); err != nil {
			log.Println("[SIM] Pipe closed, reopening...")
			unix.Close(fd)
			if fd, err = openWriter(ctx, devicePath); err != nil {
				return nil
			}
		}
	}
	return nil
}

// openWriter waits for a reader to open the FIFO.
func openWriter(ctx context.Context, path string) (int, error) {
	for {
		fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK, 0)
		if err == nil {
			// Back to blocking writes once a reader is attached.
			if err := unix.SetNonblock(fd, false); err != nil {
				unix.Close(fd)
				return -1, fmt.Errorf("[SIM] %w", err)
			}
			return fd, nil
		}
		if err != unix.ENXIO {
			return -1, fmt.Errorf("[SIM] open %s: %w", path, err)
		}
		select {
		case <-ctx.Done():
			return -1, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
