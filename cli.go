package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"

	"github.com/mso/pkg/capture"
	"github.com/mso/pkg/engine"
	"github.com/mso/pkg/ratetable"
)

// maxIdleTicks bounds how long the CLI waits for each frame.
const maxIdleTicks = 1000

// runCLI captures a number of frames, optionally recording them, and prints
// a summary.
func runCLI(e *engine.Engine, frames int, outputFilename string) error {
	fmt.Println("--- Capture Session Start ---")
	r := e.Rate()
	fmt.Printf("Rate: %d (%v/div, %s) | Target: %d frames\n", r.Index, r.TimePerDiv, r.Mode, frames)

	var rec *FrameRecorder
	if outputFilename != "" {
		f, err := os.Create(outputFilename)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		s := e.Settings()
		rec = NewFrameRecorder(f, &s, uuid.New().String())
	}

	fmt.Println(">>> CAPTURING...")
	start := time.Now()
	got, err := captureFrames(e, frames, func(f *capture.Frame) error {
		if rec != nil {
			return rec.WriteFrame(f)
		}
		return nil
	})
	duration := time.Since(start)
	if rec != nil {
		if cerr := rec.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}
	if err != nil {
		return err
	}

	fmt.Println("--- Results ---")
	fmt.Printf("Frames:         %d\n", got)
	fmt.Printf("Dropped:        %d\n", e.Dropped())
	fmt.Printf("Duration:       %v\n", duration)
	if rec != nil {
		fmt.Printf("Saved to:       %s\n", outputFilename)
	}
	printMeasurements(os.Stdout, e)
	return nil
}

// captureFrames ticks the engine until n frames were delivered to fn or
// the engine stays idle for too long.
func captureFrames(e *engine.Engine, n int, fn func(f *capture.Frame) error) (int, error) {
	got, idle := 0, 0
	for got < n {
		select {
		case f := <-e.Frames():
			if err := fn(f); err != nil {
				return got, err
			}
			got++
			idle = 0
			continue
		default:
		}
		if idle >= maxIdleTicks {
			log.Printf("Warning: no frame after %d ticks (capture %v)", idle, e.CaptureState())
			return got, nil
		}
		if err := e.Tick(); err != nil {
			return got, fmt.Errorf("tick: %w", err)
		}
		idle++
	}
	return got, nil
}

func printMeasurements(w io.Writer, e *engine.Engine) {
	stats := e.Stats()
	m := e.Measurement()

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Channel", "Min", "Max", "Vpp", "Bin", "Frequency", "DC", "Vpp (meter)"})
	for i, name := range []string{"CH1", "CH2"} {
		table.Append([]string{
			name,
			strconv.Itoa(int(stats[i].Min)),
			strconv.Itoa(int(stats[i].Max)),
			strconv.Itoa(int(stats[i].Vpp)),
			strconv.Itoa(stats[i].DominantBin),
			strconv.FormatUint(m.ChannelFrequency[i], 10),
			strconv.Itoa(int(m.DC[i])),
			strconv.FormatInt(m.VPP[i], 10),
		})
	}
	table.Render()

	s := e.Settings()
	if s.Mode.Meter() {
		fmt.Fprintf(w, "Meter %v: count %d, frequency %d, elapsed %s\n",
			m.Mode, m.Count, m.Frequency, m.Elapsed)
	}
}

// printRates dumps the sample rate table.
func printRates(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Index", "Mode", "Time/div", "Samples/s", "Oversample", "Min post", "Slow divisor"})
	for _, r := range ratetable.All() {
		table.Append([]string{
			strconv.Itoa(int(r.Index)),
			r.Mode.String(),
			r.TimePerDiv.String(),
			strconv.FormatFloat(r.SamplesPerSecond, 'g', 6, 64),
			strconv.Itoa(int(r.Oversample)),
			strconv.Itoa(int(r.MinPostTrigger)),
			strconv.Itoa(int(r.SlowDivisor)),
		})
	}
	table.Render()
}
