package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mso/pkg/adc"
	"github.com/mso/pkg/engine"
	"github.com/mso/pkg/hostlink"
	"github.com/mso/pkg/settings"
	"github.com/mso/pkg/sim"
)

const simFIFO = "/tmp/mso_c2h0"

// loadInitialSettings reads user settings from path: a JSON file or a raw
// 32-byte record (.bin). A missing file yields the defaults at rate.
func loadInitialSettings(path string, rate int) (settings.Settings, error) {
	s := settings.Default()
	s.Rate = uint8(rate)
	if path == "" {
		return s, nil
	}
	var loaded *settings.Settings
	var err error
	if filepath.Ext(path) == ".bin" {
		loaded, err = settings.LoadRecord(path)
	} else {
		loaded, err = settings.LoadFromFile(path)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	return *loaded, nil
}

// openBoard returns the peripheral: a conversion stream when devicePath is
// set, otherwise the in-process simulator.
func openBoard(cfg *settings.Config, devicePath string) (engine.Board, func() error, error) {
	if devicePath != "" {
		stream, closeStream, err := adc.Open(devicePath)
		if err != nil {
			return nil, nil, err
		}
		if err := attachDigitalPins(stream, cfg.Board); err != nil {
			closeStream()
			return nil, nil, err
		}
		return stream, closeStream, nil
	}
	b, err := sim.New(cfg.Simulator)
	if err != nil {
		return nil, nil, err
	}
	return b, func() error { return nil }, nil
}

// attachDigitalPins reads the digital lines from host GPIO pins instead of
// the conversion records when pins are configured.
func attachDigitalPins(stream *adc.Stream, b settings.BoardConfig) error {
	if len(b.DigitalPins) == 0 {
		return nil
	}
	port, err := adc.OpenGPIOPort(b.DigitalPull, b.DigitalPins)
	if err != nil {
		return fmt.Errorf("digital pins: %w", err)
	}
	stream.Port = port
	log.Printf("[GPIO] Digital lines from %s", strings.Join(b.DigitalPins, ","))
	return nil
}

// newEngine wires the engine, the autosend gate and the host link
// dispatcher into serverState.
func newEngine(cfg *settings.Config, board engine.Board, initial settings.Settings) *engine.Engine {
	gate := hostlink.NewGate(rollSink{})
	opts := engine.OptionsFromConfig(cfg)
	opts.Sink = gate
	e := engine.New(board, initial, opts)

	d := hostlink.NewDispatcher(e, "")
	d.Gate = gate

	serverState.mu.Lock()
	serverState.Engine = e
	serverState.Dispatcher = d
	serverState.Roll = gate
	serverState.mu.Unlock()
	return e
}

func main() {
	configFile := flag.String("config", "", "Config file (default: search mso.* in /etc/mso and .)")
	device := flag.String("d", "", "Conversion stream device or FIFO (default: in-process simulator)")
	settingsFile := flag.String("settings", "", "Initial settings (.json or 32-byte .bin record)")
	gpioPins := flag.String("gpio", "", "Comma-separated GPIO pins for digital lines 0..7 (default from config)")

	// CLI-specific flags
	frames := flag.Int("n", 10, "Frames to capture (CLI mode only)")
	outputFile := flag.String("o", "", "Parquet output filename (CLI mode only)")
	showRates := flag.Bool("rates", false, "Print the sample rate table and exit")

	// Server-specific flags
	isServer := flag.Bool("server", false, "Run in WebSocket server mode")
	port := flag.Int("p", 0, "Port to listen on (Server mode only, default from config)")

	// Simulation flags
	isSim := flag.Bool("sim", false, "Feed simulated conversions through a named pipe")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "  CLI Mode:    go run . [options]")
		fmt.Fprintln(os.Stderr, "  Server Mode: go run . --server [options]")
		fmt.Fprintln(os.Stderr, "  Sim Mode:    go run . --sim [options]")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *showRates {
		printRates(os.Stdout)
		return
	}

	cfg, err := settings.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Config: %v", err)
	}

	if *gpioPins != "" {
		cfg.Board.DigitalPins = strings.Split(*gpioPins, ",")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// If simulation mode is on, override device path and start the FIFO feeder
	if *isSim {
		*device = simFIFO
		go func() {
			if err := RunSimulator(ctx, *device, cfg.Simulator, uint8(cfg.Engine.Rate)); err != nil {
				log.Printf("%v", err)
			}
		}()
		// Give the simulator a moment to create the pipe
		time.Sleep(200 * time.Millisecond)
	}

	initial, err := loadInitialSettings(*settingsFile, cfg.Engine.Rate)
	if err != nil {
		log.Fatalf("Settings: %v", err)
	}

	board, closeBoard, err := openBoard(cfg, *device)
	if err != nil {
		log.Fatalf("Board: %v", err)
	}
	defer closeBoard()

	serverState.mu.Lock()
	serverState.DevicePath = *device
	if cfg.Server.MaxFPS > 0 {
		serverState.StreamFPS = cfg.Server.MaxFPS
	}
	serverState.mu.Unlock()

	e := newEngine(cfg, board, initial)

	if *isServer {
		if *port == 0 {
			*port = cfg.Server.Port
		}
		if err := runServer(ctx, *port, e); err != nil {
			log.Fatalf("Server: %v", err)
		}
		return
	}
	if err := runCLI(e, *frames, *outputFile); err != nil {
		log.Fatalf("Capture failed: %v", err)
	}
}
