package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mso/pkg/adc"
	"github.com/mso/pkg/engine"
	"github.com/mso/pkg/settings"
	"github.com/mso/pkg/shm_ring"
	"github.com/mso/pkg/sim"
)

// sizeFlag custom type to handle units like KB, MB, GB
type sizeFlag int

func (s *sizeFlag) String() string {
	return fmt.Sprintf("%d", *s)
}

func (s *sizeFlag) Set(value string) error {
	value = strings.TrimSpace(strings.ToUpper(value))
	multiplier := 1

	if strings.HasSuffix(value, "GB") {
		multiplier = 1024 * 1024 * 1024
		value = strings.TrimSuffix(value, "GB")
	} else if strings.HasSuffix(value, "MB") {
		multiplier = 1024 * 1024
		value = strings.TrimSuffix(value, "MB")
	} else if strings.HasSuffix(value, "KB") {
		multiplier = 1024
		value = strings.TrimSuffix(value, "KB")
	} else if strings.HasSuffix(value, "B") {
		value = strings.TrimSuffix(value, "B")
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid size format: %s", value)
	}

	*s = sizeFlag(val * multiplier)
	return nil
}

func main() {
	configFile := flag.String("config", "", "Config file")
	devicePath := flag.String("dev", "", "Conversion stream device (default: simulator)")
	shmName := flag.String("shm", "/mso_frames", "Shared memory name")
	var size sizeFlag = 16 * 1024 * 1024
	flag.Var(&size, "size", "Size of ring buffer (e.g., 16MB, 1GB)")

	flag.Parse()

	cfg, err := settings.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Config: %v", err)
	}

	var board engine.Board
	if *devicePath != "" {
		stream, closeStream, err := adc.Open(*devicePath)
		if err != nil {
			log.Fatalf("Failed to open device: %v", err)
		}
		defer closeStream()
		if pins := cfg.Board.DigitalPins; len(pins) > 0 {
			port, err := adc.OpenGPIOPort(cfg.Board.DigitalPull, pins)
			if err != nil {
				log.Fatalf("Digital pins: %v", err)
			}
			stream.Port = port
		}
		board = stream
	} else {
		b, err := sim.New(cfg.Simulator)
		if err != nil {
			log.Fatalf("Simulator: %v", err)
		}
		board = b
	}

	log.Printf("Starting frame to SHM bridge")
	log.Printf("SHM: %s%s (%d bytes)", shm_ring.Dir, *shmName, int(size))

	// Clean up old SHM
	shm_ring.Remove(*shmName)

	ring, err := shm_ring.Create(*shmName, uint64(size))
	if err != nil {
		log.Fatalf("Failed to create SHM ring: %v", err)
	}
	defer ring.Close()
	defer shm_ring.Remove(*shmName)
	log.Printf("Ring holds %d frames", ring.Slots())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initial := settings.Default()
	initial.Rate = uint8(cfg.Engine.Rate)
	e := engine.New(board, initial, engine.OptionsFromConfig(cfg))

	go func() {
		if err := e.Run(ctx); err != nil {
			log.Printf("[ENGINE] %v", err)
			stop()
		}
	}()

	lastReport := time.Now()
	var lastHead uint64
	for {
		select {
		case <-ctx.Done():
			log.Println("Shutting down...")
			return
		case f := <-e.Frames():
			ring.WriteFrame(f)
		}

		// Performance reporting every 2 seconds
		if time.Since(lastReport) > 2*time.Second {
			head := ring.GetHead()
			fps := float64(head-lastHead) / time.Since(lastReport).Seconds()
			_, tail := ring.GetPointers()
			log.Printf("Frames: %d | %.1f fps | Reader lag: %d | Dropped: %d",
				head, fps, head-tail, e.Dropped())
			lastReport = time.Now()
			lastHead = head
		}
	}
}
