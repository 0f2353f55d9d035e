package main

import (
	"errors"
	"flag"
	"log"
	"time"

	"github.com/mso/pkg/capture"
	"github.com/mso/pkg/shm_ring"
)

func main() {
	shmName := flag.String("shm", "/mso_frames", "Shared memory name")
	flag.Parse()

	log.Printf("Connecting to SHM: %s%s", shm_ring.Dir, *shmName)

	ring, err := shm_ring.Open(*shmName)
	if err != nil {
		log.Fatalf("Failed to open SHM ring: %v", err)
	}
	defer ring.Close()

	log.Println("Reading from SHM. Press Ctrl+C to stop.")

	var f capture.Frame
	next := ring.GetHead()
	for {
		head := ring.GetHead()
		if head == next {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if head-next > ring.Slots() {
			log.Printf("Lapped by writer, skipping %d frames", head-next-1)
			next = head - 1
		}
		if err := ring.ReadFrame(next, &f); err != nil {
			if errors.Is(err, shm_ring.ErrOverwritten) {
				next = ring.GetHead() - 1
				continue
			}
			log.Fatalf("Read frame %d: %v", next, err)
		}
		next++
		ring.SetTail(next)

		var lo, hi uint8 = 255, 0
		for _, v := range f.CH1 {
			lo, hi = min(lo, v), max(hi, v)
		}
		log.Printf("Frame %8d | rate %2d | forced %-5v | roll %-5v | CH1 %3d..%3d",
			f.Counter, f.Rate, f.Forced, f.Roll, lo, hi)
	}
}
