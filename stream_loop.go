package main

import (
	"context"
	"log"
	"time"

	"github.com/mso/pkg/capture"
	"github.com/mso/pkg/dsp"
	"github.com/mso/pkg/engine"
	"github.com/mso/pkg/shm_ring"
)

// runGlobalStreamLoop consumes engine frames, feeds the recorder and
// broadcasts frames and measurements to all clients.
func runGlobalStreamLoop(ctx context.Context, e *engine.Engine) {
	defer log.Println("Global stream loop stopped")

	var lastSent time.Time
	var lastDropped uint64

	for {
		var f *capture.Frame
		select {
		case <-ctx.Done():
			stopRecording("")
			return
		case f = <-e.Frames():
		}

		recordFrame(f)

		serverState.mu.RLock()
		fps := serverState.StreamFPS
		enabled := serverState.StreamingEnabled
		sendMeasurements := serverState.SendMeasurements
		serverState.mu.RUnlock()

		if !enabled {
			continue
		}
		if fps <= 0 {
			fps = 30
		}
		if time.Since(lastSent) < time.Second/time.Duration(fps) {
			continue
		}
		lastSent = time.Now()

		// Same layout as the shared memory records.
		out := make([]byte, shm_ring.RecordSize)
		shm_ring.EncodeFrame(out, f)
		broadcastBinary(out)

		s := e.Settings()
		if s.Mode.FFT {
			broadcastJSON(map[string]interface{}{
				"type":     "spectrum",
				"frame":    f.Counter,
				"power_db": dsp.PowerDB(f.CH1[:], f.CH2[:], s.Mode.Window()),
			})
		}
		if sendMeasurements && s.Mode.Meter() {
			m := e.Measurement()
			broadcastJSON(map[string]interface{}{
				"type":        "measurement",
				"measurement": m,
				"elapsed":     m.Elapsed.String(),
			})
		}

		if d := e.Dropped(); d != lastDropped {
			broadcastJSON(map[string]interface{}{
				"type":    "dropped",
				"dropped": d,
			})
			lastDropped = d
		}
	}
}
