package capture

import (
	"sync/atomic"

	"github.com/mso/pkg/channel"
)

// Frame is one display-ready capture.
type Frame struct {
	CH1     [channel.FrameSize]uint8
	CH2     [channel.FrameSize]uint8
	Digital [channel.FrameSize]uint8
	// Counter increases by one for every frame produced.
	Counter uint64
	Rate    uint8
	// Forced is set when the frame was triggered by timeout or command
	// rather than by the trigger condition.
	Forced bool
	// Roll frames are snapshots of a rolling slow-mode window.
	Roll bool
}

// FrameCounter hands out monotonically increasing frame numbers.
type FrameCounter struct {
	n atomic.Uint64
}

// Next increments the counter and returns the new value.
func (c *FrameCounter) Next() uint64 { return c.n.Add(1) }

// Load returns the number of frames produced so far.
func (c *FrameCounter) Load() uint64 { return c.n.Load() }
