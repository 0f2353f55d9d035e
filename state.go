package main

import (
	"sync"

	"github.com/mso/pkg/engine"
	"github.com/mso/pkg/hostlink"
	"github.com/mso/pkg/settings"
)

// Server state
type ServerState struct {
	mu sync.RWMutex

	Engine     *engine.Engine
	Dispatcher *hostlink.Dispatcher
	// Roll forwards slow-mode samples to WebSocket clients while autosend is on.
	Roll *hostlink.Gate

	// Stream config from client
	StreamFPS        int  // frame broadcasts per second
	StreamingEnabled bool // Controls if data is actually sent
	SendMeasurements bool

	// Recording
	Recording        bool
	RecordingFile    string
	RecordingSession string
	RecordingFrames  int // Total frames to record
	RecordingCurrent int // Frames recorded so far
	recorder         *FrameRecorder

	// System
	DevicePath string
}

// RecordingMetadata is written as JSON next to each recording.
type RecordingMetadata struct {
	Timestamp string            `json:"timestamp"`
	Session   string            `json:"session"`
	Rate      uint8             `json:"rate"`
	Settings  settings.Settings `json:"settings"`
}

var serverState = &ServerState{
	StreamFPS:        30,
	StreamingEnabled: true,
	SendMeasurements: true,
}
