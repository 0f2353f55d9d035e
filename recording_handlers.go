package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mso/pkg/capture"
)

const dataFolder = "data"

type RecordStartRequest struct {
	Frames int `json:"frames"`
}

func handleRecordStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", 405)
		return
	}

	var req RecordStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", 400)
		return
	}

	if req.Frames <= 0 {
		http.Error(w, "Invalid frame count", 400)
		return
	}

	filename, session, err := startRecording(req.Frames)
	if err != nil {
		if errors.Is(err, errAlreadyRecording) {
			http.Error(w, err.Error(), 409)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"filename": filename,
		"session":  session,
	})
}

var errAlreadyRecording = errors.New("already recording")

// startRecording opens a new Parquet recording of the next frames frames.
func startRecording(frames int) (filename, session string, err error) {
	serverState.mu.Lock()
	defer serverState.mu.Unlock()

	if serverState.Recording {
		return "", "", errAlreadyRecording
	}
	e := serverState.Engine
	if e == nil {
		return "", "", fmt.Errorf("engine not running")
	}

	if err := os.MkdirAll(dataFolder, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create data folder: %w", err)
	}

	// Generate filename: frames_YYYYMMDD_HHMMSS.parquet
	filename = fmt.Sprintf("frames_%s.parquet", time.Now().Format("20060102_150405"))
	fullPath := filepath.Join(dataFolder, filename)

	f, err := os.Create(fullPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to create file: %w", err)
	}

	session = uuid.New().String()
	s := e.Settings()

	serverState.Recording = true
	serverState.RecordingFile = filename
	serverState.RecordingSession = session
	serverState.RecordingFrames = frames
	serverState.RecordingCurrent = 0
	serverState.recorder = NewFrameRecorder(f, &s, session)

	// Save Metadata
	metaPath := filepath.Join(dataFolder, strings.TrimSuffix(filename, ".parquet")+".json")
	metadata := RecordingMetadata{
		Timestamp: time.Now().Format(time.RFC3339),
		Session:   session,
		Rate:      s.Rate,
		Settings:  s,
	}
	if metaBytes, err := json.MarshalIndent(metadata, "", "  "); err == nil {
		os.WriteFile(metaPath, metaBytes, 0644)
	}

	log.Printf("[REC] Recording %d frames to %s (session %s)", frames, fullPath, session)

	go broadcastJSON(map[string]interface{}{
		"type":      "recording_status",
		"recording": true,
		"filename":  filename,
		"session":   session,
		"total":     frames,
		"current":   0,
	})
	return filename, session, nil
}

// recordFrame appends f to the active recording, finishing it once the
// requested number of frames is reached.
func recordFrame(f *capture.Frame) {
	serverState.mu.Lock()
	if !serverState.Recording || serverState.recorder == nil {
		serverState.mu.Unlock()
		return
	}
	if err := serverState.recorder.WriteFrame(f); err != nil {
		serverState.mu.Unlock()
		log.Printf("[REC] Recording write error: %v", err)
		stopRecording(err.Error())
		return
	}
	serverState.RecordingCurrent = serverState.recorder.Frames()
	current, total := serverState.RecordingCurrent, serverState.RecordingFrames
	serverState.mu.Unlock()

	if current%10 == 0 {
		go broadcastJSON(map[string]interface{}{
			"type":    "recording_progress",
			"current": current,
			"total":   total,
		})
	}
	if current >= total {
		log.Printf("[REC] Recording finished. Total frames: %d", current)
		stopRecording("")
	}
}

// stopRecording closes the active recording, if any.
func stopRecording(errorMsg string) {
	serverState.mu.Lock()
	defer serverState.mu.Unlock()

	if !serverState.Recording {
		return
	}
	if serverState.recorder != nil {
		if err := serverState.recorder.Close(); err != nil {
			log.Printf("[REC] Failed to close recording: %v", err)
			if errorMsg == "" {
				errorMsg = err.Error()
			}
		}
		serverState.recorder = nil
	}
	serverState.Recording = false

	msg := map[string]interface{}{
		"type":      "recording_status",
		"recording": false,
		"finished":  true,
	}
	if errorMsg != "" {
		msg["error"] = errorMsg
		msg["finished"] = false
	}
	go broadcastJSON(msg)
}

func handleRecordStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", 405)
		return
	}

	serverState.mu.RLock()
	recording := serverState.Recording
	serverState.mu.RUnlock()

	if !recording {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "message": "Not recording"})
		return
	}
	stopRecording("")

	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

func handleRecordStatus(w http.ResponseWriter, r *http.Request) {
	serverState.mu.RLock()
	defer serverState.mu.RUnlock()

	json.NewEncoder(w).Encode(map[string]interface{}{
		"recording": serverState.Recording,
		"filename":  serverState.RecordingFile,
		"session":   serverState.RecordingSession,
		"total":     serverState.RecordingFrames,
		"current":   serverState.RecordingCurrent,
	})
}
