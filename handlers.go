package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/mso/pkg/engine"
	"github.com/mso/pkg/ratetable"
	"github.com/mso/pkg/settings"
)

// API Handlers

func currentEngine(w http.ResponseWriter) *engine.Engine {
	serverState.mu.RLock()
	e := serverState.Engine
	serverState.mu.RUnlock()
	if e == nil {
		http.Error(w, "Engine not running", 503)
	}
	return e
}

func handleSettings(w http.ResponseWriter, r *http.Request) {
	e := currentEngine(w)
	if e == nil {
		return
	}

	if r.Method == "GET" {
		json.NewEncoder(w).Encode(e.Settings())
		return
	}

	if r.Method == "POST" || r.Method == "PATCH" {
		var patch settings.Patch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		err := e.Mutate(func(s *settings.Settings) (settings.Effects, error) {
			return s.ApplyPatch(&patch)
		})
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}

		broadcastSettings(e)
		json.NewEncoder(w).Encode(e.Settings())
		return
	}

	http.Error(w, "Method not allowed", 405)
}

func handleRegister(w http.ResponseWriter, r *http.Request) {
	e := currentEngine(w)
	if e == nil {
		return
	}

	if r.Method == "GET" {
		idx, err := strconv.Atoi(r.URL.Query().Get("index"))
		if err != nil || idx < 0 || idx > 255 {
			http.Error(w, "Invalid register index", 400)
			return
		}
		s := e.Settings()
		v, err := s.Register(settings.Register(idx))
		if err != nil {
			http.Error(w, err.Error(), 404)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"index": idx,
			"name":  settings.Register(idx).String(),
			"value": v,
		})
		return
	}

	if r.Method != "POST" {
		http.Error(w, "Method not allowed", 405)
		return
	}

	var req struct {
		Index uint8 `json:"index"`
		Value uint8 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	err := e.Mutate(func(s *settings.Settings) (settings.Effects, error) {
		return s.SetRegister(settings.Register(req.Index), req.Value)
	})
	if err != nil {
		http.Error(w, err.Error(), 404)
		return
	}

	broadcastSettings(e)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"name":    settings.Register(req.Index).String(),
	})
}

func handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", 405)
		return
	}
	e := currentEngine(w)
	if e == nil {
		return
	}

	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	c, err := engine.ParseCommand(req.Command)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if err := e.Command(c); err != nil {
		status := 500
		if errors.Is(err, engine.ErrStopped) || errors.Is(err, engine.ErrNoSettingsFile) {
			status = 409
		}
		http.Error(w, err.Error(), status)
		return
	}

	broadcastJSON(map[string]interface{}{
		"type":    "command",
		"command": c.String(),
	})
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

func handleMeasure(w http.ResponseWriter, r *http.Request) {
	e := currentEngine(w)
	if e == nil {
		return
	}
	m := e.Measurement()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"measurement": m,
		"elapsed":     m.Elapsed.String(),
		"stats":       e.Stats(),
	})
}

// rateInfo is the JSON view of one rate table entry.
type rateInfo struct {
	Index            uint8   `json:"index"`
	Mode             string  `json:"mode"`
	TimePerDiv       string  `json:"time_per_div"`
	SamplesPerSecond float64 `json:"samples_per_second"`
	MinPostTrigger   uint16  `json:"min_post_trigger"`
}

func rateInfoOf(r ratetable.Rate) rateInfo {
	return rateInfo{
		Index:            r.Index,
		Mode:             r.Mode.String(),
		TimePerDiv:       r.TimePerDiv.String(),
		SamplesPerSecond: r.SamplesPerSecond,
		MinPostTrigger:   r.MinPostTrigger,
	}
}

func handleRates(w http.ResponseWriter, r *http.Request) {
	rates := []rateInfo{}
	for _, rt := range ratetable.All() {
		rates = append(rates, rateInfoOf(rt))
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"rates": rates,
	})
}

func handleState(w http.ResponseWriter, r *http.Request) {
	e := currentEngine(w)
	if e == nil {
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"capture":    e.CaptureState().String(),
		"auto_setup": e.AutoSetupActive(),
		"rate":       rateInfoOf(e.Rate()),
		"dropped":    e.Dropped(),
	})
}

// hostLinkConn pairs a request body with a reply buffer for the dispatcher.
type hostLinkConn struct {
	io.Reader
	bytes.Buffer
}

func (c *hostLinkConn) Read(p []byte) (int, error) { return c.Reader.Read(p) }

// handleHostLink runs a raw opcode stream through the dispatcher and
// returns the concatenated replies.
func handleHostLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", 405)
		return
	}
	serverState.mu.RLock()
	d := serverState.Dispatcher
	serverState.mu.RUnlock()
	if d == nil {
		http.Error(w, "Host link not available", 503)
		return
	}

	conn := &hostLinkConn{Reader: http.MaxBytesReader(w, r.Body, 4096)}
	if err := d.Serve(r.Context(), conn); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(conn.Bytes())
}
