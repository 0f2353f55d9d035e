package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mso/pkg/engine"
	"github.com/mso/pkg/settings"
)

// WebSocket clients
var (
	wsClients   = make(map[*Client]bool)
	wsClientsMu sync.RWMutex
)

type Client struct {
	conn *websocket.Conn
	send chan interface{}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			switch v := msg.(type) {
			case []byte:
				if err := c.conn.WriteMessage(websocket.BinaryMessage, v); err != nil {
					return
				}
			default:
				if err := c.conn.WriteJSON(v); err != nil {
					return
				}
			}
		}
	}
}

// clientMessage is what clients send over the socket.
type clientMessage struct {
	Type    string          `json:"type"`
	Enabled *bool           `json:"enabled"`
	FPS     int             `json:"fps"`
	Command string          `json:"command"`
	Patch   *settings.Patch `json:"patch"`
}

func handleClientMessage(e *engine.Engine, msg []byte) error {
	var m clientMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return fmt.Errorf("bad message: %w", err)
	}
	switch m.Type {
	case "stream_control":
		serverState.mu.Lock()
		if m.Enabled != nil {
			serverState.StreamingEnabled = *m.Enabled
		}
		if m.FPS > 0 {
			serverState.StreamFPS = m.FPS
		}
		serverState.mu.Unlock()
	case "command":
		c, err := engine.ParseCommand(m.Command)
		if err != nil {
			return err
		}
		return e.Command(c)
	case "settings":
		if m.Patch == nil {
			return fmt.Errorf("settings message without patch")
		}
		if err := e.Mutate(func(s *settings.Settings) (settings.Effects, error) {
			return s.ApplyPatch(m.Patch)
		}); err != nil {
			return err
		}
		broadcastSettings(e)
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	return nil
}

func newServeMux(e *engine.Engine) *http.ServeMux {
	upgrader := websocket.Upgrader{
		CheckOrigin:     func(r *http.Request) bool { return true },
		ReadBufferSize:  1024,
		WriteBufferSize: 65536,
	}

	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/settings", handleSettings)
	mux.HandleFunc("/api/register", handleRegister)
	mux.HandleFunc("/api/command", handleCommand)
	mux.HandleFunc("/api/measure", handleMeasure)
	mux.HandleFunc("/api/rates", handleRates)
	mux.HandleFunc("/api/state", handleState)
	mux.HandleFunc("/api/hostlink", handleHostLink)

	// Recording endpoints
	mux.HandleFunc("/api/record/start", handleRecordStart)
	mux.HandleFunc("/api/record/stop", handleRecordStop)
	mux.HandleFunc("/api/record/status", handleRecordStatus)

	// WebSocket streaming endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("[WS] Upgrade:", err)
			return
		}

		log.Println("[WS] Client connected")

		client := &Client{conn: conn, send: make(chan interface{}, 256)}

		wsClientsMu.Lock()
		wsClients[client] = true
		wsClientsMu.Unlock()

		go client.writePump()

		s := e.Settings()
		client.send <- map[string]interface{}{"type": "settings", "settings": s}

		defer func() {
			wsClientsMu.Lock()
			delete(wsClients, client)
			wsClientsMu.Unlock()
			close(client.send) // This will stop writePump
			log.Println("[WS] Client disconnected")
		}()

		// Handle incoming messages from client (read pump)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := handleClientMessage(e, msg); err != nil {
				log.Printf("[WS] %v", err)
				select {
				case client.send <- map[string]string{"type": "error", "error": err.Error()}:
				default:
				}
			}
		}
	})

	return mux
}

// runServer runs the engine and serves the API and WebSocket hub until ctx
// is cancelled.
func runServer(ctx context.Context, port int, e *engine.Engine) error {
	serverState.mu.Lock()
	serverState.Engine = e
	serverState.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := e.Run(ctx); err != nil {
			log.Printf("[ENGINE] %v", err)
			cancel()
		}
	}()
	go runGlobalStreamLoop(ctx, e)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: newServeMux(e),
	}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	log.Printf("Scope server listening on http://localhost%s", srv.Addr)
	serverState.mu.RLock()
	if serverState.DevicePath != "" {
		log.Printf("Device: %s", serverState.DevicePath)
	}
	serverState.mu.RUnlock()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func broadcastJSON(msg interface{}) {
	wsClientsMu.RLock()
	defer wsClientsMu.RUnlock()

	for client := range wsClients {
		select {
		case client.send <- msg:
		default:
		}
	}
}

func broadcastBinary(b []byte) {
	wsClientsMu.RLock()
	defer wsClientsMu.RUnlock()

	for client := range wsClients {
		select {
		case client.send <- b:
		default:
		}
	}
}

func broadcastSettings(e *engine.Engine) {
	broadcastJSON(map[string]interface{}{
		"type":     "settings",
		"settings": e.Settings(),
	})
}

// rollSink streams slow-mode samples to clients as they are stored.
type rollSink struct{}

func (rollSink) StoreSample(index int, ch1, ch2, digital uint8) {
	broadcastJSON(map[string]interface{}{
		"type":    "roll",
		"index":   index,
		"ch1":     ch1,
		"ch2":     ch2,
		"digital": digital,
	})
}
