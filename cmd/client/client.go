package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/mso/pkg/capture"
	"github.com/mso/pkg/shm_ring"
)

func main() {
	host := flag.String("host", "localhost:8080", "Scope server address")
	count := flag.Int("n", 50, "Messages to read")
	fps := flag.Int("fps", 10, "Requested frame rate")
	command := flag.String("command", "", "Command to send first (stop, start, force, autosetup, save, defaults)")
	flag.Parse()

	u := url.URL{Scheme: "ws", Host: *host, Path: "/ws"}

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	enabled := true
	c.WriteJSON(map[string]interface{}{
		"type":    "stream_control",
		"enabled": enabled,
		"fps":     *fps,
	})
	if *command != "" {
		c.WriteJSON(map[string]interface{}{
			"type":    "command",
			"command": *command,
		})
	}

	var f capture.Frame
	for i := 0; i < *count; i++ {
		kind, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		if kind == websocket.BinaryMessage && len(msg) == shm_ring.RecordSize {
			shm_ring.DecodeFrame(msg, &f)
			log.Printf("frame %d rate %d forced %v roll %v", f.Counter, f.Rate, f.Forced, f.Roll)
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal(msg, &m); err != nil {
			log.Printf("bad message: %v", err)
			continue
		}
		switch m["type"] {
		case "measurement":
			log.Printf("measurement %v elapsed %v", m["measurement"], m["elapsed"])
		case "error":
			log.Printf("server error: %v", m["error"])
		default:
			log.Printf("%v", m["type"])
		}
	}
}
