package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/nlzhang/geopin/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to channels.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Channel string `json:"channel"` // "session" | "history"
}

// wsEvent is pushed to the client on every change.
type wsEvent struct {
	Channel string      `json:"channel"`
	Data    interface{} `json:"data"`
}

// WebSocketHandler relays live session and history changes to connected
// clients. Both channels start enabled; the first message on each carries
// the current state, then deltas follow as they happen.
// Clients send JSON: {"action":"unsubscribe","channel":"history"}
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		remoteAddr := c.RemoteAddr().String()
		slog.Debug("ws client connected", "remote", remoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var mu sync.Mutex
		enabled := map[string]bool{"session": true, "history": true}

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		channelOn := func(name string) bool {
			mu.Lock()
			defer mu.Unlock()
			return enabled[name]
		}

		// Relay session snapshots. Watch delivers the current snapshot first.
		go func() {
			for snap := range deps.Engine.Watch(ctx) {
				if !channelOn("session") {
					continue
				}
				if err := writeJSON(wsEvent{Channel: "session", Data: snap}); err != nil {
					cancel()
					return
				}
			}
		}()

		// Relay history changes the same way.
		go func() {
			for entries := range deps.History.Watch(ctx) {
				if !channelOn("history") {
					continue
				}
				if err := writeJSON(wsEvent{Channel: "history", Data: entries}); err != nil {
					cancel()
					return
				}
			}
		}()

		// Keep-alive ping
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						cancel()
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		// Read client messages for subscribe/unsubscribe
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			if m.Channel != "session" && m.Channel != "history" {
				_ = writeJSON(map[string]string{"error": "unknown channel: " + m.Channel})
				continue
			}

			switch m.Action {
			case "subscribe":
				mu.Lock()
				enabled[m.Channel] = true
				mu.Unlock()
				_ = writeJSON(map[string]string{"status": "subscribed", "channel": m.Channel})
			case "unsubscribe":
				mu.Lock()
				enabled[m.Channel] = false
				mu.Unlock()
				_ = writeJSON(map[string]string{"status": "unsubscribed", "channel": m.Channel})
			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		slog.Debug("ws client disconnected", "remote", remoteAddr)
	}
}
