package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/patchlink/patchlink-go/internal/services/pubsub"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 10 * time.Second
	wsBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for WebSocket
	},
}

// wsEvent is the envelope every pushed message travels in.
type wsEvent struct {
	Topic   pubsub.Topic `json:"topic"`
	Payload interface{}  `json:"payload"`
}

// serveWS streams library-import and session progress events to a
// websocket client. An optional ?session=<id> query narrows session
// events to one analysis.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Warning: websocket upgrade failed: %v", err)
		return
	}

	filter := r.URL.Query().Get("session")
	subs := []*pubsub.Subscriber{
		h.events.Subscribe(pubsub.TopicLibraryImport, "", wsBufferSize),
		h.events.Subscribe(pubsub.TopicSessionUpdated, filter, wsBufferSize),
		h.events.Subscribe(pubsub.TopicMatchProgress, filter, wsBufferSize),
	}
	defer func() {
		for _, sub := range subs {
			h.events.Unsubscribe(sub)
		}
		_ = conn.Close()
	}()

	// Reader goroutine only to detect the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	merged := make(chan wsEvent, wsBufferSize)
	for _, sub := range subs {
		go func(sub *pubsub.Subscriber) {
			for msg := range sub.Channel {
				select {
				case merged <- wsEvent{Topic: sub.Topic, Payload: msg}:
				case <-done:
					return
				}
			}
		}(sub)
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev := <-merged:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
