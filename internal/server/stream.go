package server

import (
	"net/http"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crowdq/internal/events"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	streamBuffer = 32
)

// EventStream pushes rotation events to websocket clients.
//
// Each connection gets its own bus subscription. A client too slow to keep up misses events
// rather than stalling the publisher.
type EventStream struct {
	bus      *events.Bus
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewEventStream creates a stream over bus. An empty origins list accepts any origin.
func NewEventStream(bus *events.Bus, origins []string, logger *log.Logger) *EventStream {
	return &EventStream{
		bus:    bus,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				return slices.Contains(origins, r.Header.Get("Origin"))
			},
		},
	}
}

// Routes implements [Handler].
func (e *EventStream) Routes() []string {
	return []string{"/api/events"}
}

type welcome struct {
	Type string    `json:"type"`
	Now  time.Time `json:"now"`
}

// ServeHTTP upgrades the connection and streams events until the client leaves or the request
// context ends.
func (e *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub, cancel := e.bus.Subscribe(streamBuffer)
	defer cancel()

	gone := make(chan struct{})
	go e.readPump(conn, gone)

	e.logger.Debug("stream client connected", "remote", r.RemoteAddr)
	defer e.logger.Debug("stream client disconnected", "remote", r.RemoteAddr)

	if err := e.write(conn, welcome{Type: "welcome", Now: time.Now().UTC()}); err != nil {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if err := e.write(conn, ev); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (e *EventStream) write(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// readPump discards client messages and closes gone when the connection drops.
func (e *EventStream) readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
