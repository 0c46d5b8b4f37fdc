// Package ws fans telemetry envelopes out to WebSocket clients. Clients may
// subscribe to a subset of envelope types with ?types=pose,log; everyone
// else gets everything. Ping/pong keepalives clean up stale connections.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/large-farva/cybot-control/internal/telemetry"
)

type client struct {
	conn  *websocket.Conn
	types map[telemetry.EventType]bool // nil means all
}

func (c *client) wants(t telemetry.EventType) bool {
	return c.types == nil || c.types[t]
}

type message struct {
	typ  telemetry.EventType
	data []byte
}

// Hub owns the client set. Register, unregister, broadcast and count all go
// through its select loop, so it is safe for concurrent use.
type Hub struct {
	clients    map[*websocket.Conn]*client
	register   chan *client
	unregister chan *websocket.Conn
	broadcast  chan message
	count      chan chan int
	upgrader   websocket.Upgrader
	log        *slog.Logger
}

// NewHub allocates a hub. Call Run in a goroutine to start the loop.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients:    make(map[*websocket.Conn]*client),
		register:   make(chan *client, 16),
		unregister: make(chan *websocket.Conn, 16),
		broadcast:  make(chan message, 256),
		count:      make(chan chan int),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: log.With("component", "ws"),
	}
}

// Run processes the hub's channels until ctx is cancelled, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	ping := time.NewTicker(20 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			for conn := range h.clients {
				_ = conn.Close()
			}
			return

		case c := <-h.register:
			h.clients[c.conn] = c
			h.log.Debug("client connected", "remote", c.conn.RemoteAddr().String(), "clients", len(h.clients))

		case conn := <-h.unregister:
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				_ = conn.Close()
			}

		case msg := <-h.broadcast:
			for conn, c := range h.clients {
				if !c.wants(msg.typ) {
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
					delete(h.clients, conn)
					_ = conn.Close()
				}
			}

		case reply := <-h.count:
			reply <- len(h.clients)

		case <-ping.C:
			for conn := range h.clients {
				_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					delete(h.clients, conn)
					_ = conn.Close()
				}
			}
		}
	}
}

// Handler upgrades requests and registers the connection. The optional
// types query parameter is a comma-separated subscription list.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		types := ParseTypes(r.URL.Query().Get("types"))
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn("websocket upgrade failed", "err", err)
			return
		}
		h.register <- &client{conn: conn, types: types}

		go func() {
			defer func() { h.unregister <- conn }()
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			conn.SetPongHandler(func(string) error {
				_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
				return nil
			})

			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})
}

// ParseTypes turns "pose, log" into a set. An empty list means everything.
func ParseTypes(raw string) map[telemetry.EventType]bool {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	set := map[telemetry.EventType]bool{}
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			set[telemetry.EventType(strings.ToLower(p))] = true
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// Broadcast marshals the envelope and queues it for delivery. A full queue
// drops the message rather than blocking the caller.
func (h *Hub) Broadcast(ev telemetry.Envelope) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal envelope", "type", ev.EventType(), "err", err)
		return
	}
	select {
	case h.broadcast <- message{typ: ev.EventType(), data: b}:
	default:
	}
}

// Clients reports the number of connected clients. It blocks until Run
// answers, or returns 0 once ctx is done.
func (h *Hub) Clients(ctx context.Context) int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
	case <-ctx.Done():
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-ctx.Done():
		return 0
	}
}
