// Package ws pushes live signal state to websocket subscribers.
package ws

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeTimeout = 5 * time.Second
	sendBuffer   = 16
)

// Message types.
const (
	TypeSnapshot = "snapshot"
	TypeMode     = "mode"
	TypeConfig   = "config"
	TypeStatus   = "status"
	TypePing     = "ping"
	TypePong     = "pong"
)

// Message is one frame sent to subscribers.
type Message struct {
	Type string          `json:"type"`
	TS   int64           `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage encodes data into a message of type typ.
func NewMessage(typ string, data any) (Message, error) {
	msg := Message{Type: typ, TS: time.Now().UnixMilli()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Message{}, fmt.Errorf("encode %s message: %w", typ, err)
		}
		msg.Data = raw
	}
	return msg, nil
}

// Hub fans out messages to every connected subscriber. Slow subscribers
// lose messages rather than stall the sender.
type Hub struct {
	snapshot func() any
	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[chan Message]struct{}
}

// NewHub returns a hub. snapshot, if set, is sent to each new subscriber.
func NewHub(snapshot func() any) *Hub {
	return &Hub{
		snapshot: snapshot,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		subs: make(map[chan Message]struct{}),
	}
}

// Register binds the websocket route on an Echo router.
func (h *Hub) Register(e *echo.Echo) {
	e.GET("/ws", h.HandleWebSocket)
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast queues msg for every subscriber.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
			slog.Debug("ws subscriber lagging, message dropped", "type", msg.Type)
		}
	}
}

// Publish encodes data and broadcasts it.
func (h *Hub) Publish(typ string, data any) {
	msg, err := NewMessage(typ, data)
	if err != nil {
		slog.Error("ws publish", "err", err)
		return
	}
	h.Broadcast(msg)
}

func (h *Hub) add() chan Message {
	ch := make(chan Message, sendBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	slog.Info("ws subscriber added", "total", n)
	return ch
}

func (h *Hub) remove(ch chan Message) {
	h.mu.Lock()
	delete(h.subs, ch)
	close(ch)
	n := len(h.subs)
	h.mu.Unlock()
	slog.Info("ws subscriber removed", "remaining", n)
}

// HandleWebSocket upgrades one request and serves it until disconnect.
func (h *Hub) HandleWebSocket(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}
	h.serveConn(conn)
	return nil
}

func (h *Hub) serveConn(conn *websocket.Conn) {
	defer conn.Close()
	conn.SetReadLimit(4 << 10)

	send := h.add()
	defer h.remove(send)

	if h.snapshot != nil {
		msg, err := NewMessage(TypeSnapshot, h.snapshot())
		if err == nil {
			send <- msg
		}
	}

	go func() {
		for out := range send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(out); err != nil {
				return
			}
		}
	}()

	for {
		var in Message
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		if in.Type == TypePing {
			h.sendTo(send, Message{Type: TypePong, TS: in.TS})
		}
	}
}

func (h *Hub) sendTo(ch chan Message, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; !ok {
		return
	}
	select {
	case ch <- msg:
	default:
	}
}
