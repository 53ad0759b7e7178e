package worker

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gowsd/server/wsconn"
)

// Hub is an optional registry of live WebSocket connections, supporting
// broadcast to every registered client. It is not required by the worker
// loop itself; illustrative handlers (a chat room, a notification fan-out)
// register a connection after a successful upgrade and unregister it when
// ReceiveMessage returns an error.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsconn.Conn]struct{}

	register   chan *wsconn.Conn
	unregister chan *wsconn.Conn
	broadcast  chan broadcastMsg

	done   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

type broadcastMsg struct {
	kind wsconn.MessageType
	data []byte
}

// NewHub returns a Hub whose event loop has not yet been started; call Run
// in a goroutine before Register/Broadcast do anything useful.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*wsconn.Conn]struct{}),
		register:   make(chan *wsconn.Conn),
		unregister: make(chan *wsconn.Conn),
		broadcast:  make(chan broadcastMsg, 256),
		done:       make(chan struct{}),
	}
}

// Run is the Hub's event loop. It blocks until Close is called and should
// be started with `go hub.Run()`.
func (h *Hub) Run() {
	h.wg.Add(1)
	defer h.wg.Done()

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				go func(c *wsconn.Conn, msg broadcastMsg) {
					var err error
					switch msg.kind {
					case wsconn.TextMessage:
						err = c.SendText(context.Background(), string(msg.data))
					default:
						err = c.SendBinary(context.Background(), msg.data)
					}
					if err != nil {
						h.Unregister(c)
					}
				}(c, msg)
			}
			h.mu.RUnlock()

		case <-h.done:
			return
		}
	}
}

// Register adds a client to the Hub so it receives future broadcasts.
// Safe to call from multiple goroutines.
func (h *Hub) Register(c *wsconn.Conn) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return
	}
	h.register <- c
}

// Unregister removes a client. Safe to call more than once for the same
// connection.
func (h *Hub) Unregister(c *wsconn.Conn) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return
	}
	h.unregister <- c
}

// BroadcastText queues a text message for delivery to every registered
// client. It blocks only when 256 broadcasts are already queued.
func (h *Hub) BroadcastText(text string) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return
	}
	h.broadcast <- broadcastMsg{kind: wsconn.TextMessage, data: []byte(text)}
}

// BroadcastJSON marshals v and broadcasts it as a text message.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.BroadcastText(string(data))
	return nil
}

// ClientCount returns the number of currently registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the event loop and releases registered clients without
// closing their underlying connections — callers own connection lifetime.
// Safe to call more than once.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	close(h.done)
	h.wg.Wait()

	h.mu.Lock()
	h.clients = make(map[*wsconn.Conn]struct{})
	h.mu.Unlock()
}
