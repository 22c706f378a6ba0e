package sse

import (
	"path/filepath"
	"sync"

	"github.com/kbukum/mediascribe/logger"
)

// Frame is one Server-Sent Event.
type Frame struct {
	// ID is written as the event id. Zero omits it.
	ID    int64
	Event string
	Data  []byte
	// Final ends the stream after this frame is written.
	Final bool
}

// clientBuffer is the number of frames queued per client before drops.
const clientBuffer = 256

// Client is a connected SSE subscriber.
type Client struct {
	id     string
	frames chan Frame
	log    *logger.Logger
}

// NewClient creates a client with a buffered frame queue.
func NewClient(id string) *Client {
	return &Client{id: id, frames: make(chan Frame, clientBuffer), log: logger.WithComponent("sse")}
}

// ID returns the client's identifier.
func (c *Client) ID() string { return c.id }

// Frames returns the channel frames are delivered on. It is closed when the
// client is unregistered or the hub stops.
func (c *Client) Frames() <-chan Frame { return c.frames }

// Send queues f without blocking. It returns false when the queue is full.
func (c *Client) Send(f Frame) bool {
	select {
	case c.frames <- f:
		return true
	default:
		c.log.Warn("client queue full, dropping frame", logger.Fields("client_id", c.id, "event", f.Event))
		return false
	}
}

func (c *Client) close() { close(c.frames) }

type message struct {
	pattern string
	frame   Frame
}

// Hub routes frames to clients whose id matches a glob pattern.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	stopped    bool
	mu         sync.RWMutex
	log        *logger.Logger
}

// NewHub creates a hub. Call Run in a goroutine to start routing.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, clientBuffer),
		done:       make(chan struct{}),
		log:        log.WithComponent("sse"),
	}
}

// Run routes registrations and broadcasts until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client registered", logger.Fields("client_id", c.id, "clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				c.close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client unregistered", logger.Fields("client_id", c.id, "clients", n))

		case m := <-h.broadcast:
			h.send(m)
		}
	}
}

// Stop closes every client and makes Run return. It is safe to call more
// than once.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
}

// Done is closed when the hub stops.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
}

// Register adds c. It reports false when the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes c and closes its frame channel.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast sends f to every client whose id matches pattern. It never
// blocks on a stopped hub.
func (h *Hub) Broadcast(pattern string, f Frame) {
	select {
	case h.broadcast <- message{pattern: pattern, frame: f}:
	case <-h.done:
	}
}

func (h *Hub) send(m message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		matched, err := filepath.Match(m.pattern, id)
		if err != nil {
			h.log.Error("bad client pattern", logger.Fields("pattern", m.pattern, logger.FieldError, err.Error()))
			return
		}
		if matched {
			c.Send(m.frame)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
