package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	ErrClientClosed = errors.New("client closed")
	ErrSlowClient   = errors.New("client send queue full")
)

// Client is one live WebSocket connection. Outbound frames go through a
// buffered queue drained by a single writer, so per-connection order is the
// order in which frames were enqueued.
type Client struct {
	id   string
	conn *websocket.Conn
	hub  *Hub

	mu     sync.Mutex // guards send, held and backlog against close
	send   chan []byte
	closed bool

	// held queues broadcasts in backlog until the welcome is enqueued.
	held    bool
	backlog [][]byte
}

func (c *Client) ID() string { return c.id }

// Send marshals msg and queues it for this client only. It never blocks.
func (c *Client) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

func (c *Client) enqueue(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	return c.push(data)
}

// deliver queues a broadcast frame, holding it back while the client is
// still being welcomed.
func (c *Client) deliver(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	if c.held {
		if len(c.backlog) >= cap(c.send) {
			return ErrSlowClient
		}
		c.backlog = append(c.backlog, data)
		return nil
	}
	return c.push(data)
}

// release ends the hold and queues the held broadcasts after everything
// sent so far.
func (c *Client) release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.held = false
	backlog := c.backlog
	c.backlog = nil
	if c.closed {
		return ErrClientClosed
	}
	for _, data := range backlog {
		if err := c.push(data); err != nil {
			return err
		}
	}
	return nil
}

// push requires c.mu.
func (c *Client) push(data []byte) error {
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSlowClient
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.hub.Remove(c)
			// Drain so close() never races a blocked sender.
			for range c.send {
			}
			return
		}
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Hub owns the set of live clients and fans messages out to them.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	sendBuffer int
}

func NewHub(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		sendBuffer: sendBuffer,
	}
}

// Add admits conn unconditionally and starts its writer. When welcome is
// non-nil it runs before any broadcast reaches the client: broadcasts made
// meanwhile are held and queued right after whatever welcome sent.
func (h *Hub) Add(conn *websocket.Conn, welcome func(*Client)) *Client {
	c := &Client{
		id:   uuid.NewString(),
		conn: conn,
		hub:  h,
		send: make(chan []byte, h.sendBuffer),
		held: welcome != nil,
	}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go c.writePump()

	if welcome != nil {
		welcome(c)
		if err := c.release(); err != nil {
			if errors.Is(err, ErrSlowClient) {
				log.Printf("ws client %s too slow, disconnecting", c.id)
			}
			h.Remove(c)
		}
	}
	return c
}

// Remove drops c from the set and closes its queue. Safe to call more than
// once.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()

	c.close()
}

// Broadcast sends msg to every client present at the time of the call.
// A client that cannot keep up is disconnected rather than allowed to delay
// the others.
func (h *Hub) Broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}

	for _, c := range h.snapshot() {
		switch err := c.deliver(data); {
		case errors.Is(err, ErrSlowClient):
			log.Printf("ws client %s too slow, disconnecting", c.id)
			h.Remove(c)
		case err != nil:
			h.Remove(c)
		}
	}
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client, e.g. on shutdown.
func (h *Hub) CloseAll() {
	for _, c := range h.snapshot() {
		h.Remove(c)
	}
}
