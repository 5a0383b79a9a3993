// Package client is the relay TUI's WebSocket connection to relay-server.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/qubitpulse/relay-server-rr/internal/ws"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pingInterval       = 30 * time.Second
)

var ErrNotConnected = errors.New("not connected")

// WSClient manages the WebSocket connection to the relay server.
type WSClient struct {
	url string

	mu      sync.Mutex
	writeMu sync.Mutex // serialises all conn writes
	conn    *websocket.Conn
	pingCtx context.CancelFunc
}

func NewWSClient(url string) *WSClient {
	return &WSClient{url: url}
}

// --- Bubble Tea messages ---

type ConnectedMsg struct{}

type DisconnectedMsg struct{ Err error }

type OutputMsg struct{ Content string }

type StatusMsg struct{ Status ws.StatusMessage }

type SessionsMsg struct{ Sessions ws.SessionsMessage }

type PongMsg struct{}

// Listen returns a command that dials the server, retrying with exponential
// backoff until it connects or ctx is cancelled.
func (c *WSClient) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		delay := reconnectBaseDelay
		for {
			select {
			case <-ctx.Done():
				return nil
			default:
			}

			conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
			if err != nil {
				log.Printf("ws dial error: %v (retry in %v)", err, delay)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(delay):
				}
				delay = min(delay*2, reconnectMaxDelay)
				continue
			}

			c.mu.Lock()
			if c.pingCtx != nil {
				c.pingCtx()
			}
			pingCtx, pingCancel := context.WithCancel(ctx)
			c.conn = conn
			c.pingCtx = pingCancel
			c.mu.Unlock()

			go c.pingLoop(pingCtx, conn)

			return ConnectedMsg{}
		}
	}
}

// ReadLoop returns a command that reads until one frame maps to a Bubble Tea
// message. The model re-issues it after handling each message.
func (c *WSClient) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return DisconnectedMsg{Err: ErrNotConnected}
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				c.mu.Lock()
				if c.conn == conn {
					c.conn = nil
				}
				c.mu.Unlock()
				conn.Close()
				return DisconnectedMsg{Err: err}
			}

			if msg := Dispatch(data); msg != nil {
				return msg
			}
		}
	}
}

// Close drops the current connection, if any.
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pingCtx != nil {
		c.pingCtx()
		c.pingCtx = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// pingLoop sends periodic protocol pings so idle connections stay open
// through proxies.
func (c *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.writeJSON(conn, map[string]string{"type": string(ws.MsgPing)}); err != nil {
				return
			}
		}
	}
}

// SendInput types text into the attached session followed by Enter.
func (c *WSClient) SendInput(text string) error {
	return c.send(map[string]string{"type": string(ws.MsgInput), "content": text})
}

// SendKey sends a tmux key name such as C-c or Escape.
func (c *WSClient) SendKey(key string) error {
	return c.send(map[string]string{"type": string(ws.MsgInput), "content": "", "key": key})
}

// SendCommand sends a command action. session and command are omitted when
// empty.
func (c *WSClient) SendCommand(action, session, command string) error {
	msg := map[string]string{"type": string(ws.MsgCommand), "action": action}
	if session != "" {
		msg["session"] = session
	}
	if command != "" {
		msg["command"] = command
	}
	return c.send(msg)
}

func (c *WSClient) send(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return c.writeJSON(conn, v)
}

func (c *WSClient) writeJSON(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

// Dispatch maps one server frame to a Bubble Tea message. Unknown or
// undecodable frames map to nil.
func Dispatch(data []byte) tea.Msg {
	var head struct {
		Type ws.MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil
	}

	switch head.Type {
	case ws.MsgOutput:
		var m ws.OutputMessage
		if json.Unmarshal(data, &m) == nil {
			return OutputMsg{Content: m.Content}
		}
	case ws.MsgStatus:
		var m ws.StatusMessage
		if json.Unmarshal(data, &m) == nil {
			return StatusMsg{Status: m}
		}
	case ws.MsgSessions:
		var m ws.SessionsMessage
		if json.Unmarshal(data, &m) == nil {
			return SessionsMsg{Sessions: m}
		}
	case ws.MsgPong:
		return PongMsg{}
	}
	return nil
}
