package ws

import (
	"encoding/json"
	"errors"
	"fmt"
)

type MessageType string

const (
	// server → client
	MsgOutput   MessageType = "output"
	MsgStatus   MessageType = "status"
	MsgSessions MessageType = "sessions"
	MsgPong     MessageType = "pong"

	// client → server
	MsgInput   MessageType = "input"
	MsgCommand MessageType = "command"
	MsgPing    MessageType = "ping"
)

// Command actions accepted in a command message.
const (
	ActionList    = "list"
	ActionAttach  = "attach"
	ActionDetach  = "detach"
	ActionCreate  = "create"
	ActionKill    = "kill"
	ActionRefresh = "refresh"
	ActionPing    = "ping"
)

var ErrMalformedMessage = errors.New("malformed message")

type OutputMessage struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
}

// StatusMessage reports the attachment. Connected is true while a session
// is attached; Session is null otherwise. Error is only set on replies to
// the client whose request failed.
type StatusMessage struct {
	Type      MessageType `json:"type"`
	Connected bool        `json:"connected"`
	Session   *string     `json:"session"`
	IsBusy    bool        `json:"is_busy"`
	Error     string      `json:"error,omitempty"`
}

type SessionsMessage struct {
	Type     MessageType `json:"type"`
	Sessions []string    `json:"sessions"`
	Active   *string     `json:"active"`
}

type PongMessage struct {
	Type MessageType `json:"type"`
}

func NewOutput(content string) OutputMessage {
	return OutputMessage{Type: MsgOutput, Content: content}
}

// NewStatus builds a status for session; an empty name means no session is
// attached.
func NewStatus(session string, busy bool) StatusMessage {
	return StatusMessage{
		Type:      MsgStatus,
		Connected: session != "",
		Session:   optional(session),
		IsBusy:    busy && session != "",
	}
}

func NewSessions(sessions []string, active string) SessionsMessage {
	if sessions == nil {
		sessions = []string{}
	}
	return SessionsMessage{Type: MsgSessions, Sessions: sessions, Active: optional(active)}
}

func NewPong() PongMessage {
	return PongMessage{Type: MsgPong}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ClientMessage is any message a client may send. Fields that do not apply
// to Type are zero.
type ClientMessage struct {
	Type MessageType `json:"type"`

	// input
	Content string  `json:"content"`
	Key     *string `json:"key,omitempty"`

	// command
	Action  string  `json:"action,omitempty"`
	Session *string `json:"session,omitempty"`
	Command *string `json:"command,omitempty"`
}

// KeyName returns the named key of an input message, or "" when none.
func (m ClientMessage) KeyName() string {
	if m.Key == nil {
		return ""
	}
	return *m.Key
}

// SessionName returns the session argument of a command, or "" when none.
func (m ClientMessage) SessionName() string {
	if m.Session == nil {
		return ""
	}
	return *m.Session
}

// CommandLine returns the command argument of a create, or "" when none.
func (m ClientMessage) CommandLine() string {
	if m.Command == nil {
		return ""
	}
	return *m.Command
}

// DecodeClientMessage parses one inbound frame. Every failure wraps
// ErrMalformedMessage.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch msg.Type {
	case MsgInput, MsgPing:
	case MsgCommand:
		if !knownAction(msg.Action) {
			return ClientMessage{}, fmt.Errorf("%w: unknown action %q", ErrMalformedMessage, msg.Action)
		}
	case "":
		return ClientMessage{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	default:
		return ClientMessage{}, fmt.Errorf("%w: unknown message type %q", ErrMalformedMessage, msg.Type)
	}
	return msg, nil
}

func knownAction(action string) bool {
	switch action {
	case ActionList, ActionAttach, ActionDetach, ActionCreate, ActionKill, ActionRefresh, ActionPing:
		return true
	}
	return false
}
