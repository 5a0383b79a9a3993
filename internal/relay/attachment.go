package relay

import (
	"sync"
	"time"

	"github.com/qubitpulse/relay-server-rr/internal/capture"
	"github.com/qubitpulse/relay-server-rr/internal/ws"
)

// Attachment is the relay's only shared mutable state: which session is
// attached and the capture state for it. Every switch bumps epoch; work
// started under an older epoch is discarded when it comes back.
//
// Broadcasts that depend on this state are enqueued while mu is held, so a
// switch can never land between a capture decision and its broadcast.
type Attachment struct {
	mu      sync.Mutex
	session string // "" when idle
	epoch   uint64
	capture *capture.Debouncer
}

func NewAttachment(debounce, maxSilence time.Duration) *Attachment {
	return &Attachment{capture: capture.NewDebouncer(debounce, maxSilence)}
}

// Current returns the attached session ("" when idle) and its epoch.
func (a *Attachment) Current() (string, uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session, a.epoch
}

// Status returns the status message for the current state.
func (a *Attachment) Status() ws.StatusMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.statusLocked()
}

// statusLocked builds the status message. Caller must hold a.mu.
func (a *Attachment) statusLocked() ws.StatusMessage {
	return ws.NewStatus(a.session, a.capture.Busy())
}

// switchLocked attaches session (or detaches when empty) and resets the
// capture state. Caller must hold a.mu.
func (a *Attachment) switchLocked(session string) {
	a.session = session
	a.epoch++
	a.capture.Reset()
}

// observe applies a cleaned capture taken under epoch and broadcasts the
// outcome. It reports false, and does nothing, if the attachment moved on
// since the capture was taken.
func (a *Attachment) observe(epoch uint64, content string, now time.Time, out Broadcaster) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.epoch != epoch || a.session == "" {
		return false
	}

	dec := a.capture.Observe(content, now)
	if dec.Emit {
		out.Broadcast(ws.NewOutput(dec.Content))
	}
	if dec.BusyChanged {
		out.Broadcast(a.statusLocked())
	}
	return true
}
