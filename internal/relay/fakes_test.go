package relay

import (
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/qubitpulse/relay-server-rr/internal/config"
	"github.com/qubitpulse/relay-server-rr/internal/tmux"
	"github.com/qubitpulse/relay-server-rr/internal/ws"
)

// fakeDir is an in-memory tmux server.
type fakeDir struct {
	mu         sync.Mutex
	sessions   []string
	panes      map[string]string
	captureErr map[string]error
	sent       []sentKeys
	captures   int

	// onCapture runs after a capture has been taken, outside the lock.
	onCapture func(name string)
}

type sentKeys struct {
	session string
	keys    string
	literal bool
}

func newFakeDir(sessions ...string) *fakeDir {
	d := &fakeDir{
		panes:      make(map[string]string),
		captureErr: make(map[string]error),
	}
	for _, s := range sessions {
		d.sessions = append(d.sessions, s)
		d.panes[s] = ""
	}
	return d
}

func (d *fakeDir) setPane(name, content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.panes[name] = content
}

func (d *fakeDir) setCaptureErr(name string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.captureErr, name)
		return
	}
	d.captureErr[name] = err
}

// vanish removes a session behind the relay's back.
func (d *fakeDir) vanish(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions = slices.DeleteFunc(d.sessions, func(s string) bool { return s == name })
	delete(d.panes, name)
}

func (d *fakeDir) sentKeys() []sentKeys {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.sent)
}

func (d *fakeDir) captureCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.captures
}

func (d *fakeDir) List() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.sessions), nil
}

func (d *fakeDir) HasSession(name string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Contains(d.sessions, name), nil
}

func (d *fakeDir) Create(name, command string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if slices.Contains(d.sessions, name) {
		return &tmux.SessionError{Op: "create", Session: name, Err: tmux.ErrSessionExists}
	}
	d.sessions = append(d.sessions, name)
	d.panes[name] = ""
	return nil
}

func (d *fakeDir) Kill(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !slices.Contains(d.sessions, name) {
		return &tmux.SessionError{Op: "kill", Session: name, Err: tmux.ErrSessionNotFound}
	}
	d.sessions = slices.DeleteFunc(d.sessions, func(s string) bool { return s == name })
	delete(d.panes, name)
	return nil
}

func (d *fakeDir) Capture(name string) (string, error) {
	d.mu.Lock()
	d.captures++
	hook := d.onCapture
	if err, ok := d.captureErr[name]; ok {
		d.mu.Unlock()
		return "", err
	}
	if !slices.Contains(d.sessions, name) {
		d.mu.Unlock()
		return "", fmt.Errorf("%w: can't find session: %s", tmux.ErrSessionGone, name)
	}
	content := d.panes[name]
	d.mu.Unlock()

	if hook != nil {
		hook(name)
	}
	return content, nil
}

func (d *fakeDir) SendKeys(name, keys string, literal bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !slices.Contains(d.sessions, name) {
		return fmt.Errorf("%w: can't find session: %s", tmux.ErrSessionGone, name)
	}
	d.sent = append(d.sent, sentKeys{session: name, keys: keys, literal: literal})
	return nil
}

// recorder collects broadcast or per-client messages.
type recorder struct {
	mu   sync.Mutex
	id   string
	msgs []any
}

func (r *recorder) Broadcast(msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Send(msg any) error {
	r.Broadcast(msg)
	return nil
}

// take returns and clears the recorded messages.
func (r *recorder) take() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.msgs
	r.msgs = nil
	return msgs
}

func outputs(msgs []any) []string {
	var out []string
	for _, m := range msgs {
		if o, ok := m.(ws.OutputMessage); ok {
			out = append(out, o.Content)
		}
	}
	return out
}

func statuses(msgs []any) []ws.StatusMessage {
	var out []ws.StatusMessage
	for _, m := range msgs {
		if s, ok := m.(ws.StatusMessage); ok {
			out = append(out, s)
		}
	}
	return out
}

func sessionLists(msgs []any) []ws.SessionsMessage {
	var out []ws.SessionsMessage
	for _, m := range msgs {
		if s, ok := m.(ws.SessionsMessage); ok {
			out = append(out, s)
		}
	}
	return out
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	c     *Coordinator
	dir   *fakeDir
	out   *recorder
	clock *fakeClock
}

func newHarness(t *testing.T, dir *fakeDir) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.Tmux.EnterDelay = 0
	out := &recorder{}
	c := NewCoordinator(cfg, dir, out)
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	c.now = clock.Now
	return &harness{c: c, dir: dir, out: out, clock: clock}
}

// tick advances the clock by one poll interval and runs one capture tick.
func (h *harness) tick() {
	h.clock.Advance(h.c.cfg.Capture.PollInterval)
	h.c.loop.tick()
}

func (h *harness) ticks(n int) {
	for i := 0; i < n; i++ {
		h.tick()
	}
}

func (h *harness) attach(t *testing.T, name string) {
	t.Helper()
	if err := h.c.Attach(name); err != nil {
		t.Fatalf("Attach(%q): %v", name, err)
	}
}
