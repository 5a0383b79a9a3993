package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/qubitpulse/relay-server-rr/internal/capture"
	"github.com/qubitpulse/relay-server-rr/internal/config"
	"github.com/qubitpulse/relay-server-rr/internal/tmux"
	"github.com/qubitpulse/relay-server-rr/internal/ws"
)

// Capturer fetches raw pane content.
type Capturer interface {
	Capture(name string) (string, error)
}

// KeySender delivers keystrokes to a session.
type KeySender interface {
	SendKeys(name, keys string, literal bool) error
}

// Directory is the subset of tmux the relay drives.
type Directory interface {
	Capturer
	KeySender
	List() ([]string, error)
	HasSession(name string) (bool, error)
	Create(name, command string) error
	Kill(name string) error
}

// PaneInspector is optionally implemented by a Directory to enrich
// session details with the pane's foreground process.
type PaneInspector interface {
	PaneProcess(name string) (*tmux.PaneProcess, error)
}

// Broadcaster fans a message out to every connected client.
type Broadcaster interface {
	Broadcast(msg any)
}

// Coordinator owns the attachment state machine (Idle / Attached) and
// serves client commands. It implements ws.Handler.
type Coordinator struct {
	cfg    *config.Config
	dir    Directory
	out    Broadcaster
	att    *Attachment
	loop   *Loop
	router *Router
	now    func() time.Time

	cmdMu sync.Mutex // serializes attach/detach/create/kill
}

func NewCoordinator(cfg *config.Config, dir Directory, out Broadcaster) *Coordinator {
	c := &Coordinator{
		cfg: cfg,
		dir: dir,
		out: out,
		att: NewAttachment(cfg.Capture.DebounceWindow, cfg.Capture.MaxSilence),
		now: time.Now,
	}
	c.router = &Router{
		att:        c.att,
		keys:       dir,
		enterDelay: cfg.Tmux.EnterDelay,
		sleep:      time.Sleep,
	}
	c.loop = &Loop{
		att:         c.att,
		dir:         dir,
		out:         out,
		interval:    cfg.Capture.PollInterval,
		stripBox:    cfg.Capture.StripBoxDrawing,
		maxFailures: cfg.Capture.MaxFailures,
		now:         func() time.Time { return c.now() },
		onGone:      c.vanished,
	}
	return c
}

// Run drives the capture loop until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	c.loop.Run(ctx)
}

// Status returns the current status message.
func (c *Coordinator) Status() ws.StatusMessage {
	return c.att.Status()
}

// Attached returns the attached session, or "" when idle.
func (c *Coordinator) Attached() string {
	session, _ := c.att.Current()
	return session
}

// Welcome implements ws.Handler.
func (c *Coordinator) Welcome(p ws.Peer) {
	p.Send(c.Status())

	sessions, err := c.dir.List()
	if err != nil {
		log.Printf("list sessions: %v", err)
	}
	p.Send(ws.NewSessions(sessions, c.Attached()))
}

// Reject implements ws.Handler.
func (c *Coordinator) Reject(p ws.Peer, err error) {
	log.Printf("client %s: %v", p.ID(), err)
	p.Send(c.errorStatus(err))
}

// Handle implements ws.Handler.
func (c *Coordinator) Handle(p ws.Peer, msg ws.ClientMessage) {
	switch msg.Type {
	case ws.MsgInput:
		c.handleInput(p, msg)
	case ws.MsgCommand:
		c.handleCommand(p, msg)
	}
}

func (c *Coordinator) handleInput(p ws.Peer, msg ws.ClientMessage) {
	session, epoch, err := c.router.Route(msg.Content, msg.KeyName())
	switch {
	case err == nil:
	case errors.Is(err, ErrNotAttached):
		p.Send(c.Status())
	case errors.Is(err, tmux.ErrSessionGone):
		log.Printf("input to %s failed, detaching: %v", session, err)
		c.vanished(session, epoch)
		p.Send(c.errorStatus(err))
	default:
		log.Printf("input to %s failed: %v", session, err)
		p.Send(c.errorStatus(err))
	}
}

func (c *Coordinator) handleCommand(p ws.Peer, msg ws.ClientMessage) {
	var err error
	switch msg.Action {
	case ws.ActionList:
		err = c.sendSessions(p)
	case ws.ActionAttach:
		err = c.Attach(msg.SessionName())
	case ws.ActionDetach:
		c.Detach()
	case ws.ActionCreate:
		err = c.Create(msg.SessionName(), msg.CommandLine())
	case ws.ActionKill:
		err = c.Kill(msg.SessionName())
	case ws.ActionRefresh:
		err = c.Refresh()
	default:
		err = fmt.Errorf("%w: unknown action %q", ws.ErrMalformedMessage, msg.Action)
	}
	if err != nil {
		log.Printf("command %s from %s failed: %v", msg.Action, p.ID(), err)
		p.Send(c.errorStatus(err))
	}
}

func (c *Coordinator) errorStatus(err error) ws.StatusMessage {
	st := c.Status()
	st.Error = err.Error()
	return st
}

// sendSessions answers a list command. If the attached session is no longer
// listed, the relay detaches first so the reply's active field is accurate.
func (c *Coordinator) sendSessions(p ws.Peer) error {
	sessions, err := c.dir.List()
	if err != nil {
		return err
	}
	if session, epoch := c.att.Current(); session != "" && !slices.Contains(sessions, session) {
		c.vanished(session, epoch)
	}
	return p.Send(ws.NewSessions(sessions, c.Attached()))
}

func (c *Coordinator) broadcastSessions() {
	sessions, err := c.dir.List()
	if err != nil {
		log.Printf("list sessions: %v", err)
		return
	}
	c.out.Broadcast(ws.NewSessions(sessions, c.Attached()))
}

// Attach switches to name. A missing session leaves the state unchanged.
func (c *Coordinator) Attach(name string) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	return c.attachLocked(name)
}

// attachLocked performs the switch. Caller must hold c.cmdMu.
func (c *Coordinator) attachLocked(name string) error {
	exists, err := c.dir.HasSession(name)
	if err != nil {
		return fmt.Errorf("attach %q: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("attach %q: %w", name, tmux.ErrSessionNotFound)
	}

	raw, capErr := c.dir.Capture(name)
	now := c.now()

	c.att.mu.Lock()
	c.att.switchLocked(name)
	c.out.Broadcast(c.att.statusLocked())
	if capErr == nil {
		content := capture.Clean(raw, c.cfg.Capture.StripBoxDrawing)
		c.att.capture.Prime(content, now)
		c.out.Broadcast(ws.NewOutput(content))
	}
	c.att.mu.Unlock()

	if capErr != nil {
		log.Printf("initial capture of %s failed: %v", name, capErr)
	}
	log.Printf("Attached to session: %s", name)
	c.broadcastSessions()
	return nil
}

// Detach returns to Idle.
func (c *Coordinator) Detach() {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	c.detachLocked()
}

// detachLocked returns to Idle. Caller must hold c.cmdMu.
func (c *Coordinator) detachLocked() {
	c.att.mu.Lock()
	prev := c.att.session
	c.att.switchLocked("")
	c.out.Broadcast(c.att.statusLocked())
	c.att.mu.Unlock()

	if prev != "" {
		log.Printf("Detached from session: %s", prev)
	}
	c.broadcastSessions()
}

// vanished handles a session disappearing underneath the relay. It is a
// no-op if the attachment has already moved past epoch.
func (c *Coordinator) vanished(session string, epoch uint64) {
	c.att.mu.Lock()
	if c.att.epoch != epoch || c.att.session != session || session == "" {
		c.att.mu.Unlock()
		return
	}
	c.att.switchLocked("")
	c.out.Broadcast(c.att.statusLocked())
	c.att.mu.Unlock()

	log.Printf("Session %s is gone, detached", session)
	c.broadcastSessions()
}

// Create starts a new session. Empty arguments fall back to the configured
// defaults.
func (c *Coordinator) Create(name, command string) error {
	if name == "" {
		name = c.cfg.Tmux.DefaultSession
	}
	if command == "" {
		command = c.cfg.Tmux.DefaultCommand
	}

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if err := c.dir.Create(name, command); err != nil {
		return err
	}
	log.Printf("Created session: %s", name)

	if c.cfg.Tmux.AttachOnCreate {
		// attachLocked broadcasts the session list itself.
		return c.attachLocked(name)
	}
	c.broadcastSessions()
	return nil
}

// Kill destroys a session. Killing the attached session detaches.
func (c *Coordinator) Kill(name string) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if err := c.dir.Kill(name); err != nil {
		return err
	}
	log.Printf("Killed session: %s", name)

	if session, epoch := c.att.Current(); session == name {
		// vanished broadcasts the session list itself.
		c.vanished(session, epoch)
		return nil
	}
	c.broadcastSessions()
	return nil
}

// Refresh captures the attached session now and broadcasts it to every
// client regardless of the debounce state.
func (c *Coordinator) Refresh() error {
	session, epoch := c.att.Current()
	if session == "" {
		return ErrNotAttached
	}

	raw, err := c.dir.Capture(session)
	if err != nil {
		if errors.Is(err, tmux.ErrSessionGone) {
			c.vanished(session, epoch)
		}
		return err
	}
	content := capture.Clean(raw, c.cfg.Capture.StripBoxDrawing)
	now := c.now()

	c.att.mu.Lock()
	defer c.att.mu.Unlock()
	if c.att.epoch != epoch {
		return nil
	}
	wasBusy := c.att.capture.Busy()
	c.att.capture.Prime(content, now)
	c.out.Broadcast(ws.NewOutput(content))
	if wasBusy {
		c.out.Broadcast(c.att.statusLocked())
	}
	return nil
}

// SessionDetails implements ws.SessionReporter.
func (c *Coordinator) SessionDetails() ([]ws.SessionDetail, error) {
	sessions, err := c.dir.List()
	if err != nil {
		return nil, err
	}
	active := c.Attached()
	inspector, _ := c.dir.(PaneInspector)

	details := make([]ws.SessionDetail, 0, len(sessions))
	for _, name := range sessions {
		d := ws.SessionDetail{Name: name, Active: name == active}
		if inspector != nil {
			if info, err := inspector.PaneProcess(name); err == nil {
				d.PanePID = info.PanePID
				d.Command = info.Command
				d.CPUPercent = info.CPUPercent
			}
		}
		details = append(details, d)
	}
	return details, nil
}
