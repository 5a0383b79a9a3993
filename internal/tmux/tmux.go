package tmux

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var (
	ErrNoServer        = errors.New("no tmux server running")
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionGone is returned by Capture and SendKeys when the target
	// session (or the whole server) has disappeared.
	ErrSessionGone = errors.New("session gone")
)

// SessionError reports a create or kill that tmux rejected.
type SessionError struct {
	Op      string
	Session string
	Err     error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Session, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// Runner executes a tmux invocation and returns its stdout. stderr is
// returned separately so callers can classify failures.
type Runner interface {
	Run(args ...string) (stdout string, stderr string, err error)
}

// ExecRunner runs the tmux binary with os/exec.
type ExecRunner struct {
	Binary string
}

func (r ExecRunner) Run(args ...string) (string, string, error) {
	binary := r.Binary
	if binary == "" {
		binary = "tmux"
	}
	cmd := exec.Command(binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Tmux is the session directory: every call is a synchronous tmux command,
// nothing is cached locally.
type Tmux struct {
	runner       Runner
	socket       string
	historyLines int
}

// Option configures a Tmux.
type Option func(*Tmux)

// WithSocket targets an isolated tmux server (-L socket).
func WithSocket(socket string) Option {
	return func(t *Tmux) { t.socket = socket }
}

// WithHistoryLines sets how many scrollback lines capture-pane includes
// above the visible screen.
func WithHistoryLines(n int) Option {
	return func(t *Tmux) { t.historyLines = n }
}

func New(runner Runner, opts ...Option) *Tmux {
	t := &Tmux{runner: runner, historyLines: 100}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// run executes a tmux command and returns stdout. -u forces UTF-8 output
// regardless of the server's locale.
func (t *Tmux) run(args ...string) (string, error) {
	allArgs := []string{"-u"}
	if t.socket != "" {
		allArgs = append(allArgs, "-L", t.socket)
	}
	allArgs = append(allArgs, args...)

	stdout, stderr, err := t.runner.Run(allArgs...)
	if err != nil {
		return "", wrapError(err, stderr, args)
	}
	return stdout, nil
}

// wrapError maps tmux's stderr onto the package sentinels.
func wrapError(err error, stderr string, args []string) error {
	stderr = strings.TrimSpace(stderr)

	if strings.Contains(stderr, "no server running") ||
		strings.Contains(stderr, "error connecting to") ||
		strings.Contains(stderr, "server exited unexpectedly") {
		return ErrNoServer
	}
	if strings.Contains(stderr, "duplicate session") {
		return ErrSessionExists
	}
	if strings.Contains(stderr, "session not found") ||
		strings.Contains(stderr, "can't find session") ||
		strings.Contains(stderr, "can't find pane") ||
		strings.Contains(stderr, "can't find window") {
		return ErrSessionNotFound
	}

	if stderr != "" {
		return fmt.Errorf("tmux %s: %s", args[0], stderr)
	}
	return fmt.Errorf("tmux %s: %w", args[0], err)
}

// Version returns the output of tmux -V, or an error if tmux cannot run.
func (t *Tmux) Version() (string, error) {
	out, err := t.run("-V")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// List returns session names in the order tmux reports them. A missing
// server simply means there are no sessions.
func (t *Tmux) List() ([]string, error) {
	out, err := t.run("list-sessions", "-F", "#{session_name}")
	if err != nil {
		if errors.Is(err, ErrNoServer) {
			return []string{}, nil
		}
		return nil, err
	}
	return parseSessionNames(out), nil
}

func parseSessionNames(output string) []string {
	names := []string{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	return names
}

// HasSession reports whether name exists. The "=" prefix forces an exact
// match instead of tmux's prefix matching.
func (t *Tmux) HasSession(name string) (bool, error) {
	if name == "" {
		return false, nil
	}
	_, err := t.run("has-session", "-t", "="+name)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrNoServer) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Create starts a detached session. An empty command runs tmux's default
// shell.
func (t *Tmux) Create(name, command string) error {
	if err := validateSessionName(name); err != nil {
		return &SessionError{Op: "create", Session: name, Err: err}
	}
	args := []string{"new-session", "-d", "-s", name}
	if command != "" {
		args = append(args, command)
	}
	if _, err := t.run(args...); err != nil {
		return &SessionError{Op: "create", Session: name, Err: err}
	}
	return nil
}

func (t *Tmux) Kill(name string) error {
	if name == "" {
		return &SessionError{Op: "kill", Session: name, Err: ErrSessionNotFound}
	}
	if _, err := t.run("kill-session", "-t", "="+name); err != nil {
		if errors.Is(err, ErrNoServer) {
			err = ErrSessionNotFound
		}
		return &SessionError{Op: "kill", Session: name, Err: err}
	}
	return nil
}

// Capture returns the raw pane content of the session's active pane,
// including historyLines of scrollback.
func (t *Tmux) Capture(name string) (string, error) {
	args := []string{"capture-pane", "-p", "-t", paneTarget(name)}
	if t.historyLines > 0 {
		args = append(args, "-S", "-"+strconv.Itoa(t.historyLines))
	}
	out, err := t.run(args...)
	if err != nil {
		return "", goneIfMissing(err)
	}
	return out, nil
}

// SendKeys delivers keys to the session. literal sends the text verbatim
// (send-keys -l); otherwise keys is interpreted as a key name like C-c.
func (t *Tmux) SendKeys(name, keys string, literal bool) error {
	args := []string{"send-keys", "-t", paneTarget(name)}
	if literal {
		args = append(args, "-l")
	}
	// "--" so text like "-R" is not taken for a flag.
	args = append(args, "--", keys)
	if _, err := t.run(args...); err != nil {
		return goneIfMissing(err)
	}
	return nil
}

// paneTarget addresses the active pane of exactly the named session. A bare
// name would let tmux fall back to a prefix match on another session.
func paneTarget(name string) string {
	return "=" + name + ":"
}

func goneIfMissing(err error) error {
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrNoServer) {
		return fmt.Errorf("%w: %v", ErrSessionGone, err)
	}
	return err
}

// validateSessionName rejects names tmux would mangle: '.' and ':' are
// target separators.
func validateSessionName(name string) error {
	if name == "" {
		return errors.New("empty session name")
	}
	if strings.ContainsAny(name, ".:") {
		return fmt.Errorf("invalid session name %q: must not contain '.' or ':'", name)
	}
	return nil
}
