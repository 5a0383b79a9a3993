package tmux

import (
	"errors"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"testing"
)

// fakeRunner records invocations and answers from a table keyed by the
// tmux subcommand.
type fakeRunner struct {
	calls   [][]string
	replies map[string]reply
}

type reply struct {
	stdout string
	stderr string
	err    error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{replies: make(map[string]reply)}
}

func (f *fakeRunner) Run(args ...string) (string, string, error) {
	f.calls = append(f.calls, args)
	sub := subcommand(args)
	r := f.replies[sub]
	return r.stdout, r.stderr, r.err
}

// subcommand skips the global flags prepended by Tmux.run.
func subcommand(args []string) string {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-u":
			continue
		case "-L":
			i++
			continue
		}
		return args[i]
	}
	return ""
}

func (f *fakeRunner) lastCall() []string {
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

var errExit = errors.New("exit status 1")

func TestList(t *testing.T) {
	r := newFakeRunner()
	r.replies["list-sessions"] = reply{stdout: "zeta\nalpha\n\nmain\n"}
	tm := New(r)

	got, err := tm.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	want := []string{"zeta", "alpha", "main"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v (tmux order, not sorted)", got, want)
	}
	wantArgs := []string{"-u", "list-sessions", "-F", "#{session_name}"}
	if !reflect.DeepEqual(r.lastCall(), wantArgs) {
		t.Errorf("args = %v, want %v", r.lastCall(), wantArgs)
	}
}

func TestListNoServer(t *testing.T) {
	r := newFakeRunner()
	r.replies["list-sessions"] = reply{stderr: "no server running on /tmp/tmux-1000/default", err: errExit}
	tm := New(r)

	got, err := tm.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("List() = %#v, want empty non-nil slice", got)
	}
}

func TestListOtherError(t *testing.T) {
	r := newFakeRunner()
	r.replies["list-sessions"] = reply{stderr: "permission denied", err: errExit}
	if _, err := New(r).List(); err == nil {
		t.Fatal("List() should surface unexpected tmux errors")
	}
}

func TestSocketFlag(t *testing.T) {
	r := newFakeRunner()
	tm := New(r, WithSocket("relay"))
	if _, err := tm.List(); err != nil {
		t.Fatal(err)
	}
	wantPrefix := []string{"-u", "-L", "relay", "list-sessions"}
	if got := r.lastCall()[:4]; !reflect.DeepEqual(got, wantPrefix) {
		t.Errorf("args prefix = %v, want %v", got, wantPrefix)
	}
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name     string
		session  string
		command  string
		wantArgs []string
	}{
		{"default shell", "work", "", []string{"-u", "new-session", "-d", "-s", "work"}},
		{"with command", "logs", "tail -f /var/log/syslog", []string{"-u", "new-session", "-d", "-s", "logs", "tail -f /var/log/syslog"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeRunner()
			if err := New(r).Create(tt.session, tt.command); err != nil {
				t.Fatalf("Create() error: %v", err)
			}
			if !reflect.DeepEqual(r.lastCall(), tt.wantArgs) {
				t.Errorf("args = %v, want %v", r.lastCall(), tt.wantArgs)
			}
		})
	}
}

func TestCreateDuplicate(t *testing.T) {
	r := newFakeRunner()
	r.replies["new-session"] = reply{stderr: "duplicate session: work", err: errExit}

	err := New(r).Create("work", "")
	var se *SessionError
	if !errors.As(err, &se) {
		t.Fatalf("Create() error = %v, want *SessionError", err)
	}
	if se.Op != "create" || se.Session != "work" {
		t.Errorf("SessionError = %+v", se)
	}
	if !errors.Is(err, ErrSessionExists) {
		t.Errorf("Create() error should wrap ErrSessionExists, got %v", err)
	}
}

func TestCreateInvalidName(t *testing.T) {
	for _, name := range []string{"", "a.b", "a:b"} {
		r := newFakeRunner()
		err := New(r).Create(name, "")
		var se *SessionError
		if !errors.As(err, &se) {
			t.Errorf("Create(%q) error = %v, want *SessionError", name, err)
		}
		if len(r.calls) != 0 {
			t.Errorf("Create(%q) should not invoke tmux", name)
		}
	}
}

func TestKill(t *testing.T) {
	r := newFakeRunner()
	if err := New(r).Kill("work"); err != nil {
		t.Fatalf("Kill() error: %v", err)
	}
	want := []string{"-u", "kill-session", "-t", "=work"}
	if !reflect.DeepEqual(r.lastCall(), want) {
		t.Errorf("args = %v, want %v", r.lastCall(), want)
	}
}

func TestKillMissing(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
	}{
		{"session missing", "can't find session: work"},
		{"server missing", "no server running on /tmp/tmux-1000/default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeRunner()
			r.replies["kill-session"] = reply{stderr: tt.stderr, err: errExit}
			err := New(r).Kill("work")
			var se *SessionError
			if !errors.As(err, &se) {
				t.Fatalf("Kill() error = %v, want *SessionError", err)
			}
			if !errors.Is(err, ErrSessionNotFound) {
				t.Errorf("Kill() error should wrap ErrSessionNotFound, got %v", err)
			}
		})
	}
}

func TestCapture(t *testing.T) {
	r := newFakeRunner()
	r.replies["capture-pane"] = reply{stdout: "$ ls\nREADME.md\n"}
	tm := New(r, WithHistoryLines(50))

	got, err := tm.Capture("work")
	if err != nil {
		t.Fatalf("Capture() error: %v", err)
	}
	if got != "$ ls\nREADME.md\n" {
		t.Errorf("Capture() = %q", got)
	}
	want := []string{"-u", "capture-pane", "-p", "-t", "=work:", "-S", "-50"}
	if !reflect.DeepEqual(r.lastCall(), want) {
		t.Errorf("args = %v, want %v", r.lastCall(), want)
	}
}

func TestCaptureNoHistory(t *testing.T) {
	r := newFakeRunner()
	if _, err := New(r, WithHistoryLines(0)).Capture("work"); err != nil {
		t.Fatal(err)
	}
	want := []string{"-u", "capture-pane", "-p", "-t", "=work:"}
	if !reflect.DeepEqual(r.lastCall(), want) {
		t.Errorf("args = %v, want %v", r.lastCall(), want)
	}
}

func TestCaptureGone(t *testing.T) {
	tests := []struct {
		name     string
		stderr   string
		wantGone bool
	}{
		{"session missing", "can't find session: work", true},
		{"pane missing", "can't find pane: work", true},
		{"no server", "no server running on /tmp/tmux-1000/default", true},
		{"other failure", "something odd", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeRunner()
			r.replies["capture-pane"] = reply{stderr: tt.stderr, err: errExit}
			_, err := New(r).Capture("work")
			if err == nil {
				t.Fatal("Capture() should fail")
			}
			if got := errors.Is(err, ErrSessionGone); got != tt.wantGone {
				t.Errorf("errors.Is(err, ErrSessionGone) = %v, want %v (err=%v)", got, tt.wantGone, err)
			}
		})
	}
}

func TestSendKeys(t *testing.T) {
	tests := []struct {
		name     string
		keys     string
		literal  bool
		wantArgs []string
	}{
		{"literal text", "ls -la", true, []string{"-u", "send-keys", "-t", "=work:", "-l", "--", "ls -la"}},
		{"named key", "C-c", false, []string{"-u", "send-keys", "-t", "=work:", "--", "C-c"}},
		{"leading dash literal", "-R", true, []string{"-u", "send-keys", "-t", "=work:", "-l", "--", "-R"}},
		{"flag-like literal", "-xyz", true, []string{"-u", "send-keys", "-t", "=work:", "-l", "--", "-xyz"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeRunner()
			if err := New(r).SendKeys("work", tt.keys, tt.literal); err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(r.lastCall(), tt.wantArgs) {
				t.Errorf("args = %v, want %v", r.lastCall(), tt.wantArgs)
			}
		})
	}
}

// Per-session commands must not let tmux prefix-match "work" to "workbench".
func TestSessionTargetsAreExact(t *testing.T) {
	tests := []struct {
		name string
		call func(*Tmux) error
		cmd  string
	}{
		{"capture", func(tm *Tmux) error { _, err := tm.Capture("work"); return err }, "capture-pane"},
		{"send keys", func(tm *Tmux) error { return tm.SendKeys("work", "x", true) }, "send-keys"},
		{"pane process", func(tm *Tmux) error { _, err := tm.PaneProcess("work"); return err }, "display-message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeRunner()
			r.replies["display-message"] = reply{stdout: strconv.Itoa(os.Getpid()) + "\n"}
			if err := tt.call(New(r)); err != nil {
				t.Fatal(err)
			}
			args := r.lastCall()
			if !slices.Contains(args, tt.cmd) {
				t.Fatalf("args = %v, want a %s call", args, tt.cmd)
			}
			i := slices.Index(args, "-t")
			if i < 0 || i+1 >= len(args) || args[i+1] != "=work:" {
				t.Errorf("args = %v, want target =work:", args)
			}
		})
	}
}

func TestSendKeysGone(t *testing.T) {
	r := newFakeRunner()
	r.replies["send-keys"] = reply{stderr: "can't find session: work", err: errExit}
	if err := New(r).SendKeys("work", "C-c", false); !errors.Is(err, ErrSessionGone) {
		t.Errorf("SendKeys() error = %v, want ErrSessionGone", err)
	}
}

func TestHasSession(t *testing.T) {
	tests := []struct {
		name    string
		reply   reply
		want    bool
		wantErr bool
	}{
		{"exists", reply{}, true, false},
		{"missing", reply{stderr: "can't find session: work", err: errExit}, false, false},
		{"no server", reply{stderr: "no server running", err: errExit}, false, false},
		{"broken", reply{stderr: "boom", err: errExit}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeRunner()
			r.replies["has-session"] = tt.reply
			got, err := New(r).HasSession("work")
			if (err != nil) != tt.wantErr {
				t.Fatalf("HasSession() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("HasSession() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVersion(t *testing.T) {
	r := newFakeRunner()
	r.replies["-V"] = reply{stdout: "tmux 3.4\n"}
	got, err := New(r).Version()
	if err != nil {
		t.Fatal(err)
	}
	if got != "tmux 3.4" {
		t.Errorf("Version() = %q, want %q", got, "tmux 3.4")
	}
}

func TestWrapErrorFallback(t *testing.T) {
	err := wrapError(errExit, "", []string{"capture-pane"})
	if !errors.Is(err, errExit) {
		t.Errorf("wrapError without stderr should wrap the exec error, got %v", err)
	}
	err = wrapError(errExit, "  weird failure \n", []string{"capture-pane"})
	if !strings.Contains(err.Error(), "weird failure") {
		t.Errorf("wrapError should include stderr, got %v", err)
	}
}

func TestPaneProcessCurrentProcess(t *testing.T) {
	r := newFakeRunner()
	r.replies["display-message"] = reply{stdout: strconv.Itoa(os.Getpid()) + "\n"}

	info, err := New(r).PaneProcess("work")
	if err != nil {
		t.Fatalf("PaneProcess() error: %v", err)
	}
	if info.PanePID != os.Getpid() {
		t.Errorf("PanePID = %d, want %d", info.PanePID, os.Getpid())
	}
	if info.Session != "work" {
		t.Errorf("Session = %q, want work", info.Session)
	}
}

func TestPaneProcessArgs(t *testing.T) {
	r := newFakeRunner()
	r.replies["display-message"] = reply{stdout: strconv.Itoa(os.Getpid()) + "\n"}
	if _, err := New(r).PaneProcess("work"); err != nil {
		t.Fatal(err)
	}
	want := []string{"-u", "display-message", "-p", "-t", "=work:", "#{pane_pid}"}
	if !reflect.DeepEqual(r.lastCall(), want) {
		t.Errorf("args = %v, want %v", r.lastCall(), want)
	}
}

func TestPaneProcessBadPID(t *testing.T) {
	r := newFakeRunner()
	r.replies["display-message"] = reply{stdout: "not-a-pid\n"}
	if _, err := New(r).PaneProcess("work"); err == nil {
		t.Fatal("PaneProcess() should fail on unparseable pid")
	}
}
