package tmux

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// PaneProcess describes what is running in a session's active pane.
type PaneProcess struct {
	Session    string  `json:"session"`
	PanePID    int     `json:"panePid"`
	Command    string  `json:"command"`              // foreground process name
	CPUPercent float64 `json:"cpuPercent,omitempty"` // foreground process CPU
}

// PaneProcess resolves the pane shell PID via tmux and inspects the process
// tree with gopsutil. The foreground process is the most recently started
// child of the shell, or the shell itself when it has no children.
func (t *Tmux) PaneProcess(name string) (*PaneProcess, error) {
	out, err := t.run("display-message", "-p", "-t", paneTarget(name), "#{pane_pid}")
	if err != nil {
		return nil, goneIfMissing(err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return nil, fmt.Errorf("parsing pane pid %q: %w", strings.TrimSpace(out), err)
	}

	info := &PaneProcess{Session: name, PanePID: pid}

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return info, nil
	}
	fg := foreground(proc)
	if n, err := fg.Name(); err == nil {
		info.Command = n
	}
	if cpu, err := fg.CPUPercent(); err == nil {
		info.CPUPercent = cpu
	}
	return info, nil
}

func foreground(shell *process.Process) *process.Process {
	children, err := shell.Children()
	if err != nil || len(children) == 0 {
		return shell
	}
	newest := children[0]
	newestAt, _ := newest.CreateTime()
	for _, c := range children[1:] {
		at, err := c.CreateTime()
		if err == nil && at > newestAt {
			newest, newestAt = c, at
		}
	}
	return newest
}
