package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/qubitpulse/relay-server-rr/internal/ws"
)

var ErrUnknownCommand = errors.New("unknown command")

// Command is a parsed ":" line from the input box.
type Command struct {
	Action  string // a ws.Action* value, or actionQuit
	Session string
	Command string
}

const actionQuit = "quit"

// ParseLine splits an input line into a command or literal text. Lines
// starting with ":" are commands; "::" escapes a literal leading colon.
func ParseLine(line string) (cmd *Command, text string, err error) {
	if !strings.HasPrefix(line, ":") {
		return nil, line, nil
	}
	if strings.HasPrefix(line, "::") {
		return nil, line[1:], nil
	}

	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return nil, "", fmt.Errorf("%w: empty", ErrUnknownCommand)
	}
	name, args := fields[0], fields[1:]

	switch name {
	case "new", "create":
		c := &Command{Action: ws.ActionCreate}
		if len(args) > 0 {
			c.Session = args[0]
		}
		if len(args) > 1 {
			c.Command = strings.Join(args[1:], " ")
		}
		return c, "", nil
	case "kill", "attach", "a":
		if len(args) != 1 {
			return nil, "", fmt.Errorf(":%s takes one session name", name)
		}
		action := ws.ActionKill
		if name != "kill" {
			action = ws.ActionAttach
		}
		return &Command{Action: action, Session: args[0]}, "", nil
	case "detach", "d":
		return &Command{Action: ws.ActionDetach}, "", nil
	case "refresh", "r":
		return &Command{Action: ws.ActionRefresh}, "", nil
	case "list", "ls":
		return &Command{Action: ws.ActionList}, "", nil
	case "quit", "q":
		return &Command{Action: actionQuit}, "", nil
	}
	return nil, "", fmt.Errorf("%w: :%s", ErrUnknownCommand, name)
}
