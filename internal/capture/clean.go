package capture

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// boxDrawing lists the frame glyphs TUIs draw around panes.
const boxDrawing = "│┃┌┐└┘├┤┬┴┼═║╔╗╚╝╠╣╦╩╬─━╭╮╯╰"

// Clean turns raw pane output into a snapshot: escape sequences are removed,
// remaining C0 controls other than newline and tab are dropped, and trailing
// newlines are trimmed. When stripBox is set, box-drawing glyphs are dropped
// too. Clean is pure.
func Clean(raw string, stripBox bool) string {
	s := ansi.Strip(raw)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			// \r, BEL and friends
		case stripBox && strings.ContainsRune(boxDrawing, r):
		default:
			b.WriteRune(r)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
