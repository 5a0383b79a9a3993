package relay

import (
	"errors"
	"time"
)

var ErrNotAttached = errors.New("no session attached")

// Router forwards client keystrokes to the attached session.
type Router struct {
	att        *Attachment
	keys       KeySender
	enterDelay time.Duration
	sleep      func(time.Duration)
}

// Route sends one input event. A named key is sent raw (C-c, Escape, Up);
// otherwise text is sent literally and followed by Enter. It returns the
// session and epoch the input was routed to so callers can react to the
// session vanishing.
func (r *Router) Route(text, key string) (string, uint64, error) {
	session, epoch := r.att.Current()
	if session == "" {
		return "", epoch, ErrNotAttached
	}

	if key != "" {
		return session, epoch, r.keys.SendKeys(session, key, false)
	}

	if err := r.keys.SendKeys(session, text, true); err != nil {
		return session, epoch, err
	}
	// Enter must be its own send-keys call: under -l it would be typed
	// as the word "Enter".
	if r.enterDelay > 0 {
		r.sleep(r.enterDelay)
	}
	return session, epoch, r.keys.SendKeys(session, "Enter", false)
}
