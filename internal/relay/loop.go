package relay

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/qubitpulse/relay-server-rr/internal/capture"
	"github.com/qubitpulse/relay-server-rr/internal/tmux"
)

// Loop polls the attached session's pane on a fixed cadence and feeds the
// cleaned content to the attachment's debouncer. It runs for the life of
// the process; while idle it does not poll.
type Loop struct {
	att         *Attachment
	dir         Capturer
	out         Broadcaster
	interval    time.Duration
	stripBox    bool
	maxFailures int
	now         func() time.Time

	// onGone is called when the session captured under epoch is gone.
	onGone func(session string, epoch uint64)

	failures    int
	failedEpoch uint64
}

func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	log.Printf("Capture loop started (interval %s)", l.interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("Capture loop stopped")
			return
		case <-ticker.C:
			l.tick()
		}
	}
}

func (l *Loop) tick() {
	session, epoch := l.att.Current()
	if session == "" {
		l.failures = 0
		return
	}
	if epoch != l.failedEpoch {
		l.failures = 0
		l.failedEpoch = epoch
	}

	raw, err := l.dir.Capture(session)
	if err != nil {
		l.failures++
		if errors.Is(err, tmux.ErrSessionGone) || l.failures >= l.maxFailures {
			log.Printf("Capture of %s failed, detaching: %v", session, err)
			l.failures = 0
			l.onGone(session, epoch)
			return
		}
		log.Printf("Capture of %s failed (%d/%d): %v", session, l.failures, l.maxFailures, err)
		return
	}
	l.failures = 0

	l.att.observe(epoch, capture.Clean(raw, l.stripBox), l.now(), l.out)
}
