package capture

import "time"

// Decision is the outcome of feeding one snapshot to the Debouncer.
type Decision struct {
	// Emit is set when Content should be broadcast.
	Emit    bool
	Content string
	// Forced marks an emission triggered by the max-silence window rather
	// than by the content settling.
	Forced bool
	// BusyChanged is set when Busy flipped on this observation.
	BusyChanged bool
	Busy        bool
}

// Debouncer decides when polled pane content has settled enough to
// broadcast. It is not safe for concurrent use; the owner serializes calls.
//
// Content that keeps changing is held back until it has been stable for the
// debounce window. A change observed when the last emission is at least the
// max-silence window old is emitted at once, so content that never settles
// still goes out every max-silence. Content equal to the last broadcast is
// never emitted again.
type Debouncer struct {
	debounce   time.Duration
	maxSilence time.Duration

	lastBroadcast string
	broadcasted   bool // false until the first emission after a reset

	pending     string
	hasPending  bool
	stableSince time.Time
	lastEmit    time.Time // zero until the first emission after a reset
	busy        bool
}

func NewDebouncer(debounce, maxSilence time.Duration) *Debouncer {
	return &Debouncer{debounce: debounce, maxSilence: maxSilence}
}

// Reset discards all pending and broadcast state, as on an attachment switch.
func (d *Debouncer) Reset() {
	*d = Debouncer{debounce: d.debounce, maxSilence: d.maxSilence}
}

// Prime records content as already broadcast and stable, e.g. the initial
// capture sent when a session is attached or refreshed.
func (d *Debouncer) Prime(content string, now time.Time) {
	d.lastBroadcast = content
	d.broadcasted = true
	d.pending = content
	d.hasPending = true
	d.stableSince = now
	d.lastEmit = now
	d.busy = false
}

func (d *Debouncer) Busy() bool { return d.busy }

// LastBroadcast returns the most recently emitted content and whether
// anything has been emitted since the last reset.
func (d *Debouncer) LastBroadcast() (string, bool) {
	return d.lastBroadcast, d.broadcasted
}

// Observe feeds one cleaned snapshot taken at now.
func (d *Debouncer) Observe(content string, now time.Time) Decision {
	if !d.hasPending || content != d.pending {
		return d.changed(content, now)
	}
	return d.unchanged(now)
}

func (d *Debouncer) changed(content string, now time.Time) Decision {
	d.pending = content
	d.hasPending = true
	d.stableSince = now

	dec := Decision{BusyChanged: !d.busy, Busy: true}
	d.busy = true

	if d.silentFor(now) && d.differsFromBroadcast(content) {
		d.emit(content, now)
		dec.Emit = true
		dec.Content = content
		dec.Forced = true
	}
	return dec
}

func (d *Debouncer) unchanged(now time.Time) Decision {
	if !d.busy || now.Sub(d.stableSince) < d.debounce {
		return Decision{Busy: d.busy}
	}

	d.busy = false
	dec := Decision{BusyChanged: true, Busy: false}
	if d.differsFromBroadcast(d.pending) {
		d.emit(d.pending, now)
		dec.Emit = true
		dec.Content = d.pending
	}
	return dec
}

func (d *Debouncer) differsFromBroadcast(content string) bool {
	return !d.broadcasted || content != d.lastBroadcast
}

// silentFor reports whether nothing has been emitted for the max-silence
// window.
func (d *Debouncer) silentFor(now time.Time) bool {
	return d.lastEmit.IsZero() || now.Sub(d.lastEmit) >= d.maxSilence
}

func (d *Debouncer) emit(content string, now time.Time) {
	d.lastBroadcast = content
	d.broadcasted = true
	d.lastEmit = now
}
