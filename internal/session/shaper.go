package session

import (
	"sync"
	"time"

	"github.com/prajakta250421/ScribeChain/internal/protocol"
)

// Default emission intervals for the outbound rate shaper.
const (
	DefaultThrottleEvery = 200 * time.Millisecond
	DefaultDebounceQuiet = 400 * time.Millisecond
)

// Policy is one outbound rate-limiting policy. Every local edit is submitted
// to all policies; each decides independently whether and when to emit. Both
// built-in policies forward the full content payload, so overlapping emits
// are harmless: receivers treat any content frame as a complete replacement.
type Policy interface {
	Submit(p protocol.ContentPayload)
	Stop()
}

// Throttle emits on the leading edge: a submit goes out immediately when at
// least the configured interval has passed since the last emit, and is
// dropped otherwise. Dropped payloads are superseded, never queued.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	send     func(protocol.ContentPayload)
	now      func() time.Time
}

func NewThrottle(interval time.Duration, send func(protocol.ContentPayload)) *Throttle {
	return &Throttle{interval: interval, send: send, now: time.Now}
}

func (t *Throttle) Submit(p protocol.ContentPayload) {
	t.mu.Lock()
	now := t.now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		t.mu.Unlock()
		return
	}
	t.last = now
	t.mu.Unlock()
	t.send(p)
}

func (t *Throttle) Stop() {}

// Debounce emits on the trailing edge: each submit replaces the pending
// payload and restarts the quiet-period timer, so only the last edit of a
// burst goes out, one quiet period after the burst ends. This is the
// final-state guarantee the throttle alone cannot give.
type Debounce struct {
	mu      sync.Mutex
	quiet   time.Duration
	pending protocol.ContentPayload
	timer   *time.Timer
	stopped bool
	send    func(protocol.ContentPayload)
}

func NewDebounce(quiet time.Duration, send func(protocol.ContentPayload)) *Debounce {
	return &Debounce{quiet: quiet, send: send}
}

func (d *Debounce) Submit(p protocol.ContentPayload) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = p
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, d.fire)
}

func (d *Debounce) fire() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	p := d.pending
	d.timer = nil
	d.mu.Unlock()
	d.send(p)
}

// Stop cancels any pending emit. Further submits are ignored.
func (d *Debounce) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
