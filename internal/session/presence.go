package session

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/prajakta250421/ScribeChain/internal/protocol"
)

// DefaultCursorTTL is how long a remote cursor survives without a fresh
// content frame from its owner.
const DefaultCursorTTL = 3 * time.Second

// RemoteCursor is the last known cursor of one remote participant.
type RemoteCursor struct {
	UserData protocol.Identity
	Position protocol.Position
	LastSeen time.Time
}

type cursorEntry struct {
	RemoteCursor
	gen   uint64
	timer *time.Timer
}

// Presence tracks the active remote users of a session and their transient
// cursors. The local user is never represented here. Cursor entries expire
// ttl after their last refresh; each refresh cancels and reschedules the
// expiry rather than stacking timers.
type Presence struct {
	mu      sync.Mutex
	log     *zap.Logger
	ttl     time.Duration
	stopped bool
	users   map[string]protocol.Identity
	cursors map[string]*cursorEntry
}

func NewPresence(ttl time.Duration, log *zap.Logger) *Presence {
	if ttl <= 0 {
		ttl = DefaultCursorTTL
	}
	return &Presence{
		log:     log,
		ttl:     ttl,
		users:   make(map[string]protocol.Identity),
		cursors: make(map[string]*cursorEntry),
	}
}

// OnJoin adds id to the active set. Adding the local user or an already
// known user is a no-op.
func (p *Presence) OnJoin(id protocol.Identity, localID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id.UserID == localID {
		return
	}
	if _, ok := p.users[id.UserID]; ok {
		return
	}
	p.users[id.UserID] = id
	p.log.Debug("user joined", zap.String("userId", id.UserID), zap.String("userName", id.UserName))
}

// OnLeave removes the user and any cursor it still had.
func (p *Presence) OnLeave(id protocol.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.users, id.UserID)
	if c, ok := p.cursors[id.UserID]; ok {
		c.timer.Stop()
		delete(p.cursors, id.UserID)
	}
	p.log.Debug("user left", zap.String("userId", id.UserID))
}

// OnCursor upserts the cursor carried by a content frame and rearms its
// expiry. Frames originating from the local user are ignored.
func (p *Presence) OnCursor(frame protocol.ContentPayload, localID string) {
	uid := frame.UserData.UserID
	if uid == localID {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}

	// A visible cursor implies roster membership, even when the frame beat
	// the user-added notification here.
	if _, ok := p.users[uid]; !ok {
		p.users[uid] = frame.UserData
	}

	c, ok := p.cursors[uid]
	if !ok {
		c = &cursorEntry{}
		p.cursors[uid] = c
	} else {
		c.timer.Stop()
	}
	c.gen++
	c.UserData = frame.UserData
	c.Position = frame.Position
	c.LastSeen = time.Now()

	gen := c.gen
	c.timer = time.AfterFunc(p.ttl, func() { p.expire(uid, gen) })
}

// expire removes the cursor unless a newer update rearmed it after this
// timer was scheduled.
func (p *Presence) expire(uid string, gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.cursors[uid]
	if !ok || c.gen != gen {
		return
	}
	delete(p.cursors, uid)
	p.log.Debug("cursor expired", zap.String("userId", uid))
}

// Users returns the current active user set.
func (p *Presence) Users() []protocol.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]protocol.Identity, 0, len(p.users))
	for _, u := range p.users {
		out = append(out, u)
	}
	return out
}

// Cursors returns the current remote cursors keyed by user id.
func (p *Presence) Cursors() map[string]RemoteCursor {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]RemoteCursor, len(p.cursors))
	for uid, c := range p.cursors {
		out[uid] = c.RemoteCursor
	}
	return out
}

// Stop cancels all pending expiry timers.
func (p *Presence) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	for uid, c := range p.cursors {
		c.timer.Stop()
		delete(p.cursors, uid)
	}
}
