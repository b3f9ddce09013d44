package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/prajakta250421/ScribeChain/internal/ledger"
	"github.com/prajakta250421/ScribeChain/internal/protocol"
	"github.com/prajakta250421/ScribeChain/internal/storage"
)

// Msg is a message for the controller's inbox.
type Msg interface{ isCtrlMsg() }

// LocalEdit is one local input event: the full surface state plus the cursor
// position at the time of the edit.
type LocalEdit struct {
	Content  string
	Position protocol.Position
}

func (LocalEdit) isCtrlMsg() {}

// Save persists the current surface content to the store and records it on
// the ledger. Reply receives nil or one human-readable error.
type Save struct{ Reply chan error }

func (Save) isCtrlMsg() {}

// Load fetches the session's current ledger content, if any, into the
// surface.
type Load struct{ Reply chan error }

func (Load) isCtrlMsg() {}

// GetState asks for a snapshot of the session state.
type GetState struct{ Reply chan StateView }

func (GetState) isCtrlMsg() {}

// Teardown closes the connection and stops the controller.
type Teardown struct{}

func (Teardown) isCtrlMsg() {}

type loadedContent struct {
	content string
	reply   chan error
}

func (loadedContent) isCtrlMsg() {}

// StateView reflects session state for tests and the presentation layer.
type StateView struct {
	Status  Status
	Local   protocol.Identity
	Users   []protocol.Identity
	Cursors map[string]RemoteCursor
}

// Config wires a controller's collaborators.
type Config struct {
	Log       *zap.Logger
	SessionID string
	Surface   Surface
	Transport Transport
	Store     storage.Store
	Ledger    ledger.Ledger

	// Zero values fall back to the protocol defaults.
	ThrottleEvery time.Duration
	DebounceQuiet time.Duration
	CursorTTL     time.Duration
}

// Controller owns the state of one editing session. It runs as a single
// goroutine: local edits, inbound frames and save/load requests all pass
// through its inbox, so SessionState never sees concurrent mutation. The
// connection, rate shaper and presence timers are owned exclusively by the
// controller and released by Teardown.
type Controller struct {
	log       *zap.Logger
	sessionID string

	inbox  chan Msg
	events chan Event
	ctx    context.Context
	cancel context.CancelFunc

	transport  Transport
	surface    Surface
	reconciler *Reconciler
	presence   *Presence
	throttle   *Throttle
	debounce   *Debounce
	store      storage.Store
	ledger     ledger.Ledger

	local protocol.Identity
}

// New builds a controller and starts its loop.
func New(parent context.Context, cfg Config) *Controller {
	ctx, cancel := context.WithCancel(parent)

	if cfg.ThrottleEvery <= 0 {
		cfg.ThrottleEvery = DefaultThrottleEvery
	}
	if cfg.DebounceQuiet <= 0 {
		cfg.DebounceQuiet = DefaultDebounceQuiet
	}

	c := &Controller{
		log:        cfg.Log,
		sessionID:  cfg.SessionID,
		inbox:      make(chan Msg, 64),
		events:     make(chan Event, 64),
		ctx:        ctx,
		cancel:     cancel,
		transport:  cfg.Transport,
		surface:    cfg.Surface,
		reconciler: NewReconciler(cfg.Surface, cfg.Log),
		presence:   NewPresence(cfg.CursorTTL, cfg.Log),
		store:      cfg.Store,
		ledger:     cfg.Ledger,
	}
	c.throttle = NewThrottle(cfg.ThrottleEvery, c.sendContent)
	c.debounce = NewDebounce(cfg.DebounceQuiet, c.sendContent)

	go c.loop()
	return c
}

// Inbox is where edits, save/load requests and teardown arrive.
func (c *Controller) Inbox() chan<- Msg { return c.inbox }

// Connect acquires nothing itself: the credential must already be in hand.
// It opens the session connection; a dropped connection is not redialed
// automatically, the owner decides whether to call Connect again. The
// connection lives on the controller's own context and dies with it.
func (c *Controller) Connect(credential string) error {
	return c.transport.Open(c.ctx, c.sessionID, credential, c.events)
}

func (c *Controller) loop() {
	for {
		select {
		case <-c.ctx.Done():
			c.teardown()
			return

		case ev := <-c.events:
			switch ev.Kind {
			case EventMessage:
				c.dispatch(ev.Data)
			case EventOpened:
				c.log.Info("session open", zap.String("session", c.sessionID))
			case EventError:
				c.log.Warn("session connection error", zap.Error(ev.Err))
			case EventClosed:
				c.log.Info("session connection closed", zap.String("session", c.sessionID))
			}

		case m := <-c.inbox:
			switch msg := m.(type) {
			case LocalEdit:
				p := protocol.ContentPayload{
					Content:  msg.Content,
					Position: msg.Position,
					UserData: c.local,
				}
				c.throttle.Submit(p)
				c.debounce.Submit(p)

			case Save:
				if c.surface == nil {
					msg.Reply <- errors.New("no surface attached")
					break
				}
				content := c.surface.Content()
				go c.save(content, msg.Reply)

			case Load:
				go c.load(msg.Reply)

			case loadedContent:
				if c.surface != nil {
					c.surface.SetContent(msg.content)
				}
				msg.reply <- nil

			case GetState:
				msg.Reply <- StateView{
					Status:  c.transport.Status(),
					Local:   c.local,
					Users:   c.presence.Users(),
					Cursors: c.presence.Cursors(),
				}

			case Teardown:
				c.teardown()
				return
			}
		}
	}
}

// dispatch decodes a raw inbound payload and routes each recovered frame.
// Undecodable frames are dropped and logged, never fatal.
func (c *Controller) dispatch(raw []byte) {
	for _, res := range protocol.Decode(raw) {
		if res.Err != nil {
			c.log.Warn("dropping undecodable frame", zap.Error(res.Err))
			continue
		}
		c.handleFrame(res.Frame)
	}
}

func (c *Controller) handleFrame(f protocol.Frame) {
	switch f.Type {
	case protocol.TypeContent:
		p, err := f.ContentData()
		if err != nil {
			c.log.Warn("bad content frame", zap.Error(err))
			return
		}
		// Echo suppression: never re-apply our own edits. Before the server
		// has assigned us an identity every frame is applied (bootstrap).
		if c.local.Assigned() && p.UserData.UserID == c.local.UserID {
			return
		}
		c.reconciler.Apply(p.Content)
		c.presence.OnCursor(p, c.local.UserID)

	case protocol.TypeUserData:
		p, err := f.PresenceData()
		if err != nil {
			c.log.Warn("bad user-data frame", zap.Error(err))
			return
		}
		// Later assignments overwrite, no merge.
		c.local = p.UserData
		c.log.Info("identity assigned",
			zap.String("userId", c.local.UserID),
			zap.String("userName", c.local.UserName))

	case protocol.TypeUserAdded:
		p, err := f.PresenceData()
		if err != nil {
			c.log.Warn("bad user-added frame", zap.Error(err))
			return
		}
		c.presence.OnJoin(p.UserData, c.local.UserID)

	case protocol.TypeUserRemoved:
		p, err := f.PresenceData()
		if err != nil {
			c.log.Warn("bad user-removed frame", zap.Error(err))
			return
		}
		c.presence.OnLeave(p.UserData)

	default:
		c.log.Debug("ignoring frame", zap.String("type", f.Type))
	}
}

// sendContent is the shared emit path of both rate-shaper policies. Sends
// while the connection is not open are discarded, not queued: such edits
// survive only in the local surface.
func (c *Controller) sendContent(p protocol.ContentPayload) {
	raw, err := protocol.Encode(protocol.TypeContent, p)
	if err != nil {
		c.log.Warn("encode content frame", zap.Error(err))
		return
	}
	if err := c.transport.Send(raw); err != nil {
		if errors.Is(err, ErrNotOpen) {
			c.log.Debug("dropping edit, connection not open")
			return
		}
		c.log.Warn("send content frame", zap.Error(err))
	}
}

// save uploads the content blob, then creates or updates the session's
// ledger record. There is no mutual exclusion between overlapping saves;
// the ledger's update is last-write-wins.
func (c *Controller) save(content string, reply chan error) {
	ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
	defer cancel()

	res, err := c.store.Store(ctx, content)
	if err != nil {
		reply <- fmt.Errorf("failed to store content: %w", err)
		return
	}

	rec, err := c.ledger.Get(ctx, c.sessionID)
	if err != nil {
		reply <- fmt.Errorf("failed to read ledger: %w", err)
		return
	}

	var result ledger.Result
	if rec == nil {
		result, err = c.ledger.Create(ctx, c.sessionID, res.ID)
	} else {
		result, err = c.ledger.Update(ctx, c.sessionID, res.ID)
	}
	if err != nil {
		reply <- fmt.Errorf("failed to record document: %w", err)
		return
	}

	c.log.Info("document saved",
		zap.String("session", c.sessionID),
		zap.String("contentId", res.ID),
		zap.String("txRef", result.TxRef))
	reply <- nil
}

// load resolves the session's ledger record, fetches the blob and hands it
// back to the loop for application. A session with no record loads as an
// empty document, not an error.
func (c *Controller) load(reply chan error) {
	ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
	defer cancel()

	rec, err := c.ledger.Get(ctx, c.sessionID)
	if err != nil {
		reply <- fmt.Errorf("failed to read ledger: %w", err)
		return
	}
	if rec == nil {
		reply <- nil
		return
	}

	content, err := c.store.Fetch(ctx, rec.ContentID)
	if err != nil {
		reply <- fmt.Errorf("failed to fetch content: %w", err)
		return
	}

	select {
	case c.inbox <- loadedContent{content: content, reply: reply}:
	case <-c.ctx.Done():
		reply <- c.ctx.Err()
	}
}

func (c *Controller) teardown() {
	c.throttle.Stop()
	c.debounce.Stop()
	c.presence.Stop()
	c.transport.Close()
	c.cancel()
}
