package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Status is the connection lifecycle state. Transitions are monotonic per
// attempt: Closed -> Connecting -> Open -> Closed, with Erroring reachable
// from Connecting or Open and always followed by Closed.
type Status int

const (
	StatusClosed Status = iota
	StatusConnecting
	StatusOpen
	StatusErroring
)

func (s Status) String() string {
	switch s {
	case StatusClosed:
		return "closed"
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusErroring:
		return "erroring"
	default:
		return "unknown"
	}
}

// ErrNotOpen is returned by Send when the connection is not Open. Callers on
// the edit path discard such sends; edits typed while disconnected survive
// only in the local surface.
var ErrNotOpen = errors.New("connection not open")

// ErrNoCredential is returned when Open is called without a bearer
// credential. A missing credential is a caller error, never attempted
// silently.
var ErrNoCredential = errors.New("credential required")

// EventKind tags connection events delivered to the controller.
type EventKind int

const (
	EventOpened EventKind = iota
	EventMessage
	EventClosed
	EventError
)

// Event is one connection lifecycle or message event.
type Event struct {
	Kind EventKind
	Data []byte
	Err  error
}

// Transport is the duplex channel a controller talks through. *Conn is the
// real implementation; tests substitute their own.
type Transport interface {
	Open(ctx context.Context, sessionID, credential string, events chan<- Event) error
	Send(data []byte) error
	Status() Status
	Close()
}

// Conn owns one persistent websocket for one editing session. It performs no
// automatic reconnection: after a drop the owner must call Open again.
type Conn struct {
	log     *zap.Logger
	baseURL string

	mu     sync.Mutex
	status Status
	sock   *websocket.Conn
}

// NewConn creates a connection for the server at baseURL, e.g.
// "ws://localhost:8080".
func NewConn(baseURL string, log *zap.Logger) *Conn {
	return &Conn{log: log, baseURL: baseURL, status: StatusClosed}
}

// Open dials the session endpoint with the session id and bearer credential
// embedded in the URL, then starts the read loop. Events, including every
// inbound raw payload, are delivered on the events channel until the
// connection closes.
func (c *Conn) Open(ctx context.Context, sessionID, credential string, events chan<- Event) error {
	if credential == "" {
		return ErrNoCredential
	}

	c.mu.Lock()
	if c.status != StatusClosed {
		status := c.status
		c.mu.Unlock()
		return fmt.Errorf("open: connection is %s", status)
	}
	c.status = StatusConnecting
	c.mu.Unlock()

	target, err := sessionURL(c.baseURL, sessionID, credential)
	if err != nil {
		c.fail(ctx, events, err)
		return err
	}

	sock, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		err = fmt.Errorf("dial session %s: %w", sessionID, err)
		c.fail(ctx, events, err)
		return err
	}
	sock.SetReadLimit(1 << 22)

	c.mu.Lock()
	c.sock = sock
	c.status = StatusOpen
	c.mu.Unlock()

	c.log.Info("session connection established", zap.String("session", sessionID))
	emit(ctx, events, Event{Kind: EventOpened})

	go c.readLoop(ctx, sock, events)
	return nil
}

func (c *Conn) readLoop(ctx context.Context, sock *websocket.Conn, events chan<- Event) {
	for {
		_, data, err := sock.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				c.toClosed()
				emit(ctx, events, Event{Kind: EventClosed})
			default:
				c.mu.Lock()
				wasClosed := c.status == StatusClosed
				c.mu.Unlock()
				if wasClosed {
					// Local Close raced the read; not an error.
					emit(ctx, events, Event{Kind: EventClosed})
					return
				}
				c.fail(ctx, events, fmt.Errorf("read: %w", err))
			}
			return
		}
		if !emit(ctx, events, Event{Kind: EventMessage, Data: data}) {
			return
		}
	}
}

// emit delivers ev unless the owner's context is already gone.
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Send transmits one encoded frame. There is no outbound queue: if the
// connection is not Open the frame is dropped and ErrNotOpen returned.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	sock := c.sock
	open := c.status == StatusOpen
	c.mu.Unlock()
	if !open || sock == nil {
		return ErrNotOpen
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := sock.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

func (c *Conn) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Close releases the transport. Safe to call on every teardown path,
// including when already closed.
func (c *Conn) Close() {
	c.mu.Lock()
	sock := c.sock
	c.sock = nil
	c.status = StatusClosed
	c.mu.Unlock()
	if sock != nil {
		_ = sock.Close(websocket.StatusNormalClosure, "bye")
	}
}

// fail marks the connection Erroring, emits the error, then settles Closed.
func (c *Conn) fail(ctx context.Context, events chan<- Event, err error) {
	c.mu.Lock()
	sock := c.sock
	c.sock = nil
	c.status = StatusErroring
	c.mu.Unlock()

	c.log.Warn("session connection failed", zap.Error(err))
	emit(ctx, events, Event{Kind: EventError, Err: err})

	if sock != nil {
		_ = sock.Close(websocket.StatusInternalError, "error")
	}
	c.toClosed()
	emit(ctx, events, Event{Kind: EventClosed})
}

func (c *Conn) toClosed() {
	c.mu.Lock()
	c.sock = nil
	c.status = StatusClosed
	c.mu.Unlock()
}

// sessionURL builds the websocket endpoint with session and token query
// parameters.
func sessionURL(base, sessionID, credential string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("session", sessionID)
	q.Set("token", credential)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
