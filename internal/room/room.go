// Package room hosts one editing session on the server: it assigns
// identities to joining clients, relays content frames between them and
// broadcasts presence changes. Rooms hold no document state; the document
// lives in the clients' surfaces and, once saved, in the content store.
package room

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/prajakta250421/ScribeChain/internal/protocol"
)

// Colors cycled through as participants join.
var palette = []string{
	"#e74c3c", "#3498db", "#2ecc71", "#f39c12",
	"#9b59b6", "#1abc9c", "#e67e22", "#34495e",
}

type Msg interface{ isRoomMsg() }

// Join registers a client. The room assigns the identity and replies with
// it; the joiner immediately receives a user-data frame plus one user-added
// frame per participant already present.
type Join struct {
	Address string // wallet address from the verified credential
	Outbox  chan []byte
	Reply   chan protocol.Identity
}

func (Join) isRoomMsg() {}

type Leave struct{ UserID string }

func (Leave) isRoomMsg() {}

// Relay broadcasts a raw content frame to every participant, the sender
// included; clients suppress their own echo by user id.
type Relay struct {
	From string
	Raw  []byte
}

func (Relay) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

// GetState is test-only: reflect internal state without data races.
type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type View struct {
	NumMembers int
	Members    []protocol.Identity
}

type member struct {
	identity protocol.Identity
	outbox   chan []byte
}

type Room struct {
	id      string
	inbox   chan Msg
	members map[string]*member
	joined  int
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(parent context.Context, id string, log *zap.Logger) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		id:      id,
		inbox:   make(chan Msg, 64),
		members: make(map[string]*member),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.join(msg)

			case Leave:
				r.leave(msg.UserID)

			case Relay:
				r.broadcast(msg.Raw)

			case GetState:
				view := View{NumMembers: len(r.members)}
				for _, mb := range r.members {
					view.Members = append(view.Members, mb.identity)
				}
				msg.Reply <- view

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) join(msg Join) {
	id := protocol.Identity{
		UserID:    ulid.Make().String(),
		UserName:  displayName(msg.Address),
		UserColor: palette[r.joined%len(palette)],
	}
	r.joined++

	// The joiner learns who it is, then who was already here.
	r.deliver(msg.Outbox, protocol.TypeUserData, protocol.PresencePayload{UserData: id})
	for _, mb := range r.members {
		r.deliver(msg.Outbox, protocol.TypeUserAdded, protocol.PresencePayload{UserData: mb.identity})
	}

	r.announce(protocol.TypeUserAdded, id)
	r.members[id.UserID] = &member{identity: id, outbox: msg.Outbox}
	r.log.Info("user joined room",
		zap.String("room", r.id),
		zap.String("userId", id.UserID),
		zap.String("userName", id.UserName))

	msg.Reply <- id
}

func (r *Room) leave(userID string) {
	mb, ok := r.members[userID]
	if !ok {
		return
	}
	delete(r.members, userID)
	close(mb.outbox)
	r.announce(protocol.TypeUserRemoved, mb.identity)
	r.log.Info("user left room", zap.String("room", r.id), zap.String("userId", userID))
}

// broadcast sends raw to every member. Slow members are dropped and
// announced as removed.
func (r *Room) broadcast(raw []byte) {
	var dropped []protocol.Identity
	for uid, mb := range r.members {
		select {
		case mb.outbox <- raw:
		default:
			delete(r.members, uid)
			close(mb.outbox)
			r.log.Warn("dropping slow client", zap.String("room", r.id), zap.String("userId", uid))
			dropped = append(dropped, mb.identity)
		}
	}
	for _, id := range dropped {
		r.announce(protocol.TypeUserRemoved, id)
	}
}

// announce encodes a presence frame and broadcasts it.
func (r *Room) announce(typ string, id protocol.Identity) {
	raw, err := protocol.Encode(typ, protocol.PresencePayload{UserData: id})
	if err != nil {
		r.log.Error("encode presence frame", zap.Error(err))
		return
	}
	r.broadcast(raw)
}

// deliver encodes one frame for a single outbox.
func (r *Room) deliver(outbox chan []byte, typ string, data any) {
	raw, err := protocol.Encode(typ, data)
	if err != nil {
		r.log.Error("encode frame", zap.Error(err))
		return
	}
	select {
	case outbox <- raw:
	default:
	}
}

func (r *Room) shutdown() {
	for uid, mb := range r.members {
		close(mb.outbox)
		delete(r.members, uid)
	}
	r.cancel()
}

// displayName shortens a wallet address for the roster.
func displayName(address string) string {
	if len(address) > 10 {
		return fmt.Sprintf("%s…%s", address[:6], address[len(address)-4:])
	}
	if address == "" {
		return "anonymous"
	}
	return address
}
