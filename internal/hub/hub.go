// Package hub is the registry of live editing rooms, keyed by session id.
// It runs as a single goroutine owning the room map; all access goes through
// its inbox.
package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/prajakta250421/ScribeChain/internal/room"
)

type HubMsg interface{ isHubMsg() }

// EnsureRoom returns the session's room, creating it on first join.
type EnsureRoom struct {
	SessionID string
	Reply     chan *room.Room
}

// GetRoom returns the session's room or nil.
type GetRoom struct {
	SessionID string
	Reply     chan *room.Room
}

type RemoveRoom struct {
	SessionID string
}

type ShutdownHub struct{}

func (EnsureRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*room.Room
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room.Room),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureRoom:
				rm := h.rooms[msg.SessionID]
				if rm == nil {
					rm = room.New(h.ctx, msg.SessionID, h.log)
					h.rooms[msg.SessionID] = rm
					h.log.Info("room created", zap.String("session", msg.SessionID))
				}
				msg.Reply <- rm

			case GetRoom:
				msg.Reply <- h.rooms[msg.SessionID] // may be nil

			case RemoveRoom:
				if rm := h.rooms[msg.SessionID]; rm != nil {
					rm.Inbox() <- room.Shutdown{}
					delete(h.rooms, msg.SessionID)
				}

			case ShutdownHub:
				for _, rm := range h.rooms {
					rm.Inbox() <- room.Shutdown{}
				}
				clear(h.rooms)
				h.cancel()
			}
		}
	}
}
