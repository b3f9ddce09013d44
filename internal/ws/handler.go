package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/prajakta250421/ScribeChain/internal/hub"
	"github.com/prajakta250421/ScribeChain/internal/protocol"
	"github.com/prajakta250421/ScribeChain/internal/room"
)

// Verifier checks a bearer credential and returns the wallet address it was
// issued to.
type Verifier interface {
	Verify(token string) (string, error)
}

// Handler upgrades /ws?session=..&token=.. to a websocket and bridges it
// into the session's room. Joining a session creates its room.
func Handler(h *hub.Hub, verifier Verifier, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			http.Error(w, "missing session", http.StatusBadRequest)
			return
		}
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		address, err := verifier.Verify(token)
		if err != nil {
			log.Warn("rejected join", zap.String("session", sessionID), zap.Error(err))
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.EnsureRoom{SessionID: sessionID, Reply: reply}
		rm := <-reply

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		outbox := make(chan []byte, 16)
		idReply := make(chan protocol.Identity, 1)
		rm.Inbox() <- room.Join{Address: address, Outbox: outbox, Reply: idReply}
		identity := <-idReply
		defer func() { rm.Inbox() <- room.Leave{UserID: identity.UserID} }()

		// Writer goroutine: drains the room outbox. One frame per write so
		// clients never see concatenated payloads from this side.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for raw := range outbox {
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, raw)
				cancel()
			}
		}()

		// Reader loop: relay content frames, drop everything else. Presence
		// frames are server-minted only.
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			for _, res := range protocol.Decode(data) {
				if res.Err != nil {
					log.Warn("dropping undecodable client frame",
						zap.String("session", sessionID), zap.Error(res.Err))
					continue
				}
				if res.Frame.Type != protocol.TypeContent {
					log.Debug("ignoring client frame",
						zap.String("type", res.Frame.Type), zap.String("userId", identity.UserID))
					continue
				}
				raw, err := protocol.Encode(res.Frame.Type, res.Frame.Data)
				if err != nil {
					continue
				}
				rm.Inbox() <- room.Relay{From: identity.UserID, Raw: raw}
			}
		}
	}
}
