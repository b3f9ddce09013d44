package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prajakta250421/ScribeChain/internal/auth"
	"github.com/prajakta250421/ScribeChain/internal/hub"
	"github.com/prajakta250421/ScribeChain/internal/protocol"
	"github.com/prajakta250421/ScribeChain/internal/session"
)

func newRelayServer(t *testing.T) (*httptest.Server, *auth.Signer) {
	t.Helper()
	log := zap.NewNop()
	signer := auth.NewSigner("relay-secret", time.Hour)
	h := hub.NewHub(context.Background(), log)

	r := chi.NewRouter()
	r.Get("/ws", Handler(h, signer, log))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, signer
}

type client struct {
	ctrl    *session.Controller
	surface *session.Buffer
}

func newClient(t *testing.T, srv *httptest.Server, signer *auth.Signer, address string) *client {
	t.Helper()
	wsBase := "ws" + strings.TrimPrefix(srv.URL, "http")
	log := zap.NewNop()

	surface := session.NewBuffer()
	ctrl := session.New(context.Background(), session.Config{
		Log:           log,
		SessionID:     "shared-doc",
		Surface:       surface,
		Transport:     session.NewConn(wsBase, log),
		ThrottleEvery: 30 * time.Millisecond,
		DebounceQuiet: 25 * time.Millisecond,
	})
	t.Cleanup(func() { ctrl.Inbox() <- session.Teardown{} })

	token, err := signer.Issue(address)
	require.NoError(t, err)
	require.NoError(t, ctrl.Connect(token))
	return &client{ctrl: ctrl, surface: surface}
}

func (c *client) state(t *testing.T) session.StateView {
	t.Helper()
	reply := make(chan session.StateView, 1)
	c.ctrl.Inbox() <- session.GetState{Reply: reply}
	select {
	case view := <-reply:
		return view
	case <-time.After(time.Second):
		return session.StateView{}
	}
}

func waitForIdentity(t *testing.T, c *client) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.state(t).Local.Assigned()
	}, 3*time.Second, 10*time.Millisecond, "server never assigned an identity")
}

func TestHandlerRejectsMissingParams(t *testing.T) {
	srv, _ := newRelayServer(t)

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/ws?session=s1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/ws?session=s1&token=bogus")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTwoClientsSeeEachOther(t *testing.T) {
	srv, signer := newRelayServer(t)

	alice := newClient(t, srv, signer, "wallet-alice-000000")
	waitForIdentity(t, alice)

	bob := newClient(t, srv, signer, "wallet-bob-11111111")
	waitForIdentity(t, bob)

	// Each roster lists exactly the other participant.
	require.Eventually(t, func() bool {
		a, b := alice.state(t), bob.state(t)
		return len(a.Users) == 1 && len(b.Users) == 1 &&
			a.Users[0].UserID == b.Local.UserID &&
			b.Users[0].UserID == a.Local.UserID
	}, 3*time.Second, 20*time.Millisecond)
}

func TestEditPropagatesToPeer(t *testing.T) {
	srv, signer := newRelayServer(t)

	alice := newClient(t, srv, signer, "wallet-alice-000000")
	waitForIdentity(t, alice)
	bob := newClient(t, srv, signer, "wallet-bob-11111111")
	waitForIdentity(t, bob)

	alice.surface.SetContent("hello from alice")
	alice.ctrl.Inbox() <- session.LocalEdit{
		Content:  "hello from alice",
		Position: protocol.Position{X: 16, Y: 1},
	}

	require.Eventually(t, func() bool {
		return bob.surface.Content() == "hello from alice"
	}, 3*time.Second, 20*time.Millisecond)

	// The sender's surface is untouched by its own relayed frame.
	assert.Equal(t, "hello from alice", alice.surface.Content())

	// Bob now tracks alice's cursor.
	require.Eventually(t, func() bool {
		view := bob.state(t)
		a := alice.state(t)
		cursor, ok := view.Cursors[a.Local.UserID]
		return ok && cursor.Position.X == 16
	}, 3*time.Second, 20*time.Millisecond)
}

func TestPeerLeaveUpdatesRoster(t *testing.T) {
	srv, signer := newRelayServer(t)

	alice := newClient(t, srv, signer, "wallet-alice-000000")
	waitForIdentity(t, alice)
	bob := newClient(t, srv, signer, "wallet-bob-11111111")
	waitForIdentity(t, bob)

	require.Eventually(t, func() bool {
		return len(alice.state(t).Users) == 1
	}, 3*time.Second, 20*time.Millisecond)

	bob.ctrl.Inbox() <- session.Teardown{}

	require.Eventually(t, func() bool {
		return len(alice.state(t).Users) == 0
	}, 3*time.Second, 20*time.Millisecond)
}
