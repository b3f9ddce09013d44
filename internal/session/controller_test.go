package session

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prajakta250421/ScribeChain/internal/ledger"
	"github.com/prajakta250421/ScribeChain/internal/protocol"
	"github.com/prajakta250421/ScribeChain/internal/storage"
)

type fakeTransport struct {
	mu     sync.Mutex
	status Status
	sent   [][]byte
	events chan<- Event
}

func (f *fakeTransport) Open(_ context.Context, _, credential string, events chan<- Event) error {
	if credential == "" {
		return ErrNoCredential
	}
	f.mu.Lock()
	f.status = StatusOpen
	f.events = events
	f.mu.Unlock()
	events <- Event{Kind: EventOpened}
	return nil
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != StatusOpen {
		return ErrNotOpen
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeTransport) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = StatusClosed
}

// inject delivers a raw payload as if it arrived on the wire.
func (f *fakeTransport) inject(t *testing.T, typ string, data any) {
	t.Helper()
	raw, err := protocol.Encode(typ, data)
	require.NoError(t, err)
	f.mu.Lock()
	events := f.events
	f.mu.Unlock()
	require.NotNil(t, events)
	events <- Event{Kind: EventMessage, Data: raw}
}

func (f *fakeTransport) sentFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

type fakeStore struct {
	mu    sync.Mutex
	blobs map[string]string
	next  int
}

func newFakeStore() *fakeStore { return &fakeStore{blobs: make(map[string]string)} }

func (s *fakeStore) Store(_ context.Context, content string) (storage.StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := strconv.Itoa(s.next)
	s.blobs[id] = content
	return storage.StoreResult{ID: id, Size: len(content)}, nil
}

func (s *fakeStore) Fetch(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.blobs[id]
	if !ok {
		return "", &storage.StorageError{Op: "fetch", Err: storage.ErrNotFound}
	}
	return content, nil
}

type fakeLedger struct {
	mu      sync.Mutex
	records map[string]ledger.Record
	created int
	updated int
}

func newFakeLedger() *fakeLedger { return &fakeLedger{records: make(map[string]ledger.Record)} }

func (l *fakeLedger) Create(_ context.Context, sessionID, contentID string) (ledger.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.created++
	l.records[sessionID] = ledger.Record{ContentID: contentID, Owner: "owner"}
	return ledger.Result{Success: true, TxRef: "tx-create"}, nil
}

func (l *fakeLedger) Update(_ context.Context, sessionID, contentID string) (ledger.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updated++
	l.records[sessionID] = ledger.Record{ContentID: contentID, Owner: "owner"}
	return ledger.Result{Success: true, TxRef: "tx-update"}, nil
}

func (l *fakeLedger) Get(_ context.Context, sessionID string) (*ledger.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[sessionID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (l *fakeLedger) ListByOwner(context.Context, string) ([]ledger.Entry, error) {
	return nil, nil
}

type fixture struct {
	ctrl      *Controller
	transport *fakeTransport
	surface   *Buffer
	store     *fakeStore
	ledger    *fakeLedger
	applied   func() []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ft := &fakeTransport{}
	buf := NewBuffer()

	var mu sync.Mutex
	var applied []string
	buf.OnChange = func(content string) {
		mu.Lock()
		defer mu.Unlock()
		applied = append(applied, content)
	}

	store := newFakeStore()
	led := newFakeLedger()

	ctrl := New(context.Background(), Config{
		Log:           zap.NewNop(),
		SessionID:     "sess-1",
		Surface:       buf,
		Transport:     ft,
		Store:         store,
		Ledger:        led,
		ThrottleEvery: 50 * time.Millisecond,
		DebounceQuiet: 40 * time.Millisecond,
		CursorTTL:     time.Second,
	})
	t.Cleanup(func() { ctrl.Inbox() <- Teardown{} })

	require.NoError(t, ctrl.Connect("token"))

	return &fixture{
		ctrl:      ctrl,
		transport: ft,
		surface:   buf,
		store:     store,
		ledger:    led,
		applied: func() []string {
			mu.Lock()
			defer mu.Unlock()
			return append([]string(nil), applied...)
		},
	}
}

func (f *fixture) state(t *testing.T) StateView {
	t.Helper()
	reply := make(chan StateView, 1)
	f.ctrl.Inbox() <- GetState{Reply: reply}
	select {
	case view := <-reply:
		return view
	case <-time.After(time.Second):
		// Callers poll via Eventually; a missed reply reads as zero state.
		return StateView{}
	}
}

func TestIdentityAssignment(t *testing.T) {
	f := newFixture(t)

	me := protocol.Identity{UserID: "me", UserName: "Ada", UserColor: "#fff"}
	f.transport.inject(t, protocol.TypeUserData, protocol.PresencePayload{UserData: me})

	require.Eventually(t, func() bool {
		return f.state(t).Local.UserID == "me"
	}, time.Second, 10*time.Millisecond)

	// A later assignment overwrites outright.
	other := protocol.Identity{UserID: "me2", UserName: "Ada2"}
	f.transport.inject(t, protocol.TypeUserData, protocol.PresencePayload{UserData: other})
	require.Eventually(t, func() bool {
		return f.state(t).Local.UserID == "me2"
	}, time.Second, 10*time.Millisecond)
}

func TestEchoSuppression(t *testing.T) {
	f := newFixture(t)

	f.transport.inject(t, protocol.TypeUserData, protocol.PresencePayload{
		UserData: protocol.Identity{UserID: "me"},
	})

	// Our own frame must never reach the reconciler.
	f.transport.inject(t, protocol.TypeContent, protocol.ContentPayload{
		Content:  "my own echo",
		UserData: protocol.Identity{UserID: "me"},
	})
	// A remote frame is applied; it also proves the echo frame was skipped,
	// since frames are processed in receipt order.
	f.transport.inject(t, protocol.TypeContent, protocol.ContentPayload{
		Content:  "remote edit",
		UserData: protocol.Identity{UserID: "them"},
	})

	require.Eventually(t, func() bool {
		return f.surface.Content() == "remote edit"
	}, time.Second, 10*time.Millisecond)
	assert.NotContains(t, f.applied(), "my own echo")
}

func TestBootstrapContentAppliedBeforeIdentity(t *testing.T) {
	f := newFixture(t)

	f.transport.inject(t, protocol.TypeContent, protocol.ContentPayload{
		Content:  "first frame",
		UserData: protocol.Identity{UserID: "someone"},
	})

	require.Eventually(t, func() bool {
		return f.surface.Content() == "first frame"
	}, time.Second, 10*time.Millisecond)
}

func TestRosterFollowsPresenceFrames(t *testing.T) {
	f := newFixture(t)

	them := protocol.Identity{UserID: "them", UserName: "Bob"}
	f.transport.inject(t, protocol.TypeUserAdded, protocol.PresencePayload{UserData: them})
	require.Eventually(t, func() bool {
		return len(f.state(t).Users) == 1
	}, time.Second, 10*time.Millisecond)

	f.transport.inject(t, protocol.TypeUserRemoved, protocol.PresencePayload{UserData: them})
	require.Eventually(t, func() bool {
		return len(f.state(t).Users) == 0
	}, time.Second, 10*time.Millisecond)
	assert.Empty(t, f.applied(), "presence frames must not touch the surface")
}

func TestLocalEditsAreRateShaped(t *testing.T) {
	f := newFixture(t)

	f.ctrl.Inbox() <- LocalEdit{Content: "h", Position: protocol.Position{X: 1}}
	f.ctrl.Inbox() <- LocalEdit{Content: "he", Position: protocol.Position{X: 2}}

	// One leading send plus one trailing send with the final content.
	require.Eventually(t, func() bool {
		return len(f.transport.sentFrames()) == 2
	}, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	frames := f.transport.sentFrames()
	require.Len(t, frames, 2)

	last := protocol.Decode(frames[1])
	require.Len(t, last, 1)
	require.NoError(t, last[0].Err)
	p, err := last[0].Frame.ContentData()
	require.NoError(t, err)
	assert.Equal(t, "he", p.Content)
}

func TestEditsWhileClosedAreDiscarded(t *testing.T) {
	f := newFixture(t)
	f.transport.Close()

	f.ctrl.Inbox() <- LocalEdit{Content: "lost"}
	time.Sleep(120 * time.Millisecond)
	assert.Empty(t, f.transport.sentFrames())
}

func TestConcatenatedInboundPayload(t *testing.T) {
	f := newFixture(t)

	a, err := protocol.Encode(protocol.TypeUserAdded, protocol.PresencePayload{
		UserData: protocol.Identity{UserID: "u1"},
	})
	require.NoError(t, err)
	b, err := protocol.Encode(protocol.TypeContent, protocol.ContentPayload{
		Content:  "joined content",
		UserData: protocol.Identity{UserID: "u1"},
	})
	require.NoError(t, err)

	f.transport.mu.Lock()
	events := f.transport.events
	f.transport.mu.Unlock()
	events <- Event{Kind: EventMessage, Data: append(a, b...)}

	require.Eventually(t, func() bool {
		view := f.state(t)
		return len(view.Users) == 1 && f.surface.Content() == "joined content"
	}, time.Second, 10*time.Millisecond)
}

func TestSaveCreatesThenUpdates(t *testing.T) {
	f := newFixture(t)
	f.surface.SetContent("draft one")

	reply := make(chan error, 1)
	f.ctrl.Inbox() <- Save{Reply: reply}
	require.NoError(t, <-reply)
	assert.Equal(t, 1, f.ledger.created)
	assert.Equal(t, 0, f.ledger.updated)

	f.surface.SetContent("draft two")
	f.ctrl.Inbox() <- Save{Reply: reply}
	require.NoError(t, <-reply)
	assert.Equal(t, 1, f.ledger.created)
	assert.Equal(t, 1, f.ledger.updated)

	rec, err := f.ledger.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	content, err := f.store.Fetch(context.Background(), rec.ContentID)
	require.NoError(t, err)
	assert.Equal(t, "draft two", content)
}

func TestLoadAppliesLedgerContent(t *testing.T) {
	f := newFixture(t)

	res, err := f.store.Store(context.Background(), "persisted")
	require.NoError(t, err)
	_, err = f.ledger.Create(context.Background(), "sess-1", res.ID)
	require.NoError(t, err)

	reply := make(chan error, 1)
	f.ctrl.Inbox() <- Load{Reply: reply}
	require.NoError(t, <-reply)
	assert.Equal(t, "persisted", f.surface.Content())
}

func TestLoadWithoutRecordIsEmptyDocument(t *testing.T) {
	f := newFixture(t)
	f.surface.SetContent("unsaved local text")

	reply := make(chan error, 1)
	f.ctrl.Inbox() <- Load{Reply: reply}
	require.NoError(t, <-reply)
	assert.Equal(t, "unsaved local text", f.surface.Content())
}
