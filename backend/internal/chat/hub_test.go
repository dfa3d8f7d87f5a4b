package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurora/backend/internal/graph"
	"aurora/backend/internal/graph/memory"
	"aurora/backend/internal/metrics"
	apperrors "aurora/backend/pkg/errors"
)

// fakeConn records frames; when broken every Send fails
type fakeConn struct {
	id     string
	mu     sync.Mutex
	frames []OutboundFrame
	broken bool
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(f OutboundFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return apperrors.NewTransport(c.id, "broken", nil)
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) received() []OutboundFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]OutboundFrame(nil), c.frames...)
}

// failingStore refuses chat writes
type failingStore struct {
	*memory.Store
	calls int
	mu    sync.Mutex
}

func (s *failingStore) SaveChatMessage(ctx context.Context, msg graph.Message) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return apperrors.NewStore("save chat message", errors.New("connection refused"))
}

func TestDispatch_DeliversToReceiverAndSenderOtherDevices(t *testing.T) {
	store := memory.NewStore()
	hub := NewHub(store, nil)

	phone, laptop := newFakeConn("phone"), newFakeConn("laptop")
	bobA, bobB := newFakeConn("bob-a"), newFakeConn("bob-b")
	hub.Connect("alice", phone)
	hub.Connect("alice", laptop)
	hub.Connect("bob", bobA)
	hub.Connect("bob", bobB)

	out := hub.Dispatch(context.Background(), "alice", phone, InboundFrame{To: "bob", Ciphertext: "Y2lwaGVy"})

	assert.Empty(t, phone.received())
	require.Len(t, laptop.received(), 1)
	require.Len(t, bobA.received(), 1)
	require.Len(t, bobB.received(), 1)
	assert.Equal(t, out, laptop.received()[0])
	assert.Equal(t, "alice", out.From)
	assert.Equal(t, "bob", out.To)
	assert.Equal(t, "Y2lwaGVy", out.Content)

	history, err := store.History(context.Background(), "bob", "alice")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, out.ID, history[0].ID)
}

func TestDispatch_OfflineReceiverStillPersistsAndEchoes(t *testing.T) {
	store := memory.NewStore()
	hub := NewHub(store, nil)
	origin, other := newFakeConn("origin"), newFakeConn("other")
	hub.Connect("alice", origin)
	hub.Connect("alice", other)

	hub.Dispatch(context.Background(), "alice", origin, InboundFrame{To: "carol", Ciphertext: "x"})

	assert.Len(t, other.received(), 1)
	history, err := store.History(context.Background(), "alice", "carol")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestDispatch_PersistenceFailureDoesNotBlockDelivery(t *testing.T) {
	store := &failingStore{Store: memory.NewStore()}
	collector := metrics.NewCollector("aurora")
	hub := NewHub(store, collector)
	bob := newFakeConn("bob")
	hub.Connect("bob", bob)

	for i := 0; i < 8; i++ {
		hub.Dispatch(context.Background(), "alice", newFakeConn("origin"), InboundFrame{To: "bob", Ciphertext: fmt.Sprint(i)})
	}

	assert.Len(t, bob.received(), 8)
	// the breaker opens after five consecutive failures and stops calling the store
	assert.Equal(t, 5, store.calls)
	assert.Equal(t, 5.0, testutil.ToFloat64(collector.PersistenceFailures.WithLabelValues("store")))
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.PersistenceFailures.WithLabelValues("open_state")))
}

func TestDispatch_FailedConnectionIsDropped(t *testing.T) {
	collector := metrics.NewCollector("aurora")
	hub := NewHub(memory.NewStore(), collector)
	healthy, broken := newFakeConn("healthy"), newFakeConn("broken")
	broken.broken = true
	hub.Connect("bob", healthy)
	hub.Connect("bob", broken)

	hub.Dispatch(context.Background(), "alice", newFakeConn("origin"), InboundFrame{To: "bob", Ciphertext: "x"})

	assert.Len(t, healthy.received(), 1)
	assert.Equal(t, 1, hub.Registry().Connections("bob"))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.DeliveryFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.LiveConnections))

	// the healthy connection keeps receiving
	hub.Dispatch(context.Background(), "alice", newFakeConn("origin"), InboundFrame{To: "bob", Ciphertext: "y"})
	assert.Len(t, healthy.received(), 2)
}

func TestDispatch_SelfMessage(t *testing.T) {
	hub := NewHub(memory.NewStore(), nil)
	origin, other := newFakeConn("origin"), newFakeConn("other")
	hub.Connect("alice", origin)
	hub.Connect("alice", other)

	hub.Dispatch(context.Background(), "alice", origin, InboundFrame{To: "alice", Ciphertext: "note"})

	assert.Len(t, origin.received(), 1)
	assert.Len(t, other.received(), 1)
}

func TestHandleInbound_ProtocolErrors(t *testing.T) {
	store := memory.NewStore()
	hub := NewHub(store, nil)
	origin := newFakeConn("origin")

	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "hello"},
		{"missing to", `{"ciphertext":"x"}`},
		{"missing ciphertext", `{"to":"bob"}`},
		{"empty ciphertext", `{"to":"bob","ciphertext":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := hub.HandleInbound(context.Background(), "alice", origin, []byte(tt.raw))
			assert.True(t, apperrors.IsValidation(err))
		})
	}

	require.NoError(t, hub.HandleInbound(context.Background(), "alice", origin, []byte(`{"to":"bob","ciphertext":"x"}`)))
	history, err := store.History(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSendDirect(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	for _, name := range []string{"alice", "bob"} {
		_, err := store.CreateUser(ctx, graph.NewUser{Username: name, PasswordHash: "h", CreatedAt: time.Now()})
		require.NoError(t, err)
	}
	hub := NewHub(store, nil)
	aliceWeb, bobPhone := newFakeConn("alice-web"), newFakeConn("bob-phone")
	hub.Connect("alice", aliceWeb)
	hub.Connect("bob", bobPhone)

	msg, err := hub.SendDirect(ctx, "alice", "bob", "hi bob")
	require.NoError(t, err)
	assert.Equal(t, "hi bob", msg.Content)
	require.Len(t, bobPhone.received(), 1)
	require.Len(t, aliceWeb.received(), 1)
	assert.Equal(t, msg.ID, bobPhone.received()[0].ID)

	_, err = hub.SendDirect(ctx, "alice", "nobody", "hi")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = hub.SendDirect(ctx, "alice", "bob", "   ")
	assert.True(t, apperrors.IsValidation(err))

	history, err := hub.History(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestDeliverRelayed_ReachesEverySenderConnection(t *testing.T) {
	hub := NewHub(memory.NewStore(), nil)
	alice, bob := newFakeConn("alice"), newFakeConn("bob")
	hub.Connect("alice", alice)
	hub.Connect("bob", bob)

	hub.DeliverRelayed(OutboundFrame{ID: "m1", From: "alice", To: "bob", Content: "x"})

	assert.Len(t, alice.received(), 1)
	assert.Len(t, bob.received(), 1)
}
