package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurora/backend/internal/graph/memory"
)

func newTestServer(t *testing.T, hub *Hub) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(r.URL.Query().Get("identity"), hub, conn, ClientOptions{SendBuffer: 16, MaxMessageBytes: 4096}).Serve(r.Context())
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, base, identity string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(base+"?identity="+identity, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestClient_RoundTrip(t *testing.T) {
	hub := NewHub(memory.NewStore(), nil)
	base := newTestServer(t, hub)

	alice := dial(t, base, "alice")
	bob := dial(t, base, "bob")
	require.Eventually(t, func() bool { return hub.Online("alice") && hub.Online("bob") }, time.Second, 10*time.Millisecond)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"to":"bob","ciphertext":"c2VjcmV0"}`)))

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame OutboundFrame
	require.NoError(t, bob.ReadJSON(&frame))
	assert.Equal(t, "alice", frame.From)
	assert.Equal(t, "bob", frame.To)
	assert.Equal(t, "c2VjcmV0", frame.Content)
	assert.NotEmpty(t, frame.ID)
	_, err := time.Parse(time.RFC3339Nano, frame.Timestamp)
	assert.NoError(t, err)
}

func TestClient_ProtocolErrorClosesOnlyThatConnection(t *testing.T) {
	hub := NewHub(memory.NewStore(), nil)
	base := newTestServer(t, hub)

	bad := dial(t, base, "alice")
	good := dial(t, base, "alice")
	require.Eventually(t, func() bool { return hub.Registry().Connections("alice") == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, bad.WriteMessage(websocket.TextMessage, []byte("not a frame")))

	require.NoError(t, bad.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := bad.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseProtocolError))

	require.Eventually(t, func() bool { return hub.Registry().Connections("alice") == 1 }, time.Second, 10*time.Millisecond)

	// the surviving connection still works
	require.NoError(t, good.WriteMessage(websocket.TextMessage, []byte(`{"to":"alice","ciphertext":"note"}`)))
	require.NoError(t, good.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame OutboundFrame
	require.NoError(t, good.ReadJSON(&frame))
	assert.Equal(t, "note", frame.Content)
}

func TestClient_SendAfterClose(t *testing.T) {
	hub := NewHub(memory.NewStore(), nil)
	c := &Client{id: "c1", done: make(chan struct{}), send: make(chan []byte, 1), hub: hub}
	require.NoError(t, c.Send(OutboundFrame{ID: "1"}))

	c.Close()
	assert.Equal(t, StateDisconnected, c.State())
	assert.Error(t, c.Send(OutboundFrame{ID: "2"}))
}

func TestClient_FullQueueDisconnects(t *testing.T) {
	hub := NewHub(memory.NewStore(), nil)
	slow := &Client{id: "slow", done: make(chan struct{}), send: make(chan []byte, 1), hub: hub}
	hub.Connect("bob", slow)

	frame := InboundFrame{To: "bob", Ciphertext: "x"}
	hub.Dispatch(context.Background(), "alice", nil, frame)
	assert.Equal(t, StateConnected, slow.State())

	// the writer never drains, so the second frame overflows the queue
	hub.Dispatch(context.Background(), "alice", nil, frame)

	assert.Equal(t, StateDisconnected, slow.State())
	assert.Equal(t, 0, hub.Registry().Connections("bob"))
	select {
	case <-slow.done:
	default:
		t.Fatal("client still open after its queue overflowed")
	}
	assert.Equal(t, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "send queue full"), slow.closeFrame)

	err := slow.Send(OutboundFrame{ID: "late"})
	assert.Error(t, err)
}
