package bridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maniya81/whatsapp-crm-extension/internal/host"
)

func startBridge(t *testing.T, token string) (*Bridge, *host.Registry) {
	t.Helper()
	registry := host.NewRegistry()
	b := New(Config{ListenAddr: "127.0.0.1:0", Token: token}, registry)
	require.NoError(t, b.Start())
	t.Cleanup(func() {
		_ = b.Close(context.Background())
		registry.Close()
	})
	return b, registry
}

func dial(t *testing.T, b *Bridge, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+b.Addr()+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "hello", "token": token, "client": "test", "version": 1,
	}))

	var welcome map[string]any
	require.NoError(t, conn.ReadJSON(&welcome))
	require.Equal(t, "welcome", welcome["type"])
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestBridge_SnapshotPopulatesRegistry(t *testing.T) {
	b, registry := startBridge(t, "")
	conn := dial(t, b, "")

	require.NoError(t, conn.WriteJSON(inboundMessage{
		Type:   "snapshot",
		SelfID: "me@c.us",
		Conversations: []host.ConversationState{
			{ID: "a@c.us", Name: "Alice", UnreadCount: 2},
			{ID: "b@c.us", Name: "Bob"},
		},
	}))

	waitFor(t, func() bool { return registry.Len() == 2 })
	assert.Equal(t, "me@c.us", registry.SelfID())

	c, ok := registry.Lookup("a@c.us")
	require.True(t, ok)
	assert.Equal(t, 2, c.UnreadCount())
}

func TestBridge_EventDispatch(t *testing.T) {
	b, registry := startBridge(t, "")
	conn := dial(t, b, "")

	require.NoError(t, conn.WriteJSON(inboundMessage{
		Type: "snapshot", SelfID: "me@c.us",
		Conversations: []host.ConversationState{{ID: "a@c.us", Name: "Alice"}},
	}))
	waitFor(t, func() bool { return registry.Len() == 1 })

	require.NoError(t, conn.WriteJSON(inboundMessage{
		Type: "event", Event: host.EventUnreadChanged,
		Conversation: &host.ConversationState{ID: "a@c.us", Name: "Alice", UnreadCount: 4},
	}))
	waitFor(t, func() bool {
		c, ok := registry.Lookup("a@c.us")
		return ok && c.UnreadCount() == 4
	})

	require.NoError(t, conn.WriteJSON(inboundMessage{
		Type: "event", Event: host.EventRemoved, ConversationID: "a@c.us",
	}))
	waitFor(t, func() bool { return registry.Len() == 0 })
}

func TestBridge_RejectsBadToken(t *testing.T) {
	b, _ := startBridge(t, "secret")

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+b.Addr()+"/ws", nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "hello", "token": "wrong"}))

	// Server closes without a welcome.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var welcome map[string]any
	err = conn.ReadJSON(&welcome)
	require.Error(t, err)
	assert.False(t, b.Connected())
}

func TestBridge_ReconnectResetsRegistry(t *testing.T) {
	b, registry := startBridge(t, "")

	first := dial(t, b, "")
	require.NoError(t, first.WriteJSON(inboundMessage{
		Type: "snapshot", SelfID: "me@c.us",
		Conversations: []host.ConversationState{{ID: "old@c.us"}, {ID: "keep@c.us"}},
	}))
	waitFor(t, func() bool { return registry.Len() == 2 })

	second := dial(t, b, "")
	require.NoError(t, second.WriteJSON(inboundMessage{
		Type: "snapshot", SelfID: "me@c.us",
		Conversations: []host.ConversationState{{ID: "keep@c.us"}},
	}))
	waitFor(t, func() bool { return registry.Len() == 1 })

	_, ok := registry.Lookup("old@c.us")
	assert.False(t, ok, "reconnect snapshot replaces stale conversations")
}

func TestBridge_FocusConversation(t *testing.T) {
	b, _ := startBridge(t, "")
	conn := dial(t, b, "")

	waitFor(t, b.Connected)
	require.NoError(t, b.FocusConversation(context.Background(), "a@c.us"))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg outboundMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "focus_conversation", msg.Type)
	assert.Equal(t, "a@c.us", msg.ConversationID)
}

func TestBridge_ClaimAndReleaseList(t *testing.T) {
	b, _ := startBridge(t, "")
	conn := dial(t, b, "")

	waitFor(t, b.Connected)
	require.NoError(t, b.ClaimList(context.Background()))
	require.NoError(t, b.ReleaseList(context.Background()))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var claim outboundMessage
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &claim))
	assert.Equal(t, "claim_list", claim.Type)
	assert.NotEmpty(t, claim.RequestID)

	var release outboundMessage
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &release))
	assert.Equal(t, "release_list", release.Type)
	assert.NotEqual(t, claim.RequestID, release.RequestID)
}

func TestBridge_ClaimWithoutConnection(t *testing.T) {
	b, _ := startBridge(t, "")
	assert.ErrorIs(t, b.ClaimList(context.Background()), ErrNotConnected)
}

func TestBridge_FocusWithoutConnection(t *testing.T) {
	b, _ := startBridge(t, "")
	err := b.FocusConversation(context.Background(), "a@c.us")
	assert.ErrorIs(t, err, ErrNotConnected)
}
