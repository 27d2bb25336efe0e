package host

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maniya81/whatsapp-crm-extension/internal/pubsub"
)

func state(id string, unread int) ConversationState {
	return ConversationState{
		ID:           id,
		Name:         "conv " + id,
		UnreadCount:  unread,
		LastActivity: time.Now(),
	}
}

func collectEvent(t *testing.T, ch <-chan pubsub.Event[Event]) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev.Payload
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for registry event")
		return Event{}
	}
}

func TestRegistry_ApplyAddsAndUpdates(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := r.Broker().Subscribe(ctx)

	r.Apply(EventMessagesChanged, state("a", 0))
	ev := collectEvent(t, events)
	assert.Equal(t, EventAdded, ev.Kind, "update for unknown id becomes an add")
	assert.Equal(t, "a", ev.ConversationID)

	r.Apply(EventUnreadChanged, state("a", 3))
	ev = collectEvent(t, events)
	assert.Equal(t, EventUnreadChanged, ev.Kind)

	c, ok := r.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, 3, c.UnreadCount())
	assert.True(t, c.HasUnread())
}

func TestRegistry_HandlesAreLive(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	r.Apply(EventAdded, state("a", 0))
	c, ok := r.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, 0, c.UnreadCount())

	// Same handle observes the mutation.
	r.Apply(EventUnreadChanged, state("a", 5))
	assert.Equal(t, 5, c.UnreadCount())
}

func TestRegistry_RemoveLeavesHandleReadable(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	r.Apply(EventAdded, state("a", 2))
	c, _ := r.Lookup("a")

	r.Remove("a")
	_, ok := r.Lookup("a")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())

	// Stale handle still answers with its last state.
	assert.Equal(t, 2, c.UnreadCount())
}

func TestRegistry_RemoveUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := r.Broker().Subscribe(ctx)

	r.Remove("ghost")

	select {
	case ev := <-events:
		t.Fatalf("unexpected event %v", ev.Payload.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegistry_ResetReusesSurvivingHandles(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	r.Apply(EventAdded, state("a", 1))
	r.Apply(EventAdded, state("b", 0))
	handleA, _ := r.Lookup("a")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := r.Broker().Subscribe(ctx)

	r.Reset("self@c.us", []ConversationState{state("a", 7), state("c", 0)})

	ev := collectEvent(t, events)
	assert.Equal(t, EventReset, ev.Kind)
	assert.Equal(t, "self@c.us", r.SelfID())
	assert.Equal(t, 2, r.Len())

	_, ok := r.Lookup("b")
	assert.False(t, ok)

	// "a" survived the reset as the same object with fresh state.
	current, ok := r.Lookup("a")
	require.True(t, ok)
	assert.Same(t, handleA, current)
	assert.Equal(t, 7, handleA.UnreadCount())
}

func TestConversation_MarkedUnreadWithoutCount(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	st := state("a", 0)
	st.MarkedUnread = true
	r.Apply(EventAdded, st)

	c, ok := r.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, 0, c.UnreadCount())
	assert.True(t, c.HasUnread(), "mark-as-unread counts without pending messages")
}
