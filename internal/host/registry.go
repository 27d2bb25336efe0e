package host

import (
	"sync"

	"github.com/maniya81/whatsapp-crm-extension/internal/log"
	"github.com/maniya81/whatsapp-crm-extension/internal/pubsub"
)

// Registry owns the live conversation handles and publishes a change
// event for every mutation. Handles survive removal: a consumer holding
// one after EventRemoved still reads its last state, it just no longer
// appears in List.
type Registry struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
	selfID        string
	broker        *pubsub.Broker[Event]
}

// NewRegistry creates an empty registry with its own event broker.
func NewRegistry() *Registry {
	return &Registry{
		conversations: make(map[string]*conversation),
		broker:        pubsub.NewBroker[Event](),
	}
}

// Broker exposes the registry's change events for subscription.
func (r *Registry) Broker() *pubsub.Broker[Event] {
	return r.broker
}

// SelfID returns the host account's own id, set by the last snapshot.
func (r *Registry) SelfID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selfID
}

// Len returns the number of live conversations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conversations)
}

// Lookup returns the live handle for a conversation id.
func (r *Registry) Lookup(id string) (Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, false
	}
	return c, true
}

// List returns the live handles in unspecified order. The slice is fresh
// on every call; the handles inside it are shared.
func (r *Registry) List() []Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conversation, 0, len(r.conversations))
	for _, c := range r.conversations {
		out = append(out, c)
	}
	return out
}

// Reset replaces the whole registry from a snapshot and publishes a
// single EventReset. Existing handles for surviving ids are reused so
// consumers holding them keep seeing updates.
func (r *Registry) Reset(selfID string, states []ConversationState) {
	r.mu.Lock()
	next := make(map[string]*conversation, len(states))
	for _, state := range states {
		if existing, ok := r.conversations[state.ID]; ok {
			existing.apply(state)
			next[state.ID] = existing
			continue
		}
		next[state.ID] = newConversation(state)
	}
	r.conversations = next
	r.selfID = selfID
	r.mu.Unlock()

	log.Info(log.CatHost, "registry reset", "conversations", len(states), "selfID", selfID)
	r.broker.Publish(pubsub.UpdatedEvent, Event{Kind: EventReset})
}

// Apply handles one incremental change. An update for an unknown id is
// treated as an add; a removal of an unknown id is a no-op.
func (r *Registry) Apply(kind EventKind, state ConversationState) {
	r.mu.Lock()
	existing, ok := r.conversations[state.ID]
	if ok {
		existing.apply(state)
	} else {
		r.conversations[state.ID] = newConversation(state)
		kind = EventAdded
	}
	r.mu.Unlock()

	r.broker.Publish(pubsub.UpdatedEvent, Event{Kind: kind, ConversationID: state.ID})
}

// Remove drops a conversation and publishes EventRemoved.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	_, ok := r.conversations[id]
	delete(r.conversations, id)
	r.mu.Unlock()

	if !ok {
		return
	}
	r.broker.Publish(pubsub.DeletedEvent, Event{Kind: EventRemoved, ConversationID: id})
}

// Close shuts down the registry's broker.
func (r *Registry) Close() {
	r.broker.Close()
}
