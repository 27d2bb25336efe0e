// Package host exposes the messaging host's conversation list as live
// handles. A handle is shared, not copied: the registry mutates it in
// place as events arrive, and readers always see current values.
package host

import (
	"sync"
	"time"
)

// Conversation is a read-only live handle onto one host conversation.
// Values may change between calls; callers must not cache them across
// events.
type Conversation interface {
	ID() string
	Name() string
	IsGroup() bool
	IsArchived() bool
	IsPinned() bool
	IsMuted() bool
	UnreadCount() int
	HasUnread() bool
	LastActivity() time.Time
	LastMessageFromMe() bool
}

// ConversationState is the wire representation of one conversation as
// sent by the host bridge in snapshots and events.
type ConversationState struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	IsGroup           bool      `json:"is_group"`
	IsArchived        bool      `json:"is_archived"`
	IsPinned          bool      `json:"is_pinned"`
	IsMuted           bool      `json:"is_muted"`
	UnreadCount       int       `json:"unread_count"`
	MarkedUnread      bool      `json:"marked_unread"`
	LastActivity      time.Time `json:"last_activity"`
	LastMessageFromMe bool      `json:"last_message_from_me"`
}

// conversation is the registry's mutable backing store for a handle.
type conversation struct {
	mu    sync.RWMutex
	state ConversationState
}

var _ Conversation = (*conversation)(nil)

func newConversation(state ConversationState) *conversation {
	return &conversation{state: state}
}

func (c *conversation) apply(state ConversationState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *conversation) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.ID
}

func (c *conversation) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Name
}

func (c *conversation) IsGroup() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.IsGroup
}

func (c *conversation) IsArchived() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.IsArchived
}

func (c *conversation) IsPinned() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.IsPinned
}

func (c *conversation) IsMuted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.IsMuted
}

func (c *conversation) UnreadCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.UnreadCount
}

// HasUnread covers both unread shapes the host exposes: a positive
// message count and the explicit mark-as-unread flag set on a chat with
// nothing pending.
func (c *conversation) HasUnread() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.UnreadCount > 0 || c.state.MarkedUnread
}

func (c *conversation) LastActivity() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.LastActivity
}

func (c *conversation) LastMessageFromMe() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.LastMessageFromMe
}
