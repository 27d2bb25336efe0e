package host

// EventKind classifies a registry change.
type EventKind string

const (
	// EventMessagesChanged fires when a conversation's last message or
	// activity timestamp changed.
	EventMessagesChanged EventKind = "messages_changed"
	// EventUnreadChanged fires when only the unread counter moved.
	EventUnreadChanged EventKind = "unread_changed"
	// EventAdded fires when a conversation appears.
	EventAdded EventKind = "added"
	// EventRemoved fires when a conversation disappears.
	EventRemoved EventKind = "removed"
	// EventReset fires when the whole registry was replaced, typically
	// after the bridge reconnects. ConversationID is empty.
	EventReset EventKind = "reset"
)

// Event is one registry change, published over the registry's broker.
type Event struct {
	Kind           EventKind
	ConversationID string
}
