package engine

import (
	"time"

	"github.com/maniya81/whatsapp-crm-extension/internal/host"
)

// fakeConv is a mutable stand-in for a live host conversation handle.
type fakeConv struct {
	id       string
	name     string
	group    bool
	archived bool
	pinned   bool
	muted    bool
	unread   int
	marked   bool
	last     time.Time
	fromMe   bool
}

var _ host.Conversation = (*fakeConv)(nil)

func (f *fakeConv) ID() string              { return f.id }
func (f *fakeConv) Name() string            { return f.name }
func (f *fakeConv) IsGroup() bool           { return f.group }
func (f *fakeConv) IsArchived() bool        { return f.archived }
func (f *fakeConv) IsPinned() bool          { return f.pinned }
func (f *fakeConv) IsMuted() bool           { return f.muted }
func (f *fakeConv) UnreadCount() int        { return f.unread }
func (f *fakeConv) HasUnread() bool         { return f.unread > 0 || f.marked }
func (f *fakeConv) LastActivity() time.Time { return f.last }
func (f *fakeConv) LastMessageFromMe() bool { return f.fromMe }

// bucketIDs flattens a bucket to its entry ids for comparisons.
func bucketIDs(b *Bucket) []string {
	if b == nil {
		return nil
	}
	ids := make([]string, 0, len(b.Entries))
	for _, e := range b.Entries {
		ids = append(ids, e.ID)
	}
	return ids
}
