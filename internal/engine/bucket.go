// Package engine derives stage- and filter-indexed buckets from the live
// host registry and the current lead snapshot. Buckets are a cache: they
// are rebuilt wholesale on a schedule and patched in place by incremental
// repairs, and both paths must agree for the same field values.
package engine

import (
	"time"

	"github.com/maniya81/whatsapp-crm-extension/internal/crm"
	"github.com/maniya81/whatsapp-crm-extension/internal/host"
)

// Built-in bucket slugs. Stage buckets use the stage's own slug.
const (
	BucketAll        = "all-chats"
	BucketUnread     = "unread-chats"
	BucketNeedsReply = "needs-reply"
	BucketGroups     = "groups"
)

// builtinNames maps built-in slugs to display names.
var builtinNames = map[string]string{
	BucketAll:        "All Chats",
	BucketUnread:     "Unread",
	BucketNeedsReply: "Needs Reply",
	BucketGroups:     "Groups",
}

// Entry is one bucket member: a live conversation, optionally joined to a
// lead, or a placeholder standing in for a lead whose conversation does
// not exist on the host.
type Entry struct {
	// ID is the conversation id, synthesized from the lead's phone for
	// placeholders. Unique within a bucket.
	ID   string
	Conv host.Conversation // nil for placeholders
	Lead *crm.LeadRecord   // nil when no lead joined
}

// IsPlaceholder reports whether the entry has no live conversation.
func (e Entry) IsPlaceholder() bool {
	return e.Conv == nil
}

// DisplayName returns the host name for live entries and the lead's name
// for placeholders.
func (e Entry) DisplayName() string {
	if e.Conv != nil {
		return e.Conv.Name()
	}
	if e.Lead != nil {
		return e.Lead.DisplayName
	}
	return e.ID
}

// LastActivity is zero for placeholders, which sorts them last.
func (e Entry) LastActivity() time.Time {
	if e.Conv == nil {
		return time.Time{}
	}
	return e.Conv.LastActivity()
}

// Pinned is false for placeholders.
func (e Entry) Pinned() bool {
	return e.Conv != nil && e.Conv.IsPinned()
}

// Unread is zero for placeholders.
func (e Entry) Unread() int {
	if e.Conv == nil {
		return 0
	}
	return e.Conv.UnreadCount()
}

// Bucket is one ordered, derived membership list.
type Bucket struct {
	Slug    string
	Name    string
	Stage   bool // true for CRM stage buckets
	Entries []Entry
}

// Len returns the bucket size.
func (b *Bucket) Len() int {
	return len(b.Entries)
}

// IndexOf returns the position of id, or -1.
func (b *Bucket) IndexOf(id string) int {
	for i := range b.Entries {
		if b.Entries[i].ID == id {
			return i
		}
	}
	return -1
}

// removeAt deletes the entry at i preserving order.
func (b *Bucket) removeAt(i int) {
	b.Entries = append(b.Entries[:i], b.Entries[i+1:]...)
}

// insertAt inserts e at i preserving order.
func (b *Bucket) insertAt(i int, e Entry) {
	b.Entries = append(b.Entries, Entry{})
	copy(b.Entries[i+1:], b.Entries[i:])
	b.Entries[i] = e
}

// BucketSet is the full derived output of one rebuild.
type BucketSet struct {
	// Order lists bucket slugs in display order: built-ins first, then
	// stage buckets by stage order.
	Order   []string
	Buckets map[string]*Bucket
	Orphans int
	BuiltAt time.Time
}

// Get returns the bucket for slug, nil when unknown.
func (s *BucketSet) Get(slug string) *Bucket {
	if s == nil {
		return nil
	}
	return s.Buckets[slug]
}

// Size returns the entry count of a bucket, 0 when unknown.
func (s *BucketSet) Size(slug string) int {
	if b := s.Get(slug); b != nil {
		return b.Len()
	}
	return 0
}

// entryLess is the bucket ordering for plain buckets: last activity
// descending, id ascending as the tiebreak so ordering is deterministic.
// Placeholders have zero activity and land at the tail.
func entryLess(a, b Entry) bool {
	at, bt := a.LastActivity(), b.LastActivity()
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return a.ID < b.ID
}

// stageEntryLess adds the pinned-first rule used inside stage buckets.
func stageEntryLess(a, b Entry) bool {
	ap, bp := a.Pinned(), b.Pinned()
	if ap != bp {
		return ap
	}
	return entryLess(a, b)
}

// lessFor returns the comparator a bucket sorts by.
func lessFor(b *Bucket) func(a, c Entry) bool {
	if b.Stage {
		return stageEntryLess
	}
	return entryLess
}
