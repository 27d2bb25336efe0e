package engine

import (
	"sort"

	"github.com/maniya81/whatsapp-crm-extension/internal/crm"
	"github.com/maniya81/whatsapp-crm-extension/internal/host"
)

// Repair patches one conversation's membership and position in place
// after a single-conversation change event. Entries for other
// conversations keep their relative order. For the same field values the
// result is identical to a full rebuild; when it cannot be (a stage
// appeared, a snapshot changed) the caller falls back to Build.
func Repair(set *BucketSet, conv host.Conversation, snap *crm.Snapshot) {
	if set == nil || conv == nil {
		return
	}
	id := conv.ID()
	if id == "" {
		return
	}

	if conv.IsArchived() {
		RemoveConversation(set, id)
		return
	}

	var lead *crm.LeadRecord
	if snap != nil {
		lead, _ = snap.Resolve(id)
	}
	entry := Entry{ID: id, Conv: conv, Lead: lead}

	want := make(map[string]bool, 5)
	for _, slug := range builtinMembership(conv) {
		want[slug] = true
	}
	if lead != nil {
		if _, ok := set.Buckets[lead.StageSlug]; ok {
			want[lead.StageSlug] = true
		}
	}

	for _, slug := range set.Order {
		b := set.Buckets[slug]
		at := b.IndexOf(id)
		switch {
		case want[slug] && at < 0:
			b.insertAt(searchPos(b, entry), entry)
		case want[slug] && at >= 0:
			// Reposition: activity or pin state may have moved it.
			b.removeAt(at)
			b.insertAt(searchPos(b, entry), entry)
		case !want[slug] && at >= 0:
			b.removeAt(at)
		}
	}
}

// RemoveConversation drops a conversation from every bucket. Used for
// host removals and archive flips.
func RemoveConversation(set *BucketSet, id string) {
	if set == nil {
		return
	}
	for _, slug := range set.Order {
		b := set.Buckets[slug]
		if at := b.IndexOf(id); at >= 0 {
			b.removeAt(at)
		}
	}
}

// searchPos finds the sorted insertion index for entry under the
// bucket's comparator.
func searchPos(b *Bucket, entry Entry) int {
	less := lessFor(b)
	return sort.Search(len(b.Entries), func(i int) bool {
		return less(entry, b.Entries[i])
	})
}
