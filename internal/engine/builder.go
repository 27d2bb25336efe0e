package engine

import (
	"sort"
	"time"

	"github.com/maniya81/whatsapp-crm-extension/internal/crm"
	"github.com/maniya81/whatsapp-crm-extension/internal/host"
	"github.com/maniya81/whatsapp-crm-extension/internal/log"
)

// Build derives a fresh BucketSet from the live conversations and the
// current lead snapshot. It never mutates its inputs and is safe to call
// again while a previous result is still being rendered: the old set
// stays intact, the caller swaps the new one in wholesale.
//
// Membership rules per conversation (archived excluded entirely):
//   - all-chats: always
//   - unread-chats: unread count > 0
//   - groups: group flag set
//   - needs-reply: not a group, unread, last message not from me
//   - stage bucket: lead joined by conversation id or phone
//
// Leads whose conversation is not live get a placeholder entry in their
// stage bucket so stage counts reflect CRM truth. Orphaned leads (no join
// key at all) are only counted.
func Build(conversations []host.Conversation, snap *crm.Snapshot) *BucketSet {
	set := &BucketSet{
		Buckets: make(map[string]*Bucket),
		BuiltAt: time.Now(),
	}
	for _, slug := range []string{BucketAll, BucketUnread, BucketNeedsReply, BucketGroups} {
		set.Order = append(set.Order, slug)
		set.Buckets[slug] = &Bucket{Slug: slug, Name: builtinNames[slug]}
	}
	if snap != nil {
		set.Orphans = snap.Orphans
		for _, stage := range snap.Stages {
			if stage.IsDefault() {
				continue
			}
			set.Order = append(set.Order, stage.Slug)
			set.Buckets[stage.Slug] = &Bucket{Slug: stage.Slug, Name: stage.Name, Stage: true}
		}
	}

	live := make([]Entry, 0, len(conversations))
	seen := make(map[string]bool, len(conversations))
	for _, conv := range conversations {
		if conv == nil {
			continue
		}
		id := conv.ID()
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		var lead *crm.LeadRecord
		if snap != nil {
			lead, _ = snap.Resolve(id)
		}
		live = append(live, Entry{ID: id, Conv: conv, Lead: lead})
	}
	sort.SliceStable(live, func(i, j int) bool { return entryLess(live[i], live[j]) })

	for _, e := range live {
		if e.Conv.IsArchived() {
			continue
		}
		for _, slug := range builtinMembership(e.Conv) {
			b := set.Buckets[slug]
			b.Entries = append(b.Entries, e)
		}
		if e.Lead != nil {
			if b, ok := set.Buckets[e.Lead.StageSlug]; ok {
				b.Entries = append(b.Entries, e)
			}
		}
	}

	// Placeholders for leads with a join key but no live conversation.
	// Leads sharing a join key synthesize the same conversation id; only
	// the first gets an entry, keeping ids unique within a bucket.
	if snap != nil {
		for i := range snap.Leads {
			rec := &snap.Leads[i]
			if rec.ConversationID == "" || seen[rec.ConversationID] {
				continue
			}
			b, ok := set.Buckets[rec.StageSlug]
			if !ok {
				continue
			}
			seen[rec.ConversationID] = true
			b.Entries = append(b.Entries, Entry{ID: rec.ConversationID, Lead: rec})
		}
	}

	// Stage buckets re-sort for the pinned-first rule; placeholders fall
	// to the tail via their zero activity.
	for _, slug := range set.Order {
		b := set.Buckets[slug]
		if b.Stage {
			sort.SliceStable(b.Entries, func(i, j int) bool {
				return stageEntryLess(b.Entries[i], b.Entries[j])
			})
		}
	}

	log.Debug(log.CatEngine, "buckets rebuilt",
		"conversations", len(live),
		"buckets", len(set.Order),
		"all", set.Size(BucketAll),
		"orphans", set.Orphans)
	return set
}

// builtinMembership returns the built-in buckets a non-archived
// conversation belongs to. Pure over the conversation's current fields;
// the incremental repair path relies on that.
func builtinMembership(c host.Conversation) []string {
	slugs := []string{BucketAll}
	unread := c.HasUnread()
	if unread {
		slugs = append(slugs, BucketUnread)
	}
	if c.IsGroup() {
		slugs = append(slugs, BucketGroups)
	}
	if !c.IsGroup() && unread && !c.LastMessageFromMe() {
		slugs = append(slugs, BucketNeedsReply)
	}
	return slugs
}
