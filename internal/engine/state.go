package engine

import (
	"sync"

	"github.com/maniya81/whatsapp-crm-extension/internal/crm"
	"github.com/maniya81/whatsapp-crm-extension/internal/host"
)

// FilterState is the single active bucket slug, or empty when the native
// list is shown.
type FilterState struct {
	Active string
}

// None reports whether no filter is active.
func (f FilterState) None() bool {
	return f.Active == ""
}

// EngineState is the one shared context object: the current bucket set,
// lead snapshot, and active filter, guarded by a single mutex. There are
// no package-level singletons; components receive the state explicitly.
//
// The version counter increments on every wholesale bucket swap.
// Incremental repairs carry the version they were computed against and
// are discarded when a rebuild raced them.
type EngineState struct {
	mu       sync.Mutex
	buckets  *BucketSet
	snapshot *crm.Snapshot
	filter   FilterState
	version  uint64
}

// NewEngineState creates an empty state.
func NewEngineState() *EngineState {
	return &EngineState{}
}

// Buckets returns the current bucket set and its version.
func (s *EngineState) Buckets() (*BucketSet, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buckets, s.version
}

// Snapshot returns the current lead snapshot, nil before the first load.
func (s *EngineState) Snapshot() *crm.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// SetSnapshot stores a fresh lead snapshot. Buckets are not touched; the
// caller rebuilds and swaps them separately.
func (s *EngineState) SetSnapshot(snap *crm.Snapshot) {
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}

// ReplaceBuckets swaps in a freshly built set and bumps the version so
// in-flight repairs computed against the old set get discarded.
func (s *EngineState) ReplaceBuckets(set *BucketSet) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = set
	s.version++
	return s.version
}

// RepairConversation applies an incremental repair if no rebuild raced
// it. Returns false when the repair was discarded, telling the caller to
// wait for the rebuild's own render event instead.
func (s *EngineState) RepairConversation(conv host.Conversation, sinceVersion uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != sinceVersion || s.buckets == nil {
		return false
	}
	Repair(s.buckets, conv, s.snapshot)
	return true
}

// RemoveConversation drops a conversation from all buckets under the
// same version discipline as RepairConversation.
func (s *EngineState) RemoveConversation(id string, sinceVersion uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != sinceVersion || s.buckets == nil {
		return false
	}
	RemoveConversation(s.buckets, id)
	return true
}

// BucketCopy returns a detached copy of one bucket, or nil when unknown.
// The repair path mutates bucket slices in place under the state mutex;
// renderers read off a copy so they never alias a slice mid-repair.
func (s *EngineState) BucketCopy(slug string) *Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.buckets.Get(slug)
	if b == nil {
		return nil
	}
	out := &Bucket{
		Slug:    b.Slug,
		Name:    b.Name,
		Stage:   b.Stage,
		Entries: make([]Entry, len(b.Entries)),
	}
	copy(out.Entries, b.Entries)
	return out
}

// BucketTab is a read-only projection of one bucket for tab rendering.
type BucketTab struct {
	Slug string
	Name string
	Size int
}

// Tabs returns the bucket order with names and current sizes, read under
// the state mutex. Nil before the first build.
func (s *EngineState) Tabs() []BucketTab {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buckets == nil {
		return nil
	}
	tabs := make([]BucketTab, 0, len(s.buckets.Order))
	for _, slug := range s.buckets.Order {
		b := s.buckets.Buckets[slug]
		tabs = append(tabs, BucketTab{Slug: slug, Name: b.Name, Size: b.Len()})
	}
	return tabs
}

// Filter returns the active filter.
func (s *EngineState) Filter() FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// ToggleFilter activates slug, or clears the filter when slug is already
// active. Returns the resulting state.
func (s *EngineState) ToggleFilter(slug string) FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filter.Active == slug {
		s.filter = FilterState{}
	} else {
		s.filter = FilterState{Active: slug}
	}
	return s.filter
}

// ClearFilter resets to no active filter.
func (s *EngineState) ClearFilter() FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = FilterState{}
	return s.filter
}

// ActiveBucketSize returns the active bucket's size, or -1 when no
// filter is active. The scheduler uses it to decide whether a fast-tick
// rebuild is worth a render.
func (s *EngineState) ActiveBucketSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filter.None() || s.buckets == nil {
		return -1
	}
	return s.buckets.Size(s.filter.Active)
}
