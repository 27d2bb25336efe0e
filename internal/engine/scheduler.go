package engine

import (
	"context"
	"sync"
	"time"

	"github.com/maniya81/whatsapp-crm-extension/internal/crm"
	"github.com/maniya81/whatsapp-crm-extension/internal/host"
	"github.com/maniya81/whatsapp-crm-extension/internal/log"
	"github.com/maniya81/whatsapp-crm-extension/internal/pubsub"
)

const (
	// DefaultFastInterval is the cheap in-memory rebuild cadence.
	DefaultFastInterval = 5 * time.Second
	// DefaultSlowInterval is the full CRM refetch cadence.
	DefaultSlowInterval = 3 * time.Minute
)

// LeadLoader fetches the full lead snapshot. Implemented by
// crm.LeadStore; tests substitute a fake.
type LeadLoader interface {
	LoadAll(ctx context.Context) (*crm.Snapshot, error)
}

// ConversationLister supplies the live conversations. Implemented by
// host.Registry.
type ConversationLister interface {
	List() []host.Conversation
}

// Scheduler drives the two refresh cadences. Fast ticks rebuild buckets
// from state already in memory; slow ticks refetch leads first. Both run
// under one in-flight guard so overlapping ticks coalesce instead of
// interleaving rebuilds.
type Scheduler struct {
	state  *EngineState
	loader LeadLoader
	lister ConversationLister
	render *pubsub.Broker[RenderEvent]

	fast time.Duration
	slow time.Duration

	// persist saves a complete snapshot to the warm cache. Optional.
	persist func(*crm.Snapshot)

	inFlight sync.Mutex
	resync   chan struct{}
}

// NewScheduler wires a scheduler. Non-positive intervals get defaults;
// persist may be nil.
func NewScheduler(state *EngineState, loader LeadLoader, lister ConversationLister, render *pubsub.Broker[RenderEvent], fast, slow time.Duration, persist func(*crm.Snapshot)) *Scheduler {
	if fast <= 0 {
		fast = DefaultFastInterval
	}
	if slow <= 0 {
		slow = DefaultSlowInterval
	}
	return &Scheduler{
		state:   state,
		loader:  loader,
		lister:  lister,
		render:  render,
		fast:    fast,
		slow:    slow,
		persist: persist,
		resync:  make(chan struct{}, 1),
	}
}

// Resync requests an immediate full refetch, used on host reset and
// config change. Coalesces: a pending request absorbs later ones.
func (s *Scheduler) Resync() {
	select {
	case s.resync <- struct{}{}:
	default:
	}
}

// Run performs one initial full refresh, then serves both cadences until
// ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.SlowTick(ctx)

	fastTicker := time.NewTicker(s.fast)
	defer fastTicker.Stop()
	slowTicker := time.NewTicker(s.slow)
	defer slowTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-fastTicker.C:
			s.FastTick()
		case <-slowTicker.C:
			s.SlowTick(ctx)
		case <-s.resync:
			s.SlowTick(ctx)
		}
	}
}

// FastTick rebuilds buckets from in-memory state. A render event goes
// out only when the active bucket's size changed; unchanged sizes mean
// the incremental repairs already kept the view current.
func (s *Scheduler) FastTick() {
	if !s.inFlight.TryLock() {
		log.Debug(log.CatSched, "fast tick skipped, refresh in flight")
		return
	}
	defer s.inFlight.Unlock()

	before := s.state.ActiveBucketSize()
	set := Build(s.lister.List(), s.state.Snapshot())
	s.state.ReplaceBuckets(set)
	after := s.state.ActiveBucketSize()

	if before != after {
		s.render.Publish(pubsub.UpdatedEvent, RenderEvent{Kind: RenderFull})
	}
}

// SlowTick refetches leads, then rebuilds. A partial snapshot still
// replaces the in-memory one (stale beats empty), but is never persisted.
func (s *Scheduler) SlowTick(ctx context.Context) {
	if !s.inFlight.TryLock() {
		log.Debug(log.CatSched, "slow tick skipped, refresh in flight")
		return
	}
	defer s.inFlight.Unlock()

	snap, err := s.loader.LoadAll(ctx)
	if err != nil {
		log.ErrorErr(log.CatSched, "lead refresh failed", err)
	}
	if snap != nil {
		s.state.SetSnapshot(snap)
		if s.persist != nil && !snap.Partial {
			s.persist(snap)
		}
	}

	set := Build(s.lister.List(), s.state.Snapshot())
	s.state.ReplaceBuckets(set)
	s.render.Publish(pubsub.UpdatedEvent, RenderEvent{Kind: RenderFull})
}
