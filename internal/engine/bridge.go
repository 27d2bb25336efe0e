package engine

import (
	"context"

	"github.com/maniya81/whatsapp-crm-extension/internal/host"
	"github.com/maniya81/whatsapp-crm-extension/internal/log"
	"github.com/maniya81/whatsapp-crm-extension/internal/pubsub"
)

// ReactivityBridge translates host registry events into incremental
// bucket repairs and row-level render invalidations. It owns the single
// registry subscription; render passes never subscribe on their own.
type ReactivityBridge struct {
	state    *EngineState
	registry *host.Registry
	render   *pubsub.Broker[RenderEvent]

	// onReset fires when the host replaced its whole conversation set,
	// typically a bridge reconnect. Wired to the scheduler's resync and
	// the takeover recovery watcher.
	onReset func()
}

// NewReactivityBridge wires the bridge. onReset may be nil.
func NewReactivityBridge(state *EngineState, registry *host.Registry, render *pubsub.Broker[RenderEvent], onReset func()) *ReactivityBridge {
	return &ReactivityBridge{
		state:    state,
		registry: registry,
		render:   render,
		onReset:  onReset,
	}
}

// Run consumes registry events until ctx is cancelled. Repairs are
// applied in arrival order; a repair that raced a rebuild is discarded,
// the rebuild's own render event covers it.
func (rb *ReactivityBridge) Run(ctx context.Context) {
	events := rb.registry.Broker().Subscribe(ctx)
	for ev := range events {
		rb.handle(ev.Payload)
	}
}

func (rb *ReactivityBridge) handle(ev host.Event) {
	switch ev.Kind {
	case host.EventReset:
		log.Info(log.CatEngine, "host reset, scheduling resync")
		if rb.onReset != nil {
			rb.onReset()
		}

	case host.EventRemoved:
		_, version := rb.state.Buckets()
		if rb.state.RemoveConversation(ev.ConversationID, version) {
			rb.render.Publish(pubsub.UpdatedEvent, RenderEvent{
				Kind: RenderWindow, ConversationID: ev.ConversationID,
			})
		}

	case host.EventAdded, host.EventUnreadChanged:
		// Membership or position may change: the window re-renders.
		rb.repairAndPublish(ev.ConversationID, RenderWindow)

	case host.EventMessagesChanged:
		rb.repairAndPublish(ev.ConversationID, RenderRow)

	default:
		log.Warn(log.CatEngine, "unknown host event", "kind", string(ev.Kind))
	}
}

func (rb *ReactivityBridge) repairAndPublish(id string, kind RenderKind) {
	conv, ok := rb.registry.Lookup(id)
	if !ok {
		// Removed between event and lookup; the removal event follows.
		return
	}
	_, version := rb.state.Buckets()
	if !rb.state.RepairConversation(conv, version) {
		log.Debug(log.CatEngine, "repair discarded, rebuild raced it", "conversation", id)
		return
	}
	rb.render.Publish(pubsub.UpdatedEvent, RenderEvent{Kind: kind, ConversationID: id})
}
