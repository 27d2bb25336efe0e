package app

import (
	"context"
	"sync"

	"github.com/maniya81/whatsapp-crm-extension/internal/crm"
)

// swappableLoader lets the app replace the lead store when the config
// changes org or API endpoint without restarting the scheduler.
type swappableLoader struct {
	mu    sync.RWMutex
	store *crm.LeadStore
}

func newSwappableLoader(store *crm.LeadStore) *swappableLoader {
	return &swappableLoader{store: store}
}

func (l *swappableLoader) LoadAll(ctx context.Context) (*crm.Snapshot, error) {
	l.mu.RLock()
	store := l.store
	l.mu.RUnlock()
	return store.LoadAll(ctx)
}

func (l *swappableLoader) Swap(store *crm.LeadStore) {
	l.mu.Lock()
	l.store = store
	l.mu.Unlock()
}
