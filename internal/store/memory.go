package store

import (
	"sync"
)

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 32

// MemoryStore is an in-memory implementation of [Store].
//
// Only the latest view is retained. Updates are fanned out to subscribers
// without blocking; a subscriber whose buffer is full misses that update.
type MemoryStore struct {
	mu     sync.RWMutex
	latest ReadingView
	has    bool

	subMu       sync.RWMutex
	subscribers map[chan ReadingView]struct{}
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscribers: make(map[chan ReadingView]struct{}),
	}
}

// Update replaces the latest view and notifies all subscribers.
func (m *MemoryStore) Update(view ReadingView) {
	m.mu.Lock()
	m.latest = view
	m.has = true
	m.mu.Unlock()

	m.notifySubscribers(view)
}

// Latest returns the most recent view.
func (m *MemoryStore) Latest() (ReadingView, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, m.has
}

// Subscribe creates a new subscription.
//
// Caller must call [MemoryStore.Unsubscribe] when done.
func (m *MemoryStore) Subscribe() <-chan ReadingView {
	ch := make(chan ReadingView, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan ReadingView) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (m *MemoryStore) Subscribers() int {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	return len(m.subscribers)
}

func (m *MemoryStore) notifySubscribers(view ReadingView) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- view:
		default:
			// slow subscriber, drop
		}
	}
}
