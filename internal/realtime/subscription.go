package realtime

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rubikalib/client-go/internal/api"
)

// subscription is one registered pair of handlers. Either may be nil.
type subscription struct {
	id         string
	onMessage  MessageHandler
	onActivity ActivityHandler
	active     atomic.Bool
}

// subscriptionManager fans events out to registered handlers. Dispatch
// runs without holding mu so handlers may unsubscribe themselves.
type subscriptionManager struct {
	mu     sync.RWMutex
	subs   map[string]*subscription
	nextID atomic.Uint64
}

func newSubscriptionManager() *subscriptionManager {
	return &subscriptionManager{
		subs: make(map[string]*subscription),
	}
}

// subscribe registers handlers and returns the function that removes them.
// Events dispatched after it returns are not delivered; a dispatch already
// running on another goroutine may still deliver one more.
func (m *subscriptionManager) subscribe(onMessage MessageHandler, onActivity ActivityHandler) func() {
	id := strconv.FormatUint(m.nextID.Add(1), 10)

	sub := &subscription{
		id:         id,
		onMessage:  onMessage,
		onActivity: onActivity,
	}
	sub.active.Store(true)

	m.mu.Lock()
	m.subs[id] = sub
	m.mu.Unlock()

	return func() {
		m.unsubscribe(id)
	}
}

// unsubscribe removes a subscription. Safe to call multiple times.
func (m *subscriptionManager) unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub, ok := m.subs[id]; ok {
		sub.active.Store(false)
		delete(m.subs, id)
	}
}

func (m *subscriptionManager) snapshot() []*subscription {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs := make([]*subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	return subs
}

func (m *subscriptionManager) notifyMessage(ctx context.Context, update api.Value) {
	for _, sub := range m.snapshot() {
		if sub.onMessage != nil && sub.active.Load() {
			sub.onMessage(ctx, update)
		}
	}
}

func (m *subscriptionManager) notifyActivity(ctx context.Context, activity Activity) {
	for _, sub := range m.snapshot() {
		if sub.onActivity != nil && sub.active.Load() {
			sub.onActivity(ctx, activity)
		}
	}
}

func (m *subscriptionManager) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

// clear removes all subscriptions.
func (m *subscriptionManager) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sub := range m.subs {
		sub.active.Store(false)
	}
	m.subs = make(map[string]*subscription)
}
