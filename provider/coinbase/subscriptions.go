package coinbase

import "sync"

// subscription is what a connection remembers about a channel it subscribed to.
type subscription struct {
	MessageHash string
	Symbol      string
	MarketID    string
	// Limit is the depth limit of a level2 subscription, 0 when unbounded.
	Limit int
	// request rebuilds the subscribe payload, private payloads carry a fresh signature each time.
	request func() (map[string]any, error)
}

type subscriptionRegistry struct {
	mu   sync.RWMutex
	subs map[string]*subscription
}

func newSubscriptionRegistry() *subscriptionRegistry {
	return &subscriptionRegistry{subs: make(map[string]*subscription)}
}

// Add keeps sub unless its hash is already subscribed. It reports whether sub was added.
func (r *subscriptionRegistry) Add(sub *subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[sub.MessageHash]; ok {
		return false
	}
	r.subs[sub.MessageHash] = sub
	return true
}

func (r *subscriptionRegistry) Get(hash string) (*subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[hash]
	return sub, ok
}

func (r *subscriptionRegistry) Delete(hash string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, hash)
}

func (r *subscriptionRegistry) All() []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subs := make([]*subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		subs = append(subs, sub)
	}
	return subs
}
