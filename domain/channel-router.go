package domain

import (
	"context"
	"sync"
)

// Future is a single-resolution signal. It is resolved or rejected exactly once.
type Future struct {
	hash  string
	once  sync.Once
	done  chan struct{}
	value any
	err   error
}

func newFuture(hash string) *Future {
	return &Future{hash: hash, done: make(chan struct{})}
}

func (f *Future) MessageHash() string { return f.hash }

func (f *Future) Done() <-chan struct{} { return f.done }

// Result must only be read after Done is closed.
func (f *Future) Result() (any, error) {
	return f.value, f.err
}

func (f *Future) settle(value any, err error) bool {
	settled := false
	f.once.Do(func() {
		f.value, f.err = value, err
		close(f.done)
		settled = true
	})
	return settled
}

// ChannelRouter maps a message hash to the waiters currently registered on it.
// Each resolution is a one-shot broadcast: waiters are cleared and callers register again for the next value.
type ChannelRouter struct {
	mu      sync.Mutex
	waiters map[string][]*Future
}

func NewChannelRouter() *ChannelRouter {
	return &ChannelRouter{waiters: make(map[string][]*Future)}
}

func (r *ChannelRouter) Register(hash string) *Future {
	f := newFuture(hash)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.waiters[hash] = append(r.waiters[hash], f)
	return f
}

// Deregister drops a waiter the caller stopped waiting for.
func (r *ChannelRouter) Deregister(f *Future) {
	r.mu.Lock()
	defer r.mu.Unlock()

	waiters := r.waiters[f.hash]
	for i, w := range waiters {
		if w == f {
			waiters = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(waiters) == 0 {
		delete(r.waiters, f.hash)
	} else {
		r.waiters[f.hash] = waiters
	}
}

// Resolve fulfills every waiter on hash with value and returns how many were woken.
func (r *ChannelRouter) Resolve(hash string, value any) int {
	r.mu.Lock()
	waiters := r.waiters[hash]
	delete(r.waiters, hash)
	r.mu.Unlock()

	n := 0
	for _, f := range waiters {
		if f.settle(value, nil) {
			n++
		}
	}
	return n
}

// RejectHash fails the waiters of a single hash.
func (r *ChannelRouter) RejectHash(hash string, err error) int {
	r.mu.Lock()
	waiters := r.waiters[hash]
	delete(r.waiters, hash)
	r.mu.Unlock()

	return rejectAll(waiters, err)
}

// Reject fails every outstanding waiter across all hashes. Used for connection-level failures.
func (r *ChannelRouter) Reject(err error) int {
	r.mu.Lock()
	all := r.waiters
	r.waiters = make(map[string][]*Future)
	r.mu.Unlock()

	n := 0
	for _, waiters := range all {
		n += rejectAll(waiters, err)
	}
	return n
}

func rejectAll(waiters []*Future, err error) int {
	n := 0
	for _, f := range waiters {
		if f.settle(nil, err) {
			n++
		}
	}
	return n
}

func (r *ChannelRouter) Pending(hash string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters[hash])
}

func (r *ChannelRouter) PendingTotal() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, waiters := range r.waiters {
		n += len(waiters)
	}
	return n
}

// Wait suspends until f settles. When ctx ends first the waiter is deregistered.
func (r *ChannelRouter) Wait(ctx context.Context, f *Future) (any, error) {
	select {
	case <-f.Done():
		return f.Result()
	case <-ctx.Done():
		r.Deregister(f)
		// it may have settled while we were leaving
		select {
		case <-f.Done():
			return f.Result()
		default:
		}
		return nil, ctx.Err()
	}
}
