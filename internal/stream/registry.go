package stream

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Registry tracks at most one subscription per thread id.
type Registry struct {
	mu   sync.Mutex
	subs map[int64]*Subscription
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[int64]*Subscription)}
}

// Subscribe installs sub as the subscription for its thread and starts it.
// Any previous subscription for the thread is told to stop first; its Leave
// runs independently of the new Join. The replaced subscription, if any, is
// returned. A subscription that stops on its own removes its entry.
func (r *Registry) Subscribe(sub *Subscription) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := sub.ThreadID()
	old := r.subs[id]
	if old != nil {
		old.Stop()
	}

	sub.active = func() bool { return r.owns(id, sub) }
	sub.release = func() { r.remove(id, sub) }
	r.subs[id] = sub
	sub.Start()

	return old
}

// Stop removes and stops the subscription for threadID. The returned channel
// closes once it has settled; it is already closed when nothing was
// subscribed.
func (r *Registry) Stop(threadID int64) <-chan struct{} {
	r.mu.Lock()
	sub, ok := r.subs[threadID]
	delete(r.subs, threadID)
	r.mu.Unlock()

	if !ok {
		return closed
	}
	return sub.Stop()
}

// StopAll stops and removes every subscription and waits for each to settle
// or for ctx to end.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[int64]*Subscription)
	r.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, sub := range subs {
		done := sub.Stop()
		g.Go(func() error {
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	return g.Wait()
}

// IsActive reports whether threadID has a subscription that has not stopped.
func (r *Registry) IsActive(threadID int64) bool {
	r.mu.Lock()
	sub, ok := r.subs[threadID]
	r.mu.Unlock()

	if !ok {
		return false
	}
	state := sub.State()
	return state != StateStopped && state != StateLeaving
}

// Get returns the current subscription for threadID.
func (r *Registry) Get(threadID int64) (*Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[threadID]
	return sub, ok
}

// Len returns the number of registered subscriptions. Subscriptions that
// stopped on their own have already removed themselves.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// remove deletes sub only if it is still the registered subscription, so a
// stale handle cannot stop its replacement.
func (r *Registry) remove(threadID int64, sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs[threadID] == sub {
		delete(r.subs, threadID)
	}
}

func (r *Registry) owns(threadID int64, sub *Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs[threadID] == sub
}

var closed = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()
