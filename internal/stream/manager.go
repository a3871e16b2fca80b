package stream

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/hay-kot/threadline/internal/cache"
	"github.com/hay-kot/threadline/internal/core/messaging"
	"github.com/hay-kot/threadline/internal/core/session"
)

// Handlers receive subscription output from the Manager. OnMessage is given
// the message and the thread's snapshot after the merge.
type Handlers struct {
	OnMessage func(msg messaging.Message, snapshot cache.Messages)
	OnStatus  func(connected bool, detail string)
	OnError   func(err error)
}

// Manager is the entry point for live thread subscriptions. It owns a
// Registry for its lifetime; create one per logged in session and call
// StopAll on logout.
type Manager struct {
	transport messaging.Transport
	policy    Policy
	cache     *cache.Store
	registry  *Registry
	log       zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithPolicy overrides DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(m *Manager) { m.policy = p }
}

// WithCache shares an existing cache store with the manager.
func WithCache(c *cache.Store) Option {
	return func(m *Manager) { m.cache = c }
}

// NewManager creates a Manager using transport for all subscriptions.
func NewManager(log zerolog.Logger, transport messaging.Transport, opts ...Option) *Manager {
	m := &Manager{
		transport: transport,
		policy:    DefaultPolicy(),
		registry:  NewRegistry(),
		log:       log,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cache == nil {
		m.cache = cache.NewStore()
	}
	return m
}

// Cache returns the store new messages are merged into.
func (m *Manager) Cache() *cache.Store {
	return m.cache
}

// Subscribe starts a live subscription for threadID, replacing any existing
// one. Every streamed message is merged into the cache before OnMessage runs.
func (m *Manager) Subscribe(cred session.Credential, threadID int64, h Handlers) *Handle {
	callbacks := Callbacks{
		OnMessage: func(msg messaging.Message) {
			snap := m.cache.Merge(msg)
			if h.OnMessage != nil {
				h.OnMessage(msg, snap)
			}
		},
		OnStatus: h.OnStatus,
		OnError:  h.OnError,
	}

	sub := NewSubscription(m.log, m.transport, cred.String(), threadID, m.policy, callbacks)
	if old := m.registry.Subscribe(sub); old != nil {
		m.log.Debug().Int64("thread_id", threadID).Msg("replaced subscription")
	}

	return &Handle{sub: sub, registry: m.registry}
}

// Unsubscribe stops the subscription for threadID, if any.
func (m *Manager) Unsubscribe(threadID int64) <-chan struct{} {
	return m.registry.Stop(threadID)
}

// StopAll tears down every subscription and waits for them to settle or for
// ctx to end. Subscriptions keep the credential they were started with, so
// none is needed here.
func (m *Manager) StopAll(ctx context.Context) error {
	m.log.Debug().Int("count", m.registry.Len()).Msg("stopping all subscriptions")
	return m.registry.StopAll(ctx)
}

// IsActive reports whether threadID has a live subscription.
func (m *Manager) IsActive(threadID int64) bool {
	return m.registry.IsActive(threadID)
}

// State returns the state of the subscription for threadID, or StateStopped
// when there is none.
func (m *Manager) State(threadID int64) State {
	sub, ok := m.registry.Get(threadID)
	if !ok {
		return StateStopped
	}
	return sub.State()
}

// Handle controls one subscription returned by Manager.Subscribe.
type Handle struct {
	sub      *Subscription
	registry *Registry
}

// ThreadID returns the subscribed thread.
func (h *Handle) ThreadID() int64 {
	return h.sub.ThreadID()
}

// State returns the subscription state.
func (h *Handle) State() State {
	return h.sub.State()
}

// Stop stops this subscription. It is idempotent and never stops a newer
// subscription that replaced this one. The returned channel closes once the
// Leave attempt has settled.
func (h *Handle) Stop() <-chan struct{} {
	h.registry.remove(h.sub.ThreadID(), h.sub)
	return h.sub.Stop()
}

// Done is closed once the subscription has fully stopped.
func (h *Handle) Done() <-chan struct{} {
	return h.sub.Done()
}
