// Package threadline ties the chat server, the message cache and the thread
// subscriptions together for the CLI and TUI.
package threadline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/hay-kot/threadline/internal/cache"
	"github.com/hay-kot/threadline/internal/core/messaging"
	"github.com/hay-kot/threadline/internal/core/session"
	"github.com/hay-kot/threadline/internal/core/validate"
	"github.com/hay-kot/threadline/internal/stream"
)

const (
	defaultPageSize = 50
	updateBuffer    = 256
)

// HistoryStore persists the last known history of a thread between runs.
type HistoryStore interface {
	Save(ctx context.Context, threadID int64, msgs []messaging.Message) error
	Load(ctx context.Context, threadID int64) ([]messaging.Message, error)
}

// Status is the connection indicator for one open thread.
type Status struct {
	Live   bool
	Detail string
	Err    error
}

// Label returns the indicator text shown next to a thread.
func (s Status) Label() string {
	if s.Live {
		return "Live"
	}
	return "Offline"
}

// Option configures a Service.
type Option func(*Service)

// WithHistory persists opened threads to h and falls back to it when the
// server cannot serve history.
func WithHistory(h HistoryStore) Option {
	return func(s *Service) { s.history = h }
}

// WithActivity records subscription lifecycle events to a.
func WithActivity(a messaging.ActivityStore) Option {
	return func(s *Service) { s.activity = a }
}

// WithPageSize sets how many messages Open loads before subscribing.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithThreadFilter restricts Threads to display names matching a doublestar
// glob.
func WithThreadFilter(pattern string) Option {
	return func(s *Service) { s.filter = pattern }
}

// Service orchestrates threadline operations for one logged-in session.
type Service struct {
	client   messaging.Messenger
	streams  *stream.Manager
	sess     session.Session
	history  HistoryStore
	activity messaging.ActivityStore
	pageSize int
	filter   string
	log      zerolog.Logger

	mu      sync.Mutex
	open    map[int64]*stream.Handle
	status  map[int64]Status
	updates chan Update
}

// New creates a new Service.
func New(log zerolog.Logger, client messaging.Messenger, streams *stream.Manager, sess session.Session, opts ...Option) *Service {
	s := &Service{
		client:   client,
		streams:  streams,
		sess:     sess,
		pageSize: defaultPageSize,
		log:      log,
		open:     make(map[int64]*stream.Handle),
		status:   make(map[int64]Status),
		updates:  make(chan Update, updateBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session returns the session the service acts for.
func (s *Service) Session() session.Session {
	return s.sess
}

// Updates delivers message, status and thread list changes. The channel is
// never closed; when the consumer falls behind, updates are dropped and the
// consumer should re-read snapshots from Messages and Threads.
func (s *Service) Updates() <-chan Update {
	return s.updates
}

// RefreshThreads fetches the thread list from the server and replaces the
// cached list. It returns the filtered threads.
func (s *Service) RefreshThreads(ctx context.Context) ([]messaging.Thread, error) {
	threads, err := s.client.ListThreads(ctx, s.sess.Credential.String())
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}

	s.streams.Cache().SetThreads(threads)
	s.log.Debug().Int("count", len(threads)).Msg("refreshed threads")
	s.publish(Update{Kind: UpdateThreads})

	return s.Threads(), nil
}

// Threads returns the cached thread list, most recently active first, with
// the thread filter applied.
func (s *Service) Threads() []messaging.Thread {
	items := s.streams.Cache().Threads().Items()
	if s.filter == "" {
		return items
	}
	return FilterThreads(items, s.filter, s.sess.User.ID)
}

// Thread returns the cached thread with the given id.
func (s *Service) Thread(threadID int64) (messaging.Thread, bool) {
	return s.streams.Cache().Threads().Get(threadID)
}

// FilterThreads keeps threads whose display name matches pattern. An invalid
// pattern matches nothing.
func FilterThreads(threads []messaging.Thread, pattern string, currentUserID int64) []messaging.Thread {
	out := make([]messaging.Thread, 0, len(threads))
	for _, th := range threads {
		ok, err := doublestar.Match(pattern, th.DisplayName(currentUserID))
		if err != nil {
			return nil
		}
		if ok {
			out = append(out, th)
		}
	}
	return out
}

// Open loads the newest page of history for the thread, seeds the cache with
// it and subscribes to the live stream. Opening a thread that is already open
// replaces its subscription.
func (s *Service) Open(ctx context.Context, threadID int64) (cache.Messages, error) {
	log := s.log.With().Int64("thread_id", threadID).Logger()

	page, err := s.client.ListMessages(ctx, s.sess.Credential.String(), threadID, s.pageSize, 0)
	if err != nil {
		cached, ok := s.cachedPage(ctx, threadID)
		if !ok || errors.Is(err, messaging.ErrThreadNotFound) {
			return cache.Messages{}, fmt.Errorf("load history: %w", err)
		}
		log.Warn().Err(err).Msg("history unavailable, using cached copy")
		page = cached
	}

	snapshot := s.streams.Cache().Load(threadID, page)
	s.saveHistory(ctx, threadID, snapshot)

	// A replaced handle is unowned before it settles, so its release is quiet.
	s.mu.Lock()
	s.status[threadID] = Status{}
	delete(s.open, threadID)
	s.mu.Unlock()

	handle := s.streams.Subscribe(s.sess.Credential, threadID, s.handlers(threadID))

	s.mu.Lock()
	s.open[threadID] = handle
	s.mu.Unlock()

	go s.release(threadID, handle)

	s.record(messaging.Activity{Type: messaging.ActivityJoin, ThreadID: threadID})
	log.Info().Int("messages", snapshot.Len()).Msg("opened thread")

	return snapshot, nil
}

// Close stops the thread's subscription and saves its history. The returned
// channel closes once the server has been told to leave.
func (s *Service) Close(ctx context.Context, threadID int64) <-chan struct{} {
	s.mu.Lock()
	handle, ok := s.open[threadID]
	delete(s.open, threadID)
	delete(s.status, threadID)
	s.mu.Unlock()

	if !ok {
		return s.streams.Unsubscribe(threadID)
	}

	s.saveHistory(ctx, threadID, s.streams.Cache().Messages(threadID))
	s.record(messaging.Activity{Type: messaging.ActivityLeave, ThreadID: threadID})

	return handle.Stop()
}

// release waits for the subscription behind h to finish. When it ended on
// its own rather than through Close, Shutdown or a newer Open, the thread is
// no longer open and an UpdateEnded carries its final status.
func (s *Service) release(threadID int64, h *stream.Handle) {
	<-h.Done()

	s.mu.Lock()
	owned := s.open[threadID] == h
	if owned {
		delete(s.open, threadID)
	}
	st := s.status[threadID]
	s.mu.Unlock()

	if !owned {
		return
	}

	s.log.Info().Int64("thread_id", threadID).Str("detail", st.Detail).Msg("subscription ended")
	s.publish(Update{Kind: UpdateEnded, ThreadID: threadID, Status: st, Err: st.Err})
}

// Messages returns the current snapshot for the thread.
func (s *Service) Messages(threadID int64) cache.Messages {
	return s.streams.Cache().Messages(threadID)
}

// Cached returns the history saved by a previous run.
func (s *Service) Cached(ctx context.Context, threadID int64) ([]messaging.Message, error) {
	if s.history == nil {
		return nil, fmt.Errorf("%w: %d", messaging.ErrThreadNotFound, threadID)
	}
	return s.history.Load(ctx, threadID)
}

// History fetches one page of history straight from the server, newest
// first, without touching the cache.
func (s *Service) History(ctx context.Context, threadID int64, limit, offset int) ([]messaging.Message, error) {
	if limit <= 0 {
		limit = s.pageSize
	}
	if offset < 0 {
		offset = 0
	}

	msgs, err := s.client.ListMessages(ctx, s.sess.Credential.String(), threadID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// Send posts content to the thread. The stored message goes through the same
// merge path as streamed messages, so the echo from the stream is absorbed.
func (s *Service) Send(ctx context.Context, threadID int64, content string) (messaging.Message, error) {
	if err := validate.MessageContent(content); err != nil {
		return messaging.Message{}, err
	}

	msg, err := s.client.SendMessage(ctx, s.sess.Credential.String(), threadID, content)
	if err != nil {
		return messaging.Message{}, fmt.Errorf("send message: %w", err)
	}

	snapshot := s.streams.Cache().Merge(msg)
	s.record(messaging.Activity{Type: messaging.ActivitySend, ThreadID: threadID, MessageID: msg.ID})
	s.publish(Update{Kind: UpdateMessage, ThreadID: threadID, Message: msg, Messages: snapshot})

	return msg, nil
}

// CreateThread creates a thread with the given participants. The current
// user is added by the server.
func (s *Service) CreateThread(ctx context.Context, usernames []string, name string) (messaging.Thread, error) {
	participants, err := validate.Participants(usernames)
	if err != nil {
		return messaging.Thread{}, err
	}

	th, err := s.client.CreateThread(ctx, s.sess.Credential.String(), participants, name)
	if err != nil {
		return messaging.Thread{}, fmt.Errorf("create thread: %w", err)
	}

	s.streams.Cache().UpsertThread(th)
	s.log.Info().Int64("thread_id", th.ID).Strs("participants", participants).Msg("created thread")
	s.publish(Update{Kind: UpdateThreads, ThreadID: th.ID})

	return th, nil
}

// Status returns the connection indicator for the thread. Threads that are
// not open are offline.
func (s *Service) Status(threadID int64) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[threadID]
}

// IsOpen reports whether the thread has a subscription owned by the service.
func (s *Service) IsOpen(threadID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.open[threadID]
	return ok
}

// Shutdown saves the history of every open thread and stops all
// subscriptions, waiting until ctx is done for the leaves to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.open))
	for id := range s.open {
		ids = append(ids, id)
	}
	s.open = make(map[int64]*stream.Handle)
	s.status = make(map[int64]Status)
	s.mu.Unlock()

	for _, id := range ids {
		s.saveHistory(ctx, id, s.streams.Cache().Messages(id))
		s.record(messaging.Activity{Type: messaging.ActivityLeave, ThreadID: id})
	}

	s.log.Debug().Int("threads", len(ids)).Msg("stopping subscriptions")
	return s.streams.StopAll(ctx)
}

func (s *Service) handlers(threadID int64) stream.Handlers {
	return stream.Handlers{
		OnMessage: func(msg messaging.Message, snapshot cache.Messages) {
			s.publish(Update{Kind: UpdateMessage, ThreadID: threadID, Message: msg, Messages: snapshot})
		},
		OnStatus: func(connected bool, detail string) {
			st := Status{Live: connected, Detail: detail}
			if !s.setStatus(threadID, st) {
				return
			}
			s.record(messaging.Activity{Type: messaging.ActivityStatus, ThreadID: threadID, Detail: st.Label()})
			s.publish(Update{Kind: UpdateStatus, ThreadID: threadID, Status: st})
		},
		OnError: func(err error) {
			st := Status{Live: false, Detail: err.Error(), Err: err}
			if !s.setStatus(threadID, st) {
				return
			}

			kind := messaging.ActivityError
			var fault *stream.StreamFaultError
			if errors.As(err, &fault) {
				kind = messaging.ActivityReconnect
			}
			s.record(messaging.Activity{Type: kind, ThreadID: threadID, Detail: err.Error()})
			s.publish(Update{Kind: UpdateError, ThreadID: threadID, Status: st, Err: err})
		},
	}
}

// setStatus stores st for an open thread. Callbacks racing a Close are
// dropped. Open seeds the entry before subscribing.
func (s *Service) setStatus(threadID int64, st Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.status[threadID]; !ok {
		return false
	}
	s.status[threadID] = st
	return true
}

func (s *Service) publish(u Update) {
	select {
	case s.updates <- u:
	default:
		s.log.Debug().Str("kind", u.Kind.String()).Int64("thread_id", u.ThreadID).Msg("update dropped, consumer behind")
	}
}

// Activity returns recorded activity, newest first. threadID 0 returns
// every thread; limit 0 returns everything.
func (s *Service) Activity(threadID int64, limit int) ([]messaging.Activity, error) {
	if s.activity == nil {
		return nil, nil
	}

	all, err := s.activity.List(0)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}

	out := make([]messaging.Activity, 0, len(all))
	for _, a := range all {
		if threadID != 0 && a.ThreadID != threadID {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Service) record(a messaging.Activity) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(a); err != nil {
		s.log.Warn().Err(err).Str("type", string(a.Type)).Msg("failed to record activity")
	}
}

func (s *Service) cachedPage(ctx context.Context, threadID int64) ([]messaging.Message, bool) {
	if s.history == nil {
		return nil, false
	}
	msgs, err := s.history.Load(ctx, threadID)
	if err != nil {
		return nil, false
	}

	// Stored chronologically; pages are newest first.
	page := make([]messaging.Message, len(msgs))
	for i, m := range msgs {
		page[len(msgs)-1-i] = m
	}
	return page, true
}

func (s *Service) saveHistory(ctx context.Context, threadID int64, snapshot cache.Messages) {
	if s.history == nil || snapshot.Len() == 0 {
		return
	}
	if err := s.history.Save(ctx, threadID, snapshot.Items()); err != nil {
		s.log.Warn().Err(err).Int64("thread_id", threadID).Msg("failed to save history")
	}
}
