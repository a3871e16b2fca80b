package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hay-kot/threadline/internal/core/config"
	"github.com/hay-kot/threadline/internal/core/messaging"
	"github.com/hay-kot/threadline/internal/core/session"
	"github.com/hay-kot/threadline/internal/store/jsonfile"
	"github.com/hay-kot/threadline/internal/stream"
	"github.com/hay-kot/threadline/internal/threadline"
	"github.com/hay-kot/threadline/internal/transport/socketio"
	"github.com/hay-kot/threadline/internal/transport/wsrpc"
)

// shutdownTimeout bounds the Leave calls made when a command exits.
const shutdownTimeout = 5 * time.Second

// App bundles the collaborators of a logged-in command.
type App struct {
	Service  *threadline.Service
	History  *jsonfile.MsgStore
	Activity *jsonfile.ActivityStore

	client messaging.Client
}

// Close leaves every open thread and releases the transport.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := a.Service.Shutdown(ctx)
	return errors.Join(err, a.client.Close())
}

func sessionStore(cfg *config.Config) *jsonfile.Store {
	return jsonfile.New(cfg.SessionFile())
}

func historyStore(cfg *config.Config) *jsonfile.MsgStore {
	return jsonfile.NewMsgStore(cfg.ThreadsDir()).WithMaxMessages(cfg.History.CacheLimit)
}

func activityStore(cfg *config.Config) *jsonfile.ActivityStore {
	return jsonfile.NewActivityStore(cfg.ActivityDir())
}

// newClient builds the transport selected by server.transport.
func newClient(cfg *config.Config, logger zerolog.Logger) (messaging.Client, error) {
	logger = logger.With().Str("transport", cfg.Server.Transport).Logger()

	switch cfg.Server.Transport {
	case config.TransportSocketIO:
		return socketio.New(logger, cfg.Server.URL, cfg.Server.SocketIOPath), nil
	case config.TransportWebSocket:
		return wsrpc.New(logger, cfg.Server.URL)
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Server.Transport)
	}
}

// loadSession returns the stored session, refusing expired credentials.
func loadSession(ctx context.Context, store session.Store) (session.Session, error) {
	sess, err := store.Load(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return session.Session{}, fmt.Errorf("%w: run 'threadline login --token <token>'", err)
		}
		return session.Session{}, fmt.Errorf("load session: %w", err)
	}

	if sess.Credential.Expired(time.Now()) {
		return session.Session{}, fmt.Errorf("session token expired: run 'threadline login --token <token>'")
	}
	return sess, nil
}

// connect wires the transport, stream manager and service for the stored
// session. The caller must Close the returned App.
func connect(ctx context.Context, flags *Flags) (*App, error) {
	if flags.Config == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	cfg := flags.Config

	sess, err := loadSession(ctx, sessionStore(cfg))
	if err != nil {
		return nil, err
	}

	client, err := newClient(cfg, log.With().Str("component", "transport").Logger())
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	var (
		history  = historyStore(cfg)
		activity = activityStore(cfg)
		streams  = stream.NewManager(
			log.With().Str("component", "stream").Logger(),
			client,
			stream.WithPolicy(streamPolicy(cfg.Stream)),
		)
	)

	svc := threadline.New(
		log.With().Str("component", "threadline").Logger(),
		client,
		streams,
		sess,
		threadline.WithHistory(history),
		threadline.WithActivity(activity),
		threadline.WithPageSize(cfg.History.PageSize),
		threadline.WithThreadFilter(cfg.TUI.ThreadFilter),
	)

	return &App{
		Service:  svc,
		History:  history,
		Activity: activity,
		client:   client,
	}, nil
}

// streamPolicy maps the stream section of the config onto the subscription
// policy.
func streamPolicy(c config.StreamConfig) stream.Policy {
	return stream.Policy{
		ReconnectDelay:    c.ReconnectDelay,
		MaxReconnectDelay: c.MaxReconnectDelay,
		Multiplier:        c.BackoffMultiplier,
		Jitter:            c.Jitter,
		MaxAttempts:       c.MaxAttempts,
		JoinTimeout:       c.JoinTimeout,
		LeaveTimeout:      c.LeaveTimeout,
	}
}
