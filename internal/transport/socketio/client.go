// Package socketio implements the chat transport over a socket.io
// connection. Calls are emitted with an ack; every thread stream is fed by
// the single "thread_event" channel of the shared socket.
package socketio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	socket "github.com/zishang520/socket.io/clients/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/hay-kot/threadline/internal/core/messaging"
	"github.com/hay-kot/threadline/internal/transport/wire"
)

const (
	eventRPC         = "rpc"
	eventThreadEvent = "thread_event"

	// The server closed the socket on purpose.
	reasonServerDisconnect = "io server disconnect"
)

// ErrNotConnected is returned when no socket could be established.
var ErrNotConnected = errors.New("socket not connected")

// Client implements messaging.Client over socket.io.
type Client struct {
	url  string
	path string
	log  zerolog.Logger

	connMu sync.Mutex
	sock   *socket.Socket
	token  string

	mu      sync.Mutex
	streams map[int64]map[*eventStream]struct{}
}

var _ messaging.Client = (*Client)(nil)

// New creates a Client. path is the socket.io endpoint path, for example
// "/socket.io".
func New(log zerolog.Logger, serverURL, path string) *Client {
	return &Client{
		url:     serverURL,
		path:    path,
		log:     log,
		streams: make(map[int64]map[*eventStream]struct{}),
	}
}

// socketFor returns a socket authenticated with token, replacing the current
// one when the token changed.
func (c *Client) socketFor(token string) (*socket.Socket, error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.sock != nil && c.token == token {
		return c.sock, nil
	}
	if c.sock != nil {
		c.sock.Disconnect()
		c.sock = nil
	}

	opts := socket.DefaultOptions()
	opts.SetPath(c.path)
	opts.SetTransports(types.NewSet(socket.Polling, socket.WebSocket))
	opts.SetAuth(map[string]any{"token": token})

	sock, err := socket.Connect(c.url, opts)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	sock.On(types.EventName("connect"), func(args ...any) {
		c.log.Debug().Str("socket_id", string(sock.Id())).Msg("socket connected")
	})

	sock.On(types.EventName("disconnect"), func(args ...any) {
		reason := ""
		if len(args) > 0 {
			reason, _ = args[0].(string)
		}
		c.log.Debug().Str("reason", reason).Msg("socket disconnected")
		c.broadcastDisconnect(reason)
	})

	sock.On(types.EventName("connect_error"), func(args ...any) {
		if len(args) > 0 {
			c.log.Warn().Interface("error", args[0]).Msg("socket connect error")
		}
	})

	sock.On(types.EventName(eventThreadEvent), func(args ...any) {
		if len(args) == 0 {
			return
		}
		var env struct {
			ThreadID int64 `json:"thread_id"`
			wire.Frame
		}
		if err := wire.Parse(args[0], &env); err != nil {
			c.log.Warn().Err(err).Msg("bad thread event")
			return
		}
		c.dispatch(env.ThreadID, env.Frame)
	})

	c.sock = sock
	c.token = token
	return sock, nil
}

func (c *Client) call(ctx context.Context, method wire.Method, token string, params any) (wire.Response, error) {
	req, err := wire.NewRequest(method, token, params)
	if err != nil {
		return wire.Response{}, err
	}

	var payload map[string]any
	if err := wire.Parse(req, &payload); err != nil {
		return wire.Response{}, err
	}

	sock, err := c.socketFor(token)
	if err != nil {
		return wire.Response{}, err
	}

	type result struct {
		resp wire.Response
		err  error
	}
	ch := make(chan result, 1)

	sock.Emit(eventRPC, payload, func(args []any, err error) {
		if err != nil {
			ch <- result{err: err}
			return
		}
		if len(args) == 0 {
			ch <- result{err: errors.New("missing ack")}
			return
		}
		var resp wire.Response
		if err := wire.Parse(args[0], &resp); err != nil {
			ch <- result{err: fmt.Errorf("decode ack: %w", err)}
			return
		}
		ch <- result{resp: resp}
	})

	select {
	case r := <-ch:
		if r.err != nil {
			return wire.Response{}, fmt.Errorf("%s: %w", method, r.err)
		}
		return r.resp, nil
	case <-ctx.Done():
		return wire.Response{}, ctx.Err()
	}
}

func (c *Client) Join(ctx context.Context, token string, threadID int64) (messaging.Ack, error) {
	resp, err := c.call(ctx, wire.MethodJoin, token, wire.ThreadParams{ThreadID: threadID})
	if err != nil {
		return messaging.Ack{}, err
	}
	return resp.Ack(), nil
}

func (c *Client) Leave(ctx context.Context, token string, threadID int64) (messaging.Ack, error) {
	resp, err := c.call(ctx, wire.MethodLeave, token, wire.ThreadParams{ThreadID: threadID})
	if err != nil {
		return messaging.Ack{}, err
	}
	return resp.Ack(), nil
}

func (c *Client) ListThreads(ctx context.Context, token string) ([]messaging.Thread, error) {
	resp, err := c.call(ctx, wire.MethodListThreads, token, nil)
	if err != nil {
		return nil, err
	}
	var threads []messaging.Thread
	if err := resp.Decode(&threads); err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	return threads, nil
}

func (c *Client) ListMessages(ctx context.Context, token string, threadID int64, limit, offset int) ([]messaging.Message, error) {
	resp, err := c.call(ctx, wire.MethodListMessages, token, wire.ListMessagesParams{
		ThreadID: threadID,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, err
	}
	var msgs []messaging.Message
	if err := resp.Decode(&msgs); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func (c *Client) SendMessage(ctx context.Context, token string, threadID int64, content string) (messaging.Message, error) {
	resp, err := c.call(ctx, wire.MethodSendMessage, token, wire.SendMessageParams{ThreadID: threadID, Content: content})
	if err != nil {
		return messaging.Message{}, err
	}
	var msg messaging.Message
	if err := resp.Decode(&msg); err != nil {
		return messaging.Message{}, fmt.Errorf("send message: %w", err)
	}
	return msg, nil
}

func (c *Client) CreateThread(ctx context.Context, token string, usernames []string, name string) (messaging.Thread, error) {
	resp, err := c.call(ctx, wire.MethodCreateThread, token, wire.CreateThreadParams{Usernames: usernames, Name: name})
	if err != nil {
		return messaging.Thread{}, err
	}
	var th messaging.Thread
	if err := resp.Decode(&th); err != nil {
		return messaging.Thread{}, fmt.Errorf("create thread: %w", err)
	}
	return th, nil
}

// OpenMessageStream registers a local stream for threadID. Events arrive
// once the server has accepted a Join for the thread on this socket.
func (c *Client) OpenMessageStream(ctx context.Context, token string, threadID int64) (messaging.EventStream, error) {
	sock, err := c.socketFor(token)
	if err != nil {
		return nil, err
	}
	if !sock.Connected() {
		return nil, ErrNotConnected
	}

	s := newEventStream(ctx, func(s *eventStream) { c.unregister(threadID, s) })

	c.mu.Lock()
	if c.streams[threadID] == nil {
		c.streams[threadID] = make(map[*eventStream]struct{})
	}
	c.streams[threadID][s] = struct{}{}
	c.mu.Unlock()

	return s, nil
}

// Close disconnects the socket and ends every open stream.
func (c *Client) Close() error {
	c.connMu.Lock()
	if c.sock != nil {
		c.sock.Disconnect()
		c.sock = nil
	}
	c.token = ""
	c.connMu.Unlock()

	c.broadcastDisconnect(reasonServerDisconnect)
	return nil
}

func (c *Client) dispatch(threadID int64, f wire.Frame) {
	ev, err := f.Event()

	c.mu.Lock()
	defer c.mu.Unlock()
	for s := range c.streams[threadID] {
		s.push(ev, err)
	}
}

func (c *Client) broadcastDisconnect(reason string) {
	err := fmt.Errorf("socket disconnected: %s", reason)
	if reason == reasonServerDisconnect {
		err = io.EOF
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, set := range c.streams {
		for s := range set {
			s.push(nil, err)
		}
	}
}

func (c *Client) unregister(threadID int64, s *eventStream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.streams[threadID], s)
	if len(c.streams[threadID]) == 0 {
		delete(c.streams, threadID)
	}
}
