// Package wsrpc implements the chat transport over plain websockets. Each
// request/response call dials its own short lived connection to /v1/rpc;
// each thread stream holds a connection to /v1/threads/{id}/stream.
package wsrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hay-kot/threadline/internal/core/messaging"
	"github.com/hay-kot/threadline/internal/transport/wire"
)

// Client implements messaging.Client over websockets.
type Client struct {
	base   *url.URL
	dialer *websocket.Dialer
	log    zerolog.Logger
}

var _ messaging.Client = (*Client)(nil)

// New creates a Client for serverURL. http and https URLs are mapped to ws
// and wss.
func New(log zerolog.Logger, serverURL string) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	return &Client{
		base:   u,
		dialer: websocket.DefaultDialer,
		log:    log,
	}, nil
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path += path
	return u.String()
}

// withConn dials path, closes the connection when ctx ends, and hands it to
// fn.
func (c *Client) withConn(ctx context.Context, path string, header http.Header, fn func(conn *websocket.Conn) error) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.endpoint(path), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %s: %w", path, resp.Status, err)
		}
		return fmt.Errorf("dial %s: %w", path, err)
	}
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := fn(conn); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (c *Client) call(ctx context.Context, method wire.Method, token string, params any) (wire.Response, error) {
	req, err := wire.NewRequest(method, token, params)
	if err != nil {
		return wire.Response{}, err
	}

	var resp wire.Response
	err = c.withConn(ctx, "/v1/rpc", nil, func(conn *websocket.Conn) error {
		if err := conn.WriteJSON(req); err != nil {
			return fmt.Errorf("write %s: %w", method, err)
		}
		if err := conn.ReadJSON(&resp); err != nil {
			return fmt.Errorf("read %s: %w", method, err)
		}
		if resp.ID != req.ID {
			return fmt.Errorf("%s: response id %q does not match request", method, resp.ID)
		}
		return nil
	})
	if err != nil {
		return wire.Response{}, err
	}

	c.log.Debug().Str("method", string(method)).Bool("success", resp.Success).Msg("rpc")
	return resp, nil
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

// OpenMessageStream dials the thread's stream endpoint. The connection is
// closed when ctx ends, which unblocks Recv.
func (c *Client) OpenMessageStream(ctx context.Context, token string, threadID int64) (messaging.EventStream, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	path := fmt.Sprintf("/v1/threads/%d/stream", threadID)
	conn, resp, err := c.dialer.DialContext(ctx, c.endpoint(path), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("open stream: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("open stream: %w", err)
	}

	s := &eventStream{ctx: ctx, conn: conn}
	s.stop = context.AfterFunc(ctx, func() { _ = conn.Close() })
	return s, nil
}

// Close is a no-op; connections are per call or owned by streams.
func (c *Client) Close() error {
	return nil
}

type eventStream struct {
	ctx       context.Context
	conn      *websocket.Conn
	stop      func() bool
	closeOnce sync.Once
}

func (s *eventStream) Recv() (messaging.Event, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		if ctxErr := s.ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}

	ev, err := wire.DecodeEvent(data)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *eventStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.stop()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteMessage(websocket.CloseMessage, msg)
		err = s.conn.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	})
	return err
}
