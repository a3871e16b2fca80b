package messaging

import (
	"context"
	"errors"
)

// Sentinel errors for messaging operations.
var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrRejected       = errors.New("request rejected")
)

// Ack is the result of a Join or Leave handshake.
type Ack struct {
	Success bool
	Message string
}

// EventStream is a live, cancelable source of stream events for one thread.
type EventStream interface {
	// Recv blocks until the next event arrives. It returns io.EOF when the
	// server closes the stream cleanly and the context error once the context
	// passed to OpenMessageStream is canceled.
	Recv() (Event, error)
	// Close releases the stream. It may be called more than once.
	Close() error
}

// Transport is the RPC contract used by thread subscriptions.
type Transport interface {
	// Join asks the server to register the caller on the thread. A response
	// with Success=false is a rejection, not a transport error.
	Join(ctx context.Context, token string, threadID int64) (Ack, error)
	// Leave deregisters the caller from the thread.
	Leave(ctx context.Context, token string, threadID int64) (Ack, error)
	// OpenMessageStream opens the live event stream for the thread. Canceling
	// ctx aborts any blocked Recv.
	OpenMessageStream(ctx context.Context, token string, threadID int64) (EventStream, error)
}

// Messenger is the request/response side of the chat service.
type Messenger interface {
	// ListThreads returns the caller's threads, most recently updated first.
	ListThreads(ctx context.Context, token string) ([]Thread, error)
	// ListMessages returns one page of thread history, newest first.
	ListMessages(ctx context.Context, token string, threadID int64, limit, offset int) ([]Message, error)
	// SendMessage posts content to the thread and returns the stored message.
	SendMessage(ctx context.Context, token string, threadID int64, content string) (Message, error)
	// CreateThread creates a thread with the given participants. The caller is
	// always added by the server.
	CreateThread(ctx context.Context, token string, usernames []string, name string) (Thread, error)
}

// Client combines both halves of the chat service; transport adapters
// implement it.
type Client interface {
	Transport
	Messenger
	Close() error
}
