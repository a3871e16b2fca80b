// Package wire defines the JSON frames shared by the websocket and socket.io
// transports.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hay-kot/threadline/internal/core/messaging"
)

// Method names a request/response call.
type Method string

const (
	MethodJoin         Method = "join"
	MethodLeave        Method = "leave"
	MethodListThreads  Method = "list_threads"
	MethodListMessages Method = "list_messages"
	MethodSendMessage  Method = "send_message"
	MethodCreateThread Method = "create_thread"
)

// CodeThreadNotFound is the Response.Code for an unknown thread.
const CodeThreadNotFound = "thread_not_found"

// ErrMalformedFrame is returned for stream frames that do not carry exactly
// one event.
var ErrMalformedFrame = errors.New("malformed stream frame")

// Request is a single call sent to the server.
type Request struct {
	ID     string          `json:"id"`
	Method Method          `json:"method"`
	Token  string          `json:"token"`
	Params json.RawMessage `json:"params,omitempty"`
}

// NewRequest builds a request with a fresh id. params may be nil.
func NewRequest(method Method, token string, params any) (Request, error) {
	req := Request{
		ID:     uuid.NewString(),
		Method: method,
		Token:  token,
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return Request{}, fmt.Errorf("encode %s params: %w", method, err)
		}
		req.Params = raw
	}
	return req, nil
}

// Response answers a Request with the same ID.
type Response struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// Ack converts the response into a handshake result.
func (r Response) Ack() messaging.Ack {
	return messaging.Ack{Success: r.Success, Message: r.Message}
}

// Err returns the error a failed response stands for, or nil.
func (r Response) Err() error {
	if r.Success {
		return nil
	}
	if r.Code == CodeThreadNotFound {
		return fmt.Errorf("%w: %s", messaging.ErrThreadNotFound, r.Message)
	}
	return fmt.Errorf("%w: %s", messaging.ErrRejected, r.Message)
}

// Decode unmarshals the result into v after checking for failure.
func (r Response) Decode(v any) error {
	if err := r.Err(); err != nil {
		return err
	}
	if len(r.Result) == 0 {
		return errors.New("empty result")
	}
	if err := json.Unmarshal(r.Result, v); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// ThreadParams addresses a single thread.
type ThreadParams struct {
	ThreadID int64 `json:"thread_id"`
}

// ListMessagesParams selects one page of history.
type ListMessagesParams struct {
	ThreadID int64 `json:"thread_id"`
	Limit    int   `json:"limit"`
	Offset   int   `json:"offset"`
}

// SendMessageParams posts content to a thread.
type SendMessageParams struct {
	ThreadID int64  `json:"thread_id"`
	Content  string `json:"content"`
}

// CreateThreadParams creates a thread with the given participants.
type CreateThreadParams struct {
	Usernames []string `json:"usernames"`
	Name      string   `json:"name,omitempty"`
}

// Frame is one item on a thread stream. Exactly one field is set.
type Frame struct {
	NewMessage *messaging.Message `json:"new_message,omitempty"`
	Error      *ErrorFrame        `json:"error,omitempty"`
	Status     *StatusFrame       `json:"status,omitempty"`
}

type ErrorFrame struct {
	Reason string `json:"reason"`
}

type StatusFrame struct {
	Connected bool   `json:"connected"`
	Detail    string `json:"detail,omitempty"`
}

// Event converts the frame to its stream event.
func (f Frame) Event() (messaging.Event, error) {
	set := 0
	for _, ok := range []bool{f.NewMessage != nil, f.Error != nil, f.Status != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: %d variants set", ErrMalformedFrame, set)
	}

	switch {
	case f.NewMessage != nil:
		return messaging.NewMessage{Message: *f.NewMessage}, nil
	case f.Error != nil:
		return messaging.StreamError{Reason: f.Error.Reason}, nil
	default:
		return messaging.StatusChange{Connected: f.Status.Connected, Detail: f.Status.Detail}, nil
	}
}

// FrameFor wraps an event for sending.
func FrameFor(ev messaging.Event) Frame {
	switch e := ev.(type) {
	case messaging.NewMessage:
		m := e.Message
		return Frame{NewMessage: &m}
	case messaging.StreamError:
		return Frame{Error: &ErrorFrame{Reason: e.Reason}}
	case messaging.StatusChange:
		return Frame{Status: &StatusFrame{Connected: e.Connected, Detail: e.Detail}}
	default:
		return Frame{}
	}
}

// DecodeEvent parses a raw JSON frame.
func DecodeEvent(data []byte) (messaging.Event, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return f.Event()
}

// Parse converts a loosely typed payload, such as a decoded socket.io
// argument, into v.
func Parse(payload any, v any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
