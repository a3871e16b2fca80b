package messaging

// Event is a single item delivered on a thread's live stream. It is a closed
// sum type: the only implementations are NewMessage, StreamError and
// StatusChange.
type Event interface {
	isStreamEvent()
}

// NewMessage carries a message posted to the thread.
type NewMessage struct {
	Message Message
}

// StreamError reports a server-side fault on the stream. Receiving one ends
// the current stream and triggers a reconnect.
type StreamError struct {
	Reason string
}

// StatusChange reports a connectivity change announced by the server.
type StatusChange struct {
	Connected bool
	Detail    string
}

func (NewMessage) isStreamEvent()   {}
func (StreamError) isStreamEvent()  {}
func (StatusChange) isStreamEvent() {}
