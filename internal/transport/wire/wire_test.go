package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/threadline/internal/core/messaging"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    messaging.Event
		wantErr bool
	}{
		{
			name: "new message",
			raw:  `{"new_message":{"id":7,"thread_id":5,"sender_id":2,"sender_username":"ada","content":"hi","created_at":100}}`,
			want: messaging.NewMessage{Message: messaging.Message{ID: 7, ThreadID: 5, SenderID: 2, SenderUsername: "ada", Content: "hi", CreatedAt: 100}},
		},
		{
			name: "error",
			raw:  `{"error":{"reason":"overloaded"}}`,
			want: messaging.StreamError{Reason: "overloaded"},
		},
		{
			name: "status",
			raw:  `{"status":{"connected":false,"detail":"draining"}}`,
			want: messaging.StatusChange{Connected: false, Detail: "draining"},
		},
		{
			name:    "no variant",
			raw:     `{}`,
			wantErr: true,
		},
		{
			name:    "two variants",
			raw:     `{"error":{"reason":"x"},"status":{"connected":true}}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     `nope`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEvent([]byte(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedFrame)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFrameFor_RoundTripsEvents(t *testing.T) {
	events := []messaging.Event{
		messaging.NewMessage{Message: messaging.Message{ID: 1, Content: "x"}},
		messaging.StreamError{Reason: "r"},
		messaging.StatusChange{Connected: true, Detail: "ok"},
	}

	for _, ev := range events {
		got, err := FrameFor(ev).Event()
		require.NoError(t, err)
		assert.Equal(t, ev, got)
	}
}

func TestResponse_Err(t *testing.T) {
	assert.NoError(t, Response{Success: true}.Err())
	assert.ErrorIs(t, Response{Message: "denied"}.Err(), messaging.ErrRejected)
	assert.ErrorIs(t, Response{Code: CodeThreadNotFound}.Err(), messaging.ErrThreadNotFound)
}

func TestResponse_Decode(t *testing.T) {
	resp := Response{Success: true, Result: json.RawMessage(`[{"id":1,"name":"general","participants":[],"updated_at":10}]`)}

	var threads []messaging.Thread
	require.NoError(t, resp.Decode(&threads))
	require.Len(t, threads, 1)
	assert.Equal(t, "general", threads[0].Name)

	assert.Error(t, Response{Success: true}.Decode(&threads))
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest(MethodJoin, "tok", ThreadParams{ThreadID: 3})
	require.NoError(t, err)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, MethodJoin, req.Method)
	assert.JSONEq(t, `{"thread_id":3}`, string(req.Params))

	other, err := NewRequest(MethodJoin, "tok", nil)
	require.NoError(t, err)
	assert.NotEqual(t, req.ID, other.ID)
	assert.Empty(t, other.Params)
}

func TestParse(t *testing.T) {
	payload := map[string]any{"success": true, "message": "joined", "id": "abc"}

	var resp Response
	require.NoError(t, Parse(payload, &resp))
	assert.Equal(t, messaging.Ack{Success: true, Message: "joined"}, resp.Ack())
}
