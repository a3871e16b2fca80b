package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestCredential_Expired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{
			name:  "future expiry",
			token: signToken(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()}),
			want:  false,
		},
		{
			name:  "past expiry",
			token: signToken(t, jwt.MapClaims{"exp": now.Add(-time.Hour).Unix()}),
			want:  true,
		},
		{
			name:  "no exp claim",
			token: signToken(t, jwt.MapClaims{"user_id": 7}),
			want:  false,
		},
		{
			name:  "opaque token",
			token: "not-a-jwt",
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Credential(tt.token).Expired(now))
		})
	}
}

func TestCredential_UserID(t *testing.T) {
	t.Run("user_id claim", func(t *testing.T) {
		id, ok := Credential(signToken(t, jwt.MapClaims{"user_id": 42})).UserID()
		require.True(t, ok)
		assert.Equal(t, int64(42), id)
	})

	t.Run("numeric sub claim", func(t *testing.T) {
		id, ok := Credential(signToken(t, jwt.MapClaims{"sub": "9"})).UserID()
		require.True(t, ok)
		assert.Equal(t, int64(9), id)
	})

	t.Run("missing", func(t *testing.T) {
		_, ok := Credential(signToken(t, jwt.MapClaims{"name": "x"})).UserID()
		assert.False(t, ok)
	})
}

func TestNew(t *testing.T) {
	t.Run("empty token", func(t *testing.T) {
		_, err := New("   ", 1, "alice")
		assert.Error(t, err)
	})

	t.Run("claim overrides user id", func(t *testing.T) {
		s, err := New(signToken(t, jwt.MapClaims{"user_id": 5}), 1, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(5), s.User.ID)
		assert.Equal(t, "alice", s.User.Username)
		assert.False(t, s.SavedAt.IsZero())
	})

	t.Run("opaque token keeps user id", func(t *testing.T) {
		s, err := New("opaque", 3, "bob")
		require.NoError(t, err)
		assert.Equal(t, int64(3), s.User.ID)
	})
}
