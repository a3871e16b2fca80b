package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/threadline/internal/core/messaging"
	"github.com/hay-kot/threadline/internal/core/session"
)

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("load empty", func(t *testing.T) {
		store := New(filepath.Join(t.TempDir(), "session.json"))

		_, err := store.Load(ctx)
		assert.ErrorIs(t, err, session.ErrNoSession)
	})

	t.Run("save and load", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "session.json")
		store := New(path)

		sess := session.Session{
			Credential: "abc",
			User:       messaging.User{ID: 4, Username: "ada"},
		}
		require.NoError(t, store.Save(ctx, sess))

		got, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, session.Credential("abc"), got.Credential)
		assert.Equal(t, "ada", got.User.Username)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("clear", func(t *testing.T) {
		store := New(filepath.Join(t.TempDir(), "session.json"))
		require.NoError(t, store.Save(ctx, session.Session{Credential: "abc"}))

		require.NoError(t, store.Clear(ctx))
		require.NoError(t, store.Clear(ctx), "clearing twice is fine")

		_, err := store.Load(ctx)
		assert.ErrorIs(t, err, session.ErrNoSession)
	})

	t.Run("blank token is no session", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"token":"  "}`), 0o600))

		_, err := New(path).Load(ctx)
		assert.ErrorIs(t, err, session.ErrNoSession)
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))

		_, err := New(path).Load(ctx)
		require.Error(t, err)
		assert.NotErrorIs(t, err, session.ErrNoSession)
	})
}
