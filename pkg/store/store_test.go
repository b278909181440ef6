package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "plottheplot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndAuthenticateUser(t *testing.T) {
	s := newTestStore(t)

	user, err := s.CreateUser("alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotZero(t, user.ID)

	got, err := s.AuthenticateUser("alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = s.AuthenticateUser("alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.AuthenticateUser("nobody", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateUser("alice", "one")
	require.NoError(t, err)

	_, err = s.CreateUser("alice", "two")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestGetUser(t *testing.T) {
	s := newTestStore(t)

	user, err := s.CreateUser("alice", "s3cret")
	require.NoError(t, err)

	got, err := s.GetUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = s.GetUser(9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookmarks(t *testing.T) {
	s := newTestStore(t)

	alice, err := s.CreateUser("alice", "pw")
	require.NoError(t, err)
	bob, err := s.CreateUser("bob", "pw")
	require.NoError(t, err)

	data := json.RawMessage(`{"characters":[],"relations":[],"summary":"short"}`)
	bookmark, err := s.AddBookmark(alice.ID, "1342", "Pride and Prejudice", data, "favourite")
	require.NoError(t, err)
	assert.NotEmpty(t, bookmark.ID)

	list, err := s.UserBookmarks(alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "1342", list[0].BookID)
	assert.Equal(t, "favourite", list[0].Note)
	assert.JSONEq(t, string(data), string(list[0].ResponseData))

	got, err := s.Bookmark(bookmark.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, bookmark.ID, got.ID)

	// Owner scoping: bob cannot read alice's bookmark.
	_, err = s.Bookmark(bookmark.ID, bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	empty, err := s.UserBookmarks(bob.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSearchHistoryAndTrending(t *testing.T) {
	s := newTestStore(t)

	alice, err := s.CreateUser("alice", "pw")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.RecordSearch(ctx, alice.ID, "1342", "Pride and Prejudice"))
	require.NoError(t, s.RecordSearch(ctx, alice.ID, "11", "Alice in Wonderland"))
	require.NoError(t, s.RecordSearch(ctx, alice.ID, "1342", "Pride and Prejudice"))

	history, err := s.SearchHistory(alice.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	// Most recent first.
	assert.Equal(t, "1342", history[0].BookID)

	trending, err := s.Trending(10)
	require.NoError(t, err)
	require.Len(t, trending, 2)
	assert.Equal(t, "1342", trending[0].BookID)
	assert.EqualValues(t, 2, trending[0].SearchCount)
	assert.Equal(t, "11", trending[1].BookID)
	assert.EqualValues(t, 1, trending[1].SearchCount)

	limited, err := s.Trending(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
