// ABOUTME: Tests for the SQLite store
// ABOUTME: Covers session version gating, chat persistence, and user accounts

package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_SessionGetOrCreate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, version, err := s.GetOrCreateConversationSession(ctx, 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, StateInitial, sess.State)
	assert.Empty(t, sess.CurrentModule)
	assert.Nil(t, sess.ExtractedParams)
	assert.Zero(t, sess.ModificationAttempts)
	assert.Equal(t, int64(0), version)

	// Second call returns the same record, not a new one.
	sess2, version2, err := s.GetOrCreateConversationSession(ctx, 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, sess, sess2)
	assert.Equal(t, int64(0), version2)
}

func TestSQLiteStore_SessionSaveRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, version, err := s.GetOrCreateConversationSession(ctx, 7, "bob")
	require.NoError(t, err)

	sess.State = StateParameterConfirmation
	sess.CurrentModule = "lot_start"
	sess.ExtractedParams = map[string]any{"raw": "trend please", "data_type": "pcm"}
	sess.ModificationAttempts = 2
	require.NoError(t, s.SaveConversationSession(ctx, 7, "bob", sess, version))

	loaded, version2, err := s.GetOrCreateConversationSession(ctx, 7, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version2)
	assert.Equal(t, StateParameterConfirmation, loaded.State)
	assert.Equal(t, "lot_start", loaded.CurrentModule)
	assert.Equal(t, "trend please", loaded.ExtractedParams["raw"])
	assert.Equal(t, 2, loaded.ModificationAttempts)
}

func TestSQLiteStore_SessionVersionMonotonicity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, version, err := s.GetOrCreateConversationSession(ctx, 3, "carol")
	require.NoError(t, err)
	require.Equal(t, int64(0), version)

	const saves = 5
	for i := 0; i < saves; i++ {
		require.NoError(t, s.SaveConversationSession(ctx, 3, "carol", sess, version))
		sess, version, err = s.GetOrCreateConversationSession(ctx, 3, "carol")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(saves), version)
}

func TestSQLiteStore_SessionStaleSaveFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Two writers load the same session at version 0.
	first, version, err := s.GetOrCreateConversationSession(ctx, 9, "dave")
	require.NoError(t, err)
	second, version2, err := s.GetOrCreateConversationSession(ctx, 9, "dave")
	require.NoError(t, err)
	require.Equal(t, version, version2)

	first.State = StateParameterConfirmation
	first.CurrentModule = "lot_start"
	require.NoError(t, s.SaveConversationSession(ctx, 9, "dave", first, version))

	// The second writer still targets version 0 and must fail cleanly.
	second.State = StateParameterModification
	err = s.SaveConversationSession(ctx, 9, "dave", second, version2)
	require.ErrorIs(t, err, ErrVersionConflict)

	// Stored state is unchanged from the first writer's result.
	loaded, loadedVersion, err := s.GetOrCreateConversationSession(ctx, 9, "dave")
	require.NoError(t, err)
	assert.Equal(t, int64(1), loadedVersion)
	assert.Equal(t, StateParameterConfirmation, loaded.State)
	assert.Equal(t, "lot_start", loaded.CurrentModule)
}

func TestSQLiteStore_SessionConcurrentFirstCreate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const callers = 8
	versions := make([]int64, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, v, err := s.GetOrCreateConversationSession(ctx, 42, "erin")
			require.NoError(t, err)
			versions[i] = v
		}(i)
	}
	wg.Wait()

	// Everyone saw the single created record at version 0.
	for _, v := range versions {
		assert.Equal(t, int64(0), v)
	}
}

func TestSQLiteStore_Users(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := &User{
		ID:           "developer",
		DisplayName:  "Developer",
		PasswordHash: "$2a$10$fakehash",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, s.CreateUser(ctx, user))

	err := s.CreateUser(ctx, user)
	require.ErrorIs(t, err, ErrDuplicateUser)

	loaded, err := s.GetUser(ctx, "developer")
	require.NoError(t, err)
	assert.Equal(t, "Developer", loaded.DisplayName)
	assert.Equal(t, user.PasswordHash, loaded.PasswordHash)

	_, err = s.GetUser(ctx, "nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ChatRoomLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	room, err := s.CreateChatRoom(ctx, "alice")
	require.NoError(t, err)
	assert.NotZero(t, room.ID)
	assert.Contains(t, room.Name, "#")

	loaded, err := s.GetChatRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", loaded.UserID)

	require.NoError(t, s.RenameChatRoom(ctx, room.ID, "alice", "PCM work"))
	loaded, err = s.GetChatRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "PCM work", loaded.Name)

	// Another user cannot rename or delete it.
	require.ErrorIs(t, s.RenameChatRoom(ctx, room.ID, "mallory", "mine"), ErrNotFound)
	require.ErrorIs(t, s.DeleteChatRoom(ctx, room.ID, "mallory"), ErrNotFound)

	require.NoError(t, s.DeleteChatRoom(ctx, room.ID, "alice"))
	_, err = s.GetChatRoom(ctx, room.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_HistoryAndListing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	room1, err := s.CreateChatRoom(ctx, "alice")
	require.NoError(t, err)
	room2, err := s.CreateChatRoom(ctx, "alice")
	require.NoError(t, err)
	_, err = s.CreateChatRoom(ctx, "bob")
	require.NoError(t, err)

	msg := &Message{
		ID:         uuid.New().String(),
		ChatroomID: room1.ID,
		UserID:     "alice",
		Role:       RoleUser,
		DataType:   "pcm",
		Content:    "trend please",
		CreatedAt:  time.Now(),
	}
	require.NoError(t, s.SaveMessage(ctx, msg))

	resp := &BotResponse{
		ID:         uuid.New().String(),
		MessageID:  msg.ID,
		ChatroomID: room1.ID,
		UserID:     "alice",
		Content:    `{"result":"lot_start"}`,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, s.SaveBotResponse(ctx, resp))

	now := time.Now()
	chatID, err := s.AddChatEntry(ctx, &ChatEntry{
		ChatroomID:   room1.ID,
		UserID:       "alice",
		UserMessage:  "trend please",
		BotResponse:  `{"result":"lot_start"}`,
		UserTime:     now,
		ResponseTime: now.Add(time.Second),
	})
	require.NoError(t, err)
	assert.NotZero(t, chatID)

	entries, err := s.ListChatEntries(ctx, room1.ID, "alice")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, chatID, entries[0].ChatID)

	// History honors ownership.
	entries, err = s.ListChatEntries(ctx, room1.ID, "bob")
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Edit rewrites in place.
	require.NoError(t, s.UpdateChatEntry(ctx, room1.ID, chatID, "alice", "point please", `{"result":"lot_point"}`))
	entries, err = s.ListChatEntries(ctx, room1.ID, "alice")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "point please", entries[0].UserMessage)

	require.ErrorIs(t,
		s.UpdateChatEntry(ctx, room1.ID, 9999, "alice", "x", "y"),
		ErrNotFound)

	// Alice sees only her rooms; room1 with activity sorts first.
	items, err := s.ListChatRooms(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, room1.ID, items[0].ID)
	assert.Equal(t, 1, items[0].MessageCount)
	assert.Equal(t, room2.ID, items[1].ID)
	assert.Zero(t, items[1].MessageCount)
}
