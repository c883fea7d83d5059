// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// sessionSlot pairs a stored record with its version.
type sessionSlot struct {
	sess    ConversationSession
	version int64
}

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu           sync.RWMutex
	users        map[string]*User
	rooms        map[int64]*ChatRoom
	messages     map[string]*Message
	responses    map[string]*BotResponse
	entries      map[int64]*ChatEntry
	sessions     map[string]*sessionSlot // keyed by "chatroomID:userID"
	nextRoomID   int64
	nextChatID   int64
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:      make(map[string]*User),
		rooms:      make(map[int64]*ChatRoom),
		messages:   make(map[string]*Message),
		responses:  make(map[string]*BotResponse),
		entries:    make(map[int64]*ChatEntry),
		sessions:   make(map[string]*sessionSlot),
		nextRoomID: 1,
		nextChatID: 1,
	}
}

func sessionKey(chatroomID int64, userID string) string {
	return fmt.Sprintf("%d:%s", chatroomID, userID)
}

// GetOrCreateConversationSession returns a copy of the stored record and its
// version, creating a fresh initial record if none exists.
func (m *MockStore) GetOrCreateConversationSession(ctx context.Context, chatroomID int64, userID string) (*ConversationSession, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(chatroomID, userID)
	slot, ok := m.sessions[key]
	if !ok {
		slot = &sessionSlot{sess: *NewConversationSession()}
		m.sessions[key] = slot
	}

	// Copy so callers cannot mutate stored state outside of save.
	sess := slot.sess
	sess.ExtractedParams = copyParams(slot.sess.ExtractedParams)
	return &sess, slot.version, nil
}

// SaveConversationSession applies the version-gated write.
func (m *MockStore) SaveConversationSession(ctx context.Context, chatroomID int64, userID string, sess *ConversationSession, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(chatroomID, userID)
	slot, ok := m.sessions[key]
	if !ok || slot.version != expectedVersion {
		return ErrVersionConflict
	}

	stored := *sess
	stored.ExtractedParams = copyParams(sess.ExtractedParams)
	slot.sess = stored
	slot.version = expectedVersion + 1
	return nil
}

func copyParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

// CreateUser stores a new account.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[user.ID]; exists {
		return ErrDuplicateUser
	}
	u := *user
	m.users[u.ID] = &u
	return nil
}

// GetUser retrieves an account by ID.
func (m *MockStore) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u := *user
	return &u, nil
}

// CreateChatRoom creates a new room for the user.
func (m *MockStore) CreateChatRoom(ctx context.Context, userID string) (*ChatRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextRoomID
	m.nextRoomID++
	room := &ChatRoom{
		ID:        id,
		Name:      fmt.Sprintf("Chat Room #%d", id),
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	m.rooms[id] = room
	r := *room
	return &r, nil
}

// GetChatRoom retrieves a room by ID.
func (m *MockStore) GetChatRoom(ctx context.Context, id int64) (*ChatRoom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	r := *room
	return &r, nil
}

// ListChatRooms returns the user's rooms ordered by most recent activity.
func (m *MockStore) ListChatRooms(ctx context.Context, userID string) ([]*ChatRoomListItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var items []*ChatRoomListItem
	for _, room := range m.rooms {
		if room.UserID != userID {
			continue
		}
		item := &ChatRoomListItem{
			ID:           room.ID,
			Name:         room.Name,
			LastActivity: room.CreatedAt,
		}
		for _, e := range m.entries {
			if e.ChatroomID != room.ID {
				continue
			}
			item.MessageCount++
			if e.ResponseTime.After(item.LastActivity) {
				item.LastActivity = e.ResponseTime
			}
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].LastActivity.After(items[j].LastActivity)
	})
	return items, nil
}

// RenameChatRoom updates the room name, checking ownership.
func (m *MockStore) RenameChatRoom(ctx context.Context, id int64, userID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[id]
	if !ok || room.UserID != userID {
		return ErrNotFound
	}
	room.Name = name
	return nil
}

// DeleteChatRoom removes the room and its dependent data.
func (m *MockStore) DeleteChatRoom(ctx context.Context, id int64, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[id]
	if !ok || room.UserID != userID {
		return ErrNotFound
	}
	delete(m.rooms, id)
	for msgID, msg := range m.messages {
		if msg.ChatroomID == id {
			delete(m.messages, msgID)
		}
	}
	for respID, resp := range m.responses {
		if resp.ChatroomID == id {
			delete(m.responses, respID)
		}
	}
	for chatID, e := range m.entries {
		if e.ChatroomID == id {
			delete(m.entries, chatID)
		}
	}
	prefix := fmt.Sprintf("%d:", id)
	for key := range m.sessions {
		if strings.HasPrefix(key, prefix) {
			delete(m.sessions, key)
		}
	}
	return nil
}

// SaveMessage stores a chat message.
func (m *MockStore) SaveMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := *msg
	m.messages[v.ID] = &v
	return nil
}

// SaveBotResponse stores a generated payload.
func (m *MockStore) SaveBotResponse(ctx context.Context, resp *BotResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := *resp
	m.responses[v.ID] = &v
	return nil
}

// AddChatEntry appends a history entry and returns its chat ID.
func (m *MockStore) AddChatEntry(ctx context.Context, entry *ChatEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextChatID
	m.nextChatID++
	e := *entry
	e.ChatID = id
	m.entries[id] = &e
	return id, nil
}

// UpdateChatEntry rewrites an existing history entry.
func (m *MockStore) UpdateChatEntry(ctx context.Context, chatroomID, chatID int64, userID, userMessage, botResponse string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[chatID]
	if !ok || e.ChatroomID != chatroomID || e.UserID != userID {
		return ErrNotFound
	}
	e.UserMessage = userMessage
	e.BotResponse = botResponse
	e.ResponseTime = time.Now()
	return nil
}

// ListChatEntries returns a room's history in chronological order.
func (m *MockStore) ListChatEntries(ctx context.Context, chatroomID int64, userID string) ([]*ChatEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []*ChatEntry
	for _, e := range m.entries {
		if e.ChatroomID != chatroomID || e.UserID != userID {
			continue
		}
		v := *e
		entries = append(entries, &v)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ChatID < entries[j].ChatID
	})
	return entries, nil
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error {
	return nil
}
