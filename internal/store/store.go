// ABOUTME: Store interfaces and data types for iqc-gateway persistence
// ABOUTME: Defines users, chat rooms, history, and conversation session records

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateUser is returned when creating a user whose ID is already taken.
var ErrDuplicateUser = errors.New("user already exists")

// ErrVersionConflict is returned by SaveConversationSession when the stored
// version no longer matches the version read at load time. The write is not
// applied; the caller must re-fetch and resubmit the turn.
var ErrVersionConflict = errors.New("conversation session version conflict")

// SessionState enumerates the conversation coordinator states.
type SessionState string

const (
	StateInitial               SessionState = "initial"
	StateParameterConfirmation SessionState = "parameter_confirmation"
	StateParameterModification SessionState = "parameter_modification"
	StateExecutionReady        SessionState = "execution_ready"
)

// Valid reports whether s is one of the four known states. Anything else is
// treated as corruption and defensively reset by the coordinator.
func (s SessionState) Valid() bool {
	switch s {
	case StateInitial, StateParameterConfirmation, StateParameterModification, StateExecutionReady:
		return true
	}
	return false
}

// ConversationSession is the persisted dialogue state for one
// (chatroom, user) pair. The version is tracked by the store and returned
// alongside the record rather than embedded in it, so records stay plain
// values that transitions can copy freely.
type ConversationSession struct {
	State                SessionState
	CurrentModule        string
	ExtractedParams      map[string]any
	LastExecutedModule   string
	ModificationAttempts int
}

// NewConversationSession returns a fresh record in the initial state.
func NewConversationSession() *ConversationSession {
	return &ConversationSession{State: StateInitial}
}

// User is an account that may own chat rooms.
type User struct {
	ID           string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

// ChatRoom is a conversation container owned by a single user.
type ChatRoom struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatRoomListItem is the room summary returned by listings.
type ChatRoomListItem struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	MessageCount int       `json:"message_count"`
	LastActivity time.Time `json:"last_activity"`
}

// Message roles.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// Message is a single inbound chat message.
type Message struct {
	ID         string
	ChatroomID int64
	UserID     string
	Role       string // "user" or "bot"
	DataType   string // classifier data type recorded at save time
	Content    string
	CreatedAt  time.Time
}

// BotResponse is the generated payload linked to the user message that
// triggered it. Content holds the full JSON payload including real_data.
type BotResponse struct {
	ID         string
	MessageID  string
	ChatroomID int64
	UserID     string
	Content    string
	CreatedAt  time.Time
}

// ChatEntry pairs a user message with the bot response shown in history.
// The stored response excludes the bulk real_data payload.
type ChatEntry struct {
	ChatID       int64     `json:"chat_id"`
	ChatroomID   int64     `json:"chatroom_id"`
	UserID       string    `json:"user_id"`
	UserMessage  string    `json:"user_message"`
	BotResponse  string    `json:"bot_response"`
	UserTime     time.Time `json:"user_time"`
	ResponseTime time.Time `json:"response_time"`
}

// SessionStore is the persistence boundary for conversation sessions with
// optimistic concurrency control.
type SessionStore interface {
	// GetOrCreateConversationSession returns the record and its current
	// version, atomically creating a fresh initial record at version 0 if
	// none exists. Concurrent first calls for the same key never create
	// two records.
	GetOrCreateConversationSession(ctx context.Context, chatroomID int64, userID string) (*ConversationSession, int64, error)

	// SaveConversationSession persists the record only if the stored version
	// still equals expectedVersion, incrementing it by one. On mismatch it
	// returns ErrVersionConflict and writes nothing.
	SaveConversationSession(ctx context.Context, chatroomID int64, userID string, sess *ConversationSession, expectedVersion int64) error
}

// ChatStore persists rooms, messages, responses, and history entries.
type ChatStore interface {
	CreateChatRoom(ctx context.Context, userID string) (*ChatRoom, error)
	GetChatRoom(ctx context.Context, id int64) (*ChatRoom, error)
	ListChatRooms(ctx context.Context, userID string) ([]*ChatRoomListItem, error)
	RenameChatRoom(ctx context.Context, id int64, userID, name string) error
	DeleteChatRoom(ctx context.Context, id int64, userID string) error

	SaveMessage(ctx context.Context, msg *Message) error
	SaveBotResponse(ctx context.Context, resp *BotResponse) error

	AddChatEntry(ctx context.Context, entry *ChatEntry) (int64, error)
	UpdateChatEntry(ctx context.Context, chatroomID, chatID int64, userID, userMessage, botResponse string) error
	ListChatEntries(ctx context.Context, chatroomID int64, userID string) ([]*ChatEntry, error)
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
}

// Store is the full persistence surface implemented by SQLiteStore.
type Store interface {
	SessionStore
	ChatStore
	UserStore

	Close() error
}
