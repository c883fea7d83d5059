// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides chat/session persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Writers back off instead of failing fast when the database is busy
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			display_name  TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS chatrooms (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_chatrooms_user ON chatrooms(user_id);

		CREATE TABLE IF NOT EXISTS messages (
			id          TEXT PRIMARY KEY,
			chatroom_id INTEGER NOT NULL,
			user_id     TEXT NOT NULL,
			role        TEXT NOT NULL DEFAULT 'user',
			data_type   TEXT,
			content     TEXT NOT NULL,
			created_at  DATETIME NOT NULL,
			FOREIGN KEY (chatroom_id) REFERENCES chatrooms(id)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_chatroom
			ON messages(chatroom_id, created_at);

		CREATE TABLE IF NOT EXISTS bot_responses (
			id          TEXT PRIMARY KEY,
			message_id  TEXT NOT NULL,
			chatroom_id INTEGER NOT NULL,
			user_id     TEXT NOT NULL,
			content     TEXT NOT NULL,
			created_at  DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS chat_entries (
			chat_id       INTEGER PRIMARY KEY AUTOINCREMENT,
			chatroom_id   INTEGER NOT NULL,
			user_id       TEXT NOT NULL,
			user_message  TEXT NOT NULL,
			bot_response  TEXT NOT NULL,
			user_time     DATETIME NOT NULL,
			response_time DATETIME NOT NULL,
			FOREIGN KEY (chatroom_id) REFERENCES chatrooms(id)
		);

		CREATE INDEX IF NOT EXISTS idx_chat_entries_chatroom
			ON chat_entries(chatroom_id, response_time);

		CREATE TABLE IF NOT EXISTS conversation_sessions (
			chatroom_id           INTEGER NOT NULL,
			user_id               TEXT NOT NULL,
			state                 TEXT NOT NULL,
			current_module        TEXT,
			extracted_params      TEXT,
			last_executed_module  TEXT,
			modification_attempts INTEGER NOT NULL DEFAULT 0,
			version               INTEGER NOT NULL DEFAULT 0,
			updated_at            DATETIME NOT NULL,
			PRIMARY KEY (chatroom_id, user_id)
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// --- Conversation sessions --------------------------------------------------

// GetOrCreateConversationSession loads the session record and version for the
// given key, creating a fresh initial record at version 0 if none exists.
// Create is INSERT OR IGNORE so concurrent first calls cannot race-create
// two records.
func (s *SQLiteStore) GetOrCreateConversationSession(ctx context.Context, chatroomID int64, userID string) (*ConversationSession, int64, error) {
	insert := `
		INSERT OR IGNORE INTO conversation_sessions
			(chatroom_id, user_id, state, modification_attempts, version, updated_at)
		VALUES (?, ?, ?, 0, 0, ?)
	`
	if _, err := s.db.ExecContext(ctx, insert,
		chatroomID, userID, string(StateInitial), time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return nil, 0, fmt.Errorf("inserting session: %w", err)
	}

	query := `
		SELECT state, current_module, extracted_params, last_executed_module,
		       modification_attempts, version
		FROM conversation_sessions
		WHERE chatroom_id = ? AND user_id = ?
	`

	var (
		sess       ConversationSession
		state      string
		module     sql.NullString
		paramsJSON sql.NullString
		lastModule sql.NullString
		version    int64
	)
	err := s.db.QueryRowContext(ctx, query, chatroomID, userID).Scan(
		&state, &module, &paramsJSON, &lastModule,
		&sess.ModificationAttempts, &version,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying session: %w", err)
	}

	sess.State = SessionState(state)
	sess.CurrentModule = module.String
	sess.LastExecutedModule = lastModule.String
	if paramsJSON.Valid && paramsJSON.String != "" {
		if err := json.Unmarshal([]byte(paramsJSON.String), &sess.ExtractedParams); err != nil {
			// Corrupt params are recoverable: the coordinator resets the
			// dialogue rather than failing the turn.
			s.logger.Warn("discarding unreadable session params",
				"chatroom_id", chatroomID, "user_id", userID, "error", err)
			sess.ExtractedParams = nil
		}
	}

	return &sess, version, nil
}

// SaveConversationSession persists the record guarded by expectedVersion.
// Zero rows updated means another writer got there first; the caller sees
// ErrVersionConflict and nothing is written.
func (s *SQLiteStore) SaveConversationSession(ctx context.Context, chatroomID int64, userID string, sess *ConversationSession, expectedVersion int64) error {
	var paramsJSON any
	if sess.ExtractedParams != nil {
		encoded, err := json.Marshal(sess.ExtractedParams)
		if err != nil {
			return fmt.Errorf("encoding session params: %w", err)
		}
		paramsJSON = string(encoded)
	}

	update := `
		UPDATE conversation_sessions
		SET state = ?,
		    current_module = ?,
		    extracted_params = ?,
		    last_executed_module = ?,
		    modification_attempts = ?,
		    version = version + 1,
		    updated_at = ?
		WHERE chatroom_id = ? AND user_id = ? AND version = ?
	`
	res, err := s.db.ExecContext(ctx, update,
		string(sess.State),
		nullString(sess.CurrentModule),
		paramsJSON,
		nullString(sess.LastExecutedModule),
		sess.ModificationAttempts,
		time.Now().UTC().Format(time.RFC3339),
		chatroomID, userID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking session update: %w", err)
	}
	if rows == 0 {
		return ErrVersionConflict
	}

	s.logger.Debug("session saved",
		"chatroom_id", chatroomID,
		"user_id", userID,
		"state", sess.State,
		"version", expectedVersion+1)
	return nil
}

// --- Users ------------------------------------------------------------------

// CreateUser inserts a new account. Returns ErrDuplicateUser if the ID is
// already taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, display_name, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.DisplayName, user.PasswordHash,
		user.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	s.logger.Debug("created user", "id", user.ID)
	return nil
}

// GetUser retrieves an account by ID. Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, display_name, password_hash, created_at
		FROM users
		WHERE id = ?
	`
	var user User
	var createdAtStr string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.DisplayName, &user.PasswordHash, &createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &user, nil
}

// --- Chat rooms -------------------------------------------------------------

// CreateChatRoom creates a new room for the user with a default name.
func (s *SQLiteStore) CreateChatRoom(ctx context.Context, userID string) (*ChatRoom, error) {
	now := time.Now()
	query := `
		INSERT INTO chatrooms (name, user_id, created_at)
		VALUES (?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query, "", userID, now.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("inserting chatroom: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading chatroom id: %w", err)
	}

	room := &ChatRoom{
		ID:        id,
		Name:      fmt.Sprintf("Chat Room #%d", id),
		UserID:    userID,
		CreatedAt: now,
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE chatrooms SET name = ? WHERE id = ?`, room.Name, id); err != nil {
		return nil, fmt.Errorf("naming chatroom: %w", err)
	}

	s.logger.Debug("created chatroom", "id", id, "user_id", userID)
	return room, nil
}

// GetChatRoom retrieves a room by ID. Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetChatRoom(ctx context.Context, id int64) (*ChatRoom, error) {
	query := `
		SELECT id, name, user_id, created_at
		FROM chatrooms
		WHERE id = ?
	`
	var room ChatRoom
	var createdAtStr string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&room.ID, &room.Name, &room.UserID, &createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying chatroom: %w", err)
	}

	room.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &room, nil
}

// ListChatRooms returns the user's rooms ordered by most recent activity.
// A room without history uses its creation time as the last activity.
func (s *SQLiteStore) ListChatRooms(ctx context.Context, userID string) ([]*ChatRoomListItem, error) {
	query := `
		SELECT c.id, c.name,
		       COUNT(e.chat_id),
		       COALESCE(MAX(e.response_time), c.created_at)
		FROM chatrooms c
		LEFT JOIN chat_entries e ON e.chatroom_id = c.id
		WHERE c.user_id = ?
		GROUP BY c.id, c.name, c.created_at
		ORDER BY COALESCE(MAX(e.response_time), c.created_at) DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying chatrooms: %w", err)
	}
	defer rows.Close()

	var items []*ChatRoomListItem
	for rows.Next() {
		var item ChatRoomListItem
		var lastStr string
		if err := rows.Scan(&item.ID, &item.Name, &item.MessageCount, &lastStr); err != nil {
			return nil, fmt.Errorf("scanning chatroom row: %w", err)
		}
		item.LastActivity, err = time.Parse(time.RFC3339, lastStr)
		if err != nil {
			return nil, fmt.Errorf("parsing last activity: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// RenameChatRoom updates the room name, checking ownership.
func (s *SQLiteStore) RenameChatRoom(ctx context.Context, id int64, userID, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chatrooms SET name = ? WHERE id = ? AND user_id = ?`,
		name, id, userID,
	)
	if err != nil {
		return fmt.Errorf("renaming chatroom: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rename: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteChatRoom removes the room and its dependent rows, checking ownership.
func (s *SQLiteStore) DeleteChatRoom(ctx context.Context, id int64, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chatrooms WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting chatroom: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	for _, stmt := range []string{
		`DELETE FROM messages WHERE chatroom_id = ?`,
		`DELETE FROM bot_responses WHERE chatroom_id = ?`,
		`DELETE FROM chat_entries WHERE chatroom_id = ?`,
		`DELETE FROM conversation_sessions WHERE chatroom_id = ?`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("deleting chatroom data: %w", err)
		}
	}

	s.logger.Debug("deleted chatroom", "id", id, "user_id", userID)
	return nil
}

// --- Messages and history ---------------------------------------------------

// SaveMessage stores an inbound chat message.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO messages (id, chatroom_id, user_id, role, data_type, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.ChatroomID, msg.UserID, msg.Role,
		nullString(msg.DataType), msg.Content,
		msg.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// SaveBotResponse stores a generated payload linked to its user message.
func (s *SQLiteStore) SaveBotResponse(ctx context.Context, resp *BotResponse) error {
	query := `
		INSERT INTO bot_responses (id, message_id, chatroom_id, user_id, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		resp.ID, resp.MessageID, resp.ChatroomID, resp.UserID, resp.Content,
		resp.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting bot response: %w", err)
	}
	return nil
}

// AddChatEntry appends a history entry and returns its chat ID.
func (s *SQLiteStore) AddChatEntry(ctx context.Context, entry *ChatEntry) (int64, error) {
	query := `
		INSERT INTO chat_entries (chatroom_id, user_id, user_message, bot_response, user_time, response_time)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		entry.ChatroomID, entry.UserID, entry.UserMessage, entry.BotResponse,
		entry.UserTime.UTC().Format(time.RFC3339),
		entry.ResponseTime.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting chat entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading chat id: %w", err)
	}
	return id, nil
}

// UpdateChatEntry rewrites an existing history entry in place (edit flow).
// Returns ErrNotFound if no matching entry exists.
func (s *SQLiteStore) UpdateChatEntry(ctx context.Context, chatroomID, chatID int64, userID, userMessage, botResponse string) error {
	query := `
		UPDATE chat_entries
		SET user_message = ?, bot_response = ?, response_time = ?
		WHERE chatroom_id = ? AND chat_id = ? AND user_id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		userMessage, botResponse, time.Now().UTC().Format(time.RFC3339),
		chatroomID, chatID, userID,
	)
	if err != nil {
		return fmt.Errorf("updating chat entry: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking chat entry update: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListChatEntries returns a room's history in chronological order, checking
// ownership via the user ID.
func (s *SQLiteStore) ListChatEntries(ctx context.Context, chatroomID int64, userID string) ([]*ChatEntry, error) {
	query := `
		SELECT chat_id, chatroom_id, user_id, user_message, bot_response, user_time, response_time
		FROM chat_entries
		WHERE chatroom_id = ? AND user_id = ?
		ORDER BY chat_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, chatroomID, userID)
	if err != nil {
		return nil, fmt.Errorf("querying chat entries: %w", err)
	}
	defer rows.Close()

	var entries []*ChatEntry
	for rows.Next() {
		var e ChatEntry
		var userTimeStr, respTimeStr string
		if err := rows.Scan(&e.ChatID, &e.ChatroomID, &e.UserID, &e.UserMessage, &e.BotResponse, &userTimeStr, &respTimeStr); err != nil {
			return nil, fmt.Errorf("scanning chat entry: %w", err)
		}
		if e.UserTime, err = time.Parse(time.RFC3339, userTimeStr); err != nil {
			return nil, fmt.Errorf("parsing user_time: %w", err)
		}
		if e.ResponseTime, err = time.Parse(time.RFC3339, respTimeStr); err != nil {
			return nil, fmt.Errorf("parsing response_time: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// nullString converts empty strings to NULL for optional columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
