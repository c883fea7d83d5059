// Package store provides persistent storage for the gateway using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with specialized
// interfaces:
//
//   - SessionStore: Conversation session records with optimistic concurrency
//   - ChatStore: Rooms, messages, bot responses, and chat history
//   - UserStore: Accounts with password hashes
//
// SQLiteStore implements all interfaces in a single struct, allowing easy
// composition while maintaining clear interface boundaries.
//
// # Conversation Sessions
//
// One ConversationSession exists per (chatroom, user) pair. The version
// column is the only concurrency-control token:
//
//	sess, version, _ := s.GetOrCreateConversationSession(ctx, roomID, userID)
//	// ...mutate sess...
//	err := s.SaveConversationSession(ctx, roomID, userID, sess, version)
//
// A save only succeeds if the stored version still equals the version read
// at load time; a stale save returns ErrVersionConflict and writes nothing.
// At most one save can succeed per version number, which gives linearizable
// apply-order for a key without a blocking mutex.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// The schema is created automatically on initialization. Timestamps are
// stored as RFC3339 UTC strings.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrDuplicateUser: Account ID already taken
//   - ErrVersionConflict: Stale session save, nothing written
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests; it implements the full Store interface
// in memory. Use NewSQLiteStore(":memory:") or a t.TempDir() path for
// integration tests with real SQLite.
package store
