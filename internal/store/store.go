// Package store implements persistence on top of BadgerDB.
//
// Bookmarks and their index action log live on hand-rolled key schemes so
// mutations and log appends commit in a single transaction. Simpler records
// (users, sessions) use the generic Entity helper.
package store

import (
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/bookmarkhive/hivecache/internal/domain"
)

// actionSeqBandwidth is the lease size for the action ID sequence.
// Gaps from unused leases are fine, the log only needs monotonic order.
const actionSeqBandwidth = 128

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	// actionSeq issues monotonically increasing IDs for index actions.
	actionSeq *badger.Sequence

	// writeMu serializes bookmark mutations so actions are appended to the
	// log in the same order their transactions commit.
	writeMu sync.Mutex

	// Generic entities
	Users    *Entity[domain.User]
	Sessions *Entity[domain.Session]
}

// New creates a new Store instance at the given database path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	seq, err := db.GetSequence([]byte("seq:action"), actionSeqBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open action sequence: %w", err)
	}

	store := &Store{
		db:        db,
		logger:    logger,
		actionSeq: seq,
	}

	// Initialize generic entities
	store.initUsers()
	store.initSessions()

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return store, nil
}

// Close releases the action sequence and closes the database.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	if err := s.actionSeq.Release(); err != nil {
		if s.logger != nil {
			s.logger.Warn("failed to release action sequence", "error", err)
		}
	}
	return s.db.Close()
}

// Helper methods for database operations.

// get retrieves a value by key.
func (s *Store) get(key []byte, dest any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
}

// set stores a value by key.
func (s *Store) set(key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// exists checks if a key exists.
func (s *Store) exists(key []byte) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// normalizeEmail lowercases and trims an email for index lookups.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// initUsers initializes the Users entity on the store.
// Uses case-insensitive email indexing via normalizeEmail transformation.
func (s *Store) initUsers() {
	s.Users = NewEntity[domain.User](s, "user:").
		WithIndexTransform("email",
			func(u *domain.User) []string {
				return []string{normalizeEmail(u.Email)}
			},
			normalizeEmail, // Transform lookups to be case-insensitive
		)
}

// initSessions initializes the Sessions entity on the store.
// Indexed by user (listing a user's sessions) and by refresh token hash
// (validating a presented refresh token).
func (s *Store) initSessions() {
	s.Sessions = NewEntity[domain.Session](s, "session:").
		WithIndex("user", func(sess *domain.Session) []string {
			// Composite key: a user can hold many sessions at once.
			return []string{sess.UserID + ":" + sess.ID}
		}).
		WithIndex("refresh", func(sess *domain.Session) []string {
			return []string{sess.RefreshTokenHash}
		})
}
