// Package store is the client's local bookmark cache.
//
// Entries are the denormalized projections received from the server,
// stored in SQLite next to a single sync_state row holding the action-log
// cursor. Reconciliation batches are applied in one transaction so the
// cache and cursor never drift apart.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bookmarkhive/hivecache/internal/domain"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// ErrEntryNotFound is returned when a cached entry does not exist.
var ErrEntryNotFound = errors.New("entry not found")

// Store provides SQLite-backed persistence for the sync client.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the cache database at the given path.
// It configures WAL mode and runs schema migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single writer, SQLite limitation.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SyncState is the persisted reconciliation position.
type SyncState struct {
	Cursor       string
	LastSyncedAt *time.Time
}

// State returns the current sync cursor and last sync time.
func (s *Store) State(ctx context.Context) (SyncState, error) {
	var state SyncState
	var lastSynced sql.NullString

	row := s.db.QueryRowContext(ctx, `SELECT cursor, last_synced_at FROM sync_state WHERE id = 1`)
	if err := row.Scan(&state.Cursor, &lastSynced); err != nil {
		return SyncState{}, fmt.Errorf("read sync state: %w", err)
	}

	if lastSynced.Valid && lastSynced.String != "" {
		t, err := time.Parse(time.RFC3339Nano, lastSynced.String)
		if err != nil {
			return SyncState{}, fmt.Errorf("parse last_synced_at: %w", err)
		}
		state.LastSyncedAt = &t
	}
	return state, nil
}

// Get returns a single cached entry by bookmark ID.
func (s *Store) Get(ctx context.Context, id string) (*domain.BookmarkProjection, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, url, domain, tags, created_at, is_public, archive, main_image
		 FROM entries WHERE id = ?`, id)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("get entry %s: %w", id, err)
	}
	return entry, nil
}

// All returns every cached entry, most recently created first.
func (s *Store) All(ctx context.Context) ([]domain.BookmarkProjection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, url, domain, tags, created_at, is_public, archive, main_image
		 FROM entries ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.BookmarkProjection
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Count returns the number of cached entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// Apply writes one reconciliation batch: upserts, deletes and the new
// cursor in a single transaction. Either everything lands or nothing does.
func (s *Store) Apply(ctx context.Context, upserts []domain.BookmarkProjection, deletes []string, cursor string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for i := range upserts {
			if err := upsertEntry(ctx, tx, &upserts[i]); err != nil {
				return err
			}
		}
		for _, id := range deletes {
			if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id); err != nil {
				return fmt.Errorf("delete entry %s: %w", id, err)
			}
		}
		return setSyncState(ctx, tx, cursor)
	})
}

// ReplaceAll swaps the whole cache for a fresh snapshot and sets the
// cursor to the snapshot checkpoint, in one transaction.
func (s *Store) ReplaceAll(ctx context.Context, entries []domain.BookmarkProjection, cursor string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
			return fmt.Errorf("clear entries: %w", err)
		}
		for i := range entries {
			if err := upsertEntry(ctx, tx, &entries[i]); err != nil {
				return err
			}
		}
		return setSyncState(ctx, tx, cursor)
	})
}

// Reset drops all cached entries and clears the cursor. Used when the
// local state is unusable and a full bootstrap is needed.
func (s *Store) Reset(ctx context.Context) error {
	s.logger.Warn("resetting local bookmark cache")
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
			return fmt.Errorf("clear entries: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE sync_state SET cursor = '', last_synced_at = NULL WHERE id = 1`)
		if err != nil {
			return fmt.Errorf("clear sync state: %w", err)
		}
		return nil
	})
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func upsertEntry(ctx context.Context, tx *sql.Tx, e *domain.BookmarkProjection) error {
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags for %s: %w", e.ID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO entries (id, title, url, domain, tags, created_at, is_public, archive, main_image)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     title = excluded.title,
		     url = excluded.url,
		     domain = excluded.domain,
		     tags = excluded.tags,
		     created_at = excluded.created_at,
		     is_public = excluded.is_public,
		     archive = excluded.archive,
		     main_image = excluded.main_image`,
		e.ID, e.Title, e.URL, e.Domain, string(tags), e.CreatedAt,
		boolToInt(e.IsPublic), nullString(e.Archive), nullString(e.MainImage))
	if err != nil {
		return fmt.Errorf("upsert entry %s: %w", e.ID, err)
	}
	return nil
}

func setSyncState(ctx context.Context, tx *sql.Tx, cursor string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE sync_state SET cursor = ?, last_synced_at = ? WHERE id = 1`,
		cursor, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("update sync state: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*domain.BookmarkProjection, error) {
	var e domain.BookmarkProjection
	var tagsJSON string
	var isPublic int
	var archive, mainImage sql.NullString

	err := row.Scan(&e.ID, &e.Title, &e.URL, &e.Domain, &tagsJSON,
		&e.CreatedAt, &isPublic, &archive, &mainImage)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
		return nil, fmt.Errorf("parse tags: %w", err)
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	e.IsPublic = isPublic != 0
	e.Archive = archive.String
	e.MainImage = mainImage.String
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
