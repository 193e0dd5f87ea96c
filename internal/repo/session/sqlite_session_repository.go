package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mkrupp/csrf-target/internal/domain"
	"github.com/mkrupp/csrf-target/internal/infra/logging"
)

// SQLiteSessionRepositoryConfig holds configuration for the SQLite session repository.
type SQLiteSessionRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/sessions.db"`
}

// SQLiteSessionRepository implements Repository using SQLite, so sessions
// survive a restart of the server.
type SQLiteSessionRepository struct {
	db        *sql.DB
	log       logging.Logger
	now       func() time.Time
	writeLock *sync.Mutex
}

var _ Repository = (*SQLiteSessionRepository)(nil)

// NewSQLiteSessionRepository opens the database and creates the schema if needed.
func NewSQLiteSessionRepository(ctx context.Context, cfg SQLiteSessionRepositoryConfig) (*SQLiteSessionRepository, error) {
	log := logging.GetLogger("repo.session.sqlite_session_repository").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping db: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT    PRIMARY KEY,
			data       BLOB    NOT NULL,
			expires_at INTEGER NOT NULL
		)
	`); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteSessionRepository{
		db:        db,
		log:       log,
		now:       time.Now,
		writeLock: new(sync.Mutex),
	}, nil
}

// WithClock replaces the time source, for tests.
func (r *SQLiteSessionRepository) WithClock(now func() time.Time) *SQLiteSessionRepository {
	r.now = now

	return r
}

// Fetch implements Repository.Fetch. An expired row is deleted when found.
func (r *SQLiteSessionRepository) Fetch(ctx context.Context, id string) (domain.SessionData, bool, error) {
	var (
		raw       []byte
		expiresAt int64
	)

	err := r.db.QueryRowContext(ctx,
		"SELECT data, expires_at FROM sessions WHERE id = ?", id,
	).Scan(&raw, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SessionData{}, false, nil
		}

		return domain.SessionData{}, false, fmt.Errorf("query session: %w", err)
	}

	if r.now().UnixMilli() >= expiresAt {
		if err := r.Delete(ctx, id); err != nil {
			r.log.WarnContext(ctx, "delete expired session failed", "error", err)
		}

		return domain.SessionData{}, false, nil
	}

	var data domain.SessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return domain.SessionData{}, false, fmt.Errorf("unmarshal session: %w", err)
	}

	return data, true, nil
}

// Store implements Repository.Store.
func (r *SQLiteSessionRepository) Store(
	ctx context.Context,
	id string,
	data domain.SessionData,
	expiresAt time.Time,
) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, data, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at
	`, id, raw, expiresAt.UnixMilli()); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	return nil
}

// Delete implements Repository.Delete.
func (r *SQLiteSessionRepository) Delete(ctx context.Context, id string) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteSessionRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
