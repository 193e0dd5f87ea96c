package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mkrupp/csrf-target/internal/domain"
	"github.com/mkrupp/csrf-target/internal/infra/logging"
)

// ErrDuplicateUserID is returned when seeding a user whose id is already stored.
var ErrDuplicateUserID = errors.New("duplicate user id")

// SQLiteUserRepositoryConfig holds configuration for the SQLite user repository.
type SQLiteUserRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/targetsvc.db"`

	// SeedPath is a JSON users file imported when the users table is empty
	SeedPath string `env:"SEED_PATH" default:"var/storage/db.json"`
}

// SQLiteUserRepository implements Repository using SQLite as the storage backend.
type SQLiteUserRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteUserRepository)(nil)

// NewSQLiteUserRepository creates a new SQLiteUserRepository with the given configuration.
// It initializes the database connection, creates the schema if needed and
// imports the seed file into an empty table.
func NewSQLiteUserRepository(ctx context.Context, cfg SQLiteUserRepositoryConfig) (*SQLiteUserRepository, error) {
	log := logging.GetLogger("repo.user.sqlite_user_repository").With(
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

	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := initializeDB(ctx, db); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("initialize db: %w", err)
	}

	repo := &SQLiteUserRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}

	if cfg.SeedPath != "" {
		if err := repo.seed(ctx, cfg.SeedPath); err != nil {
			_ = db.Close()

			return nil, fmt.Errorf("seed users: %w", err)
		}
	}

	return repo, nil
}

func initializeDB(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT    PRIMARY KEY,
			id_numeric INTEGER NOT NULL DEFAULT 0,
			email      TEXT    NOT NULL,
			password   TEXT    NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

func (r *SQLiteUserRepository) seed(ctx context.Context, path string) (err error) {
	log := r.log.With(logging.Group("seed", "path", path))

	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("count users: %w", err)
	}

	if count > 0 {
		log.DebugContext(ctx, "seed skipped", "count", count)

		return nil
	}

	users, err := LoadUsersFile(path)
	if err != nil {
		log.ErrorContext(ctx, "load seed failed", "error", err)

		return nil
	}

	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, user := range users {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO users (id, id_numeric, email, password) VALUES (?, ?, ?, ?)",
			user.ID.String(),
			user.ID.Numeric(),
			user.Email,
			user.Password,
		); err != nil {
			var liteErr *sqlite.Error
			if errors.As(err, &liteErr) {
				switch liteErr.Code() {
				case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
					err = errors.Join(ErrDuplicateUserID, err)
				default:
				}
			}

			return fmt.Errorf("insert user %s: %w", user.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.InfoContext(ctx, "users seeded", "count", len(users))

	return nil
}

// FindByCredentials implements Repository.FindByCredentials using SQLite.
func (r *SQLiteUserRepository) FindByCredentials(
	ctx context.Context,
	email string,
	password string,
) (*domain.User, bool, error) {
	return r.queryUser(ctx,
		"SELECT id, id_numeric, email, password FROM users WHERE email = ? AND password = ? ORDER BY rowid LIMIT 1",
		email, password,
	)
}

// FindByID implements Repository.FindByID using SQLite.
func (r *SQLiteUserRepository) FindByID(ctx context.Context, id domain.UserID) (*domain.User, bool, error) {
	return r.queryUser(ctx,
		"SELECT id, id_numeric, email, password FROM users WHERE id = ?",
		id.String(),
	)
}

func (r *SQLiteUserRepository) queryUser(ctx context.Context, query string, args ...any) (*domain.User, bool, error) {
	var (
		user    domain.User
		id      string
		numeric bool
	)

	err := r.db.QueryRowContext(ctx, query, args...).Scan(&id, &numeric, &user.Email, &user.Password)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("query user: %w", err)
	}

	user.ID = domain.ParseUserID(id, numeric)

	return &user, true, nil
}

// Update implements Repository.Update using SQLite.
func (r *SQLiteUserRepository) Update(ctx context.Context, id domain.UserID, email, password string) (err error) {
	log := r.log.With(logging.Group("user", "id", id.String()))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "user update failed", "error", err)
		} else {
			log.DebugContext(ctx, "user updated")
		}
	}()

	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET email = ?, password = ? WHERE id = ?",
		email,
		password,
		id.String(),
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if affected == 0 {
		return fmt.Errorf("update user %s: %w", id, domain.ErrUserNotFound)
	}

	return nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteUserRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
