package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkrupp/csrf-target/internal/domain"
)

// ErrUnknownBackend is returned by RepositoryFactory for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown session repository backend")

// Repository defines the interface for server-side session storage.
// Expiry is passive: expired sessions are reported as not found.
type Repository interface {
	// Fetch returns the data stored for a session id.
	// Returns the data and true if found and not expired, zero and false otherwise.
	Fetch(ctx context.Context, id string) (domain.SessionData, bool, error)

	// Store creates or replaces the data for a session id.
	Store(ctx context.Context, id string, data domain.SessionData, expiresAt time.Time) error

	// Delete removes a session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryConfig selects and configures the session repository backend.
type RepositoryConfig struct {
	// Backend is either "memory" or "sqlite"
	Backend string `env:"BACKEND" default:"memory"`

	SQLite SQLiteSessionRepositoryConfig `envPrefix:"SQLITE_"`
}

// RepositoryFactory is a function that creates a new Repository instance.
type RepositoryFactory func(ctx context.Context) (Repository, error)

// NewRepositoryFactory returns a factory for the backend named in cfg.
func NewRepositoryFactory(cfg RepositoryConfig) RepositoryFactory {
	return func(ctx context.Context) (Repository, error) {
		switch cfg.Backend {
		case "", "memory":
			return NewMemorySessionRepository(), nil
		case "sqlite":
			return NewSQLiteSessionRepository(ctx, cfg.SQLite)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
		}
	}
}
