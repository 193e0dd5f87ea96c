package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkrupp/csrf-target/internal/domain"
)

// ErrUnknownBackend is returned by RepositoryFactory for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown user repository backend")

// Repository defines the interface for user data persistence.
type Repository interface {
	// FindByCredentials returns the first user whose email and password both
	// match exactly. Returns the user and true if found, nil and false otherwise.
	FindByCredentials(ctx context.Context, email, password string) (*domain.User, bool, error)

	// FindByID retrieves a user by id.
	// Returns the user and true if found, nil and false otherwise.
	FindByID(ctx context.Context, id domain.UserID) (*domain.User, bool, error)

	// Update replaces the email and password of the user with the given id and
	// persists the change. Returns domain.ErrUserNotFound if there is no such user.
	Update(ctx context.Context, id domain.UserID, email, password string) error

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryConfig selects and configures the user repository backend.
type RepositoryConfig struct {
	// Backend is either "json" or "sqlite"
	Backend string `env:"BACKEND" default:"json"`

	JSON   JSONUserRepositoryConfig
	SQLite SQLiteUserRepositoryConfig `envPrefix:"SQLITE_"`
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func(ctx context.Context) (Repository, error)

// NewRepositoryFactory returns a factory for the backend named in cfg.
func NewRepositoryFactory(cfg RepositoryConfig) RepositoryFactory {
	return func(ctx context.Context) (Repository, error) {
		switch cfg.Backend {
		case "", "json":
			return NewJSONUserRepository(ctx, cfg.JSON)
		case "sqlite":
			return NewSQLiteUserRepository(ctx, cfg.SQLite)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
		}
	}
}
