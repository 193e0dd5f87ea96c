package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/mkrupp/csrf-target/internal/domain"
	"github.com/mkrupp/csrf-target/internal/infra/logging"
)

// JSONUserRepositoryConfig holds configuration for the JSON file user repository.
type JSONUserRepositoryConfig struct {
	// DatabasePath is the JSON file holding the array of users
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/db.json"`
}

// JSONUserRepository implements Repository over a flat file holding a JSON
// array of users. The file is read once on construction and rewritten
// wholesale on every update.
type JSONUserRepository struct {
	path  string
	users []domain.User
	log   logging.Logger
	m     *sync.RWMutex
}

var _ Repository = (*JSONUserRepository)(nil)

// NewJSONUserRepository creates a JSONUserRepository and loads the users file.
// A missing or unreadable file is logged and results in an empty repository,
// so the server still starts.
func NewJSONUserRepository(ctx context.Context, cfg JSONUserRepositoryConfig) (*JSONUserRepository, error) {
	log := logging.GetLogger("repo.user.json_user_repository").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	repo := &JSONUserRepository{
		path: cfg.DatabasePath,
		log:  log,
		m:    new(sync.RWMutex),
	}

	users, err := LoadUsersFile(cfg.DatabasePath)
	if err != nil {
		log.ErrorContext(ctx, "load users failed", "error", err)

		users = []domain.User{}
	}

	repo.users = users

	log.InfoContext(ctx, "users loaded", "count", len(users))

	return repo, nil
}

// LoadUsersFile reads and decodes a JSON array of users.
func LoadUsersFile(path string) ([]domain.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var users []domain.User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("unmarshal users: %w", err)
	}

	return users, nil
}

// FindByCredentials implements Repository.FindByCredentials with a linear scan.
func (r *JSONUserRepository) FindByCredentials(
	_ context.Context,
	email string,
	password string,
) (*domain.User, bool, error) {
	r.m.RLock()
	defer r.m.RUnlock()

	for _, user := range r.users {
		if user.Email == email && user.Password == password {
			return &user, true, nil
		}
	}

	return nil, false, nil
}

// FindByID implements Repository.FindByID with a linear scan.
func (r *JSONUserRepository) FindByID(_ context.Context, id domain.UserID) (*domain.User, bool, error) {
	r.m.RLock()
	defer r.m.RUnlock()

	if i := r.indexOf(id); i >= 0 {
		user := r.users[i]

		return &user, true, nil
	}

	return nil, false, nil
}

// Update implements Repository.Update. The record is changed in memory and the
// whole collection is written back; a failed write restores the old record.
func (r *JSONUserRepository) Update(ctx context.Context, id domain.UserID, email, password string) (err error) {
	log := r.log.With(logging.Group("user", "id", id.String()))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "user update failed", "error", err)
		} else {
			log.DebugContext(ctx, "user updated")
		}
	}()

	r.m.Lock()
	defer r.m.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return fmt.Errorf("update user %s: %w", id, domain.ErrUserNotFound)
	}

	previous := r.users[i]
	r.users[i].Email = email
	r.users[i].Password = password

	if err := r.persist(ctx); err != nil {
		r.users[i] = previous

		return fmt.Errorf("persist users: %w", err)
	}

	return nil
}

// Close implements Repository.Close. There is nothing to release.
func (r *JSONUserRepository) Close() error {
	return nil
}

func (r *JSONUserRepository) indexOf(id domain.UserID) int {
	for i, user := range r.users {
		if user.ID.Equal(id) {
			return i
		}
	}

	return -1
}

// persist writes all users to a temp file next to the database and renames it
// into place while holding an exclusive flock on "<path>.lock".
func (r *JSONUserRepository) persist(ctx context.Context) error {
	data, err := json.MarshalIndent(r.users, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal users: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir all: %w", err)
	}

	release, err := r.flock(ctx, r.path+".lock")
	if err != nil {
		return fmt.Errorf("flock: %w", err)
	}
	defer release()

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}

	tmpName := tmp.Name()

	defer func() {
		if _, statErr := os.Stat(tmpName); statErr == nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write temp: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("sync temp: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}

	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	r.log.DebugContext(ctx, "users persisted", "count", len(r.users), "bytes", len(data))

	return nil
}

func (r *JSONUserRepository) flock(ctx context.Context, lockfile string) (release func(), err error) {
	log := r.log.With(logging.Group("db", "lockfile", lockfile))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "lock failed", "error", err)
		} else {
			log.DebugContext(ctx, "lock acquired")
		}
	}()

	file, err := os.OpenFile(lockfile, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("flock: %w", err)
	}

	return func() {
		_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)

		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			log.WarnContext(ctx, "close lockfile failed", "error", err)
		}

		log.DebugContext(ctx, "lock released")
	}, nil
}
