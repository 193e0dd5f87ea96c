package session_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/csrf-target/internal/domain"
	"github.com/mkrupp/csrf-target/internal/repo/session"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func newRepos(t *testing.T, clock *fakeClock) map[string]session.Repository {
	t.Helper()

	sqliteRepo, err := session.NewSQLiteSessionRepository(context.Background(), session.SQLiteSessionRepositoryConfig{
		DatabasePath: filepath.Join(t.TempDir(), "sessions.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteRepo.Close() })

	return map[string]session.Repository{
		"memory": session.NewMemorySessionRepository().WithClock(clock.Now),
		"sqlite": sqliteRepo.WithClock(clock.Now),
	}
}

func TestRepository_Lifecycle(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}

	for name, repo := range newRepos(t, clock) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			data := domain.SessionData{
				UserID: domain.NewNumericUserID(1),
				Flash:  []string{"hello"},
			}

			_, ok, err := repo.Fetch(ctx, "unknown")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, repo.Store(ctx, "sid", data, clock.now.Add(time.Hour)))

			got, ok, err := repo.Fetch(ctx, "sid")
			require.NoError(t, err)
			require.True(t, ok)
			assert.True(t, got.UserID.Equal(data.UserID))
			assert.True(t, got.UserID.Numeric())
			assert.Equal(t, data.Flash, got.Flash)

			data.Flash = nil
			require.NoError(t, repo.Store(ctx, "sid", data, clock.now.Add(time.Hour)))

			got, _, err = repo.Fetch(ctx, "sid")
			require.NoError(t, err)
			assert.Empty(t, got.Flash)

			require.NoError(t, repo.Delete(ctx, "sid"))
			require.NoError(t, repo.Delete(ctx, "sid"))

			_, ok, err = repo.Fetch(ctx, "sid")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestRepository_Expiry(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	repos := newRepos(t, clock)
	ctx := context.Background()

	for _, repo := range repos {
		require.NoError(t, repo.Store(ctx, "sid", domain.SessionData{UserID: domain.NewUserID("1")}, clock.now.Add(time.Hour)))
	}

	clock.now = clock.now.Add(59 * time.Minute)

	for name, repo := range repos {
		_, ok, err := repo.Fetch(ctx, "sid")
		require.NoError(t, err, name)
		assert.True(t, ok, "%s: session expired early", name)
	}

	clock.now = clock.now.Add(time.Minute)

	for name, repo := range repos {
		_, ok, err := repo.Fetch(ctx, "sid")
		require.NoError(t, err, name)
		assert.False(t, ok, "%s: session outlived its expiry", name)
	}
}

func TestNewRepositoryFactory(t *testing.T) {
	t.Parallel()

	repo, err := session.NewRepositoryFactory(session.RepositoryConfig{})(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &session.MemorySessionRepository{}, repo)

	_, err = session.NewRepositoryFactory(session.RepositoryConfig{Backend: "redis"})(context.Background())
	assert.True(t, errors.Is(err, session.ErrUnknownBackend))
}
