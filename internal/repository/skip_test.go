package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"example.com/backstage/services/skip/internal/db"
	"example.com/backstage/services/skip/internal/model"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

func newTestRepos(t *testing.T) *Repositories {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(conn))
	return New(conn)
}

func TestEnsureByCodeCreatesOnce(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	first, err := repos.Skips.EnsureByCode(ctx, "QR-1", nil)
	require.NoError(t, err)
	require.Equal(t, model.StatusInStock, first.Status)
	require.NotEmpty(t, first.SkipID)

	second, err := repos.Skips.EnsureByCode(ctx, "QR-1", nil)
	require.NoError(t, err)
	require.Equal(t, first.SkipID, second.SkipID)
}

func TestFindByCodeNotFound(t *testing.T) {
	repos := newTestRepos(t)

	_, err := repos.Skips.FindByCode(context.Background(), "QR-missing")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateStateBumpsVersion(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	skip, err := repos.Skips.EnsureByCode(ctx, "QR-2", nil)
	require.NoError(t, err)
	require.EqualValues(t, 0, skip.LockVersion)

	zone := "zone-a"
	require.NoError(t, repos.Skips.UpdateState(ctx, skip, model.StatusDeployed, &zone))
	require.EqualValues(t, 1, skip.LockVersion)
	require.Equal(t, model.StatusDeployed, skip.Status)

	reloaded, err := repos.Skips.FindByCode(ctx, "QR-2")
	require.NoError(t, err)
	require.EqualValues(t, 1, reloaded.LockVersion)
	require.Equal(t, "zone-a", *reloaded.ZoneID)
}

func TestUpdateStateStaleVersion(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	skip, err := repos.Skips.EnsureByCode(ctx, "QR-3", nil)
	require.NoError(t, err)

	stale := *skip
	zone := "zone-a"
	require.NoError(t, repos.Skips.UpdateState(ctx, skip, model.StatusDeployed, &zone))

	err = repos.Skips.UpdateState(ctx, &stale, model.StatusInTransit, nil)
	require.True(t, errors.Is(err, ErrStaleVersion))

	// The stale writer changed nothing
	reloaded, err := repos.Skips.FindByCode(ctx, "QR-3")
	require.NoError(t, err)
	require.Equal(t, model.StatusDeployed, reloaded.Status)
}

func TestCloseActiveIsIdempotent(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	skip, err := repos.Skips.EnsureByCode(ctx, "QR-4", nil)
	require.NoError(t, err)

	// No open placement yet: closing is a no-op
	require.NoError(t, repos.Placements.CloseActive(ctx, skip.SkipID, nowUTC()))

	zone := "zone-a"
	_, err = repos.Placements.Open(ctx, skip.SkipID, &zone, nowUTC())
	require.NoError(t, err)

	require.NoError(t, repos.Placements.CloseActive(ctx, skip.SkipID, nowUTC()))
	require.NoError(t, repos.Placements.CloseActive(ctx, skip.SkipID, nowUTC()))

	open, err := repos.Placements.CountOpen(ctx, skip.SkipID)
	require.NoError(t, err)
	require.EqualValues(t, 0, open)
}
