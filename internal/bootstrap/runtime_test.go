package bootstrap

import (
	"context"
	"testing"

	"myblog/internal/config"
	"myblog/internal/models"
	"myblog/internal/repository"
	"myblog/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func devConfig() *config.Config {
	return &config.Config{
		Env:              "development",
		DevBootstrapRoot: true,
		DevRootUsername:  "root",
		DevRootEmail:     "Root@Example.com",
		DevRootPassword:  "root-password",
		PasswordHasher:   "bcrypt",
	}
}

func TestEnsureDevRootAdmin_CreatesAndIsIdempotent(t *testing.T) {
	store := repository.NewStore(testutil.NewSQLiteDB(t), nil)
	ctx := context.Background()

	require.NoError(t, EnsureDevRootAdmin(ctx, devConfig(), store))
	require.NoError(t, EnsureDevRootAdmin(ctx, devConfig(), store))

	root, err := store.Users().GetByUsername(ctx, "root")
	require.NoError(t, err)
	require.NotNil(t, root)
	assert.True(t, root.IsAdmin())
	assert.Equal(t, "root@example.com", root.Email)

	n, err := store.Users().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestEnsureDevRootAdmin_PromotesExisting(t *testing.T) {
	store := repository.NewStore(testutil.NewSQLiteDB(t), nil)
	ctx := context.Background()
	require.NoError(t, store.Users().Create(ctx, &models.User{Username: "root", Email: "r@example.com", Password: "h"}))

	require.NoError(t, EnsureDevRootAdmin(ctx, devConfig(), store))

	root, err := store.Users().GetByUsername(ctx, "root")
	require.NoError(t, err)
	assert.True(t, root.IsAdmin())
}

func TestEnsureDevRootAdmin_Skipped(t *testing.T) {
	store := repository.NewStore(testutil.NewSQLiteDB(t), nil)
	ctx := context.Background()

	cfg := devConfig()
	cfg.Env = "production"
	require.NoError(t, EnsureDevRootAdmin(ctx, cfg, store))

	cfg = devConfig()
	cfg.DevBootstrapRoot = false
	require.NoError(t, EnsureDevRootAdmin(ctx, cfg, store))

	n, err := store.Users().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	cfg = devConfig()
	cfg.DevRootPassword = ""
	assert.Error(t, EnsureDevRootAdmin(ctx, cfg, store))
}

func unreachableRedisConfig(t *testing.T, env string) *config.Config {
	t.Helper()
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	return &config.Config{
		Env:            env,
		DBDriver:       "sqlite",
		SQLitePath:     ":memory:",
		RedisURL:       addr,
		PasswordHasher: "bcrypt",
	}
}

func TestInitRuntime_UnreachableRedisFailsInProduction(t *testing.T) {
	rt, err := InitRuntime(context.Background(), unreachableRedisConfig(t, "production"))
	assert.Nil(t, rt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis connection failed")
}

func TestInitRuntime_UnreachableRedisIsDegradedOutsideProduction(t *testing.T) {
	rt, err := InitRuntime(context.Background(), unreachableRedisConfig(t, "test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	assert.Nil(t, rt.Redis)
	assert.Error(t, rt.RedisErr)
}

func TestInitRuntime_EmptyRedisURLDisablesRedis(t *testing.T) {
	cfg := unreachableRedisConfig(t, "production")
	cfg.RedisURL = ""

	rt, err := InitRuntime(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	assert.Nil(t, rt.Redis)
	assert.NoError(t, rt.RedisErr)
}
