// Package bootstrap wires the process-level dependencies shared by the
// server and the command line tools.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"strings"

	"myblog/internal/auth"
	"myblog/internal/cache"
	"myblog/internal/config"
	"myblog/internal/database"
	"myblog/internal/models"
	"myblog/internal/repository"
	"myblog/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Runtime is the set of connections a process owns. Close releases them.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client
	// RedisErr is set when REDIS_URL was configured but could not be reached.
	RedisErr error
}

// InitRuntime connects to the database (applying the schema) and to Redis.
// An empty REDIS_URL disables Redis. A configured Redis that cannot be
// reached fails startup in production; elsewhere the runtime carries a nil
// client plus RedisErr and callers fall back to in-process sessions.
func InitRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	rt := &Runtime{DB: db}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		rdb, err := cache.NewRedis(ctx, cfg.RedisURL)
		switch {
		case err == nil:
			rt.Redis = rdb
		case cfg.IsProduction():
			_ = rt.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		default:
			log.Printf("WARNING: redis unavailable (%v); sessions will be kept in memory", err)
			rt.RedisErr = err
		}
	}

	if err := EnsureDevRootAdmin(ctx, cfg, rt.Store()); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}
	return rt, nil
}

// Store returns repositories over the runtime's connections.
func (rt *Runtime) Store() *repository.Store {
	var c *cache.Cache
	if rt.Redis != nil {
		c = cache.New(rt.Redis)
	}
	return repository.NewStore(rt.DB, c)
}

func (rt *Runtime) Close() error {
	var firstErr error
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil {
			firstErr = err
		}
	}
	if err := database.Close(rt.DB); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// EnsureDevRootAdmin creates or promotes the development root account. It
// only runs with APP_ENV=development and DEV_BOOTSTRAP_ROOT=true.
func EnsureDevRootAdmin(ctx context.Context, cfg *config.Config, store *repository.Store) error {
	if cfg == nil || store == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "root"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@myblog.local"
	}
	if cfg.DevRootPassword == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	hasher, err := auth.NewHasher(cfg.PasswordHasher)
	if err != nil {
		return err
	}
	users := service.NewUserService(store, auth.NewCredentials(hasher))

	existing, err := store.Users().GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing == nil {
		if _, err := users.CreateUser(ctx, service.CreateUserInput{
			Username: username,
			Email:    email,
			Password: cfg.DevRootPassword,
			Role:     models.RoleAdmin,
		}); err != nil {
			return err
		}
	} else if !existing.IsAdmin() {
		if _, err := users.SetRole(ctx, 0, existing.ID, models.RoleAdmin); err != nil {
			return err
		}
	}

	log.Printf("development root admin bootstrap ensured for %s (%s)", username, email)
	return nil
}
