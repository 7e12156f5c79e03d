package repository

import (
	"context"

	"myblog/internal/cache"

	"gorm.io/gorm"
)

// Store groups the repositories that share one connection or transaction.
type Store struct {
	db    *gorm.DB
	cache *cache.Cache
	users UserRepository
	posts PostRepository
}

// NewStore builds repositories over db. c may be nil.
func NewStore(db *gorm.DB, c *cache.Cache) *Store {
	return &Store{
		db:    db,
		cache: c,
		users: NewUserRepository(db, c),
		posts: NewPostRepository(db, c),
	}
}

func (s *Store) Users() UserRepository { return s.users }

func (s *Store) Posts() PostRepository { return s.posts }

// DB exposes the handle for health checks and shutdown.
func (s *Store) DB() *gorm.DB { return s.db }

// Transaction runs fn against repositories bound to one database transaction.
// Any error returned by fn, including a constraint violation from one of its
// writes, rolls back every write made inside it.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	buffered := s.cache.Buffered()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx, buffered))
	})
	if err != nil {
		return err
	}
	buffered.Flush(ctx)
	return nil
}
