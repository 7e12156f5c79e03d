// Package seed fills a development database with fake users and posts.
package seed

import (
	"context"
	"fmt"
	"log"

	"myblog/internal/models"
	"myblog/internal/repository"
	"myblog/internal/service"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers        int
	MaxPostsPerUser int
	Seed            int64
	ShouldClean     bool
}

// Result reports what was created.
type Result struct {
	Users []models.User
	Posts int
	// Credentials maps usernames to their plaintext passwords so seeded
	// accounts can be used to log in.
	Credentials map[string]string
}

// Seed creates NumUsers users, each with 0..MaxPostsPerUser posts. Every user
// is written together with its posts in one transaction.
func Seed(ctx context.Context, store *repository.Store, users *service.UserService, opts Options) (*Result, error) {
	log.Printf("Seeding %d users with up to %d posts each", opts.NumUsers, opts.MaxPostsPerUser)

	if opts.ShouldClean {
		if err := clearData(ctx, store.DB()); err != nil {
			return nil, fmt.Errorf("failed to clear existing data: %w", err)
		}
	}

	f := NewFactory(opts.Seed)
	res := &Result{Credentials: make(map[string]string, opts.NumUsers)}

	for i := 0; i < opts.NumUsers; i++ {
		in := f.User()
		n := 0
		if opts.MaxPostsPerUser > 0 {
			n = f.faker.Number(0, opts.MaxPostsPerUser)
		}
		posts := make([]service.CreatePostInput, 0, n)
		for j := 0; j < n; j++ {
			posts = append(posts, f.Post())
		}

		user, created, err := users.CreateUserWithPosts(ctx, in, posts)
		if err != nil {
			return res, fmt.Errorf("failed to create user %s: %w", in.Username, err)
		}
		res.Users = append(res.Users, *user)
		res.Posts += len(created)
		res.Credentials[user.Username] = in.Password
	}

	log.Printf("Seeded %d users and %d posts", len(res.Users), res.Posts)
	return res, nil
}

// clearData deletes posts before users so the RESTRICT foreign key holds.
func clearData(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Post{}).Error; err != nil {
			return err
		}
		return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.User{}).Error
	})
}
