package service

import (
	"context"

	"myblog/internal/models"
	"myblog/internal/repository"
)

// DashboardStats is what the admin dashboard summarises.
type DashboardStats struct {
	Users  int64 `json:"users"`
	Admins int   `json:"admins"`
	Posts  int64 `json:"posts"`
}

// Stats collects the dashboard counters.
func Stats(ctx context.Context, store *repository.Store) (*DashboardStats, error) {
	users, err := store.Users().Count(ctx)
	if err != nil {
		return nil, err
	}
	admins, err := store.Users().ListByRole(ctx, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	posts, err := store.Posts().Count(ctx)
	if err != nil {
		return nil, err
	}
	return &DashboardStats{Users: users, Admins: len(admins), Posts: posts}, nil
}
