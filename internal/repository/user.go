// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"

	"myblog/internal/cache"
	"myblog/internal/models"
	"myblog/internal/observability"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateRole(ctx context.Context, id uint, role models.Role) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
}

type userRepository struct {
	db    *gorm.DB
	cache *cache.Cache
	log   *observability.RepoLogger
	inst  instrument
}

// NewUserRepository returns a new UserRepository implementation. c may be nil.
func NewUserRepository(db *gorm.DB, c *cache.Cache) UserRepository {
	return &userRepository{
		db:    db,
		cache: c,
		log:   observability.NewRepoLogger("users"),
		inst:  instrument{table: "users"},
	}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (user *models.User, err error) {
	ctx, done := r.inst.start(ctx, r.db, "GetByID")
	defer func() { done(err) }()

	var u models.User
	err = r.cache.Aside(ctx, cache.UserKey(id), &u, cache.UserTTL, func() error {
		if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail returns nil, nil when no user has that email.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getBy(ctx, "GetByEmail", "email = ?", email)
}

// GetByUsername returns nil, nil when no user has that username.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getBy(ctx, "GetByUsername", "username = ?", username)
}

func (r *userRepository) getBy(ctx context.Context, method, query string, arg string) (user *models.User, err error) {
	ctx, done := r.inst.start(ctx, r.db, method)
	defer func() { done(err) }()

	var u models.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &u, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) (err error) {
	ctx, done := r.inst.start(ctx, r.db, "Create")
	defer func() { done(err) }()

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return translateWriteError("users", err)
	}
	r.log.LogCreate(ctx, map[string]any{"user_id": user.ID, "username": user.Username})
	return nil
}

func (r *userRepository) UpdateRole(ctx context.Context, id uint, role models.Role) (err error) {
	ctx, done := r.inst.start(ctx, r.db, "UpdateRole")
	defer func() { done(err) }()

	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("role", role)
	if res.Error != nil {
		return translateWriteError("users", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	r.cache.InvalidateUser(ctx, id)
	r.log.LogUpdate(ctx, map[string]any{"user_id": id, "role": role})
	return nil
}

// Delete removes the user row. Users who still own posts are protected by the
// ON DELETE RESTRICT foreign key and come back as a ConstraintViolation.
func (r *userRepository) Delete(ctx context.Context, id uint) (err error) {
	ctx, done := r.inst.start(ctx, r.db, "Delete")
	defer func() { done(err) }()

	res := r.db.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		translated := translateWriteError("users", res.Error)
		if models.IsConstraintViolation(translated) {
			return models.NewConstraintViolation("posts", "user still owns posts", res.Error)
		}
		return translated
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	r.cache.InvalidateUser(ctx, id)
	r.log.LogDelete(ctx, map[string]any{"user_id": id})
	return nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) (users []models.User, err error) {
	ctx, done := r.inst.start(ctx, r.db, "List")
	defer func() { done(err) }()

	limit, offset = clampPage(limit, offset)
	if err := r.db.WithContext(ctx).Order("id ASC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) ListByRole(ctx context.Context, role models.Role) (users []models.User, err error) {
	ctx, done := r.inst.start(ctx, r.db, "ListByRole")
	defer func() { done(err) }()

	if err := r.db.WithContext(ctx).Where("role = ?", role).Order("id ASC").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) Count(ctx context.Context) (n int64, err error) {
	ctx, done := r.inst.start(ctx, r.db, "Count")
	defer func() { done(err) }()

	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
