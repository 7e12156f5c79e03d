package repository

import (
	"context"
	"errors"

	"myblog/internal/cache"
	"myblog/internal/models"
	"myblog/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetByAuthor(ctx context.Context, authorID uint) ([]models.Post, error)
	List(ctx context.Context, limit, offset int) ([]models.Post, error)
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context) (int64, error)
	CountByAuthor(ctx context.Context, authorID uint) (int64, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db    *gorm.DB
	cache *cache.Cache
	log   *observability.RepoLogger
	inst  instrument
}

// NewPostRepository creates a new post repository. c may be nil.
func NewPostRepository(db *gorm.DB, c *cache.Cache) PostRepository {
	return &postRepository{
		db:    db,
		cache: c,
		log:   observability.NewRepoLogger("posts"),
		inst:  instrument{table: "posts"},
	}
}

// Create inserts the post row only. A loaded Author is never upserted, so the
// foreign key is what decides whether the author exists.
func (r *postRepository) Create(ctx context.Context, post *models.Post) (err error) {
	ctx, done := r.inst.start(ctx, r.db, "Create")
	defer func() { done(err) }()

	if post.Author != nil && post.AuthorID == 0 {
		post.AuthorID = post.Author.ID
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return translateWriteError("posts", err)
	}
	r.cache.Invalidate(ctx, cache.UserPostsKey(post.AuthorID))
	r.log.LogCreate(ctx, map[string]any{"post_id": post.ID, "author_id": post.AuthorID})
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (post *models.Post, err error) {
	ctx, done := r.inst.start(ctx, r.db, "GetByID")
	defer func() { done(err) }()

	var p models.Post
	if err := r.db.WithContext(ctx).Preload("Author").First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &p, nil
}

// GetByAuthor returns the author's posts in insertion order.
func (r *postRepository) GetByAuthor(ctx context.Context, authorID uint) (posts []models.Post, err error) {
	ctx, done := r.inst.start(ctx, r.db, "GetByAuthor")
	defer func() { done(err) }()

	err = r.cache.Aside(ctx, cache.UserPostsKey(authorID), &posts, cache.UserPostsTTL, func() error {
		if err := r.db.WithContext(ctx).
			Where("author_id = ?", authorID).
			Order("id ASC").
			Find(&posts).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}

// List returns the newest posts first with their authors loaded.
func (r *postRepository) List(ctx context.Context, limit, offset int) (posts []models.Post, err error) {
	ctx, done := r.inst.start(ctx, r.db, "List")
	defer func() { done(err) }()

	limit, offset = clampPage(limit, offset)
	if err := r.db.WithContext(ctx).
		Preload("Author").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) (err error) {
	ctx, done := r.inst.start(ctx, r.db, "Delete")
	defer func() { done(err) }()

	var p models.Post
	if err := r.db.WithContext(ctx).Select("id", "author_id").First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Post", id)
		}
		return models.NewInternalError(err)
	}
	if err := r.db.WithContext(ctx).Delete(&models.Post{}, id).Error; err != nil {
		return translateWriteError("posts", err)
	}
	r.cache.Invalidate(ctx, cache.UserPostsKey(p.AuthorID))
	r.log.LogDelete(ctx, map[string]any{"post_id": id, "author_id": p.AuthorID})
	return nil
}

func (r *postRepository) Count(ctx context.Context) (n int64, err error) {
	ctx, done := r.inst.start(ctx, r.db, "Count")
	defer func() { done(err) }()

	if err := r.db.WithContext(ctx).Model(&models.Post{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *postRepository) CountByAuthor(ctx context.Context, authorID uint) (n int64, err error) {
	ctx, done := r.inst.start(ctx, r.db, "CountByAuthor")
	defer func() { done(err) }()

	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("author_id = ?", authorID).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
