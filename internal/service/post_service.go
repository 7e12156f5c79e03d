package service

import (
	"context"
	"strings"

	"myblog/internal/middleware"
	"myblog/internal/models"
	"myblog/internal/observability"
	"myblog/internal/repository"
	"myblog/internal/validation"
)

type PostService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
}

type CreatePostInput struct {
	AuthorID uint
	Title    string
	Content  string
}

func NewPostService(postRepo repository.PostRepository, userRepo repository.UserRepository) *PostService {
	return &PostService{postRepo: postRepo, userRepo: userRepo}
}

// CreatePost appends a post to the author's collection. The author must be a
// persisted user; the foreign key enforces the same rule at commit.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (post *models.Post, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "CreatePost")
	defer func() { observability.EndSpan(span, err) }()

	in.Title = strings.TrimSpace(in.Title)
	switch {
	case in.Title == "":
		return nil, models.NewConstraintViolation("title", "title is required", nil)
	case strings.TrimSpace(in.Content) == "":
		return nil, models.NewConstraintViolation("content", "content is required", nil)
	case in.AuthorID == 0:
		return nil, models.NewConstraintViolation("author_id", "author is required", nil)
	}
	if err := validation.ValidateTitle(in.Title); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	author, err := s.userRepo.GetByID(ctx, in.AuthorID)
	if err != nil {
		if models.IsNotFound(err) {
			return nil, models.NewConstraintViolation("author_id", "author must be an existing user", err)
		}
		return nil, err
	}

	post = &models.Post{
		Title:    in.Title,
		Content:  in.Content,
		AuthorID: author.ID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	post.Author = author

	observability.PostsCreated.Inc()
	middleware.Logger.InfoContext(ctx, "post created", "post_id", post.ID, "author_id", author.ID)
	return post, nil
}

// GetPostsByAuthor returns the author's posts, first created first.
func (s *PostService) GetPostsByAuthor(ctx context.Context, authorID uint) ([]models.Post, error) {
	if _, err := s.userRepo.GetByID(ctx, authorID); err != nil {
		return nil, err
	}
	return s.postRepo.GetByAuthor(ctx, authorID)
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id)
}

// ListPosts returns the newest posts first.
func (s *PostService) ListPosts(ctx context.Context, limit, offset int) ([]models.Post, error) {
	return s.postRepo.List(ctx, limit, offset)
}

func (s *PostService) CountPosts(ctx context.Context) (int64, error) {
	return s.postRepo.Count(ctx)
}

func (s *PostService) CountPostsByAuthor(ctx context.Context, authorID uint) (int64, error) {
	return s.postRepo.CountByAuthor(ctx, authorID)
}

// DeletePost is an administrative action; ownership is not checked here.
func (s *PostService) DeletePost(ctx context.Context, actorID, postID uint) error {
	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "post deleted", "actor_id", actorID, "post_id", postID)
	return nil
}
