// Package service holds the blog's business rules on top of the repositories.
package service

import (
	"context"
	"errors"
	"strings"

	"myblog/internal/auth"
	"myblog/internal/middleware"
	"myblog/internal/models"
	"myblog/internal/observability"
	"myblog/internal/repository"
	"myblog/internal/validation"
)

type UserService struct {
	store *repository.Store
	creds *auth.Credentials
}

// CreateUserInput carries a plaintext password; it is hashed before storage.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
	Role     models.Role
}

func NewUserService(store *repository.Store, creds *auth.Credentials) *UserService {
	if creds == nil {
		creds = auth.NewCredentials(nil)
	}
	return &UserService{store: store, creds: creds}
}

// CreateUser registers an account. Missing fields and duplicate usernames or
// emails fail with a ConstraintViolation naming the field; nothing is written.
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	return createUser(ctx, s.store.Users(), s.creds, in)
}

func createUser(ctx context.Context, users repository.UserRepository, creds *auth.Credentials, in CreateUserInput) (user *models.User, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "UserService", "CreateUser")
	defer func() { observability.EndSpan(span, err) }()

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	switch {
	case in.Username == "":
		return nil, models.NewConstraintViolation("username", "username is required", nil)
	case in.Email == "":
		return nil, models.NewConstraintViolation("email", "email is required", nil)
	case in.Password == "":
		return nil, models.NewConstraintViolation("password", "password is required", nil)
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if _, err := models.ParseRole(string(role)); err != nil {
		return nil, err
	}

	user = &models.User{Username: in.Username, Email: in.Email, Role: role}
	if err := creds.SetCredential(user, in.Password); err != nil {
		if errors.Is(err, auth.ErrEmptyCredential) {
			return nil, models.NewConstraintViolation("password", "password is required", err)
		}
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, models.NewInternalError(err)
	}

	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}

	observability.UsersRegistered.Inc()
	middleware.Logger.InfoContext(ctx, "user created", "user_id", user.ID, "username", user.Username, "role", user.Role)
	return user, nil
}

// CreateUserWithPosts creates the user and the posts in one transaction. Any
// failure, including a bad post, leaves no trace of the user.
func (s *UserService) CreateUserWithPosts(ctx context.Context, in CreateUserInput, posts []CreatePostInput) (*models.User, []models.Post, error) {
	var (
		user    *models.User
		created []models.Post
	)
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		u, err := createUser(ctx, tx.Users(), s.creds, in)
		if err != nil {
			return err
		}
		postSvc := NewPostService(tx.Posts(), tx.Users())
		for _, p := range posts {
			p.AuthorID = u.ID
			post, err := postSvc.CreatePost(ctx, p)
			if err != nil {
				return err
			}
			created = append(created, *post)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return user, created, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.store.Users().GetByID(ctx, id)
}

func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.store.Users().GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.store.Users().List(ctx, limit, offset)
}

func (s *UserService) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.store.Users().ListByRole(ctx, models.RoleAdmin)
}

func (s *UserService) CountUsers(ctx context.Context) (int64, error) {
	return s.store.Users().Count(ctx)
}

// SetRole changes target's role. Admins cannot demote themselves, which keeps
// the acting admin from locking themselves out mid-request.
func (s *UserService) SetRole(ctx context.Context, actorID, targetID uint, role models.Role) (*models.User, error) {
	if _, err := models.ParseRole(string(role)); err != nil {
		return nil, err
	}
	if actorID != 0 && actorID == targetID && role != models.RoleAdmin {
		return nil, models.NewForbiddenError("admins cannot demote themselves")
	}
	if err := s.store.Users().UpdateRole(ctx, targetID, role); err != nil {
		return nil, err
	}
	user, err := s.store.Users().GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "role changed", "actor_id", actorID, "target_id", targetID, "role", role)
	return user, nil
}

// DeleteUser removes an account that owns no posts.
func (s *UserService) DeleteUser(ctx context.Context, actorID, targetID uint) error {
	if actorID != 0 && actorID == targetID {
		return models.NewForbiddenError("admins cannot delete their own account")
	}
	if err := s.store.Users().Delete(ctx, targetID); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "user deleted", "actor_id", actorID, "target_id", targetID)
	return nil
}
