package server

import (
	"errors"
	"strings"

	"myblog/internal/auth"
	"myblog/internal/middleware"
	"myblog/internal/models"
	"myblog/internal/service"
	"myblog/internal/validation"

	"github.com/gofiber/fiber/v2"
)

const indexPageSize = 20

// Index lists the latest posts, newest first.
func (s *Server) Index(c *fiber.Ctx) error {
	page := parsePagination(c, indexPageSize)
	posts, err := s.postService.ListPosts(c.UserContext(), page.Limit+1, page.Offset)
	if err != nil {
		return err
	}
	more := len(posts) > page.Limit
	if more {
		posts = posts[:page.Limit]
	}
	return s.render(c, fiber.StatusOK, "index", fiber.Map{
		"Posts": posts,
		"More":  more,
		"Next":  page.Next(),
	})
}

// LoginPage shows the login form. Signed-in users go straight to next.
func (s *Server) LoginPage(c *fiber.Ctx) error {
	next := nextTarget(c)
	if currentUser(c) != nil {
		return c.Redirect(auth.SafeRedirect(next, "/"))
	}
	return s.render(c, fiber.StatusOK, "user/login", fiber.Map{
		"Title": "Log in",
		"Next":  next,
	})
}

// Login checks the submitted credentials and binds the user to the session.
// Any failure re-renders the form with the same generic message and leaves
// the session as it was.
func (s *Server) Login(c *fiber.Ctx) error {
	var form validation.LoginForm
	if err := c.BodyParser(&form); err != nil {
		return models.NewValidationError("Invalid form submission")
	}
	next := nextTarget(c)

	username := strings.TrimSpace(form.Username)
	if _, err := s.gateway.Login(c, username, form.Password, "Welcome back, "+username+"!"); err != nil {
		if !models.IsAuthenticationFailure(err) {
			return err
		}
		return s.render(c, fiber.StatusUnauthorized, "user/login", fiber.Map{
			"Title":    "Log in",
			"Error":    errorMessage(err, fiber.StatusUnauthorized),
			"Username": username,
			"Next":     next,
		})
	}
	return c.Redirect(auth.SafeRedirect(next, "/"))
}

// Logout ends the session and returns to the front page.
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.gateway.Logout(c, "You have been logged out."); err != nil {
		return err
	}
	return c.Redirect("/")
}

// RegisterPage shows the sign-up form.
func (s *Server) RegisterPage(c *fiber.Ctx) error {
	if currentUser(c) != nil {
		return c.Redirect("/user/profile")
	}
	return s.render(c, fiber.StatusOK, "user/register", fiber.Map{
		"Title": "Register",
		"Form":  validation.RegisterForm{},
	})
}

// Register creates a self-service account and signs it in.
func (s *Server) Register(c *fiber.Ctx) error {
	var form validation.RegisterForm
	if err := c.BodyParser(&form); err != nil {
		return models.NewValidationError("Invalid form submission")
	}

	errs := form.Validate()
	if !errs.Valid() {
		return s.renderRegister(c, fiber.StatusBadRequest, form, errs)
	}

	user, err := s.userService.CreateUser(c.UserContext(), service.CreateUserInput{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
		Role:     models.RoleUser,
	})
	if err != nil {
		if field, msg, ok := fieldError(err); ok {
			return s.renderRegister(c, models.HTTPStatus(err), form, validation.FormErrors{field: msg})
		}
		return err
	}

	if _, err := s.gateway.Login(c, form.Username, form.Password,
		"Welcome to myblog, "+user.Username+"!"); err != nil {
		return err
	}
	return c.Redirect("/user/profile")
}

func (s *Server) renderRegister(c *fiber.Ctx, status int, form validation.RegisterForm, errs validation.FormErrors) error {
	form.Password, form.ConfirmPassword = "", ""
	return s.render(c, status, "user/register", fiber.Map{
		"Title":  "Register",
		"Form":   form,
		"Errors": errs,
	})
}

// Profile shows the signed-in user's account.
func (s *Server) Profile(c *fiber.Ctx) error {
	user := currentUser(c)
	count, err := s.postService.CountPostsByAuthor(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return s.render(c, fiber.StatusOK, "user/profile", fiber.Map{
		"Title":     user.Username,
		"PostCount": count,
	})
}

// MyPosts lists the signed-in user's posts in the order they were written.
func (s *Server) MyPosts(c *fiber.Ctx) error {
	user := currentUser(c)
	posts, err := s.postService.GetPostsByAuthor(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return s.render(c, fiber.StatusOK, "user/posts", fiber.Map{
		"Title": "My posts",
		"Posts": posts,
	})
}

// NewPostPage shows the post editor.
func (s *Server) NewPostPage(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "user/new_post", fiber.Map{
		"Title": "New post",
		"Form":  validation.PostForm{},
	})
}

// CreatePost publishes a post authored by the signed-in user.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var form validation.PostForm
	if err := c.BodyParser(&form); err != nil {
		return models.NewValidationError("Invalid form submission")
	}

	errs := form.Validate()
	if !errs.Valid() {
		return s.renderNewPost(c, fiber.StatusBadRequest, form, errs)
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		AuthorID: currentUser(c).ID,
		Title:    form.Title,
		Content:  form.Content,
	})
	if err != nil {
		if field, msg, ok := fieldError(err); ok {
			return s.renderNewPost(c, models.HTTPStatus(err), form, validation.FormErrors{field: msg})
		}
		return err
	}

	if err := s.gateway.Flash(c, "Published \""+post.Title+"\"."); err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "failed to queue flash", "error", err)
	}
	return c.Redirect("/user/posts")
}

func (s *Server) renderNewPost(c *fiber.Ctx, status int, form validation.PostForm, errs validation.FormErrors) error {
	return s.render(c, status, "user/new_post", fiber.Map{
		"Title":  "New post",
		"Form":   form,
		"Errors": errs,
	})
}

// fieldError unpacks a validation or constraint error that names a form
// field. Errors without a field fall back to the error page.
func fieldError(err error) (string, string, bool) {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return "", "", false
	}
	switch appErr.Code {
	case models.CodeValidation, models.CodeConstraintViolation:
	default:
		return "", "", false
	}
	if appErr.Field == "" {
		return "", "", false
	}
	return appErr.Field, appErr.Message, true
}
