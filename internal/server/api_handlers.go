package server

import (
	"errors"
	"time"

	"myblog/internal/auth"
	"myblog/internal/models"
	"myblog/internal/service"
	"myblog/internal/validation"

	"github.com/gofiber/fiber/v2"
)

const apiPageSize = 20

// TokenResponse is returned by POST /api/auth/token.
type TokenResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresAt int64        `json:"expires_at"`
	User      *models.User `json:"user"`
}

// AuthorView is the public face of a post's author.
type AuthorView struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// PostResponse is a post as served to API clients. Authors carry no contact
// or role details.
type PostResponse struct {
	ID        uint        `json:"id"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	AuthorID  uint        `json:"author_id"`
	Author    *AuthorView `json:"author,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

func newPostResponse(p *models.Post) PostResponse {
	resp := PostResponse{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		AuthorID:  p.AuthorID,
		CreatedAt: p.CreatedAt,
	}
	if p.Author != nil {
		resp.Author = &AuthorView{ID: p.Author.ID, Username: p.Author.Username}
	}
	return resp
}

func newPostResponses(posts []models.Post) []PostResponse {
	out := make([]PostResponse, 0, len(posts))
	for i := range posts {
		out = append(out, newPostResponse(&posts[i]))
	}
	return out
}

// IssueToken exchanges a username and password for a bearer token.
// @Summary Issue token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body validation.LoginForm true "Login credentials"
// @Success 201 {object} TokenResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /auth/token [post]
func (s *Server) IssueToken(c *fiber.Ctx) error {
	var form validation.LoginForm
	if err := c.BodyParser(&form); err != nil {
		return models.NewValidationError("Invalid request body")
	}

	user, err := s.gateway.Authenticate(c.UserContext(), form.Username, form.Password, "token")
	if err != nil {
		return err
	}
	token, claims, err := s.tokens.Issue(user)
	if err != nil {
		return models.NewInternalError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: claims.ExpiresAt.Unix(),
		User:      user,
	})
}

// RevokeToken blacklists the bearer token used for this request.
// @Summary Revoke token
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /auth/revoke [post]
func (s *Server) RevokeToken(c *fiber.Ctx) error {
	claims := auth.TokenClaims(c)
	if claims == nil {
		return models.NewValidationError("Only bearer tokens can be revoked")
	}
	if err := s.tokens.Revoke(c.UserContext(), claims); err != nil {
		if errors.Is(err, auth.ErrRevocationUnavailable) {
			return fiber.NewError(fiber.StatusServiceUnavailable, "Token revocation is unavailable")
		}
		return models.NewInternalError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Me returns the authenticated principal.
// @Summary Current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Router /me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	return c.JSON(currentUser(c))
}

// APIListPosts returns posts newest first.
// @Summary List posts
// @Tags posts
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} object{posts=[]PostResponse,limit=int,offset=int}
// @Router /posts [get]
func (s *Server) APIListPosts(c *fiber.Ctx) error {
	page := parsePagination(c, apiPageSize)
	posts, err := s.postService.ListPosts(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"posts":  newPostResponses(posts),
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

// APIUserPosts returns one author's posts in the order they were written.
// @Summary Posts by author
// @Tags posts
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{user_id=int,posts=[]PostResponse}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id}/posts [get]
func (s *Server) APIUserPosts(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	posts, err := s.postService.GetPostsByAuthor(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"user_id": id,
		"posts":   newPostResponses(posts),
	})
}

// APICreatePost publishes a post as the authenticated user.
// @Summary Create post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body validation.PostForm true "Post"
// @Success 201 {object} PostResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) APICreatePost(c *fiber.Ctx) error {
	var form validation.PostForm
	if err := c.BodyParser(&form); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	if errs := form.Validate(); !errs.Valid() {
		field, msg := errs.First()
		return &models.AppError{Code: models.CodeValidation, Message: msg, Field: field}
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		AuthorID: currentUser(c).ID,
		Title:    form.Title,
		Content:  form.Content,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(newPostResponse(post))
}

// APIStats returns the dashboard counters.
// @Summary Dashboard counters
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.DashboardStats
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/stats [get]
func (s *Server) APIStats(c *fiber.Ctx) error {
	stats, err := service.Stats(c.UserContext(), s.store)
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

// APIListUsers returns accounts in id order.
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} object{users=[]models.User,limit=int,offset=int}
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/users [get]
func (s *Server) APIListUsers(c *fiber.Ctx) error {
	page := parsePagination(c, apiPageSize)
	users, err := s.userService.ListUsers(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"users":  users,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

type roleRequest struct {
	Role string `json:"role" form:"role"`
}

// APISetRole promotes or demotes a user.
// @Summary Set role
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body object{role=string} true "user or admin"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/users/{id}/role [put]
func (s *Server) APISetRole(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req roleRequest
	if err := c.BodyParser(&req); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		return err
	}
	user, err := s.userService.SetRole(c.UserContext(), actorID(c), id, role)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// APIDeleteUser removes an account that owns no posts.
// @Summary Delete user
// @Tags admin
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/users/{id} [delete]
func (s *Server) APIDeleteUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := s.userService.DeleteUser(c.UserContext(), actorID(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// APIDeletePost removes a post.
// @Summary Delete post
// @Tags admin
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/posts/{id} [delete]
func (s *Server) APIDeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := s.postService.DeletePost(c.UserContext(), actorID(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
