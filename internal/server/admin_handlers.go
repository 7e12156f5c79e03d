package server

import (
	"fmt"

	"myblog/internal/middleware"
	"myblog/internal/models"
	"myblog/internal/service"

	"github.com/gofiber/fiber/v2"
)

const adminPageSize = 50

// Dashboard summarises users and posts.
func (s *Server) Dashboard(c *fiber.Ctx) error {
	stats, err := service.Stats(c.UserContext(), s.store)
	if err != nil {
		return err
	}
	return s.render(c, fiber.StatusOK, "admin/dashboard", fiber.Map{
		"Title": "Dashboard",
		"Stats": stats,
	})
}

// ManageUsers lists accounts with role and delete actions.
func (s *Server) ManageUsers(c *fiber.Ctx) error {
	page := parsePagination(c, adminPageSize)
	users, err := s.userService.ListUsers(c.UserContext(), page.Limit+1, page.Offset)
	if err != nil {
		return err
	}
	more := len(users) > page.Limit
	if more {
		users = users[:page.Limit]
	}
	return s.render(c, fiber.StatusOK, "admin/manage_users", fiber.Map{
		"Title": "Manage users",
		"Users": users,
		"More":  more,
		"Next":  page.Next(),
	})
}

// ManagePosts lists posts, newest first, with delete actions.
func (s *Server) ManagePosts(c *fiber.Ctx) error {
	page := parsePagination(c, adminPageSize)
	posts, err := s.postService.ListPosts(c.UserContext(), page.Limit+1, page.Offset)
	if err != nil {
		return err
	}
	more := len(posts) > page.Limit
	if more {
		posts = posts[:page.Limit]
	}
	return s.render(c, fiber.StatusOK, "admin/manage_posts", fiber.Map{
		"Title": "Manage posts",
		"Posts": posts,
		"More":  more,
		"Next":  page.Next(),
	})
}

// AdminDeleteUser removes an account. Accounts that still own posts are
// refused and the reason is flashed.
func (s *Server) AdminDeleteUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	err = s.userService.DeleteUser(c.UserContext(), actorID(c), id)
	return s.afterAdminAction(c, "/admin/manage_users", err, fmt.Sprintf("User %d deleted.", id))
}

// PromoteUser grants the admin role.
func (s *Server) PromoteUser(c *fiber.Ctx) error {
	return s.changeRole(c, models.RoleAdmin)
}

// DemoteUser revokes the admin role.
func (s *Server) DemoteUser(c *fiber.Ctx) error {
	return s.changeRole(c, models.RoleUser)
}

func (s *Server) changeRole(c *fiber.Ctx, role models.Role) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	user, err := s.userService.SetRole(c.UserContext(), actorID(c), id, role)
	msg := ""
	if err == nil {
		msg = fmt.Sprintf("%s is now %s.", user.Username, role)
	}
	return s.afterAdminAction(c, "/admin/manage_users", err, msg)
}

// AdminDeletePost removes a post.
func (s *Server) AdminDeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	err = s.postService.DeletePost(c.UserContext(), actorID(c), id)
	return s.afterAdminAction(c, "/admin/manage_posts", err, fmt.Sprintf("Post %d deleted.", id))
}

// afterAdminAction flashes the outcome of a management action and returns to
// the list it came from. Rule violations are shown to the admin; anything
// else goes to the error handler.
func (s *Server) afterAdminAction(c *fiber.Ctx, back string, err error, success string) error {
	msg := success
	if err != nil {
		switch models.HTTPStatus(err) {
		case fiber.StatusConflict, fiber.StatusForbidden, fiber.StatusNotFound, fiber.StatusBadRequest:
			msg = errorMessage(err, models.HTTPStatus(err))
		default:
			return err
		}
	}
	if ferr := s.gateway.Flash(c, msg); ferr != nil {
		middleware.Logger.WarnContext(c.UserContext(), "failed to queue flash", "error", ferr)
	}
	return c.Redirect(back)
}
