package server

import (
	"errors"
	"strings"
	"unicode"

	"myblog/internal/auth"
	"myblog/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	maxPaginationLimit = 50
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// Next returns the page after p, for "older" links.
func (p Pagination) Next() Pagination {
	return Pagination{Limit: p.Limit, Offset: p.Offset + p.Limit}
}

// parseID extracts a route parameter by name as a positive uint.
// The error message is derived from the parameter name (e.g. "id" -> "Invalid ID",
// "userId" -> "Invalid user ID").
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		return 0, models.NewValidationError("Invalid " + humanizeParam(param))
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "userId" -> "user ID", "postId" -> "post ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		prefix := param[:len(param)-2]
		words := splitCamel(prefix)
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// currentUser returns the principal placed in locals by the gateway. Routes
// behind RequireAuthenticated always have one.
func currentUser(c *fiber.Ctx) *models.User {
	return auth.Principal(c)
}

// actorID is the id of the signed-in user, or 0.
func actorID(c *fiber.Ctx) uint {
	if u := auth.Principal(c); u != nil {
		return u.ID
	}
	return 0
}

// nextTarget reads the post-login destination from the form or the query.
func nextTarget(c *fiber.Ctx) string {
	if next := c.FormValue("next"); next != "" {
		return next
	}
	return c.Query("next")
}

// errorMessage is the text shown to a browser for err. Internal details stay
// in the logs.
func errorMessage(err error, status int) string {
	if status >= fiber.StatusInternalServerError {
		return "Something went wrong on our side."
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	return err.Error()
}
