package server

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"myblog/internal/auth"
	"myblog/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
)

//go:embed views
var viewsFS embed.FS

const (
	mainLayout = "layouts/main"
	csrfLocal  = "csrf"
)

// NewViews loads the embedded page templates. Names are paths under views/
// without the extension, e.g. "user/login".
func NewViews() *html.Engine {
	sub, err := fs.Sub(viewsFS, "views")
	if err != nil {
		panic(err)
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("date", func(t time.Time) string {
		return t.Format("2 Jan 2006 15:04")
	})
	engine.AddFunc("excerpt", func(s string, n int) string {
		r := []rune(strings.TrimSpace(s))
		if len(r) <= n {
			return string(r)
		}
		return string(r[:n]) + "…"
	})
	engine.AddFunc("isAdmin", func(u *models.User) bool {
		return u.IsAdmin()
	})
	return engine
}

// render fills in the data every page needs and renders name inside the main
// layout.
func (s *Server) render(c *fiber.Ctx, status int, name string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	if _, ok := data["Title"]; !ok {
		data["Title"] = "myblog"
	}
	data["CurrentUser"] = auth.Principal(c)
	data["CSRF"], _ = c.Locals(csrfLocal).(string)
	data["Flashes"] = s.gateway.Flashes(c)
	if _, ok := data["Errors"]; !ok {
		data["Errors"] = map[string]string{}
	}
	return c.Status(status).Render(name, data, mainLayout)
}
