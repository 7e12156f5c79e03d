// Package hello is the single-route greeting service.
package hello

import (
	"fmt"

	"myblog/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// Greeting is the body served for name.
func Greeting(name string) string {
	return fmt.Sprintf("Hello, %s!", name)
}

// NewApp returns the greeting app. The name is echoed as plain text so it is
// never interpreted as markup.
func NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "hello",
		DisableStartupMessage: true,
		UnescapePath:          true,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.StructuredLogger())

	app.Get("/health/live", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "up"})
	})
	app.Get("/:name", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(Greeting(c.Params("name")))
	})
	return app
}
