package webserver

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

//go:embed web
var webFS embed.FS

// New builds the web UI app. streamURL may be empty when the live feed is
// disabled; the page then falls back to long-polling.
func New(apiURL, streamURL string) (*fiber.App, error) {
	// Create a sub-filesystem that points to the 'web' directory
	webContent, err := fs.Sub(webFS, "web")
	if err != nil {
		return nil, fmt.Errorf("failed to create web sub-filesystem: %w", err)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	})

	app.Use(logger.New(logger.Config{
		Format: "${time} WEB ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New())

	// API config endpoint, served before the static file handler
	app.Get("/config", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"apiUrl":    apiURL,
			"streamUrl": streamURL,
		})
	})

	app.Get("*", func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/" {
			path = "/index.html"
		}

		// The path for the embedded filesystem must not have a leading slash
		fsPath := strings.TrimPrefix(path, "/")

		data, err := fs.ReadFile(webContent, fsPath)
		if err != nil {
			// Unknown paths get the page itself
			data, err = fs.ReadFile(webContent, "index.html")
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).SendString("index.html not found")
			}
			c.Set("Content-Type", "text/html; charset=utf-8")
			return c.Send(data)
		}

		contentType := "application/octet-stream"
		switch {
		case strings.HasSuffix(fsPath, ".html"):
			contentType = "text/html; charset=utf-8"
		case strings.HasSuffix(fsPath, ".js"):
			contentType = "application/javascript; charset=utf-8"
		case strings.HasSuffix(fsPath, ".css"):
			contentType = "text/css; charset=utf-8"
		}
		c.Set("Content-Type", contentType)

		return c.Send(data)
	})

	return app, nil
}

// Start serves the web UI until the app is shut down
func Start(app *fiber.App, host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	return app.Listen(addr)
}
