package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"mediavault/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Handlers
// stay thin; all pipeline logic lives in the service layer.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc service.MediaService) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	api := app.Group("/api/media")
	api.Post("/upload", UploadMedia(svc))
	api.Get("/access/:mediaId", AccessMedia(svc))
	api.Get("/view/:token", ViewMedia(svc))
	api.Get("/status/:mediaId", MediaStatus(svc))
	api.Get("/", ListMedia(svc))
	api.Delete("/:mediaId", DeleteMedia(svc))
}
