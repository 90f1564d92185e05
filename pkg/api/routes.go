package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
)

func (s *Server) SetupRoutes(app *fiber.App) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "X-AUTH-TOKEN", "X-CLIENT-ID"},
	}))

	services := app.Group("/services", s.AuthMiddleware())

	services.Post("/uuid", s.HandleServiceUUID)
	services.Get("/search", s.HandleSearchServices)
	services.Post("/", s.HandleCreateService)
	services.Get("/", s.HandleListServices)
	services.Get("/:name", s.HandleGetService)
	services.Put("/:id", s.HandleUpdateService)
	services.Delete("/:name", s.HandleDeleteService)
	services.Post("/:name/reset", s.HandleResetService)
	services.Get("/:name/builds", s.HandleListBuilds)
	services.Get("/:name/builds/:build", s.HandleGetBuild)

	// Internal API for the builder to report build outcomes
	internal := app.Group("/int/api/v1", s.AuthMiddleware())

	internal.Post("/generations/:id/complete", s.HandleBuildComplete)
	internal.Post("/generations/:id/error", s.HandleBuildError)

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	if s.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}
}
