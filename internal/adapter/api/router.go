package api

import (
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/google/uuid"
)

func SetupRouter(app *fiber.App, handler *CardHandler, corsOrigins string) {
	// Middleware
	app.Use(requestID)
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:request_id} ${status} ${latency} ${method} ${path}\n",
	}))
	if corsOrigins != "" {
		app.Use(cors.New(cors.Config{AllowOrigins: corsOrigins}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "healthy",
			"version": os.Getenv("APP_VERSION"),
			"env":     os.Getenv("ENV"),
		})
	})

	// API Versioning
	v1 := app.Group("/v1")
	// Endpoints
	v1.Post("/analyze", handler.HandleAnalyze)
	v1.Post("/generate", handler.HandleGenerate)
}

func requestID(c *fiber.Ctx) error {
	id := c.Get("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Locals("request_id", id)
	c.Set("X-Request-ID", id)
	return c.Next()
}
