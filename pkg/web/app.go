package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// NewApp wires the handlers into a fiber application.
func NewApp(handlers *APIHandlers) *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Opsweep API")
	})
	app.Get("/health", handlers.HealthCheck)

	app.Get("/capabilities", handlers.GetCapabilities)
	app.Post("/plan", handlers.CreatePlan)
	app.Post("/assess", handlers.AssessPlan)
	app.Post("/execute", handlers.ExecutePlan)

	tasks := app.Group("/tasks")
	tasks.Get("/", handlers.GetTasks)
	tasks.Post("/", handlers.CreateTask)
	tasks.Get("/:id", handlers.GetTask)
	tasks.Delete("/:id", handlers.DeleteTask)
	tasks.Post("/:id/enable", handlers.EnableTask)
	tasks.Post("/:id/disable", handlers.DisableTask)

	rules := app.Group("/rules")
	rules.Get("/", handlers.GetRules)
	rules.Post("/", handlers.CreateRule)
	rules.Delete("/:id", handlers.DeleteRule)
	rules.Post("/:id/enable", handlers.EnableRule)
	rules.Post("/:id/disable", handlers.DisableRule)

	return app
}
