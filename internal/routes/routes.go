package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/TP-Master1-GL/terra-notification-service/internal/handlers"
)

// SetupRoutes wires the HTTP surface onto the fiber app
func SetupRoutes(app *fiber.App, root *handlers.RootHandler, health *handlers.HealthHandler, rmq *handlers.RabbitMQHandler) {
	app.Get("/", root.Info)
	app.Get("/health", health.HealthCheck)

	api := app.Group("/api")
	{
		api.Get("/rabbitmq/queues", rmq.GetQueues)
		api.Post("/check/user-created", rmq.CheckUserCreated)
		api.Post("/consume/user-created", rmq.ConsumeUserCreated)
	}
}
