package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/TP-Master1-GL/terra-notification-service/internal/eureka"
)

// RootHandler serves the service metadata page
type RootHandler struct {
	ServiceName string
	Registry    *eureka.Client
}

func NewRootHandler(serviceName string, registry *eureka.Client) *RootHandler {
	return &RootHandler{ServiceName: serviceName, Registry: registry}
}

// Info handles GET /
func (h *RootHandler) Info(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": h.ServiceName,
		"status":  "RUNNING",
		"version": "1.0.0",
		"endpoints": fiber.Map{
			"health":  "/health",
			"consume": "/api/consume/user-created",
			"check":   "/api/check/user-created",
			"queues":  "/api/rabbitmq/queues",
		},
		"registryRegistered": h.Registry != nil && h.Registry.IsRegistered(),
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
	})
}
