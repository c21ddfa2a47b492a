package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/TP-Master1-GL/terra-notification-service/internal/database"
	"github.com/TP-Master1-GL/terra-notification-service/internal/eureka"
	"github.com/TP-Master1-GL/terra-notification-service/internal/rabbitmq"
)

// HealthHandler reports liveness of the service and its collaborators
type HealthHandler struct {
	ServiceName string
	DB          *gorm.DB
	RMQ         *rabbitmq.Connection
	Registry    *eureka.Client
}

func NewHealthHandler(serviceName string, db *gorm.DB, rmq *rabbitmq.Connection, registry *eureka.Client) *HealthHandler {
	return &HealthHandler{
		ServiceName: serviceName,
		DB:          db,
		RMQ:         rmq,
		Registry:    registry,
	}
}

type HealthResponse struct {
	Status             string            `json:"status"`
	Service            string            `json:"service"`
	Timestamp          string            `json:"timestamp"`
	RegistryRegistered bool              `json:"registryRegistered"`
	Services           map[string]string `json:"services"`
}

// HealthCheck handles GET /health. The registry flag is informational:
// running without the registry is degraded but not unhealthy.
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	services := make(map[string]string)
	status := "UP"

	if err := database.HealthCheck(ctx, h.DB); err != nil {
		services["database"] = "unhealthy: " + err.Error()
		status = "DOWN"
	} else {
		services["database"] = "healthy"
	}

	if h.RMQ == nil || !h.RMQ.IsHealthy() {
		services["rabbitmq"] = "unhealthy: connection closed"
		status = "DOWN"
	} else {
		services["rabbitmq"] = "healthy"
	}

	response := HealthResponse{
		Status:             status,
		Service:            h.ServiceName,
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
		RegistryRegistered: h.Registry != nil && h.Registry.IsRegistered(),
		Services:           services,
	}

	if status != "UP" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}
	return c.JSON(response)
}
