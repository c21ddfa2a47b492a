package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/TP-Master1-GL/terra-notification-service/internal/consumer"
	"github.com/TP-Master1-GL/terra-notification-service/internal/rabbitmq"
)

// RabbitMQHandler exposes the administrative queue endpoints. These are
// operational escape hatches for debugging, not the consumption path.
type RabbitMQHandler struct {
	Consumer *consumer.Consumer
	RMQ      *rabbitmq.Connection
	Queue    string
	Logger   *zap.Logger
}

func NewRabbitMQHandler(cons *consumer.Consumer, rmq *rabbitmq.Connection, queue string, logger *zap.Logger) *RabbitMQHandler {
	return &RabbitMQHandler{
		Consumer: cons,
		RMQ:      rmq,
		Queue:    queue,
		Logger:   logger,
	}
}

// ConsumeUserCreated handles POST /api/consume/user-created: dequeues
// and processes at most one message.
func (h *RabbitMQHandler) ConsumeUserCreated(c *fiber.Ctx) error {
	payload, found, err := h.Consumer.ProcessOne(c.Context())

	if err != nil && !found {
		h.Logger.Error("Failed to pull message from queue", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"messageProcessed": false,
			"error":            err.Error(),
		})
	}

	if !found {
		return c.JSON(fiber.Map{
			"messageProcessed": false,
			"queue":            h.Queue,
		})
	}

	if err != nil {
		h.Logger.Error("Manual consume failed", zap.Error(err))
		response := fiber.Map{
			"messageProcessed": false,
			"queue":            h.Queue,
			"error":            err.Error(),
		}
		if payload != nil {
			response["payload"] = payload
		}
		return c.Status(fiber.StatusInternalServerError).JSON(response)
	}

	return c.JSON(fiber.Map{
		"messageProcessed": true,
		"queue":            h.Queue,
		"payload":          payload,
	})
}

// CheckUserCreated handles POST /api/check/user-created: peeks at the
// queued messages and requeues every one of them.
func (h *RabbitMQHandler) CheckUserCreated(c *fiber.Ctx) error {
	payloads, err := h.Consumer.Peek()
	if err != nil {
		h.Logger.Error("Failed to peek queue", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"queue":        h.Queue,
		"messageCount": len(payloads),
		"messages":     payloads,
	})
}

// GetQueues handles GET /api/rabbitmq/queues
func (h *RabbitMQHandler) GetQueues(c *fiber.Ctx) error {
	state, err := h.RMQ.QueueInspect(h.Queue)
	if err != nil {
		h.Logger.Error("Failed to inspect queue", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"queue":         state.Name,
		"messageCount":  state.Messages,
		"consumerCount": state.Consumers,
		"state":         "active",
	})
}
