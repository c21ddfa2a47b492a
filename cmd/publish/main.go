package main

import (
	"encoding/json"
	"flag"

	"go.uber.org/zap"

	"github.com/TP-Master1-GL/terra-notification-service/internal/config"
	"github.com/TP-Master1-GL/terra-notification-service/internal/logger"
	"github.com/TP-Master1-GL/terra-notification-service/internal/rabbitmq"
)

// Publishes a test USER_REGISTERED event at the exchange, for smoke
// testing the pipeline end to end.
func main() {
	email := flag.String("email", "test@example.com", "recipient email")
	name := flag.String("name", "Test User", "display name")
	id := flag.Int64("id", 123, "user id")
	flag.Parse()

	cfg := config.Load()

	if err := logger.Init(cfg.LogLevel); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	rmq := rabbitmq.NewConnection(&cfg.RabbitMQ, logger.Logger)
	if err := rmq.Connect(); err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer rmq.Close()

	event := map[string]interface{}{
		"type": "USER_REGISTERED",
		"payload": map[string]interface{}{
			"id":    *id,
			"email": *email,
			"name":  *name,
		},
	}

	body, err := json.Marshal(event)
	if err != nil {
		logger.Fatal("Failed to marshal event", zap.Error(err))
	}

	if err := rmq.Publish(cfg.RabbitMQ.Exchange, "user.created", body); err != nil {
		logger.Fatal("Failed to publish event", zap.Error(err))
	}

	logger.Info("Test event published",
		zap.String("exchange", cfg.RabbitMQ.Exchange),
		zap.String("email", *email),
	)
}
