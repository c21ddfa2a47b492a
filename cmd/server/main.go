package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/TP-Master1-GL/terra-notification-service/internal/config"
	"github.com/TP-Master1-GL/terra-notification-service/internal/consumer"
	"github.com/TP-Master1-GL/terra-notification-service/internal/database"
	"github.com/TP-Master1-GL/terra-notification-service/internal/eureka"
	"github.com/TP-Master1-GL/terra-notification-service/internal/events"
	"github.com/TP-Master1-GL/terra-notification-service/internal/handlers"
	"github.com/TP-Master1-GL/terra-notification-service/internal/logger"
	"github.com/TP-Master1-GL/terra-notification-service/internal/mailer"
	"github.com/TP-Master1-GL/terra-notification-service/internal/notification"
	"github.com/TP-Master1-GL/terra-notification-service/internal/rabbitmq"
	"github.com/TP-Master1-GL/terra-notification-service/internal/routes"
	"github.com/TP-Master1-GL/terra-notification-service/internal/service"
)

func main() {
	// Local configuration first so the log level is known
	cfg := config.Load()

	if err := logger.Init(cfg.LogLevel); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	// Remote configuration, falling back to the local one on any error
	bootstrapper := config.NewBootstrapper(cfg, logger.Logger)
	cfg = bootstrapper.Resolve(context.Background())

	// MySQL
	db, err := database.Connect(&cfg.Database, logger.Logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, logger.Logger); err != nil {
			logger.Error("Error closing database", zap.Error(err))
		}
	}()

	if err := database.Migrate(db, logger.Logger); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// RabbitMQ: retried with backoff inside Connect; exhausting the
	// budget is fatal, the service has no function without its broker
	rmq := rabbitmq.NewConnection(&cfg.RabbitMQ, logger.Logger)
	if err := rmq.Connect(); err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer rmq.Close()

	// Event pipeline
	mail := mailer.New(&cfg.Email, logger.Logger)
	store := notification.NewStore(db, logger.Logger)
	registry := events.NewDefaultRegistry(mail, store, logger.Logger)

	cons := consumer.New(&cfg.RabbitMQ, rmq, registry, logger.Logger)
	if err := cons.Start(); err != nil {
		logger.Fatal("Failed to start consumer", zap.Error(err))
	}
	defer cons.Stop()

	// Service registry: failures degrade, never crash
	registryClient := eureka.NewClient(cfg, logger.Logger)

	svc := service.New(cfg, logger.Logger, db, rmq, registryClient, cons)

	app := fiber.New(fiber.Config{
		AppName:      cfg.Server.ServiceName,
		ServerHeader: "Fiber",
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	routes.SetupRoutes(app,
		handlers.NewRootHandler(cfg.Server.ServiceName, registryClient),
		handlers.NewHealthHandler(cfg.Server.ServiceName, svc.DB, svc.RMQ, registryClient),
		handlers.NewRabbitMQHandler(cons, rmq, cfg.RabbitMQ.Queue, logger.Logger),
	)

	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("Server starting",
			zap.String("service", cfg.Server.ServiceName),
			zap.String("address", addr),
		)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Register once the listener is up
	registryClient.Start()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")

	cons.Stop()
	registryClient.Stop()

	if err := app.Shutdown(); err != nil {
		logger.Error("Error during server shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
