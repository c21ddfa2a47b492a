package service

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/TP-Master1-GL/terra-notification-service/internal/config"
	"github.com/TP-Master1-GL/terra-notification-service/internal/consumer"
	"github.com/TP-Master1-GL/terra-notification-service/internal/eureka"
	"github.com/TP-Master1-GL/terra-notification-service/internal/rabbitmq"
)

// Service bundles the process-wide singletons. Each is owned by exactly
// one component and reached only through it; the container exists so
// handlers receive explicit dependencies instead of global state.
type Service struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *gorm.DB
	RMQ      *rabbitmq.Connection
	Registry *eureka.Client
	Consumer *consumer.Consumer
}

func New(cfg *config.Config, logger *zap.Logger, db *gorm.DB, rmq *rabbitmq.Connection, registry *eureka.Client, cons *consumer.Consumer) *Service {
	return &Service{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		RMQ:      rmq,
		Registry: registry,
		Consumer: cons,
	}
}
