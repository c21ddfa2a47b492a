package config

import (
	"fmt"
	"os"
)

// Config is the process-wide runtime configuration. It is resolved once
// during startup (defaults, then environment, then the remote config
// service) and never mutated afterwards.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	RabbitMQ      RabbitMQConfig
	Email         EmailConfig
	Eureka        EurekaConfig
	ConfigService ConfigServiceConfig
	LogLevel      string
}

type ServerConfig struct {
	Port        string
	ServiceName string
}

type DatabaseConfig struct {
	Host     string
	User     string
	Password string
	Name     string
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
	Queue    string
}

type EmailConfig struct {
	User string
	Pass string
}

type EurekaConfig struct {
	Host string
	Port string
}

type ConfigServiceConfig struct {
	URL     string
	Profile string
}

// Defaults returns the hardcoded fallback configuration. Every field is
// populated so a failed remote fetch can never leave one undefined.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "4002",
			ServiceName: "terra-notification-service",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			User:     "root",
			Password: "",
			Name:     "notification",
		},
		RabbitMQ: RabbitMQConfig{
			URL:      "amqp://localhost:5672",
			Exchange: "user.events",
			Queue:    "queue.user.created",
		},
		Email: EmailConfig{
			User: "",
			Pass: "",
		},
		Eureka: EurekaConfig{
			Host: "localhost",
			Port: "8761",
		},
		ConfigService: ConfigServiceConfig{
			URL:     "http://localhost:8888",
			Profile: "default",
		},
		LogLevel: "info",
	}
}

// Load builds the local configuration: defaults overridden by any
// environment variable that is set.
func Load() *Config {
	cfg := Defaults()

	override(&cfg.Server.Port, "PORT")
	override(&cfg.Server.ServiceName, "SERVICE_NAME")
	override(&cfg.Database.Host, "DB_HOST")
	override(&cfg.Database.User, "DB_USER")
	override(&cfg.Database.Password, "DB_PASSWORD")
	override(&cfg.Database.Name, "DB_NAME")
	override(&cfg.RabbitMQ.URL, "RABBITMQ_URL")
	override(&cfg.RabbitMQ.Exchange, "RABBITMQ_EXCHANGE")
	override(&cfg.RabbitMQ.Queue, "RABBITMQ_QUEUE")
	override(&cfg.Email.User, "EMAIL_USER")
	override(&cfg.Email.Pass, "EMAIL_PASS")
	override(&cfg.Eureka.Host, "EUREKA_HOST")
	override(&cfg.Eureka.Port, "EUREKA_PORT")
	override(&cfg.ConfigService.URL, "CONFIG_SERVICE_URL")
	override(&cfg.ConfigService.Profile, "CONFIG_PROFILE")
	override(&cfg.LogLevel, "LOG_LEVEL")

	return cfg
}

func override(field *string, key string) {
	if val := os.Getenv(key); val != "" {
		*field = val
	}
}

// DSN returns the MySQL connection string for GORM
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:3306)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Name)
}
