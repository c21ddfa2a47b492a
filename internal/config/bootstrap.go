package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const fetchTimeout = 5 * time.Second

// Bootstrapper resolves the runtime configuration against a Spring Cloud
// Config style endpoint. Resolution never fails: on any error the local
// configuration (defaults + environment) is returned as-is, and a remote
// property only wins when it is present and non-empty.
type Bootstrapper struct {
	local  *Config
	client *http.Client
	logger *zap.Logger
}

func NewBootstrapper(local *Config, logger *zap.Logger) *Bootstrapper {
	return &Bootstrapper{
		local:  local,
		client: &http.Client{Timeout: fetchTimeout},
		logger: logger,
	}
}

// springDocument is the property-source response of the config service
type springDocument struct {
	Name            string           `json:"name"`
	Profiles        []string         `json:"profiles"`
	PropertySources []propertySource `json:"propertySources"`
}

type propertySource struct {
	Name   string                 `json:"name"`
	Source map[string]interface{} `json:"source"`
}

// Resolve fetches the remote configuration and merges it over the local
// one. A copy is always returned; the receiver's local config is never
// mutated.
func (b *Bootstrapper) Resolve(ctx context.Context) *Config {
	cfg := *b.local

	props, err := b.fetch(ctx)
	if err != nil {
		b.logger.Warn("Config service unavailable, using local configuration",
			zap.String("url", b.local.ConfigService.URL),
			zap.Error(err),
		)
		return &cfg
	}

	b.logger.Info("Config service response received",
		zap.Int("property_count", len(props)),
	)

	merge(&cfg.Server.Port, props["server.port"])
	merge(&cfg.Server.ServiceName, props["spring.application.name"])

	if dsURL := asString(props["spring.datasource.url"]); dsURL != "" {
		merge(&cfg.Database.Host, hostFromURL(dsURL))
		merge(&cfg.Database.Name, dbNameFromURL(dsURL))
	}
	merge(&cfg.Database.User, props["spring.datasource.username"])
	merge(&cfg.Database.Password, props["spring.datasource.password"])

	if host := asString(props["spring.rabbitmq.host"]); host != "" {
		port := asString(props["spring.rabbitmq.port"])
		if port == "" {
			port = "5672"
		}
		cfg.RabbitMQ.URL = fmt.Sprintf("amqp://%s:%s", host, port)
	}
	merge(&cfg.RabbitMQ.Exchange, props["notification.rabbitmq.exchange"])
	merge(&cfg.RabbitMQ.Queue, props["notification.rabbitmq.queue"])

	merge(&cfg.Email.User, props["spring.mail.username"])
	merge(&cfg.Email.Pass, props["spring.mail.password"])

	if zone := asString(props["eureka.client.serviceUrl.defaultZone"]); zone != "" {
		host, port := eurekaEndpoint(zone)
		merge(&cfg.Eureka.Host, host)
		merge(&cfg.Eureka.Port, port)
	}

	b.logger.Info("Configuration loaded",
		zap.String("service", cfg.Server.ServiceName),
		zap.String("port", cfg.Server.Port),
	)
	return &cfg
}

// fetch calls GET {configServiceUrl}/{serviceName}/{profile} and flattens
// all property sources into one map, in document order (last write wins).
func (b *Bootstrapper) fetch(ctx context.Context) (map[string]interface{}, error) {
	endpoint := fmt.Sprintf("%s/%s/%s",
		strings.TrimSuffix(b.local.ConfigService.URL, "/"),
		b.local.Server.ServiceName,
		b.local.ConfigService.Profile,
	)

	b.logger.Debug("Fetching remote configuration", zap.String("endpoint", endpoint))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build config request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach config service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("config service returned HTTP %d", resp.StatusCode)
	}

	var doc springDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode config response: %w", err)
	}

	if len(doc.PropertySources) == 0 {
		return nil, fmt.Errorf("config response carries no property sources")
	}

	props := make(map[string]interface{})
	for _, source := range doc.PropertySources {
		for key, val := range source.Source {
			props[key] = val
		}
	}
	return props, nil
}

// merge overwrites dst only when the remote value is non-empty
func merge(dst *string, val interface{}) {
	if s := asString(val); s != "" {
		*dst = s
	}
}

// asString renders a property value; the config service emits ports and
// similar numerics as JSON numbers.
func asString(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case int:
		return fmt.Sprintf("%d", v)
	case bool:
		return fmt.Sprintf("%t", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// hostFromURL extracts the host from a datasource URL such as
// jdbc:mysql://db-host:3306/notification.
func hostFromURL(raw string) string {
	parsed, err := url.Parse(strings.TrimPrefix(raw, "jdbc:"))
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

// dbNameFromURL extracts the database name (last path segment) from a
// datasource URL, dropping any query parameters.
func dbNameFromURL(raw string) string {
	parsed, err := url.Parse(strings.TrimPrefix(raw, "jdbc:"))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Path, "/")
}

// eurekaEndpoint splits a defaultZone URL like http://eureka:8761/eureka/
// into host and port, defaulting the port to 8761.
func eurekaEndpoint(zone string) (string, string) {
	parsed, err := url.Parse(zone)
	if err != nil {
		return "", ""
	}
	port := parsed.Port()
	if port == "" {
		port = "8761"
	}
	return parsed.Hostname(), port
}
