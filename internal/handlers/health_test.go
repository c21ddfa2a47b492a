package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestHealthCheckDegradedWithoutBroker(t *testing.T) {
	app := fiber.New()
	handler := NewHealthHandler("terra-notification-service", testDB(t), nil, nil)
	app.Get("/health", handler.HealthCheck)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	// broker connection missing: unhealthy
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "DOWN", body.Status)
	assert.Equal(t, "terra-notification-service", body.Service)
	assert.False(t, body.RegistryRegistered)
	assert.Equal(t, "healthy", body.Services["database"])
	assert.Contains(t, body.Services["rabbitmq"], "unhealthy")
	assert.NotEmpty(t, body.Timestamp)
}

func TestHealthCheckNilDatabase(t *testing.T) {
	app := fiber.New()
	handler := NewHealthHandler("terra-notification-service", nil, nil, nil)
	app.Get("/health", handler.HealthCheck)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Services["database"], "unhealthy")
}

func TestRootInfo(t *testing.T) {
	app := fiber.New()
	handler := NewRootHandler("terra-notification-service", nil)
	app.Get("/", handler.Info)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "terra-notification-service", body["service"])
	assert.Equal(t, "RUNNING", body["status"])
	assert.Equal(t, false, body["registryRegistered"])

	endpoints, ok := body["endpoints"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "/api/consume/user-created", endpoints["consume"])
}
