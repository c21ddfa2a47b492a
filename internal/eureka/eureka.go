package eureka

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/TP-Master1-GL/terra-notification-service/internal/config"
)

// State tracks the registration lifecycle
type State string

const (
	StateUnregistered    State = "UNREGISTERED"
	StateRegistering     State = "REGISTERING"
	StateRegistered      State = "REGISTERED"
	StateHeartbeatFailed State = "HEARTBEAT_FAILED"
	StateDeregistered    State = "DEREGISTERED"
)

const (
	heartbeatInterval = 30 * time.Second
	registerRetryWait = 5 * time.Second
	registerMaxTries  = 10
	requestTimeout    = 5 * time.Second
)

// Client registers this instance with a Eureka registry and keeps the
// lease alive with periodic heartbeats. Registration failures are never
// fatal: the pipeline runs degraded but functional without the registry.
type Client struct {
	app        string
	instanceID string
	hostname   string
	ipAddr     string
	port       int
	baseURL    string
	client     *http.Client
	logger     *zap.Logger

	mu       sync.RWMutex
	state    State
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "localhost"
	}

	port, err := strconv.Atoi(cfg.Server.Port)
	if err != nil {
		port = 4002
	}

	app := strings.ToUpper(cfg.Server.ServiceName)

	return &Client{
		app:        app,
		instanceID: fmt.Sprintf("%s:%s:%d", hostname, cfg.Server.ServiceName, port),
		hostname:   hostname,
		ipAddr:     instanceIP(),
		port:       port,
		baseURL:    fmt.Sprintf("http://%s:%s/eureka", cfg.Eureka.Host, cfg.Eureka.Port),
		client:     &http.Client{Timeout: requestTimeout},
		logger:     logger,
		state:      StateUnregistered,
		stopChan:   make(chan struct{}),
	}
}

// instanceIP picks the address advertised to the registry. INSTANCE_IP
// wins when set (containers and NAT setups need the override); otherwise
// the first non-loopback IPv4 of the host, falling back to loopback.
func instanceIP() string {
	if ip := os.Getenv("INSTANCE_IP"); ip != "" {
		return ip
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "127.0.0.1"
}

// Start registers the instance and schedules heartbeats. Runs in the
// background; call Stop to deregister.
func (c *Client) Start() {
	go c.runLoop()
}

// Stop deregisters the instance and halts the heartbeat timer.
// Terminal: the client cannot be restarted.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})

	if c.IsRegistered() {
		if err := c.deregister(); err != nil {
			c.logger.Warn("Eureka deregistration failed", zap.Error(err))
		}
	}
	c.setState(StateDeregistered)
	c.logger.Info("Eureka client stopped")
}

// IsRegistered reports whether the instance currently holds a lease
func (c *Client) IsRegistered() bool {
	return c.State() == StateRegistered
}

func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Client) runLoop() {
	if !c.registerWithRetry() {
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			if err := c.heartbeat(); err != nil {
				c.setState(StateHeartbeatFailed)
				c.logger.Warn("Eureka heartbeat failed, re-registering", zap.Error(err))
				if !c.registerWithRetry() {
					return
				}
			} else {
				c.logger.Debug("Eureka heartbeat sent")
			}
		}
	}
}

// registerWithRetry retries registration on a fixed jittered delay under
// a bounded budget. Returns false only when stopped or the budget is
// exhausted; either way the process keeps running.
func (c *Client) registerWithRetry() bool {
	c.setState(StateRegistering)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = registerRetryWait
	policy.Multiplier = 1.0 // fixed delay
	policy.RandomizationFactor = 0.25
	policy.MaxElapsedTime = 0

	attempt := 0
	err := backoff.RetryNotify(
		func() error {
			select {
			case <-c.stopChan:
				return backoff.Permanent(fmt.Errorf("eureka client stopped"))
			default:
			}
			attempt++
			if attempt > registerMaxTries {
				return backoff.Permanent(fmt.Errorf("registration budget exhausted after %d attempts", registerMaxTries))
			}
			return c.register()
		},
		policy,
		func(err error, next time.Duration) {
			c.logger.Warn("Eureka registration failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("next_attempt_in", next),
				zap.Error(err),
			)
		},
	)
	if err != nil {
		c.setState(StateUnregistered)
		c.logger.Error("Eureka registration abandoned, running without registry",
			zap.Error(err),
		)
		return false
	}

	c.setState(StateRegistered)
	c.logger.Info("Registered with Eureka",
		zap.String("app", c.app),
		zap.String("instance_id", c.instanceID),
	)
	return true
}

// instanceDocument is the registration body Eureka expects
type instanceDocument struct {
	Instance instanceInfo `json:"instance"`
}

type instanceInfo struct {
	InstanceID     string            `json:"instanceId"`
	App            string            `json:"app"`
	HostName       string            `json:"hostName"`
	IPAddr         string            `json:"ipAddr"`
	Status         string            `json:"status"`
	VIPAddress     string            `json:"vipAddress"`
	Port           portInfo          `json:"port"`
	StatusPageURL  string            `json:"statusPageUrl"`
	HealthCheckURL string            `json:"healthCheckUrl"`
	HomePageURL    string            `json:"homePageUrl"`
	DataCenterInfo dataCenterInfo    `json:"dataCenterInfo"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type portInfo struct {
	Port    int    `json:"$"`
	Enabled string `json:"@enabled"`
}

type dataCenterInfo struct {
	Class string `json:"@class"`
	Name  string `json:"name"`
}

func (c *Client) register() error {
	base := fmt.Sprintf("http://%s:%d", c.hostname, c.port)
	doc := instanceDocument{
		Instance: instanceInfo{
			InstanceID:     c.instanceID,
			App:            c.app,
			HostName:       c.hostname,
			IPAddr:         c.ipAddr,
			Status:         "UP",
			VIPAddress:     strings.ToLower(c.app),
			Port:           portInfo{Port: c.port, Enabled: "true"},
			StatusPageURL:  base + "/health",
			HealthCheckURL: base + "/health",
			HomePageURL:    base,
			DataCenterInfo: dataCenterInfo{
				Class: "com.netflix.appinfo.InstanceInfo$DefaultDataCenterInfo",
				Name:  "MyOwn",
			},
			Metadata: map[string]string{
				"version": "1.0.0",
			},
		},
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal instance document: %w", err)
	}

	url := fmt.Sprintf("%s/apps/%s", c.baseURL, c.app)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build register request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach eureka: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("eureka register returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) heartbeat() error {
	url := fmt.Sprintf("%s/apps/%s/%s", c.baseURL, c.app, c.instanceID)
	req, err := http.NewRequest(http.MethodPut, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build heartbeat request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach eureka: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// lease expired server-side
		return fmt.Errorf("eureka does not know this instance")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("eureka heartbeat returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) deregister() error {
	url := fmt.Sprintf("%s/apps/%s/%s", c.baseURL, c.app, c.instanceID)
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build deregister request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach eureka: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("eureka deregister returned HTTP %d", resp.StatusCode)
	}

	c.logger.Info("Deregistered from Eureka", zap.String("instance_id", c.instanceID))
	return nil
}
