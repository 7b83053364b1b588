package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RabbitMQConfig configures the RabbitMQ sandbox container.
type RabbitMQConfig struct {
	// Image is the Docker image (default "rabbitmq:4.1.0-management").
	Image string
	// Username and Password are the broker credentials (default guest/guest).
	Username string
	Password string
	// StartupTimeout bounds the wait for broker readiness (default 60s).
	StartupTimeout time.Duration
}

// DefaultRabbitMQConfig returns the default RabbitMQ sandbox configuration.
func DefaultRabbitMQConfig() RabbitMQConfig {
	return RabbitMQConfig{
		Image:          "rabbitmq:4.1.0-management",
		Username:       "guest",
		Password:       "guest",
		StartupTimeout: 60 * time.Second,
	}
}

// SetupRabbitMQ starts a RabbitMQ container and returns the AMQP connection
// URL and the management UI URL.
func SetupRabbitMQ(ctx context.Context, cfg *RabbitMQConfig) (string, string, Cleanup, error) {
	if cfg == nil {
		defaults := DefaultRabbitMQConfig()
		cfg = &defaults
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.Image,
		ExposedPorts: []string{"5672/tcp", "15672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": cfg.Username,
			"RABBITMQ_DEFAULT_PASS": cfg.Password,
		},
		WaitingFor: wait.ForLog("Server startup complete").
			WithStartupTimeout(cfg.StartupTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", "", func() {}, fmt.Errorf("failed to start RabbitMQ container: %w", err)
	}

	amqpAddr, err := hostPort(ctx, container, "5672")
	if err != nil {
		_ = container.Terminate(ctx)
		return "", "", func() {}, err
	}
	managementAddr, err := hostPort(ctx, container, "15672")
	if err != nil {
		_ = container.Terminate(ctx)
		return "", "", func() {}, err
	}

	amqpURL := fmt.Sprintf("amqp://%s:%s@%s/", cfg.Username, cfg.Password, amqpAddr)
	return amqpURL, "http://" + managementAddr, cleanupFunc(ctx, container, "RabbitMQ"), nil
}
