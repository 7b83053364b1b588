package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RedisConfig configures the Redis-compatible sandbox container.
type RedisConfig struct {
	// Image is the Docker image (default "valkey/valkey:8").
	Image string
	// StartupTimeout bounds the wait for readiness (default 30s).
	StartupTimeout time.Duration
}

// DefaultRedisConfig returns the default Redis sandbox configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Image:          "valkey/valkey:8",
		StartupTimeout: 30 * time.Second,
	}
}

// SetupRedis starts a Redis-compatible container and returns its connection
// URL, suitable for operations.RedisConfig.
func SetupRedis(ctx context.Context, cfg *RedisConfig) (string, Cleanup, error) {
	if cfg == nil {
		defaults := DefaultRedisConfig()
		cfg = &defaults
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.Image,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForListeningPort("6379/tcp").
			WithStartupTimeout(cfg.StartupTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", func() {}, fmt.Errorf("failed to start Redis container: %w", err)
	}

	addr, err := hostPort(ctx, container, "6379")
	if err != nil {
		_ = container.Terminate(ctx)
		return "", func() {}, err
	}

	return "redis://" + addr, cleanupFunc(ctx, container, "Redis"), nil
}
