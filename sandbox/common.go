// Package sandbox provides testcontainers-based setups for the external
// services the playground can be wired to (Redis-compatible stores,
// RabbitMQ). Integration tests build on it behind the integration tag.
package sandbox

import (
	"context"
	"fmt"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"

	"playground.evalgo.org/common"
)

// Cleanup terminates a sandbox container. Always call it in defer.
type Cleanup func()

func cleanupFunc(ctx context.Context, container testcontainers.Container, name string) Cleanup {
	return func() {
		if err := container.Terminate(ctx); err != nil {
			common.Logger.Warnf("failed to terminate %s container: %v", name, err)
		}
	}
}

// hostPort resolves the host-side address of an exposed container port.
func hostPort(ctx context.Context, container testcontainers.Container, port nat.Port) (string, error) {
	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get container host: %w", err)
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		return "", fmt.Errorf("failed to get mapped port: %w", err)
	}
	return fmt.Sprintf("%s:%s", host, mapped.Port()), nil
}
