package common

import (
	"context"
	"fmt"
	"strings"

	containertypes "github.com/docker/docker/api/types/container"
	networktypes "github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
)

// NewDockerClient creates a Docker API client for the given socket.
// An empty socket falls back to the environment (DOCKER_HOST et al.).
func NewDockerClient(socket string) (*client.Client, error) {
	if socket == "" {
		return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	}
	return client.NewClientWithOpts(client.WithHost(socket), client.WithAPIVersionNegotiation())
}

// ContainerListAllOptions returns list options that include stopped containers.
func ContainerListAllOptions() containertypes.ListOptions {
	return containertypes.ListOptions{All: true}
}

// FindContainerByName looks up a container (running or stopped) by its name.
// Docker reports names with a leading slash, which is stripped before
// comparison. Returns nil when no container matches.
func FindContainerByName(ctx context.Context, cli DockerClient, name string) (*containertypes.Summary, error) {
	containers, err := cli.ContainerList(ctx, ContainerListAllOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	for _, cont := range containers {
		for _, n := range cont.Names {
			if strings.TrimPrefix(n, "/") == name {
				c := cont
				return &c, nil
			}
		}
	}
	return nil, nil
}

// ContainerIsRunning reports whether the named container exists and is in
// the running state.
func ContainerIsRunning(ctx context.Context, cli DockerClient, name string) (bool, error) {
	cont, err := FindContainerByName(ctx, cli, name)
	if err != nil {
		return false, err
	}
	return cont != nil && cont.State == "running", nil
}

// CreateNetworkWithClient creates a Docker network with the bridge driver.
func CreateNetworkWithClient(ctx context.Context, cli DockerClient, name string) error {
	_, err := cli.NetworkCreate(ctx, name, networktypes.CreateOptions{Driver: "bridge"})
	if err != nil {
		return fmt.Errorf("failed to create network %s: %w", name, err)
	}
	return nil
}

// CreateVolumeWithClient creates a named Docker volume.
func CreateVolumeWithClient(ctx context.Context, cli DockerClient, name string) error {
	_, err := cli.VolumeCreate(ctx, volume.CreateOptions{Name: name})
	if err != nil {
		return fmt.Errorf("failed to create volume %s: %w", name, err)
	}
	return nil
}

// EnsureNetwork creates a Docker network if it doesn't already exist.
// Safe to call multiple times.
func EnsureNetwork(ctx context.Context, cli DockerClient, networkName string) error {
	networks, err := cli.NetworkList(ctx, networktypes.ListOptions{})
	if err != nil {
		return fmt.Errorf("failed to list networks: %w", err)
	}
	for _, net := range networks {
		if net.Name == networkName {
			return nil
		}
	}
	return CreateNetworkWithClient(ctx, cli, networkName)
}

// EnsureVolume creates a Docker volume if it doesn't already exist.
// Safe to call multiple times.
func EnsureVolume(ctx context.Context, cli DockerClient, volumeName string) error {
	volumes, err := cli.VolumeList(ctx, volume.ListOptions{})
	if err != nil {
		return fmt.Errorf("failed to list volumes: %w", err)
	}
	for _, vol := range volumes.Volumes {
		if vol.Name == volumeName {
			return nil
		}
	}
	return CreateVolumeWithClient(ctx, cli, volumeName)
}

// CreateAndStartContainerWithClient creates a container attached to the
// given network, starts it and returns its id.
func CreateAndStartContainerWithClient(ctx context.Context, cli DockerClient, config containertypes.Config, hostConfig containertypes.HostConfig, name, networkName string) (string, error) {
	networkingConfig := &networktypes.NetworkingConfig{}
	if networkName != "" {
		networkingConfig.EndpointsConfig = map[string]*networktypes.EndpointSettings{networkName: {}}
	}
	resp, err := cli.ContainerCreate(ctx, &config, &hostConfig, networkingConfig, nil, name)
	if err != nil {
		return "", err
	}
	if err = cli.ContainerStart(ctx, resp.ID, containertypes.StartOptions{}); err != nil {
		return "", err
	}
	return resp.ID, nil
}
