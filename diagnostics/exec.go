package diagnostics

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"

	"playground.evalgo.org/common"
)

// DefaultExecTimeout bounds a single diagnostic command.
const DefaultExecTimeout = 30 * time.Second

type dockerCommandRunner struct {
	cli     common.DockerClient
	timeout time.Duration
}

// NewDockerCommandRunner creates a runner backed by the Docker exec API.
func NewDockerCommandRunner(cli common.DockerClient) CommandRunner {
	return &dockerCommandRunner{cli: cli, timeout: DefaultExecTimeout}
}

// Exec runs the command in the container and collects its combined output.
func (r *dockerCommandRunner) Exec(ctx context.Context, containerID string, cmd []string) (*CommandResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	execConfig := container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	}

	execID, err := r.cli.ContainerExecCreate(execCtx, containerID, execConfig)
	if err != nil {
		return nil, fmt.Errorf("exec create failed: %w", err)
	}

	resp, err := r.cli.ContainerExecAttach(execCtx, execID.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("exec attach failed: %w", err)
	}
	defer resp.Close()

	output, _ := io.ReadAll(resp.Reader)

	for {
		inspect, err := r.cli.ContainerExecInspect(execCtx, execID.ID)
		if err != nil {
			return nil, fmt.Errorf("exec inspect failed: %w", err)
		}
		if !inspect.Running {
			return &CommandResult{
				Success:  inspect.ExitCode == 0,
				Output:   string(output),
				ExitCode: inspect.ExitCode,
			}, nil
		}

		select {
		case <-execCtx.Done():
			return nil, fmt.Errorf("command timed out after %s", r.timeout)
		case <-time.After(100 * time.Millisecond):
		}
	}
}
