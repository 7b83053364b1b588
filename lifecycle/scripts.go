// Package lifecycle executes container operations (start, stop, group and
// bulk actions) asynchronously and records their progress as trackable
// operations.
package lifecycle

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"

	"playground.evalgo.org/common"
	"playground.evalgo.org/groups"
)

// ScriptResult holds the outcome of one lifecycle script execution.
type ScriptResult struct {
	ExitCode int
	Output   string
}

// ScriptRunner executes lifecycle scripts inside containers.
type ScriptRunner interface {
	// Run executes the script in the container identified by containerID
	// and waits for it to finish, bounded by the script's timeout.
	Run(ctx context.Context, containerID string, script groups.Script) (*ScriptResult, error)
}

type dockerScriptRunner struct {
	cli common.DockerClient
}

// NewDockerScriptRunner creates a runner that uses the Docker exec API.
func NewDockerScriptRunner(cli common.DockerClient) ScriptRunner {
	return &dockerScriptRunner{cli: cli}
}

// Run executes the script via docker exec and waits for its exit code.
func (r *dockerScriptRunner) Run(ctx context.Context, containerID string, script groups.Script) (*ScriptResult, error) {
	timeout := time.Duration(script.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	execConfig := container.ExecOptions{
		Cmd:          script.Command,
		AttachStdout: true,
		AttachStderr: true,
		WorkingDir:   script.WorkingDirectory,
	}

	execID, err := r.cli.ContainerExecCreate(execCtx, containerID, execConfig)
	if err != nil {
		return nil, fmt.Errorf("script %s: exec create failed: %w", script.Name, err)
	}

	resp, err := r.cli.ContainerExecAttach(execCtx, execID.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("script %s: exec attach failed: %w", script.Name, err)
	}
	defer resp.Close()

	output, _ := io.ReadAll(resp.Reader)

	for {
		inspect, err := r.cli.ContainerExecInspect(execCtx, execID.ID)
		if err != nil {
			return nil, fmt.Errorf("script %s: exec inspect failed: %w", script.Name, err)
		}
		if !inspect.Running {
			result := &ScriptResult{ExitCode: inspect.ExitCode, Output: string(output)}
			if inspect.ExitCode != 0 {
				return result, fmt.Errorf("script %s exited with code %d", script.Name, inspect.ExitCode)
			}
			return result, nil
		}

		select {
		case <-execCtx.Done():
			return nil, fmt.Errorf("script %s timed out", script.Name)
		case <-time.After(100 * time.Millisecond):
		}
	}
}
