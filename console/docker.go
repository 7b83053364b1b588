package console

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"

	"playground.evalgo.org/common"
)

// dockerExec attaches an interactive shell via the Docker exec API.
type dockerExec struct {
	cli    common.DockerClient
	execID string
	resp   types.HijackedResponse
}

// NewDockerExec starts an interactive TTY exec in the container. cmd
// defaults to /bin/sh.
func NewDockerExec(ctx context.Context, cli common.DockerClient, containerID string, cmd []string) (ExecSession, error) {
	if len(cmd) == 0 {
		cmd = []string{"/bin/sh"}
	}

	execConfig := container.ExecOptions{
		Cmd:          cmd,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		Tty:          true,
	}

	execID, err := cli.ContainerExecCreate(ctx, containerID, execConfig)
	if err != nil {
		return nil, fmt.Errorf("exec create failed: %w", err)
	}

	resp, err := cli.ContainerExecAttach(ctx, execID.ID, container.ExecStartOptions{Tty: true})
	if err != nil {
		return nil, fmt.Errorf("exec attach failed: %w", err)
	}

	return &dockerExec{cli: cli, execID: execID.ID, resp: resp}, nil
}

func (d *dockerExec) Read(p []byte) (int, error) {
	return d.resp.Reader.Read(p)
}

func (d *dockerExec) Write(p []byte) (int, error) {
	return d.resp.Conn.Write(p)
}

func (d *dockerExec) Resize(ctx context.Context, cols, rows uint) error {
	return d.cli.ContainerExecResize(ctx, d.execID, container.ResizeOptions{Width: cols, Height: rows})
}

func (d *dockerExec) Close() error {
	d.resp.Close()
	return nil
}
