// Package diagnostics runs read-only inspection commands inside
// containers and fetches recent logs. It backs the troubleshooting
// endpoints of the API.
package diagnostics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	containertypes "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/dustin/go-humanize"

	"playground.evalgo.org/common"
)

// CommandResult is the outcome of one command executed in a container.
type CommandResult struct {
	Success  bool   `json:"success"`
	Output   string `json:"output"`
	ExitCode int    `json:"exit_code"`
}

// CommandRunner executes a command inside a container.
type CommandRunner interface {
	Exec(ctx context.Context, containerID string, cmd []string) (*CommandResult, error)
}

// Named diagnostic checks. Extend by adding table rows.
var checks = map[string][]string{
	"processes": {"ps", "aux"},
	"disk":      {"df", "-h"},
	"network":   {"netstat", "-tuln"},
	"env":       {"env"},
	"uptime":    {"uptime"},
}

// Checks returns the available diagnostic names, sorted.
func Checks() []string {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Inspector resolves container names and runs diagnostics against them.
type Inspector struct {
	cli    common.DockerClient
	runner CommandRunner
}

// NewInspector creates an inspector.
func NewInspector(cli common.DockerClient, runner CommandRunner) *Inspector {
	return &Inspector{cli: cli, runner: runner}
}

// Run executes the named diagnostic check in the container.
func (i *Inspector) Run(ctx context.Context, containerName, check string) (*CommandResult, error) {
	cmd, ok := checks[check]
	if !ok {
		return nil, fmt.Errorf("unknown diagnostic: %s", check)
	}
	return i.ExecCommand(ctx, containerName, cmd)
}

// ExecCommand executes an arbitrary command in the named container. The
// container must be running.
func (i *Inspector) ExecCommand(ctx context.Context, containerName string, cmd []string) (*CommandResult, error) {
	if len(cmd) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cont, err := common.FindContainerByName(ctx, i.cli, containerName)
	if err != nil {
		return nil, err
	}
	if cont == nil {
		return nil, fmt.Errorf("no such container: %s", containerName)
	}
	if cont.State != "running" {
		return nil, fmt.Errorf("container %s is not running", containerName)
	}

	return i.runner.Exec(ctx, cont.ID, cmd)
}

// Report bundles the output of every diagnostic check plus recent logs.
type Report struct {
	Container   string `json:"container"`
	Age         string `json:"age,omitempty"`
	Processes   string `json:"processes"`
	DiskUsage   string `json:"disk_usage"`
	Network     string `json:"network"`
	Environment string `json:"environment"`
	Uptime      string `json:"uptime"`
	RecentLogs  string `json:"recent_logs"`
}

// Collect runs every diagnostic check against the container and gathers
// recent logs. Individual check failures are reported inline so one broken
// tool does not void the whole report.
func (i *Inspector) Collect(ctx context.Context, containerName string) (*Report, error) {
	cont, err := common.FindContainerByName(ctx, i.cli, containerName)
	if err != nil {
		return nil, err
	}
	if cont == nil {
		return nil, fmt.Errorf("no such container: %s", containerName)
	}
	if cont.State != "running" {
		return nil, fmt.Errorf("container %s is not running", containerName)
	}

	report := &Report{
		Container: containerName,
		Age:       humanize.Time(time.Unix(cont.Created, 0)),
	}

	fields := map[string]*string{
		"processes": &report.Processes,
		"disk":      &report.DiskUsage,
		"network":   &report.Network,
		"env":       &report.Environment,
		"uptime":    &report.Uptime,
	}
	for check, field := range fields {
		result, err := i.runner.Exec(ctx, cont.ID, checks[check])
		if err != nil {
			*field = fmt.Sprintf("unavailable: %v", err)
			continue
		}
		*field = result.Output
	}

	logs, err := i.Logs(ctx, containerName, 50)
	if err != nil {
		report.RecentLogs = fmt.Sprintf("unavailable: %v", err)
	} else {
		report.RecentLogs = logs
	}

	return report, nil
}

// Logs returns the last tail lines of the container's logs. Multiplexed
// stream headers are stripped when present.
func (i *Inspector) Logs(ctx context.Context, containerName string, tail int) (string, error) {
	cont, err := common.FindContainerByName(ctx, i.cli, containerName)
	if err != nil {
		return "", err
	}
	if cont == nil {
		return "", fmt.Errorf("no such container: %s", containerName)
	}

	if tail <= 0 {
		tail = 100
	}
	reader, err := i.cli.ContainerLogs(ctx, cont.ID, containertypes.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(tail),
		Timestamps: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch logs: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read logs: %w", err)
	}

	// Non-TTY containers multiplex stdout and stderr; TTY containers
	// stream raw bytes.
	var demuxed bytes.Buffer
	if _, err := stdcopy.StdCopy(&demuxed, &demuxed, bytes.NewReader(raw)); err == nil {
		return demuxed.String(), nil
	}
	return string(raw), nil
}
