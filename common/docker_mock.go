package common

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	containertypes "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	networktypes "github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// MockDockerClient is a mock implementation of DockerClient for testing.
type MockDockerClient struct {
	mu sync.Mutex

	// Containers to return from ContainerList
	Containers []containertypes.Summary
	// InspectResponses maps container IDs to inspect results
	InspectResponses map[string]types.ContainerJSON
	// Volumes to return from VolumeList
	Volumes *volume.ListResponse
	// Networks to return from NetworkList
	Networks []networktypes.Summary
	// Logs returned from ContainerLogs
	Logs string
	// ExecOutput is streamed from ContainerExecAttach
	ExecOutput string
	// ExecExitCode is reported by ContainerExecInspect
	ExecExitCode int
	// Err is returned from all operations when set
	Err error
	// ErrPerContainer returns an error for specific container IDs or names
	ErrPerContainer map[string]error

	// Track function calls
	ContainerListCalled    bool
	ContainerInspectCalled bool
	ContainerCreateCalled  bool
	ContainerStartCalled   bool
	ContainerStopCalled    bool
	ContainerRestartCalled bool
	ContainerRemoveCalled  bool
	ContainerWaitCalled    bool
	ContainerLogsCalled    bool
	ExecCreateCalled       bool
	ExecAttachCalled       bool
	ExecInspectCalled      bool
	ExecResizeCalled       bool
	ImagePullCalled        bool
	VolumeListCalled       bool
	VolumeCreateCalled     bool
	VolumeRemoveCalled     bool
	NetworkListCalled      bool
	NetworkCreateCalled    bool

	// Store call parameters
	LastContainerID   string
	LastContainerName string
	LastImageTag      string
	LastVolumeName    string
	LastNetworkName   string
	StartedIDs        []string
	StoppedIDs        []string
	RemovedIDs        []string
	RemoveOptions     []containertypes.RemoveOptions
	PulledImages      []string
	ExecCommands      [][]string
	ExecResizes       []containertypes.ResizeOptions
	LastExecID        string
}

// NewMockDockerClient creates a new mock Docker client.
func NewMockDockerClient() *MockDockerClient {
	return &MockDockerClient{
		Containers:       []containertypes.Summary{},
		InspectResponses: make(map[string]types.ContainerJSON),
		Volumes:          &volume.ListResponse{},
		ErrPerContainer:  make(map[string]error),
	}
}

// errFor returns the configured error for a container ID/name, if any.
func (m *MockDockerClient) errFor(id string) error {
	if m.Err != nil {
		return m.Err
	}
	if err, ok := m.ErrPerContainer[id]; ok {
		return err
	}
	// IDs in tests are often "mock-id-<name>"; allow matching by suffix.
	for key, err := range m.ErrPerContainer {
		if strings.HasSuffix(id, key) {
			return err
		}
	}
	return nil
}

// ContainerList mocks listing containers.
func (m *MockDockerClient) ContainerList(ctx context.Context, options containertypes.ListOptions) ([]containertypes.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ContainerListCalled = true
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Containers, nil
}

// ContainerInspect mocks inspecting a container.
func (m *MockDockerClient) ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ContainerInspectCalled = true
	m.LastContainerID = containerID
	if err := m.errFor(containerID); err != nil {
		return types.ContainerJSON{}, err
	}
	if resp, ok := m.InspectResponses[containerID]; ok {
		return resp, nil
	}
	return types.ContainerJSON{}, nil
}

// ContainerCreate mocks creating a container.
func (m *MockDockerClient) ContainerCreate(
	ctx context.Context,
	config *containertypes.Config,
	hostConfig *containertypes.HostConfig,
	networkingConfig *networktypes.NetworkingConfig,
	platform *ocispec.Platform,
	containerName string,
) (containertypes.CreateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ContainerCreateCalled = true
	m.LastContainerName = containerName
	if err := m.errFor(containerName); err != nil {
		return containertypes.CreateResponse{}, err
	}
	return containertypes.CreateResponse{ID: "mock-id-" + containerName}, nil
}

// ContainerStart mocks starting a container.
func (m *MockDockerClient) ContainerStart(ctx context.Context, containerID string, options containertypes.StartOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ContainerStartCalled = true
	m.LastContainerID = containerID
	if err := m.errFor(containerID); err != nil {
		return err
	}
	m.StartedIDs = append(m.StartedIDs, containerID)
	return nil
}

// ContainerStop mocks stopping a container.
func (m *MockDockerClient) ContainerStop(ctx context.Context, containerID string, options containertypes.StopOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ContainerStopCalled = true
	m.LastContainerID = containerID
	if err := m.errFor(containerID); err != nil {
		return err
	}
	m.StoppedIDs = append(m.StoppedIDs, containerID)
	return nil
}

// ContainerRestart mocks restarting a container.
func (m *MockDockerClient) ContainerRestart(ctx context.Context, containerID string, options containertypes.StopOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ContainerRestartCalled = true
	m.LastContainerID = containerID
	return m.errFor(containerID)
}

// ContainerRemove mocks removing a container.
func (m *MockDockerClient) ContainerRemove(ctx context.Context, containerID string, options containertypes.RemoveOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ContainerRemoveCalled = true
	m.LastContainerID = containerID
	m.RemoveOptions = append(m.RemoveOptions, options)
	if err := m.errFor(containerID); err != nil {
		return err
	}
	m.RemovedIDs = append(m.RemovedIDs, containerID)
	return nil
}

// ContainerWait mocks waiting for a container.
func (m *MockDockerClient) ContainerWait(ctx context.Context, containerID string, condition containertypes.WaitCondition) (<-chan containertypes.WaitResponse, <-chan error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ContainerWaitCalled = true
	m.LastContainerID = containerID

	statusCh := make(chan containertypes.WaitResponse, 1)
	errCh := make(chan error, 1)
	if err := m.errFor(containerID); err != nil {
		errCh <- err
	} else {
		statusCh <- containertypes.WaitResponse{StatusCode: 0}
	}
	return statusCh, errCh
}

// ContainerLogs mocks fetching container logs.
func (m *MockDockerClient) ContainerLogs(ctx context.Context, containerID string, options containertypes.LogsOptions) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ContainerLogsCalled = true
	m.LastContainerID = containerID
	if err := m.errFor(containerID); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewBufferString(m.Logs)), nil
}

// nopConn is a no-op net.Conn backing mocked hijacked exec responses.
type nopConn struct{}

func (nopConn) Read(b []byte) (int, error)         { return 0, io.EOF }
func (nopConn) Write(b []byte) (int, error)        { return len(b), nil }
func (nopConn) Close() error                       { return nil }
func (nopConn) LocalAddr() net.Addr                { return &net.TCPAddr{} }
func (nopConn) RemoteAddr() net.Addr               { return &net.TCPAddr{} }
func (nopConn) SetDeadline(t time.Time) error      { return nil }
func (nopConn) SetReadDeadline(t time.Time) error  { return nil }
func (nopConn) SetWriteDeadline(t time.Time) error { return nil }

// ContainerExecCreate mocks creating an exec instance.
func (m *MockDockerClient) ContainerExecCreate(ctx context.Context, container string, options containertypes.ExecOptions) (types.IDResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExecCreateCalled = true
	m.LastContainerID = container
	m.ExecCommands = append(m.ExecCommands, options.Cmd)
	if err := m.errFor(container); err != nil {
		return types.IDResponse{}, err
	}
	return types.IDResponse{ID: "mock-exec-" + container}, nil
}

// ContainerExecAttach mocks attaching to an exec instance. The hijacked
// reader serves ExecOutput once.
func (m *MockDockerClient) ContainerExecAttach(ctx context.Context, execID string, options containertypes.ExecStartOptions) (types.HijackedResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExecAttachCalled = true
	m.LastExecID = execID
	if m.Err != nil {
		return types.HijackedResponse{}, m.Err
	}
	return types.HijackedResponse{
		Conn:   nopConn{},
		Reader: bufio.NewReader(strings.NewReader(m.ExecOutput)),
	}, nil
}

// ContainerExecInspect mocks inspecting an exec instance. The mocked
// command is always already finished.
func (m *MockDockerClient) ContainerExecInspect(ctx context.Context, execID string) (containertypes.ExecInspect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExecInspectCalled = true
	m.LastExecID = execID
	if m.Err != nil {
		return containertypes.ExecInspect{}, m.Err
	}
	return containertypes.ExecInspect{ExecID: execID, Running: false, ExitCode: m.ExecExitCode}, nil
}

// ContainerExecResize mocks resizing an exec TTY.
func (m *MockDockerClient) ContainerExecResize(ctx context.Context, execID string, options containertypes.ResizeOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExecResizeCalled = true
	m.LastExecID = execID
	m.ExecResizes = append(m.ExecResizes, options)
	return m.Err
}

// ImagePull mocks pulling an image.
func (m *MockDockerClient) ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ImagePullCalled = true
	m.LastImageTag = refStr
	if m.Err != nil {
		return nil, m.Err
	}
	m.PulledImages = append(m.PulledImages, refStr)
	return io.NopCloser(bytes.NewBufferString("{}")), nil
}

// VolumeList mocks listing volumes.
func (m *MockDockerClient) VolumeList(ctx context.Context, options volume.ListOptions) (volume.ListResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.VolumeListCalled = true
	if m.Err != nil {
		return volume.ListResponse{}, m.Err
	}
	if m.Volumes != nil {
		return *m.Volumes, nil
	}
	return volume.ListResponse{}, nil
}

// VolumeCreate mocks creating a volume.
func (m *MockDockerClient) VolumeCreate(ctx context.Context, options volume.CreateOptions) (volume.Volume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.VolumeCreateCalled = true
	m.LastVolumeName = options.Name
	if m.Err != nil {
		return volume.Volume{}, m.Err
	}
	return volume.Volume{Name: options.Name}, nil
}

// VolumeRemove mocks removing a volume.
func (m *MockDockerClient) VolumeRemove(ctx context.Context, volumeID string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.VolumeRemoveCalled = true
	m.LastVolumeName = volumeID
	return m.Err
}

// NetworkList mocks listing networks.
func (m *MockDockerClient) NetworkList(ctx context.Context, options networktypes.ListOptions) ([]networktypes.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NetworkListCalled = true
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Networks, nil
}

// NetworkCreate mocks creating a network.
func (m *MockDockerClient) NetworkCreate(ctx context.Context, name string, options networktypes.CreateOptions) (networktypes.CreateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NetworkCreateCalled = true
	m.LastNetworkName = name
	if m.Err != nil {
		return networktypes.CreateResponse{}, m.Err
	}
	return networktypes.CreateResponse{ID: "mock-network-" + name}, nil
}

// Close mocks closing the client.
func (m *MockDockerClient) Close() error {
	return nil
}
