package lifecycle

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	containertypes "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/go-connections/nat"

	"playground.evalgo.org/common"
	"playground.evalgo.org/events"
	"playground.evalgo.org/groups"
	"playground.evalgo.org/operations"
	"playground.evalgo.org/progress"
)

// Config tunes the executor.
type Config struct {
	// Network is the default Docker network for containers whose group
	// does not name one (default "playground").
	Network string
	// StopTimeout is the grace period before a container is killed
	// (default 10s).
	StopTimeout time.Duration
	// ReadyRetries bounds the wait for a started container to report
	// running (default 10).
	ReadyRetries int
	// ReadyInterval is the pause between readiness probes (default 500ms).
	ReadyInterval time.Duration
}

// Executor runs container operations asynchronously. Every public action
// registers an operation, starts the work in a goroutine and returns the
// operation id immediately; clients poll the operation store for progress.
type Executor struct {
	cli      common.DockerClient
	store    operations.Store
	registry *groups.Registry
	scripts  ScriptRunner
	events   events.Publisher
	cfg      Config

	wg sync.WaitGroup
}

// NewExecutor creates an executor. publisher may be nil when event
// publishing is disabled.
func NewExecutor(cli common.DockerClient, store operations.Store, registry *groups.Registry, scripts ScriptRunner, publisher events.Publisher, cfg Config) *Executor {
	if cfg.Network == "" {
		cfg.Network = "playground"
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}
	if cfg.ReadyRetries <= 0 {
		cfg.ReadyRetries = 10
	}
	if cfg.ReadyInterval <= 0 {
		cfg.ReadyInterval = 500 * time.Millisecond
	}
	return &Executor{
		cli:      cli,
		store:    store,
		registry: registry,
		scripts:  scripts,
		events:   publisher,
		cfg:      cfg,
	}
}

// Wait blocks until all in-flight operations have finished. Used during
// shutdown and in tests.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// StartContainer starts the named container asynchronously. A container
// with a group definition gets the full create flow (volumes, network,
// image pull, post-start scripts); an existing undefined container is
// simply started.
func (e *Executor) StartContainer(name string) (string, error) {
	total := 1
	opID, err := e.store.Begin(operations.KindStart, name, &total)
	if err != nil {
		return "", err
	}
	e.publish(opID, operations.KindStart, string(operations.StatusRunning), name)

	e.launch(func(ctx context.Context) {
		group, def := e.registry.FindContainer(name)
		e.startOne(ctx, opID, operations.KindStart, name, def, e.networkFor(group))
		e.finish(opID, operations.KindStart, name)
	})
	return opID, nil
}

// StopContainer stops the named container asynchronously, running its
// pre-stop scripts first when it has a group definition.
func (e *Executor) StopContainer(name string) (string, error) {
	total := 1
	opID, err := e.store.Begin(operations.KindStop, name, &total)
	if err != nil {
		return "", err
	}
	e.publish(opID, operations.KindStop, string(operations.StatusRunning), name)

	e.launch(func(ctx context.Context) {
		_, def := e.registry.FindContainer(name)
		e.stopOne(ctx, opID, operations.KindStop, name, def)
		e.finish(opID, operations.KindStop, name)
	})
	return opID, nil
}

// StartGroup starts all containers of the group in position order.
// Unknown groups fail synchronously.
func (e *Executor) StartGroup(name string) (string, error) {
	group := e.registry.Get(name)
	if group == nil {
		return "", fmt.Errorf("unknown group: %s", name)
	}

	total := len(group.Containers)
	opID, err := e.store.Begin(operations.KindStartGroup, name, &total)
	if err != nil {
		return "", err
	}
	e.publish(opID, operations.KindStartGroup, string(operations.StatusRunning), name)

	e.launch(func(ctx context.Context) {
		network := e.networkFor(group)
		for i := range group.Containers {
			def := &group.Containers[i]
			e.startOne(ctx, opID, operations.KindStartGroup, def.Name, def, network)
		}
		e.finish(opID, operations.KindStartGroup, name)
	})
	return opID, nil
}

// StopGroup stops all containers of the group in reverse position order,
// so dependents go down before their requirements.
func (e *Executor) StopGroup(name string) (string, error) {
	group := e.registry.Get(name)
	if group == nil {
		return "", fmt.Errorf("unknown group: %s", name)
	}

	total := len(group.Containers)
	opID, err := e.store.Begin(operations.KindStopGroup, name, &total)
	if err != nil {
		return "", err
	}
	e.publish(opID, operations.KindStopGroup, string(operations.StatusRunning), name)

	e.launch(func(ctx context.Context) {
		for i := len(group.Containers) - 1; i >= 0; i-- {
			def := &group.Containers[i]
			e.stopOne(ctx, opID, operations.KindStopGroup, def.Name, def)
		}
		e.finish(opID, operations.KindStopGroup, name)
	})
	return opID, nil
}

// StopAll stops every container known to the group registry.
func (e *Executor) StopAll() (string, error) {
	names := e.managedNames()
	total := len(names)
	opID, err := e.store.Begin(operations.KindStop, "all containers", &total)
	if err != nil {
		return "", err
	}
	e.publish(opID, operations.KindStop, string(operations.StatusRunning), "all containers")

	e.launch(func(ctx context.Context) {
		for i := len(names) - 1; i >= 0; i-- {
			_, def := e.registry.FindContainer(names[i])
			e.stopOne(ctx, opID, operations.KindStop, names[i], def)
		}
		e.finish(opID, operations.KindStop, "all containers")
	})
	return opID, nil
}

// RestartAll restarts every existing managed container.
func (e *Executor) RestartAll() (string, error) {
	names := e.managedNames()
	total := len(names)
	opID, err := e.store.Begin(operations.KindRestartAll, "all containers", &total)
	if err != nil {
		return "", err
	}
	e.publish(opID, operations.KindRestartAll, string(operations.StatusRunning), "all containers")

	e.launch(func(ctx context.Context) {
		for _, name := range names {
			e.restartOne(ctx, opID, operations.KindRestartAll, name)
		}
		e.finish(opID, operations.KindRestartAll, "all containers")
	})
	return opID, nil
}

// CleanupAll stops and removes every managed container together with its
// anonymous volumes. Named volumes are kept.
func (e *Executor) CleanupAll() (string, error) {
	names := e.managedNames()
	total := len(names)
	opID, err := e.store.Begin(operations.KindCleanupAll, "all containers", &total)
	if err != nil {
		return "", err
	}
	e.publish(opID, operations.KindCleanupAll, string(operations.StatusRunning), "all containers")

	e.launch(func(ctx context.Context) {
		for i := len(names) - 1; i >= 0; i-- {
			_, def := e.registry.FindContainer(names[i])
			e.removeOne(ctx, opID, operations.KindCleanupAll, names[i], def)
		}
		e.finish(opID, operations.KindCleanupAll, "all containers")
	})
	return opID, nil
}

func (e *Executor) launch(fn func(ctx context.Context)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn(context.Background())
	}()
}

// networkFor resolves the Docker network for a group, falling back to the
// configured default.
func (e *Executor) networkFor(group *groups.Group) string {
	if group != nil && group.Network != "" {
		return group.Network
	}
	return e.cfg.Network
}

// managedNames returns the names of all containers defined in any group,
// in group startup order, deduplicated.
func (e *Executor) managedNames() []string {
	var names []string
	seen := make(map[string]bool)
	for _, g := range e.registry.List() {
		for _, name := range g.ContainerNames() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// startOne brings one container up and increments the matching counter.
// Failures are recorded on the operation; they never abort the batch.
func (e *Executor) startOne(ctx context.Context, opID string, kind operations.Kind, name string, def *groups.Container, network string) {
	existing, err := common.FindContainerByName(ctx, e.cli, name)
	if err != nil {
		e.recordFailure(opID, name, err)
		return
	}
	if existing != nil && existing.State == "running" {
		e.store.Add(opID, operations.CounterAlreadyRunning)
		return
	}

	if def == nil {
		if existing == nil {
			e.recordFailure(opID, name, fmt.Errorf("no such container and no group definition"))
			return
		}
		e.setPhase(opID, kind, string(progress.PhaseLaunching), name)
		if err := e.cli.ContainerStart(ctx, existing.ID, containertypes.StartOptions{}); err != nil {
			e.recordFailure(opID, name, err)
			return
		}
		e.store.Add(opID, operations.CounterStarted)
		return
	}

	// A stopped leftover is recreated from scratch so config changes in the
	// definition take effect.
	if existing != nil {
		e.setPhase(opID, kind, string(progress.PhaseRemovingExisting), name)
		if err := e.cli.ContainerRemove(ctx, existing.ID, containertypes.RemoveOptions{Force: true}); err != nil {
			e.recordFailure(opID, name, err)
			return
		}
	}

	if len(def.Volumes) > 0 {
		e.setPhase(opID, kind, string(progress.PhasePreparingVolumes), name)
		for _, vm := range def.Volumes {
			if vm.Type != "volume" {
				continue
			}
			e.setPhase(opID, kind, string(progress.PhaseCreatingVolumes), name)
			if err := common.EnsureVolume(ctx, e.cli, vm.Source); err != nil {
				e.recordFailure(opID, name, err)
				return
			}
		}
	}

	if err := common.EnsureNetwork(ctx, e.cli, network); err != nil {
		e.recordFailure(opID, name, err)
		return
	}

	e.setPhase(opID, kind, string(progress.PhasePullingImage), name)
	reader, err := e.cli.ImagePull(ctx, def.Image, image.PullOptions{})
	if err != nil {
		e.recordFailure(opID, name, err)
		return
	}
	_, _ = io.Copy(io.Discard, reader)
	reader.Close()

	e.setPhase(opID, kind, string(progress.PhaseStartingContainer), name)
	config, hostConfig := buildContainerConfig(def)
	containerID, err := common.CreateAndStartContainerWithClient(ctx, e.cli, config, hostConfig, name, network)
	if err != nil {
		e.recordFailure(opID, name, err)
		return
	}

	e.setPhase(opID, kind, string(progress.PhaseWaitingReady), name)
	e.waitReady(ctx, containerID, name)

	e.runScripts(ctx, opID, kind, name, containerID, def.PostStart, groups.ScriptPostStart, string(progress.PhaseRunningPostStart))

	e.store.Add(opID, operations.CounterStarted)
}

// stopOne brings one container down, running pre-stop scripts first.
func (e *Executor) stopOne(ctx context.Context, opID string, kind operations.Kind, name string, def *groups.Container) {
	cont, err := common.FindContainerByName(ctx, e.cli, name)
	if err != nil {
		e.recordFailure(opID, name, err)
		return
	}
	if cont == nil || cont.State != "running" {
		e.store.Add(opID, operations.CounterNotRunning)
		return
	}

	if def != nil {
		e.runScripts(ctx, opID, kind, name, cont.ID, def.PreStop, groups.ScriptPreStop, string(progress.PhaseRunningPreStop))
	}

	e.setPhase(opID, kind, string(progress.PhaseStopping), name)
	timeout := int(e.cfg.StopTimeout.Seconds())
	if err := e.cli.ContainerStop(ctx, cont.ID, containertypes.StopOptions{Timeout: &timeout}); err != nil {
		e.recordFailure(opID, name, err)
		return
	}
	e.store.Add(opID, operations.CounterStopped)
}

// restartOne restarts one existing container.
func (e *Executor) restartOne(ctx context.Context, opID string, kind operations.Kind, name string) {
	cont, err := common.FindContainerByName(ctx, e.cli, name)
	if err != nil {
		e.recordFailure(opID, name, err)
		return
	}
	if cont == nil {
		e.store.Add(opID, operations.CounterNotRunning)
		return
	}

	e.setPhase(opID, kind, string(progress.PhaseLaunching), name)
	timeout := int(e.cfg.StopTimeout.Seconds())
	if err := e.cli.ContainerRestart(ctx, cont.ID, containertypes.StopOptions{Timeout: &timeout}); err != nil {
		e.recordFailure(opID, name, err)
		return
	}
	e.store.Add(opID, operations.CounterStarted)
}

// removeOne stops (if needed) and removes one container along with its
// anonymous volumes.
func (e *Executor) removeOne(ctx context.Context, opID string, kind operations.Kind, name string, def *groups.Container) {
	cont, err := common.FindContainerByName(ctx, e.cli, name)
	if err != nil {
		e.recordFailure(opID, name, err)
		return
	}
	if cont == nil {
		e.store.Add(opID, operations.CounterNotRunning)
		return
	}

	if cont.State == "running" {
		if def != nil {
			e.runScripts(ctx, opID, kind, name, cont.ID, def.PreStop, groups.ScriptPreStop, string(progress.PhaseRunningPreStop))
		}
		e.setPhase(opID, kind, string(progress.PhaseStopping), name)
		timeout := int(e.cfg.StopTimeout.Seconds())
		if err := e.cli.ContainerStop(ctx, cont.ID, containertypes.StopOptions{Timeout: &timeout}); err != nil {
			e.recordFailure(opID, name, err)
			return
		}
	}

	e.setPhase(opID, kind, string(progress.PhaseRemoving), name)
	if err := e.cli.ContainerRemove(ctx, cont.ID, containertypes.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
		e.recordFailure(opID, name, err)
		return
	}
	e.store.Add(opID, operations.CounterRemoved)
}

// runScripts executes lifecycle scripts of one type for a container.
// Script failures are recorded on the operation but do not fail the
// container action itself.
func (e *Executor) runScripts(ctx context.Context, opID string, kind operations.Kind, name, containerID string, scripts []groups.Script, typ groups.ScriptType, phase string) {
	if len(scripts) == 0 {
		return
	}

	e.setPhase(opID, kind, phase, name)
	ref := operations.ScriptRef{Container: name, Type: string(typ)}
	e.store.MarkScriptRunning(opID, ref)
	defer e.store.MarkScriptCompleted(opID, ref)

	for _, script := range scripts {
		if _, err := e.scripts.Run(ctx, containerID, script); err != nil {
			common.Logger.Warnf("%s script %s on %s failed: %v", typ, script.Name, name, err)
			e.store.AppendError(opID, fmt.Sprintf("%s: %v", name, err))
		}
	}
}

// waitReady polls until the container reports running or the retries are
// spent. Not observing readiness is logged, not fatal: the container
// may legitimately still be booting.
func (e *Executor) waitReady(ctx context.Context, containerID, name string) {
	for i := 0; i < e.cfg.ReadyRetries; i++ {
		inspect, err := e.cli.ContainerInspect(ctx, containerID)
		// ContainerInspect can return a zero ContainerJSON whose embedded
		// base pointer is nil.
		if err == nil && inspect.ContainerJSONBase != nil && inspect.State != nil && inspect.State.Running {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(e.cfg.ReadyInterval):
		}
	}
	common.Logger.Warnf("container %s not ready after %d probes", name, e.cfg.ReadyRetries)
}

func (e *Executor) recordFailure(opID, name string, err error) {
	common.Logger.Errorf("container %s: %v", name, err)
	e.store.Add(opID, operations.CounterFailed)
	e.store.AppendError(opID, fmt.Sprintf("%s: %v", name, err))
}

// finish settles the operation and publishes its terminal event. A run
// where every unit failed is a total failure; anything else completes,
// possibly with recorded per-unit errors.
func (e *Executor) finish(opID string, kind operations.Kind, label string) {
	status := operations.StatusCompleted
	if snap, err := e.store.Get(opID); err == nil && snap != nil && snap.Failed > 0 && snap.Failed == snap.TerminalCount() {
		e.store.Fail(opID, "")
		status = operations.StatusError
	} else {
		e.store.Complete(opID)
	}
	e.publish(opID, kind, string(status), label)
}

// setPhase records the sub-phase on the operation and publishes it.
func (e *Executor) setPhase(opID string, kind operations.Kind, phase, container string) {
	e.store.SetPhase(opID, phase, container)
	e.publishEvent(events.OperationEvent{
		OperationID: opID,
		Kind:        string(kind),
		Status:      string(operations.StatusRunning),
		Phase:       phase,
		Container:   container,
		Time:        time.Now(),
	})
}

func (e *Executor) publish(opID string, kind operations.Kind, status, label string) {
	e.publishEvent(events.OperationEvent{
		OperationID: opID,
		Kind:        string(kind),
		Status:      status,
		Label:       label,
		Time:        time.Now(),
	})
}

func (e *Executor) publishEvent(event events.OperationEvent) {
	if e.events == nil {
		return
	}
	if err := e.events.PublishOperation(event); err != nil {
		common.Logger.Warnf("failed to publish operation event: %v", err)
	}
}

// buildContainerConfig translates a group container definition into Docker
// create parameters.
func buildContainerConfig(def *groups.Container) (containertypes.Config, containertypes.HostConfig) {
	env := make([]string, 0, len(def.Environment))
	for k, v := range def.Environment {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)

	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, pm := range def.Ports {
		port := nat.Port(fmt.Sprintf("%d/%s", pm.ContainerPort, pm.Protocol))
		exposed[port] = struct{}{}
		hostPort := ""
		if pm.HostPort > 0 {
			hostPort = strconv.Itoa(pm.HostPort)
		}
		bindings[port] = []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: hostPort}}
	}

	var mounts []mount.Mount
	for _, vm := range def.Volumes {
		mtype := mount.TypeVolume
		if vm.Type == "bind" {
			mtype = mount.TypeBind
		}
		mounts = append(mounts, mount.Mount{
			Type:     mtype,
			Source:   vm.Source,
			Target:   vm.Target,
			ReadOnly: vm.ReadOnly,
		})
	}

	config := containertypes.Config{
		Image:        def.Image,
		Env:          env,
		Cmd:          def.Command,
		ExposedPorts: exposed,
	}
	hostConfig := containertypes.HostConfig{
		PortBindings: bindings,
		Mounts:       mounts,
	}
	return config, hostConfig
}
