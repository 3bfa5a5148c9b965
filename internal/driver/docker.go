package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

// DockerDriver implements Driver against a local or remote Docker daemon.
type DockerDriver struct {
	cli *client.Client
}

// NewDockerDriver dials the daemon referenced by the standard DOCKER_HOST
// environment (or the local socket, if unset).
func NewDockerDriver() (*DockerDriver, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, &Error{Kind: FailureRuntimeUnavailable, Op: "connect", Cause: err}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, &Error{Kind: FailureRuntimeUnavailable, Op: "connect", Cause: err}
	}
	return &DockerDriver{cli: cli}, nil
}

func (d *DockerDriver) Create(ctx context.Context, spec ContainerSpec) error {
	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, k+"="+v)
	}

	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for containerPort, hostPort := range spec.PortBindings {
		p, err := nat.NewPort("tcp", fmt.Sprintf("%d", containerPort))
		if err != nil {
			return &Error{Kind: FailureUnknown, Container: spec.Name, Op: "create", Cause: err}
		}
		exposed[p] = struct{}{}
		bindings[p] = []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: fmt.Sprintf("%d", hostPort)}}
	}

	hostCfg := &container.HostConfig{
		PortBindings: bindings,
		Resources: container.Resources{
			Memory:            spec.MemLimitBytes,
			MemoryReservation: spec.MemReservationBytes,
			NanoCPUs:          spec.CPULimitMillis * 1_000_000,
			PidsLimit:         pidsLimitPtr(spec.PIDLimit),
		},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyDisabled},
	}

	_, err := d.cli.ContainerCreate(ctx, &container.Config{
		Image:        spec.Image,
		Env:          env,
		ExposedPorts: exposed,
	}, hostCfg, nil, nil, spec.Name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return &Error{Kind: FailureNotFound, Container: spec.Name, Op: "create", Cause: err}
		}
		return classify(spec.Name, "create", err)
	}
	return nil
}

func pidsLimitPtr(limit int64) *int64 {
	if limit <= 0 {
		return nil
	}
	return &limit
}

func (d *DockerDriver) Start(ctx context.Context, name string) error {
	if err := d.cli.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		return classify(name, "start", err)
	}
	return nil
}

func (d *DockerDriver) Stop(ctx context.Context, name string, timeout time.Duration) error {
	secs := int(timeout.Seconds())
	if err := d.cli.ContainerStop(ctx, name, container.StopOptions{Timeout: &secs}); err != nil {
		return classify(name, "stop", err)
	}
	return nil
}

func (d *DockerDriver) Pause(ctx context.Context, name string) error {
	if err := d.cli.ContainerPause(ctx, name); err != nil {
		return classify(name, "pause", err)
	}
	return nil
}

func (d *DockerDriver) Unpause(ctx context.Context, name string) error {
	if err := d.cli.ContainerUnpause(ctx, name); err != nil {
		return classify(name, "unpause", err)
	}
	return nil
}

func (d *DockerDriver) Remove(ctx context.Context, name string) error {
	if err := d.cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: true}); err != nil {
		return classify(name, "remove", err)
	}
	return nil
}

func (d *DockerDriver) Inspect(ctx context.Context, name string) (RuntimeState, error) {
	info, err := d.cli.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return StateAbsent, nil
		}
		return "", classify(name, "inspect", err)
	}
	if info.State == nil {
		return StateAbsent, nil
	}
	switch {
	case info.State.Paused:
		return StatePaused, nil
	case info.State.Running:
		return StateRunning, nil
	case info.State.Status == "created":
		return StateCreated, nil
	default:
		return StateExited, nil
	}
}

func (d *DockerDriver) Stats(ctx context.Context, name string) (Stats, error) {
	resp, err := d.cli.ContainerStatsOneShot(ctx, name)
	if err != nil {
		return Stats{}, classify(name, "stats", err)
	}
	defer resp.Body.Close()

	var raw container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Stats{}, &Error{Kind: FailureUnknown, Container: name, Op: "stats", Cause: err}
	}

	cpuDelta := float64(raw.CPUStats.CPUUsage.TotalUsage - raw.PreCPUStats.CPUUsage.TotalUsage)
	sysDelta := float64(raw.CPUStats.SystemUsage - raw.PreCPUStats.SystemUsage)
	var cpuPct float64
	if sysDelta > 0 && cpuDelta > 0 {
		cpuPct = (cpuDelta / sysDelta) * float64(len(raw.CPUStats.CPUUsage.PercpuUsage)) * 100
	}

	return Stats{
		MemUsageBytes:   int64(raw.MemoryStats.Usage),
		CPUUsagePercent: cpuPct,
		PIDs:            int64(raw.PidsStats.Current),
	}, nil
}

func (d *DockerDriver) StreamEvents(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event, 32)
	filterArgs := filters.NewArgs(filters.Arg("type", "container"))
	msgs, errs := d.cli.Events(ctx, events.ListOptions{Filters: filterArgs})

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errs:
				if !ok {
					return
				}
				if err != nil && !errors.Is(err, context.Canceled) {
					return
				}
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				state := eventActionToState(string(msg.Action))
				if state == "" {
					continue
				}
				select {
				case out <- Event{Container: msg.Actor.Attributes["name"], State: state, At: time.Unix(0, msg.TimeNano)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func eventActionToState(action string) RuntimeState {
	switch action {
	case "start":
		return StateRunning
	case "pause":
		return StatePaused
	case "unpause":
		return StateRunning
	case "die", "stop", "kill":
		return StateExited
	case "destroy":
		return StateAbsent
	default:
		return ""
	}
}

func classify(containerName, op string, err error) error {
	switch {
	case client.IsErrNotFound(err):
		return &Error{Kind: FailureNotFound, Container: containerName, Op: op, Cause: err}
	case client.IsErrConnectionFailed(err):
		return &Error{Kind: FailureRuntimeUnavailable, Container: containerName, Op: op, Cause: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: FailureTimeout, Container: containerName, Op: op, Cause: err}
	default:
		return &Error{Kind: FailureUnknown, Container: containerName, Op: op, Cause: err}
	}
}
