// Package driver abstracts the container runtime that hosts upstream MCP
// servers (spec §4.1 Container Driver). Every operation is idempotent from
// the Supervisor's point of view and reports failures through a small,
// closed taxonomy rather than raw runtime errors, so the Supervisor never
// needs runtime-specific error handling (spec §4.1 "typed failures").
//
// Grounded on the Gateway/ContainerRuntime split in
// other_examples' docker-mcp-gateway run.go (a Gateway owns a
// runtime.ContainerRuntime and drives containers through it rather than
// talking to the Docker API directly), and on docker/docker being an
// indirect dependency of the teacher already (pulled in transitively via
// Helm's registry client) — this gateway makes it a direct one because its
// pause/unpause primitives map exactly onto the SLEEPING/RUNNING split the
// Supervisor needs (spec §4.3).
package driver

import (
	"context"
	"time"
)

// FailureKind is the closed set of ways a driver operation can fail
// (spec §4.1).
type FailureKind string

const (
	FailureNone              FailureKind = ""
	FailureNotFound          FailureKind = "not_found"
	FailureAlreadyInState    FailureKind = "already_in_state"
	FailureRuntimeUnavailable FailureKind = "runtime_unavailable"
	FailureResourceExhausted FailureKind = "resource_exhausted"
	FailureTimeout           FailureKind = "timeout"
	FailureUnknown           FailureKind = "unknown"
)

// Error wraps a driver failure with its typed Kind so callers can branch on
// it without string matching.
type Error struct {
	Kind      FailureKind
	Container string
	Op        string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return string(e.Kind) + ": " + e.Op + " " + e.Container + ": " + e.Cause.Error()
	}
	return string(e.Kind) + ": " + e.Op + " " + e.Container
}

func (e *Error) Unwrap() error { return e.Cause }

// ContainerSpec describes what to create (fields drawn from model.Service).
type ContainerSpec struct {
	Name                 string
	Image                string
	Env                  map[string]string
	MemLimitBytes        int64
	MemReservationBytes  int64
	CPULimitMillis       int64
	CPUReservationMillis int64
	PIDLimit             int64
	PortBindings         map[int]int // containerPort -> hostPort
}

// Stats is a point-in-time resource reading for one container.
type Stats struct {
	MemUsageBytes   int64
	CPUUsagePercent float64
	PIDs            int64
}

// RuntimeState is the driver's view of a container's lifecycle, independent
// of the Supervisor's richer Phase (spec §4.1: the driver "has no concept
// of SLEEPING vs RUNNING beyond paused/unpaused").
type RuntimeState string

const (
	StateAbsent  RuntimeState = "absent"
	StateCreated RuntimeState = "created"
	StateRunning RuntimeState = "running"
	StatePaused  RuntimeState = "paused"
	StateExited  RuntimeState = "exited"
)

// Event is one lifecycle notification streamed from the runtime (spec §4.1
// streamEvents: used by the Supervisor to detect out-of-band container
// death rather than only polling).
type Event struct {
	Container string
	State     RuntimeState
	At        time.Time
}

// Driver is implemented by every container runtime backend the gateway
// supports. All operations are idempotent: calling Start on an
// already-running container returns FailureAlreadyInState, never a crash.
type Driver interface {
	Create(ctx context.Context, spec ContainerSpec) error
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string, timeout time.Duration) error
	Pause(ctx context.Context, name string) error
	Unpause(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
	Inspect(ctx context.Context, name string) (RuntimeState, error)
	Stats(ctx context.Context, name string) (Stats, error)
	StreamEvents(ctx context.Context) (<-chan Event, error)
}
