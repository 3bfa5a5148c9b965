package driver

import (
	"context"
	"sync"
	"time"
)

// FakeDriver is an in-memory Driver used by tests and local development
// without a real container runtime (spec §4.1 drivers "are interchangeable
// behind the same interface").
type FakeDriver struct {
	mu         sync.Mutex
	containers map[string]RuntimeState
	events     chan Event
}

// NewFakeDriver returns a FakeDriver with no containers registered.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{
		containers: make(map[string]RuntimeState),
		events:     make(chan Event, 64),
	}
}

func (d *FakeDriver) emit(name string, state RuntimeState) {
	select {
	case d.events <- Event{Container: name, State: state, At: time.Now()}:
	default:
	}
}

func (d *FakeDriver) Create(_ context.Context, spec ContainerSpec) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.containers[spec.Name]; ok {
		return &Error{Kind: FailureAlreadyInState, Container: spec.Name, Op: "create"}
	}
	d.containers[spec.Name] = StateCreated
	return nil
}

func (d *FakeDriver) Start(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	state, ok := d.containers[name]
	if !ok {
		return &Error{Kind: FailureNotFound, Container: name, Op: "start"}
	}
	if state == StateRunning {
		return &Error{Kind: FailureAlreadyInState, Container: name, Op: "start"}
	}
	d.containers[name] = StateRunning
	d.emit(name, StateRunning)
	return nil
}

func (d *FakeDriver) Stop(_ context.Context, name string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	state, ok := d.containers[name]
	if !ok {
		return &Error{Kind: FailureNotFound, Container: name, Op: "stop"}
	}
	if state == StateExited || state == StateCreated {
		return &Error{Kind: FailureAlreadyInState, Container: name, Op: "stop"}
	}
	d.containers[name] = StateExited
	d.emit(name, StateExited)
	return nil
}

func (d *FakeDriver) Pause(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	state, ok := d.containers[name]
	if !ok {
		return &Error{Kind: FailureNotFound, Container: name, Op: "pause"}
	}
	if state != StateRunning {
		return &Error{Kind: FailureAlreadyInState, Container: name, Op: "pause"}
	}
	d.containers[name] = StatePaused
	d.emit(name, StatePaused)
	return nil
}

func (d *FakeDriver) Unpause(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	state, ok := d.containers[name]
	if !ok {
		return &Error{Kind: FailureNotFound, Container: name, Op: "unpause"}
	}
	if state != StatePaused {
		return &Error{Kind: FailureAlreadyInState, Container: name, Op: "unpause"}
	}
	d.containers[name] = StateRunning
	d.emit(name, StateRunning)
	return nil
}

func (d *FakeDriver) Remove(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.containers[name]; !ok {
		return &Error{Kind: FailureNotFound, Container: name, Op: "remove"}
	}
	delete(d.containers, name)
	d.emit(name, StateAbsent)
	return nil
}

func (d *FakeDriver) Inspect(_ context.Context, name string) (RuntimeState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	state, ok := d.containers[name]
	if !ok {
		return StateAbsent, nil
	}
	return state, nil
}

func (d *FakeDriver) Stats(_ context.Context, name string) (Stats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.containers[name]; !ok {
		return Stats{}, &Error{Kind: FailureNotFound, Container: name, Op: "stats"}
	}
	return Stats{}, nil
}

func (d *FakeDriver) StreamEvents(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event, 64)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-d.events:
				if !ok {
					return
				}
				out <- ev
			}
		}
	}()
	return out, nil
}
