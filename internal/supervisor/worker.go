package supervisor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kubilitics/mcp-gateway/internal/driver"
	"github.com/kubilitics/mcp-gateway/internal/eventbus"
	"github.com/kubilitics/mcp-gateway/internal/model"
	"github.com/kubilitics/mcp-gateway/internal/registry"
)

// commandKind is one instruction a worker's mailbox can carry.
type commandKind string

const (
	cmdStart     commandKind = "start"
	cmdStop      commandKind = "stop"
	cmdSleep     commandKind = "sleep"
	cmdWake      commandKind = "wake"
	cmdReconcile commandKind = "reconcile"
	cmdTick      commandKind = "tick" // idle-timeout check
)

type command struct {
	kind  commandKind
	reply chan error
}

const mailboxCapacity = 8

// worker owns exactly one service's Phase and the only goroutine allowed
// to call the driver on its behalf (Design Notes §9: "per-service
// goroutine ownership with bounded mailboxes" — grounded on the
// per-cluster clusterMonitor goroutine-plus-cancelFunc pattern in
// kubilitics-backend/internal/addon/lifecycle/controller.go, narrowed from
// "one goroutine per cluster" to "one goroutine per service").
type worker struct {
	name    string
	mailbox chan command
	done    chan struct{}

	reg    *registry.Registry
	drv    driver.Driver
	ledger *Ledger
	bus    *eventbus.Bus
	log    *zap.Logger

	backoff *backoffState
}

func newWorker(name string, reg *registry.Registry, drv driver.Driver, ledger *Ledger, bus *eventbus.Bus, log *zap.Logger) *worker {
	w := &worker{
		name:    name,
		mailbox: make(chan command, mailboxCapacity),
		done:    make(chan struct{}),
		reg:     reg,
		drv:     drv,
		ledger:  ledger,
		bus:     bus,
		log:     log.With(zap.String("service", name)),
		backoff: newBackoffState(),
	}
	return w
}

func (w *worker) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-w.mailbox:
			if !ok {
				return
			}
			err := w.handle(ctx, cmd.kind)
			if cmd.reply != nil {
				cmd.reply <- err
			}
		}
	}
}

// send enqueues a command and waits for its completion, surfacing a
// mailbox-full condition as a Timeout rather than blocking forever.
func (w *worker) send(ctx context.Context, kind commandKind) error {
	reply := make(chan error, 1)
	select {
	case w.mailbox <- command{kind: kind, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(2 * time.Second):
		return errMailboxFull(w.name)
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *worker) handle(ctx context.Context, kind commandKind) error {
	svc, err := w.reg.Get(w.name)
	if err != nil {
		return err
	}

	switch kind {
	case cmdStart:
		return w.doStart(ctx, svc)
	case cmdStop:
		return w.doStop(ctx, svc)
	case cmdSleep:
		return w.doSleep(ctx, svc)
	case cmdWake:
		return w.doWake(ctx, svc)
	case cmdReconcile:
		return w.doReconcile(ctx, svc)
	case cmdTick:
		return w.doIdleCheck(ctx, svc)
	default:
		return nil
	}
}

func (w *worker) transition(to model.Phase, from model.Phase) {
	_ = w.reg.MutateObservedState(w.name, func(s *model.Service) {
		s.Phase = to
		s.LastTransitionAt = time.Now()
	})
	w.bus.Publish(eventbus.Transition{Service: w.name, From: string(from), To: string(to)})
	w.log.Info("phase transition", zap.String("from", string(from)), zap.String("to", string(to)))
}

func (w *worker) doStart(ctx context.Context, svc model.Service) error {
	if svc.Phase == model.PhaseRunning {
		return nil
	}
	if !CanTransition(svc.Phase, model.PhaseStarting) {
		return errInvalidTransition(w.name, svc.Phase, model.PhaseStarting)
	}
	if err := w.ledger.TryReserve(w.name, svc.Resources); err != nil {
		return err
	}
	w.transition(model.PhaseStarting, svc.Phase)

	if err := w.drv.Create(ctx, specFor(svc)); err != nil && !isAlreadyInState(err) {
		w.ledger.Release(w.name)
		w.fail(svc.Phase)
		return err
	}
	if err := w.drv.Start(ctx, svc.Name); err != nil && !isAlreadyInState(err) {
		w.ledger.Release(w.name)
		w.fail(model.PhaseStarting)
		return err
	}

	w.markActivity()
	w.transition(model.PhaseRunning, model.PhaseStarting)
	w.backoff.reset()
	return nil
}

func (w *worker) doStop(ctx context.Context, svc model.Service) error {
	if svc.Phase == model.PhaseStopped {
		return nil
	}
	if !CanTransition(svc.Phase, model.PhaseStopping) {
		return errInvalidTransition(w.name, svc.Phase, model.PhaseStopping)
	}
	from := svc.Phase
	w.transition(model.PhaseStopping, from)

	if err := w.drv.Stop(ctx, svc.Name, 10*time.Second); err != nil && !isAlreadyInState(err) {
		w.fail(model.PhaseStopping)
		return err
	}
	w.ledger.Release(w.name)
	w.transition(model.PhaseStopped, model.PhaseStopping)
	return nil
}

func (w *worker) doSleep(ctx context.Context, svc model.Service) error {
	if svc.Phase == model.PhaseSleeping {
		return nil
	}
	if !CanTransition(svc.Phase, model.PhaseSleeping) {
		return errInvalidTransition(w.name, svc.Phase, model.PhaseSleeping)
	}
	if err := w.drv.Pause(ctx, svc.Name); err != nil && !isAlreadyInState(err) {
		w.fail(svc.Phase)
		return err
	}
	w.ledger.Release(w.name)
	w.transition(model.PhaseSleeping, svc.Phase)
	return nil
}

func (w *worker) doWake(ctx context.Context, svc model.Service) error {
	if svc.Phase == model.PhaseRunning {
		return nil
	}
	if svc.Phase == model.PhaseStopped {
		// No paused container to resume: bring it up from scratch.
		return w.doStart(ctx, svc)
	}
	if !CanTransition(svc.Phase, model.PhaseWaking) {
		return errInvalidTransition(w.name, svc.Phase, model.PhaseWaking)
	}
	if err := w.ledger.TryReserve(w.name, svc.Resources); err != nil {
		return err
	}
	w.transition(model.PhaseWaking, svc.Phase)

	if err := w.drv.Unpause(ctx, svc.Name); err != nil && !isAlreadyInState(err) {
		w.ledger.Release(w.name)
		w.fail(model.PhaseWaking)
		return err
	}

	w.markActivity()
	w.transition(model.PhaseRunning, model.PhaseWaking)
	w.backoff.reset()
	return nil
}

// doReconcile compares the driver's runtime view of the container against
// the Supervisor's Phase on startup (spec §4.3 "reconcile-on-restart") and
// resolves drift toward the runtime's actual state.
func (w *worker) doReconcile(ctx context.Context, svc model.Service) error {
	state, err := w.drv.Inspect(ctx, svc.Name)
	if err != nil {
		return err
	}
	switch state {
	case driver.StateRunning:
		if svc.Phase != model.PhaseRunning {
			w.transition(model.PhaseRunning, svc.Phase)
		}
	case driver.StatePaused:
		if svc.Phase != model.PhaseSleeping {
			w.transition(model.PhaseSleeping, svc.Phase)
		}
	case driver.StateAbsent, driver.StateExited, driver.StateCreated:
		if svc.Phase != model.PhaseStopped {
			w.transition(model.PhaseStopped, svc.Phase)
		}
	}
	return nil
}

// doIdleCheck auto-sleeps a RUNNING service whose IdleTimeout has elapsed
// since LastActivityAt (spec §4.3 "idle auto-sleep").
func (w *worker) doIdleCheck(ctx context.Context, svc model.Service) error {
	if svc.Phase != model.PhaseRunning || svc.IdleTimeout <= 0 {
		return nil
	}
	if time.Since(svc.LastActivityAt) < svc.IdleTimeout {
		return nil
	}
	return w.doSleep(ctx, svc)
}

func (w *worker) markActivity() {
	_ = w.reg.MutateObservedState(w.name, func(s *model.Service) {
		s.LastActivityAt = time.Now()
	})
}

func (w *worker) fail(from model.Phase) {
	_ = w.reg.MutateObservedState(w.name, func(s *model.Service) {
		s.FailureStreak++
	})
	w.backoff.bump()
	w.transition(model.PhaseFailed, from)
}

func specFor(svc model.Service) driver.ContainerSpec {
	return driver.ContainerSpec{
		Name:                 svc.Name,
		Image:                svc.Image,
		MemLimitBytes:        svc.Resources.MemLimitBytes,
		MemReservationBytes:  svc.Resources.MemReservationBytes,
		CPULimitMillis:       svc.Resources.CPULimitMillis,
		CPUReservationMillis: svc.Resources.CPUReservationMillis,
		PIDLimit:             svc.Resources.PIDLimit,
		PortBindings: map[int]int{
			svc.Endpoint.Port: svc.Endpoint.Port,
		},
	}
}

func isAlreadyInState(err error) bool {
	var derr *driver.Error
	if e, ok := err.(*driver.Error); ok {
		derr = e
	}
	return derr != nil && derr.Kind == driver.FailureAlreadyInState
}
