// Package supervisor implements the central service-lifecycle state
// machine (spec §4.3 Service Supervisor): one worker goroutine per
// service, each the sole owner of that service's Phase and the only
// caller of the driver on its behalf, coordinated through a shared
// resource Ledger for wake admission.
package supervisor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kubilitics/mcp-gateway/internal/driver"
	"github.com/kubilitics/mcp-gateway/internal/eventbus"
	"github.com/kubilitics/mcp-gateway/internal/gwerr"
	"github.com/kubilitics/mcp-gateway/internal/registry"
)

const idleCheckInterval = 15 * time.Second

// Supervisor owns one worker per declared service.
type Supervisor struct {
	reg    *registry.Registry
	drv    driver.Driver
	ledger *Ledger
	bus    *eventbus.Bus
	log    *zap.Logger

	mu      sync.RWMutex
	workers map[string]*worker

	runCtx    context.Context
	runCancel context.CancelFunc
	startOnce sync.Once
	wg        sync.WaitGroup
}

// New builds a Supervisor. Call Start to spin up workers and begin
// idle-check ticking.
func New(reg *registry.Registry, drv driver.Driver, ledger *Ledger, bus *eventbus.Bus, log *zap.Logger) *Supervisor {
	return &Supervisor{
		reg:     reg,
		drv:     drv,
		ledger:  ledger,
		bus:     bus,
		log:     log,
		workers: make(map[string]*worker),
	}
}

// Start spawns a worker per registered service, reconciles each against
// the driver's actual runtime state, auto-starts AutoStart services, and
// begins the idle-timeout ticker. Grounded on the sync.Once-guarded
// Start()/tickerLoop() pair in
// kubilitics-backend/internal/addon/lifecycle/controller.go.
func (s *Supervisor) Start(ctx context.Context) error {
	var err error
	s.startOnce.Do(func() {
		s.runCtx, s.runCancel = context.WithCancel(ctx)

		for _, svc := range s.reg.List() {
			s.ensureWorkerLocked(svc.Name)
			s.ledger.RegisterOrder(svc.Name)
		}

		for _, svc := range s.reg.List() {
			name := svc.Name
			if rerr := s.workerFor(name).send(s.runCtx, cmdReconcile); rerr != nil {
				s.log.Warn("reconcile failed", zap.String("service", name), zap.Error(rerr))
			}
		}

		for _, svc := range s.reg.List() {
			if svc.AutoStart && svc.Enabled {
				name := svc.Name
				s.wg.Add(1)
				go func() {
					defer s.wg.Done()
					if serr := s.StartService(s.runCtx, name); serr != nil {
						s.log.Warn("auto-start failed", zap.String("service", name), zap.Error(serr))
					}
				}()
			}
		}

		s.wg.Add(1)
		go s.tickerLoop()
	})
	return err
}

// Stop cancels every worker's context and waits for them to drain.
func (s *Supervisor) Stop() {
	if s.runCancel != nil {
		s.runCancel()
	}
	s.wg.Wait()
}

func (s *Supervisor) tickerLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(idleCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.runCtx.Done():
			return
		case <-ticker.C:
			for _, svc := range s.reg.List() {
				_ = s.workerFor(svc.Name).send(s.runCtx, cmdTick)
			}
		}
	}
}

func (s *Supervisor) ensureWorkerLocked(name string) *worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.workers[name]; ok {
		return w
	}
	w := newWorker(name, s.reg, s.drv, s.ledger, s.bus, s.log)
	s.workers[name] = w
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		w.run(s.runCtx)
	}()
	return w
}

func (s *Supervisor) workerFor(name string) *worker {
	s.mu.RLock()
	w, ok := s.workers[name]
	s.mu.RUnlock()
	if ok {
		return w
	}
	return s.ensureWorkerLocked(name)
}

// StartService requests a service move to RUNNING (spec §4.3 start()).
func (s *Supervisor) StartService(ctx context.Context, name string) error {
	if _, err := s.reg.Get(name); err != nil {
		return err
	}
	return s.workerFor(name).send(ctx, cmdStart)
}

// StopService requests a service move to STOPPED.
func (s *Supervisor) StopService(ctx context.Context, name string) error {
	if _, err := s.reg.Get(name); err != nil {
		return err
	}
	return s.workerFor(name).send(ctx, cmdStop)
}

// SleepService requests a service move to SLEEPING.
func (s *Supervisor) SleepService(ctx context.Context, name string) error {
	if _, err := s.reg.Get(name); err != nil {
		return err
	}
	return s.workerFor(name).send(ctx, cmdSleep)
}

// WakeService requests a service move from SLEEPING back to RUNNING; a
// STOPPED service is started instead. If the Ledger rejects admission the
// ServiceUnavailable error is returned at once; the Router does not try
// another candidate after a failed wake.
func (s *Supervisor) WakeService(ctx context.Context, name string) error {
	svc, err := s.reg.Get(name)
	if err != nil {
		return err
	}
	if !svc.Enabled {
		return gwerr.Newf(gwerr.ServiceUnavailable, "service %q is disabled", name)
	}
	return s.workerFor(name).send(ctx, cmdWake)
}

// Reconcile re-syncs every worker's Phase against the driver's actual
// runtime state, used after a registry Reload adds services.
func (s *Supervisor) Reconcile(ctx context.Context, names []string) {
	for _, name := range names {
		s.ensureWorkerLocked(name)
		s.ledger.RegisterOrder(name)
		_ = s.workerFor(name).send(ctx, cmdReconcile)
	}
}
