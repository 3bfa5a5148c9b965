// Command gateway is the composition root: it wires configuration,
// logging, the container driver, the service registry, the lifecycle
// supervisor, the tool cache, the hybrid selector, the argument builder,
// the router engine, the audit log, tracing, and the Control API into one
// running process (SPEC_FULL.md §5, §11).
//
// Grounded on kubilitics-backend/cmd/server/main.go's load-config ->
// init-storage -> init-services -> build-router -> serve-with-graceful-
// shutdown shape, adapted from the teacher's Kubernetes/cluster domain to
// the gateway's service-supervisor/router domain.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kubilitics/mcp-gateway/internal/advisor"
	"github.com/kubilitics/mcp-gateway/internal/api"
	"github.com/kubilitics/mcp-gateway/internal/argbuilder"
	"github.com/kubilitics/mcp-gateway/internal/audit"
	"github.com/kubilitics/mcp-gateway/internal/config"
	"github.com/kubilitics/mcp-gateway/internal/driver"
	"github.com/kubilitics/mcp-gateway/internal/eventbus"
	"github.com/kubilitics/mcp-gateway/internal/flags"
	"github.com/kubilitics/mcp-gateway/internal/logging"
	"github.com/kubilitics/mcp-gateway/internal/metricsstore"
	"github.com/kubilitics/mcp-gateway/internal/model"
	"github.com/kubilitics/mcp-gateway/internal/registry"
	"github.com/kubilitics/mcp-gateway/internal/router"
	"github.com/kubilitics/mcp-gateway/internal/selector"
	"github.com/kubilitics/mcp-gateway/internal/supervisor"
	"github.com/kubilitics/mcp-gateway/internal/toolcache"
	"github.com/kubilitics/mcp-gateway/internal/tracing"
	"github.com/kubilitics/mcp-gateway/internal/upstream"
)

func main() {
	configPath := os.Getenv("MCP_GATEWAY_CONFIG")
	snap, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       snap.LogLevel,
		Format:      snap.LogFormat,
		LogFilePath: snap.LogFilePath,
	})
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer logger.Sync()

	shutdownTracing, err := tracing.Init("mcp-gateway", snap.TracingEndpoint, 1.0)
	if err != nil {
		logger.Warn("tracing init failed, continuing without traces", zap.Error(err))
		shutdownTracing = func() {}
	}
	defer shutdownTracing()

	reg := registry.New(snap)
	bus := eventbus.New()

	drv, err := driver.NewDockerDriver()
	if err != nil {
		logger.Warn("docker driver unavailable, falling back to the in-memory fake driver", zap.Error(err))
		drv = nil
	}
	var svcDriver driver.Driver
	if drv != nil {
		svcDriver = drv
	} else {
		svcDriver = driver.NewFakeDriver()
	}

	ledger := supervisor.NewLedger(supervisor.Budget{
		MemBytes:    totalMemBudget(snap),
		CPUMillis:   totalCPUBudget(snap),
		HeadroomPct: firstNonZeroFloat(snap.WakeHeadroomPct, 0.85),
	})
	sup := supervisor.New(reg, svcDriver, ledger, bus, logger)

	clients := make(map[string]*upstream.Client, len(snap.Services))
	for _, svcCfg := range snap.Services {
		clients[svcCfg.Name] = upstream.New(svcCfg.Endpoint, func(serviceName string) {
			_ = reg.MutateObservedState(serviceName, func(s *model.Service) {
				s.LastActivityAt = time.Now()
			})
		})
	}
	clientFor := func(serviceName string) (*upstream.Client, error) {
		c, ok := clients[serviceName]
		if !ok {
			return nil, fmt.Errorf("no upstream client configured for service %q", serviceName)
		}
		return c, nil
	}
	fetcherFor := toolcache.FetcherFor(func(serviceName string) (toolcache.Fetcher, error) {
		return clientFor(serviceName)
	})

	metrics := metricsstore.New()
	cache := toolcache.New(reg, fetcherFor, metrics, bus, logger)

	advisorClient := advisor.New(snap.AdvisorEndpoint, snap.AdvisorModel, time.Duration(snap.Router.AdvisorTimeoutMs)*time.Millisecond)
	sel := selector.New(advisorClient, selector.Policy{
		AdvisorWeight:  snap.Router.AdvisorWeight,
		MinConfidence:  snap.Router.MinConfidence,
		AdvisorTimeout: time.Duration(snap.Router.AdvisorTimeoutMs) * time.Millisecond,
		TopNForAdvisor: snap.Router.TopNAdv,
	})
	builder := argbuilder.New(nil)

	invokerPool := router.NewInvokerPool(func(serviceName string) (router.Invoker, error) {
		return clientFor(serviceName)
	})
	engine := router.New(
		cache,
		reg.VirtualServer,
		func(name string) (model.Phase, error) {
			svc, err := reg.Get(name)
			if err != nil {
				return "", err
			}
			return svc.Phase, nil
		},
		sup,
		sel,
		builder,
		invokerPool,
		metrics,
		logger,
	)

	flagDefs := make([]model.FeatureFlag, 0, len(snap.Flags))
	for key, def := range snap.Flags {
		category, name, ok := strings.Cut(key, ".")
		if !ok {
			continue
		}
		flagDefs = append(flagDefs, model.FeatureFlag{Category: category, Name: name, DefaultValue: def})
	}
	flagStore := flags.New(flagDefs)

	var auditStore *audit.Store
	if snap.DatabasePath != "" {
		auditStore, err = audit.Open(snap.DatabasePath)
		if err != nil {
			logger.Warn("audit log unavailable, mutations will not be recorded", zap.Error(err))
			auditStore = nil
		} else {
			defer auditStore.Close()
		}
	}

	handler := api.NewHandler(reg, sup, cache, engine, metrics, flagStore, advisorClient, auditStore, logger)
	var allowedOrigins []string
	if raw := os.Getenv("MCP_GATEWAY_ALLOWED_ORIGINS"); raw != "" {
		allowedOrigins = strings.Split(raw, ",")
	}
	mux := api.NewRouter(handler, os.Getenv("MCP_GATEWAY_BEARER_TOKEN"), allowedOrigins)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sup.Start(ctx); err != nil {
		logger.Fatal("supervisor failed to start", zap.Error(err))
	}
	defer sup.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", firstNonZero(snap.HTTPPort, 8787)),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("mcp-gateway listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exited gracefully")
}

func totalMemBudget(snap *config.Snapshot) int64 {
	var total int64
	for _, svc := range snap.Services {
		total += svc.Resources.MemLimitBytes
	}
	return total
}

func totalCPUBudget(snap *config.Snapshot) int64 {
	var total int64
	for _, svc := range snap.Services {
		total += svc.Resources.CPULimitMillis
	}
	return total
}

func firstNonZero(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func firstNonZeroFloat(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}
