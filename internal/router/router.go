// Package router implements the Router Engine (spec §4.11): the single
// entry point that turns a free-text task into a tool invocation by
// orchestrating the Tool Cache, Hybrid Selector, Argument Builder,
// Supervisor, and Upstream Client in sequence, retrying against the next
// candidate when the chosen tool rejects its built arguments.
package router

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kubilitics/mcp-gateway/internal/argbuilder"
	"github.com/kubilitics/mcp-gateway/internal/gwerr"
	"github.com/kubilitics/mcp-gateway/internal/metricsstore"
	"github.com/kubilitics/mcp-gateway/internal/model"
	"github.com/kubilitics/mcp-gateway/internal/selector"
	"github.com/kubilitics/mcp-gateway/internal/tracing"
)

// ToolSource resolves the tool set a request is scoped to: either one
// VirtualServer's aggregated tools or the full cache Snapshot.
type ToolSource interface {
	Snapshot() []model.Tool
	ByVirtualServer(vs model.VirtualServer) ([]model.Tool, error)
}

// VirtualServerLookup resolves a VirtualServer by name.
type VirtualServerLookup func(name string) (model.VirtualServer, error)

// ServiceSupervisor is the subset of supervisor.Supervisor the router
// needs: waking a sleeping service before invoking it.
type ServiceSupervisor interface {
	WakeService(ctx context.Context, name string) error
}

// ServiceLookup resolves a Service's current Phase, used to decide
// whether a wake is needed before invoking.
type ServiceLookup func(name string) (model.Phase, error)

// Invoker performs the actual upstream call once arguments are built.
type Invoker interface {
	Invoke(ctx context.Context, serviceName, toolName string, args map[string]any) (any, error)
}

// Engine wires the full selection -> build -> wake -> invoke pipeline.
type Engine struct {
	tools      ToolSource
	vsLookup   VirtualServerLookup
	svcLookup  ServiceLookup
	supervisor ServiceSupervisor
	selector   *selector.Selector
	builder    *argbuilder.Builder
	invoker    Invoker
	metrics    *metricsstore.Store
	log        *zap.Logger
}

// New builds an Engine from its collaborators.
func New(
	tools ToolSource,
	vsLookup VirtualServerLookup,
	svcLookup ServiceLookup,
	supervisor ServiceSupervisor,
	sel *selector.Selector,
	builder *argbuilder.Builder,
	invoker Invoker,
	metrics *metricsstore.Store,
	log *zap.Logger,
) *Engine {
	return &Engine{
		tools: tools, vsLookup: vsLookup, svcLookup: svcLookup,
		supervisor: supervisor, selector: sel, builder: builder,
		invoker: invoker, metrics: metrics, log: log,
	}
}

// maxCandidateRetries bounds how many ranked candidates the Engine will
// try before giving up (spec §4.11 "retry-next-candidate ... bounded").
const maxCandidateRetries = 3

// Execute runs the full pipeline for one task. virtualServerName may be
// empty, meaning "search every known tool" (spec §4.11 execute()).
func (e *Engine) Execute(ctx context.Context, taskText, virtualServerName string, deadline time.Time) (model.Invocation, error) {
	ctx, span := tracing.StartSpan(ctx, "router.execute")
	defer span.End()

	inv := model.Invocation{ID: uuid.NewString(), TaskText: taskText, StartedAt: time.Now()}
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	tools, err := e.resolveTools(virtualServerName)
	if err != nil {
		inv.ErrorKind = string(gwerr.KindOf(err))
		return inv, err
	}

	sel, err := e.selector.Select(ctx, taskText, tools)
	if err != nil {
		inv.ErrorKind = string(gwerr.KindOf(err))
		return inv, err
	}
	inv.SelectionID = sel.ID
	metricsstore.SelectionsTotal.WithLabelValues(string(sel.Method)).Inc()
	tracing.AnnotateSelection(span, string(sel.Method), sel.AdvisorConfidence, sel.LowConfidence)
	if e.metrics != nil {
		e.metrics.Ingest(model.MetricSample{Name: "selection.confidence", Value: sel.AdvisorConfidence, TimestampMs: time.Now().UnixMilli()})
	}

	attempted := make(map[string]bool, maxCandidateRetries)
	var lastErr error
	for attempt := 0; attempt < maxCandidateRetries; attempt++ {
		candidate, ok := nextCandidate(sel.Candidates, attempted)
		if !ok {
			break
		}
		attempted[candidate.Tool.FullyQualifiedName()] = true

		result, werr := e.invokeCandidate(ctx, span, &inv, candidate.Tool, taskText)
		if werr == nil {
			inv.Result = result
			metricsstore.InvocationsTotal.WithLabelValues(candidate.Tool.ServiceName, "ok").Inc()
			inv.TotalLatencyMs = time.Since(inv.StartedAt).Milliseconds()
			return inv, nil
		}
		lastErr = werr
		metricsstore.InvocationsTotal.WithLabelValues(candidate.Tool.ServiceName, string(gwerr.KindOf(werr))).Inc()
		if gwerr.KindOf(werr) != gwerr.ArgumentsIncomplete && gwerr.KindOf(werr) != gwerr.ValidationFailed {
			break // only schema-shaped failures are worth retrying the next candidate for
		}
	}

	if lastErr == nil {
		lastErr = gwerr.New(gwerr.NoToolsAvailable, "no candidate tool could be selected")
	}
	inv.ErrorKind = string(gwerr.KindOf(lastErr))
	inv.TotalLatencyMs = time.Since(inv.StartedAt).Milliseconds()
	return inv, lastErr
}

func (e *Engine) resolveTools(virtualServerName string) ([]model.Tool, error) {
	if virtualServerName == "" {
		return e.tools.Snapshot(), nil
	}
	vs, err := e.vsLookup(virtualServerName)
	if err != nil {
		return nil, err
	}
	return e.tools.ByVirtualServer(vs)
}

func (e *Engine) invokeCandidate(ctx context.Context, span trace.Span, inv *model.Invocation, tool model.Tool, taskText string) (any, error) {
	args, err := e.builder.Build(ctx, taskText, tool.InputSchema)
	if err != nil {
		return nil, err
	}
	inv.ArgumentsBuilt = args
	inv.TargetService = tool.ServiceName

	if err := e.ensureAwake(ctx, inv, tool.ServiceName); err != nil {
		return nil, err
	}

	tracing.AnnotateInvocation(span, tool.ServiceName, tool.LocalName, inv.WakeRequired)
	return e.invoker.Invoke(ctx, tool.ServiceName, tool.LocalName, args)
}

func (e *Engine) ensureAwake(ctx context.Context, inv *model.Invocation, serviceName string) error {
	phase, err := e.svcLookup(serviceName)
	if err != nil {
		return err
	}
	if phase == model.PhaseRunning {
		return nil
	}
	if phase != model.PhaseSleeping && phase != model.PhaseStopped {
		return gwerr.Newf(gwerr.ServiceUnavailable, "service %q is in phase %s", serviceName, phase)
	}

	wakeStart := time.Now()
	inv.WakeRequired = true
	if err := e.supervisor.WakeService(ctx, serviceName); err != nil {
		return err
	}
	inv.WakeLatencyMs = time.Since(wakeStart).Milliseconds()
	metricsstore.WakeLatency.WithLabelValues(serviceName).Observe(float64(inv.WakeLatencyMs) / 1000)
	return nil
}

func nextCandidate(candidates []model.Candidate, attempted map[string]bool) (model.Candidate, bool) {
	for _, c := range candidates {
		if !attempted[c.Tool.FullyQualifiedName()] {
			return c, true
		}
	}
	return model.Candidate{}, false
}
