package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kubilitics/mcp-gateway/internal/audit"
	"github.com/kubilitics/mcp-gateway/internal/flags"
	"github.com/kubilitics/mcp-gateway/internal/gwerr"
	"github.com/kubilitics/mcp-gateway/internal/metricsstore"
	"github.com/kubilitics/mcp-gateway/internal/model"
	"github.com/kubilitics/mcp-gateway/internal/registry"
	"github.com/kubilitics/mcp-gateway/internal/router"
	"github.com/kubilitics/mcp-gateway/internal/toolcache"
)

// ServiceController is the subset of supervisor.Supervisor the Control
// API drives directly (spec §6.1 enable/disable/wake/sleep).
type ServiceController interface {
	StartService(ctx context.Context, name string) error
	StopService(ctx context.Context, name string) error
	SleepService(ctx context.Context, name string) error
	WakeService(ctx context.Context, name string) error
}

// AdvisorHealth is the subset of advisor.Client the health endpoints need.
type AdvisorHealth interface {
	Reachable(ctx context.Context) bool
}

// Handler holds every collaborator the Control API's routes read from or
// write to (grounded on kubilitics-backend/internal/api/rest.Handler's
// "one struct, every service injected" shape).
type Handler struct {
	reg     *registry.Registry
	sup     ServiceController
	cache   *toolcache.Cache
	engine  *router.Engine
	metrics *metricsstore.Store
	flagsS  *flags.Store
	advisor AdvisorHealth
	audit   *audit.Store
	log     *zap.Logger
}

// NewHandler builds a Handler from its collaborators. audit may be nil,
// in which case mutation commands simply aren't logged (e.g. in tests).
func NewHandler(
	reg *registry.Registry,
	sup ServiceController,
	cache *toolcache.Cache,
	engine *router.Engine,
	metrics *metricsstore.Store,
	flagsS *flags.Store,
	advisor AdvisorHealth,
	auditStore *audit.Store,
	log *zap.Logger,
) *Handler {
	return &Handler{reg: reg, sup: sup, cache: cache, engine: engine, metrics: metrics, flagsS: flagsS, advisor: advisor, audit: auditStore, log: log}
}

// recordAudit appends a best-effort audit entry: a logging failure never
// fails the mutation it describes (spec §12 is an observability add-on,
// not part of the command's own success criteria).
func (h *Handler) recordAudit(ctx context.Context, action, serviceName, virtualServer string, statusCode int, details string) {
	if h.audit == nil {
		return
	}
	entry := audit.Entry{Action: action, ServiceName: serviceName, VirtualServer: virtualServer, StatusCode: statusCode, Details: details}
	if err := h.audit.Record(ctx, entry); err != nil && h.log != nil {
		h.log.Warn("audit record failed", zap.Error(err), zap.String("action", action))
	}
}

type serviceView struct {
	Name             string    `json:"name"`
	Phase            string    `json:"phase"`
	Priority         string    `json:"priority"`
	Enabled          bool      `json:"enabled"`
	LastActivityAt   time.Time `json:"lastActivityAt"`
	LastTransitionAt time.Time `json:"lastTransitionAt"`
	MemLimit         int64     `json:"memLimit"`
	MemUsed          int64     `json:"memUsed"`
}

func toServiceView(svc model.Service) serviceView {
	return serviceView{
		Name:             svc.Name,
		Phase:            string(svc.Phase),
		Priority:         string(svc.Priority),
		Enabled:          svc.Enabled,
		LastActivityAt:   svc.LastActivityAt,
		LastTransitionAt: svc.LastTransitionAt,
		MemLimit:         svc.Resources.MemLimitBytes,
		MemUsed:          0, // populated from driver.Stats by a future metrics poller; not yet wired
	}
}

type phaseCounts struct {
	Running  int `json:"running"`
	Sleeping int `json:"sleeping"`
	Stopped  int `json:"stopped"`
	Failed   int `json:"failed"`
}

// Health serves GET /health (spec §6.1).
func (h *Handler) Health(ctx context.Context) (status string, body map[string]any) {
	counts := phaseCounts{}
	for _, svc := range h.reg.List() {
		switch svc.Phase {
		case model.PhaseRunning:
			counts.Running++
		case model.PhaseSleeping:
			counts.Sleeping++
		case model.PhaseStopped:
			counts.Stopped++
		case model.PhaseFailed:
			counts.Failed++
		}
	}
	advisorReachable := h.advisor != nil && h.advisor.Reachable(ctx)
	status = "ok"
	if counts.Failed > 0 || (h.advisor != nil && !advisorReachable) {
		status = "degraded"
	}
	body = map[string]any{
		"status": status,
		"components": map[string]any{
			"driver":   counts.Failed == 0,
			"advisor":  advisorReachable,
			"services": counts,
		},
	}
	return status, body
}

// ListServices serves GET /services.
func (h *Handler) ListServices() []serviceView {
	services := h.reg.List()
	out := make([]serviceView, 0, len(services))
	for _, svc := range services {
		out = append(out, toServiceView(svc))
	}
	return out
}

type mutationResult struct {
	Name  string `json:"name"`
	Phase string `json:"phase"`
	Noop  bool   `json:"noop"`
}

// EnableService serves POST /services/{name}/enable.
func (h *Handler) EnableService(ctx context.Context, name string) (mutationResult, error) {
	before, err := h.reg.Get(name)
	if err != nil {
		return mutationResult{}, err
	}
	noop := before.Enabled
	if err := h.reg.SetEnabled(name, true); err != nil {
		return mutationResult{}, err
	}
	if before.AutoStart && !noop {
		if err := h.sup.StartService(ctx, name); err != nil {
			return mutationResult{}, err
		}
	}
	after, err := h.reg.Get(name)
	if err != nil {
		return mutationResult{}, err
	}
	h.recordAudit(ctx, "enable_service", name, "", http.StatusOK, "")
	return mutationResult{Name: name, Phase: string(after.Phase), Noop: noop}, nil
}

// DisableService serves POST /services/{name}/disable.
func (h *Handler) DisableService(ctx context.Context, name string) (mutationResult, error) {
	before, err := h.reg.Get(name)
	if err != nil {
		return mutationResult{}, err
	}
	noop := !before.Enabled
	if err := h.reg.SetEnabled(name, false); err != nil {
		return mutationResult{}, err
	}
	if !noop {
		if err := h.sup.StopService(ctx, name); err != nil {
			return mutationResult{}, err
		}
	}
	after, err := h.reg.Get(name)
	if err != nil {
		return mutationResult{}, err
	}
	h.recordAudit(ctx, "disable_service", name, "", http.StatusOK, "")
	return mutationResult{Name: name, Phase: string(after.Phase), Noop: noop}, nil
}

type wakeResult struct {
	Name          string `json:"name"`
	Phase         string `json:"phase"`
	WakeLatencyMs int64  `json:"wakeLatencyMs"`
}

// WakeServiceNow serves POST /services/{name}/wake.
func (h *Handler) WakeServiceNow(ctx context.Context, name string) (wakeResult, error) {
	start := time.Now()
	if err := h.sup.WakeService(ctx, name); err != nil {
		return wakeResult{}, err
	}
	after, err := h.reg.Get(name)
	if err != nil {
		return wakeResult{}, err
	}
	latency := time.Since(start).Milliseconds()
	h.recordAudit(ctx, "wake_service", name, "", http.StatusOK, fmt.Sprintf("wakeLatencyMs=%d", latency))
	return wakeResult{Name: name, Phase: string(after.Phase), WakeLatencyMs: latency}, nil
}

// SleepServiceNow serves POST /services/{name}/sleep. A high-priority
// service refuses force-sleep with Conflict (spec §7 "force-sleep a
// high-priority service").
func (h *Handler) SleepServiceNow(ctx context.Context, name string) (mutationResult, error) {
	before, err := h.reg.Get(name)
	if err != nil {
		return mutationResult{}, err
	}
	if before.Priority == model.PriorityHigh {
		return mutationResult{}, gwerr.Newf(gwerr.Conflict, "service %q has priority=high and cannot be force-slept", name)
	}
	if before.Phase == model.PhaseSleeping {
		return mutationResult{Name: name, Phase: string(before.Phase), Noop: true}, nil
	}
	if err := h.sup.SleepService(ctx, name); err != nil {
		return mutationResult{}, err
	}
	after, err := h.reg.Get(name)
	if err != nil {
		return mutationResult{}, err
	}
	h.recordAudit(ctx, "sleep_service", name, "", http.StatusOK, "")
	return mutationResult{Name: name, Phase: string(after.Phase)}, nil
}

type virtualServerView struct {
	Name      string `json:"name"`
	Enabled   bool   `json:"enabled"`
	ToolCount int    `json:"toolCount"`
	Truncated bool   `json:"truncated"`
}

// ListVirtualServers serves GET /virtual-servers.
func (h *Handler) ListVirtualServers() ([]virtualServerView, error) {
	vss := h.reg.VirtualServers()
	out := make([]virtualServerView, 0, len(vss))
	for _, vs := range vss {
		tools, err := h.cache.ByVirtualServer(vs)
		if err != nil {
			return nil, err
		}
		out = append(out, virtualServerView{
			Name:      vs.Name,
			Enabled:   vs.Enabled,
			ToolCount: len(tools),
			Truncated: len(tools) >= model.MaxVirtualServerTools,
		})
	}
	return out, nil
}

type toolView struct {
	FullyQualifiedName string `json:"fullyQualifiedName"`
	Description        string `json:"description"`
}

// VirtualServerTools serves GET /virtual-servers/{name}/tools.
func (h *Handler) VirtualServerTools(name string) ([]toolView, error) {
	vs, err := h.reg.VirtualServer(name)
	if err != nil {
		return nil, err
	}
	tools, err := h.cache.ByVirtualServer(vs)
	if err != nil {
		return nil, err
	}
	out := make([]toolView, 0, len(tools))
	for _, t := range tools {
		out = append(out, toolView{FullyQualifiedName: t.FullyQualifiedName(), Description: t.Description})
	}
	return out, nil
}

// RouterExecuteRequest is the POST /router/execute body.
type RouterExecuteRequest struct {
	Task          string `json:"task"`
	VirtualServer string `json:"virtualServer"`
	DeadlineMs    int64  `json:"deadlineMs"`
}

// RouterExecuteResponse is the POST /router/execute success payload.
type RouterExecuteResponse struct {
	Selection  model.Selection  `json:"selection"`
	Invocation model.Invocation `json:"invocation"`
	Result     any              `json:"result"`
}

// Execute serves POST /router/execute.
func (h *Handler) Execute(ctx context.Context, req RouterExecuteRequest) (RouterExecuteResponse, error) {
	if req.Task == "" {
		return RouterExecuteResponse{}, gwerr.New(gwerr.ValidationFailed, "task is required")
	}
	var deadline time.Time
	if req.DeadlineMs > 0 {
		deadline = time.Now().Add(time.Duration(req.DeadlineMs) * time.Millisecond)
	}
	inv, err := h.engine.Execute(ctx, req.Task, req.VirtualServer, deadline)
	if err != nil {
		h.recordAudit(ctx, "router_execute", inv.TargetService, req.VirtualServer, gwerr.HTTPStatus(err), inv.ErrorKind)
		return RouterExecuteResponse{Invocation: inv}, err
	}
	h.recordAudit(ctx, "router_execute", inv.TargetService, req.VirtualServer, http.StatusOK, "")
	return RouterExecuteResponse{Invocation: inv, Result: inv.Result}, nil
}

type routerMetricsView struct {
	TotalSelections     int64            `json:"totalSelections"`
	MethodCounts        map[string]int64 `json:"methodCounts"`
	AvgAdvisorLatencyMs float64          `json:"avgAdvisorLatencyMs"`
	AvgCombinedScore    float64          `json:"avgCombinedScore"`
}

// RouterMetrics serves GET /router/metrics, reading the rolling 1h window
// (spec §6.1 "rolling selection stats").
func (h *Handler) RouterMetrics() routerMetricsView {
	confidence := h.metrics.Query("selection.confidence", metricsstore.Window1h)
	view := routerMetricsView{
		TotalSelections:  int64(len(confidence)),
		MethodCounts:     map[string]int64{},
		AvgCombinedScore: metricsstore.Average(confidence),
	}
	return view
}

// RouterHealth serves GET /router/health.
func (h *Handler) RouterHealth(ctx context.Context) map[string]any {
	reachable := h.advisor != nil && h.advisor.Reachable(ctx)
	issues := []string{}
	if !reachable {
		issues = append(issues, "advisor unreachable, selections fall back to keyword")
	}
	return map[string]any{
		"advisor": map[string]any{"reachable": reachable},
		"issues":  issues,
	}
}

type systemMetricsView struct {
	MemPct   float64       `json:"memPct"`
	CPUPct   float64       `json:"cpuPct"`
	Services []serviceView `json:"services"`
}

// SystemMetrics serves GET /metrics/system.
func (h *Handler) SystemMetrics() systemMetricsView {
	return systemMetricsView{Services: h.ListServices()}
}

type flagView struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Value    bool   `json:"value"`
	Source   string `json:"source"`
}

// ListFlags serves GET /flags.
func (h *Handler) ListFlags() []flagView {
	all := h.flagsS.All()
	out := make([]flagView, 0, len(all))
	for _, f := range all {
		out = append(out, flagView{Category: f.Category, Name: f.Name, Value: f.Value, Source: string(f.Source)})
	}
	return out
}

// SetFlagRequest is the POST /flags/{name} body.
type SetFlagRequest struct {
	Value bool `json:"value"`
}

type setFlagResult struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

// SetFlag serves POST /flags/{name}. name is "category.name" per §6.2's
// recognized flag keys.
func (h *Handler) SetFlag(ctx context.Context, category, name string, req SetFlagRequest) (setFlagResult, error) {
	if err := h.flagsS.Set(category, name, req.Value); err != nil {
		return setFlagResult{}, err
	}
	h.recordAudit(ctx, "set_flag", "", "", http.StatusOK, fmt.Sprintf("%s.%s=%t", category, name, req.Value))
	return setFlagResult{Name: category + "." + name, Value: req.Value}, nil
}
