package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kubilitics/mcp-gateway/internal/config"
	"github.com/kubilitics/mcp-gateway/internal/eventbus"
	"github.com/kubilitics/mcp-gateway/internal/flags"
	"github.com/kubilitics/mcp-gateway/internal/gwerr"
	"github.com/kubilitics/mcp-gateway/internal/model"
	"github.com/kubilitics/mcp-gateway/internal/registry"
	"github.com/kubilitics/mcp-gateway/internal/toolcache"
)

type fakeSupervisor struct {
	wake, start, stop, sleep []string
	err                      error
}

func (f *fakeSupervisor) StartService(ctx context.Context, name string) error {
	f.start = append(f.start, name)
	return f.err
}
func (f *fakeSupervisor) StopService(ctx context.Context, name string) error {
	f.stop = append(f.stop, name)
	return f.err
}
func (f *fakeSupervisor) SleepService(ctx context.Context, name string) error {
	f.sleep = append(f.sleep, name)
	return f.err
}
func (f *fakeSupervisor) WakeService(ctx context.Context, name string) error {
	f.wake = append(f.wake, name)
	return f.err
}

type fakeFetcher struct{ tools []model.Tool }

func (f *fakeFetcher) ListTools(ctx context.Context, serviceName string) ([]model.Tool, error) {
	return f.tools, nil
}

func newTestHandler(t *testing.T) (*Handler, *registry.Registry, *fakeSupervisor) {
	t.Helper()
	snap := &config.Snapshot{
		Services: []config.ServiceConfig{
			{Name: "files", Enabled: true, Priority: model.PriorityNormal},
			{Name: "critical", Enabled: true, Priority: model.PriorityHigh},
		},
		VirtualServers: []config.VirtualServerConfig{
			{Name: "default", Enabled: true, Members: []string{"files"}},
		},
	}
	reg := registry.New(snap)
	sup := &fakeSupervisor{}
	bus := eventbus.New()
	fetcher := &fakeFetcher{tools: []model.Tool{{ServiceName: "files", LocalName: "read"}}}
	cache := toolcache.New(reg, func(string) (toolcache.Fetcher, error) { return fetcher, nil }, nil, bus, zap.NewNop())
	flagStore := flags.New(nil)
	h := NewHandler(reg, sup, cache, nil, nil, flagStore, nil, nil, zap.NewNop())
	return h, reg, sup
}

func TestHandleHealthReportsPhaseCounts(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := NewRouter(h, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.OK)

	var health struct {
		Data struct {
			Components struct {
				Services phaseCounts `json:"services"`
			} `json:"components"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, phaseCounts{Stopped: 2}, health.Data.Components.Services)
}

func TestBearerAuthRejectsMissingToken(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := NewRouter(h, "secret-token", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/services", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.OK)
	assert.Equal(t, gwerr.Unauthorized, body.Error.Kind)
}

func TestBearerAuthAcceptsValidToken(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := NewRouter(h, "secret-token", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/services", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestEnableUnknownServiceIsNotFound(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := NewRouter(h, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/services/ghost/enable", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSleepHighPriorityServiceIsConflict(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := NewRouter(h, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/services/critical/sleep", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, gwerr.Conflict, body.Error.Kind)
}

func TestWakeServiceReturnsPhaseAndLatency(t *testing.T) {
	h, _, sup := newTestHandler(t)
	router := NewRouter(h, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/services/files/wake", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"files"}, sup.wake)

	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "files", body.Data["name"])
	assert.Equal(t, "STOPPED", body.Data["phase"], "the fake supervisor leaves the phase unchanged")
	assert.Contains(t, body.Data, "wakeLatencyMs")
}

func TestVirtualServerToolsResolvesMembers(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := NewRouter(h, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/virtual-servers/default/tools", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []toolView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "files/read", body.Data[0].FullyQualifiedName)
}

func TestSetFlagRejectsMalformedName(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := NewRouter(h, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/flags/notdotted", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
