package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics/mcp-gateway/internal/argbuilder"
	"github.com/kubilitics/mcp-gateway/internal/gwerr"
	"github.com/kubilitics/mcp-gateway/internal/model"
	"github.com/kubilitics/mcp-gateway/internal/selector"
)

type fakeToolSource struct {
	tools []model.Tool
}

func (f *fakeToolSource) Snapshot() []model.Tool { return f.tools }
func (f *fakeToolSource) ByVirtualServer(vs model.VirtualServer) ([]model.Tool, error) {
	return f.tools, nil
}

type fakeSupervisor struct {
	woke []string
	err  error
}

func (f *fakeSupervisor) WakeService(ctx context.Context, name string) error {
	f.woke = append(f.woke, name)
	return f.err
}

type fakeInvoker struct {
	calls   []string
	results map[string]any
	err     error
}

func (f *fakeInvoker) Invoke(ctx context.Context, serviceName, toolName string, args map[string]any) (any, error) {
	f.calls = append(f.calls, serviceName+"/"+toolName)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[serviceName+"/"+toolName], nil
}

func phaseLookup(phase model.Phase) ServiceLookup {
	return func(name string) (model.Phase, error) { return phase, nil }
}

func vsLookup(vs model.VirtualServer) VirtualServerLookup {
	return func(name string) (model.VirtualServer, error) { return vs, nil }
}

func testTool() model.Tool {
	return model.Tool{
		ServiceName: "files",
		LocalName:   "read",
		Keywords:    []string{"read", "file"},
		InputSchema: model.InputSchema{Fields: []model.SchemaField{
			{Name: "path", Type: model.SchemaString, Default: "/tmp/default"},
		}},
	}
}

func TestExecuteRunningServiceInvokesDirectly(t *testing.T) {
	tools := &fakeToolSource{tools: []model.Tool{testTool()}}
	sup := &fakeSupervisor{}
	inv := &fakeInvoker{results: map[string]any{"files/read": "ok"}}
	sel := selector.New(nil, selector.Policy{AdvisorWeight: 0.7, MinConfidence: 0.3})
	bld := argbuilder.New(nil)

	e := New(tools, vsLookup(model.VirtualServer{}), phaseLookup(model.PhaseRunning), sup, sel, bld, inv, nil, nil)

	result, err := e.Execute(context.Background(), "read the file please", "", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Result)
	assert.False(t, result.WakeRequired)
	assert.Empty(t, sup.woke)
}

func TestExecuteWakesSleepingServiceBeforeInvoking(t *testing.T) {
	tools := &fakeToolSource{tools: []model.Tool{testTool()}}
	sup := &fakeSupervisor{}
	inv := &fakeInvoker{results: map[string]any{"files/read": "ok"}}
	sel := selector.New(nil, selector.Policy{AdvisorWeight: 0.7, MinConfidence: 0.3})
	bld := argbuilder.New(nil)

	e := New(tools, vsLookup(model.VirtualServer{}), phaseLookup(model.PhaseSleeping), sup, sel, bld, inv, nil, nil)

	result, err := e.Execute(context.Background(), "read the file please", "", time.Time{})
	require.NoError(t, err)
	assert.True(t, result.WakeRequired)
	assert.Equal(t, []string{"files"}, sup.woke)
}

func TestExecuteNoToolsIsNoToolsAvailable(t *testing.T) {
	tools := &fakeToolSource{tools: nil}
	sup := &fakeSupervisor{}
	sel := selector.New(nil, selector.Policy{})
	bld := argbuilder.New(nil)

	e := New(tools, vsLookup(model.VirtualServer{}), phaseLookup(model.PhaseRunning), sup, sel, bld, &fakeInvoker{}, nil, nil)

	_, err := e.Execute(context.Background(), "do something", "", time.Time{})
	require.Error(t, err)
	assert.Equal(t, gwerr.NoToolsAvailable, gwerr.KindOf(err))
}

func TestExecuteFailedServicePhaseIsServiceUnavailable(t *testing.T) {
	tools := &fakeToolSource{tools: []model.Tool{testTool()}}
	sup := &fakeSupervisor{}
	sel := selector.New(nil, selector.Policy{AdvisorWeight: 0.7, MinConfidence: 0.3})
	bld := argbuilder.New(nil)

	e := New(tools, vsLookup(model.VirtualServer{}), phaseLookup(model.PhaseFailed), sup, sel, bld, &fakeInvoker{}, nil, nil)

	_, err := e.Execute(context.Background(), "read the file please", "", time.Time{})
	require.Error(t, err)
	assert.Equal(t, gwerr.ServiceUnavailable, gwerr.KindOf(err))
}

func TestExecuteMissingRequiredArgumentFailsBeforeInvoke(t *testing.T) {
	tool := model.Tool{
		ServiceName: "files",
		LocalName:   "read",
		Keywords:    []string{"read", "file"},
		InputSchema: model.InputSchema{Fields: []model.SchemaField{
			{Name: "recipient", Type: model.SchemaString, Required: true},
		}},
	}
	tools := &fakeToolSource{tools: []model.Tool{tool}}
	sup := &fakeSupervisor{}
	inv := &fakeInvoker{}
	sel := selector.New(nil, selector.Policy{AdvisorWeight: 0.7, MinConfidence: 0.3})
	bld := argbuilder.New(nil)

	e := New(tools, vsLookup(model.VirtualServer{}), phaseLookup(model.PhaseRunning), sup, sel, bld, inv, nil, nil)

	_, err := e.Execute(context.Background(), "read the file please", "", time.Time{})
	require.Error(t, err)
	assert.Equal(t, gwerr.ArgumentsIncomplete, gwerr.KindOf(err))
	assert.Empty(t, inv.calls)
}
