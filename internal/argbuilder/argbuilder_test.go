package argbuilder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics/mcp-gateway/internal/gwerr"
	"github.com/kubilitics/mcp-gateway/internal/model"
)

func TestBuildExtractsByPattern(t *testing.T) {
	schema := model.InputSchema{Fields: []model.SchemaField{
		{Name: "query", Type: model.SchemaString, Required: true, Pattern: `find (\w+)`},
	}}
	b := New(nil)
	args, err := b.Build(context.Background(), "please find invoices for march", schema)
	require.NoError(t, err)
	assert.Equal(t, "invoices", args["query"])
}

func TestBuildResolvesEnumHeuristically(t *testing.T) {
	schema := model.InputSchema{Fields: []model.SchemaField{
		{Name: "format", Type: model.SchemaEnum, Required: true, Enum: []string{"json", "csv"}},
	}}
	b := New(nil)
	args, err := b.Build(context.Background(), "export this as csv please", schema)
	require.NoError(t, err)
	assert.Equal(t, "csv", args["format"])
}

func TestBuildResolvesBooleanHeuristically(t *testing.T) {
	schema := model.InputSchema{Fields: []model.SchemaField{
		{Name: "verbose", Type: model.SchemaBool, Required: false},
	}}
	b := New(nil)
	args, err := b.Build(context.Background(), "yes please enable verbose output", schema)
	require.NoError(t, err)
	assert.Equal(t, true, args["verbose"])
}

func TestBuildFallsBackToDefault(t *testing.T) {
	schema := model.InputSchema{Fields: []model.SchemaField{
		{Name: "limit", Type: model.SchemaNumber, Default: 10.0},
	}}
	b := New(nil)
	args, err := b.Build(context.Background(), "no useful info here", schema)
	require.NoError(t, err)
	assert.Equal(t, 10.0, args["limit"])
}

func TestBuildUsesAdvisorGuessAsLastResort(t *testing.T) {
	schema := model.InputSchema{Fields: []model.SchemaField{
		{Name: "recipient", Type: model.SchemaString, Required: true},
	}}
	b := New(func(ctx context.Context, taskText string, field model.SchemaField) (any, bool) {
		return "ops-team", true
	})
	args, err := b.Build(context.Background(), "send the report", schema)
	require.NoError(t, err)
	assert.Equal(t, "ops-team", args["recipient"])
}

func TestBuildMissingRequiredFieldIsArgumentsIncomplete(t *testing.T) {
	schema := model.InputSchema{Fields: []model.SchemaField{
		{Name: "recipient", Type: model.SchemaString, Required: true},
	}}
	b := New(nil)
	_, err := b.Build(context.Background(), "send something", schema)
	require.Error(t, err)
	assert.Equal(t, gwerr.ArgumentsIncomplete, gwerr.KindOf(err))
}
