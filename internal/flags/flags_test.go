package flags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics/mcp-gateway/internal/model"
)

func testDefs() []model.FeatureFlag {
	return []model.FeatureFlag{
		{Category: "core", Name: "router", DefaultValue: true, EnvOverrideKey: "FLAG_CORE_ROUTER"},
		{Category: "tool", Name: "advisor", DefaultValue: false, EnvOverrideKey: "FLAG_TOOL_ADVISOR"},
	}
}

func TestEnabledDefaultsWhenNoEnvOverride(t *testing.T) {
	s := New(testDefs())
	restore := stubEnv(map[string]string{})
	defer restore()

	on, err := s.Enabled("core", "router")
	require.NoError(t, err)
	assert.True(t, on)

	off, err := s.Enabled("tool", "advisor")
	require.NoError(t, err)
	assert.False(t, off)
}

func TestEnabledAppliesEnvOverrideOnFirstRead(t *testing.T) {
	s := New(testDefs())
	restore := stubEnv(map[string]string{"FLAG_TOOL_ADVISOR": "true"})
	defer restore()

	on, err := s.Enabled("tool", "advisor")
	require.NoError(t, err)
	assert.True(t, on)

	all := s.All()
	found := false
	for _, snap := range all {
		if snap.Category == "tool" && snap.Name == "advisor" {
			found = true
			assert.Equal(t, model.SourceEnv, snap.Source)
		}
	}
	assert.True(t, found)
}

func TestSetOverridesAndWinsOverLaterEnvProbe(t *testing.T) {
	s := New(testDefs())
	restore := stubEnv(map[string]string{})
	defer restore()

	require.NoError(t, s.Set("core", "router", false))

	restore2 := stubEnv(map[string]string{"FLAG_CORE_ROUTER": "true"})
	defer restore2()

	on, err := s.Enabled("core", "router")
	require.NoError(t, err)
	assert.False(t, on, "an explicit Set must not be overwritten by a later env read")
}

func TestEnabledUnknownFlagReturnsNotFound(t *testing.T) {
	s := New(testDefs())
	_, err := s.Enabled("nope", "nope")
	require.Error(t, err)
}

func stubEnv(values map[string]string) func() {
	prev := lookupEnv
	lookupEnv = func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
	return func() { lookupEnv = prev }
}
