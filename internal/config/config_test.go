package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
http_port: 9090
services:
  - name: search
    image: ghcr.io/example/search-mcp:1.0
    endpoint:
      scheme: http
      host: 127.0.0.1
      port: 7001
    priority: high
    autoStart: true
    idleTimeoutSeconds: 300
    resources:
      memLimitBytes: 536870912
      memReservationBytes: 134217728
  - name: files
    image: ghcr.io/example/files-mcp:1.0
    endpoint:
      scheme: http
      host: 127.0.0.1
      port: 7002
virtualServers:
  - name: default
    members: ["search", "files/read"]
router:
  advisor_weight: 0.6
  min_confidence: 0.4
`

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadParsesServicesAndVirtualServers(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	snap, err := Load(path)
	require.NoError(t, err)

	require.Len(t, snap.Services, 2)
	assert.Equal(t, "search", snap.Services[0].Name)
	assert.EqualValues(t, 7001, snap.Services[0].Endpoint.Port)
	assert.True(t, snap.Services[0].Enabled, "enabled defaults to true when omitted")

	require.Len(t, snap.VirtualServers, 1)
	assert.ElementsMatch(t, []string{"search", "files/read"}, snap.VirtualServers[0].Members)

	assert.Equal(t, 9090, snap.HTTPPort)
	assert.InDelta(t, 0.6, snap.Router.AdvisorWeight, 1e-9)
}

func TestLoadRejectsVirtualServerReferencingUnknownService(t *testing.T) {
	body := `
services:
  - name: search
    image: x
    endpoint: {scheme: http, host: h, port: 1}
virtualServers:
  - name: default
    members: ["ghost"]
`
	path := writeTempConfig(t, body)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsDuplicateServiceNames(t *testing.T) {
	body := `
services:
  - name: search
    image: x
    endpoint: {scheme: http, host: h, port: 1}
  - name: search
    image: y
    endpoint: {scheme: http, host: h, port: 2}
`
	path := writeTempConfig(t, body)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsOverReservedResources(t *testing.T) {
	body := `
services:
  - name: search
    image: x
    endpoint: {scheme: http, host: h, port: 1}
    resources:
      memLimitBytes: 100
      memReservationBytes: 200
`
	path := writeTempConfig(t, body)
	_, err := Load(path)
	require.Error(t, err)
}

func TestFlagEnvOverrideIsTruthyParsed(t *testing.T) {
	path := writeTempConfig(t, "services: []\n")
	t.Setenv("FLAG_CORE_SUPERVISOR", "false")
	snap, err := Load(path)
	require.NoError(t, err)
	assert.False(t, snap.Flags["core.supervisor"])
}
