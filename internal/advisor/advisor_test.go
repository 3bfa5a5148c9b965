package advisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics/mcp-gateway/internal/gwerr"
	"github.com/kubilitics/mcp-gateway/internal/model"
)

func TestRankWithNoBaseURLIsUnavailable(t *testing.T) {
	c := New("", "llama3", time.Second)
	_, err := c.Rank(context.Background(), "find a file", nil)
	require.Error(t, err)
	assert.Equal(t, gwerr.AdvisorUnavailable, gwerr.KindOf(err))
}

func TestRankParsesValidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{"rankings": []map[string]any{
			{"tool": "files/read", "confidence": 0.9, "reason": "matches file intent"},
		}}
		buf, _ := json.Marshal(payload)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"role": "assistant", "content": string(buf)},
		})
	}))
	defer server.Close()

	c := New(server.URL, "llama3", time.Second)
	rankings, err := c.Rank(context.Background(), "read a file", []model.Tool{{ServiceName: "files", LocalName: "read"}})
	require.NoError(t, err)
	require.Len(t, rankings, 1)
	assert.Equal(t, "files/read", rankings[0].ToolFQN)
	assert.InDelta(t, 0.9, rankings[0].Confidence, 1e-9)
}

func TestRankMalformedContentIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"role": "assistant", "content": "not json"},
		})
	}))
	defer server.Close()

	c := New(server.URL, "llama3", time.Second)
	_, err := c.Rank(context.Background(), "read a file", nil)
	require.Error(t, err)
	assert.Equal(t, gwerr.AdvisorUnavailable, gwerr.KindOf(err))
}

func TestRankHonorsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
	}))
	defer server.Close()

	c := New(server.URL, "llama3", 5*time.Millisecond)
	_, err := c.Rank(context.Background(), "read a file", nil)
	require.Error(t, err)
	assert.Equal(t, gwerr.AdvisorUnavailable, gwerr.KindOf(err))
}

func TestClampConfidenceToUnitRange(t *testing.T) {
	assert.Equal(t, 1.0, clamp01(3))
	assert.Equal(t, 0.0, clamp01(-1))
	assert.Equal(t, 0.5, clamp01(0.5))
}
