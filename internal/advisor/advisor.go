// Package advisor talks to a locally-hosted LLM (Ollama-compatible) that
// ranks candidate tools against a task description (spec §4.8 Advisor
// Client). Every failure mode — connection refused, timeout, malformed
// response — collapses to a single Unavailable classification so the
// Hybrid Selector never has to distinguish "advisor said no" from
// "advisor couldn't be reached": both mean "fall back to keyword scoring"
// (spec §4.9).
//
// Grounded on kubilitics-ai/internal/llm/provider/ollama's client (a thin
// wrapper over Ollama's HTTP chat API, configured via OLLAMA_BASE_URL/
// OLLAMA_MODEL env vars) and the ProviderNone/graceful-degradation idea in
// internal/llm/adapter/adapter_impl.go's ProviderType enum — "no advisor
// configured" and "advisor configured but unreachable" are both handled
// the same way here, as Unavailable.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kubilitics/mcp-gateway/internal/gwerr"
	"github.com/kubilitics/mcp-gateway/internal/model"
)

// sharedHTTPClient is kept warm across calls (spec §4.8 "warm-connection
// keep-alive") rather than built per-request.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     24 * time.Hour,
	},
}

// Ranking is one candidate's advisor-assigned score for a single task.
type Ranking struct {
	ToolFQN    string
	Confidence float64
	Reason     string
}

// Client is a strict, timeout-bounded client for an Ollama-style chat
// completion endpoint used purely for ranking, never for generation.
type Client struct {
	baseURL string
	model   string
	timeout time.Duration
}

// New builds a Client. An empty baseURL is valid — every call then
// immediately returns Unavailable, matching ProviderNone's graceful
// degradation in the teacher's adapter.
func New(baseURL, model string, timeout time.Duration) *Client {
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), model: model, timeout: timeout}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// rankingPayload is the strict JSON shape the prompt instructs the model
// to reply with; anything that doesn't parse as this is Unavailable
// (spec §4.8 "strict parse-or-Unavailable").
type rankingPayload struct {
	Rankings []struct {
		Tool       string  `json:"tool"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	} `json:"rankings"`
}

// Rank asks the advisor to score candidates against taskText. On any
// failure — including a response that doesn't parse — it returns a
// gwerr.AdvisorUnavailable error and the caller falls back to keyword-only
// selection.
func (c *Client) Rank(ctx context.Context, taskText string, candidates []model.Tool) ([]Ranking, error) {
	if c.baseURL == "" {
		return nil, gwerr.New(gwerr.AdvisorUnavailable, "no advisor configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := chatRequest{
		Model:    c.model,
		Stream:   false,
		Format:   "json",
		Messages: []chatMessage{{Role: "user", Content: buildPrompt(taskText, candidates)}},
	}
	buf, err := json.Marshal(req)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.AdvisorUnavailable, err, "encode advisor request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(buf))
	if err != nil {
		return nil, gwerr.Wrap(gwerr.AdvisorUnavailable, err, "build advisor request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := sharedHTTPClient.Do(httpReq)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.AdvisorUnavailable, err, "advisor unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, gwerr.Newf(gwerr.AdvisorUnavailable, "advisor returned HTTP %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, gwerr.Wrap(gwerr.AdvisorUnavailable, err, "decode advisor envelope")
	}

	var payload rankingPayload
	if err := json.Unmarshal([]byte(chat.Message.Content), &payload); err != nil {
		return nil, gwerr.Wrap(gwerr.AdvisorUnavailable, err, "advisor reply was not valid ranking JSON")
	}

	out := make([]Ranking, 0, len(payload.Rankings))
	for _, r := range payload.Rankings {
		out = append(out, Ranking{ToolFQN: r.Tool, Confidence: clamp01(r.Confidence), Reason: r.Reason})
	}
	return out, nil
}

// Reachable reports whether the advisor's base URL responds at all,
// without going through a full chat round trip. Used by the Control
// API's health endpoints (spec §6.1 GET /health, GET /router/health).
func (c *Client) Reachable(ctx context.Context) bool {
	if c.baseURL == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func buildPrompt(taskText string, candidates []model.Tool) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(taskText)
	b.WriteString("\nCandidate tools (respond with JSON {\"rankings\":[{\"tool\":fullyQualifiedName,\"confidence\":0..1,\"reason\":string}]}):\n")
	for _, t := range candidates {
		b.WriteString("- ")
		b.WriteString(t.FullyQualifiedName())
		b.WriteString(": ")
		b.WriteString(t.Description)
		b.WriteString("\n")
	}
	return b.String()
}
