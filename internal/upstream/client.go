// Package upstream talks the MCP wire protocol to a running service over
// its declared Endpoint (spec §4.5 Upstream Client): listTools, invoke,
// and probe, each recording LastActivityAt before the network call goes
// out so the Supervisor's idle timer reflects attempted use, not just
// successful use.
//
// Grounded on backend_http.go's sharedHTTPClient-plus-thin-wrapper pattern
// in kubilitics-ai/internal/mcp/server (a single pooled *http.Client
// reused across all MCP tool calls to avoid file-descriptor exhaustion),
// generalized from "one backend base URL" to "one client per declared
// upstream Endpoint".
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kubilitics/mcp-gateway/internal/gwerr"
	"github.com/kubilitics/mcp-gateway/internal/keyword"
	"github.com/kubilitics/mcp-gateway/internal/model"
)

// sharedHTTPClient is reused by every Client instance, matching the
// teacher's single pooled transport for the same reason: avoiding
// per-call connection/FD churn across many upstream services.
var sharedHTTPClient = &http.Client{
	Timeout: 20 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// ActivityRecorder is implemented by the Registry's MutateObservedState
// seam, injected so the Upstream Client never imports the registry package
// directly (keeps the dependency direction registry -> upstream, not the
// reverse).
type ActivityRecorder func(serviceName string)

// Client is a thin MCP-over-HTTP client bound to one Endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	onActivity ActivityRecorder
}

// New builds a Client for a service's declared Endpoint.
func New(ep model.Endpoint, onActivity ActivityRecorder) *Client {
	base := fmt.Sprintf("%s://%s:%d%s", ep.Scheme, ep.Host, ep.Port, ep.PathSuffix)
	return &Client{
		baseURL:    strings.TrimSuffix(base, "/"),
		httpClient: sharedHTTPClient,
		onActivity: onActivity,
	}
}

// toolDescriptor is the wire shape of one tool in an MCP listTools
// response. Keywords is optional: few upstreams declare it, but when
// present it seeds the derived token set alongside name and description.
type toolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
	Keywords    []string        `json:"keywords"`
}

// ListTools fetches the upstream's current tool list (spec §4.5
// listTools()), deriving each tool's keyword token set at discovery time
// so the Keyword Scorer has real tokens to work with even when the
// upstream declares none of its own.
func (c *Client) ListTools(ctx context.Context, serviceName string) ([]model.Tool, error) {
	c.recordActivity(serviceName)

	var resp struct {
		Tools []toolDescriptor `json:"tools"`
	}
	if err := c.do(ctx, http.MethodGet, "/tools", nil, &resp); err != nil {
		return nil, err
	}

	tools := make([]model.Tool, 0, len(resp.Tools))
	for _, td := range resp.Tools {
		tools = append(tools, model.Tool{
			ServiceName: serviceName,
			LocalName:   td.Name,
			Description: td.Description,
			InputSchema: parseSchema(td.InputSchema),
			Keywords:    keyword.DeriveTokens(td.Name, td.Description, td.Keywords),
		})
	}
	return tools, nil
}

// Invoke calls one tool with built arguments (spec §4.5 invoke()).
func (c *Client) Invoke(ctx context.Context, serviceName, toolName string, args map[string]any) (any, error) {
	c.recordActivity(serviceName)

	body := map[string]any{"name": toolName, "arguments": args}
	var result any
	if err := c.do(ctx, http.MethodPost, "/invoke", body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Probe performs a lightweight health check against the upstream (spec
// §4.5 probe(), backing the Supervisor's HealthProbe).
func (c *Client) Probe(ctx context.Context, serviceName string) error {
	c.recordActivity(serviceName)
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) recordActivity(serviceName string) {
	if c.onActivity != nil {
		c.onActivity(serviceName)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return gwerr.Wrap(gwerr.Internal, err, "encode request body")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return gwerr.Wrap(gwerr.Internal, err, "build upstream request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return gwerr.Wrap(gwerr.Timeout, err, "upstream request timed out")
		}
		return gwerr.Wrap(gwerr.ServiceUnavailable, err, "upstream request failed")
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return gwerr.Newf(gwerr.ServiceUnavailable, "upstream %s %s: HTTP %d: %s", method, path, resp.StatusCode, truncate(string(respBody), 200))
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return gwerr.Wrap(gwerr.Internal, err, "decode upstream response")
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
