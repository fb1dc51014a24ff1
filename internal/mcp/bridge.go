package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/deepresearch/internal/llm"
)

// Bridge is the tool surface the research loop consumes.
type Bridge interface {
	ListTools(ctx context.Context) ([]Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (ToolResult, error)
}

// LocalBridge serves tools from an in-process registry.
type LocalBridge struct {
	Registry *Registry
}

func (b *LocalBridge) ListTools(ctx context.Context) ([]Tool, error) {
	return b.Registry.List(), nil
}

func (b *LocalBridge) CallTool(ctx context.Context, name string, args map[string]any) (ToolResult, error) {
	return b.Registry.Call(ctx, name, args)
}

// HTTPBridge speaks the JSON-RPC protocol to a remote MCP endpoint.
type HTTPBridge struct {
	URL        string
	httpClient *http.Client
}

func NewHTTPBridge(url string, timeout time.Duration) *HTTPBridge {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &HTTPBridge{URL: url, httpClient: &http.Client{Timeout: timeout}}
}

func (b *HTTPBridge) ListTools(ctx context.Context) ([]Tool, error) {
	var result struct {
		Tools []Tool `json:"tools"`
	}
	if err := b.call(ctx, "tools/list", nil, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

func (b *HTTPBridge) CallTool(ctx context.Context, name string, args map[string]any) (ToolResult, error) {
	params := map[string]any{"name": name, "arguments": args}
	var result ToolResult
	if err := b.call(ctx, "tools/call", params, &result); err != nil {
		return ToolResult{}, err
	}
	return result, nil
}

func (b *HTTPBridge) call(ctx context.Context, method string, params any, out any) error {
	var rawParams json.RawMessage
	if params != nil {
		p, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("mcp: failed to marshal params: %w", err)
		}
		rawParams = p
	}
	body, err := json.Marshal(Request{JSONRPC: "2.0", ID: uuid.NewString(), Method: method, Params: rawParams})
	if err != nil {
		return fmt.Errorf("mcp: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mcp: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mcp: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mcp: HTTP %d: %s", resp.StatusCode, string(b))
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("mcp: failed to parse response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("mcp error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("mcp: failed to parse result: %w", err)
		}
	}
	return nil
}

// LLMTools converts tool descriptors to the chat-completions tool schema.
func LLMTools(tools []Tool) []llm.Tool {
	out := make([]llm.Tool, 0, len(tools))
	for _, t := range tools {
		params := t.InputSchema
		if len(params) == 0 {
			params = json.RawMessage(`{}`)
		}
		out = append(out, llm.Tool{
			Type: "function",
			Function: llm.Function{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

// FormatToolResult renders a tool result for the conversation. Execution
// errors become readable text the model can react to.
func FormatToolResult(name string, result ToolResult, err error) string {
	if err != nil {
		return fmt.Sprintf("Error calling %s: %v", name, err)
	}
	var parts []string
	for _, item := range result.Content {
		if item.Type == "text" {
			parts = append(parts, item.Text)
		}
	}
	if result.IsError {
		return fmt.Sprintf("Error calling %s: %s", name, strings.Join(parts, "\n"))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Tool %s returned no result", name)
	}
	return strings.Join(parts, "\n")
}
