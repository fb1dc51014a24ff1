package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const echoSchema = `{
  "type": "object",
  "properties": {
    "text": {"type": "string"},
    "repeat": {"type": "integer"}
  },
  "required": ["text"]
}`

func echoRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	r.Register(Tool{
		Name:        "echo",
		Description: "echoes its input",
		InputSchema: json.RawMessage(echoSchema),
	}, func(ctx context.Context, args map[string]any) (ToolResult, error) {
		return TextResult(args["text"].(string)), nil
	})
	return r
}

func TestRegistryCall(t *testing.T) {
	r := echoRegistry(t)
	result, err := r.Call(context.Background(), "echo", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "hi" {
		t.Fatalf("result = %+v", result)
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	r := echoRegistry(t)
	_, err := r.Call(context.Background(), "missing", nil)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != CodeMethodNotFound {
		t.Fatalf("error = %v", err)
	}
}

func TestRegistryValidatesArgs(t *testing.T) {
	r := echoRegistry(t)

	_, err := r.Call(context.Background(), "echo", map[string]any{})
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != CodeInvalidParams {
		t.Fatalf("missing required arg: error = %v", err)
	}

	_, err = r.Call(context.Background(), "echo", map[string]any{"text": 42})
	if !errors.As(err, &rpcErr) || rpcErr.Code != CodeInvalidParams {
		t.Fatalf("wrong type: error = %v", err)
	}

	// Numbers decoded from JSON arrive as float64.
	if _, err := r.Call(context.Background(), "echo", map[string]any{"text": "x", "repeat": float64(2)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry()
	noop := func(ctx context.Context, args map[string]any) (ToolResult, error) { return ToolResult{}, nil }
	r.Register(Tool{Name: "zeta"}, noop)
	r.Register(Tool{Name: "alpha"}, noop)

	tools := r.List()
	if len(tools) != 2 || tools[0].Name != "alpha" || tools[1].Name != "zeta" {
		t.Fatalf("tools = %+v", tools)
	}
}

func TestServerInitialize(t *testing.T) {
	srv := NewServer(echoRegistry(t))
	resp := srv.Handle(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: "initialize"})
	if resp.Error != nil {
		t.Fatalf("error = %v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	if result["protocolVersion"] != ProtocolVersion {
		t.Fatalf("result = %v", result)
	}
}

func TestServerToolsList(t *testing.T) {
	srv := NewServer(echoRegistry(t))
	resp := srv.Handle(context.Background(), Request{JSONRPC: "2.0", ID: 2, Method: "tools/list"})
	if resp.Error != nil {
		t.Fatalf("error = %v", resp.Error)
	}
	tools := resp.Result.(map[string]any)["tools"].([]Tool)
	if len(tools) != 1 || tools[0].Name != "echo" {
		t.Fatalf("tools = %+v", tools)
	}
}

func TestServerToolsCall(t *testing.T) {
	srv := NewServer(echoRegistry(t))
	params, _ := json.Marshal(map[string]any{"name": "echo", "arguments": map[string]any{"text": "hi"}})
	resp := srv.Handle(context.Background(), Request{JSONRPC: "2.0", ID: 3, Method: "tools/call", Params: params})
	if resp.Error != nil {
		t.Fatalf("error = %v", resp.Error)
	}
	result := resp.Result.(ToolResult)
	if result.Content[0].Text != "hi" {
		t.Fatalf("result = %+v", result)
	}
}

func TestServerUnknownMethod(t *testing.T) {
	srv := NewServer(echoRegistry(t))
	resp := srv.Handle(context.Background(), Request{JSONRPC: "2.0", ID: 4, Method: "prompts/list"})
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("error = %v", resp.Error)
	}
}

func TestServerExecutionError(t *testing.T) {
	r := NewRegistry()
	r.Register(Tool{Name: "fail"}, func(ctx context.Context, args map[string]any) (ToolResult, error) {
		return ToolResult{}, fmt.Errorf("backend down")
	})
	srv := NewServer(r)
	params, _ := json.Marshal(map[string]any{"name": "fail", "arguments": map[string]any{}})
	resp := srv.Handle(context.Background(), Request{JSONRPC: "2.0", ID: 5, Method: "tools/call", Params: params})
	if resp.Error == nil || resp.Error.Code != CodeExecutionError {
		t.Fatalf("error = %v", resp.Error)
	}
}

func TestLocalBridge(t *testing.T) {
	bridge := &LocalBridge{Registry: echoRegistry(t)}

	tools, err := bridge.ListTools(context.Background())
	if err != nil || len(tools) != 1 {
		t.Fatalf("tools = %v, err = %v", tools, err)
	}
	result, err := bridge.CallTool(context.Background(), "echo", map[string]any{"text": "ok"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content[0].Text != "ok" {
		t.Fatalf("result = %+v", result)
	}
}

func TestHTTPBridge(t *testing.T) {
	mcpSrv := NewServer(echoRegistry(t))
	httpSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.JSONRPC != "2.0" || req.ID == nil {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(mcpSrv.Handle(r.Context(), req))
	}))
	defer httpSrv.Close()

	bridge := NewHTTPBridge(httpSrv.URL, time.Second)

	tools, err := bridge.ListTools(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "echo" {
		t.Fatalf("tools = %+v", tools)
	}

	result, err := bridge.CallTool(context.Background(), "echo", map[string]any{"text": "remote"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if result.Content[0].Text != "remote" {
		t.Fatalf("result = %+v", result)
	}

	_, err = bridge.CallTool(context.Background(), "missing", map[string]any{})
	if err == nil || !strings.Contains(err.Error(), "Unknown tool") {
		t.Fatalf("error = %v", err)
	}
}

func TestLLMTools(t *testing.T) {
	tools := []Tool{
		{Name: "a", Description: "desc", InputSchema: json.RawMessage(`{"type":"object"}`)},
		{Name: "b"},
	}
	out := LLMTools(tools)
	if len(out) != 2 {
		t.Fatalf("out = %+v", out)
	}
	if out[0].Type != "function" || out[0].Function.Name != "a" {
		t.Fatalf("out[0] = %+v", out[0])
	}
	if string(out[1].Function.Parameters) != "{}" {
		t.Fatalf("empty schema must become {}, got %q", out[1].Function.Parameters)
	}
}

func TestFormatToolResult(t *testing.T) {
	if got := FormatToolResult("search", ToolResult{}, fmt.Errorf("boom")); got != "Error calling search: boom" {
		t.Fatalf("got %q", got)
	}
	if got := FormatToolResult("search", ErrorResult("not found"), nil); got != "Error calling search: not found" {
		t.Fatalf("got %q", got)
	}
	if got := FormatToolResult("search", TextResult("data"), nil); got != "data" {
		t.Fatalf("got %q", got)
	}
	if got := FormatToolResult("search", ToolResult{}, nil); got != "Tool search returned no result" {
		t.Fatalf("got %q", got)
	}
}
