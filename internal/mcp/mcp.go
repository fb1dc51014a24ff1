// Package mcp bridges the research loop to its tools through a JSON-RPC
// "tools/list" / "tools/call" protocol, served in-process or over HTTP.
package mcp

import "encoding/json"

const ProtocolVersion = "2024-11-05"

// JSON-RPC error codes used by the handler.
const (
	CodeExecutionError = -32000
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id,omitempty"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// Tool describes a callable tool: name, description and the JSON schema of
// its arguments.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolResult is the content a tool call produced.
type ToolResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextResult wraps plain text as a tool result.
func TextResult(text string) ToolResult {
	return ToolResult{Content: []ContentItem{{Type: "text", Text: text}}}
}

// ErrorResult wraps an execution failure so it can be fed back to the model
// instead of aborting the run.
func ErrorResult(text string) ToolResult {
	return ToolResult{Content: []ContentItem{{Type: "text", Text: text}}, IsError: true}
}
