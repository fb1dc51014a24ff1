package mcp

import (
	"context"
	"encoding/json"
	"fmt"
)

// ServerInfo identifies this MCP server to clients.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Server answers the JSON-RPC protocol over a tool registry.
type Server struct {
	registry *Registry
	info     ServerInfo
}

func NewServer(registry *Registry) *Server {
	return &Server{
		registry: registry,
		info:     ServerInfo{Name: "Serper MCP Server", Version: "0.1.0"},
	}
}

// Info returns the advertised server identity.
func (s *Server) Info() ServerInfo { return s.info }

// Tools returns the registered tool descriptors.
func (s *Server) Tools() []Tool { return s.registry.List() }

// Handle processes one protocol request. Protocol-level failures come back as
// response errors, never as Go errors.
func (s *Server) Handle(ctx context.Context, req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "initialize":
		resp.Result = map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}, "prompts": map[string]any{}},
			"serverInfo":      s.info,
		}

	case "tools/list":
		resp.Result = map[string]any{"tools": s.registry.List()}

	case "tools/call":
		var params struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			resp.Error = &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
			return resp
		}
		result, err := s.registry.Call(ctx, params.Name, params.Arguments)
		if err != nil {
			if rpcErr, ok := err.(*RPCError); ok {
				resp.Error = rpcErr
			} else {
				resp.Error = &RPCError{Code: CodeExecutionError, Message: err.Error()}
			}
			return resp
		}
		resp.Result = result

	default:
		resp.Error = &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("Unknown method: %s", req.Method)}
	}
	return resp
}
