package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Handler executes one tool call with already-validated arguments.
type Handler func(ctx context.Context, args map[string]any) (ToolResult, error)

type registered struct {
	tool    Tool
	handler Handler
}

// Registry maps tool names to their descriptors and handlers.
type Registry struct {
	tools map[string]registered
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registered)}
}

func (r *Registry) Register(tool Tool, handler Handler) {
	r.tools[tool.Name] = registered{tool: tool, handler: handler}
}

// List returns all registered tool descriptors in name order.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, reg := range r.tools {
		out = append(out, reg.tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call validates args against the tool's declared schema and invokes it.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (ToolResult, error) {
	reg, ok := r.tools[name]
	if !ok {
		return ToolResult{}, &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("Unknown tool: %s", name)}
	}
	if err := validateArgs(reg.tool.InputSchema, args); err != nil {
		return ToolResult{}, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}
	return reg.handler(ctx, args)
}

// validateArgs checks required properties and primitive types against the
// tool's JSON schema before the handler runs.
func validateArgs(schema json.RawMessage, args map[string]any) error {
	if len(schema) == 0 {
		return nil
	}
	var s struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schema, &s); err != nil {
		return fmt.Errorf("invalid tool schema: %w", err)
	}
	for _, key := range s.Required {
		if _, ok := args[key]; !ok {
			return fmt.Errorf("missing required argument %q", key)
		}
	}
	for key, val := range args {
		prop, ok := s.Properties[key]
		if !ok || val == nil {
			continue
		}
		if !typeMatches(prop.Type, val) {
			return fmt.Errorf("argument %q: expected %s", key, prop.Type)
		}
	}
	return nil
}

func typeMatches(schemaType string, v any) bool {
	switch schemaType {
	case "string":
		_, ok := v.(string)
		return ok
	case "number", "integer":
		switch v.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	default:
		return true
	}
}
