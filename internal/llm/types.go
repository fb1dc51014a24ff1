package llm

import "encoding/json"

// Message is a single chat-completion message. A tool message must carry the
// ToolCallID of the assistant tool call it answers.
type Message struct {
	Role       string     `json:"role"`
	Content    *string    `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Text builds a plain content message.
func Text(role, content string) Message {
	return Message{Role: role, Content: &content}
}

// ToolCall is a model-emitted request to invoke a named tool.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Complete reports whether the call has been fully reassembled from deltas.
func (tc ToolCall) Complete() bool {
	return tc.ID != "" && tc.Function.Name != ""
}

// Tool is a tool definition in the chat-completions schema.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Request is an OpenAI-compatible chat-completions request.
type Request struct {
	Model      string    `json:"model"`
	Messages   []Message `json:"messages"`
	Stream     bool      `json:"stream,omitempty"`
	Tools      []Tool    `json:"tools,omitempty"`
	ToolChoice string    `json:"tool_choice,omitempty"`
}

// Response is a non-streaming chat-completions response.
type Response struct {
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Message struct {
		Role      string     `json:"role"`
		Content   string     `json:"content"`
		ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	} `json:"message"`
}

// Chunk is one streaming response chunk.
type Chunk struct {
	Choices []StreamChoice `json:"choices"`
}

type StreamChoice struct {
	Index        int    `json:"index"`
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Delta carries incremental content and fragmented tool calls. Tool-call
// fragments are keyed by Index and must be concatenated by the consumer.
type Delta struct {
	Content   *string         `json:"content,omitempty"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

type ToolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function,omitempty"`
}
