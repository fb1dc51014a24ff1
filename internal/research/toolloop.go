package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/mohammad-safakhou/deepresearch/internal/llm"
	"github.com/mohammad-safakhou/deepresearch/internal/mcp"
	"github.com/mohammad-safakhou/deepresearch/internal/telemetry"
)

// ErrMaxIterations reports a tool loop that hit its iteration cap without the
// model producing a tool-call-free turn.
var ErrMaxIterations = errors.New("research stopped: maximum iterations reached without a final response")

// ToolLoop runs the open-ended research variant: the model decides which
// tools to call, every call's result is fed back into the conversation, and
// the loop ends on the first turn without tool calls.
type ToolLoop struct {
	gateway       Gateway
	bridge        mcp.Bridge
	maxIterations int
	logger        *log.Logger
}

func NewToolLoop(gateway Gateway, bridge mcp.Bridge, maxIterations int, logger *log.Logger) *ToolLoop {
	if maxIterations < 1 {
		maxIterations = 10
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[RESEARCH] ", log.LstdFlags)
	}
	return &ToolLoop{gateway: gateway, bridge: bridge, maxIterations: maxIterations, logger: logger}
}

// Run starts one tool-loop run over the given message history. The channel is
// closed after the terminal Done event.
func (t *ToolLoop) Run(ctx context.Context, messages []llm.Message) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)
		start := time.Now()

		emit := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		err := t.run(ctx, messages, emit)
		status := "ok"
		if err != nil {
			status = "error"
			t.logger.Printf("run failed: %v", err)
			if !emit(Event{Kind: EventError, Text: err.Error()}) {
				return
			}
		}
		telemetry.ObserveRun("research", status, time.Since(start))
		emit(Event{Kind: EventDone})
	}()
	return events
}

func (t *ToolLoop) run(ctx context.Context, messages []llm.Message, emit func(Event) bool) error {
	// Tool list is fetched once per run, not per iteration.
	if !emit(Event{Kind: EventNotify, Text: "Fetching available tools...\n\n"}) {
		return ctx.Err()
	}
	tools, err := t.bridge.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}
	t.logger.Printf("found %d tools", len(tools))
	llmTools := mcp.LLMTools(tools)

	conversation := make([]llm.Message, 0, len(messages)+1)
	conversation = append(conversation, llm.Text("system", fmt.Sprintf(researchSystemPrompt, CurrentDate())))
	conversation = append(conversation, messages...)

	for iteration := 1; iteration <= t.maxIterations; iteration++ {
		t.logger.Printf("research iteration %d", iteration)
		if !emit(Event{Kind: EventNotify, Text: fmt.Sprintf("Thinking... (iteration %d)\n\n", iteration)}) {
			return ctx.Err()
		}

		req := llm.Request{Messages: conversation}
		if len(llmTools) > 0 {
			req.Tools = llmTools
			req.ToolChoice = "auto"
		}
		assistant, err := t.streamTurn(ctx, req, emit)
		if err != nil {
			return err
		}
		conversation = append(conversation, assistant)

		if len(assistant.ToolCalls) == 0 {
			// Final content was already streamed during this turn.
			return nil
		}

		if !emit(Event{Kind: EventNotify, Text: fmt.Sprintf("Executing %d tool call(s)...\n\n", len(assistant.ToolCalls))}) {
			return ctx.Err()
		}
		for _, call := range assistant.ToolCalls {
			toolMsg, err := t.executeCall(ctx, call, emit)
			if err != nil {
				return err
			}
			conversation = append(conversation, toolMsg)
		}
	}

	return ErrMaxIterations
}

// streamTurn drains one streaming completion, forwarding content deltas as
// they arrive and reassembling fragmented tool calls by positional index.
func (t *ToolLoop) streamTurn(ctx context.Context, req llm.Request, emit func(Event) bool) (llm.Message, error) {
	start := time.Now()
	stream, err := t.gateway.StartStream(ctx, req)
	telemetry.ObserveLLMRequest("stream", err, time.Since(start))
	if err != nil {
		return llm.Message{}, err
	}
	defer stream.Close()

	acc := NewToolCallAccumulator()
	var content string

	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return llm.Message{}, err
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != nil && *choice.Delta.Content != "" {
				content += *choice.Delta.Content
				if !emit(Event{Kind: EventContent, Text: *choice.Delta.Content}) {
					return llm.Message{}, ctx.Err()
				}
			}
			acc.Add(choice.Delta.ToolCalls)
		}
	}

	assistant := llm.Message{Role: "assistant"}
	if content != "" {
		assistant.Content = &content
	}
	assistant.ToolCalls = acc.Complete()
	return assistant, nil
}

func (t *ToolLoop) executeCall(ctx context.Context, call llm.ToolCall, emit func(Event) bool) (llm.Message, error) {
	var args map[string]any
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return llm.Message{}, fmt.Errorf("invalid arguments for tool %s: %w", call.Function.Name, err)
	}

	t.logger.Printf("calling tool %s", call.Function.Name)
	if !emit(Event{Kind: EventNotify, Text: fmt.Sprintf("Calling %s...\n\n", call.Function.Name)}) {
		return llm.Message{}, ctx.Err()
	}

	start := time.Now()
	result, err := t.bridge.CallTool(ctx, call.Function.Name, args)
	telemetry.ObserveToolCall(call.Function.Name, err, time.Since(start))
	// Tool failures are fed back into the conversation, not fatal.
	formatted := mcp.FormatToolResult(call.Function.Name, result, err)

	if !emit(Event{Kind: EventNotify, Text: fmt.Sprintf("Completed %s\n\n", call.Function.Name)}) {
		return llm.Message{}, ctx.Err()
	}

	return llm.Message{Role: "tool", Content: &formatted, ToolCallID: call.ID}, nil
}

// ToolCallAccumulator reassembles tool calls from streaming deltas. Fragments
// are keyed by positional index; the id is assigned once, name and arguments
// concatenate across chunks.
type ToolCallAccumulator struct {
	calls []llm.ToolCall
}

func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{}
}

func (a *ToolCallAccumulator) Add(deltas []llm.ToolCallDelta) {
	for _, d := range deltas {
		for len(a.calls) <= d.Index {
			a.calls = append(a.calls, llm.ToolCall{Type: "function"})
		}
		call := &a.calls[d.Index]
		if d.ID != "" {
			call.ID = d.ID
		}
		call.Function.Name += d.Function.Name
		call.Function.Arguments += d.Function.Arguments
	}
}

// Complete returns the calls whose id and name are both present, in index
// order.
func (a *ToolCallAccumulator) Complete() []llm.ToolCall {
	var out []llm.ToolCall
	for _, call := range a.calls {
		if call.Complete() {
			out = append(out, call)
		}
	}
	return out
}
