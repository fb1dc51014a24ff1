package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/deepresearch/internal/llm"
	"github.com/mohammad-safakhou/deepresearch/internal/mcp"
)

type fakeBridge struct {
	tools   []mcp.Tool
	calls   []string
	args    []map[string]any
	result  mcp.ToolResult
	callErr error
	listErr error
}

func (b *fakeBridge) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return b.tools, b.listErr
}

func (b *fakeBridge) CallTool(ctx context.Context, name string, args map[string]any) (mcp.ToolResult, error) {
	b.calls = append(b.calls, name)
	b.args = append(b.args, args)
	return b.result, b.callErr
}

func toolCallChunk(index int, id, name, args string) llm.Chunk {
	d := llm.ToolCallDelta{Index: index, ID: id}
	d.Function.Name = name
	d.Function.Arguments = args
	return llm.Chunk{Choices: []llm.StreamChoice{{Delta: llm.Delta{ToolCalls: []llm.ToolCallDelta{d}}}}}
}

func searchTool() mcp.Tool {
	return mcp.Tool{Name: "google_search", Description: "search the web"}
}

func TestToolCallAccumulatorReassembly(t *testing.T) {
	acc := NewToolCallAccumulator()

	add := func(index int, id, name, args string) {
		d := llm.ToolCallDelta{Index: index, ID: id}
		d.Function.Name = name
		d.Function.Arguments = args
		acc.Add([]llm.ToolCallDelta{d})
	}

	add(0, "call_1", "sea", "")
	add(0, "", "rch", `{"q`)
	add(0, "", "", `":"golang"}`)

	calls := acc.Complete()
	if len(calls) != 1 {
		t.Fatalf("calls = %+v", calls)
	}
	got := calls[0]
	if got.ID != "call_1" || got.Function.Name != "search" {
		t.Fatalf("call = %+v", got)
	}
	if got.Function.Arguments != `{"q":"golang"}` {
		t.Fatalf("arguments = %q", got.Function.Arguments)
	}
}

func TestToolCallAccumulatorInterleavedIndexes(t *testing.T) {
	acc := NewToolCallAccumulator()
	add := func(index int, id, name, args string) {
		d := llm.ToolCallDelta{Index: index, ID: id}
		d.Function.Name = name
		d.Function.Arguments = args
		acc.Add([]llm.ToolCallDelta{d})
	}

	add(0, "call_a", "first", "")
	add(1, "call_b", "second", "")
	add(0, "", "", `{}`)
	add(1, "", "", `{"x":1}`)

	calls := acc.Complete()
	if len(calls) != 2 {
		t.Fatalf("calls = %+v", calls)
	}
	if calls[0].Function.Name != "first" || calls[1].Function.Name != "second" {
		t.Fatalf("order = %s, %s", calls[0].Function.Name, calls[1].Function.Name)
	}
}

func TestToolCallAccumulatorDropsIncomplete(t *testing.T) {
	acc := NewToolCallAccumulator()
	d := llm.ToolCallDelta{Index: 0}
	d.Function.Arguments = `{"q":"x"}` // fragments without id or name
	acc.Add([]llm.ToolCallDelta{d})
	if calls := acc.Complete(); len(calls) != 0 {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestToolLoopExecutesToolsThenAnswers(t *testing.T) {
	gateway := &fakeGateway{streams: []*fakeStream{
		{chunks: []llm.Chunk{toolCallChunk(0, "call_1", "google_search", `{"q":"golang"}`)}},
		{chunks: []llm.Chunk{contentChunk("The answer.")}},
	}}
	bridge := &fakeBridge{
		tools:  []mcp.Tool{searchTool()},
		result: mcp.TextResult("search results here"),
	}
	loop := NewToolLoop(gateway, bridge, 10, testLogger(t))

	events := collect(t, loop.Run(context.Background(), []llm.Message{llm.Text("user", "research golang")}))

	if got := contents(events); got != "The answer." {
		t.Fatalf("answer = %q", got)
	}
	if len(bridge.calls) != 1 || bridge.calls[0] != "google_search" {
		t.Fatalf("tool calls = %v", bridge.calls)
	}
	if q := bridge.args[0]["q"]; q != "golang" {
		t.Fatalf("args = %v", bridge.args[0])
	}
	if events[len(events)-1].Kind != EventDone {
		t.Fatal("expected Done last")
	}

	// The second request must carry the tool result back to the model.
	second := gateway.requests[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Role != "tool" || last.ToolCallID != "call_1" {
		t.Fatalf("last message = %+v", last)
	}
	if last.Content == nil || !strings.Contains(*last.Content, "search results here") {
		t.Fatalf("tool content = %v", last.Content)
	}
}

func TestToolLoopFeedsToolErrorsBack(t *testing.T) {
	gateway := &fakeGateway{streams: []*fakeStream{
		{chunks: []llm.Chunk{toolCallChunk(0, "call_1", "google_search", `{"q":"x"}`)}},
		{chunks: []llm.Chunk{contentChunk("recovered")}},
	}}
	bridge := &fakeBridge{
		tools:   []mcp.Tool{searchTool()},
		callErr: fmt.Errorf("provider unavailable"),
	}
	loop := NewToolLoop(gateway, bridge, 10, testLogger(t))

	events := collect(t, loop.Run(context.Background(), []llm.Message{llm.Text("user", "q")}))

	for _, ev := range events {
		if ev.Kind == EventError {
			t.Fatalf("tool failure must not abort the run: %+v", ev)
		}
	}
	second := gateway.requests[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Content == nil || !strings.Contains(*last.Content, "Error calling google_search") {
		t.Fatalf("tool content = %v", last.Content)
	}
}

func TestToolLoopMaxIterations(t *testing.T) {
	gateway := &fakeGateway{streams: []*fakeStream{
		{chunks: []llm.Chunk{toolCallChunk(0, "call_1", "google_search", `{"q":"a"}`)}},
		{chunks: []llm.Chunk{toolCallChunk(0, "call_2", "google_search", `{"q":"b"}`)}},
	}}
	bridge := &fakeBridge{
		tools:  []mcp.Tool{searchTool()},
		result: mcp.TextResult("more results"),
	}
	loop := NewToolLoop(gateway, bridge, 2, testLogger(t))

	events := collect(t, loop.Run(context.Background(), []llm.Message{llm.Text("user", "q")}))

	var sawError bool
	for _, ev := range events {
		if ev.Kind == EventError {
			sawError = true
			if !strings.Contains(ev.Text, ErrMaxIterations.Error()) {
				t.Fatalf("error text = %q", ev.Text)
			}
		}
	}
	if !sawError {
		t.Fatalf("events = %+v", events)
	}
	if events[len(events)-1].Kind != EventDone {
		t.Fatal("expected Done after the error")
	}
	if len(bridge.calls) != 2 {
		t.Fatalf("tool calls = %v", bridge.calls)
	}
}

func TestToolLoopListToolsFailure(t *testing.T) {
	bridge := &fakeBridge{listErr: errors.New("bridge down")}
	loop := NewToolLoop(&fakeGateway{}, bridge, 10, testLogger(t))

	events := collect(t, loop.Run(context.Background(), []llm.Message{llm.Text("user", "q")}))

	var sawError bool
	for _, ev := range events {
		if ev.Kind == EventError && strings.Contains(ev.Text, "bridge down") {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("events = %+v", events)
	}
}

func TestToolLoopMalformedArgumentsAborts(t *testing.T) {
	gateway := &fakeGateway{streams: []*fakeStream{
		{chunks: []llm.Chunk{toolCallChunk(0, "call_1", "google_search", `{"q":`)}},
	}}
	bridge := &fakeBridge{tools: []mcp.Tool{searchTool()}}
	loop := NewToolLoop(gateway, bridge, 10, testLogger(t))

	events := collect(t, loop.Run(context.Background(), []llm.Message{llm.Text("user", "q")}))

	var sawError bool
	for _, ev := range events {
		if ev.Kind == EventError && strings.Contains(ev.Text, "invalid arguments") {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("events = %+v", events)
	}
	if len(bridge.calls) != 0 {
		t.Fatalf("tool must not run with malformed arguments, calls = %v", bridge.calls)
	}
}
