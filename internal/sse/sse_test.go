package sse

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestChunkShape(t *testing.T) {
	enc := Encoder{Model: "deep-research"}
	frame := enc.Chunk("hello")

	if !bytes.HasPrefix(frame, []byte("data: ")) {
		t.Fatalf("frame = %q", frame)
	}
	if !bytes.HasSuffix(frame, []byte("\n\n")) {
		t.Fatalf("frame = %q", frame)
	}

	payload := bytes.TrimSuffix(bytes.TrimPrefix(frame, []byte("data: ")), []byte("\n\n"))
	var chunk struct {
		Choices []struct {
			Index int `json:"index"`
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
		Model string `json:"model"`
	}
	if err := json.Unmarshal(payload, &chunk); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if len(chunk.Choices) != 1 || chunk.Choices[0].Index != 0 {
		t.Fatalf("choices = %+v", chunk.Choices)
	}
	if chunk.Choices[0].Delta.Content != "hello" {
		t.Fatalf("content = %q", chunk.Choices[0].Delta.Content)
	}
	if chunk.Model != "deep-research" {
		t.Fatalf("model = %q", chunk.Model)
	}
}

func TestChunkDeterministic(t *testing.T) {
	enc := Encoder{Model: "m"}
	if !bytes.Equal(enc.Chunk("x"), enc.Chunk("x")) {
		t.Fatal("same fragment must encode identically")
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	enc := Encoder{Model: "m"}
	var buf bytes.Buffer
	buf.Write(enc.Chunk("one "))
	buf.Write(enc.Chunk("two "))
	buf.Write(enc.Chunk("three"))
	buf.Write(Done)

	fragments, err := Decode(&buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(fragments, ""); got != "one two three" {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeWithoutTerminalFrame(t *testing.T) {
	enc := Encoder{Model: "m"}
	if _, err := Decode(bytes.NewReader(enc.Chunk("x"))); err == nil {
		t.Fatal("expected error for stream without [DONE]")
	}
}

func TestIsDone(t *testing.T) {
	if !IsDone(Done) {
		t.Fatal("Done must be terminal")
	}
	if IsDone([]byte("data: {}\n\n")) {
		t.Fatal("content frame is not terminal")
	}
}
