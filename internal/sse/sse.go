// Package sse frames progress payloads as Server-Sent Events in the
// chat-completions streaming chunk shape.
package sse

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Done is the terminal frame every stream ends with.
var Done = []byte("data: [DONE]\n\n")

type delta struct {
	Content string `json:"content"`
}

type streamChoice struct {
	Index int   `json:"index"`
	Delta delta `json:"delta"`
}

type streamChunk struct {
	Choices []streamChoice `json:"choices"`
	Model   string         `json:"model"`
}

// Encoder frames content fragments for one stream.
type Encoder struct {
	Model string
}

// Chunk wraps a content fragment as one complete SSE frame. Encoding the same
// fragment twice yields byte-identical frames.
func (e Encoder) Chunk(content string) []byte {
	chunk := streamChunk{
		Choices: []streamChoice{{Index: 0, Delta: delta{Content: content}}},
		Model:   e.Model,
	}
	payload, err := json.Marshal(chunk)
	if err != nil {
		// The chunk shape contains only strings and ints; Marshal cannot fail.
		panic(fmt.Sprintf("sse: marshal chunk: %v", err))
	}
	buf := make([]byte, 0, len(payload)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	buf = append(buf, '\n', '\n')
	return buf
}

// Decode reassembles the content fragments of concatenated frames, in order.
// It stops at the terminal [DONE] frame. Used by clients and tests.
func Decode(r io.Reader) ([]string, error) {
	var fragments []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return fragments, nil
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return fragments, fmt.Errorf("sse: malformed frame: %w", err)
		}
		for _, choice := range chunk.Choices {
			fragments = append(fragments, choice.Delta.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		return fragments, err
	}
	return fragments, fmt.Errorf("sse: stream ended without terminal frame")
}

// IsDone reports whether b is the terminal frame.
func IsDone(b []byte) bool { return bytes.Equal(b, Done) }
