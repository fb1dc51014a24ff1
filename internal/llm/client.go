package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// APIError is a non-2xx response from the gateway. It is never retried.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm: API returned status %d: %s", e.Status, e.Body)
}

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	retries    int
	backoff    time.Duration
	httpClient *http.Client
}

// NewClient creates a gateway client. Transport-level failures are retried up
// to retries times with exponential backoff; HTTP errors are not.
func NewClient(baseURL, apiKey, model string, connectTimeout, requestTimeout time.Duration, retries int) *Client {
	if connectTimeout == 0 {
		connectTimeout = 30 * time.Second
	}
	if requestTimeout == 0 {
		requestTimeout = 300 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: requestTimeout,
		IdleConnTimeout:       30 * time.Second,
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		retries:    retries,
		backoff:    300 * time.Millisecond,
		httpClient: &http.Client{Transport: transport},
	}
}

// Model returns the configured completion model name.
func (c *Client) Model() string { return c.model }

// Complete issues one non-streaming chat completion.
func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	req.Stream = false
	if req.Model == "" {
		req.Model = c.model
	}

	var out Response
	resp, err := c.post(ctx, req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("llm: failed to parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return out, fmt.Errorf("llm: no choices in response")
	}
	return out, nil
}

// StartStream issues a streaming chat completion. The caller must drain the
// returned stream to io.EOF or Close it before issuing another request.
// Retries never apply once the stream is open; a mid-stream failure surfaces
// from Recv.
func (c *Client) StartStream(ctx context.Context, req Request) (Stream, error) {
	req.Stream = true
	if req.Model == "" {
		req.Model = c.model
	}

	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	return &sseStream{body: resp.Body, scanner: newChunkScanner(resp.Body)}, nil
}

func (c *Client) post(ctx context.Context, body Request) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("llm: failed to marshal request: %w", err)
	}

	var lastErr error
	tries := c.retries + 1
	for attempt := 0; attempt < tries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("llm: failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("llm: request failed: %w", err)
		} else if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, &APIError{Status: resp.StatusCode, Body: string(b)}
		} else {
			return resp, nil
		}

		if attempt < tries-1 {
			select {
			case <-time.After(c.backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

// Stream yields successive chunks of a streaming completion. Recv returns
// io.EOF after the terminal [DONE] frame.
type Stream interface {
	Recv() (Chunk, error)
	Close() error
}

type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func newChunkScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return sc
}

func (s *sseStream) Recv() (Chunk, error) {
	if s.done {
		return Chunk{}, io.EOF
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			s.done = true
			return Chunk{}, io.EOF
		}
		var chunk Chunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return Chunk{}, fmt.Errorf("llm: malformed stream chunk: %w", err)
		}
		return chunk, nil
	}
	if err := s.scanner.Err(); err != nil {
		return Chunk{}, fmt.Errorf("llm: stream read failed: %w", err)
	}
	// Stream ended without an explicit [DONE]; treat as clean EOF.
	s.done = true
	return Chunk{}, io.EOF
}

func (s *sseStream) Close() error { return s.body.Close() }
