package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/deepresearch/internal/keystore"
	"github.com/mohammad-safakhou/deepresearch/internal/llm"
	"github.com/mohammad-safakhou/deepresearch/internal/mcp"
	"github.com/mohammad-safakhou/deepresearch/internal/research"
	"github.com/mohammad-safakhou/deepresearch/internal/sse"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// chatCompletions serves both research variants over SSE. The model name
// selects the pipeline: the configured deep research model runs the fixed
// loop over the last user message, anything else runs the tool loop over the
// full history.
func (s *Server) chatCompletions(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Messages) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "messages must not be empty")
	}

	ctx := c.Request().Context()
	var events <-chan research.Event
	if req.Model == s.cfg.Research.DeepResearchModel {
		topic := lastUserMessage(req.Messages)
		if topic == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "no user message found")
		}
		events = s.deep.Run(ctx, topic)
	} else {
		history := make([]llm.Message, 0, len(req.Messages))
		for _, m := range req.Messages {
			history = append(history, llm.Text(m.Role, m.Content))
		}
		events = s.toolLoop.Run(ctx, history)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	enc := sse.Encoder{Model: req.Model}
	write := func(frame []byte) error {
		if _, err := res.Write(frame); err != nil {
			return err
		}
		res.Flush()
		return nil
	}

	for ev := range events {
		var frame []byte
		switch ev.Kind {
		case research.EventNotify:
			frame = enc.Chunk("[NOTIFY] " + ev.Text)
		case research.EventContent:
			frame = enc.Chunk(ev.Text)
		case research.EventError:
			frame = enc.Chunk("[ERROR] An error occurred: " + ev.Text)
		case research.EventDone:
			frame = sse.Done
		}
		if err := write(frame); err != nil {
			// Client went away; the producer stops via request context.
			s.logger.Printf("client disconnected: %v", err)
			return nil
		}
	}
	return nil
}

func lastUserMessage(messages []chatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

// handleMCP dispatches one JSON-RPC request to the tool server.
func (s *Server) handleMCP(c echo.Context) error {
	var req mcp.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON-RPC request")
	}
	return c.JSON(http.StatusOK, s.mcpSrv.Handle(c.Request().Context(), req))
}

func (s *Server) capabilities(c echo.Context) error {
	info := s.mcpSrv.Info()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"name":    info.Name,
		"version": info.Version,
		"tools":   s.mcpSrv.Tools(),
	})
}

func (s *Server) mcpHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"tools":  len(s.mcpSrv.Tools()),
	})
}

type genKeyRequest struct {
	User string `json:"user"`
}

func (s *Server) generateKey(c echo.Context) error {
	var req genKeyRequest
	if err := c.Bind(&req); err != nil || req.User == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user is required")
	}
	key, err := s.keys.Issue(c.Request().Context(), req.User)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate key")
	}
	return c.JSON(http.StatusOK, map[string]string{"api_key": key, "user": req.User})
}

func (s *Server) listKeys(c echo.Context) error {
	infos, err := s.keys.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list keys")
	}
	if infos == nil {
		infos = []keystore.KeyInfo{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"keys": infos})
}

type revokeKeyRequest struct {
	Key string `json:"key"`
}

func (s *Server) revokeKey(c echo.Context) error {
	var req revokeKeyRequest
	if err := c.Bind(&req); err != nil || req.Key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key is required")
	}
	if err := s.keys.Revoke(c.Request().Context(), req.Key); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "unknown key")
	}
	return c.NoContent(http.StatusNoContent)
}
