package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/fetch"
	"github.com/mohammad-safakhou/deepresearch/internal/keystore"
	"github.com/mohammad-safakhou/deepresearch/internal/llm"
	"github.com/mohammad-safakhou/deepresearch/internal/mcp"
	"github.com/mohammad-safakhou/deepresearch/internal/research"
	"github.com/mohammad-safakhou/deepresearch/internal/search"
)

// Server wires the research controllers, tool bridge and key store behind
// the HTTP surface.
type Server struct {
	cfg    *config.Config
	logger *log.Logger

	deep     *research.DeepResearcher
	toolLoop *research.ToolLoop
	mcpSrv   *mcp.Server
	keys     keystore.Store
}

func New(cfg *config.Config, deep *research.DeepResearcher, toolLoop *research.ToolLoop, mcpSrv *mcp.Server, keys keystore.Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}
	return &Server{cfg: cfg, logger: logger, deep: deep, toolLoop: toolLoop, mcpSrv: mcpSrv, keys: keys}
}

// Run builds all dependencies from configuration and serves until the
// listener fails.
func Run(cfg *config.Config) error {
	logger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)

	gateway := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model,
		cfg.LLM.ConnectTimeout, cfg.LLM.RequestTimeout, cfg.LLM.MaxRetries)
	searcher := search.NewClient(cfg.Search.APIKey, cfg.Search.BaseURL, cfg.Search.Timeout)

	registry := mcp.NewRegistry()
	mcp.RegisterSearchTools(registry, searcher)
	if cfg.Search.FetchEnabled {
		fetcher := fetch.NewFetcher(cfg.Search.FetchTimeout, cfg.Search.FetchMaxChars, cfg.Search.FetchUserAgent)
		mcp.RegisterFetchTool(registry, fetcher)
	}
	mcpSrv := mcp.NewServer(registry)

	var bridge mcp.Bridge
	switch cfg.Research.ToolBridge {
	case "http":
		url := cfg.Research.MCPURL
		if url == "" {
			url = fmt.Sprintf("http://localhost%s/mcp", cfg.Server.Address)
		}
		bridge = mcp.NewHTTPBridge(url, cfg.LLM.RequestTimeout)
	default:
		bridge = &mcp.LocalBridge{Registry: registry}
	}

	var keys keystore.Store
	if cfg.Redis.Host != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.Timeout)
		client, err := keystore.Conn(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Timeout)
		cancel()
		if err != nil {
			return err
		}
		keys = keystore.NewRedis(client)
		logger.Printf("api keys backed by redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
	} else {
		keys = keystore.NewMemory()
	}

	researchLogger := log.New(log.Writer(), "[RESEARCH] ", log.LstdFlags)
	deep := research.NewDeepResearcher(gateway, searcher, research.Options{
		NumberQueries:   cfg.Research.NumberQueries,
		MaxSearchLoop:   cfg.Research.MaxSearchLoop,
		ResultsPerQuery: cfg.Search.ResultsPerQuery,
		CountryCode:     cfg.Search.CountryCode,
		LanguageCode:    cfg.Search.LanguageCode,
	}, researchLogger)
	toolLoop := research.NewToolLoop(gateway, bridge, cfg.Research.MaxToolIterations, researchLogger)

	srv := New(cfg, deep, toolLoop, mcpSrv, keys, logger)
	e := srv.Echo()
	logger.Printf("listening on %s", cfg.Server.Address)
	return e.Start(cfg.Server.Address)
}

// Echo builds the configured echo instance with all routes and middleware.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": map[string]string{"message": msg}})
		}
	}

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-API-KEY"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.POST("/gen", s.generateKey)
	api.GET("/keys", s.listKeys)
	api.DELETE("/keys", s.revokeKey)

	mcpGroup := e.Group("/mcp")
	mcpGroup.POST("", s.handleMCP)
	mcpGroup.POST("/", s.handleMCP)
	mcpGroup.GET("/capabilities", s.capabilities)
	mcpGroup.GET("/health", s.mcpHealth)

	v1 := e.Group("/v1")
	if s.cfg.Server.AuthRequired {
		v1.Use(s.authMiddleware)
	}
	v1.Use(s.rateLimiter())
	v1.POST("/chat/completions", s.chatCompletions)

	return e
}

// authMiddleware validates the bearer token against the key store.
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c.Request())
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing API key")
		}
		info, err := s.keys.Validate(c.Request().Context(), token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid API key")
		}
		c.Set("user", info.User)
		return next(c)
	}
}

// rateLimiter throttles per API key, falling back to the caller's IP.
func (s *Server) rateLimiter() echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(s.cfg.Server.RateLimit),
		Burst:     s.cfg.Server.RateBurst,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if token := bearerToken(c.Request()); token != "" {
				return "key:" + token, nil
			}
			return c.RealIP(), nil
		},
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-API-KEY")
}
