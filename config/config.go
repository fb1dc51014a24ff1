package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Research  ResearchConfig  `mapstructure:"research"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address      string  `mapstructure:"address"`
	RateLimit    float64 `mapstructure:"rate_limit"` // requests per second per API key
	RateBurst    int     `mapstructure:"rate_burst"`
	AuthRequired bool    `mapstructure:"auth_required"`
}

// LLMConfig configures the OpenAI-compatible model gateway
type LLMConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	MaxRetries     int           `mapstructure:"max_retries"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SearchConfig configures the Serper web search provider
type SearchConfig struct {
	APIKey           string        `mapstructure:"api_key"`
	BaseURL          string        `mapstructure:"base_url"`
	ResultsPerQuery  int           `mapstructure:"results_per_query"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	FetchMaxChars    int           `mapstructure:"fetch_max_chars"`
	FetchEnabled     bool          `mapstructure:"fetch_enabled"`
	FetchUserAgent   string        `mapstructure:"fetch_user_agent"`
	CountryCode      string        `mapstructure:"country_code"`
	LanguageCode     string        `mapstructure:"language_code"`
	AutocorrectQuery bool          `mapstructure:"autocorrect_query"`
}

// ResearchConfig tunes the research loop controllers
type ResearchConfig struct {
	NumberQueries     int    `mapstructure:"number_queries"`
	MaxSearchLoop     int    `mapstructure:"max_search_loop"`
	MaxToolIterations int    `mapstructure:"max_tool_iterations"`
	ToolBridge        string `mapstructure:"tool_bridge"` // "local" or "http"
	MCPURL            string `mapstructure:"mcp_url"`     // used when tool_bridge=http
	DeepResearchModel string `mapstructure:"deep_research_model"`
}

// RedisConfig configures the optional Redis-backed API key store
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TelemetryConfig contains monitoring settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func (r ResearchConfig) Validate() error {
	if r.MaxSearchLoop < 0 {
		return fmt.Errorf("research.max_search_loop must be >= 0")
	}
	if r.MaxToolIterations < 1 {
		return fmt.Errorf("research.max_tool_iterations must be >= 1")
	}
	switch r.ToolBridge {
	case "local", "http":
	default:
		return fmt.Errorf("research.tool_bridge must be local or http, got %q", r.ToolBridge)
	}
	return nil
}

// LoadConfig reads configuration from file and environment (DEEPRESEARCH_*).
func LoadConfig(path string) *Config {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":8000")
	viper.SetDefault("server.rate_limit", 5.0)
	viper.SetDefault("server.rate_burst", 10)
	viper.SetDefault("server.auth_required", true)
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.max_retries", 3)
	viper.SetDefault("llm.connect_timeout", 30*time.Second)
	viper.SetDefault("llm.request_timeout", 300*time.Second)
	viper.SetDefault("search.base_url", "https://google.serper.dev")
	viper.SetDefault("search.results_per_query", 3)
	viper.SetDefault("search.timeout", 15*time.Second)
	viper.SetDefault("search.fetch_timeout", 30*time.Second)
	viper.SetDefault("search.fetch_max_chars", 12000)
	viper.SetDefault("search.fetch_enabled", false)
	viper.SetDefault("search.country_code", "us")
	viper.SetDefault("search.language_code", "en")
	viper.SetDefault("research.number_queries", 1)
	viper.SetDefault("research.max_search_loop", 3)
	viper.SetDefault("research.max_tool_iterations", 10)
	viper.SetDefault("research.tool_bridge", "local")
	viper.SetDefault("research.deep_research_model", "deep-research")
	viper.SetDefault("redis.timeout", 5*time.Second)
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("DEEPRESEARCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; env vars and defaults carry the rest.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	if err := config.Research.Validate(); err != nil {
		panic(err)
	}
	return &config
}
