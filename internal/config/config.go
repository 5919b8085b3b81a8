package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"`
	Agent   AgentConfig   `mapstructure:"agent"`
	History HistoryConfig `mapstructure:"history"`
	Web     WebConfig     `mapstructure:"web"`
}

// LLMConfig holds the hosted model configuration.
type LLMConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
}

// AgentConfig holds the research agent configuration.
type AgentConfig struct {
	Verbose    bool              `mapstructure:"verbose"`
	MaxTurns   int               `mapstructure:"max_turns"`
	Search     SearchConfig      `mapstructure:"search"`
	MCPServers []MCPServerConfig `mapstructure:"mcp_servers"`
}

// SearchConfig holds the web-search tool configuration.
type SearchConfig struct {
	MaxResults     int `mapstructure:"max_results"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// MCPClientType identifies the transport of an external MCP tool server.
type MCPClientType string

const (
	ClientTypeSSE            MCPClientType = "sse"
	ClientTypeStreamableHTTP MCPClientType = "streamable_http"
	ClientTypeStdio          MCPClientType = "stdio"
)

// MCPServerConfig describes one optional external tool server.
type MCPServerConfig struct {
	Name    string            `mapstructure:"name"`
	Type    MCPClientType     `mapstructure:"type"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
}

// HistoryConfig holds the interaction log configuration.
type HistoryConfig struct {
	Backend string `mapstructure:"backend"` // "sqlite" or "csv"
	Path    string `mapstructure:"path"`
	// Strict surfaces persistence failures to the caller instead of
	// logging and continuing.
	Strict bool `mapstructure:"strict"`
}

// WebConfig holds the interactive front end configuration.
type WebConfig struct {
	Host       string      `mapstructure:"host"`
	Port       string      `mapstructure:"port"`
	Auth0      Auth0Config `mapstructure:"auth0"`
	AdminUsers []string    `mapstructure:"admin_users"`
}

// Auth0Config holds the optional third-party login configuration.
// Either all four fields are set, or the UI runs without a login gate.
type Auth0Config struct {
	Domain       string `mapstructure:"domain"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	CallbackURL  string `mapstructure:"callback_url"`
}

// Enabled reports whether the login gate is configured.
func (a Auth0Config) Enabled() bool {
	return a.Domain != "" || a.ClientID != "" || a.ClientSecret != "" || a.CallbackURL != ""
}

func (a Auth0Config) complete() bool {
	return a.Domain != "" && a.ClientID != "" && a.ClientSecret != "" && a.CallbackURL != ""
}

// Load reads configuration from config.yaml (or the file named by
// CONFIG_PATH) with environment overrides under the RESEARCH_ prefix,
// e.g. RESEARCH_LLM_API_KEY for llm.api_key.
func Load() (*Config, error) {
	v := viper.New()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("RESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("agent.max_turns", 5)
	v.SetDefault("agent.search.max_results", 5)
	v.SetDefault("agent.search.timeout_seconds", 15)
	v.SetDefault("history.backend", "sqlite")
	v.SetDefault("history.path", "history.db")
	v.SetDefault("web.host", "0.0.0.0")
	v.SetDefault("web.port", "8080")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No config file is fine as long as the environment provides
		// the required values.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that would produce a non-functional
// agent at runtime. Missing credentials must fail here, at startup.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return errors.New("llm.api_key is required (set RESEARCH_LLM_API_KEY or llm.api_key in config.yaml)")
	}
	switch c.History.Backend {
	case "sqlite", "csv":
	default:
		return fmt.Errorf("history.backend must be \"sqlite\" or \"csv\", got %q", c.History.Backend)
	}
	if c.Web.Auth0.Enabled() && !c.Web.Auth0.complete() {
		return errors.New("web.auth0 requires domain, client_id, client_secret and callback_url to all be set")
	}
	return nil
}
