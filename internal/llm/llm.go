package llm

import (
	"research-agent/internal/config"

	"github.com/sashabaranov/go-openai"
)

// NewClient creates an OpenAI-compatible chat client from configuration.
// The base URL may point at any compatible gateway.
func NewClient(cfg config.LLMConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}
