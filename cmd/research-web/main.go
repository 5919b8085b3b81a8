// Command research-web serves the interactive front end: a question
// form with optional Auth0 login and per-user history.
package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"

	"research-agent/internal/agent"
	"research-agent/internal/config"
	"research-agent/internal/history"
	"research-agent/internal/llm"
	"research-agent/internal/logger"
	"research-agent/internal/runner"
	"research-agent/internal/search"
	"research-agent/internal/tools"
	"research-agent/internal/web"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Agent.Verbose {
		logger.SetLevel("debug")
	}

	store, err := history.Open(cfg.History)
	if err != nil {
		logger.L.Error("failed to open history store", "error", err)
		os.Exit(1)
	}

	registry := tools.NewRegistry()
	searcher := search.NewDuckDuckGo(cfg.Agent.Search.MaxResults,
		time.Duration(cfg.Agent.Search.TimeoutSeconds)*time.Second)
	if err := registry.Register(search.NewWebSearchTool(searcher)); err != nil {
		logger.L.Error("failed to register search tool", "error", err)
		os.Exit(1)
	}

	ag := agent.New(llm.NewClient(cfg.LLM), *cfg, registry)
	defer ag.Close()
	r := runner.New(ag, store, cfg.History.Strict)

	server := web.New(cfg.Web, r, store)
	if err := server.ListenAndServe(); err != nil {
		logger.L.Error("web server stopped", "error", err)
		os.Exit(1)
	}
}
