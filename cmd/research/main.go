// Command research is the line-mode client: it prompts for one research
// question, prints the answer with its sources and confidence, and
// exits. The exit code is 0 even on failure; failures are reported as
// messages instead.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
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
)

const cliUserID = "local-cli"

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

	fmt.Print("Ask your research question: ")
	reader := bufio.NewReader(os.Stdin)
	question, _ := reader.ReadString('\n')
	question = strings.TrimSpace(question)

	res, err := r.Run(context.Background(), question, cliUserID, runner.ModeFull)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if res.Failure != runner.FailureNone && res.Failure != runner.FailureStorage {
		fmt.Println("Error:", res.Answer)
		return
	}

	fmt.Println("\nAnswer:")
	fmt.Println(res.Answer)
	if len(res.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range res.Sources {
			fmt.Println(" -", src)
		}
	}
	fmt.Printf("\nConfidence: %.0f%%\n", res.Confidence*100)
	if res.Failure == runner.FailureStorage {
		fmt.Println("(warning: this interaction could not be saved to history)")
	}
}
