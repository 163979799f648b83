package cli

import (
	"context"
	"fmt"

	"github.com/arunmenon/text2sql/engine/graph"
	"github.com/arunmenon/text2sql/engine/llm"
	"github.com/arunmenon/text2sql/engine/pipeline"
	"github.com/arunmenon/text2sql/pkg/config"
	"github.com/arunmenon/text2sql/pkg/logger"
	"github.com/spf13/cobra"
)

// app bundles everything a command needs after wiring.
type app struct {
	cfg          *config.Config
	orchestrator *pipeline.Orchestrator
	store        *graph.CachingStore
}

func (a *app) close() {
	a.store.Close()
}

// setupApp loads configuration, sets up logging, and wires the pipeline.
func setupApp(cmd *cobra.Command) (*app, context.Context, error) {
	logLevel, logJSON, logSource, err := logger.GetLoggerConfig(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	log := logger.SetupLogger(logLevel, logJSON, logSource)
	ctx := logger.ContextWithLogger(cmd.Context(), log)

	cfg, err := config.NewService().Load()
	if err != nil {
		return nil, nil, err
	}

	client := graph.NewClient(&graph.ClientConfig{
		BaseURL: cfg.GraphStore.BaseURL,
		APIKey:  cfg.GraphStore.APIKey,
		Timeout: cfg.GraphStore.Timeout,
	})
	store, err := graph.NewCachingStore(client, cfg.GraphStore.CacheTTL)
	if err != nil {
		return nil, nil, err
	}

	model, err := llm.NewModel(&llm.ProviderConfig{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("cli: create model: %w", err)
	}
	generator := llm.NewService(llm.NewLangChainClient(model), llm.ServiceConfig{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})

	orchestrator, err := pipeline.New(store, generator, cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return &app{cfg: cfg, orchestrator: orchestrator, store: store}, ctx, nil
}
