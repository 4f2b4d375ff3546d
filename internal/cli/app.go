package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/llm"
	"github.com/ppiankov/verity/internal/logging"
	"github.com/ppiankov/verity/internal/memory"
	"github.com/ppiankov/verity/internal/model"
	"github.com/ppiankov/verity/internal/pipeline"
)

// app holds the collaborators shared by the serve, check and batch commands
type app struct {
	cfg      *model.Config
	provider llm.Provider
	memory   *memory.Store
	pipeline *pipeline.Orchestrator
}

// newApp wires the LLM provider, memory store and pipeline from cfg
func newApp(ctx context.Context, cfg *model.Config) (*app, error) {
	llmCfg := llm.ConfigFromModel(cfg.LLM, cfg.HTTP)
	provider, err := llm.NewProvider(llmCfg)
	if err != nil {
		return nil, goerr.Wrap(err, "create LLM provider")
	}

	mem, err := openMemory(ctx, cfg, provider)
	if err != nil {
		return nil, err
	}

	orch, err := pipeline.NewPipeline(cfg, provider, mem)
	if err != nil {
		_ = mem.Close()
		return nil, goerr.Wrap(err, "create pipeline")
	}

	logging.From(ctx).Debug("pipeline ready",
		"llm", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"search", cfg.Search.Provider,
		"memory", cfg.Memory.Backend,
	)

	return &app{cfg: cfg, provider: provider, memory: mem, pipeline: orch}, nil
}

func openMemory(ctx context.Context, cfg *model.Config, provider llm.Provider) (*memory.Store, error) {
	embedder := llm.NewEmbedder(provider, llm.ConfigFromModel(cfg.LLM, cfg.HTTP), cfg.Memory.EmbeddingDims)
	mem, err := memory.Open(ctx, cfg.Memory, embedder)
	if err != nil {
		return nil, goerr.Wrap(err, "open memory", goerr.V("backend", cfg.Memory.Backend))
	}
	return mem, nil
}

func (a *app) Close() {
	if err := a.memory.Close(); err != nil {
		logging.Default().Warn("close memory failed", "error", err)
	}
}
