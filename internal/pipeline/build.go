package pipeline

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/cache"
	"github.com/ppiankov/verity/internal/llm"
	"github.com/ppiankov/verity/internal/model"
	"github.com/ppiankov/verity/internal/search"
	"github.com/ppiankov/verity/internal/util"
	"github.com/ppiankov/verity/internal/worker"
)

// NewContentFetcherFromConfig builds the fetch stack described by cfg
func NewContentFetcherFromConfig(cfg *model.Config) *ContentFetcher {
	fetcher := NewFetcher(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes,
		cfg.HTTP.InsecureTLS, cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy).
		WithMaxAttempts(cfg.HTTP.MaxAttempts)

	cf := NewContentFetcher(fetcher, cfg.HTTP.MaxTextChars).
		WithLimiter(worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize))

	if cfg.HTTP.RespectRobots {
		cf.WithRobots(util.NewRobotsChecker(cfg.HTTP.UserAgent, cfg.HTTP.Timeout))
	}
	if cfg.Cache.Enabled {
		cf.WithCache(cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL), cfg.Cache.DiskTTL)
	}
	return cf
}

// NewPipeline wires an Orchestrator from configuration. provider drives
// both summarization and judgment; mem may be nil to disable persistence.
func NewPipeline(cfg *model.Config, provider llm.Provider, mem Memory) (*Orchestrator, error) {
	if provider == nil {
		return nil, goerr.New("an LLM provider is required (set llm.provider)")
	}

	searcher, err := search.NewProvider(cfg.Search, cfg.HTTP)
	if err != nil {
		return nil, goerr.Wrap(err, "create search provider")
	}
	searcher = search.WithAuthority(searcher, search.NewAuthorityClassifier(&cfg.Authority))

	opts := []Option{
		WithWorkers(cfg.Concurrency.FetchWorkers, cfg.Concurrency.SummarizeWorkers, cfg.Concurrency.JudgeWorkers),
		WithPersistConcurrency(cfg.Memory.PersistConcurrency),
	}
	if mem != nil {
		opts = append(opts, WithMemory(mem))
	}

	return NewOrchestrator(
		searcher,
		NewContentFetcherFromConfig(cfg),
		llm.NewSummarizerWithProvider(provider, llm.ConfigFromModel(cfg.LLM, cfg.HTTP)),
		llm.NewJudge(provider),
		opts...,
	), nil
}
