// Package pipeline runs one claim through search, fetch, summarize, judge,
// aggregate and persist, and streams progress to the caller.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/llm"
	"github.com/ppiankov/verity/internal/logging"
	"github.com/ppiankov/verity/internal/memory"
	"github.com/ppiankov/verity/internal/model"
	"github.com/ppiankov/verity/internal/worker"
	"golang.org/x/sync/errgroup"
)

// SourceProvider returns candidate evidence sources for a claim
type SourceProvider interface {
	Search(ctx context.Context, claim string) ([]model.EvidenceSource, error)
}

// TextFetcher returns the readable text of a url, "" on failure
type TextFetcher interface {
	FetchText(ctx context.Context, url string) string
}

// Summarizer produces the long and short summary of a text
type Summarizer interface {
	Summarize(ctx context.Context, text string) (long, short string, err error)
}

// Judge evaluates a summary against a claim
type Judge interface {
	Judge(ctx context.Context, claim, summary string) (llm.ParseResult, error)
}

// Memory persists judgments that take a stance
type Memory interface {
	Insert(ctx context.Context, claim string, verdict model.Verdict, summary string, meta memory.Metadata) (string, error)
}

// Orchestrator coordinates the stages of a fact check
type Orchestrator struct {
	search     SourceProvider
	fetcher    TextFetcher
	summarizer Summarizer
	judge      Judge
	memory     Memory

	fetchWorkers       int
	summarizeWorkers   int
	judgeWorkers       int
	persistConcurrency int
	logger             *slog.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithWorkers sets the size of the fetch, summarize and judge pools
func WithWorkers(fetch, summarize, judge int) Option {
	return func(o *Orchestrator) {
		o.fetchWorkers = fetch
		o.summarizeWorkers = summarize
		o.judgeWorkers = judge
	}
}

// WithMemory enables persistence of Supports/Refutes judgments
func WithMemory(m Memory) Option {
	return func(o *Orchestrator) { o.memory = m }
}

// WithPersistConcurrency bounds concurrent memory inserts
func WithPersistConcurrency(n int) Option {
	return func(o *Orchestrator) { o.persistConcurrency = n }
}

// WithLogger sets the logger used when ctx carries none
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// NewOrchestrator wires the stage collaborators together
func NewOrchestrator(search SourceProvider, fetcher TextFetcher, summarizer Summarizer, judge Judge, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		search:             search,
		fetcher:            fetcher,
		summarizer:         summarizer,
		judge:              judge,
		fetchWorkers:       4,
		summarizeWorkers:   2,
		judgeWorkers:       2,
		persistConcurrency: 4,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run starts evaluating claim and returns its event stream. Closing the
// stream cancels the run.
func (o *Orchestrator) Run(ctx context.Context, claim string) *Stream {
	if o.logger != nil && !logging.Has(ctx) {
		ctx = logging.With(ctx, o.logger)
	}
	runCtx, cancel := context.WithCancel(ctx)
	stream := newStream(cancel)

	go func() {
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				logging.From(runCtx).Error("panic in fact check", "panic", r, "claim", claim)
				stream.push(model.Event{Kind: model.EventDone})
			}
		}()
		o.run(runCtx, claim, stream)
	}()

	return stream
}

// Check runs claim to completion and returns the collected report
func (o *Orchestrator) Check(ctx context.Context, claim string) (*model.Report, error) {
	stream := o.Run(ctx, claim)
	defer stream.Close()

	report, err := Collect(ctx, stream)
	if err != nil {
		return report, err
	}
	report.CheckedAt = time.Now().UTC()
	return report, nil
}

// sourceJob carries one source between stages. Each stage hands the value
// on to the next, so a judge job always holds its own source's summary.
type sourceJob struct {
	index   int
	source  model.EvidenceSource
	text    string
	summary model.SourceSummary
}

func (o *Orchestrator) run(ctx context.Context, claim string, stream *Stream) {
	logger := logging.From(ctx).With("claim", claim)
	start := time.Now()

	stream.push(model.Event{Kind: model.EventSearching, Claim: claim})

	sources, err := o.search.Search(ctx, claim)
	if err != nil {
		logger.Warn("search failed, continuing with no sources", "error", err)
		sources = nil
	}
	logger.Debug("sources found", "count", len(sources))

	judgments := make([]*model.Judgment, len(sources))

	if len(sources) > 0 {
		fetchPool := worker.NewPoolContext(ctx, o.fetchWorkers)
		summarizePool := worker.NewPoolContext(ctx, o.summarizeWorkers)
		judgePool := worker.NewPoolContext(ctx, o.judgeWorkers)
		fetchPool.Start()
		summarizePool.Start()
		judgePool.Start()

		var announce sync.Once

		judgeStage := func(job sourceJob) worker.JobFunc {
			return func(ctx context.Context) worker.Result {
				var res llm.ParseResult
				err := recoverStage(func() error {
					var err error
					res, err = o.judge.Judge(ctx, claim, job.summary.LongForm)
					return err
				})
				if err != nil {
					logger.Warn("judge failed", "url", job.source.URL, "error", err)
					res = llm.ParseResult{Failure: llm.FailureJudgeError, Detail: err.Error()}
				} else if !res.Ok {
					logger.Warn("judge output not parsable", "url", job.source.URL, "failure", res.Failure)
				}
				j := res.Judgment(job.source, job.summary.LongForm)
				judgments[job.index] = &j
				return nil
			}
		}

		summarizeStage := func(job sourceJob) worker.JobFunc {
			return func(ctx context.Context) worker.Result {
				var long, short string
				err := recoverStage(func() error {
					var err error
					long, short, err = o.summarizer.Summarize(ctx, job.text)
					return err
				})
				summary := model.SourceSummary{SourceURL: job.source.URL, LongForm: long, ShortForm: short}
				if err != nil {
					logger.Warn("summarize failed", "url", job.source.URL, "error", err)
					summary = model.SourceSummary{
						SourceURL: job.source.URL,
						LongForm:  llm.CouldNotExtract,
						ShortForm: llm.CouldNotExtract,
						Failed:    true,
					}
				}
				stream.push(model.Event{Kind: model.EventSummaryReady, Source: &job.source, Summary: &summary})

				job.summary = summary
				job.text = ""
				judgePool.Submit(judgeStage(job))
				return nil
			}
		}

		for i, src := range sources {
			job := sourceJob{index: i, source: src}
			submitted := fetchPool.Submit(worker.JobFunc(func(ctx context.Context) worker.Result {
				err := recoverStage(func() error {
					job.text = o.fetcher.FetchText(ctx, job.source.URL)
					return nil
				})
				if err != nil {
					logger.Warn("fetch failed", "url", job.source.URL, "error", err)
					job.text = ""
				}
				if job.text == "" {
					stream.push(model.Event{Kind: model.EventSourceUnreachable, Source: &job.source})
					return nil
				}
				stream.push(model.Event{Kind: model.EventSourceFound, Source: &job.source})
				announce.Do(func() {
					stream.push(model.Event{Kind: model.EventSummarizing})
				})
				summarizePool.Submit(summarizeStage(job))
				return nil
			}))
			if !submitted {
				break
			}
		}

		fetchPool.Wait()
		summarizePool.Wait()
		judgePool.Wait()
	}

	if ctx.Err() != nil {
		logger.Info("fact check cancelled", "elapsed", time.Since(start))
		stream.push(model.Event{Kind: model.EventDone})
		return
	}

	ordered := make([]model.Judgment, 0, len(judgments))
	for _, j := range judgments {
		if j != nil {
			ordered = append(ordered, *j)
		}
	}

	stream.push(model.Event{Kind: model.EventJudging, Count: len(ordered)})
	for i := range ordered {
		stream.push(model.Event{Kind: model.EventJudgmentReady, Judgment: &ordered[i]})
	}

	agg := Aggregate(ordered)
	o.persist(ctx, logger, claim, ordered)

	stream.push(model.Event{Kind: model.EventFinalVerdict, Aggregate: &agg})
	stream.push(model.Event{Kind: model.EventDone})

	logger.Info("fact check complete",
		"verdict", agg.Majority,
		"judged", agg.Total,
		"sources", len(sources),
		"elapsed", time.Since(start),
	)
}

// recoverStage runs fn and reports a panic in it as an error
func recoverStage(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = goerr.New("panic in pipeline stage", goerr.V("panic", r))
		}
	}()
	return fn()
}

// persist stores Supports/Refutes judgments. Errors are logged only.
func (o *Orchestrator) persist(ctx context.Context, logger *slog.Logger, claim string, judgments []model.Judgment) {
	if o.memory == nil {
		return
	}

	var eg errgroup.Group
	if o.persistConcurrency > 0 {
		eg.SetLimit(o.persistConcurrency)
	}

	for _, j := range judgments {
		if !j.Verdict.Memorable() {
			continue
		}
		eg.Go(func() error {
			id, err := o.memory.Insert(ctx, claim, j.Verdict, j.Summary, memory.Metadata{URL: j.SourceURL, Title: j.SourceTitle})
			if err != nil {
				logger.Warn("persist judgment failed", "url", j.SourceURL, "error", err)
				return nil
			}
			logger.Debug("judgment persisted", "id", id, "url", j.SourceURL)
			return nil
		})
	}
	_ = eg.Wait()
}
