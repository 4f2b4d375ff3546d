package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// CouldNotExtract is the summary used when a source could not be summarized
const CouldNotExtract = "Could not extract content."

const summarySystem = "You are a helpful assistant that summarizes web articles faithfully. Never add facts that are not in the article."

const longSummaryTemplate = `Summarize the following article content clearly and concisely.

Article:
%s
`

const shortSummaryTemplate = `Summarize the following content briefly in 2-3 sentences. Focus only on the key facts.

Article:
%s
`

// Summarizer produces the long and short summaries of a source's text
type Summarizer struct {
	provider Provider
	config   Config
}

// NewSummarizer creates a summarizer from configuration.
// An empty provider name yields a disabled summarizer.
func NewSummarizer(config Config) (*Summarizer, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, goerr.Wrap(err, "create LLM provider")
	}
	return &Summarizer{provider: provider, config: config}, nil
}

// NewSummarizerWithProvider wraps an existing provider
func NewSummarizerWithProvider(provider Provider, config Config) *Summarizer {
	return &Summarizer{provider: provider, config: config}
}

// IsEnabled reports whether a provider is configured
func (s *Summarizer) IsEnabled() bool {
	return s.provider != nil
}

// ProviderName returns the provider name, or "" when disabled
func (s *Summarizer) ProviderName() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

// Summarize returns the long-form and short-form summaries of text.
// Both model calls run concurrently; either failing fails the whole call.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, string, error) {
	if s.provider == nil {
		return "", "", goerr.New("summarizer disabled: no LLM provider configured")
	}
	if strings.TrimSpace(text) == "" {
		return "", "", goerr.New("nothing to summarize")
	}

	var long, short string
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		resp, err := s.provider.Complete(ctx, CompletionRequest{
			System: summarySystem,
			Prompt: fmt.Sprintf(longSummaryTemplate, text),
		})
		if err != nil {
			return goerr.Wrap(err, "long summary")
		}
		long = resp.Text
		return nil
	})
	eg.Go(func() error {
		resp, err := s.provider.Complete(ctx, CompletionRequest{
			System: summarySystem,
			Prompt: fmt.Sprintf(shortSummaryTemplate, text),
		})
		if err != nil {
			return goerr.Wrap(err, "short summary")
		}
		short = resp.Text
		return nil
	})
	if err := eg.Wait(); err != nil {
		return "", "", err
	}

	return long, short, nil
}
