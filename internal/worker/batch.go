package worker

import (
	"bufio"
	"context"
	"os"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/model"
)

// Checker evaluates a single claim to completion
type Checker interface {
	Check(ctx context.Context, claim string) (*model.Report, error)
}

// CheckJob is one claim evaluation submitted to the pool
type CheckJob struct {
	Index   int
	Claim   string
	Checker Checker
}

// Execute runs the claim evaluation
func (j *CheckJob) Execute(ctx context.Context) Result {
	report, err := j.Checker.Check(ctx, j.Claim)
	if err != nil {
		return &CheckResult{Index: j.Index, Claim: j.Claim, Error: err}
	}
	return &CheckResult{Index: j.Index, Claim: j.Claim, Report: report}
}

// CheckResult is the outcome of a CheckJob
type CheckResult struct {
	Index  int
	Claim  string
	Report *model.Report
	Error  error
}

// GetError returns the error from the check result
func (r *CheckResult) GetError() error {
	return r.Error
}

// BatchProcessor evaluates many claims concurrently
type BatchProcessor struct {
	checker     Checker
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(checker Checker, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		checker:     checker,
		concurrency: concurrency,
	}
}

// ProcessClaims evaluates claims concurrently and returns results in input order
func (b *BatchProcessor) ProcessClaims(ctx context.Context, claims []string) []*CheckResult {
	if len(claims) == 0 {
		return []*CheckResult{}
	}

	pool := NewPoolContext(ctx, b.concurrency)
	pool.Start()

	for i, claim := range claims {
		pool.Submit(&CheckJob{Index: i, Claim: claim, Checker: b.checker})
	}

	results := pool.Wait()

	checkResults := make([]*CheckResult, 0, len(results))
	for _, result := range results {
		if r, ok := result.(*CheckResult); ok {
			checkResults = append(checkResults, r)
		}
	}
	sort.Slice(checkResults, func(i, j int) bool {
		return checkResults[i].Index < checkResults[j].Index
	})

	return checkResults
}

// ProcessFile reads claims from a file and evaluates them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*CheckResult, error) {
	claims, err := ReadClaimsFromFile(filePath)
	if err != nil {
		return nil, goerr.Wrap(err, "read claims", goerr.V("path", filePath))
	}

	return b.ProcessClaims(ctx, claims), nil
}

// ReadClaimsFromFile reads claims from a file (one per line).
// Blank lines and lines starting with # are skipped; duplicates are dropped.
func ReadClaimsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, goerr.Wrap(err, "open file")
	}
	defer func() { _ = file.Close() }()

	var claims []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key := strings.ToLower(line)
		if !seen[key] {
			seen[key] = true
			claims = append(claims, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, goerr.Wrap(err, "scan file")
	}

	return claims, nil
}
