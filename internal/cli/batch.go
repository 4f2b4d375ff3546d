package cli

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/model"
	"github.com/ppiankov/verity/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Fact-check many claims from a file in parallel",
	Long: `Batch evaluates many claims concurrently:
- Read claims from input file (one per line, # starts a comment)
- Check claims in parallel with configurable worker count
- Write one JSON report per claim

Example:
  verity batch claims.txt
  verity batch claims.txt --concurrency 4 --output-dir ./reports`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of claims checked at once (default from concurrency.batch_workers)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./verity-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	workers := concurrency
	if workers <= 0 {
		workers = cfg.Concurrency.BatchWorkers
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	claims, err := worker.ReadClaimsFromFile(file)
	if err != nil {
		return goerr.Wrap(err, "read claims", goerr.V("path", file))
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Verity Batch\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s (%d claims)\n", file, len(claims))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return goerr.Wrap(err, "create output directory", goerr.V("dir", outputDir))
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	processor := worker.NewBatchProcessor(a.pipeline, workers)
	results := processor.ProcessClaims(ctx, claims)

	successCount, failureCount := 0, 0
	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Claim, result.Error)
			continue
		}

		path := filepath.Join(outputDir, reportFilename(result.Claim))
		if err := writeReport(result.Report, path); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Claim, err)
			continue
		}

		successCount++
		agg := result.Report.Aggregate
		fmt.Fprintf(os.Stderr, "✓ %s → %s (%d/%d/%d)\n", result.Claim, agg.Majority, agg.Support, agg.Refute, agg.Neutral)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d claims\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 && successCount == 0 {
		return goerr.New("every claim failed", goerr.V("failures", failureCount))
	}
	return nil
}

// writeReport writes report as indented JSON
func writeReport(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "marshal report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return goerr.Wrap(err, "write report", goerr.V("path", path))
	}
	return nil
}

// reportFilename derives a stable, filesystem-safe name for a claim: a
// slug of the claim followed by a short hash so near-identical claims do
// not collide.
func reportFilename(claim string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(claim) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= 60 {
			break
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "claim"
	}

	sum := sha256.Sum256([]byte(claim))
	return slug + "-" + hex.EncodeToString(sum[:4]) + ".json"
}
