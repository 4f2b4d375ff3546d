package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var checkTimeout time.Duration

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <claim>",
	Short: "Fact-check a single claim and stream progress",
	Long: `Check searches the web for the claim, summarizes the sources it can
reach, judges each summary against the claim and prints the tally.
Progress is printed as it happens.

Example:
  verity check "The Great Wall of China is visible from space"
  verity check "Coffee stunts growth" --timeout 3m`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 5*time.Minute, "overall check timeout")
}

func runCheck(cmd *cobra.Command, args []string) error {
	claim := strings.TrimSpace(strings.Join(args, " "))
	if claim == "" {
		return goerr.New("claim is empty")
	}

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return streamCheck(ctx, a.pipeline, claim, cmd.OutOrStdout())
}

type runner interface {
	Run(ctx context.Context, claim string) *pipeline.Stream
}

// streamCheck renders every event of one run to w
func streamCheck(ctx context.Context, checker runner, claim string, w io.Writer) error {
	stream := checker.Run(ctx, claim)
	defer stream.Close()

	complete := false
	for e := range stream.All(ctx) {
		if e.IsTerminal() {
			complete = true
		}
		if _, err := io.WriteString(w, pipeline.Render(e)); err != nil {
			return goerr.Wrap(err, "write output")
		}
	}
	if !complete {
		if err := ctx.Err(); err != nil {
			return goerr.Wrap(err, "check interrupted")
		}
	}
	return nil
}
