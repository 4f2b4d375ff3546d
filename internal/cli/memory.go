package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/llm"
	"github.com/ppiankov/verity/internal/memory"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	memoryTopK  int
	memoryForce bool
)

// memoryCmd represents the memory command
var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect or clear remembered fact checks",
}

var memorySearchCmd = &cobra.Command{
	Use:   "search <claim>",
	Short: "Show the past fact checks nearest to a claim",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		claim := strings.TrimSpace(strings.Join(args, " "))
		ctx := commandContext(cmd)
		store, err := openMemoryFromConfig(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		matches := store.Query(ctx, claim, memoryTopK)
		out := cmd.OutOrStdout()
		if len(matches) == 0 {
			fmt.Fprintln(out, memory.NoResults)
			return nil
		}
		for i, m := range matches {
			fmt.Fprintf(out, "%d. [%s] %s (distance %.3f)\n", i+1, m.Record.Verdict, m.Record.Claim, m.Distance)
			if m.Record.URL != "" {
				fmt.Fprintf(out, "   %s\n", m.Record.URL)
			}
			fmt.Fprintf(out, "   %s\n", m.Record.Summary)
		}
		return nil
	},
}

var memoryResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every remembered fact check",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !memoryForce {
			return goerr.New("refusing to reset memory without --force")
		}
		ctx := commandContext(cmd)
		store, err := openMemoryFromConfig(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := store.Reset(ctx); err != nil {
			return goerr.Wrap(err, "reset memory")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Memory cleared")
		return nil
	},
}

// openMemoryFromConfig opens the configured store. The LLM provider is only
// needed for embeddings, so a missing provider falls back to local hashing.
func openMemoryFromConfig(ctx context.Context) (*memory.Store, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return nil, goerr.Wrap(err, "create LLM provider")
	}
	return openMemory(ctx, cfg, provider)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	rootCmd.AddCommand(memoryCmd)
	memoryCmd.AddCommand(memorySearchCmd)
	memoryCmd.AddCommand(memoryResetCmd)

	memorySearchCmd.Flags().IntVarP(&memoryTopK, "top-k", "k", memory.DefaultTopK, "number of matches to show")
	memoryResetCmd.Flags().BoolVar(&memoryForce, "force", false, "confirm the reset")
}
