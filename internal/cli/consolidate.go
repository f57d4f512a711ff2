package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/lazypower/vigil/internal/config"
	"github.com/lazypower/vigil/internal/consolidate"
	"github.com/lazypower/vigil/internal/llm"
	"github.com/lazypower/vigil/internal/memory"
	"github.com/spf13/cobra"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate [user-id]",
	Short: "Summarize live events into the daily archive",
	Long:  "Drains unconsolidated events into an LLM-written daily summary. With no argument, runs for every user with events.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConsolidate,
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.LLM.Provider = "anthropic"
		cfg.LLM.AnthropicKey = key
	}

	db, err := openConfiguredDB()
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return fmt.Errorf("consolidation needs an LLM: %w", err)
	}

	buf := memory.NewBuffer(cfg.Memory.BufferSize)
	events := memory.NewEvents(db, nil)
	archive := memory.NewArchive(db, nil)
	c := consolidate.New(db, client, buf, events, archive)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if len(args) == 1 {
		res, err := c.Run(ctx, args[0])
		if err != nil {
			return err
		}
		printResult(res)
		return nil
	}
	return c.RunAll(ctx)
}

func printResult(res *consolidate.Result) {
	if res.EventCount == 0 {
		fmt.Printf("%s: nothing to consolidate\n", res.UserID)
		return
	}
	fmt.Printf("%s: %d events -> %q (trust %d)\n", res.UserID, res.EventCount, res.Summary, res.TrustSnapshot)
}
