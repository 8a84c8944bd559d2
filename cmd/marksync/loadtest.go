package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marksync/marksync/internal/cache"
	"github.com/marksync/marksync/internal/loadtest"
	"github.com/marksync/marksync/internal/ui"
)

var loadtestCmd = &cobra.Command{
	Use:     "loadtest",
	GroupID: "inspect",
	Short:   "Hammer an in-memory cache with concurrent agents",
	Long: `Populate a cache and run concurrent agents against it.

Agents work from stale copies of the tree, so many operations are rejected by
the cache; those are counted separately from real errors. After the run the
tree is validated.

Examples:
  marksync loadtest
  marksync loadtest --agents 200 --ops 500 --folders 100
  marksync loadtest --json`,
	Run: runLoadtest,
}

func init() {
	defaults := loadtest.DefaultConfig()
	loadtestCmd.Flags().Int("agents", defaults.Agents, "Number of concurrent agents to simulate")
	loadtestCmd.Flags().Int("ops", defaults.OpsPerAgent, "Number of operations per agent")
	loadtestCmd.Flags().Int("folders", 50, "Folders created before the run")
	loadtestCmd.Flags().Int("bookmarks", 10, "Bookmarks per folder created before the run")
	loadtestCmd.Flags().Int64("seed", defaults.Seed, "Random seed")
	loadtestCmd.Flags().Bool("json", false, "Output results as JSON")
	rootCmd.AddCommand(loadtestCmd)
}

func runLoadtest(cmd *cobra.Command, args []string) {
	agents, _ := cmd.Flags().GetInt("agents")
	ops, _ := cmd.Flags().GetInt("ops")
	folders, _ := cmd.Flags().GetInt("folders")
	bookmarks, _ := cmd.Flags().GetInt("bookmarks")
	seed, _ := cmd.Flags().GetInt64("seed")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	ui.Init(os.Stdout)

	if agents <= 0 || ops <= 0 {
		fmt.Fprintf(os.Stderr, "Error: --agents and --ops must be positive\n")
		os.Exit(1)
	}
	if folders < 0 || bookmarks < 0 {
		fmt.Fprintf(os.Stderr, "Error: --folders and --bookmarks must not be negative\n")
		os.Exit(1)
	}

	ctx := context.Background()
	// Rejections are expected in bulk; keep them off stderr.
	c := cache.New(cache.WithLogger(log.New(io.Discard, "", 0)))
	if err := loadtest.Populate(ctx, c, folders, bookmarks); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	stats, err := loadtest.Run(ctx, c, loadtest.Config{Agents: agents, OpsPerAgent: ops, Seed: seed})
	elapsed := time.Since(start)

	if jsonOutput {
		out := struct {
			*loadtest.LatencyStats
			Elapsed time.Duration `json:"elapsed_ns"`
			Nodes   int           `json:"nodes"`
			Error   string        `json:"error,omitempty"`
		}{LatencyStats: stats, Elapsed: elapsed, Nodes: c.Len()}
		if err != nil {
			out.Error = err.Error()
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	} else if stats != nil {
		fmt.Printf("%s %d agents x %d ops in %v\n", ui.RenderAccent("⚡"), agents, ops, elapsed.Round(time.Millisecond))
		stats.PrintStats(os.Stdout)
		fmt.Printf("  Nodes after:   %d\n", c.Len())
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
		os.Exit(1)
	}
	if !jsonOutput {
		fmt.Printf("%s Tree valid\n", ui.RenderPass("✓"))
	}
}
