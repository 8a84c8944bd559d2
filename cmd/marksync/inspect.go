package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marksync/marksync/internal/cache"
	"github.com/marksync/marksync/internal/config"
	"github.com/marksync/marksync/internal/eventlog"
	"github.com/marksync/marksync/internal/filter"
	"github.com/marksync/marksync/internal/ui"
)

var checkURLCmd = &cobra.Command{
	Use:     "check-url <url>...",
	GroupID: "inspect",
	Short:   "Report whether the cache would accept bookmarks for URLs",
	Long: `Check URLs against the bookmark acceptance filter.

Accepted schemes are https, http, ftp, data and javascript, except for the
bare URL "data:". Exits with status 1 if any URL is rejected.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ui.Init(os.Stdout)

		rejected := 0
		for _, u := range args {
			if filter.AcceptsBookmark(u) {
				fmt.Printf("%s %s\n", ui.RenderPass("✓"), u)
				continue
			}
			rejected++
			fmt.Printf("%s %s\n", ui.RenderFail("✗"), u)
		}
		if rejected > 0 {
			os.Exit(1)
		}
	},
}

var labelCmd = &cobra.Command{
	Use:     "label",
	GroupID: "inspect",
	Short:   "Print the account label (username@host) from the config",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd, map[string]string{
			config.KeyAccountUsername: "username",
			config.KeyAccountURL:      "url",
		})
		c := cache.New(cache.WithAccount(cache.NewMemoryAccount(cfg.Account)))
		fmt.Println(c.Label())
	},
}

var journalCmd = &cobra.Command{
	Use:     "journal",
	GroupID: "inspect",
	Short:   "Show recent events from the SQLite journal",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd, map[string]string{config.KeyJournalPath: "path"})
		limit, _ := cmd.Flags().GetInt("limit")
		ui.Init(os.Stdout)

		if cfg.Journal.Path == "" {
			fmt.Fprintf(os.Stderr, "Error: journal.path is not set\n")
			os.Exit(1)
		}
		if _, err := os.Stat(cfg.Journal.Path); os.IsNotExist(err) {
			fmt.Printf("\n%s No journal at %s\n", ui.RenderWarn("⚠"), cfg.Journal.Path)
			fmt.Printf("   Run 'marksync serve' to record events\n\n")
			return
		}

		journal, err := eventlog.OpenJournal(cfg.Journal.Path, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening journal: %v\n", err)
			os.Exit(1)
		}
		defer journal.Close()

		ctx := context.Background()
		entries, err := journal.Recent(ctx, limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		total, err := journal.Count(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		// Oldest first, so the newest event ends up next to the prompt.
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			fmt.Printf("%s %s %s\n",
				ui.RenderMuted(e.LoggedAt.Local().Format("2006-01-02 15:04:05")),
				ui.RenderAccent(e.Event), e.Payload)
		}
		fmt.Printf("\n%d of %d events (%s)\n", len(entries), total, journal.Path())
	},
}

func init() {
	labelCmd.Flags().String("username", "", "Override account.username")
	labelCmd.Flags().String("url", "", "Override account.url")

	journalCmd.Flags().String("path", "", "Journal path (default from journal.path)")
	journalCmd.Flags().IntP("limit", "n", 20, "Number of events to show")

	rootCmd.AddCommand(checkURLCmd)
	rootCmd.AddCommand(labelCmd)
	rootCmd.AddCommand(journalCmd)
}
