// Command marksync runs and inspects the bookmark cache.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/marksync/marksync/internal/config"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "marksync",
	Short: "In-memory bookmark cache with snapshot import and a live dashboard",
	Long: `marksync keeps a folder/bookmark tree in memory and applies the mutation
protocol of a bookmark sync client to it.

Snapshots (JSON, YAML or a browser's Netscape bookmark export) can be imported,
rendered and converted. The serve command runs the cache with a WebSocket
dashboard and a daemon that imports snapshots dropped into a directory.

Settings are read from marksync.yaml and MARKSYNC_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: ./marksync.yaml or ~/.config/marksync/marksync.yaml)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "run", Title: "Running:"},
		&cobra.Group{ID: "snapshot", Title: "Snapshots:"},
		&cobra.Group{ID: "inspect", Title: "Inspection:"},
	)
}

// loadConfig reads the configuration, letting the named flags of cmd override
// the given keys when they are set.
func loadConfig(cmd *cobra.Command, flags map[string]string) *config.Config {
	bound := make(map[string]*pflag.Flag, len(flags))
	for key, name := range flags {
		bound[key] = cmd.Flags().Lookup(name)
	}

	cfg, err := config.Load(config.Options{File: configFile, Flags: bound})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
