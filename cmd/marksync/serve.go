package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marksync/marksync/internal/cache"
	"github.com/marksync/marksync/internal/config"
	"github.com/marksync/marksync/internal/daemon"
	"github.com/marksync/marksync/internal/dashboard"
	"github.com/marksync/marksync/internal/eventlog"
	"github.com/marksync/marksync/internal/messages"
	"github.com/marksync/marksync/internal/snapshot"
	"github.com/marksync/marksync/internal/tree"
	"github.com/marksync/marksync/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "run",
	Short:   "Run the cache with the dashboard and the snapshot import daemon",
	Long: `Run a bookmark cache until interrupted.

Every cache operation is written to the event log (stderr, or a rotating file
when log.file is set) and to the SQLite journal (journal.path).

When dashboard.port is non-zero a WebSocket dashboard is served:
  ws://HOST:PORT/ws       live event, change, import and stats messages
  http://HOST:PORT/tree   current tree as JSON
  http://HOST:PORT/health health check

When watch.dir is set, snapshot files written to that directory are imported
into the watch.target folder, replacing its children.

Example usage:
  marksync serve --seed bookmarks.html
  marksync serve --watch ./drop --target 0 --port 9000`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd, map[string]string{
			config.KeyDashboardHost: "host",
			config.KeyDashboardPort: "port",
			config.KeyWatchDir:      "watch",
			config.KeyWatchTarget:   "target",
			config.KeyLogFile:       "log-file",
			config.KeyJournalPath:   "journal",
		})
		seed, _ := cmd.Flags().GetString("seed")
		ui.Init(os.Stdout)

		if err := serve(cfg, seed); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	serveCmd.Flags().String("host", "", "Dashboard bind address")
	serveCmd.Flags().IntP("port", "p", 8080, "Dashboard port (0 disables the dashboard)")
	serveCmd.Flags().StringP("watch", "w", "", "Directory to watch for snapshot files")
	serveCmd.Flags().Uint64("target", 0, "Folder that watched snapshots replace")
	serveCmd.Flags().String("log-file", "", "Write the event log to a rotating file")
	serveCmd.Flags().String("journal", "", "SQLite event journal path")
	serveCmd.Flags().String("seed", "", "Snapshot imported into the root folder at startup")

	rootCmd.AddCommand(serveCmd)
}

func serve(cfg *config.Config, seed string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eventLogger := log.New(os.Stderr, "[events] ", log.LstdFlags)
	if cfg.Log.File != "" {
		var closer io.Closer
		eventLogger, closer = eventlog.NewFileLogger(cfg.Rotate(), "[events] ")
		defer closer.Close()
	}
	sinks := []eventlog.Sink{eventlog.NewLoggerSink(eventLogger)}

	if cfg.Journal.Path != "" {
		journal, err := eventlog.OpenJournal(cfg.Journal.Path, nil)
		if err != nil {
			return err
		}
		defer journal.Close()
		sinks = append(sinks, journal)
	}

	opts := []cache.Option{cache.WithAccount(cache.NewMemoryAccount(cfg.Account))}
	if cfg.Messages.Catalog != "" {
		table, err := messages.LoadTOML(cfg.Messages.Catalog)
		if err != nil {
			return err
		}
		opts = append(opts, cache.WithMessages(table))
	}

	// The dashboard serves the cache's tree, and the cache reports to the
	// dashboard, so the source resolves the cache lazily.
	var c *cache.Cache
	var server *dashboard.Server
	var handler *dashboard.Handler
	if cfg.Dashboard.Port != 0 {
		server = dashboard.NewServer(&dashboard.Config{
			Host: cfg.Dashboard.Host,
			Port: cfg.Dashboard.Port,
			Tree: dashboard.TreeSourceFunc(func(ctx context.Context) (*tree.Tree, error) {
				return c.GetBookmarksTree(ctx)
			}),
			Logger: log.New(os.Stderr, "[dashboard] ", log.LstdFlags),
		})
		handler = dashboard.NewHandler(server, nil)
		sinks = append(sinks, handler)
		opts = append(opts, cache.WithObserver(handler))
	}
	opts = append(opts, cache.WithSink(eventlog.Multi(sinks...)))
	c = cache.New(opts...)

	if seed != "" {
		folder, err := snapshot.Load(seed)
		if err != nil {
			return err
		}
		if _, err := c.BulkImportFolder(ctx, tree.RootID, folder); err != nil {
			return fmt.Errorf("failed to import seed %s: %w", seed, err)
		}
		fmt.Printf("%s Seeded %d nodes from %s\n", ui.RenderPass("✓"), c.Len(), seed)
	}

	if server != nil {
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start dashboard: %w", err)
		}
		handler.SetNodes(c.Len())
		addr := server.GetAddr()
		fmt.Printf("Dashboard server started on http://%s\n", addr)
		fmt.Printf("WebSocket endpoint: ws://%s/ws\n", addr)
	}

	var d *daemon.Daemon
	daemonDone := make(chan error, 1)
	if cfg.Watch.Dir != "" {
		dcfg := daemon.DefaultConfig()
		dcfg.Target = cfg.WatchTarget()
		dcfg.DebounceInterval = cfg.Watch.Debounce
		if handler != nil {
			dcfg.OnImport = handler.OnImport
		}
		var err error
		d, err = daemon.NewWithConfig(c, cfg.Watch.Dir, dcfg)
		if err != nil {
			return err
		}
		go func() { daemonDone <- d.Start(ctx) }()
		fmt.Printf("Watching %s for snapshots (target folder %s)\n", cfg.Watch.Dir, cfg.WatchTarget())
	}

	fmt.Printf("Cache ready for %s\n", ui.RenderAccent(c.Label()))
	fmt.Println("\nPress Ctrl+C to stop...")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-daemonDone:
		if runErr != nil {
			runErr = fmt.Errorf("import daemon stopped: %w", runErr)
		}
	}

	fmt.Println("\nShutting down...")
	if d != nil {
		_ = d.Stop()
	}
	if server != nil {
		if err := server.Stop(); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	return runErr
}
