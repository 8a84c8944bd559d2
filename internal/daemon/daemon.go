// Package daemon imports bookmark snapshots into a running cache.
//
// The daemon watches one directory. When a snapshot file (JSON, YAML or a
// Netscape bookmark export) appears or changes there, it waits until the file
// has been quiet for the debounce interval, loads it and bulk-imports it into
// the target folder, replacing that folder's children. Because every import
// replaces the whole folder, only the most recent write to any file matters.
//
// Failed imports are logged and reported through Config.OnImport; they never
// stop the daemon.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/marksync/marksync/internal/snapshot"
	"github.com/marksync/marksync/internal/tree"
)

// Importer is the part of the cache the daemon drives.
type Importer interface {
	BulkImportFolder(ctx context.Context, id tree.ID, folder *tree.Folder) (*tree.Folder, error)
}

// ImportFunc is called after every import attempt. nodes is the number of
// nodes placed under target; err is nil on success.
type ImportFunc func(path string, target tree.ID, nodes int, err error)

// Config holds configuration for the daemon.
type Config struct {
	// Target is the folder whose children each import replaces.
	Target tree.ID

	// DebounceInterval is how long a file must be quiet before it is
	// imported. This batches rapid writes together.
	DebounceInterval time.Duration

	// ImportExisting imports the newest snapshot already in the directory
	// when the daemon starts.
	ImportExisting bool

	// OnImport, if set, is told about every import attempt.
	OnImport ImportFunc

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Target:           tree.RootID,
		DebounceInterval: 250 * time.Millisecond,
		ImportExisting:   true,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon watches a directory and imports snapshot files into a cache.
type Daemon struct {
	importer Importer
	dir      string
	config   *Config

	watcher       *FileWatcher
	changeQueue   map[string]time.Time // path -> last event
	changeQueueMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon with the default configuration.
func New(importer Importer, dir string) (*Daemon, error) {
	return NewWithConfig(importer, dir, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(importer Importer, dir string, config *Config) (*Daemon, error) {
	if importer == nil {
		return nil, errors.New("importer cannot be nil")
	}
	if dir == "" {
		return nil, errors.New("dir cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}

	watcher, err := NewFileWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		importer:    importer,
		dir:         dir,
		config:      config,
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start imports the newest existing snapshot (if configured), starts
// watching and blocks until ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if d.config.ImportExisting {
		if err := d.ImportNewest(ctx); err != nil {
			d.config.Logger.Printf("Warning: initial import failed: %v", err)
		}
	}

	if err := d.watcher.Start(d.dir); err != nil {
		return err
	}
	d.config.Logger.Printf("Watching: %s (target folder %s)", d.dir, d.config.Target)

	d.wg.Add(2)
	go d.watchFileEvents()
	go d.processChangeQueue()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if err := d.watcher.Stop(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// ImportNewest imports the most recently modified snapshot file in the
// watched directory. An empty directory is not an error.
func (d *Daemon) ImportNewest(ctx context.Context) error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", d.dir, err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var files []candidate
	for _, e := range entries {
		if e.IsDir() || !isSnapshotFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{filepath.Join(d.dir, e.Name()), info.ModTime()})
	}
	if len(files) == 0 {
		return nil
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].path < files[j].path
		}
		return files[i].modTime.Before(files[j].modTime)
	})

	_, err = d.ImportFile(ctx, files[len(files)-1].path)
	return err
}

// ImportFile loads the snapshot at path and bulk-imports it into the target
// folder. It returns the number of nodes imported.
func (d *Daemon) ImportFile(ctx context.Context, path string) (int, error) {
	nodes, err := d.importFile(ctx, path)
	if err != nil {
		d.config.Logger.Printf("Error importing %s: %v", path, err)
	} else {
		d.config.Logger.Printf("Imported %s: %d nodes into folder %s", path, nodes, d.config.Target)
	}
	if d.config.OnImport != nil {
		d.config.OnImport(path, d.config.Target, nodes, err)
	}
	return nodes, err
}

func (d *Daemon) importFile(ctx context.Context, path string) (int, error) {
	folder, err := snapshot.Load(path)
	if err != nil {
		return 0, err
	}
	imported, err := d.importer.BulkImportFolder(ctx, d.config.Target, folder)
	if err != nil {
		return 0, fmt.Errorf("failed to import %s: %w", path, err)
	}

	nodes := 0
	imported.Traverse(func(tree.Node, *tree.Folder) { nodes++ })
	return nodes, nil
}

// watchFileEvents monitors filesystem events and queues changes.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	events := d.watcher.Events()
	errs := d.watcher.Errors()
	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			d.config.Logger.Printf("File event: %s %s", event.Op, event.Path)
			if event.Op == OpDelete {
				d.dropChange(event.Path)
				continue
			}
			d.queueChange(event.Path)

		case err, ok := <-errs:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueChange adds a file to the change queue with debouncing.
func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[path] = time.Now()
}

func (d *Daemon) dropChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	delete(d.changeQueue, path)
}

// processChangeQueue processes queued file changes with debouncing.
func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.processPendingChanges()
		}
	}
}

// processPendingChanges imports files that have been quiet for long enough,
// oldest first.
func (d *Daemon) processPendingChanges() {
	now := time.Now()

	d.changeQueueMu.Lock()
	var ready []string
	for path, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		ready = append(ready, path)
	}
	sort.Slice(ready, func(i, j int) bool {
		return d.changeQueue[ready[i]].Before(d.changeQueue[ready[j]])
	})
	for _, path := range ready {
		delete(d.changeQueue, path)
	}
	d.changeQueueMu.Unlock()

	for _, path := range ready {
		d.config.Logger.Printf("Processing change: %s", path)
		_, _ = d.ImportFile(d.ctx, path)
	}
}

// Pending returns the number of files waiting out the debounce interval.
func (d *Daemon) Pending() int {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()
	return len(d.changeQueue)
}
