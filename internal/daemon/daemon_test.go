package daemon

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/marksync/marksync/internal/cache"
	"github.com/marksync/marksync/internal/snapshot"
	"github.com/marksync/marksync/internal/tree"
)

type importResult struct {
	path  string
	nodes int
	err   error
}

// recorder collects OnImport callbacks.
type recorder struct {
	mu      sync.Mutex
	results []importResult
	ch      chan importResult
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan importResult, 16)}
}

func (r *recorder) onImport(path string, _ tree.ID, nodes int, err error) {
	res := importResult{path, nodes, err}
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
	r.ch <- res
}

func (r *recorder) wait(t *testing.T) importResult {
	t.Helper()
	select {
	case res := <-r.ch:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for import")
		return importResult{}
	}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestDaemon(t *testing.T, c *cache.Cache, dir string, rec *recorder, existing bool) *Daemon {
	t.Helper()
	d, err := NewWithConfig(c, dir, &Config{
		Target:           tree.RootID,
		DebounceInterval: 50 * time.Millisecond,
		ImportExisting:   existing,
		OnImport:         rec.onImport,
		Logger:           quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewWithConfig() failed: %v", err)
	}
	return d
}

// writeSnapshot saves a folder holding one bookmark per URL.
func writeSnapshot(t *testing.T, path string, urls ...string) {
	t.Helper()
	f := &tree.Folder{Title: "snapshot"}
	for i, u := range urls {
		f.Append(&tree.Bookmark{Base: tree.Base{ID: tree.ID(i + 1)}, URL: u, Title: u})
	}
	if err := snapshot.Save(path, f); err != nil {
		t.Fatalf("Save(%s) failed: %v", path, err)
	}
}

func rootURLs(t *testing.T, c *cache.Cache) []string {
	t.Helper()
	tr, err := c.GetBookmarksTree(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var urls []string
	for _, n := range tr.Root.Children {
		if b, ok := n.(*tree.Bookmark); ok {
			urls = append(urls, b.URL)
		}
	}
	return urls
}

func TestNewWithConfig_Validation(t *testing.T) {
	c := cache.New(cache.WithLogger(quietLogger()))

	if _, err := NewWithConfig(nil, t.TempDir(), nil); err == nil {
		t.Error("NewWithConfig(nil importer) should fail")
	}
	if _, err := NewWithConfig(c, "", nil); err == nil {
		t.Error("NewWithConfig(empty dir) should fail")
	}

	d, err := New(c, t.TempDir())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := d.Stop(); err != nil {
		t.Errorf("Stop() before Start() failed: %v", err)
	}
}

func TestImportFile(t *testing.T) {
	dir := t.TempDir()
	c := cache.New(cache.WithLogger(quietLogger()))
	rec := newRecorder()
	d := newTestDaemon(t, c, dir, rec, false)
	defer d.Stop()

	path := filepath.Join(dir, "bookmarks.yaml")
	writeSnapshot(t, path, "https://a", "https://b")

	nodes, err := d.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ImportFile() failed: %v", err)
	}
	if nodes != 2 {
		t.Errorf("ImportFile() = %d nodes, want 2", nodes)
	}
	if got := rootURLs(t, c); len(got) != 2 || got[0] != "https://a" {
		t.Errorf("root bookmarks = %v", got)
	}
	if res := rec.wait(t); res.err != nil || res.path != path {
		t.Errorf("OnImport got %+v", res)
	}
}

func TestImportFile_Errors(t *testing.T) {
	dir := t.TempDir()
	c := cache.New(cache.WithLogger(quietLogger()))
	rec := newRecorder()

	d, err := NewWithConfig(c, dir, &Config{
		Target:           99,
		DebounceInterval: time.Second,
		OnImport:         rec.onImport,
		Logger:           quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Stop()

	bad := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(bad, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := d.ImportFile(context.Background(), bad); err == nil {
		t.Error("ImportFile(broken) should fail")
	}

	good := filepath.Join(dir, "good.json")
	writeSnapshot(t, good, "https://a")
	_, err = d.ImportFile(context.Background(), good)
	if !errors.Is(err, cache.ErrFolderNotFound) {
		t.Errorf("ImportFile(missing target) error = %v, want ErrFolderNotFound", err)
	}

	if n := len(rec.results); n != 2 {
		t.Errorf("OnImport called %d times, want 2", n)
	}
}

func TestImportNewest(t *testing.T) {
	dir := t.TempDir()
	c := cache.New(cache.WithLogger(quietLogger()))
	rec := newRecorder()
	d := newTestDaemon(t, c, dir, rec, false)
	defer d.Stop()

	if err := d.ImportNewest(context.Background()); err != nil {
		t.Fatalf("ImportNewest(empty dir) failed: %v", err)
	}

	older := filepath.Join(dir, "older.json")
	newer := filepath.Join(dir, "newer.html")
	writeSnapshot(t, older, "https://old")
	writeSnapshot(t, newer, "https://new")
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := d.ImportNewest(context.Background()); err != nil {
		t.Fatalf("ImportNewest() failed: %v", err)
	}
	if got := rootURLs(t, c); len(got) != 1 || got[0] != "https://new" {
		t.Errorf("root bookmarks = %v, want [https://new]", got)
	}
}

func TestDaemon_ImportsOnWrite(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, filepath.Join(dir, "seed.json"), "https://seed")

	c := cache.New(cache.WithLogger(quietLogger()))
	rec := newRecorder()
	d := newTestDaemon(t, c, dir, rec, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	if res := rec.wait(t); res.err != nil || res.nodes != 1 {
		t.Fatalf("seed import = %+v", res)
	}

	// Wait for the watcher to be live before writing.
	deadline := time.Now().Add(2 * time.Second)
	for !d.watcher.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("watcher never started")
		}
		time.Sleep(10 * time.Millisecond)
	}

	writeSnapshot(t, filepath.Join(dir, "update.json"), "https://one", "https://two", "https://three")

	res := rec.wait(t)
	if res.err != nil || res.nodes != 3 {
		t.Fatalf("update import = %+v", res)
	}
	if got := rootURLs(t, c); len(got) != 3 {
		t.Errorf("root bookmarks = %v, want 3", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	if d.watcher.IsRunning() {
		t.Error("watcher still running after shutdown")
	}
}

func TestProcessPendingChanges_Debounce(t *testing.T) {
	dir := t.TempDir()
	c := cache.New(cache.WithLogger(quietLogger()))
	rec := newRecorder()
	d := newTestDaemon(t, c, dir, rec, false)
	defer d.Stop()

	path := filepath.Join(dir, "x.json")
	writeSnapshot(t, path, "https://x")

	d.queueChange(path)
	d.processPendingChanges()
	if d.Pending() != 1 {
		t.Fatalf("change processed before debounce interval")
	}

	time.Sleep(60 * time.Millisecond)
	d.processPendingChanges()
	if d.Pending() != 0 {
		t.Errorf("Pending() = %d after debounce interval", d.Pending())
	}
	if res := rec.wait(t); res.err != nil {
		t.Errorf("import failed: %v", res.err)
	}

	d.queueChange(path)
	d.dropChange(path)
	if d.Pending() != 0 {
		t.Error("dropChange left the file queued")
	}
}
