package main

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/marksync/marksync/internal/cache"
	"github.com/marksync/marksync/internal/snapshot"
	"github.com/marksync/marksync/internal/tree"
)

func TestImportInto(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	base := &tree.Folder{Title: "base"}
	base.Append(&tree.Folder{Base: tree.Base{ID: 7}, Title: "Work"})
	base.Append(&tree.Bookmark{Base: tree.Base{ID: 8}, URL: "https://example.com"})
	basePath := filepath.Join(dir, "base.json")
	if err := snapshot.Save(basePath, base); err != nil {
		t.Fatal(err)
	}

	work := &tree.Folder{Title: "work"}
	work.Append(&tree.Bookmark{Base: tree.Base{ID: 1}, URL: "https://go.dev"})
	workPath := filepath.Join(dir, "work.html")
	if err := snapshot.Save(workPath, work); err != nil {
		t.Fatal(err)
	}

	c := cache.New(cache.WithLogger(log.New(io.Discard, "", 0)))
	if _, err := importInto(ctx, c, basePath, tree.RootID); err != nil {
		t.Fatalf("importInto(base) failed: %v", err)
	}
	// Work is relabeled to 1 by the first import.
	imported, err := importInto(ctx, c, workPath, 1)
	if err != nil {
		t.Fatalf("importInto(work) failed: %v", err)
	}
	if len(imported.Children) != 1 {
		t.Fatalf("imported %d children, want 1", len(imported.Children))
	}

	tr, err := c.GetBookmarksTree(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	f, ok := tr.FindFolder(1)
	if !ok || f.Title != "Work" || len(f.Children) != 1 {
		t.Fatalf("folder 1 = %+v", f)
	}
	if b, ok := f.Children[0].(*tree.Bookmark); !ok || b.URL != "https://go.dev" || b.ID != 3 {
		t.Errorf("imported bookmark = %+v", f.Children[0])
	}

	if _, err := importInto(ctx, c, workPath, 42); !errors.Is(err, cache.ErrFolderNotFound) {
		t.Errorf("importInto(missing folder) error = %v, want ErrFolderNotFound", err)
	}
	if _, err := importInto(ctx, c, filepath.Join(dir, "missing.json"), tree.RootID); err == nil {
		t.Error("importInto(missing file) should fail")
	}
}
