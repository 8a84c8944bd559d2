package cache_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/marksync/marksync/internal/cache"
	"github.com/marksync/marksync/internal/tree"
)

func Example() {
	ctx := context.Background()
	c := cache.New(cache.WithLogger(log.New(io.Discard, "", 0)))

	a, _ := c.CreateFolder(ctx, cache.FolderInput{ParentID: tree.RootID, Title: "A"})
	b, _ := c.CreateBookmark(ctx, cache.BookmarkInput{ParentID: a, URL: "https://x", Title: "x"})
	fmt.Println(a, b)

	tr, _ := c.GetBookmarksTree(ctx)
	tr.Traverse(func(n tree.Node, parent *tree.Folder) {
		fmt.Printf("%s %s in %s\n", n.Kind(), tree.IDOf(n), parent.ID)
	})

	_ = c.RemoveFolder(ctx, a)
	fmt.Println(c.Len())
	// Output:
	// 1 2
	// folder 1 in 0
	// bookmark 2 in 1
	// 1
}

func ExampleCache_UpdateFolder_loop() {
	ctx := context.Background()
	c := cache.New(cache.WithLogger(log.New(io.Discard, "", 0)))

	f1, _ := c.CreateFolder(ctx, cache.FolderInput{ParentID: tree.RootID, Title: "F1"})
	f2, _ := c.CreateFolder(ctx, cache.FolderInput{ParentID: f1, Title: "F2"})

	err := c.UpdateFolder(ctx, cache.FolderInput{ID: f1, ParentID: f2, Title: "F1"})
	fmt.Println(errors.Is(err, cache.ErrLoopDetected))
	fmt.Println(err)
	// Output:
	// true
	// updateFolder 1: Detected creation of folder loop
}
