package ui

import (
	"fmt"

	ltree "github.com/charmbracelet/lipgloss/tree"

	"github.com/marksync/marksync/internal/tree"
)

// RenderTree draws f and its descendants. Folders show their title and id;
// bookmarks show title, URL and id.
func RenderTree(f *tree.Folder) string {
	return folderTree(f).String()
}

func folderTree(f *tree.Folder) *ltree.Tree {
	t := ltree.Root(folderLabel(f)).
		EnumeratorStyle(MutedStyle)
	for _, child := range f.Children {
		switch n := child.(type) {
		case *tree.Folder:
			t.Child(folderTree(n))
		case *tree.Bookmark:
			t.Child(bookmarkLabel(n))
		}
	}
	return t
}

func folderLabel(f *tree.Folder) string {
	return FolderStyle.Render(f.Title+"/") + " " + MutedStyle.Render(fmt.Sprintf("(%s)", f.ID))
}

func bookmarkLabel(b *tree.Bookmark) string {
	title := b.Title
	if title == "" {
		title = b.URL
	}
	return fmt.Sprintf("%s %s %s", title, RenderAccent(b.URL), MutedStyle.Render(fmt.Sprintf("(%s)", b.ID)))
}

// CountNodes returns the number of descendants of f.
func CountNodes(f *tree.Folder) (folders, bookmarks int) {
	f.Traverse(func(n tree.Node, _ *tree.Folder) {
		if n.Kind() == tree.KindFolder {
			folders++
		} else {
			bookmarks++
		}
	})
	return folders, bookmarks
}
