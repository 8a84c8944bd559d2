package cache

import (
	"context"
	"encoding/json"
	"maps"
	"slices"

	"github.com/marksync/marksync/internal/messages"
	"github.com/marksync/marksync/internal/tree"
)

// CreateBookmark implements Adapter.
func (c *Cache) CreateBookmark(ctx context.Context, in BookmarkInput) (tree.ID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.sink.Log(EventCreate, in)

	c.mu.Lock()
	parent, ok := c.tree.FindFolder(in.ParentID)
	if !ok {
		c.mu.Unlock()
		return 0, c.fail("createBookmark", messages.CreateBookmarkParentNotFound, ErrParentNotFound, in.ParentID)
	}

	id := c.nextID()
	parent.Append(&tree.Bookmark{
		Base:  tree.Base{ID: id, ParentID: parent.ID},
		URL:   in.URL,
		Title: in.Title,
	})
	c.tree.CreateIndex()
	nodes := c.tree.Len()
	c.mu.Unlock()

	c.notify(EventCreate, id, nodes)
	return id, nil
}

// UpdateBookmark implements Adapter.
func (c *Cache) UpdateBookmark(ctx context.Context, in BookmarkInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sink.Log(EventUpdate, in)

	c.mu.Lock()
	b, ok := c.tree.FindBookmark(in.ID)
	if !ok {
		c.mu.Unlock()
		return c.fail("updateBookmark", messages.UpdateBookmarkNotFound, ErrBookmarkNotFound, in.ID)
	}

	var oldParent, newParent *tree.Folder
	moving := b.ParentID != in.ParentID
	if moving {
		if oldParent, ok = c.tree.FindFolder(b.ParentID); !ok {
			c.mu.Unlock()
			return c.fail("updateBookmark", messages.UpdateBookmarkOldParent, ErrOldParentNotFound, in.ID)
		}
		if newParent, ok = c.tree.FindFolder(in.ParentID); !ok {
			c.mu.Unlock()
			return c.fail("updateBookmark", messages.UpdateBookmarkNewParent, ErrNewParentNotFound, in.ID)
		}
	}

	b.URL = in.URL
	b.Title = in.Title
	if moving {
		oldParent.Detach(b.ID)
		newParent.Append(b)
		b.ParentID = newParent.ID
	}
	c.tree.CreateIndex()
	nodes := c.tree.Len()
	c.mu.Unlock()

	c.notify(EventUpdate, in.ID, nodes)
	return nil
}

// RemoveBookmark implements Adapter.
func (c *Cache) RemoveBookmark(ctx context.Context, id tree.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sink.Log(EventRemove, map[string]tree.ID{"id": id})

	c.mu.Lock()
	b, ok := c.tree.FindBookmark(id)
	if !ok {
		c.mu.Unlock()
		return nil
	}
	parent, ok := c.tree.FindFolder(b.ParentID)
	if !ok {
		c.mu.Unlock()
		return nil
	}
	parent.Detach(id)
	c.tree.CreateIndex()
	nodes := c.tree.Len()
	c.mu.Unlock()

	c.notify(EventRemove, id, nodes)
	return nil
}

// CreateFolder implements Adapter.
func (c *Cache) CreateFolder(ctx context.Context, in FolderInput) (tree.ID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.sink.Log(EventCreateFolder, in)

	c.mu.Lock()
	parent, ok := c.tree.FindFolder(in.ParentID)
	if !ok {
		c.mu.Unlock()
		return 0, c.fail("createFolder", messages.ParentFolderNotFound, ErrParentNotFound, in.ParentID)
	}

	id := c.nextID()
	parent.Append(&tree.Folder{
		Base:  tree.Base{ID: id, ParentID: parent.ID},
		Title: in.Title,
	})
	c.tree.CreateIndex()
	nodes := c.tree.Len()
	c.mu.Unlock()

	c.notify(EventCreateFolder, id, nodes)
	return id, nil
}

// UpdateFolder implements Adapter. The folder is re-appended to its new
// parent even when the parent does not change, so a rename moves the folder
// to the end of its siblings.
func (c *Cache) UpdateFolder(ctx context.Context, in FolderInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sink.Log(EventUpdateFolder, in)

	c.mu.Lock()
	f, ok := c.tree.FindFolder(in.ID)
	if !ok {
		c.mu.Unlock()
		return c.fail("updateFolder", messages.UpdateFolderNotFound, ErrFolderNotFound, in.ID)
	}
	oldParent, ok := c.tree.FindFolder(f.ParentID)
	if !ok {
		c.mu.Unlock()
		return c.fail("updateFolder", messages.UpdateFolderOldParent, ErrOldParentNotFound, in.ID)
	}
	newParent, ok := c.tree.FindFolder(in.ParentID)
	if !ok {
		c.mu.Unlock()
		return c.fail("updateFolder", messages.UpdateFolderNewParent, ErrNewParentNotFound, in.ID)
	}
	if f.Contains(newParent.ID) {
		c.mu.Unlock()
		return c.fail("updateFolder", messages.FolderLoop, ErrLoopDetected, in.ID)
	}

	oldParent.Detach(f.ID)
	newParent.Append(f)
	f.Title = in.Title
	f.ParentID = newParent.ID
	c.tree.CreateIndex()
	nodes := c.tree.Len()
	c.mu.Unlock()

	c.notify(EventUpdateFolder, in.ID, nodes)
	return nil
}

// OrderFolder implements Adapter.
func (c *Cache) OrderFolder(ctx context.Context, id tree.ID, order []OrderItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sink.Log(EventOrderFolder, map[string]any{"id": id, "order": order})

	c.mu.Lock()
	f, ok := c.tree.FindFolder(id)
	if !ok {
		c.mu.Unlock()
		return c.fail("orderFolder", messages.OrderFolderNotFound, ErrFolderNotFound, id)
	}

	resolved := make([]tree.Node, 0, len(order))
	for _, item := range order {
		n, ok := c.tree.FindItem(item.Type, item.ID)
		if !ok || tree.ParentOf(n) != f.ID {
			c.mu.Unlock()
			err := c.fail("orderFolder", messages.OrderItemNotInFolder, ErrItemNotInFolder, id, encode(item))
			err.Item = &item
			return err
		}
		resolved = append(resolved, n)
	}

	for _, child := range f.Children {
		item := OrderItem{Type: child.Kind(), ID: tree.IDOf(child)}
		if !slices.Contains(order, item) {
			c.mu.Unlock()
			err := c.fail("orderFolder", messages.OrderChildMissing, ErrChildMissingFromOrder, id, encode(item))
			err.Item = &item
			return err
		}
	}

	if len(order) != len(f.Children) {
		diff := countDiff(order, f.Children)
		c.mu.Unlock()
		err := c.fail("orderFolder", messages.OrderChildMissing, ErrOrderSetMismatch, id, encode(diff))
		err.IDs = diff
		return err
	}

	f.Children = resolved
	c.tree.CreateIndex()
	nodes := c.tree.Len()
	c.mu.Unlock()

	c.notify(EventOrderFolder, id, nodes)
	return nil
}

// RemoveFolder implements Adapter. Unlike RemoveBookmark it reports unknown
// ids, but the tree is left untouched either way.
func (c *Cache) RemoveFolder(ctx context.Context, id tree.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sink.Log(EventRemoveFolder, map[string]tree.ID{"id": id})

	c.mu.Lock()
	f, ok := c.tree.FindFolder(id)
	if !ok {
		c.mu.Unlock()
		return c.fail("removeFolder", messages.RemoveFolderNotFound, ErrFolderNotFound, id)
	}
	parent, ok := c.tree.FindFolder(f.ParentID)
	if !ok {
		c.mu.Unlock()
		return c.fail("removeFolder", messages.RemoveFolderParentNotFound, ErrParentNotFound, id)
	}
	parent.Detach(id)
	c.tree.CreateIndex()
	nodes := c.tree.Len()
	c.mu.Unlock()

	c.notify(EventRemoveFolder, id, nodes)
	return nil
}

// BulkImportFolder implements Adapter. folder is not modified; every node in
// the copy gets a fresh id, in traversal order.
func (c *Cache) BulkImportFolder(ctx context.Context, id tree.ID, folder *tree.Folder) (*tree.Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if folder == nil {
		folder = &tree.Folder{}
	}
	c.sink.Log(EventBulkImport, map[string]any{"id": id, "folder": tree.ToWire(folder)})

	c.mu.Lock()
	target, ok := c.tree.FindFolder(id)
	if !ok {
		c.mu.Unlock()
		return nil, c.fail("bulkImportFolder", messages.ParentFolderNotFound, ErrFolderNotFound, id)
	}

	imported := folder.Clone()
	imported.ID = target.ID
	imported.ParentID = target.ParentID
	imported.Traverse(func(n tree.Node, parent *tree.Folder) {
		tree.SetIdentity(n, c.nextID(), parent.ID)
	})

	target.Children = imported.Children
	c.tree.CreateIndex()
	out := imported.Clone()
	nodes := c.tree.Len()
	c.mu.Unlock()

	c.notify(EventBulkImport, id, nodes)
	return out, nil
}

// countDiff returns the ids whose number of occurrences differs between
// order and children, in ascending order.
func countDiff(order []OrderItem, children []tree.Node) []tree.ID {
	counts := make(map[tree.ID]int)
	for _, item := range order {
		counts[item.ID]++
	}
	for _, child := range children {
		counts[tree.IDOf(child)]--
	}
	var ids []tree.ID
	for _, id := range slices.Sorted(maps.Keys(counts)) {
		if counts[id] != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func encode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "?"
	}
	return string(b)
}
