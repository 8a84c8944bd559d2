package tree

import (
	"errors"
	"fmt"
)

// Tree is a root folder plus an id→node index over everything below it.
//
// The index is only trustworthy after CreateIndex has run following the most
// recent structural change. Tree is not safe for concurrent use; the cache
// serializes access to the tree it owns.
type Tree struct {
	Root  *Folder
	index map[ID]Node
}

// New returns a tree holding only the root folder.
func New() *Tree {
	return FromFolder(&Folder{
		Base:  Base{ID: RootID, ParentID: NoParent},
		Title: RootTitle,
	})
}

// FromFolder wraps root in a tree and builds its index. root is not copied.
func FromFolder(root *Folder) *Tree {
	t := &Tree{Root: root}
	t.CreateIndex()
	return t
}

// CreateIndex rebuilds the id→node index by walking the whole tree from the
// root. It is idempotent.
func (t *Tree) CreateIndex() {
	index := make(map[ID]Node, len(t.index)+1)
	index[t.Root.ID] = t.Root
	t.Root.Traverse(func(node Node, _ *Folder) {
		index[IDOf(node)] = node
	})
	t.index = index
}

// FindFolder returns the folder with the given id. It reports false if the id
// is unknown or belongs to a bookmark.
func (t *Tree) FindFolder(id ID) (*Folder, bool) {
	f, ok := t.index[id].(*Folder)
	return f, ok
}

// FindBookmark returns the bookmark with the given id. It reports false if the
// id is unknown or belongs to a folder.
func (t *Tree) FindBookmark(id ID) (*Bookmark, bool) {
	b, ok := t.index[id].(*Bookmark)
	return b, ok
}

// FindItem returns the node with the given id if it is of the given kind.
func (t *Tree) FindItem(kind Kind, id ID) (Node, bool) {
	switch kind {
	case KindFolder:
		if f, ok := t.FindFolder(id); ok {
			return f, true
		}
	case KindBookmark:
		if b, ok := t.FindBookmark(id); ok {
			return b, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of t with its own index. Nothing is shared with t.
func (t *Tree) Clone() *Tree {
	return FromFolder(t.Root.Clone())
}

// Traverse walks every node below the root. See Folder.Traverse.
func (t *Tree) Traverse(visit func(node Node, parent *Folder)) {
	t.Root.Traverse(visit)
}

// Len returns the number of indexed nodes, root included.
func (t *Tree) Len() int {
	return len(t.index)
}

// HighestID returns the largest id present in the tree.
func (t *Tree) HighestID() ID {
	highest := t.Root.ID
	t.Traverse(func(node Node, _ *Folder) {
		if id := IDOf(node); id > highest {
			highest = id
		}
	})
	return highest
}

// Errors returned by Validate.
var (
	ErrDuplicateID    = errors.New("duplicate node id")
	ErrParentMismatch = errors.New("parent id does not match containing folder")
	ErrCycle          = errors.New("folder reachable from itself")
	ErrStaleIndex     = errors.New("index out of date")
)

// Validate checks the structural invariants: ids are unique, every node's
// ParentID names the folder that holds it, no folder contains itself, and the
// index matches the structure. It is meant for tests and diagnostics.
func (t *Tree) Validate() error {
	reachable := map[ID]Node{t.Root.ID: t.Root}
	onPath := map[*Folder]bool{}

	var walk func(f *Folder) error
	walk = func(f *Folder) error {
		if onPath[f] {
			return fmt.Errorf("%w: folder %s", ErrCycle, f.ID)
		}
		onPath[f] = true
		defer delete(onPath, f)

		for _, child := range f.Children {
			id := IDOf(child)
			if _, dup := reachable[id]; dup {
				return fmt.Errorf("%w: %s", ErrDuplicateID, id)
			}
			reachable[id] = child
			if ParentOf(child) != f.ID {
				return fmt.Errorf("%w: node %s has parent %s, held by %s",
					ErrParentMismatch, id, ParentOf(child), f.ID)
			}
			if sub, ok := child.(*Folder); ok {
				if err := walk(sub); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(t.Root); err != nil {
		return err
	}
	if len(reachable) != len(t.index) {
		return fmt.Errorf("%w: %d indexed, %d reachable", ErrStaleIndex, len(t.index), len(reachable))
	}
	for id, n := range reachable {
		if t.index[id] != n {
			return fmt.Errorf("%w: node %s", ErrStaleIndex, id)
		}
	}
	return nil
}

// Equal reports whether a and b have the same kind, identity, content and,
// for folders, equal children in the same order.
func Equal(a, b Node) bool {
	switch x := a.(type) {
	case *Bookmark:
		y, ok := b.(*Bookmark)
		return ok && x.Base == y.Base && x.URL == y.URL && x.Title == y.Title
	case *Folder:
		y, ok := b.(*Folder)
		if !ok || x.Base != y.Base || x.Title != y.Title || len(x.Children) != len(y.Children) {
			return false
		}
		for i := range x.Children {
			if !Equal(x.Children[i], y.Children[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
