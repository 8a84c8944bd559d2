// Package tree provides the node model and the indexed folder tree that backs
// the bookmark cache.
//
// A tree is a single root Folder (id 0) holding an ordered list of child nodes.
// Nodes are either a *Bookmark or a *Folder; the Node interface is sealed so a
// type switch over those two types is always exhaustive.
//
// Parent linkage is a plain id (Base.ParentID), never a back-pointer. The
// id→node index is derived state: it is rebuilt from scratch by CreateIndex
// after any structural change, so it can never drift from the structure.
package tree

import "fmt"

// ID identifies a node. Ids are unique across one tree.
type ID uint64

const (
	// RootID is the reserved id of the root folder.
	RootID ID = 0

	// NoParent is the ParentID of the root folder.
	NoParent ID = ^ID(0)

	// RootTitle is the fixed title of the root folder.
	RootTitle = "root"
)

// String implements fmt.Stringer.
func (id ID) String() string {
	if id == NoParent {
		return "none"
	}
	return fmt.Sprintf("%d", uint64(id))
}

// Kind tells the two node variants apart.
type Kind string

const (
	// KindBookmark marks a *Bookmark.
	KindBookmark Kind = "bookmark"
	// KindFolder marks a *Folder.
	KindFolder Kind = "folder"
)

// Valid reports whether k names one of the two node variants.
func (k Kind) Valid() bool {
	return k == KindBookmark || k == KindFolder
}

// Base holds the identity shared by both node variants.
type Base struct {
	ID       ID
	ParentID ID
}

func (b *Base) base() *Base { return b }

// Node is a *Bookmark or a *Folder.
type Node interface {
	Kind() Kind
	base() *Base
	clone() Node
}

// Bookmark is a leaf node carrying a URL.
type Bookmark struct {
	Base
	URL   string
	Title string
}

// Kind implements Node.
func (b *Bookmark) Kind() Kind { return KindBookmark }

func (b *Bookmark) clone() Node {
	c := *b
	return &c
}

// Folder is a node owning an ordered list of children.
type Folder struct {
	Base
	Title    string
	Children []Node
}

// Kind implements Node.
func (f *Folder) Kind() Kind { return KindFolder }

func (f *Folder) clone() Node {
	return f.Clone()
}

// Clone returns a deep copy of f and its whole subtree.
func (f *Folder) Clone() *Folder {
	c := &Folder{Base: f.Base, Title: f.Title}
	if f.Children != nil {
		c.Children = make([]Node, len(f.Children))
		for i, child := range f.Children {
			c.Children[i] = child.clone()
		}
	}
	return c
}

// IDOf returns the id of n.
func IDOf(n Node) ID {
	return n.base().ID
}

// ParentOf returns the parent id of n.
func ParentOf(n Node) ID {
	return n.base().ParentID
}

// SetIdentity overwrites both the id and the parent id of n.
func SetIdentity(n Node, id, parentID ID) {
	b := n.base()
	b.ID = id
	b.ParentID = parentID
}

// SetParent overwrites the parent id of n.
func SetParent(n Node, parentID ID) {
	n.base().ParentID = parentID
}

// IndexOf returns the position of the direct child with the given id, or -1.
func (f *Folder) IndexOf(id ID) int {
	for i, child := range f.Children {
		if IDOf(child) == id {
			return i
		}
	}
	return -1
}

// Append adds n as the last child of f. It does not touch n's ParentID.
func (f *Folder) Append(n Node) {
	f.Children = append(f.Children, n)
}

// Detach removes the direct child with the given id and reports whether one
// was removed. The order of the remaining children is preserved.
func (f *Folder) Detach(id ID) bool {
	i := f.IndexOf(id)
	if i < 0 {
		return false
	}
	f.Children = append(f.Children[:i:i], f.Children[i+1:]...)
	return true
}

// FindFolder searches f's subtree, f included, for a folder with the given id.
// Unlike Tree.FindFolder it does not use an index.
func (f *Folder) FindFolder(id ID) (*Folder, bool) {
	if f.ID == id {
		return f, true
	}
	for _, child := range f.Children {
		sub, ok := child.(*Folder)
		if !ok {
			continue
		}
		if found, ok := sub.FindFolder(id); ok {
			return found, true
		}
	}
	return nil, false
}

// Contains reports whether a folder with the given id is f or one of its
// descendants.
func (f *Folder) Contains(id ID) bool {
	_, ok := f.FindFolder(id)
	return ok
}

// Traverse walks f's descendants depth-first, parents before children, calling
// visit with each node and the folder that directly holds it. f itself is not
// visited. visit runs to completion before the node's own children are walked,
// so it may rewrite the node's id and the children will see the new value
// through the parent argument.
func (f *Folder) Traverse(visit func(node Node, parent *Folder)) {
	for _, child := range f.Children {
		visit(child, f)
		if sub, ok := child.(*Folder); ok {
			sub.Traverse(visit)
		}
	}
}
