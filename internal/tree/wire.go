package tree

import (
	"errors"
	"fmt"
)

// Wire is the serialized form of a node, shared by the JSON and YAML codecs.
// ParentID is omitted for the root.
type Wire struct {
	Type     Kind    `json:"type" yaml:"type"`
	ID       ID      `json:"id" yaml:"id"`
	ParentID *ID     `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	Title    string  `json:"title,omitempty" yaml:"title,omitempty"`
	URL      string  `json:"url,omitempty" yaml:"url,omitempty"`
	Children []*Wire `json:"children,omitempty" yaml:"children,omitempty"`
}

// ErrBadWire is returned by FromWire for documents that do not describe a node.
var ErrBadWire = errors.New("invalid node document")

// ToWire converts n and its subtree to wire form.
func ToWire(n Node) *Wire {
	w := &Wire{Type: n.Kind(), ID: IDOf(n)}
	if p := ParentOf(n); p != NoParent {
		w.ParentID = &p
	}
	switch x := n.(type) {
	case *Bookmark:
		w.Title = x.Title
		w.URL = x.URL
	case *Folder:
		w.Title = x.Title
		w.Children = make([]*Wire, len(x.Children))
		for i, child := range x.Children {
			w.Children[i] = ToWire(child)
		}
	}
	return w
}

// FromWire converts a wire document back into a node. A document without a
// type is a folder when it has children or no URL, and a bookmark otherwise.
// Missing parent ids are filled in from the enclosing folder; a top-level
// node without one gets NoParent.
func FromWire(w *Wire) (Node, error) {
	return fromWire(w, NoParent)
}

func fromWire(w *Wire, parent ID) (Node, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: null node", ErrBadWire)
	}
	if w.ParentID != nil {
		parent = *w.ParentID
	}

	kind := w.Type
	if kind == "" {
		kind = KindBookmark
		if w.Children != nil || w.URL == "" {
			kind = KindFolder
		}
	}

	switch kind {
	case KindBookmark:
		if len(w.Children) > 0 {
			return nil, fmt.Errorf("%w: bookmark %s has children", ErrBadWire, w.ID)
		}
		return &Bookmark{Base: Base{ID: w.ID, ParentID: parent}, URL: w.URL, Title: w.Title}, nil
	case KindFolder:
		f := &Folder{Base: Base{ID: w.ID, ParentID: parent}, Title: w.Title}
		for _, cw := range w.Children {
			child, err := fromWire(cw, w.ID)
			if err != nil {
				return nil, err
			}
			f.Children = append(f.Children, child)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrBadWire, w.Type)
	}
}

// FolderFromWire is FromWire for documents that must describe a folder.
func FolderFromWire(w *Wire) (*Folder, error) {
	n, err := FromWire(w)
	if err != nil {
		return nil, err
	}
	f, ok := n.(*Folder)
	if !ok {
		return nil, fmt.Errorf("%w: top-level node is a %s", ErrBadWire, n.Kind())
	}
	return f, nil
}
