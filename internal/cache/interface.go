package cache

import (
	"context"

	"github.com/marksync/marksync/internal/tree"
)

// Adapter is the surface a synchronization engine drives.
//
// Mutations either succeed and leave the tree well-formed, or fail before
// touching anything. They never retry; retry policy belongs to the caller.
type Adapter interface {
	// GetBookmarksTree returns a deep copy of the cached tree. The caller may
	// mutate it freely.
	GetBookmarksTree(ctx context.Context) (*tree.Tree, error)

	// CreateBookmark appends a new bookmark to in.ParentID and returns its id.
	// in.ID is ignored.
	CreateBookmark(ctx context.Context, in BookmarkInput) (tree.ID, error)

	// UpdateBookmark sets the URL and title of bookmark in.ID and moves it to
	// the end of in.ParentID when that differs from its current parent.
	UpdateBookmark(ctx context.Context, in BookmarkInput) error

	// RemoveBookmark detaches a bookmark. Unknown ids are ignored.
	RemoveBookmark(ctx context.Context, id tree.ID) error

	// CreateFolder appends a new empty folder to in.ParentID and returns its
	// id. in.ID is ignored.
	CreateFolder(ctx context.Context, in FolderInput) (tree.ID, error)

	// UpdateFolder renames folder in.ID and re-appends it to in.ParentID.
	UpdateFolder(ctx context.Context, in FolderInput) error

	// OrderFolder replaces the children of folder id with the same children
	// in the requested order. order must be a permutation of the children.
	OrderFolder(ctx context.Context, id tree.ID, order []OrderItem) error

	// RemoveFolder detaches folder id and its subtree. The root cannot be
	// removed.
	RemoveFolder(ctx context.Context, id tree.ID) error

	// BulkImportFolder replaces the children of folder id with a relabelled
	// copy of folder's children and returns the relabelled copy.
	BulkImportFolder(ctx context.Context, id tree.ID, folder *tree.Folder) (*tree.Folder, error)

	// AcceptsBookmark reports whether a bookmark URL is cacheable at all.
	AcceptsBookmark(url string) bool

	// Label returns "{username}@{hostname}" for the configured account.
	Label() string

	GetData() Account
	SetData(Account)
}

var _ Adapter = (*Cache)(nil)
