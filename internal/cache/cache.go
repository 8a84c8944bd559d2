// Package cache is the in-memory mirror of a bookmark tree that a
// synchronization engine reconciles against a remote service.
//
// A Cache owns exactly one tree.Tree rooted at folder 0, an id allocator and
// the account descriptor. The engine decides what to change; the cache applies
// one structural edit at a time and guarantees that afterwards
//
//   - every id is unique,
//   - every node's ParentID names the one folder that holds it,
//   - no folder is its own ancestor,
//   - the root is never moved or removed,
//   - children keep append order unless OrderFolder was asked to change it.
//
// Every precondition is checked before the first change is made, so a failed
// call leaves the cache exactly as it was. After each successful mutation the
// index is rebuilt from scratch.
//
// Ids come from a counter that starts at 0 and only grows: ids of removed
// nodes are never handed out again.
//
// A Cache is safe for concurrent use. Mutations are serialized with each
// other and with reads.
package cache

import (
	"context"
	"log"
	"os"
	"sync"

	"github.com/marksync/marksync/internal/eventlog"
	"github.com/marksync/marksync/internal/filter"
	"github.com/marksync/marksync/internal/messages"
	"github.com/marksync/marksync/internal/tree"
)

// Event names passed to the event sink, one per operation.
const (
	EventCreate       = "CREATE"
	EventUpdate       = "UPDATE"
	EventRemove       = "REMOVE"
	EventCreateFolder = "CREATEFOLDER"
	EventUpdateFolder = "UPDATEFOLDER"
	EventOrderFolder  = "ORDERFOLDER"
	EventRemoveFolder = "REMOVEFOLDER"
	EventBulkImport   = "BULKIMPORT"
)

// BookmarkInput carries the fields of a bookmark create or update.
type BookmarkInput struct {
	ID       tree.ID `json:"id"`
	ParentID tree.ID `json:"parentId"`
	URL      string  `json:"url"`
	Title    string  `json:"title"`
}

// FolderInput carries the fields of a folder create or update.
type FolderInput struct {
	ID       tree.ID `json:"id"`
	ParentID tree.ID `json:"parentId"`
	Title    string  `json:"title"`
}

// OrderItem names one child in a requested order.
type OrderItem struct {
	Type tree.Kind `json:"type"`
	ID   tree.ID   `json:"id"`
}

// Change reports a mutation that completed successfully.
type Change struct {
	// Event is the operation's event name, e.g. EventCreateFolder.
	Event string

	// ID is the node the operation acted on or created.
	ID tree.ID

	// Nodes is the number of nodes in the cache after the change.
	Nodes int
}

// Observer is told about every successful mutation, after the cache lock has
// been released.
type Observer interface {
	Changed(c Change)
}

// Option configures a Cache.
type Option func(*Cache)

// WithSink sets the sink that receives one event per operation.
func WithSink(s eventlog.Sink) Option {
	return func(c *Cache) { c.sink = s }
}

// WithMessages sets the catalog used for error text.
func WithMessages(m messages.Catalog) Option {
	return func(c *Cache) { c.messages = m }
}

// WithAccount sets the account store.
func WithAccount(a AccountStore) Option {
	return func(c *Cache) { c.account = a }
}

// WithLogger sets the logger used to report rejected operations. The default
// writes to stderr.
func WithLogger(l *log.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithObserver registers an observer for successful mutations.
func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observers = append(c.observers, o) }
}

// Cache is the bookmark cache.
type Cache struct {
	mu        sync.RWMutex
	tree      *tree.Tree
	highestID tree.ID

	account   AccountStore
	sink      eventlog.Sink
	messages  messages.Catalog
	logger    *log.Logger
	observers []Observer
}

// New returns a cache holding only the root folder.
func New(opts ...Option) *Cache {
	c := &Cache{
		tree:      tree.New(),
		highestID: tree.RootID,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.account == nil {
		c.account = NewMemoryAccount(Account{})
	}
	if c.sink == nil {
		c.sink = eventlog.Nop
	}
	if c.messages == nil {
		c.messages = messages.Default()
	}
	if c.logger == nil {
		c.logger = log.New(os.Stderr, "[cache] ", log.LstdFlags)
	}
	return c
}

// GetBookmarksTree implements Adapter.
func (c *Cache) GetBookmarksTree(ctx context.Context) (*tree.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tree.Clone(), nil
}

// HighestID returns the last id handed out.
func (c *Cache) HighestID() tree.ID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.highestID
}

// Len returns the number of nodes in the cache, root included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tree.Len()
}

// AcceptsBookmark implements Adapter.
func (c *Cache) AcceptsBookmark(url string) bool {
	return filter.AcceptsBookmark(url)
}

// Label implements Adapter.
func (c *Cache) Label() string {
	return label(c.account.GetData())
}

// GetData returns a copy of the account descriptor.
func (c *Cache) GetData() Account {
	return c.account.GetData()
}

// SetData replaces the account descriptor.
func (c *Cache) SetData(a Account) {
	c.account.SetData(a)
}

// nextID allocates an id. Callers hold the write lock.
func (c *Cache) nextID() tree.ID {
	c.highestID++
	return c.highestID
}

// fail builds an *Error and logs it.
func (c *Cache) fail(op, code string, sentinel error, id tree.ID, args ...any) *Error {
	err := &Error{
		Op:      op,
		Code:    code,
		ID:      id,
		Message: c.messages.Message(code, args...),
		Err:     sentinel,
	}
	c.logger.Printf("%s rejected: %v", op, err)
	return err
}

// notify runs after the write lock is released. nodes must be read while it
// is still held so the count belongs to this change.
func (c *Cache) notify(event string, id tree.ID, nodes int) {
	if len(c.observers) == 0 {
		return
	}
	ch := Change{Event: event, ID: id, Nodes: nodes}
	for _, o := range c.observers {
		o.Changed(ch)
	}
}
