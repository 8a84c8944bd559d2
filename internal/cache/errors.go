package cache

import (
	"errors"
	"fmt"

	"github.com/marksync/marksync/internal/tree"
)

// Error categories. Every error returned by a cache mutation matches exactly
// one of these with errors.Is.
var (
	// ErrNotFound is the category of errors raised when a node an operation
	// requires is absent from the cache.
	ErrNotFound = errors.New("not found")

	// ErrLoopDetected is returned when a move would make a folder its own
	// ancestor.
	ErrLoopDetected = errors.New("folder loop detected")

	// ErrOrderValidation is the category of errors raised when a requested
	// child order is not a permutation of the folder's children.
	ErrOrderValidation = errors.New("order validation failed")
)

// Specific conditions. Each wraps its category.
var (
	ErrParentNotFound    = fmt.Errorf("parent folder %w", ErrNotFound)
	ErrBookmarkNotFound  = fmt.Errorf("bookmark %w", ErrNotFound)
	ErrFolderNotFound    = fmt.Errorf("folder %w", ErrNotFound)
	ErrOldParentNotFound = fmt.Errorf("current parent folder %w", ErrNotFound)
	ErrNewParentNotFound = fmt.Errorf("new parent folder %w", ErrNotFound)

	ErrItemNotInFolder       = fmt.Errorf("%w: item not in folder", ErrOrderValidation)
	ErrChildMissingFromOrder = fmt.Errorf("%w: child missing from order", ErrOrderValidation)
	ErrOrderSetMismatch      = fmt.Errorf("%w: order and children differ", ErrOrderValidation)
)

// Error describes a rejected cache operation. It matches its condition and
// category sentinels with errors.Is:
//
//	if errors.Is(err, cache.ErrNotFound) {
//	    // the engine's view of the tree is stale
//	}
type Error struct {
	// Op is the operation that failed, e.g. "updateFolder".
	Op string

	// Code is the message catalog code used for Message.
	Code string

	// ID is the id the operation was asked to act on.
	ID tree.ID

	// Item is the offending order entry for ErrItemNotInFolder and
	// ErrChildMissingFromOrder.
	Item *OrderItem

	// IDs holds the ids that differ between the requested order and the
	// folder's children for ErrOrderSetMismatch.
	IDs []tree.ID

	// Message is the human-readable text from the message catalog.
	Message string

	// Err is the condition sentinel.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.ID, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means a required node was absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsLoop reports whether err is a rejected folder move that would have
// created a cycle.
func IsLoop(err error) bool {
	return errors.Is(err, ErrLoopDetected)
}

// IsOrderValidation reports whether err is a rejected reordering.
func IsOrderValidation(err error) bool {
	return errors.Is(err, ErrOrderValidation)
}
