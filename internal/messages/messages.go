// Package messages maps error codes to human-readable text.
//
// The cache only uses this text as the message of the errors it returns; it
// never branches on it. Callers that localize can load a TOML file whose
// [messages] table overrides any of the default English entries:
//
//	[messages]
//	Error001 = "Übergeordneter Ordner nicht gefunden"
//	Error011 = "Eintrag $1 ist nicht in diesem Ordner"
//
// Templates may reference arguments as $1..$9. Arguments that no placeholder
// consumes are appended, separated by spaces.
package messages

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Catalog looks up the text for an error code.
type Catalog interface {
	Message(code string, args ...any) string
}

// Error codes used by the cache.
const (
	CreateBookmarkParentNotFound = "Error001"
	UpdateBookmarkNotFound       = "Error002"
	UpdateBookmarkOldParent      = "Error003"
	UpdateBookmarkNewParent      = "Error004"
	ParentFolderNotFound         = "Error005"
	UpdateFolderNotFound         = "Error006"
	FolderLoop                   = "Error007"
	UpdateFolderOldParent        = "Error008"
	UpdateFolderNewParent        = "Error009"
	OrderFolderNotFound          = "Error010"
	OrderItemNotInFolder         = "Error011"
	OrderChildMissing            = "Error012"
	RemoveFolderNotFound         = "Error013"
	RemoveFolderParentNotFound   = "Error014"
)

var defaults = map[string]string{
	CreateBookmarkParentNotFound: "Parent folder of new bookmark not found",
	UpdateBookmarkNotFound:       "Bookmark to update not found",
	UpdateBookmarkOldParent:      "Current parent folder of bookmark not found",
	UpdateBookmarkNewParent:      "New parent folder of bookmark not found",
	ParentFolderNotFound:         "Parent folder not found",
	UpdateFolderNotFound:         "Folder to update not found",
	FolderLoop:                   "Detected creation of folder loop",
	UpdateFolderOldParent:        "Current parent folder of folder not found",
	UpdateFolderNewParent:        "New parent folder of folder not found",
	OrderFolderNotFound:          "Folder to order not found",
	OrderItemNotInFolder:         "Item in order is not a child of the folder: $1",
	OrderChildMissing:            "Folder child is missing from order",
	RemoveFolderNotFound:         "Folder to remove not found",
	RemoveFolderParentNotFound:   "Parent folder of folder to remove not found",
}

// Table is a Catalog backed by a code → template map.
type Table struct {
	entries map[string]string
}

// Default returns the built-in English catalog.
func Default() *Table {
	t := &Table{entries: make(map[string]string, len(defaults))}
	for code, text := range defaults {
		t.entries[code] = text
	}
	return t
}

type file struct {
	Messages map[string]string `toml:"messages"`
}

// LoadTOML returns the default catalog with the entries of the TOML file at
// path layered on top.
func LoadTOML(path string) (*Table, error) {
	var f file
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("failed to load message catalog %s: %w", path, err)
	}
	t := Default()
	for code, text := range f.Messages {
		t.entries[code] = text
	}
	return t, nil
}

// Message implements Catalog. Unknown codes render as the code itself.
func (t *Table) Message(code string, args ...any) string {
	tmpl, ok := t.entries[code]
	if !ok {
		tmpl = code
	}
	return expand(tmpl, args)
}

func expand(tmpl string, args []any) string {
	used := make([]bool, len(args))

	var b strings.Builder
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c == '$' && i+1 < len(tmpl) && tmpl[i+1] >= '1' && tmpl[i+1] <= '9' {
			n, _ := strconv.Atoi(tmpl[i+1 : i+2])
			if n <= len(args) {
				fmt.Fprint(&b, args[n-1])
				used[n-1] = true
				i++
				continue
			}
		}
		b.WriteByte(c)
	}

	for i, arg := range args {
		if !used[i] {
			fmt.Fprintf(&b, " %v", arg)
		}
	}
	return b.String()
}
