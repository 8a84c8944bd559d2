// Package snapshot reads and writes whole bookmark trees as files.
//
// Three formats are supported: the JSON and YAML forms of tree.Wire, and the
// Netscape bookmark file that browsers import and export. A snapshot is the
// usual payload of a bulk import, so ids in a snapshot only need to be unique
// within the file; the cache relabels every node on import.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marksync/marksync/internal/tree"
)

// Format names a snapshot encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHTML Format = "html"
)

// ErrUnknownFormat is returned for paths or format names that map to no codec.
var ErrUnknownFormat = errors.New("unknown snapshot format")

// FormatFor picks a format from the file extension of path.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".html", ".htm":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// ParseFormat validates a format name such as "yaml".
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatJSON, FormatYAML, FormatHTML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, name)
}

// Read decodes one snapshot from r. The top-level node must be a folder.
func Read(r io.Reader, format Format) (*tree.Folder, error) {
	switch format {
	case FormatJSON:
		var w tree.Wire
		if err := json.NewDecoder(r).Decode(&w); err != nil {
			return nil, fmt.Errorf("failed to decode JSON snapshot: %w", err)
		}
		return tree.FolderFromWire(&w)
	case FormatYAML:
		var w tree.Wire
		if err := yaml.NewDecoder(r).Decode(&w); err != nil {
			return nil, fmt.Errorf("failed to decode YAML snapshot: %w", err)
		}
		return tree.FolderFromWire(&w)
	case FormatHTML:
		return ReadHTML(r)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
}

// Write encodes f and its subtree to w.
func Write(w io.Writer, format Format, f *tree.Folder) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(tree.ToWire(f)); err != nil {
			return fmt.Errorf("failed to encode JSON snapshot: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tree.ToWire(f)); err != nil {
			return fmt.Errorf("failed to encode YAML snapshot: %w", err)
		}
		return enc.Close()
	case FormatHTML:
		return WriteHTML(w, f)
	}
	return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
}

// Load reads the snapshot file at path, choosing the codec by extension.
func Load(path string) (*tree.Folder, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	folder, err := Read(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return folder, nil
}

// Save writes folder to path, choosing the codec by extension. The file is
// written to a temporary name first and renamed into place, so a watcher
// never sees a partial snapshot.
func Save(path string, folder *tree.Folder) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, format, folder); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename snapshot into place: %w", err)
	}
	return nil
}
