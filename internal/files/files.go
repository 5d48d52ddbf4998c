// Package files persists export artifacts to the local download
// directory. It is the collaborator the export tools hand large
// payloads to — artifacts over the inline limit are never returned in
// a tool response, only their saved location is.
package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Store writes artifacts under a fixed root directory.
type Store struct {
	root string
}

// SaveResult describes where an artifact landed.
type SaveResult struct {
	// Path is the absolute path of the written file.
	Path string
	// Bytes is the payload size.
	Bytes int
	// Auto is true when persistence was size-triggered rather than
	// requested by the caller.
	Auto bool
}

// NewStore creates a Store rooted at dir. The directory is created
// lazily on first save.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Save writes content as <surveyID>_<unixtime>.<ext> under the root
// and reports the location, size, and whether the save was automatic.
func (s *Store) Save(surveyID, format, content string, auto bool) (SaveResult, error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return SaveResult{}, fmt.Errorf("creating download directory %s: %w", s.root, err)
	}

	name := fmt.Sprintf("%s_%d.%s", surveyID, timeNow().Unix(), extension(format))
	path := filepath.Join(s.root, name)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return SaveResult{}, fmt.Errorf("writing artifact %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	return SaveResult{
		Path:  abs,
		Bytes: len(content),
		Auto:  auto,
	}, nil
}

// extension maps an export format to a file extension. Unknown formats
// fall back to .txt so the artifact is still openable.
func extension(format string) string {
	switch strings.ToLower(format) {
	case "csv", "tsv", "json", "xml":
		return strings.ToLower(format)
	case "ndjson":
		return "ndjson"
	default:
		return "txt"
	}
}
