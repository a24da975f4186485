// Package schedfile reads and writes schedule text files.
package schedfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrEmptyPath is returned when no schedule path is configured.
var ErrEmptyPath = errors.New("schedfile: path is empty")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load reads the schedule at path. A leading UTF-8 BOM is dropped so the
// first header is recognized.
func Load(path string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("schedfile: read %s: %w", path, err)
	}
	return string(bytes.TrimPrefix(data, utf8BOM)), nil
}

// Save writes text to path atomically via a temp file in the same directory
// and a rename. The final file mode is 0644.
func Save(path, text string) error {
	if path == "" {
		return ErrEmptyPath
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("schedfile: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".fechas-*.tmp")
	if err != nil {
		return fmt.Errorf("schedfile: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return fmt.Errorf("schedfile: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("schedfile: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("schedfile: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("schedfile: chmod temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("schedfile: rename to %s: %w", path, err)
	}
	return nil
}
