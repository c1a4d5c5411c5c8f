// Package io holds small durable-file helpers: atomic writes so an abrupt
// stop never leaves a half-written artifact, and input list reading.
package io

import (
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to path via temp file + rename, so readers
// either see the old complete file or the new complete file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

// WriteLinesAtomic writes one line per entry, atomically.
func WriteLinesAtomic(path string, lines []string) error {
	var buf []byte
	for _, line := range lines {
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return WriteFileAtomic(path, buf)
}
