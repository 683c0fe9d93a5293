// Package filex holds the local-filesystem helpers used for multipart intake:
// the staging directory and the files saved into it before upload.
package filex

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// EnsureSubdDir creates dirName (relative to the working directory unless
// absolute) and returns its absolute path.
func EnsureSubdDir(dirName string) (string, error) {
	dir := dirName
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, dirName)
	}

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// SaveToDir copies r into a new uniquely named file inside dir. The file
// name keeps the extension of originalName so the blob store can infer a
// content type.
func SaveToDir(dir, originalName string, r io.Reader) (string, error) {
	f, err := os.CreateTemp(dir, "upload-*"+filepath.Ext(originalName))
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write %s: %w", f.Name(), err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close %s: %w", f.Name(), err)
	}

	return f.Name(), nil
}

// Remove deletes path. A missing file is not an error.
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
