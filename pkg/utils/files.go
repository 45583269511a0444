package utils

import (
	"path/filepath"
	"strings"
)

// GetPathInfo returns the absolute path of relPath and the directory that
// holds it.
func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}
	return fullPath, filepath.Dir(fullPath), nil
}

// ReplaceExt swaps the extension of path for ext, appending ext when path
// has none.
func ReplaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// IsListing reports whether path names a VM listing rather than a source
// file.
func IsListing(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".masm")
}
