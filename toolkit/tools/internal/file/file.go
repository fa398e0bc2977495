// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// PathExists returns true if the path exists. Dangling symlinks count as existing.
func PathExists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DirExists returns true if the path exists and is a directory, following symlinks.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// IsWritable reports whether the current process can open path for writing.
func IsWritable(path string) bool {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// Write replaces the contents of path, creating parent directories as needed.
func Write(data string, path string) error {
	err := os.MkdirAll(filepath.Dir(path), os.ModePerm)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(data), 0o644)
}

// RelativeSymlink creates linkPath pointing at target using a path relative to linkPath's directory. An existing
// link at linkPath is replaced.
func RelativeSymlink(target string, linkPath string) error {
	linkDir := filepath.Dir(linkPath)
	err := os.MkdirAll(linkDir, os.ModePerm)
	if err != nil {
		return fmt.Errorf("failed to create directory (%s):\n%w", linkDir, err)
	}

	relTarget, err := filepath.Rel(linkDir, target)
	if err != nil {
		return fmt.Errorf("failed to compute relative path from (%s) to (%s):\n%w", linkDir, target, err)
	}

	err = os.Remove(linkPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove existing link (%s):\n%w", linkPath, err)
	}

	err = os.Symlink(relTarget, linkPath)
	if err != nil {
		return fmt.Errorf("failed to create symlink (%s):\n%w", linkPath, err)
	}
	return nil
}

// RootedPath places an absolute system path under root. An empty root leaves the path unchanged.
func RootedPath(root string, path string) string {
	if root == "" {
		return path
	}
	return filepath.Join(root, strings.TrimPrefix(path, "/"))
}
