// Package fsutil provides file system utility functions.
package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// FindDirsWithFile lists the immediate subdirectories of rootPath that
// contain a file with the given name, returning their full paths sorted
// lexicographically. A non-existent root yields an empty slice, not an
// error, since an empty mod collection is a valid state.
func FindDirsWithFile(rootPath, fileName string) ([]string, error) {
	if fileName == "" {
		panic("fileName must not be empty")
	}

	entries, err := os.ReadDir(rootPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(rootPath, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, fileName)); err == nil {
			dirs = append(dirs, dir)
		}
	}

	sort.Strings(dirs)
	return dirs, nil
}

// ListFilesExcept returns the full paths of all regular files under dir,
// recursively, excluding any file whose base name matches skipName. The
// result is sorted. These are the asset and data files handed to external
// collaborators as opaque paths.
func ListFilesExcept(dir, skipName string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() != skipName {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
