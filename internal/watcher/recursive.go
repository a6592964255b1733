package watcher

import (
	"io/fs"
	"path/filepath"
	"strconv"
)

// collectRecursiveDirs lists root and every directory beneath it.
// Unreadable entries are skipped.
func collectRecursiveDirs(root string) ([]string, error) {
	dirs := []string{}
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs, err
}

// addRecursiveWatches adds root and its subdirectories to the handle. On
// failure the directories already added are removed again.
func (w *fsWatch) addRecursiveWatches(root string) error {
	paths, err := collectRecursiveDirs(root)
	if err != nil {
		return err
	}
	added := make([]string, 0, len(paths))
	for _, path := range paths {
		if err := w.watcher.Add(path); err != nil {
			for _, previous := range added {
				_ = w.watcher.Remove(previous)
			}
			return err
		}
		added = append(added, path)
	}
	w.logger.Debug("recursive watches added", map[string]string{
		"root":  root,
		"count": strconv.Itoa(len(added)),
	})
	return nil
}
