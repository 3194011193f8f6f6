package staging

import (
	"errors"
	"io/fs"
	"path/filepath"
	"time"
)

// File is a staged file found by a scan.
type File struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Stale lists regular files in the area last modified before cutoff,
// including leftover temporary files from interrupted writes.
func (a *Area) Stale(cutoff time.Time) ([]File, error) {
	var files []File

	for _, root := range a.roots() {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// the file vanished between listing and visiting it
				if path != root && isNotExist(err) {
					return nil
				}
				return err
			}
			if d.IsDir() {
				if path != root && a.isRoot(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				if isNotExist(err) {
					return nil
				}
				return err
			}
			if info.ModTime().Before(cutoff) {
				files = append(files, File{Path: path, ModTime: info.ModTime(), Size: info.Size()})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return files, nil
}

// isRoot keeps a walk of one root from descending into the other when the
// processed directory is nested under the uploads directory (or vice versa).
func (a *Area) isRoot(path string) bool {
	return path == a.uploadsDir || path == a.processedDir
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
