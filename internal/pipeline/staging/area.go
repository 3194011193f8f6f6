package staging

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	dirMode    = 0o755
	tempPrefix = ".staging-"
)

var (
	// ErrInvalidName is returned for names that are not a single path element.
	ErrInvalidName = errors.New("staging: invalid file name")
	// ErrOutsideArea is returned for paths that do not belong to the staging area.
	ErrOutsideArea = errors.New("staging: path outside staging area")
	// ErrMissing is returned when a staged file is no longer on disk.
	ErrMissing = fmt.Errorf("staging: file missing: %w", fs.ErrNotExist)
)

// Area is a pair of directories holding uploaded and processed files.
type Area struct {
	uploadsDir   string
	processedDir string
	locks        *keyedMutex
}

// New resolves both directories to absolute paths and creates them if absent.
func New(uploadsDir, processedDir string) (*Area, error) {
	if processedDir == "" {
		processedDir = uploadsDir
	}

	up, err := filepath.Abs(uploadsDir)
	if err != nil {
		return nil, fmt.Errorf("resolve uploads dir: %w", err)
	}
	pr, err := filepath.Abs(processedDir)
	if err != nil {
		return nil, fmt.Errorf("resolve processed dir: %w", err)
	}

	for _, dir := range []string{up, pr} {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return nil, fmt.Errorf("create staging dir: %w", err)
		}
	}

	return &Area{
		uploadsDir:   up,
		processedDir: pr,
		locks:        newKeyedMutex(),
	}, nil
}

// UploadsDir returns the absolute incoming uploads directory.
func (a *Area) UploadsDir() string {
	return a.uploadsDir
}

// ProcessedDir returns the absolute processed outputs directory.
func (a *Area) ProcessedDir() string {
	return a.processedDir
}

// Lock serializes callers working on the same file name and returns the unlock func.
func (a *Area) Lock(name string) func() {
	return a.locks.Lock(name)
}

// WriteUpload stores r as uploads/<name> and returns the absolute path and size.
func (a *Area) WriteUpload(name string, r io.Reader) (string, int64, error) {
	if err := checkName(name); err != nil {
		return "", 0, err
	}

	var n int64
	path, err := writeAtomic(a.uploadsDir, name, func(w io.Writer) error {
		var err error
		n, err = io.Copy(w, r)
		return err
	})
	if err != nil {
		return "", 0, err
	}

	return path, n, nil
}

// WriteProcessed stores the output of write as processed/[subdir/]<name>.
func (a *Area) WriteProcessed(subdir, name string, write func(w io.Writer) error) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}

	dir := a.processedDir
	if subdir != "" {
		if err := checkName(subdir); err != nil {
			return "", err
		}
		dir = filepath.Join(dir, subdir)
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return "", fmt.Errorf("create output dir: %w", err)
		}
	}

	return writeAtomic(dir, name, write)
}

// Open opens a staged file for reading. A missing file yields ErrMissing.
func (a *Area) Open(path string) (*os.File, fs.FileInfo, error) {
	if !a.contains(path) {
		return nil, nil, ErrOutsideArea
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrMissing
		}
		return nil, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, nil, ErrMissing
	}

	return f, info, nil
}

// Remove deletes a staged file and prunes its parent when it is an empty
// per-task directory. Removing a file that is already gone is not an error.
func (a *Area) Remove(path string) error {
	if !a.contains(path) {
		return ErrOutsideArea
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	parent := filepath.Dir(path)
	if parent != a.uploadsDir && parent != a.processedDir {
		// fails while the directory still has entries
		_ = os.Remove(parent)
	}

	return nil
}

func (a *Area) roots() []string {
	if a.uploadsDir == a.processedDir {
		return []string{a.uploadsDir}
	}
	return []string{a.uploadsDir, a.processedDir}
}

func (a *Area) contains(path string) bool {
	if !filepath.IsAbs(path) {
		return false
	}
	clean := filepath.Clean(path)
	for _, root := range a.roots() {
		rel, err := filepath.Rel(root, clean)
		if err != nil || rel == "." {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func writeAtomic(dir, name string, write func(w io.Writer) error) (string, error) {
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if err := write(tmp); err != nil {
		cleanup()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}

	path := filepath.Join(dir, name)
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}

	return path, nil
}
