package store

// Package store persists JSON documents that several invocations of the tool
// may rewrite: reads tolerate absent or damaged files, writes replace the
// file atomically while holding an advisory lock next to it.

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// ErrCorrupt is returned by Read when the file exists but does not hold valid
// JSON. Callers treat it as "no prior data".
var ErrCorrupt = errors.New("corrupt JSON document")

// File is a JSON document on disk guarded by an in-process mutex and a
// cross-process lock file (<path>.lock).
type File struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// New returns a File for path. Nothing is created until the first Update.
func New(path string) *File {
	return &File{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the location of the document.
func (f *File) Path() string {
	return f.path
}

// Read decodes the document into v. A missing or empty file leaves v
// untouched and returns nil; undecodable content returns ErrCorrupt.
func (f *File) Read(v any) error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, f.path, err)
	}
	return nil
}

// Update runs a read-modify-write cycle under both locks. fn receives the
// raw current content (nil when absent) and returns the value to persist.
func (f *File) Update(fn func(current []byte) (any, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", f.path, err)
	}

	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock %s: %w", f.path, err)
	}
	defer f.lock.Unlock()

	current, err := os.ReadFile(f.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", f.path, err)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(next, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", f.path, err)
	}
	return WriteAtomic(f.path, data, 0644)
}

// WriteAtomic replaces path with data: the bytes are written to a temporary
// file in the same directory, synced and renamed over the target.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	// Some filesystems refuse to fsync directories.
	_ = d.Sync()
	return nil
}
