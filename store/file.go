package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"
)

const maxRotatingBackups = 10

// File is a Gateway storing one file per key inside a directory. Writes go
// through a temporary file and an atomic rename. The previous value of a key
// is kept as <file>.bak plus a pruned set of timestamped backups.
type File struct {
	fs  afero.Fs
	dir string

	mu      sync.Mutex
	written map[string]string
}

// NewFile returns a file gateway rooted at dir on fs.
func NewFile(fs afero.Fs, dir string) *File {
	return &File{
		fs:      fs,
		dir:     dir,
		written: make(map[string]string),
	}
}

// Dir returns the directory holding the key files.
func (f *File) Dir() string {
	return f.dir
}

// Path returns the file that stores key.
func (f *File) Path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".txt")
}

func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	data, err := afero.ReadFile(f.fs, f.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return string(data), true, nil
}

func (f *File) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.Path(key)
	if err := f.fs.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := f.backup(path); err != nil {
		return fmt.Errorf("backup %s: %w", key, err)
	}

	tmp, err := afero.TempFile(f.fs, f.dir, filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = f.fs.Remove(tmpName)
	}()

	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := f.fs.Rename(tmpName, path); err != nil {
		return err
	}

	f.written[path] = checksum([]byte(value))
	return nil
}

func (f *File) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.Path(key)
	if err := f.backup(path); err != nil {
		return fmt.Errorf("backup %s: %w", key, err)
	}
	if err := f.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	f.written[path] = ""
	return nil
}

// OwnWrite reports whether the current content of path is exactly what this
// gateway last wrote there (or its absence, after a Remove). Watchers use it
// to skip events caused by our own writes.
func (f *File) OwnWrite(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	sum, ok := f.written[path]
	if !ok {
		return false
	}
	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		return errors.Is(err, os.ErrNotExist) && sum == ""
	}
	return sum != "" && checksum(data) == sum
}

// Backups returns the rotating backups of key, oldest first.
func (f *File) Backups(key string) ([]string, error) {
	files, err := afero.Glob(f.fs, f.Path(key)+".bak.*")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (f *File) backup(path string) error {
	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	if err := afero.WriteFile(f.fs, path+".bak", data, 0o644); err != nil {
		return err
	}

	timestamp := time.Now().UTC().Format("20060102-150405.000000000")
	rotatingPath := fmt.Sprintf("%s.bak.%s", path, timestamp)
	if err := afero.WriteFile(f.fs, rotatingPath, data, 0o644); err != nil {
		return err
	}

	return f.pruneRotatingBackups(path)
}

func (f *File) pruneRotatingBackups(path string) error {
	files, err := afero.Glob(f.fs, path+".bak.*")
	if err != nil {
		return err
	}
	if len(files) <= maxRotatingBackups {
		return nil
	}

	sort.Strings(files)
	toDelete := files[:len(files)-maxRotatingBackups]
	for _, old := range toDelete {
		if err := f.fs.Remove(old); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
