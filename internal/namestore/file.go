package namestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// FileBackend keeps all keys in a single JSON object file.
type FileBackend struct {
	fs   afero.Fs
	path string

	mu     sync.Mutex
	closed bool
}

// NewFileBackend stores values in the JSON file at path on fsys.
func NewFileBackend(fsys afero.Fs, path string) *FileBackend {
	return &FileBackend{fs: fsys, path: path}
}

// Path returns the backing file path.
func (b *FileBackend) Path() string {
	return b.path
}

// OnDisk reports whether the file lives on the real filesystem.
func (b *FileBackend) OnDisk() bool {
	_, ok := b.fs.(*afero.OsFs)
	return ok
}

// Get implements Backend.
func (b *FileBackend) Get(key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", false, ErrClosed
	}

	values, err := b.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Put implements Backend. The file is replaced atomically.
func (b *FileBackend) Put(key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	values, err := b.read()
	if err != nil {
		return err
	}
	values[key] = value

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode local storage: %w", err)
	}

	if err := b.fs.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}

	tmp := b.path + ".tmp"
	if err := afero.WriteFile(b.fs, tmp, data, 0o600); err != nil {
		return fmt.Errorf("write local storage: %w", err)
	}
	if err := b.fs.Rename(tmp, b.path); err != nil {
		_ = b.fs.Remove(tmp)
		return fmt.Errorf("replace local storage: %w", err)
	}
	return nil
}

// Close implements Backend.
func (b *FileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *FileBackend) read() (map[string]string, error) {
	data, err := afero.ReadFile(b.fs, b.path)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read local storage: %w", err)
	}
	if len(data) == 0 {
		return map[string]string{}, nil
	}

	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode local storage %s: %w", b.path, err)
	}
	return values, nil
}
