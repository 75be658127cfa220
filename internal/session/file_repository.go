package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	sessionFileExt  = ".rbs"
	sessionFileMode = 0o600
	sessionDirMode  = 0o700
)

// FileRepository keeps one file per identity in a directory.
type FileRepository struct {
	dir string
}

// NewFileRepository returns a repository rooted at dir. The directory is
// created on first save.
func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{dir: dir}
}

// Path returns the file backing hash.
func (r *FileRepository) Path(hash string) string {
	return filepath.Join(r.dir, hash+sessionFileExt)
}

func (r *FileRepository) Load(_ context.Context, hash string) ([]byte, error) {
	b, err := os.ReadFile(r.Path(hash))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	return b, nil
}

// Save replaces the file atomically through a temp file and rename.
func (r *FileRepository) Save(_ context.Context, hash string, blob []byte) error {
	if err := os.MkdirAll(r.dir, sessionDirMode); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	path := r.Path(hash)
	f, err := os.CreateTemp(r.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(blob); err != nil {
		_ = f.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := f.Chmod(sessionFileMode); err != nil {
		_ = f.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync session file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (r *FileRepository) Delete(_ context.Context, hash string) error {
	err := os.Remove(r.Path(hash))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
