package upload

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fmueller/whisper-api/internal/platform"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Store keeps per-request uploads in one scratch directory. All writes go
// through a filesystem rooted at that directory.
type Store struct {
	dir   string
	fs    *afero.BasePathFs
	newID func() string
}

// File is one stored upload. Remove it when the request is done.
type File struct {
	Original string
	Name     string
	Path     string
	Size     int64

	fs *afero.BasePathFs
}

// NewStore creates dir if needed.
func NewStore(dir string) (*Store, error) {
	abs, err := platform.EnsureDir(dir)
	if err != nil {
		return nil, fmt.Errorf("prepare upload directory: %w", err)
	}

	return &Store{
		dir:   abs,
		fs:    afero.NewBasePathFs(afero.NewOsFs(), abs).(*afero.BasePathFs),
		newID: uuid.NewString,
	}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes r under a unique name derived from the client filename.
func (s *Store) Save(original string, r io.Reader) (*File, error) {
	safe := SanitizeFilename(original)
	if safe == "" {
		safe = FallbackName
	}
	name := s.newID() + "-" + safe

	out, err := s.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	n, copyErr := io.Copy(out, r)
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = s.fs.Remove(name)
		return nil, fmt.Errorf("write upload file: %w", err)
	}

	realPath, err := s.fs.RealPath(name)
	if err != nil {
		_ = s.fs.Remove(name)
		return nil, fmt.Errorf("resolve upload path: %w", err)
	}

	return &File{
		Original: original,
		Name:     name,
		Path:     realPath,
		Size:     n,
		fs:       s.fs,
	}, nil
}

// Remove deletes the stored file if it still exists.
func (f *File) Remove() error {
	if f == nil {
		return nil
	}
	if err := f.fs.Remove(f.Name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
