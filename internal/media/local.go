package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/sakif/techblogs/internal/apperror"
)

var _ Sink = (*Local)(nil)

// Local stores files in one directory on disk.
type Local struct {
	dir string
}

// NewLocal creates dir if needed and returns a sink rooted there.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("media: resolving %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("media: creating upload directory: %w", err)
	}
	return &Local{dir: abs}, nil
}

// Dir returns the absolute storage directory.
func (l *Local) Dir() string {
	return l.dir
}

// Save writes r to a new file. The directory is re-created if it was
// removed while the server was running. A partial file is removed on error.
func (l *Local) Save(_ context.Context, originalName, _ string, r io.Reader) (string, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("media: creating upload directory: %w", err)
	}

	name := GenerateName(originalName)
	path := filepath.Join(l.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("media: creating %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("media: writing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("media: closing %s: %w", name, err)
	}
	return name, nil
}

// Open opens a stored file and sniffs its content type from the bytes.
func (l *Local) Open(_ context.Context, name string) (io.ReadCloser, string, error) {
	if err := checkName(name); err != nil {
		return nil, "", err
	}
	path := filepath.Join(l.dir, name)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", apperror.NotFound("file", name)
		}
		return nil, "", fmt.Errorf("media: opening %s: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		f.Close()
		return nil, "", apperror.NotFound("file", name)
	}

	contentType := DefaultContentType
	if mt, err := mimetype.DetectReader(f); err == nil && mt != nil {
		contentType = mt.String()
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("media: rewinding %s: %w", name, err)
	}
	return f, contentType, nil
}
