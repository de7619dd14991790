package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps uploads in a local directory that the server exposes
// under /uploads/.
type FileStore struct {
	dir     string
	baseURL string
}

// NewFileStore creates dir if needed. baseURL is the public origin of the
// server, e.g. "http://localhost:3000".
func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: creating upload dir: %w", err)
	}
	return &FileStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir is the directory served at /uploads/.
func (s *FileStore) Dir() string {
	return s.dir
}

// Put writes to a temp file and renames it into place, so a failed upload
// never leaves a partial image behind under its final name.
func (s *FileStore) Put(ctx context.Context, filename, _ string, r io.Reader, _ int64) (string, error) {
	name := objectName(filename)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("blobstore: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, readerWithContext(ctx, r)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("blobstore: writing upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("blobstore: closing upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("blobstore: storing upload: %w", err)
	}

	return s.baseURL + "/uploads/" + name, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
