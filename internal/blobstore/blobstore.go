// Package blobstore uploads user images (avatars and featured images) and
// returns the public URL the frontend renders.
package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/blog-platform/internal/apperror"
)

// DefaultMaxBytes is the upload limit when none is configured.
const DefaultMaxBytes = 5 << 20

// Store puts one object and returns its public URL.
type Store interface {
	Put(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error)
}

// Guarded wraps a Store with the checks every upload must pass: raster
// image types only, and no more than maxBytes.
type Guarded struct {
	inner    Store
	maxBytes int64
}

func NewGuarded(inner Store, maxBytes int64) *Guarded {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Guarded{inner: inner, maxBytes: maxBytes}
}

// allowedTypes are the image types a browser renders without running
// script. SVG is excluded: it is served from the API origin.
var allowedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

func (g *Guarded) Put(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error) {
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !allowedTypes[mediaType] {
		return "", apperror.ValidationFailed("file", "Only PNG, JPEG, GIF or WebP images are allowed.")
	}
	if !allowedTypes[extensionType(filename)] {
		return "", apperror.ValidationFailed("file", "File extension does not match an allowed image type.")
	}
	if size > g.maxBytes {
		return "", g.tooLarge()
	}

	// The declared size comes from the client. Read at most maxBytes+1 so an
	// oversize body is rejected before anything reaches the backend.
	body, err := io.ReadAll(io.LimitReader(r, g.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(body)) > g.maxBytes {
		return "", g.tooLarge()
	}
	return g.inner.Put(ctx, filename, mediaType, bytes.NewReader(body), int64(len(body)))
}

func (g *Guarded) tooLarge() error {
	return apperror.ValidationFailed("file", fmt.Sprintf("Image must be %d bytes or smaller.", g.maxBytes))
}

func extensionType(filename string) string {
	t, _, _ := mime.ParseMediaType(mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))))
	return t
}

// objectName returns a collision-free name that keeps the original
// extension, e.g. "cv37rs3pp9olc6atsptg.png".
func objectName(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return xid.New().String() + ext
}
