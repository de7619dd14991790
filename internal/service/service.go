// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces ownership and roles, orchestrates
//	Repository (Data layer)  → reads/writes the database
//
// Services accept plain values and an auth.Identity, never *http.Request, so
// the same rules apply to every caller (HTTP handlers, cmd/blogctl, tests).
// They return apperror values; the handler translates those to status codes.
//
// DEPENDENCY INJECTION:
// Every service takes repository interfaces, not *sqlite.DB or *postgres.DB.
// Tests pass an in-memory fake (see fake_test.go).
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/blobstore"
)

// Upload is a file received alongside a form. The handler fills it from the
// multipart part; the service decides whether and where to store it.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// store pushes an upload to the blob store and returns its public URL.
func store(ctx context.Context, blobs blobstore.Store, up *Upload) (string, error) {
	url, err := blobs.Put(ctx, up.Filename, up.ContentType, up.Body, up.Size)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return "", err
		}
		return "", fmt.Errorf("uploading %q: %w", up.Filename, err)
	}
	return url, nil
}

// logOrphan records an uploaded object that no row references because the
// write after the upload failed. Objects are never deleted automatically.
func logOrphan(logger *slog.Logger, url string, err error) {
	logger.Warn("uploaded image left unreferenced",
		slog.String("image", url),
		slog.String("error", err.Error()),
	)
}

// required returns a validation error naming field when value is blank.
func required(field, label, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperror.ValidationFailed(field, label+" is required.")
	}
	return nil
}

// notFound rewrites a repository not-found error into the message the
// frontend shows, passing every other error through unchanged.
func notFound(err error, message string) error {
	if errors.Is(err, apperror.ErrNotFound) {
		return apperror.NotFoundMsg(message)
	}
	return err
}

// FlexID is an id sent either as a JSON number or as a numeric string.
// The frontend's select inputs post strings.
type FlexID int64

func (id *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return apperror.ValidationFailed("id", fmt.Sprintf("Invalid id %q.", b))
	}
	*id = FlexID(n)
	return nil
}
