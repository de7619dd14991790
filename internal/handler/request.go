package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/auth"
	"github.com/sakif/blog-platform/internal/service"
)

const (
	// maxJSONBody caps plain JSON request bodies.
	maxJSONBody = 1 << 20
	// multipartMemory is how much of a multipart form stays in memory before
	// parts spill to temp files.
	multipartMemory = 1 << 20
	// formOverhead is added to the upload limit for the "data" part and
	// multipart framing.
	formOverhead = 1 << 20
)

// decodeJSON reads a JSON body into dst. Any decode failure is a 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ValidationFailed("body", "Request body is too large.")
		}
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperror.ValidationFailed("body", "Invalid JSON body.")
	}
	return nil
}

// pathID parses a numeric chi URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed(name, fmt.Sprintf("Invalid %s %q.", name, raw))
	}
	return id, nil
}

// caller returns the identity the Gate put in the context. Routes that call
// it are always behind Authenticate or RequireAdmin.
func caller(r *http.Request) (auth.Identity, error) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		return auth.Identity{}, apperror.Unauthorized(auth.MsgNoToken)
	}
	return id, nil
}

// multipartForm is a parsed "data" + "file" form as the frontend sends it:
// the fields are a JSON document in the "data" part and the optional image
// is the "file" part.
type multipartForm struct {
	upload *service.Upload
	file   multipart.File
	form   *multipart.Form
}

// Close releases the open file and any temp files the parser created.
func (f *multipartForm) Close() {
	if f.file != nil {
		f.file.Close()
	}
	if f.form != nil {
		f.form.RemoveAll()
	}
}

// parseMultipart decodes the "data" part into data and opens the "file"
// part when present. The caller must Close the result.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxUpload int64, data any) (*multipartForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperror.ValidationFailed("file",
				fmt.Sprintf("File is too large (max %d bytes).", maxUpload))
		}
		return nil, apperror.ValidationFailed("data", "Invalid multipart form.")
	}
	f := &multipartForm{form: r.MultipartForm}

	raw := strings.TrimSpace(r.FormValue("data"))
	if raw == "" {
		f.Close()
		return nil, apperror.ValidationFailed("data", "Form data is missing")
	}
	if err := json.Unmarshal([]byte(raw), data); err != nil {
		f.Close()
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.ValidationFailed("data", "Form data is not valid JSON.")
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return f, nil
	case err != nil:
		f.Close()
		return nil, apperror.ValidationFailed("file", "Could not read the uploaded file.")
	}
	f.file = file
	f.upload = &service.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	return f, nil
}
