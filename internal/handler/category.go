package handler

import (
	"net/http"

	"github.com/sakif/blog-platform/internal/service"
)

// CategoryHandler serves /api/category. Everything except the public
// listing is mounted behind RequireAdmin.
type CategoryHandler struct {
	svc *service.CategoryService
	rs  *Responder
}

func NewCategoryHandler(svc *service.CategoryService, rs *Responder) *CategoryHandler {
	return &CategoryHandler{svc: svc, rs: rs}
}

// HandleAdd creates a category.
//
// HTTP: POST /api/category/add {name, slug} → 201
func (h *CategoryHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var in service.CategoryInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	category, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ok(envelope{
		"message":  "Category added successfully.",
		"category": category,
	}))
}

// HandleShow returns one category.
//
// HTTP: GET /api/category/show/{categoryid}
func (h *CategoryHandler) HandleShow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "categoryid")
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	category, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"category": category}))
}

// HandleUpdate renames a category.
//
// HTTP: PUT /api/category/update/{categoryid} {name, slug}
func (h *CategoryHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "categoryid")
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	var in service.CategoryInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	category, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{
		"message":  "Category updated successfully.",
		"category": category,
	}))
}

// HandleDelete removes a category; its blogs stay.
//
// HTTP: DELETE /api/category/delete/{categoryid}
func (h *CategoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "categoryid")
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"message": "Category deleted successfully."}))
}

// HandleAll lists categories by name. Public.
//
// HTTP: GET /api/category/all-category
func (h *CategoryHandler) HandleAll(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.List(r.Context())
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"category": categories}))
}
