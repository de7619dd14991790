package handler

import (
	"net/http"

	"github.com/sakif/blog-platform/internal/service"
)

// CommentHandler serves /api/comment.
type CommentHandler struct {
	svc *service.CommentService
	rs  *Responder
}

func NewCommentHandler(svc *service.CommentService, rs *Responder) *CommentHandler {
	return &CommentHandler{svc: svc, rs: rs}
}

// HandleAdd posts a comment as the caller.
//
// HTTP: POST /api/comment/add {blogid, content}
func (h *CommentHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	var in service.CommentInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	comment, err := h.svc.Create(r.Context(), who, in)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"message": "Comment submitted.", "comment": comment}))
}

// HandleGet lists a blog's comments. Public.
//
// HTTP: GET /api/comment/get/{blogid}
func (h *CommentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	blogID, err := pathID(r, "blogid")
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	comments, err := h.svc.ListByBlog(r.Context(), blogID)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"comments": comments}))
}

// HandleCount counts a blog's comments. Public.
//
// HTTP: GET /api/comment/get-count/{blogid}
func (h *CommentHandler) HandleCount(w http.ResponseWriter, r *http.Request) {
	blogID, err := pathID(r, "blogid")
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	n, err := h.svc.Count(r.Context(), blogID)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"commentCount": n}))
}

// HandleGetAll is the dashboard list, scoped like blogs.
//
// HTTP: GET /api/comment/get-all-comment
func (h *CommentHandler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	comments, err := h.svc.ListForCaller(r.Context(), who)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"comments": comments}))
}

// HandleDelete removes a comment. Owner or admin.
//
// HTTP: DELETE /api/comment/delete/{commentid}
func (h *CommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	id, err := pathID(r, "commentid")
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), who, id); err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"message": "Data deleted"}))
}
