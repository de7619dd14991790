package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/blog-platform/internal/service"
)

// BlogHandler serves /api/blog.
type BlogHandler struct {
	svc       *service.BlogService
	maxUpload int64
	rs        *Responder
}

func NewBlogHandler(svc *service.BlogService, maxUpload int64, rs *Responder) *BlogHandler {
	return &BlogHandler{svc: svc, maxUpload: maxUpload, rs: rs}
}

// HandleAdd publishes a blog as the caller.
//
// HTTP: POST /api/blog/add
// multipart: data={"category","title","blogContent"}, file=<featured image>
func (h *BlogHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}

	var in service.BlogInput
	form, err := parseMultipart(w, r, h.maxUpload, &in)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	defer form.Close()
	in.Image = form.upload

	blog, err := h.svc.Create(r.Context(), who, in)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"message": "Blog added successfully.", "blog": blog}))
}

// HandleEdit returns the blog for its edit form. Owner or admin.
//
// HTTP: GET /api/blog/edit/{blogid}
func (h *BlogHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	id, err := pathID(r, "blogid")
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	blog, err := h.svc.Edit(r.Context(), who, id)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"blog": blog}))
}

// HandleUpdate rewrites a blog. Owner or admin.
//
// HTTP: PUT /api/blog/update/{blogid}
// multipart: data={"category","title","slug","blogContent"}, file=<optional image>
func (h *BlogHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	id, err := pathID(r, "blogid")
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}

	var in service.BlogUpdate
	form, err := parseMultipart(w, r, h.maxUpload, &in)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	defer form.Close()
	in.Image = form.upload

	blog, err := h.svc.Update(r.Context(), who, id, in)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"message": "Blog updated successfully.", "blog": blog}))
}

// HandleDelete removes a blog. Owner or admin.
//
// HTTP: DELETE /api/blog/delete/{blogid}
func (h *BlogHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	id, err := pathID(r, "blogid")
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), who, id); err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"message": "Blog Deleted successfully."}))
}

// HandleGetAll is the dashboard list: own blogs, or all for an admin.
//
// HTTP: GET /api/blog/get-all
func (h *BlogHandler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	blogs, err := h.svc.ListForCaller(r.Context(), who)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"blog": blogs}))
}

// HandleBlogs is the public feed.
//
// HTTP: GET /api/blog/blogs
func (h *BlogHandler) HandleBlogs(w http.ResponseWriter, r *http.Request) {
	blogs, err := h.svc.ListAll(r.Context())
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"blog": blogs}))
}

// HandleGetBlog returns one blog by slug.
//
// HTTP: GET /api/blog/get-blog/{slug}
func (h *BlogHandler) HandleGetBlog(w http.ResponseWriter, r *http.Request) {
	blog, err := h.svc.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"blog": blog}))
}

// HandleByCategory lists a category's blogs.
//
// HTTP: GET /api/blog/get-blog-by-category/{category}
func (h *BlogHandler) HandleByCategory(w http.ResponseWriter, r *http.Request) {
	category, blogs, err := h.svc.ListByCategory(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"blog": blogs, "categoryData": category}))
}

// HandleRelated lists other blogs in the same category.
//
// HTTP: GET /api/blog/get-related-blog/{category}/{blog}
func (h *BlogHandler) HandleRelated(w http.ResponseWriter, r *http.Request) {
	blogs, err := h.svc.Related(r.Context(), chi.URLParam(r, "category"), chi.URLParam(r, "blog"))
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"relatedBlog": blogs}))
}

// HandleSearch matches titles.
//
// HTTP: GET /api/blog/search?q=
func (h *BlogHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	blogs, err := h.svc.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"blog": blogs}))
}
