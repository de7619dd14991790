package handler

import (
	"net/http"

	"github.com/sakif/blog-platform/internal/service"
)

// UserHandler serves /api/user.
type UserHandler struct {
	svc       *service.UserService
	maxUpload int64
	rs        *Responder
}

func NewUserHandler(svc *service.UserService, maxUpload int64, rs *Responder) *UserHandler {
	return &UserHandler{svc: svc, maxUpload: maxUpload, rs: rs}
}

// HandleGet returns one user.
//
// HTTP: GET /api/user/get-user/{userid}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userid")
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	user, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"message": "User data found.", "user": user}))
}

// HandleUpdate changes a profile and optionally the avatar.
//
// HTTP: PUT /api/user/update-user/{userid}
// multipart: data={"name","email","bio","password"}, file=<avatar>
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	id, err := pathID(r, "userid")
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}

	var in service.UpdateUserInput
	form, err := parseMultipart(w, r, h.maxUpload, &in)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	defer form.Close()
	in.Avatar = form.upload

	user, err := h.svc.Update(r.Context(), who, id, in)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"message": "Data updated.", "user": user}))
}

// HandleList returns every user. Admin only.
//
// HTTP: GET /api/user/get-all-user
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"user": users}))
}

// HandleDelete removes a user. Admin only.
//
// HTTP: DELETE /api/user/delete/{id}
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), who, id); err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"message": "Data deleted."}))
}
